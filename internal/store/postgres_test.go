//go:build integration

package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/SamarthP7704/cycle-guard-makeuc/internal/config"
	"github.com/SamarthP7704/cycle-guard-makeuc/internal/reid"
)

func setupTestContainer(t *testing.T) (*PostgresStore, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}
	if container == nil {
		t.Skip("Docker not available, skipping integration test")
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	cfg := &config.DatabaseConfig{
		URL:          fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port()),
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}

	s, err := NewPostgresStore(cfg)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to create store: %v", err)
	}

	cleanup := func() {
		s.Close()
		container.Terminate(ctx)
	}
	return s, cleanup
}

func TestPostgresStore(t *testing.T) {
	s, cleanup := setupTestContainer(t)
	if s == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()

	t.Run("CreateAndGet", func(t *testing.T) {
		event := &Event{
			ID:              uuid.New(),
			Kind:            KindDropoff,
			Timestamp:       time.Now().UTC(),
			Embedding:       []float32{0.6, 0.8, 0},
			EmbeddingSource: "model",
			PersonBox:       []float64{10, 20, 110, 220},
			CycleBox:        []float64{0, 0, 50, 50},
			ImagePath:       "uploads/dropoff.jpg",
		}
		if err := s.Create(ctx, event); err != nil {
			t.Fatalf("Create: %v", err)
		}

		got, err := s.Get(ctx, event.ID)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.Kind != KindDropoff {
			t.Errorf("Kind = %v; want dropoff", got.Kind)
		}
		if len(got.Embedding) != 3 {
			t.Errorf("Embedding length = %d; want 3", len(got.Embedding))
		}
		if len(got.PersonBox) != 4 || got.PersonBox[3] != 220 {
			t.Errorf("PersonBox = %v", got.PersonBox)
		}
		if got.Match != nil {
			t.Error("dropoff should have no match result")
		}
	})

	t.Run("GetNotFound", func(t *testing.T) {
		if _, err := s.Get(ctx, uuid.New()); !errors.Is(err, ErrNotFound) {
			t.Errorf("err = %v; want ErrNotFound", err)
		}
	})

	t.Run("RecentDropoffs", func(t *testing.T) {
		base := time.Now().UTC().Add(time.Hour)
		var newest uuid.UUID
		for i := 0; i < 3; i++ {
			event := &Event{
				ID:        uuid.New(),
				Kind:      KindDropoff,
				Timestamp: base.Add(time.Duration(i) * time.Minute),
				Embedding: []float32{float32(i), 0, 0},
			}
			newest = event.ID
			if err := s.Create(ctx, event); err != nil {
				t.Fatalf("Create: %v", err)
			}
		}

		refs, err := s.RecentDropoffs(ctx, 2)
		if err != nil {
			t.Fatalf("RecentDropoffs: %v", err)
		}
		if len(refs) != 2 {
			t.Fatalf("got %d refs; want 2", len(refs))
		}
		if refs[0].ID != newest {
			t.Errorf("first ref = %v; want newest %v", refs[0].ID, newest)
		}
	})

	t.Run("UpdateMatchResult", func(t *testing.T) {
		dropoffID := uuid.New()
		pickup := &Event{
			ID:        uuid.New(),
			Kind:      KindPickup,
			Timestamp: time.Now().UTC(),
			Embedding: []float32{1, 0, 0},
		}
		if err := s.Create(ctx, pickup); err != nil {
			t.Fatalf("Create: %v", err)
		}

		match := &MatchResult{
			IsSamePerson:    true,
			SimilarityScore: 0.93,
			Confidence:      reid.ConfidenceHigh,
			MatchedEventID:  &dropoffID,
			VerifierUsed:    true,
		}
		if err := s.UpdateMatchResult(ctx, pickup.ID, match, false); err != nil {
			t.Fatalf("UpdateMatchResult: %v", err)
		}

		got, err := s.Get(ctx, pickup.ID)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.Match == nil {
			t.Fatal("match result not stored")
		}
		if !got.Match.IsSamePerson || got.Match.SimilarityScore != 0.93 {
			t.Errorf("unexpected match: %+v", got.Match)
		}
		if got.Match.MatchedEventID == nil || *got.Match.MatchedEventID != dropoffID {
			t.Error("matched event id not stored")
		}
		if !got.Match.VerifierUsed {
			t.Error("verifier_used not stored")
		}

		if err := s.UpdateMatchResult(ctx, uuid.New(), match, false); !errors.Is(err, ErrNotFound) {
			t.Errorf("err = %v; want ErrNotFound", err)
		}
	})

	t.Run("List", func(t *testing.T) {
		events, err := s.List(ctx, 100, 0)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(events) == 0 {
			t.Fatal("expected events from earlier subtests")
		}
		for i := 1; i < len(events); i++ {
			if events[i].Timestamp.After(events[i-1].Timestamp) {
				t.Error("events not newest first")
				break
			}
		}
	})
}
