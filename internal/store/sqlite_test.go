package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/SamarthP7704/cycle-guard-makeuc/internal/reid"
)

func newSQLiteTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "events.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	s := newSQLiteTestStore(t)
	ctx := context.Background()

	event := &Event{
		ID:              uuid.New(),
		Kind:            KindDropoff,
		Timestamp:       time.Now().UTC().Truncate(time.Second),
		Embedding:       []float32{0.1, 0.2, 0.3},
		EmbeddingSource: "descriptor",
		PersonBox:       []float64{1, 2, 3, 4},
		CycleBox:        []float64{5, 6, 7, 8},
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
	if got.EmbeddingSource != "descriptor" {
		t.Errorf("EmbeddingSource = %q; want descriptor", got.EmbeddingSource)
	}
	if len(got.Embedding) != 3 || got.Embedding[2] != 0.3 {
		t.Errorf("Embedding = %v; want [0.1 0.2 0.3]", got.Embedding)
	}
	if len(got.PersonBox) != 4 || got.PersonBox[0] != 1 {
		t.Errorf("PersonBox = %v", got.PersonBox)
	}
	if len(got.CycleBox) != 4 || got.CycleBox[3] != 8 {
		t.Errorf("CycleBox = %v", got.CycleBox)
	}
	if got.Match != nil {
		t.Error("dropoff should have no match result")
	}
}

func TestSQLiteStoreGetNotFound(t *testing.T) {
	s := newSQLiteTestStore(t)
	if _, err := s.Get(context.Background(), uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v; want ErrNotFound", err)
	}
}

func TestSQLiteStoreRecentDropoffsOrderAndLimit(t *testing.T) {
	s := newSQLiteTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	var ids []uuid.UUID
	for i := 0; i < 4; i++ {
		event := &Event{
			ID:        uuid.New(),
			Kind:      KindDropoff,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Embedding: []float32{float32(i)},
		}
		ids = append(ids, event.ID)
		if err := s.Create(ctx, event); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	if err := s.Create(ctx, &Event{
		ID:        uuid.New(),
		Kind:      KindPickup,
		Timestamp: base.Add(time.Hour),
		Embedding: []float32{9},
	}); err != nil {
		t.Fatalf("Create pickup: %v", err)
	}

	refs, err := s.RecentDropoffs(ctx, 2)
	if err != nil {
		t.Fatalf("RecentDropoffs: %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("got %d refs; want 2", len(refs))
	}
	if refs[0].ID != ids[3] || refs[1].ID != ids[2] {
		t.Errorf("refs not newest first: %v", refs)
	}

	all, err := s.AllDropoffs(ctx)
	if err != nil {
		t.Fatalf("AllDropoffs: %v", err)
	}
	if len(all) != 4 {
		t.Errorf("AllDropoffs returned %d; want 4", len(all))
	}
}

func TestSQLiteStoreUpdateMatchResult(t *testing.T) {
	s := newSQLiteTestStore(t)
	ctx := context.Background()

	dropoffID := uuid.New()
	pickup := &Event{
		ID:        uuid.New(),
		Kind:      KindPickup,
		Timestamp: time.Now().UTC(),
		Embedding: []float32{0.5},
	}
	if err := s.Create(ctx, pickup); err != nil {
		t.Fatalf("Create: %v", err)
	}

	match := &MatchResult{
		IsSamePerson:    false,
		SimilarityScore: 0.42,
		Confidence:      reid.ConfidenceLow,
		MatchedEventID:  &dropoffID,
		VerifierUsed:    true,
		Degraded:        true,
	}
	if err := s.UpdateMatchResult(ctx, pickup.ID, match, true); err != nil {
		t.Fatalf("UpdateMatchResult: %v", err)
	}

	got, err := s.Get(ctx, pickup.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Match == nil {
		t.Fatal("match result not stored")
	}
	if got.Match.IsSamePerson {
		t.Error("IsSamePerson = true; want false")
	}
	if got.Match.SimilarityScore != 0.42 {
		t.Errorf("SimilarityScore = %v; want 0.42", got.Match.SimilarityScore)
	}
	if got.Match.Confidence != reid.ConfidenceLow {
		t.Errorf("Confidence = %v; want low", got.Match.Confidence)
	}
	if got.Match.MatchedEventID == nil || *got.Match.MatchedEventID != dropoffID {
		t.Error("matched event id not stored")
	}
	if !got.Match.VerifierUsed || !got.Match.Degraded {
		t.Errorf("flags not stored: %+v", got.Match)
	}
	if !got.AlertSent {
		t.Error("alert_sent not stored")
	}

	if err := s.UpdateMatchResult(ctx, uuid.New(), match, false); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v; want ErrNotFound", err)
	}
}

func TestSQLiteStoreList(t *testing.T) {
	s := newSQLiteTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	for i := 0; i < 3; i++ {
		if err := s.Create(ctx, &Event{
			ID:        uuid.New(),
			Kind:      KindDropoff,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Embedding: []float32{float32(i)},
		}); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	events, err := s.List(ctx, 2, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events; want 2", len(events))
	}
	if !events[0].Timestamp.After(events[1].Timestamp) {
		t.Error("events not newest first")
	}

	rest, err := s.List(ctx, 2, 2)
	if err != nil {
		t.Fatalf("List with offset: %v", err)
	}
	if len(rest) != 1 {
		t.Errorf("got %d events; want 1", len(rest))
	}
}
