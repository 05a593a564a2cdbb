package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/SamarthP7704/cycle-guard-makeuc/internal/reid"
)

func newTestEvent(kind EventKind, ts time.Time) *Event {
	return &Event{
		ID:              uuid.New(),
		Kind:            kind,
		Timestamp:       ts,
		Embedding:       []float32{0.6, 0.8},
		EmbeddingSource: "model",
		PersonBox:       []float64{10, 20, 110, 220},
		ImagePath:       "uploads/test.jpg",
	}
}

func TestMemoryStoreCreateAndGet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	event := newTestEvent(KindDropoff, time.Now())
	if err := s.Create(ctx, event); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := s.Get(ctx, event.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != event.ID {
		t.Errorf("ID = %v; want %v", got.ID, event.ID)
	}
	if got.Kind != KindDropoff {
		t.Errorf("Kind = %v; want dropoff", got.Kind)
	}
	if len(got.Embedding) != 2 {
		t.Errorf("Embedding length = %d; want 2", len(got.Embedding))
	}
}

func TestMemoryStoreGetNotFound(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.Get(context.Background(), uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v; want ErrNotFound", err)
	}
}

func TestMemoryStoreRecentDropoffs(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Now()

	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		event := newTestEvent(KindDropoff, base.Add(time.Duration(i)*time.Minute))
		ids = append(ids, event.ID)
		if err := s.Create(ctx, event); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	// Pickups must not appear in the dropoff listing.
	if err := s.Create(ctx, newTestEvent(KindPickup, base.Add(time.Hour))); err != nil {
		t.Fatalf("Create pickup: %v", err)
	}

	refs, err := s.RecentDropoffs(ctx, 3)
	if err != nil {
		t.Fatalf("RecentDropoffs: %v", err)
	}
	if len(refs) != 3 {
		t.Fatalf("got %d refs; want 3", len(refs))
	}
	// Newest first.
	if refs[0].ID != ids[4] || refs[1].ID != ids[3] || refs[2].ID != ids[2] {
		t.Errorf("refs not ordered newest first: %v", refs)
	}

	all, err := s.AllDropoffs(ctx)
	if err != nil {
		t.Fatalf("AllDropoffs: %v", err)
	}
	if len(all) != 5 {
		t.Errorf("AllDropoffs returned %d; want 5", len(all))
	}
}

func TestMemoryStoreUpdateMatchResult(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	dropoff := newTestEvent(KindDropoff, time.Now())
	pickup := newTestEvent(KindPickup, time.Now())
	if err := s.Create(ctx, dropoff); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Create(ctx, pickup); err != nil {
		t.Fatalf("Create: %v", err)
	}

	match := &MatchResult{
		IsSamePerson:    true,
		SimilarityScore: 0.91,
		Confidence:      reid.ConfidenceHigh,
		MatchedEventID:  &dropoff.ID,
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
	if !got.Match.IsSamePerson || got.Match.SimilarityScore != 0.91 {
		t.Errorf("unexpected match result: %+v", got.Match)
	}
	if got.Match.MatchedEventID == nil || *got.Match.MatchedEventID != dropoff.ID {
		t.Errorf("matched event id not stored")
	}
	if !got.AlertSent {
		t.Error("alert_sent not stored")
	}

	if err := s.UpdateMatchResult(ctx, uuid.New(), match, false); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v; want ErrNotFound", err)
	}
}

func TestMemoryStoreList(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Now()

	for i := 0; i < 4; i++ {
		if err := s.Create(ctx, newTestEvent(KindDropoff, base.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	events, err := s.List(ctx, 2, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(events) != 2 {
		t.Errorf("got %d events; want 2", len(events))
	}

	rest, err := s.List(ctx, 10, 2)
	if err != nil {
		t.Fatalf("List with offset: %v", err)
	}
	if len(rest) != 2 {
		t.Errorf("got %d events; want 2", len(rest))
	}

	none, err := s.List(ctx, 10, 100)
	if err != nil {
		t.Fatalf("List past end: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("got %d events; want 0", len(none))
	}
}

func TestMemoryStoreErrorInjection(t *testing.T) {
	s := NewMemoryStore()
	boom := errors.New("boom")
	s.CreateError = boom
	s.RecentDropoffsError = boom

	if err := s.Create(context.Background(), newTestEvent(KindDropoff, time.Now())); !errors.Is(err, boom) {
		t.Errorf("Create err = %v; want injected error", err)
	}
	if _, err := s.RecentDropoffs(context.Background(), 10); !errors.Is(err, boom) {
		t.Errorf("RecentDropoffs err = %v; want injected error", err)
	}
}
