package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/SamarthP7704/cycle-guard-makeuc/internal/store"
)

func newEventsRouter(st store.EventStore, index *store.DropoffIndex) *chi.Mux {
	h := NewEventsHandler(st, index)
	r := chi.NewRouter()
	r.Get("/events", h.List)
	r.Get("/events/{id}", h.Get)
	r.Get("/events/{id}/similar", h.Similar)
	return r
}

func seedDropoff(t *testing.T, st store.EventStore, embedding []float32, ts time.Time) *store.Event {
	t.Helper()
	event := &store.Event{
		ID:              uuid.New(),
		Kind:            store.KindDropoff,
		Timestamp:       ts,
		Embedding:       embedding,
		EmbeddingSource: "model",
	}
	if err := st.Create(context.Background(), event); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return event
}

func TestEventsList(t *testing.T) {
	st := store.NewMemoryStore()
	base := time.Now()
	for i := 0; i < 3; i++ {
		seedDropoff(t, st, []float32{float32(i), 1}, base.Add(time.Duration(i)*time.Second))
	}

	r := newEventsRouter(st, store.NewDropoffIndex())
	req := httptest.NewRequest(http.MethodGet, "/events?limit=2", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", rec.Code)
	}

	var resp struct {
		Events []store.Event `json:"events"`
		Limit  int           `json:"limit"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Events) != 2 {
		t.Errorf("got %d events; want 2", len(resp.Events))
	}
	if resp.Limit != 2 {
		t.Errorf("limit = %d; want 2", resp.Limit)
	}
}

func TestEventsListEmpty(t *testing.T) {
	r := newEventsRouter(store.NewMemoryStore(), store.NewDropoffIndex())
	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", rec.Code)
	}

	var resp struct {
		Events []store.Event `json:"events"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Events == nil {
		t.Error("events should encode as an empty array, not null")
	}
}

func TestEventsGet(t *testing.T) {
	st := store.NewMemoryStore()
	event := seedDropoff(t, st, []float32{1, 0}, time.Now())

	r := newEventsRouter(st, store.NewDropoffIndex())
	req := httptest.NewRequest(http.MethodGet, "/events/"+event.ID.String(), nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", rec.Code)
	}

	var got store.Event
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != event.ID {
		t.Errorf("ID = %v; want %v", got.ID, event.ID)
	}
}

func TestEventsGetErrors(t *testing.T) {
	r := newEventsRouter(store.NewMemoryStore(), store.NewDropoffIndex())

	req := httptest.NewRequest(http.MethodGet, "/events/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid id status = %d; want 400", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/events/"+uuid.NewString(), nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing event status = %d; want 404", rec.Code)
	}
}

func TestEventsSimilar(t *testing.T) {
	st := store.NewMemoryStore()
	index := store.NewDropoffIndex()

	a := seedDropoff(t, st, []float32{1, 0}, time.Now())
	b := seedDropoff(t, st, []float32{0.9, 0.1}, time.Now())
	c := seedDropoff(t, st, []float32{0, 1}, time.Now())
	for _, e := range []*store.Event{a, b, c} {
		index.Add(store.DropoffRef{ID: e.ID, Embedding: e.Embedding, Timestamp: e.Timestamp})
	}

	r := newEventsRouter(st, index)
	req := httptest.NewRequest(http.MethodGet, "/events/"+a.ID.String()+"/similar?k=2", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", rec.Code)
	}

	var resp struct {
		EventID   uuid.UUID        `json:"event_id"`
		Neighbors []store.Neighbor `json:"neighbors"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.EventID != a.ID {
		t.Errorf("event_id = %v; want %v", resp.EventID, a.ID)
	}
	if len(resp.Neighbors) != 2 {
		t.Fatalf("got %d neighbors; want 2", len(resp.Neighbors))
	}
	// The event itself is its own best neighbor.
	if resp.Neighbors[0].ID != a.ID {
		t.Errorf("best neighbor = %v; want %v", resp.Neighbors[0].ID, a.ID)
	}
}
