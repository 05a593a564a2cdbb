package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/SamarthP7704/cycle-guard-makeuc/internal/store"
)

const (
	defaultListLimit    = 50
	defaultSimilarLimit = 5
)

// EventsHandler serves the stored event history.
type EventsHandler struct {
	store store.EventStore
	index *store.DropoffIndex
}

func NewEventsHandler(st store.EventStore, index *store.DropoffIndex) *EventsHandler {
	return &EventsHandler{store: st, index: index}
}

// List returns stored events, newest first.
func (h *EventsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultListLimit)
	offset := queryInt(r, "offset", 0)

	events, err := h.store.List(r.Context(), limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	if events == nil {
		events = []store.Event{}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"limit":  limit,
		"offset": offset,
	})
}

// Get returns a single event by id.
func (h *EventsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	event, err := h.store.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "event not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load event")
		return
	}

	respondJSON(w, http.StatusOK, event)
}

// Similar returns drop-offs whose person embedding is closest to the
// given event's.
func (h *EventsHandler) Similar(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	event, err := h.store.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "event not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load event")
		return
	}

	k := queryInt(r, "k", defaultSimilarLimit)
	neighbors, err := h.index.Search(event.Embedding, k)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if neighbors == nil {
		neighbors = []store.Neighbor{}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"event_id":  event.ID,
		"neighbors": neighbors,
	})
}

func queryInt(r *http.Request, key string, defaultVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 {
		return n
	}
	return defaultVal
}
