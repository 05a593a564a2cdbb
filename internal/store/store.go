// Package store persists rental cycle surveillance events and their
// match results. Three backends implement the same interface:
// PostgreSQL with pgvector, a local SQLite file and an in-memory store
// used in tests and as a zero-setup default.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/SamarthP7704/cycle-guard-makeuc/internal/reid"
)

// ErrNotFound is returned when an event does not exist.
var ErrNotFound = errors.New("event not found")

// EventKind distinguishes drop-off and pickup events.
type EventKind string

const (
	KindDropoff EventKind = "dropoff"
	KindPickup  EventKind = "pickup"
)

// MatchResult is the outcome of comparing a pickup against recent
// drop-offs. It is only present on pickup events.
type MatchResult struct {
	IsSamePerson    bool            `json:"is_same_person"`
	SimilarityScore float64         `json:"similarity_score"`
	Confidence      reid.Confidence `json:"confidence"`
	MatchedEventID  *uuid.UUID      `json:"matched_event_id,omitempty"`
	VerifierUsed    bool            `json:"verifier_used"`
	Degraded        bool            `json:"degraded"`
}

// Event is a single drop-off or pickup observation.
type Event struct {
	ID              uuid.UUID    `json:"id"`
	Kind            EventKind    `json:"kind"`
	Timestamp       time.Time    `json:"timestamp"`
	Embedding       []float32    `json:"-"`
	EmbeddingSource string       `json:"embedding_source"`
	PersonBox       []float64    `json:"person_box,omitempty"`
	CycleBox        []float64    `json:"cycle_box,omitempty"`
	ImagePath       string       `json:"image_path,omitempty"`
	Match           *MatchResult `json:"match,omitempty"`
	AlertSent       bool         `json:"alert_sent"`
}

// DropoffRef is the slice of a drop-off event needed for matching.
type DropoffRef struct {
	ID        uuid.UUID
	Embedding []float32
	Timestamp time.Time
}

// EventStore persists surveillance events.
type EventStore interface {
	Create(ctx context.Context, event *Event) error
	Get(ctx context.Context, id uuid.UUID) (*Event, error)
	// RecentDropoffs returns the newest drop-off events first, up to limit.
	RecentDropoffs(ctx context.Context, limit int) ([]DropoffRef, error)
	// AllDropoffs returns every stored drop-off, used for index rebuilds.
	AllDropoffs(ctx context.Context) ([]DropoffRef, error)
	UpdateMatchResult(ctx context.Context, id uuid.UUID, match *MatchResult, alertSent bool) error
	List(ctx context.Context, limit, offset int) ([]Event, error)
	Close() error
}
