package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/SamarthP7704/cycle-guard-makeuc/internal/reid"
)

// SQLiteStore is a single-file EventStore for deployments without a
// PostgreSQL server. Embeddings and bounding boxes are stored as JSON.
type SQLiteStore struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS events (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL CHECK (kind IN ('dropoff', 'pickup')),
	ts TIMESTAMP NOT NULL,
	embedding TEXT NOT NULL DEFAULT '[]',
	embedding_source TEXT NOT NULL DEFAULT 'model',
	person_box TEXT,
	cycle_box TEXT,
	image_path TEXT NOT NULL DEFAULT '',
	is_same_person BOOLEAN,
	similarity_score REAL,
	confidence TEXT,
	matched_event_id TEXT,
	verifier_used BOOLEAN NOT NULL DEFAULT 0,
	degraded BOOLEAN NOT NULL DEFAULT 0,
	alert_sent BOOLEAN NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_events_kind_ts ON events (kind, ts DESC);
`

// NewSQLiteStore opens (or creates) the database file and ensures the
// schema exists.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite handles one writer at a time.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Create(ctx context.Context, event *Event) error {
	embedding, err := json.Marshal(event.Embedding)
	if err != nil {
		return fmt.Errorf("marshal embedding: %w", err)
	}
	personBox, err := marshalBox(event.PersonBox)
	if err != nil {
		return fmt.Errorf("marshal person box: %w", err)
	}
	cycleBox, err := marshalBox(event.CycleBox)
	if err != nil {
		return fmt.Errorf("marshal cycle box: %w", err)
	}

	var isSame, verifierUsed, degraded sql.NullBool
	var score sql.NullFloat64
	var confidence, matchedID sql.NullString
	if event.Match != nil {
		isSame = sql.NullBool{Bool: event.Match.IsSamePerson, Valid: true}
		score = sql.NullFloat64{Float64: event.Match.SimilarityScore, Valid: true}
		confidence = sql.NullString{String: string(event.Match.Confidence), Valid: true}
		if event.Match.MatchedEventID != nil {
			matchedID = sql.NullString{String: event.Match.MatchedEventID.String(), Valid: true}
		}
		verifierUsed = sql.NullBool{Bool: event.Match.VerifierUsed, Valid: true}
		degraded = sql.NullBool{Bool: event.Match.Degraded, Valid: true}
	}

	query := `
		INSERT INTO events (
			id, kind, ts, embedding, embedding_source,
			person_box, cycle_box, image_path,
			is_same_person, similarity_score, confidence, matched_event_id,
			verifier_used, degraded, alert_sent
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		event.ID.String(),
		string(event.Kind),
		event.Timestamp.UTC(),
		string(embedding),
		event.EmbeddingSource,
		personBox,
		cycleBox,
		event.ImagePath,
		isSame,
		score,
		confidence,
		matchedID,
		verifierUsed.Bool,
		degraded.Bool,
		event.AlertSent,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func marshalBox(box []float64) (sql.NullString, error) {
	if box == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(box)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

const sqliteEventColumns = `
	id, kind, ts, embedding, embedding_source,
	person_box, cycle_box, image_path,
	is_same_person, similarity_score, confidence, matched_event_id,
	verifier_used, degraded, alert_sent
`

func (s *SQLiteStore) Get(ctx context.Context, id uuid.UUID) (*Event, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+sqliteEventColumns+" FROM events WHERE id = ?", id.String())
	event, err := scanSQLiteEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query event: %w", err)
	}
	return event, nil
}

func (s *SQLiteStore) RecentDropoffs(ctx context.Context, limit int) ([]DropoffRef, error) {
	query := `
		SELECT id, embedding, ts
		FROM events
		WHERE kind = 'dropoff'
		ORDER BY ts DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent dropoffs: %w", err)
	}
	defer rows.Close()
	return scanSQLiteDropoffRefs(rows)
}

func (s *SQLiteStore) AllDropoffs(ctx context.Context) ([]DropoffRef, error) {
	query := `
		SELECT id, embedding, ts
		FROM events
		WHERE kind = 'dropoff'
		ORDER BY ts DESC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query dropoffs: %w", err)
	}
	defer rows.Close()
	return scanSQLiteDropoffRefs(rows)
}

func scanSQLiteDropoffRefs(rows *sql.Rows) ([]DropoffRef, error) {
	var refs []DropoffRef
	for rows.Next() {
		var idStr, embedding string
		var ts time.Time
		if err := rows.Scan(&idStr, &embedding, &ts); err != nil {
			return nil, fmt.Errorf("scan dropoff: %w", err)
		}

		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("parse event id: %w", err)
		}
		var vec []float32
		if err := json.Unmarshal([]byte(embedding), &vec); err != nil {
			return nil, fmt.Errorf("unmarshal embedding: %w", err)
		}

		refs = append(refs, DropoffRef{ID: id, Embedding: vec, Timestamp: ts})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dropoffs: %w", err)
	}
	return refs, nil
}

func (s *SQLiteStore) UpdateMatchResult(ctx context.Context, id uuid.UUID, match *MatchResult, alertSent bool) error {
	var matchedID sql.NullString
	if match.MatchedEventID != nil {
		matchedID = sql.NullString{String: match.MatchedEventID.String(), Valid: true}
	}

	query := `
		UPDATE events SET
			is_same_person = ?,
			similarity_score = ?,
			confidence = ?,
			matched_event_id = ?,
			verifier_used = ?,
			degraded = ?,
			alert_sent = ?
		WHERE id = ?
	`
	result, err := s.db.ExecContext(ctx, query,
		match.IsSamePerson,
		match.SimilarityScore,
		string(match.Confidence),
		matchedID,
		match.VerifierUsed,
		match.Degraded,
		alertSent,
		id.String(),
	)
	if err != nil {
		return fmt.Errorf("update match result: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context, limit, offset int) ([]Event, error) {
	query := "SELECT " + sqliteEventColumns + " FROM events ORDER BY ts DESC LIMIT ? OFFSET ?"
	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		event, err := scanSQLiteEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			return fmt.Errorf("closing database: %w", err)
		}
	}
	return nil
}

func scanSQLiteEvent(row rowScanner) (*Event, error) {
	var event Event
	var idStr, kind, embedding string
	var personBox, cycleBox sql.NullString
	var isSame sql.NullBool
	var score sql.NullFloat64
	var confidence, matchedID sql.NullString
	var verifierUsed, degraded bool

	err := row.Scan(
		&idStr,
		&kind,
		&event.Timestamp,
		&embedding,
		&event.EmbeddingSource,
		&personBox,
		&cycleBox,
		&event.ImagePath,
		&isSame,
		&score,
		&confidence,
		&matchedID,
		&verifierUsed,
		&degraded,
		&event.AlertSent,
	)
	if err != nil {
		return nil, err
	}

	event.ID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("parse event id: %w", err)
	}
	event.Kind = EventKind(kind)
	if err := json.Unmarshal([]byte(embedding), &event.Embedding); err != nil {
		return nil, fmt.Errorf("unmarshal embedding: %w", err)
	}
	if personBox.Valid {
		if err := json.Unmarshal([]byte(personBox.String), &event.PersonBox); err != nil {
			return nil, fmt.Errorf("unmarshal person box: %w", err)
		}
	}
	if cycleBox.Valid {
		if err := json.Unmarshal([]byte(cycleBox.String), &event.CycleBox); err != nil {
			return nil, fmt.Errorf("unmarshal cycle box: %w", err)
		}
	}

	if isSame.Valid {
		match := &MatchResult{
			IsSamePerson:    isSame.Bool,
			SimilarityScore: score.Float64,
			Confidence:      reid.Confidence(confidence.String),
			VerifierUsed:    verifierUsed,
			Degraded:        degraded,
		}
		if matchedID.Valid {
			id, err := uuid.Parse(matchedID.String)
			if err != nil {
				return nil, fmt.Errorf("parse matched event id: %w", err)
			}
			match.MatchedEventID = &id
		}
		event.Match = match
	}

	return &event, nil
}

var _ EventStore = (*SQLiteStore)(nil)
