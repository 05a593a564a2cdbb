package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/SamarthP7704/cycle-guard-makeuc/internal/config"
	"github.com/SamarthP7704/cycle-guard-makeuc/internal/reid"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore is the pgvector-backed EventStore.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection pool, verifies it and applies
// pending migrations.
func NewPostgresStore(cfg *config.DatabaseConfig) (*PostgresStore, error) {
	if cfg.URL == "" {
		return nil, errors.New("database URL is required")
	}

	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &PostgresStore{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMPTZ DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	applied := make(map[string]bool)
	rows, err := s.db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return fmt.Errorf("query applied migrations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return fmt.Errorf("scan migration version: %w", err)
		}
		applied[v] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate applied migrations: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".sql") && !applied[e.Name()] {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, file := range files {
		content, err := migrationsFS.ReadFile("migrations/" + file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin transaction for %s: %w", file, err)
		}
		if _, err := tx.ExecContext(ctx, string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("execute migration %s: %w", file, err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", file); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %s: %w", file, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", file, err)
		}

		log.Printf("applied migration: %s", file)
	}

	return nil
}

func (s *PostgresStore) Create(ctx context.Context, event *Event) error {
	query := `
		INSERT INTO events (
			id, kind, ts, embedding, embedding_source,
			person_box, cycle_box, image_path,
			is_same_person, similarity_score, confidence, matched_event_id,
			verifier_used, degraded, alert_sent
		)
		VALUES ($1, $2, $3, $4::vector, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	var isSame sql.NullBool
	var score sql.NullFloat64
	var confidence sql.NullString
	var matchedID any
	var verifierUsed, degraded bool
	if event.Match != nil {
		isSame = sql.NullBool{Bool: event.Match.IsSamePerson, Valid: true}
		score = sql.NullFloat64{Float64: event.Match.SimilarityScore, Valid: true}
		confidence = sql.NullString{String: string(event.Match.Confidence), Valid: true}
		if event.Match.MatchedEventID != nil {
			matchedID = *event.Match.MatchedEventID
		}
		verifierUsed = event.Match.VerifierUsed
		degraded = event.Match.Degraded
	}

	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		string(event.Kind),
		event.Timestamp,
		pgvector.NewVector(event.Embedding),
		event.EmbeddingSource,
		pq.Array(event.PersonBox),
		pq.Array(event.CycleBox),
		event.ImagePath,
		isSame,
		score,
		confidence,
		matchedID,
		verifierUsed,
		degraded,
		event.AlertSent,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

const eventColumns = `
	id, kind, ts, embedding, embedding_source,
	person_box, cycle_box, image_path,
	is_same_person, similarity_score, confidence, matched_event_id,
	verifier_used, degraded, alert_sent
`

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*Event, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+eventColumns+" FROM events WHERE id = $1", id)
	event, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query event: %w", err)
	}
	return event, nil
}

func (s *PostgresStore) RecentDropoffs(ctx context.Context, limit int) ([]DropoffRef, error) {
	query := `
		SELECT id, embedding, ts
		FROM events
		WHERE kind = 'dropoff'
		ORDER BY ts DESC
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent dropoffs: %w", err)
	}
	defer rows.Close()
	return scanDropoffRefs(rows)
}

func (s *PostgresStore) AllDropoffs(ctx context.Context) ([]DropoffRef, error) {
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
	return scanDropoffRefs(rows)
}

func scanDropoffRefs(rows *sql.Rows) ([]DropoffRef, error) {
	var refs []DropoffRef
	for rows.Next() {
		var ref DropoffRef
		var vec pgvector.Vector
		if err := rows.Scan(&ref.ID, &vec, &ref.Timestamp); err != nil {
			return nil, fmt.Errorf("scan dropoff: %w", err)
		}
		ref.Embedding = vec.Slice()
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dropoffs: %w", err)
	}
	return refs, nil
}

func (s *PostgresStore) UpdateMatchResult(ctx context.Context, id uuid.UUID, match *MatchResult, alertSent bool) error {
	query := `
		UPDATE events SET
			is_same_person = $2,
			similarity_score = $3,
			confidence = $4,
			matched_event_id = $5,
			verifier_used = $6,
			degraded = $7,
			alert_sent = $8
		WHERE id = $1
	`

	var matchedID any
	if match.MatchedEventID != nil {
		matchedID = *match.MatchedEventID
	}

	result, err := s.db.ExecContext(ctx, query,
		id,
		match.IsSamePerson,
		match.SimilarityScore,
		string(match.Confidence),
		matchedID,
		match.VerifierUsed,
		match.Degraded,
		alertSent,
	)
	if err != nil {
		return fmt.Errorf("update match result: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, limit, offset int) ([]Event, error) {
	query := "SELECT " + eventColumns + " FROM events ORDER BY ts DESC LIMIT $1 OFFSET $2"
	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		event, err := scanEvent(rows)
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

func (s *PostgresStore) Close() error {
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			return fmt.Errorf("closing database connection: %w", err)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*Event, error) {
	var event Event
	var kind string
	var vec pgvector.Vector
	var personBox, cycleBox pq.Float64Array
	var isSame sql.NullBool
	var score sql.NullFloat64
	var confidence sql.NullString
	var matchedID uuid.NullUUID
	var verifierUsed, degraded bool

	err := row.Scan(
		&event.ID,
		&kind,
		&event.Timestamp,
		&vec,
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

	event.Kind = EventKind(kind)
	event.Embedding = vec.Slice()
	event.PersonBox = personBox
	event.CycleBox = cycleBox

	if isSame.Valid {
		match := &MatchResult{
			IsSamePerson:    isSame.Bool,
			SimilarityScore: score.Float64,
			Confidence:      reid.Confidence(confidence.String),
			VerifierUsed:    verifierUsed,
			Degraded:        degraded,
		}
		if matchedID.Valid {
			id := matchedID.UUID
			match.MatchedEventID = &id
		}
		event.Match = match
	}

	return &event, nil
}

var _ EventStore = (*PostgresStore)(nil)
