package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/SamarthP7704/cycle-guard-makeuc/internal/alert"
	"github.com/SamarthP7704/cycle-guard-makeuc/internal/config"
	"github.com/SamarthP7704/cycle-guard-makeuc/internal/detect"
	"github.com/SamarthP7704/cycle-guard-makeuc/internal/match"
	"github.com/SamarthP7704/cycle-guard-makeuc/internal/reid"
	"github.com/SamarthP7704/cycle-guard-makeuc/internal/store"
	"github.com/SamarthP7704/cycle-guard-makeuc/internal/verify"
)

// openStore selects the event store backend from configuration.
// DATABASE_URL wins over SQLITE_PATH; with neither set, events live in
// memory only.
func openStore(cfg *config.Config) (store.EventStore, error) {
	switch {
	case cfg.Database.URL != "":
		fmt.Println("Connecting to PostgreSQL event store...")
		return store.NewPostgresStore(&cfg.Database)
	case cfg.Database.SQLitePath != "":
		fmt.Printf("Opening SQLite event store at %s\n", cfg.Database.SQLitePath)
		return store.NewSQLiteStore(cfg.Database.SQLitePath)
	default:
		fmt.Println("Using in-memory event store (events are lost on exit)")
		return store.NewMemoryStore(), nil
	}
}

// buildPipeline wires the full matching pipeline from configuration.
func buildPipeline(ctx context.Context, cfg *config.Config, st store.EventStore, index *store.DropoffIndex) (*match.Pipeline, error) {
	buckets, err := detect.LoadClassBuckets(cfg.Detector.ClassesPath)
	if err != nil {
		return nil, fmt.Errorf("loading class buckets: %w", err)
	}
	detector := detect.NewRemoteDetector(cfg.Inference.URL, cfg.Detector.ScoreFloor, buckets, cfg.Inference.Timeout)
	embedder := reid.NewEmbedder(&cfg.Inference)

	verifier, err := verify.New(ctx, &cfg.Verifier)
	if err != nil {
		if !errors.Is(err, verify.ErrNotConfigured) {
			return nil, fmt.Errorf("configuring verifier: %w", err)
		}
		fmt.Println("Secondary verifier disabled")
	} else {
		fmt.Printf("Secondary verifier enabled (%s)\n", verifier.Name())
	}

	notifier := alert.New(&cfg.Telegram, &cfg.Twilio)
	if notifier.Configured() {
		fmt.Println("Security alerts enabled")
	} else {
		fmt.Println("Security alerts disabled (no channel configured)")
	}

	return match.New(match.Config{
		Detector:    detector,
		Embedder:    embedder,
		Store:       st,
		Index:       index,
		Verifier:    verifier,
		Notifier:    notifier,
		Threshold:   cfg.Matching.SimilarityThreshold,
		RecentLimit: cfg.Matching.RecentDropoffLimit,
	}), nil
}
