// Package match orchestrates the surveillance pipeline: detect the
// person in an intake frame, embed them, compare a pickup against
// recent drop-offs and decide whether the same person returned.
package match

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/SamarthP7704/cycle-guard-makeuc/internal/alert"
	"github.com/SamarthP7704/cycle-guard-makeuc/internal/detect"
	"github.com/SamarthP7704/cycle-guard-makeuc/internal/reid"
	"github.com/SamarthP7704/cycle-guard-makeuc/internal/store"
	"github.com/SamarthP7704/cycle-guard-makeuc/internal/verify"
	"github.com/SamarthP7704/cycle-guard-makeuc/internal/vision"
)

// verifierOverrideFloor is the minimum verifier confidence needed to
// overturn a below-threshold embedding decision.
const verifierOverrideFloor = 0.7

// Config wires the pipeline's collaborators together.
type Config struct {
	Detector    detect.Detector
	Embedder    reid.Embedder
	Store       store.EventStore
	Index       *store.DropoffIndex
	Verifier    verify.Verifier
	Notifier    alert.Notifier
	Threshold   float64 // same-person similarity threshold
	RecentLimit int     // how many recent drop-offs to compare against
}

// Pipeline processes drop-off and pickup events end to end.
type Pipeline struct {
	detector    detect.Detector
	embedder    reid.Embedder
	store       store.EventStore
	index       *store.DropoffIndex
	verifier    verify.Verifier
	notifier    alert.Notifier
	threshold   float64
	recentLimit int
}

func New(cfg Config) *Pipeline {
	return &Pipeline{
		detector:    cfg.Detector,
		embedder:    cfg.Embedder,
		store:       cfg.Store,
		index:       cfg.Index,
		verifier:    cfg.Verifier,
		notifier:    cfg.Notifier,
		threshold:   cfg.Threshold,
		recentLimit: cfg.RecentLimit,
	}
}

// detectAndCrop finds the person (and optionally the cycle) in the
// frame and returns the person crop plus both clipped boxes.
func (p *Pipeline) detectAndCrop(ctx context.Context, frame *vision.Frame) (*vision.Frame, []float64, []float64, error) {
	result, err := p.detector.Detect(ctx, frame)
	if err != nil {
		return nil, nil, nil, err
	}
	if result.Person == nil {
		return nil, nil, nil, detect.ErrNoPersonDetected
	}

	personBox := result.Person.Box.Clip(frame.Width(), frame.Height())
	if personBox.Width() <= 0 || personBox.Height() <= 0 {
		return nil, nil, nil, detect.ErrNoPersonDetected
	}
	crop, err := frame.Crop(int(personBox.X1), int(personBox.Y1), int(personBox.X2), int(personBox.Y2))
	if err != nil {
		return nil, nil, nil, detect.ErrNoPersonDetected
	}

	var cycleBox []float64
	if result.Cycle != nil {
		clipped := result.Cycle.Box.Clip(frame.Width(), frame.Height())
		cycleBox = clipped.Slice()
	}

	return crop, personBox.Slice(), cycleBox, nil
}

// ProcessDropoff registers a drop-off: the person is detected, embedded
// and stored as a reference for later pickups.
func (p *Pipeline) ProcessDropoff(ctx context.Context, frame *vision.Frame, imagePath string) (*store.Event, error) {
	if err := frame.Validate(); err != nil {
		return nil, err
	}

	crop, personBox, cycleBox, err := p.detectAndCrop(ctx, frame)
	if err != nil {
		return nil, err
	}

	emb, err := p.embedder.Embed(ctx, crop)
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}

	event := &store.Event{
		ID:              uuid.New(),
		Kind:            store.KindDropoff,
		Timestamp:       time.Now().UTC(),
		Embedding:       emb.Vector,
		EmbeddingSource: emb.Source.String(),
		PersonBox:       personBox,
		CycleBox:        cycleBox,
		ImagePath:       imagePath,
	}

	if err := p.store.Create(ctx, event); err != nil {
		// The observation still happened; hand it back unpersisted. It
		// stays out of the index so the similar-events search never
		// returns ids the store cannot resolve.
		log.Printf("dropoff event %s not persisted: %v", event.ID, err)
		return event, nil
	}

	if p.index != nil {
		p.index.Add(store.DropoffRef{
			ID:        event.ID,
			Embedding: event.Embedding,
			Timestamp: event.Timestamp,
		})
	}

	return event, nil
}

// ProcessPickup compares the pickup against recent drop-offs and
// records the match decision. Verifier, alerting and persistence
// problems never turn into request errors: an unreachable store fails
// safe toward a non-match (and therefore an alert), and everything
// after the decision is logged best-effort.
func (p *Pipeline) ProcessPickup(ctx context.Context, frame *vision.Frame, imagePath string) (*store.Event, error) {
	if err := frame.Validate(); err != nil {
		return nil, err
	}

	crop, personBox, cycleBox, err := p.detectAndCrop(ctx, frame)
	if err != nil {
		return nil, err
	}

	emb, err := p.embedder.Embed(ctx, crop)
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}

	refs, err := p.store.RecentDropoffs(ctx, p.recentLimit)
	if err != nil {
		// An empty reference set yields a non-match, which alerts.
		log.Printf("recent dropoffs unavailable, treating as empty set: %v", err)
		refs = nil
	}

	match := Decide(emb.Vector, refs, p.threshold)
	if emb.Source.Degraded() {
		match.Degraded = true
	}

	if p.verifier != nil && p.verifier.Configured() && needsVerification(match) {
		p.runVerifier(ctx, crop, match)
	}

	event := &store.Event{
		ID:              uuid.New(),
		Kind:            store.KindPickup,
		Timestamp:       time.Now().UTC(),
		Embedding:       emb.Vector,
		EmbeddingSource: emb.Source.String(),
		PersonBox:       personBox,
		CycleBox:        cycleBox,
		ImagePath:       imagePath,
	}

	persisted := true
	if err := p.store.Create(ctx, event); err != nil {
		persisted = false
		log.Printf("pickup event %s not persisted: %v", event.ID, err)
	}

	if !match.IsSamePerson && p.notifier != nil && p.notifier.Configured() {
		event.AlertSent = p.notifier.SendSecurityAlert(ctx, event.ID, match.SimilarityScore, imagePath)
	}

	event.Match = match
	if persisted {
		if err := p.store.UpdateMatchResult(ctx, event.ID, match, event.AlertSent); err != nil {
			log.Printf("pickup event %s match result not persisted: %v", event.ID, err)
		}
	}

	return event, nil
}

// Decide compares a pickup embedding against drop-off references and
// produces the match result. An empty reference set yields a low
// confidence non-match with no matched event. Candidates whose
// embedding width differs from the pickup's are skipped and logged. A
// strictly greater comparison keeps the first-seen candidate on ties.
func Decide(pickup []float32, refs []store.DropoffRef, threshold float64) *store.MatchResult {
	var best *store.DropoffRef
	bestScore := -1.0

	for i := range refs {
		ref := &refs[i]
		if len(ref.Embedding) != len(pickup) {
			log.Printf("match: skipping dropoff %s: embedding dim %d, pickup dim %d",
				ref.ID, len(ref.Embedding), len(pickup))
			continue
		}
		score := reid.Similarity(pickup, ref.Embedding)
		if score > bestScore {
			bestScore = score
			best = ref
		}
	}

	if best == nil {
		return &store.MatchResult{
			IsSamePerson:    false,
			SimilarityScore: 0.0,
			Confidence:      reid.ConfidenceLow,
		}
	}

	id := best.ID
	return &store.MatchResult{
		IsSamePerson:    bestScore >= threshold,
		SimilarityScore: bestScore,
		Confidence:      reid.Tier(bestScore),
		MatchedEventID:  &id,
	}
}

// needsVerification gates the secondary verifier: only decisions in the
// ambiguous band are worth a second opinion, regardless of which side
// of the threshold they landed on. High and low tiers outside the band
// are never second-guessed. A candidate drop-off is required because
// its crop is the other half of the comparison.
func needsVerification(match *store.MatchResult) bool {
	if match.MatchedEventID == nil {
		return false
	}
	score := match.SimilarityScore
	return match.Confidence == reid.ConfidenceMedium || (score >= 0.6 && score < 0.75)
}

// runVerifier asks the vision verifier for a second opinion and applies
// an override when it is confident enough. Every failure on this path
// leaves the embedding decision untouched.
func (p *Pipeline) runVerifier(ctx context.Context, pickupCrop *vision.Frame, match *store.MatchResult) {
	dropoffCrop, err := p.dropoffCropFor(ctx, *match.MatchedEventID)
	if err != nil {
		log.Printf("verifier: cannot recover dropoff crop: %v", err)
		return
	}

	pickupJPEG, err := pickupCrop.EncodeJPEG()
	if err != nil {
		log.Printf("verifier: cannot encode pickup crop: %v", err)
		return
	}

	opinion, err := p.verifier.Compare(ctx, dropoffCrop, pickupJPEG)
	if err != nil {
		log.Printf("verifier: compare failed: %v", err)
		return
	}

	match.VerifierUsed = true
	applyOverride(match, opinion)
}

// applyOverride replaces the decision with the verifier's verdict, in
// either direction, when its confidence clears the override floor. The
// similarity score is replaced by the verifier's confidence so
// downstream consumers see the value the decision rests on.
func applyOverride(match *store.MatchResult, opinion *verify.Opinion) {
	if opinion.Confidence <= verifierOverrideFloor {
		return
	}

	match.IsSamePerson = opinion.IsSamePerson
	match.SimilarityScore = opinion.Confidence
	if opinion.Confidence > 0.8 {
		match.Confidence = reid.ConfidenceHigh
	} else {
		match.Confidence = reid.ConfidenceMedium
	}
}

// dropoffCropFor re-derives the person crop of a stored drop-off from
// its evidence image.
func (p *Pipeline) dropoffCropFor(ctx context.Context, eventID uuid.UUID) ([]byte, error) {
	event, err := p.store.Get(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("load dropoff event: %w", err)
	}
	if event.ImagePath == "" {
		return nil, fmt.Errorf("dropoff %s has no stored image", eventID)
	}

	frame, err := vision.FromFile(event.ImagePath)
	if err != nil {
		return nil, fmt.Errorf("load dropoff image: %w", err)
	}

	crop, _, err := detect.CropPerson(ctx, p.detector, frame)
	if err != nil {
		return nil, fmt.Errorf("re-detect dropoff person: %w", err)
	}
	return crop.EncodeJPEG()
}

// RebuildIndex reloads every stored drop-off into the similarity index.
func (p *Pipeline) RebuildIndex(ctx context.Context) (int, error) {
	if p.index == nil {
		return 0, nil
	}
	refs, err := p.store.AllDropoffs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load dropoffs: %w", err)
	}
	p.index.Build(refs)
	return p.index.Count(), nil
}
