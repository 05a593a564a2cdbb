package reid

import (
	"context"
	"log"
	"math/rand"
	"time"

	"github.com/SamarthP7704/cycle-guard-makeuc/internal/config"
	"github.com/SamarthP7704/cycle-guard-makeuc/internal/vision"
)

// randomVectorDim is the dimensionality of the last-resort random
// embedding, matching the re-identification model's output width.
const randomVectorDim = 512

// Source records which extraction path produced an embedding.
type Source int

const (
	// SourceModel is the learned re-identification network.
	SourceModel Source = iota
	// SourceDescriptor is the deterministic hand-crafted fallback.
	SourceDescriptor
	// SourceRandom is the last-resort random unit vector. Matches made
	// from it are meaningless and must be surfaced as degraded.
	SourceRandom
)

func (s Source) String() string {
	switch s {
	case SourceModel:
		return "model"
	case SourceDescriptor:
		return "descriptor"
	case SourceRandom:
		return "random"
	default:
		return "unknown"
	}
}

// Degraded reports whether embeddings from this source carry reduced
// match reliability.
func (s Source) Degraded() bool {
	return s != SourceModel
}

// Result is an extracted embedding together with its provenance.
type Result struct {
	Vector []float32
	Source Source
}

// Embedder converts a person crop into a fixed-length L2-normalized
// vector. Embeddings from different embedder configurations must not be
// compared against each other.
type Embedder interface {
	Embed(ctx context.Context, crop *vision.Frame) (*Result, error)
	Name() string
}

// NewEmbedder picks the embedding path once at startup: the learned
// model when the inference sidecar answers its health probe, the
// deterministic descriptor otherwise. The choice is never revisited per
// call.
func NewEmbedder(cfg *config.InferenceConfig) Embedder {
	client := NewModelClient(cfg.URL, cfg.Timeout)

	probeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(probeCtx); err != nil {
		log.Printf("reid model unavailable, falling back to descriptor embedder: %v", err)
		return NewDescriptorEmbedder()
	}

	log.Printf("reid model ready at %s", cfg.URL)
	return &ModelEmbedder{client: client, fallback: NewDescriptorEmbedder()}
}

// ModelEmbedder extracts embeddings through the learned
// re-identification network hosted by the inference sidecar. Inference
// failures at call time degrade to the descriptor path for that call.
type ModelEmbedder struct {
	client   *ModelClient
	fallback *DescriptorEmbedder
}

func (e *ModelEmbedder) Name() string {
	return "model"
}

func (e *ModelEmbedder) Embed(ctx context.Context, crop *vision.Frame) (*Result, error) {
	imageData, err := crop.EncodeJPEG()
	if err != nil {
		return e.degrade(ctx, crop, err)
	}

	vec, err := e.client.ComputeEmbedding(ctx, imageData)
	if err != nil {
		return e.degrade(ctx, crop, err)
	}

	return &Result{Vector: Normalize(vec), Source: SourceModel}, nil
}

func (e *ModelEmbedder) degrade(ctx context.Context, crop *vision.Frame, cause error) (*Result, error) {
	log.Printf("model embedding failed, degrading to descriptor: %v", cause)
	return e.fallback.Embed(ctx, crop)
}

// DescriptorEmbedder is the deterministic hand-crafted fallback: color
// histograms plus sampled gradient texture. See descriptor.go.
type DescriptorEmbedder struct{}

func NewDescriptorEmbedder() *DescriptorEmbedder {
	return &DescriptorEmbedder{}
}

func (e *DescriptorEmbedder) Name() string {
	return "descriptor"
}

func (e *DescriptorEmbedder) Embed(ctx context.Context, crop *vision.Frame) (*Result, error) {
	vec, err := computeDescriptor(crop)
	if err != nil {
		// Never fail the request over a feature-extraction problem; a
		// random unit vector keeps the pipeline alive but the match it
		// produces is noise, so log it loudly.
		log.Printf("DATA QUALITY: descriptor extraction failed, emitting random embedding: %v", err)
		return &Result{Vector: randomUnitVector(randomVectorDim), Source: SourceRandom}, nil
	}
	return &Result{Vector: vec, Source: SourceDescriptor}, nil
}

func randomUnitVector(dim int) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = float32(rand.NormFloat64())
	}
	return Normalize(v)
}
