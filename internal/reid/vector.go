package reid

import "math"

// normEpsilon guards L2 normalization against division by zero.
const normEpsilon = 1e-8

// Confidence is the coarse tier derived from a similarity score. It is
// policy separate from the same-person decision threshold: a high tier
// does not by itself mean the two embeddings crossed the threshold.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Tier boundaries are inclusive on the lower bound.
const (
	tierHighFloor   = 0.8
	tierMediumFloor = 0.6
)

// Normalize returns the L2-normalized copy of v.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum) + normEpsilon

	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// Similarity computes the cosine similarity of two embeddings, rescaled
// from [-1, 1] to [0, 1]. Both vectors are re-normalized, so callers
// may pass raw vectors. Mismatched lengths or empty vectors score 0.
func Similarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	cos := dot / ((math.Sqrt(normA) + normEpsilon) * (math.Sqrt(normB) + normEpsilon))
	if cos > 1 {
		cos = 1
	}
	if cos < -1 {
		cos = -1
	}

	return (cos + 1) / 2
}

// Tier maps a similarity score in [0, 1] to its confidence tier.
func Tier(score float64) Confidence {
	switch {
	case score >= tierHighFloor:
		return ConfidenceHigh
	case score >= tierMediumFloor:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}
