package verify

import (
	"regexp"
	"strconv"
	"strings"
)

// defaultConfidence applies when the model affirms a match but omits a
// parseable confidence number.
const defaultConfidence = 0.8

var confidencePattern = regexp.MustCompile(`(?i)confidence[:\s]+([0-9.]+)`)

// parseOpinion interprets free-form model output. The format in the
// prompt is a request, not a guarantee, so parsing is lenient: any
// affirmative wording counts as a yes and the confidence falls back to a
// default when the number is missing or malformed.
func parseOpinion(raw string) *Opinion {
	lowered := strings.ToLower(raw)

	// "same" alone is not affirmative when it is part of a negation.
	same := strings.Contains(lowered, "yes") || strings.Contains(lowered, "same")
	if strings.Contains(lowered, "not the same") || strings.Contains(lowered, "answer: no") {
		same = false
	}

	confidence := defaultConfidence
	if m := confidencePattern.FindStringSubmatch(raw); m != nil {
		if v, err := strconv.ParseFloat(strings.TrimRight(m[1], "."), 64); err == nil && v >= 0 && v <= 1 {
			confidence = v
		}
	}

	return &Opinion{
		IsSamePerson: same,
		Confidence:   confidence,
		Raw:          raw,
	}
}
