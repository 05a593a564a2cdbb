// Package verify implements the optional secondary identity check: a
// vision language model is shown the drop-off and pickup person crops
// and asked whether they show the same person. Its opinion can override
// a borderline embedding match but is never consulted for clear-cut
// decisions.
package verify

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/SamarthP7704/cycle-guard-makeuc/internal/config"
)

//go:embed prompts/compare_person.txt
var comparePersonPrompt string

// ErrNotConfigured is returned by New when no verifier backend is set up.
var ErrNotConfigured = errors.New("verifier not configured")

// Opinion is the verifier's judgement on a pair of person crops.
type Opinion struct {
	IsSamePerson bool
	Confidence   float64
	Raw          string // unparsed model output, kept for audit
}

// Verifier compares two person crops through a vision model.
type Verifier interface {
	// Compare takes two JPEG-encoded person crops, drop-off first.
	Compare(ctx context.Context, dropoffCrop, pickupCrop []byte) (*Opinion, error)
	Configured() bool
	Name() string
}

// New builds the verifier selected by configuration. An empty provider
// yields a disabled verifier and ErrNotConfigured so callers can choose
// to log or ignore it.
func New(ctx context.Context, cfg *config.VerifierConfig) (Verifier, error) {
	switch cfg.Provider {
	case "":
		return &disabledVerifier{}, ErrNotConfigured
	case "openai":
		if cfg.OpenAIToken == "" {
			return &disabledVerifier{}, fmt.Errorf("openai verifier: missing token: %w", ErrNotConfigured)
		}
		return NewOpenAIVerifier(cfg.OpenAIToken, cfg.Model), nil
	case "gemini":
		if cfg.GeminiKey == "" {
			return &disabledVerifier{}, fmt.Errorf("gemini verifier: missing API key: %w", ErrNotConfigured)
		}
		return NewGeminiVerifier(ctx, cfg.GeminiKey, cfg.Model)
	case "http":
		return NewHTTPVerifier(cfg.URL, cfg.Model, cfg.Timeout)
	default:
		return &disabledVerifier{}, fmt.Errorf("unknown verifier provider %q", cfg.Provider)
	}
}

// disabledVerifier is the stand-in when no backend is configured. The
// matching pipeline checks Configured() before calling Compare.
type disabledVerifier struct{}

func (v *disabledVerifier) Compare(ctx context.Context, dropoffCrop, pickupCrop []byte) (*Opinion, error) {
	return nil, ErrNotConfigured
}

func (v *disabledVerifier) Configured() bool {
	return false
}

func (v *disabledVerifier) Name() string {
	return "disabled"
}
