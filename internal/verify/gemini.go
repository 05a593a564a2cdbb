package verify

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.5-flash"

// GeminiVerifier compares person crops through the Gemini API.
type GeminiVerifier struct {
	client *genai.Client
	model  string
}

func NewGeminiVerifier(ctx context.Context, apiKey, model string) (*GeminiVerifier, error) {
	if model == "" {
		model = defaultGeminiModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiVerifier{client: client, model: model}, nil
}

func (v *GeminiVerifier) Name() string {
	return v.model
}

func (v *GeminiVerifier) Configured() bool {
	return true
}

func (v *GeminiVerifier) Compare(ctx context.Context, dropoffCrop, pickupCrop []byte) (*Opinion, error) {
	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: comparePersonPrompt + "\n\nFirst image: drop-off. Second image: pickup."},
				{InlineData: &genai.Blob{Data: dropoffCrop, MIMEType: "image/jpeg"}},
				{InlineData: &genai.Blob{Data: pickupCrop, MIMEType: "image/jpeg"}},
			},
		},
	}

	result, err := v.client.Models.GenerateContent(ctx, v.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("gemini API error: %w", err)
	}

	content := result.Text()
	if content == "" {
		return nil, errors.New("no response from Gemini")
	}

	return parseOpinion(content), nil
}
