package verify

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultHTTPChatURL   = "http://localhost:8080"
	defaultHTTPChatModel = "llava"
)

// HTTPVerifier compares person crops through any OpenAI-compatible chat
// endpoint, such as a local llama.cpp server.
type HTTPVerifier struct {
	parsedURL *url.URL
	model     string
	client    *http.Client
}

func NewHTTPVerifier(baseURL, model string, timeout time.Duration) (*HTTPVerifier, error) {
	if baseURL == "" {
		baseURL = defaultHTTPChatURL
	}
	if model == "" {
		model = defaultHTTPChatModel
	}
	parsed, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid verifier URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("invalid verifier URL scheme %q: must be http or https", parsed.Scheme)
	}
	if parsed.Host == "" {
		return nil, errors.New("invalid verifier URL: missing host")
	}
	return &HTTPVerifier{
		parsedURL: parsed,
		model:     model,
		client:    &http.Client{Timeout: timeout},
	}, nil
}

func (v *HTTPVerifier) Name() string {
	return v.model
}

func (v *HTTPVerifier) Configured() bool {
	return true
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
	Stream      bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type chatContentPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *chatImageURL `json:"image_url,omitempty"`
}

type chatImageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (v *HTTPVerifier) Compare(ctx context.Context, dropoffCrop, pickupCrop []byte) (*Opinion, error) {
	dropoffURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(dropoffCrop)
	pickupURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(pickupCrop)

	reqBody := chatRequest{
		Model: v.model,
		Messages: []chatMessage{
			{Role: "system", Content: comparePersonPrompt},
			{
				Role: "user",
				Content: []chatContentPart{
					{Type: "text", Text: "First image: drop-off. Second image: pickup."},
					{Type: "image_url", ImageURL: &chatImageURL{URL: dropoffURL}},
					{Type: "image_url", ImageURL: &chatImageURL{URL: pickupURL}},
				},
			},
		},
		MaxTokens:   200,
		Temperature: 0.1,
		Stream:      false,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	reqURL := v.parsedURL.JoinPath("/v1/chat/completions")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL.String(), bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return nil, errors.New("no choices in response")
	}

	return parseOpinion(chatResp.Choices[0].Message.Content), nil
}
