package alert

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/SamarthP7704/cycle-guard-makeuc/internal/config"
)

const twilioAPIBase = "https://api.twilio.com"

// TwilioChannel delivers alerts as SMS through the Twilio REST API.
type TwilioChannel struct {
	accountSID string
	authToken  string
	fromNumber string
	toNumber   string
	baseURL    string // overridable in tests
	client     *http.Client
}

func NewTwilioChannel(cfg *config.TwilioConfig) *TwilioChannel {
	return &TwilioChannel{
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		fromNumber: cfg.FromNumber,
		toNumber:   cfg.ToNumber,
		baseURL:    twilioAPIBase,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *TwilioChannel) name() string {
	return "twilio"
}

func (t *TwilioChannel) send(ctx context.Context, eventID uuid.UUID, score float64, imagePath string) error {
	form := url.Values{}
	form.Set("From", t.fromNumber)
	form.Set("To", t.toNumber)
	form.Set("Body", alertCaption(eventID, score))

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", t.baseURL, t.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(t.accountSID, t.authToken)

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("twilio API error (status %d): %s", resp.StatusCode, string(body))
	}
	return nil
}
