// Package alert sends security notifications when a pickup does not
// match any recent drop-off. Telegram and Twilio SMS channels are
// supported; both are optional and failures never block the match
// decision.
package alert

import (
	"context"
	"log"

	"github.com/google/uuid"

	"github.com/SamarthP7704/cycle-guard-makeuc/internal/config"
)

// Notifier sends a security alert for a failed pickup match.
type Notifier interface {
	// SendSecurityAlert reports whether at least one channel delivered
	// the alert.
	SendSecurityAlert(ctx context.Context, eventID uuid.UUID, score float64, imagePath string) bool
	Configured() bool
}

// New builds a notifier over every configured channel. With nothing
// configured it returns a no-op notifier.
func New(telegram *config.TelegramConfig, twilio *config.TwilioConfig) Notifier {
	var channels []channel
	if telegram.BotToken != "" && telegram.ChatID != "" {
		channels = append(channels, NewTelegramChannel(telegram))
	}
	if twilio.AccountSID != "" && twilio.AuthToken != "" && twilio.FromNumber != "" && twilio.ToNumber != "" {
		channels = append(channels, NewTwilioChannel(twilio))
	}
	return &multiNotifier{channels: channels}
}

// channel is a single delivery mechanism.
type channel interface {
	send(ctx context.Context, eventID uuid.UUID, score float64, imagePath string) error
	name() string
}

type multiNotifier struct {
	channels []channel
}

func (n *multiNotifier) Configured() bool {
	return len(n.channels) > 0
}

func (n *multiNotifier) SendSecurityAlert(ctx context.Context, eventID uuid.UUID, score float64, imagePath string) bool {
	delivered := false
	for _, ch := range n.channels {
		if err := ch.send(ctx, eventID, score, imagePath); err != nil {
			log.Printf("alert: %s delivery failed: %v", ch.name(), err)
			continue
		}
		delivered = true
	}
	return delivered
}
