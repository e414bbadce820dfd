// Package mailer provides the outbound transports: SMTP and the Gmail API.
package mailer

import (
	"context"
	"errors"
	"fmt"

	"outreach-engine-go/internal/config"
)

// Message is one outbound transmission: a primary recipient, an ordered CC
// list, and a plain-text body. HTMLBody is optional and additive.
type Message struct {
	To       string
	CC       []string
	Subject  string
	Body     string
	HTMLBody string
}

// Mailer performs one transmission per call.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// ErrBounced marks a transmission refused because of the recipient address.
// Transports wrap it so callers can distinguish bounces from transient
// transport failures with errors.Is.
var ErrBounced = errors.New("recipient refused")

// IsBounce reports whether a send error was a recipient refusal.
func IsBounce(err error) bool {
	return errors.Is(err, ErrBounced)
}

// New selects the configured transport: Gmail API when enabled, SMTP
// otherwise.
func New(cfg *config.Config) (Mailer, error) {
	if cfg.Gmail.Enabled {
		m, err := NewGmail(cfg.Sender, cfg.Gmail)
		if err != nil {
			return nil, fmt.Errorf("init gmail transport: %w", err)
		}
		return m, nil
	}
	m, err := NewSMTP(cfg.Sender, cfg.SMTP)
	if err != nil {
		return nil, fmt.Errorf("init smtp transport: %w", err)
	}
	return m, nil
}
