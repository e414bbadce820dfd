// Package sender performs individual outbound transmissions under the
// admission gate and classifies their outcomes.
package sender

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"outreach-engine-go/internal/config"
	"outreach-engine-go/internal/mailer"
)

// Status classifies the result of one send attempt.
type Status string

const (
	StatusSent     Status = "sent"     // transmitted successfully
	StatusDryRun   Status = "dry-run"  // short-circuited before any side effect
	StatusSkipped  Status = "skipped"  // transport configuration incomplete
	StatusDeferred Status = "deferred" // window closed or warm-up cap reached; not an error
	StatusBounced  Status = "bounced"  // recipient refused; caller blocklists
	StatusFailed   Status = "failed"   // transient transport error; retried next run
)

// Outcome is the classified result of a send attempt.
type Outcome struct {
	Status         Status
	Detail         string
	BouncedAddress string
}

// Gate is the admission check performed before every transmission.
type Gate interface {
	WindowOpen(now time.Time) (bool, string)
	Reserve(now time.Time) (bool, string, error)
	Release(now time.Time) error
}

// Sender sends one message per call: dry-run short-circuit, window check,
// atomic warm-up reservation, then a single transmission with no in-run
// retry.
type Sender struct {
	mailer     mailer.Mailer
	gate       Gate
	cfg        config.OutreachConfig
	configErrs []string
	warnOnce   sync.Once
	now        func() time.Time
}

func New(m mailer.Mailer, g Gate, cfg config.OutreachConfig, configErrs []string) *Sender {
	return &Sender{mailer: m, gate: g, cfg: cfg, configErrs: configErrs, now: time.Now}
}

// NewWithClock is New with an injected clock for tests.
func NewWithClock(m mailer.Mailer, g Gate, cfg config.OutreachConfig, configErrs []string, now func() time.Time) *Sender {
	return &Sender{mailer: m, gate: g, cfg: cfg, configErrs: configErrs, now: now}
}

// Send attempts one transmission. The dry-run check runs before any side
// effect, so a dry run never changes persisted state.
func (s *Sender) Send(ctx context.Context, msg mailer.Message) Outcome {
	if s.cfg.DryRun {
		logrus.Infof("[DRY RUN] Would send %q to %s (cc: %d)", msg.Subject, msg.To, len(msg.CC))
		return Outcome{Status: StatusDryRun, Detail: "dry run: would send to " + msg.To}
	}

	if len(s.configErrs) > 0 {
		s.warnOnce.Do(func() {
			logrus.Warnf("Transport not configured, skipping all sends: %s", strings.Join(s.configErrs, "; "))
		})
		return Outcome{Status: StatusSkipped, Detail: strings.Join(s.configErrs, "; ")}
	}

	now := s.now()
	if open, reason := s.gate.WindowOpen(now); !open {
		return Outcome{Status: StatusDeferred, Detail: reason}
	}

	allowed, reason, err := s.gate.Reserve(now)
	if err != nil {
		return Outcome{Status: StatusFailed, Detail: err.Error()}
	}
	if !allowed {
		return Outcome{Status: StatusDeferred, Detail: reason}
	}

	if s.cfg.TestRecipient != "" {
		logrus.Warnf("Test mode: rerouting send for %s to %s", msg.To, s.cfg.TestRecipient)
		msg.To = s.cfg.TestRecipient
		msg.CC = nil
	}

	if err := s.mailer.Send(ctx, msg); err != nil {
		if mailer.IsBounce(err) {
			// the SMTP transaction happened, so the warm-up slot stays used
			logrus.WithError(err).Warnf("Bounce from %s", msg.To)
			return Outcome{Status: StatusBounced, Detail: err.Error(), BouncedAddress: msg.To}
		}
		if relErr := s.gate.Release(now); relErr != nil {
			logrus.WithError(relErr).Warn("Could not release warm-up slot after failed send")
		}
		logrus.WithError(err).Errorf("Send to %s failed", msg.To)
		return Outcome{Status: StatusFailed, Detail: err.Error()}
	}

	logrus.WithFields(logrus.Fields{
		"to":      msg.To,
		"cc":      len(msg.CC),
		"subject": msg.Subject,
	}).Info("Email sent")
	return Outcome{Status: StatusSent}
}
