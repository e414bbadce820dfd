// Package followup schedules and sends follow-up emails for batches that
// have not received a reply.
package followup

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"outreach-engine-go/internal/config"
	"outreach-engine-go/internal/mailer"
	"outreach-engine-go/internal/model"
	"outreach-engine-go/internal/sender"
	"outreach-engine-go/internal/template"
)

// Store is the persistence surface the scheduler needs.
type Store interface {
	DueFollowups(now time.Time, intervals []time.Duration, maxFollowups int) ([]model.OutreachBatch, error)
	IncrementFollowup(id uint, expected int, next *time.Time) error
}

// Sender sends one message and classifies the outcome.
type Sender interface {
	Send(ctx context.Context, msg mailer.Message) sender.Outcome
}

// Result summarizes one follow-up pass.
type Result struct {
	Due      int      `json:"due"`
	Sent     int      `json:"sent"`
	Deferred int      `json:"deferred"`
	Failed   int      `json:"failed"`
	DryRun   int      `json:"dry_run"`
	Errors   []string `json:"errors,omitempty"`
}

// Scheduler finds due follow-ups and sends them under the same admission
// gates as initial sends.
type Scheduler struct {
	store    Store
	renderer *template.Renderer
	sender   Sender
	cfg      config.OutreachConfig
	now      func() time.Time
}

func New(store Store, renderer *template.Renderer, send Sender, cfg config.OutreachConfig) *Scheduler {
	return &Scheduler{store: store, renderer: renderer, sender: send, cfg: cfg, now: time.Now}
}

// NewWithClock is New with an injected clock for tests.
func NewWithClock(store Store, renderer *template.Renderer, send Sender, cfg config.OutreachConfig, now func() time.Time) *Scheduler {
	return &Scheduler{store: store, renderer: renderer, sender: send, cfg: cfg, now: now}
}

// Intervals returns the follow-up offsets, both measured from sent_at.
func (s *Scheduler) Intervals() []time.Duration {
	return []time.Duration{
		time.Duration(s.cfg.Followup1Days) * 24 * time.Hour,
		time.Duration(s.cfg.Followup2Days) * 24 * time.Hour,
	}
}

// Due lists batches whose next follow-up interval has elapsed.
func (s *Scheduler) Due(now time.Time) ([]model.OutreachBatch, error) {
	return s.store.DueFollowups(now, s.Intervals(), s.cfg.MaxFollowups)
}

// Process sends every due follow-up. A deferral (closed window, warm-up cap)
// stops the pass since it applies to every remaining batch; an individual
// failure does not.
func (s *Scheduler) Process(ctx context.Context) (Result, error) {
	result := Result{}

	due, err := s.Due(s.now())
	if err != nil {
		return result, fmt.Errorf("list due follow-ups: %w", err)
	}
	result.Due = len(due)
	if len(due) == 0 {
		return result, nil
	}
	logrus.Infof("%d follow-ups due", len(due))

	for _, b := range due {
		outcome, err := s.sendOne(ctx, b)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("batch %d: %v", b.ID, err))
			continue
		}
		switch outcome.Status {
		case sender.StatusSent:
			result.Sent++
		case sender.StatusDryRun:
			result.DryRun++
		case sender.StatusDeferred:
			result.Deferred += result.Due - result.Sent - result.Failed - result.DryRun
			logrus.Infof("Follow-ups deferred: %s", outcome.Detail)
			return result, nil
		default:
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("batch %d: %s", b.ID, outcome.Detail))
		}
	}
	return result, nil
}

func (s *Scheduler) sendOne(ctx context.Context, b model.OutreachBatch) (sender.Outcome, error) {
	recipients, err := b.Recipients()
	if err != nil {
		return sender.Outcome{}, fmt.Errorf("load recipients: %w", err)
	}
	if len(recipients) == 0 {
		return sender.Outcome{}, fmt.Errorf("batch has no recipients")
	}
	opps, err := b.Opportunities()
	if err != nil {
		return sender.Outcome{}, fmt.Errorf("load opportunities: %w", err)
	}

	n := b.FollowUpCount + 1
	email, err := s.renderer.RenderFollowup(b.Subject, b.Organization, opps, n)
	if err != nil {
		return sender.Outcome{}, err
	}

	msg := mailer.Message{
		To:      recipients[0].Email,
		Subject: email.Subject,
		Body:    email.Body,
	}
	for _, r := range recipients[1:] {
		msg.CC = append(msg.CC, r.Email)
	}

	outcome := s.sender.Send(ctx, msg)
	if outcome.Status != sender.StatusSent {
		return outcome, nil
	}

	next := s.nextFollowupDate(b, n)
	if err := s.store.IncrementFollowup(b.ID, b.FollowUpCount, next); err != nil {
		return outcome, fmt.Errorf("record follow-up %d: %w", n, err)
	}
	logrus.WithFields(logrus.Fields{
		"batch": b.ID,
		"org":   b.Organization,
		"n":     n,
	}).Info("Follow-up sent")
	return outcome, nil
}

// nextFollowupDate returns when follow-up n+1 becomes due, or nil once the
// cap is reached.
func (s *Scheduler) nextFollowupDate(b model.OutreachBatch, justSent int) *time.Time {
	intervals := s.Intervals()
	if justSent >= s.cfg.MaxFollowups || justSent >= len(intervals) || b.SentAt == nil {
		return nil
	}
	next := b.SentAt.Add(intervals[justSent])
	return &next
}
