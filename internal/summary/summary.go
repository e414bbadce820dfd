// Package summary builds the operator-facing daily summary and optionally
// emails it.
package summary

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"outreach-engine-go/internal/gate"
	"outreach-engine-go/internal/mailer"
	"outreach-engine-go/internal/model"
	"outreach-engine-go/internal/store"
)

// Input collects everything the summary reports on.
type Input struct {
	Date          time.Time
	Stats         store.PipelineStats
	Warmup        gate.Status
	FollowupsDue  int
	RecentReplies []model.OutreachBatch
}

// Text renders the plain-text summary.
func Text(in Input) string {
	var b strings.Builder

	fmt.Fprintf(&b, "OUTREACH SUMMARY - %s\n", in.Date.Format("02 Jan 2006"))
	b.WriteString(strings.Repeat("=", 50) + "\n\n")

	b.WriteString("PIPELINE STATUS\n")
	b.WriteString(strings.Repeat("-", 30) + "\n")
	fmt.Fprintf(&b, "- Queued: %d\n", in.Stats.QueuedCount)
	fmt.Fprintf(&b, "- Approved: %d\n", in.Stats.ApprovedCount)
	fmt.Fprintf(&b, "- Awaiting response: %d\n", in.Stats.AwaitingReply)
	fmt.Fprintf(&b, "- Replied: %d\n", in.Stats.RepliedCount)
	fmt.Fprintf(&b, "- Response rate: %.1f%%\n", in.Stats.ResponseRate)
	fmt.Fprintf(&b, "- Sent today: %d\n", in.Stats.SentToday)
	b.WriteString("\n")

	b.WriteString("WARM-UP STATUS\n")
	b.WriteString(strings.Repeat("-", 30) + "\n")
	if in.Warmup.FirstSendDate == "" {
		b.WriteString("- No sends yet\n")
	} else {
		fmt.Fprintf(&b, "- Sender age: %d days (week %d)\n", in.Warmup.AgeDays, in.Warmup.Week)
		if in.Warmup.DailyCap > 0 {
			fmt.Fprintf(&b, "- Today: %d/%d\n", in.Warmup.SentToday, in.Warmup.DailyCap)
		} else {
			fmt.Fprintf(&b, "- Today: %d (no cap)\n", in.Warmup.SentToday)
		}
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "FOLLOW-UPS DUE: %d\n", in.FollowupsDue)

	if len(in.RecentReplies) > 0 {
		b.WriteString("\nRECENT REPLIES\n")
		b.WriteString(strings.Repeat("-", 30) + "\n")
		for _, r := range in.RecentReplies {
			when := ""
			if r.RepliedAt != nil {
				when = r.RepliedAt.Format("02 Jan")
			}
			fmt.Fprintf(&b, "- #%d %s (%s)\n", r.ID, r.Organization, when)
		}
	}
	return b.String()
}

// Reporter assembles summaries from live state and can email them.
type Reporter struct {
	store     *store.Store
	gate      *gate.Gate
	intervals []time.Duration
	maxFU     int
	mailer    mailer.Mailer
	to        string
	now       func() time.Time
}

func NewReporter(s *store.Store, g *gate.Gate, intervals []time.Duration, maxFollowups int, m mailer.Mailer, to string) *Reporter {
	return &Reporter{store: s, gate: g, intervals: intervals, maxFU: maxFollowups, mailer: m, to: to, now: time.Now}
}

// Build gathers the current pipeline state into a summary input.
func (r *Reporter) Build() (Input, error) {
	now := r.now()

	stats, err := r.store.PipelineStats(now)
	if err != nil {
		return Input{}, fmt.Errorf("pipeline stats: %w", err)
	}
	warm, err := r.gate.Status(now)
	if err != nil {
		return Input{}, fmt.Errorf("warm-up status: %w", err)
	}
	due, err := r.store.DueFollowups(now, r.intervals, r.maxFU)
	if err != nil {
		return Input{}, fmt.Errorf("due follow-ups: %w", err)
	}
	replies, err := r.store.RecentReplies(5)
	if err != nil {
		return Input{}, fmt.Errorf("recent replies: %w", err)
	}
	return Input{
		Date:          now,
		Stats:         stats,
		Warmup:        warm,
		FollowupsDue:  len(due),
		RecentReplies: replies,
	}, nil
}

// Send emails the summary to the configured operator address. The summary
// goes to the operator, not a prospect, so it bypasses the admission gate.
func (r *Reporter) Send(ctx context.Context) error {
	if r.to == "" {
		return nil
	}
	if r.mailer == nil {
		logrus.Warnf("Summary email to %s skipped: transport not configured", r.to)
		return nil
	}
	in, err := r.Build()
	if err != nil {
		return err
	}
	msg := mailer.Message{
		To:      r.to,
		Subject: fmt.Sprintf("Outreach Summary - %s", in.Date.Format("02 Jan 2006")),
		Body:    Text(in),
	}
	if err := r.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("send summary: %w", err)
	}
	logrus.Infof("Summary sent to %s", r.to)
	return nil
}
