package summary

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"outreach-engine-go/internal/gate"
	"outreach-engine-go/internal/model"
	"outreach-engine-go/internal/store"
)

func TestTextSummary(t *testing.T) {
	replied := time.Date(2026, 3, 19, 15, 0, 0, 0, time.UTC)
	in := Input{
		Date: time.Date(2026, 3, 20, 9, 0, 0, 0, time.UTC),
		Stats: store.PipelineStats{
			QueuedCount:   3,
			ApprovedCount: 1,
			AwaitingReply: 4,
			RepliedCount:  2,
			ResponseRate:  33.3,
			SentToday:     2,
		},
		Warmup: gate.Status{
			FirstSendDate: "2026-03-10",
			AgeDays:       10,
			Week:          2,
			SentToday:     2,
			DailyCap:      15,
		},
		FollowupsDue: 1,
		RecentReplies: []model.OutreachBatch{
			{ID: 7, Organization: "Firm One", RepliedAt: &replied},
		},
	}

	text := Text(in)
	assert.Contains(t, text, "OUTREACH SUMMARY - 20 Mar 2026")
	assert.Contains(t, text, "- Queued: 3")
	assert.Contains(t, text, "- Awaiting response: 4")
	assert.Contains(t, text, "- Response rate: 33.3%")
	assert.Contains(t, text, "- Sender age: 10 days (week 2)")
	assert.Contains(t, text, "- Today: 2/15")
	assert.Contains(t, text, "FOLLOW-UPS DUE: 1")
	assert.Contains(t, text, "#7 Firm One (19 Mar)")
}

func TestTextSummaryNoSendsYet(t *testing.T) {
	text := Text(Input{Date: time.Date(2026, 3, 20, 9, 0, 0, 0, time.UTC)})
	assert.Contains(t, text, "- No sends yet")
	assert.NotContains(t, text, "RECENT REPLIES")
}

func TestReporterSendSkipsWithoutTransport(t *testing.T) {
	r := NewReporter(nil, nil, nil, 2, nil, "ops@example.com")
	assert.NoError(t, r.Send(context.Background()))
}

func TestReporterSendSkipsWithoutAddress(t *testing.T) {
	r := NewReporter(nil, nil, nil, 2, nil, "")
	assert.NoError(t, r.Send(context.Background()))
}

func TestTextSummaryUncappedWarmup(t *testing.T) {
	text := Text(Input{
		Date:   time.Date(2026, 3, 20, 9, 0, 0, 0, time.UTC),
		Warmup: gate.Status{FirstSendDate: "2026-01-01", AgeDays: 78, Week: 5, SentToday: 64},
	})
	assert.Contains(t, text, "- Today: 64 (no cap)")
}
