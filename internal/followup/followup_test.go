package followup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"outreach-engine-go/internal/config"
	"outreach-engine-go/internal/mailer"
	"outreach-engine-go/internal/model"
	"outreach-engine-go/internal/sender"
	"outreach-engine-go/internal/template"
)

type fakeStore struct {
	due        []model.OutreachBatch
	increments []increment
}

type increment struct {
	id       uint
	expected int
	next     *time.Time
}

func (f *fakeStore) DueFollowups(now time.Time, intervals []time.Duration, maxFollowups int) ([]model.OutreachBatch, error) {
	return f.due, nil
}

func (f *fakeStore) IncrementFollowup(id uint, expected int, next *time.Time) error {
	f.increments = append(f.increments, increment{id, expected, next})
	return nil
}

type fakeSender struct {
	outcomes []sender.Outcome
	sent     []mailer.Message
}

func (f *fakeSender) Send(_ context.Context, msg mailer.Message) sender.Outcome {
	f.sent = append(f.sent, msg)
	out := f.outcomes[0]
	if len(f.outcomes) > 1 {
		f.outcomes = f.outcomes[1:]
	}
	return out
}

func policy() config.OutreachConfig {
	return config.OutreachConfig{
		Followup1Days: 7,
		Followup2Days: 14,
		MaxFollowups:  2,
	}
}

func newRenderer(t *testing.T) *template.Renderer {
	t.Helper()
	r, err := template.NewRenderer(config.SenderConfig{Name: "Alex Hargreaves", Phone: "+44 20 7946 0000"})
	require.NoError(t, err)
	return r
}

func sentBatch(t *testing.T, id uint, followups int, sentAt time.Time) model.OutreachBatch {
	t.Helper()
	b := model.OutreachBatch{
		ID:            id,
		Organization:  "Firm One",
		Status:        model.StatusSent,
		Subject:       "Expression of Interest - Acme Ltd",
		SentAt:        &sentAt,
		FollowUpCount: followups,
	}
	require.NoError(t, b.SetRecipients([]model.Recipient{
		{Name: "Jane Price", Email: "jane@firmone.co.uk"},
		{Name: "Tom Reid", Email: "tom@firmone.co.uk"},
	}))
	require.NoError(t, b.SetOpportunities([]model.OpportunitySummary{
		{ID: "n1", OrganizationName: "Acme Ltd", Score: 60},
	}))
	return b
}

func TestIntervals(t *testing.T) {
	s := New(&fakeStore{}, newRenderer(t), &fakeSender{}, policy())
	got := s.Intervals()
	require.Len(t, got, 2)
	assert.Equal(t, 7*24*time.Hour, got[0])
	assert.Equal(t, 14*24*time.Hour, got[1])
}

func TestProcessSendsFirstFollowup(t *testing.T) {
	now := time.Date(2026, 3, 20, 10, 0, 0, 0, time.UTC)
	sentAt := now.AddDate(0, 0, -8)
	store := &fakeStore{due: []model.OutreachBatch{sentBatch(t, 1, 0, sentAt)}}
	snd := &fakeSender{outcomes: []sender.Outcome{{Status: sender.StatusSent}}}

	s := NewWithClock(store, newRenderer(t), snd, policy(), func() time.Time { return now })
	result, err := s.Process(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Due)
	assert.Equal(t, 1, result.Sent)

	require.Len(t, snd.sent, 1)
	assert.Equal(t, "Re: Expression of Interest - Acme Ltd", snd.sent[0].Subject)
	assert.Equal(t, "jane@firmone.co.uk", snd.sent[0].To)
	assert.Equal(t, []string{"tom@firmone.co.uk"}, snd.sent[0].CC)

	require.Len(t, store.increments, 1)
	assert.Equal(t, uint(1), store.increments[0].id)
	assert.Equal(t, 0, store.increments[0].expected)
	// second follow-up becomes due 14 days after the original send
	require.NotNil(t, store.increments[0].next)
	assert.Equal(t, sentAt.Add(14*24*time.Hour), *store.increments[0].next)
}

func TestProcessFinalFollowupClearsNextDate(t *testing.T) {
	now := time.Date(2026, 3, 20, 10, 0, 0, 0, time.UTC)
	sentAt := now.AddDate(0, 0, -15)
	store := &fakeStore{due: []model.OutreachBatch{sentBatch(t, 2, 1, sentAt)}}
	snd := &fakeSender{outcomes: []sender.Outcome{{Status: sender.StatusSent}}}

	s := NewWithClock(store, newRenderer(t), snd, policy(), func() time.Time { return now })
	_, err := s.Process(context.Background())
	require.NoError(t, err)

	require.Len(t, store.increments, 1)
	assert.Nil(t, store.increments[0].next)
	// final variant body
	assert.Contains(t, snd.sent[0].Body, "one last time")
}

func TestProcessDeferralStopsPass(t *testing.T) {
	now := time.Date(2026, 3, 20, 10, 0, 0, 0, time.UTC)
	sentAt := now.AddDate(0, 0, -8)
	store := &fakeStore{due: []model.OutreachBatch{
		sentBatch(t, 1, 0, sentAt),
		sentBatch(t, 2, 0, sentAt),
		sentBatch(t, 3, 0, sentAt),
	}}
	snd := &fakeSender{outcomes: []sender.Outcome{
		{Status: sender.StatusSent},
		{Status: sender.StatusDeferred, Detail: "warm-up limit reached (5/5)"},
	}}

	s := NewWithClock(store, newRenderer(t), snd, policy(), func() time.Time { return now })
	result, err := s.Process(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Sent)
	assert.Equal(t, 2, result.Deferred)
	assert.Len(t, snd.sent, 2)
	assert.Len(t, store.increments, 1)
}

func TestProcessFailureDoesNotStopPass(t *testing.T) {
	now := time.Date(2026, 3, 20, 10, 0, 0, 0, time.UTC)
	sentAt := now.AddDate(0, 0, -8)
	store := &fakeStore{due: []model.OutreachBatch{
		sentBatch(t, 1, 0, sentAt),
		sentBatch(t, 2, 0, sentAt),
	}}
	snd := &fakeSender{outcomes: []sender.Outcome{
		{Status: sender.StatusFailed, Detail: "connection refused"},
		{Status: sender.StatusSent},
	}}

	s := NewWithClock(store, newRenderer(t), snd, policy(), func() time.Time { return now })
	result, err := s.Process(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 1, result.Sent)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "batch 1")
}

func TestProcessDryRunChangesNothing(t *testing.T) {
	now := time.Date(2026, 3, 20, 10, 0, 0, 0, time.UTC)
	sentAt := now.AddDate(0, 0, -8)
	store := &fakeStore{due: []model.OutreachBatch{sentBatch(t, 1, 0, sentAt)}}
	snd := &fakeSender{outcomes: []sender.Outcome{{Status: sender.StatusDryRun}}}

	s := NewWithClock(store, newRenderer(t), snd, policy(), func() time.Time { return now })
	result, err := s.Process(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.DryRun)
	assert.Empty(t, store.increments)
}
