package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"outreach-engine-go/internal/database"
	"outreach-engine-go/internal/model"
)

func newTestStore(t *testing.T, now func() time.Time) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	if now == nil {
		now = time.Now
	}
	return NewWithClock(db, now)
}

func makeBatch(t *testing.T, s *Store, org string, score int) *model.OutreachBatch {
	t.Helper()
	b := &model.OutreachBatch{
		Organization: org,
		Subject:      "Expression of Interest - " + org,
		Body:         "body",
	}
	require.NoError(t, b.SetRecipients([]model.Recipient{
		{Name: "Jane Price", Email: "jane@" + org + ".example"},
	}))
	require.NoError(t, b.SetOpportunities([]model.OpportunitySummary{
		{ID: "n-" + org, OrganizationName: org, RegistrationID: "reg-" + org, Score: score},
	}))
	require.NoError(t, s.CreateBatch(b, []model.BatchOpportunity{
		{OpportunityID: "n-" + org, OrganizationName: org, RegistrationID: "reg-" + org, Score: score},
	}))
	return b
}

func TestCreateBatchRoundTrip(t *testing.T) {
	s := newTestStore(t, nil)
	b := makeBatch(t, s, "firmone", 72)

	loaded, err := s.Batch(b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusQueued, loaded.Status)
	assert.Equal(t, "firmone", loaded.Organization)

	rs, err := loaded.Recipients()
	require.NoError(t, err)
	require.Len(t, rs, 1)
	assert.Equal(t, "jane@firmone.example", rs[0].Email)

	os, err := loaded.Opportunities()
	require.NoError(t, err)
	require.Len(t, os, 1)
	assert.Equal(t, 72, os[0].Score)
}

func TestBatchNotFound(t *testing.T) {
	s := newTestStore(t, nil)
	_, err := s.Batch(99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStatusPathForward(t *testing.T) {
	s := newTestStore(t, nil)
	b := makeBatch(t, s, "firmone", 50)

	require.NoError(t, s.Approve(b.ID))
	loaded, _ := s.Batch(b.ID)
	assert.Equal(t, model.StatusApproved, loaded.Status)
	assert.NotNil(t, loaded.ApprovedAt)
	assert.Nil(t, loaded.SentAt)

	require.NoError(t, s.MarkSent(b.ID))
	loaded, _ = s.Batch(b.ID)
	assert.Equal(t, model.StatusSent, loaded.Status)
	assert.NotNil(t, loaded.SentAt)

	require.NoError(t, s.MarkReplied(b.ID, "interested"))
	loaded, _ = s.Batch(b.ID)
	assert.Equal(t, model.StatusReplied, loaded.Status)
	assert.NotNil(t, loaded.RepliedAt)
	assert.Contains(t, loaded.Notes, "interested")
}

func TestTransitionGuards(t *testing.T) {
	s := newTestStore(t, nil)
	b := makeBatch(t, s, "firmone", 50)

	// cannot send before approval
	assert.ErrorIs(t, s.MarkSent(b.ID), ErrConflict)

	require.NoError(t, s.Approve(b.ID))
	// double approve loses the race
	assert.ErrorIs(t, s.Approve(b.ID), ErrConflict)

	require.NoError(t, s.MarkSent(b.ID))
	// a second concurrent send attempt must not double-apply
	assert.ErrorIs(t, s.MarkSent(b.ID), ErrConflict)

	// no backward moves once replied
	require.NoError(t, s.MarkReplied(b.ID, ""))
	assert.ErrorIs(t, s.Approve(b.ID), ErrConflict)
	assert.ErrorIs(t, s.Close(b.ID, "late"), ErrConflict)
}

func TestCloseFromAnyNonTerminal(t *testing.T) {
	s := newTestStore(t, nil)

	for _, setup := range []func(id uint){
		func(id uint) {},
		func(id uint) { require.NoError(t, s.Approve(id)) },
		func(id uint) { require.NoError(t, s.Approve(id)); require.NoError(t, s.MarkSent(id)) },
	} {
		b := makeBatch(t, s, "firm", 40)
		setup(b.ID)
		require.NoError(t, s.Close(b.ID, "not a fit"))
		loaded, _ := s.Batch(b.ID)
		assert.Equal(t, model.StatusClosed, loaded.Status)
		assert.Contains(t, loaded.Notes, "not a fit")
	}

	b := makeBatch(t, s, "firm", 40)
	assert.Error(t, s.Close(b.ID, ""))
}

func TestBlocklistCaseInsensitive(t *testing.T) {
	s := newTestStore(t, nil)

	require.NoError(t, s.Block("Jane@FirmOne.co.uk", "bounce"))

	blocked, err := s.IsBlocked("jane@firmone.co.uk")
	require.NoError(t, err)
	assert.True(t, blocked)

	blocked, err = s.IsBlocked("JANE@FIRMONE.CO.UK")
	require.NoError(t, err)
	assert.True(t, blocked)

	// re-block keeps the original reason
	require.NoError(t, s.Block("jane@firmone.co.uk", "manual"))
	entries, err := s.Blocklist()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "bounce", entries[0].Reason)

	require.NoError(t, s.Unblock("Jane@firmone.co.uk"))
	blocked, _ = s.IsBlocked("jane@firmone.co.uk")
	assert.False(t, blocked)
}

func tierCap(age int) int {
	switch {
	case age < 7:
		return 5
	case age < 14:
		return 15
	case age < 21:
		return 30
	case age < 28:
		return 50
	default:
		return 0
	}
}

func TestReserveSendFirstEver(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	s := newTestStore(t, func() time.Time { return now })

	res, err := s.ReserveSend(now, tierCap)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 1, res.SentToday)
	assert.Equal(t, 5, res.Cap) // age 0 is week one

	stats, err := s.WarmupStats(now)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-02", stats.FirstSendDate)
	assert.Equal(t, 0, stats.AgeDays)
	assert.Equal(t, 1, stats.SentToday)
}

func TestReserveSendCapReached(t *testing.T) {
	now := time.Date(2026, 3, 12, 10, 0, 0, 0, time.UTC)
	s := newTestStore(t, func() time.Time { return now })

	// first send 10 days ago, 15 already sent today: cap for age in [7,14) is 15
	require.NoError(t, s.db.Create(&model.WarmupDay{
		Date: "2026-03-02", EmailsSent: 3, FirstSendDate: "2026-03-02",
	}).Error)
	require.NoError(t, s.db.Create(&model.WarmupDay{
		Date: "2026-03-12", EmailsSent: 15, FirstSendDate: "2026-03-02",
	}).Error)

	res, err := s.ReserveSend(now, tierCap)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 15, res.SentToday)
	assert.Equal(t, 15, res.Cap)
}

func TestReserveSendUnlimitedAfterRampUp(t *testing.T) {
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	s := newTestStore(t, func() time.Time { return now })

	// age 30 days: no cap applies no matter the volume
	require.NoError(t, s.db.Create(&model.WarmupDay{
		Date: "2026-04-01", EmailsSent: 500, FirstSendDate: "2026-03-02",
	}).Error)

	res, err := s.ReserveSend(now, tierCap)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 0, res.Cap)
	assert.Equal(t, 501, res.SentToday)
}

func TestReleaseSend(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	s := newTestStore(t, func() time.Time { return now })

	_, err := s.ReserveSend(now, tierCap)
	require.NoError(t, err)
	require.NoError(t, s.ReleaseSend(now))

	stats, err := s.WarmupStats(now)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.SentToday)

	// releasing with nothing reserved must not go negative
	require.NoError(t, s.ReleaseSend(now))
	stats, _ = s.WarmupStats(now)
	assert.Equal(t, 0, stats.SentToday)
}

func TestContactCooldown(t *testing.T) {
	now := time.Date(2026, 3, 12, 10, 0, 0, 0, time.UTC)
	contactedAt := now.AddDate(0, 0, -10)
	s := newTestStore(t, func() time.Time { return contactedAt })

	require.NoError(t, s.RecordContact("01234567", 1))

	// contacted 10 days ago, 30-day cooldown still active
	hit, err := s.WasContactedSince("01234567", now.AddDate(0, 0, -30))
	require.NoError(t, err)
	assert.True(t, hit)

	// at 31 days of cooldown elapsed the organization is eligible again
	later := now.AddDate(0, 0, 21)
	hit, err = s.WasContactedSince("01234567", later.AddDate(0, 0, -30))
	require.NoError(t, err)
	assert.False(t, hit)

	// no registration id, no cooldown
	hit, err = s.WasContactedSince("", now.AddDate(0, 0, -30))
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestDueFollowups(t *testing.T) {
	now := time.Date(2026, 3, 20, 10, 0, 0, 0, time.UTC)
	sentAt := now.AddDate(0, 0, -8)
	s := newTestStore(t, func() time.Time { return sentAt })

	b := makeBatch(t, s, "firmone", 60)
	require.NoError(t, s.Approve(b.ID))
	require.NoError(t, s.MarkSent(b.ID))

	intervals := []time.Duration{7 * 24 * time.Hour, 14 * 24 * time.Hour}

	// sent 8 days ago, first follow-up (7d) is due
	due, err := s.DueFollowups(now, intervals, 2)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, b.ID, due[0].ID)
	assert.Equal(t, 0, due[0].FollowUpCount)

	// after the first follow-up the 14-day interval has not yet elapsed
	require.NoError(t, s.IncrementFollowup(b.ID, 0, nil))
	due, err = s.DueFollowups(now, intervals, 2)
	require.NoError(t, err)
	assert.Empty(t, due)

	// 15 days after the send the second follow-up is due
	due, err = s.DueFollowups(sentAt.AddDate(0, 0, 15), intervals, 2)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, 1, due[0].FollowUpCount)

	// at the cap the batch never appears again, however long it waits
	require.NoError(t, s.IncrementFollowup(b.ID, 1, nil))
	due, err = s.DueFollowups(sentAt.AddDate(1, 0, 0), intervals, 2)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestDueFollowupsExcludesReplied(t *testing.T) {
	now := time.Date(2026, 3, 20, 10, 0, 0, 0, time.UTC)
	sentAt := now.AddDate(0, 0, -10)
	s := newTestStore(t, func() time.Time { return sentAt })

	b := makeBatch(t, s, "firmone", 60)
	require.NoError(t, s.Approve(b.ID))
	require.NoError(t, s.MarkSent(b.ID))
	require.NoError(t, s.MarkReplied(b.ID, ""))

	due, err := s.DueFollowups(now, []time.Duration{7 * 24 * time.Hour}, 2)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestIncrementFollowupGuard(t *testing.T) {
	s := newTestStore(t, nil)
	b := makeBatch(t, s, "firmone", 60)
	require.NoError(t, s.Approve(b.ID))
	require.NoError(t, s.MarkSent(b.ID))

	next := time.Now().AddDate(0, 0, 14)
	require.NoError(t, s.IncrementFollowup(b.ID, 0, &next))
	// a concurrent run with the same expectation loses
	assert.ErrorIs(t, s.IncrementFollowup(b.ID, 0, nil), ErrConflict)

	loaded, _ := s.Batch(b.ID)
	assert.Equal(t, 1, loaded.FollowUpCount)
	assert.NotNil(t, loaded.NextFollowUpDate)
}

func TestPipelineStats(t *testing.T) {
	now := time.Date(2026, 3, 20, 10, 0, 0, 0, time.UTC)
	s := newTestStore(t, func() time.Time { return now })

	queued := makeBatch(t, s, "a", 40)
	_ = queued
	sent := makeBatch(t, s, "b", 50)
	require.NoError(t, s.Approve(sent.ID))
	require.NoError(t, s.MarkSent(sent.ID))
	replied := makeBatch(t, s, "c", 60)
	require.NoError(t, s.Approve(replied.ID))
	require.NoError(t, s.MarkSent(replied.ID))
	require.NoError(t, s.MarkReplied(replied.ID, ""))

	stats, err := s.PipelineStats(now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.QueuedCount)
	assert.Equal(t, int64(1), stats.SentCount)
	assert.Equal(t, int64(1), stats.RepliedCount)
	assert.Equal(t, int64(1), stats.AwaitingReply)
	assert.Equal(t, int64(2), stats.SentToday)
	assert.Equal(t, int64(1), stats.RepliedToday)
	assert.InDelta(t, 50.0, stats.ResponseRate, 0.01)
}
