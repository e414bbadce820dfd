package gate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"outreach-engine-go/internal/config"
	"outreach-engine-go/internal/store"
)

type fakeWarmup struct {
	res      store.Reservation
	stats    store.WarmupStats
	capSeen  int
	released int
}

func (f *fakeWarmup) ReserveSend(now time.Time, capFor func(int) int) (store.Reservation, error) {
	f.capSeen = capFor(f.stats.AgeDays)
	return f.res, nil
}

func (f *fakeWarmup) ReleaseSend(now time.Time) error {
	f.released++
	return nil
}

func (f *fakeWarmup) WarmupStats(now time.Time) (store.WarmupStats, error) {
	return f.stats, nil
}

func policy() config.OutreachConfig {
	return config.OutreachConfig{
		SendWindowStart: "09:00",
		SendWindowEnd:   "17:00",
		SendDays:        []string{"Mon", "Tue", "Wed", "Thu", "Fri"},
		Warmup: config.WarmupConfig{
			Week1Limit: 5,
			Week2Limit: 15,
			Week3Limit: 30,
			Week4Limit: 50,
		},
	}
}

func TestWindowOpen(t *testing.T) {
	g := New(&fakeWarmup{}, policy())

	// Monday 2026-03-02
	monday := time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC)
	open, reason := g.WindowOpen(monday)
	assert.True(t, open, reason)

	// Saturday is not a send day
	saturday := time.Date(2026, 3, 7, 10, 30, 0, 0, time.UTC)
	open, reason = g.WindowOpen(saturday)
	assert.False(t, open)
	assert.Contains(t, reason, "not a send day")

	early := time.Date(2026, 3, 2, 8, 59, 0, 0, time.UTC)
	open, reason = g.WindowOpen(early)
	assert.False(t, open)
	assert.Contains(t, reason, "before send window")

	late := time.Date(2026, 3, 2, 17, 1, 0, 0, time.UTC)
	open, reason = g.WindowOpen(late)
	assert.False(t, open)
	assert.Contains(t, reason, "after send window")

	// boundary minutes are inside the window
	open, _ = g.WindowOpen(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	assert.True(t, open)
	open, _ = g.WindowOpen(time.Date(2026, 3, 2, 17, 0, 0, 0, time.UTC))
	assert.True(t, open)
}

func TestCapForAgeTiers(t *testing.T) {
	g := New(&fakeWarmup{}, policy())

	assert.Equal(t, 5, g.CapForAge(0))
	assert.Equal(t, 5, g.CapForAge(6))
	assert.Equal(t, 15, g.CapForAge(7))
	assert.Equal(t, 15, g.CapForAge(13))
	assert.Equal(t, 30, g.CapForAge(14))
	assert.Equal(t, 50, g.CapForAge(21))
	assert.Equal(t, 50, g.CapForAge(27))
	assert.Equal(t, 0, g.CapForAge(28))
	assert.Equal(t, 0, g.CapForAge(365))
}

func TestReserveDeferredAtCap(t *testing.T) {
	// age 10 days with 15 already sent: the week-two cap is exhausted
	f := &fakeWarmup{
		res:   store.Reservation{Allowed: false, SentToday: 15, Cap: 15},
		stats: store.WarmupStats{AgeDays: 10},
	}
	g := New(f, policy())

	allowed, reason, err := g.Reserve(time.Now())
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, "warm-up limit reached (15/15)", reason)
	assert.Equal(t, 15, f.capSeen)
}

func TestReserveAllowed(t *testing.T) {
	f := &fakeWarmup{
		res:   store.Reservation{Allowed: true, SentToday: 3, Cap: 5},
		stats: store.WarmupStats{AgeDays: 2},
	}
	g := New(f, policy())

	allowed, reason, err := g.Reserve(time.Now())
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Empty(t, reason)
}

func TestStatus(t *testing.T) {
	f := &fakeWarmup{
		stats: store.WarmupStats{FirstSendDate: "2026-03-02", AgeDays: 10, SentToday: 4},
	}
	g := New(f, policy())

	st, err := g.Status(time.Now())
	require.NoError(t, err)
	assert.Equal(t, 2, st.Week)
	assert.Equal(t, 15, st.DailyCap)
	assert.Equal(t, 4, st.SentToday)

	f.stats.AgeDays = 40
	st, err = g.Status(time.Now())
	require.NoError(t, err)
	assert.Equal(t, 5, st.Week)
	assert.Equal(t, 0, st.DailyCap)
}
