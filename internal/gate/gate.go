// Package gate decides whether an individual transmission is currently
// permitted: the send-window policy and the warm-up rate policy. Both are
// re-checked before every attempt.
package gate

import (
	"fmt"
	"time"

	"outreach-engine-go/internal/config"
	"outreach-engine-go/internal/store"
)

// WarmupStore is the persistence surface the gate drives.
type WarmupStore interface {
	ReserveSend(now time.Time, capFor func(ageDays int) int) (store.Reservation, error)
	ReleaseSend(now time.Time) error
	WarmupStats(now time.Time) (store.WarmupStats, error)
}

// Gate evaluates the send window and warm-up policy.
type Gate struct {
	store WarmupStore
	cfg   config.OutreachConfig
}

func New(s WarmupStore, cfg config.OutreachConfig) *Gate {
	return &Gate{store: s, cfg: cfg}
}

// WindowOpen reports whether now falls on an allowed weekday inside the
// configured [start, end] window, with a reason when it does not.
func (g *Gate) WindowOpen(now time.Time) (bool, string) {
	day := now.Format("Mon")
	allowed := false
	for _, d := range g.cfg.SendDays {
		if d == day {
			allowed = true
			break
		}
	}
	if !allowed {
		return false, fmt.Sprintf("today (%s) is not a send day", day)
	}

	start, err := config.ParseClock(g.cfg.SendWindowStart)
	if err != nil {
		return false, fmt.Sprintf("invalid send window start: %v", err)
	}
	end, err := config.ParseClock(g.cfg.SendWindowEnd)
	if err != nil {
		return false, fmt.Sprintf("invalid send window end: %v", err)
	}

	minute := now.Hour()*60 + now.Minute()
	if minute < start {
		return false, fmt.Sprintf("before send window (starts at %s)", g.cfg.SendWindowStart)
	}
	if minute > end {
		return false, fmt.Sprintf("after send window (ended at %s)", g.cfg.SendWindowEnd)
	}
	return true, ""
}

// CapForAge maps the sending identity's age in days to a daily cap.
// Zero means unlimited.
func (g *Gate) CapForAge(ageDays int) int {
	w := g.cfg.Warmup
	switch {
	case ageDays < 7:
		return w.Week1Limit
	case ageDays < 14:
		return w.Week2Limit
	case ageDays < 21:
		return w.Week3Limit
	case ageDays < 28:
		return w.Week4Limit
	default:
		return 0
	}
}

// Reserve atomically claims one warm-up slot for a send at now. When the
// daily cap is already used up it returns allowed=false with a deferral
// reason. A claimed slot must be returned with Release if the transmission
// never happens.
func (g *Gate) Reserve(now time.Time) (bool, string, error) {
	res, err := g.store.ReserveSend(now, g.CapForAge)
	if err != nil {
		return false, "", fmt.Errorf("reserve warm-up slot: %w", err)
	}
	if !res.Allowed {
		return false, fmt.Sprintf("warm-up limit reached (%d/%d)", res.SentToday, res.Cap), nil
	}
	return true, "", nil
}

// Release returns a slot claimed by Reserve after a failed transmission.
func (g *Gate) Release(now time.Time) error {
	return g.store.ReleaseSend(now)
}

// Status describes the warm-up state for operator display.
type Status struct {
	FirstSendDate string `json:"first_send_date"`
	AgeDays       int    `json:"age_days"`
	Week          int    `json:"week"`
	SentToday     int    `json:"sent_today"`
	DailyCap      int    `json:"daily_cap"` // 0 means unlimited
}

// Status reports the current warm-up state.
func (g *Gate) Status(now time.Time) (Status, error) {
	stats, err := g.store.WarmupStats(now)
	if err != nil {
		return Status{}, fmt.Errorf("load warm-up stats: %w", err)
	}
	week := stats.AgeDays/7 + 1
	if week > 5 {
		week = 5
	}
	return Status{
		FirstSendDate: stats.FirstSendDate,
		AgeDays:       stats.AgeDays,
		Week:          week,
		SentToday:     stats.SentToday,
		DailyCap:      g.CapForAge(stats.AgeDays),
	}, nil
}
