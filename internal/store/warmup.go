package store

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"outreach-engine-go/internal/model"
)

const warmupDateLayout = "2006-01-02"

// WarmupStats describes the sending identity's ramp-up state.
type WarmupStats struct {
	FirstSendDate string `json:"first_send_date"`
	AgeDays       int    `json:"age_days"`
	SentToday     int    `json:"sent_today"`
}

// Reservation is the result of an atomic warm-up check-and-increment.
type Reservation struct {
	Allowed   bool
	SentToday int
	Cap       int // 0 means unlimited
}

// WarmupStats returns the first send date, sender age, and today's count.
// An empty FirstSendDate means nothing has been sent yet.
func (s *Store) WarmupStats(now time.Time) (WarmupStats, error) {
	stats := WarmupStats{}

	anchor, err := s.firstSendDate(s.db)
	if err != nil {
		return stats, err
	}
	stats.FirstSendDate = anchor
	if anchor != "" {
		stats.AgeDays = daysBetween(anchor, now.Format(warmupDateLayout))
	}

	var day model.WarmupDay
	err = s.db.Where("date = ?", now.Format(warmupDateLayout)).First(&day).Error
	if err == nil {
		stats.SentToday = day.EmailsSent
	} else if err != gorm.ErrRecordNotFound {
		return stats, fmt.Errorf("load warm-up day: %w", err)
	}
	return stats, nil
}

// ReserveSend atomically increments today's counter if it is under the cap
// for the current sender age. capFor maps age in days to a daily cap, 0
// meaning unlimited. The increment-and-compare is a single UPDATE, so two
// overlapping runs cannot both pass the check before either counts.
func (s *Store) ReserveSend(now time.Time, capFor func(ageDays int) int) (Reservation, error) {
	res := Reservation{}
	today := now.Format(warmupDateLayout)

	err := s.db.Transaction(func(tx *gorm.DB) error {
		anchor, err := s.firstSendDate(tx)
		if err != nil {
			return err
		}
		if anchor == "" {
			// very first send; this date becomes the age anchor
			anchor = today
		}

		day := model.WarmupDay{Date: today}
		if err := tx.Where(model.WarmupDay{Date: today}).
			Attrs(model.WarmupDay{FirstSendDate: anchor}).
			FirstOrCreate(&day).Error; err != nil {
			return fmt.Errorf("ensure warm-up day: %w", err)
		}

		res.Cap = capFor(daysBetween(anchor, today))

		upd := tx.Model(&model.WarmupDay{}).
			Where("date = ? AND (? = 0 OR emails_sent < ?)", today, res.Cap, res.Cap).
			UpdateColumn("emails_sent", gorm.Expr("emails_sent + 1"))
		if upd.Error != nil {
			return fmt.Errorf("increment warm-up counter: %w", upd.Error)
		}
		res.Allowed = upd.RowsAffected == 1

		var after model.WarmupDay
		if err := tx.Where("date = ?", today).First(&after).Error; err != nil {
			return fmt.Errorf("reload warm-up day: %w", err)
		}
		res.SentToday = after.EmailsSent
		return nil
	})
	if err != nil {
		return Reservation{}, err
	}
	return res, nil
}

// ReleaseSend returns one reserved slot after a failed transmission so the
// quota is not consumed by emails that never left.
func (s *Store) ReleaseSend(now time.Time) error {
	err := s.db.Model(&model.WarmupDay{}).
		Where("date = ? AND emails_sent > 0", now.Format(warmupDateLayout)).
		UpdateColumn("emails_sent", gorm.Expr("emails_sent - 1")).Error
	if err != nil {
		return fmt.Errorf("release warm-up slot: %w", err)
	}
	return nil
}

func (s *Store) firstSendDate(db *gorm.DB) (string, error) {
	var anchor *string
	err := db.Model(&model.WarmupDay{}).
		Where("first_send_date <> ''").
		Select("MIN(first_send_date)").Scan(&anchor).Error
	if err != nil {
		return "", fmt.Errorf("load first send date: %w", err)
	}
	if anchor == nil {
		return "", nil
	}
	return *anchor, nil
}

func daysBetween(fromISO, toISO string) int {
	from, err1 := time.Parse(warmupDateLayout, fromISO)
	to, err2 := time.Parse(warmupDateLayout, toISO)
	if err1 != nil || err2 != nil {
		return 0
	}
	return int(to.Sub(from).Hours() / 24)
}
