package store

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"outreach-engine-go/internal/model"
)

var (
	// ErrNotFound is returned when a batch id does not exist.
	ErrNotFound = errors.New("batch not found")
	// ErrConflict is returned when a guarded transition finds the batch in
	// an unexpected status. Concurrent runs racing on the same batch see
	// this instead of double-applying a transition.
	ErrConflict = errors.New("batch status conflict")
)

// Store is the single source of truth for all engine state. Every state
// transition is a single guarded statement so overlapping runs stay safe.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// New creates a Store using the wall clock.
func New(db *gorm.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// NewWithClock creates a Store with an injected clock, for tests.
func NewWithClock(db *gorm.DB, now func() time.Time) *Store {
	return &Store{db: db, now: now}
}

// CreateBatch persists a rendered batch and its per-opportunity detail rows
// in one transaction: both are written or neither is.
func (s *Store) CreateBatch(b *model.OutreachBatch, details []model.BatchOpportunity) error {
	b.Status = model.StatusQueued
	b.CreatedAt = s.now()
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(b).Error; err != nil {
			return fmt.Errorf("create batch: %w", err)
		}
		for i := range details {
			details[i].BatchID = b.ID
		}
		if len(details) > 0 {
			if err := tx.Create(&details).Error; err != nil {
				return fmt.Errorf("create batch detail rows: %w", err)
			}
		}
		return nil
	})
}

// Batch returns a single batch by id.
func (s *Store) Batch(id uint) (*model.OutreachBatch, error) {
	var b model.OutreachBatch
	err := s.db.First(&b, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load batch %d: %w", id, err)
	}
	return &b, nil
}

// BatchesByStatus returns all batches with the given status, oldest first.
func (s *Store) BatchesByStatus(status string) ([]model.OutreachBatch, error) {
	var bs []model.OutreachBatch
	if err := s.db.Where("status = ?", status).Order("created_at").Find(&bs).Error; err != nil {
		return nil, fmt.Errorf("load %s batches: %w", status, err)
	}
	return bs, nil
}

// PendingBatches returns queued and approved batches, oldest first.
func (s *Store) PendingBatches() ([]model.OutreachBatch, error) {
	var bs []model.OutreachBatch
	err := s.db.
		Where("status IN ?", []string{model.StatusQueued, model.StatusApproved}).
		Order("created_at").Find(&bs).Error
	if err != nil {
		return nil, fmt.Errorf("load pending batches: %w", err)
	}
	return bs, nil
}

// AllBatches returns batches most recent first, up to limit.
func (s *Store) AllBatches(limit int) ([]model.OutreachBatch, error) {
	var bs []model.OutreachBatch
	q := s.db.Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&bs).Error; err != nil {
		return nil, fmt.Errorf("load batches: %w", err)
	}
	return bs, nil
}

// RecentReplies returns batches that received replies, most recent first.
func (s *Store) RecentReplies(limit int) ([]model.OutreachBatch, error) {
	var bs []model.OutreachBatch
	err := s.db.Where("replied_at IS NOT NULL").Order("replied_at DESC").Limit(limit).Find(&bs).Error
	if err != nil {
		return nil, fmt.Errorf("load recent replies: %w", err)
	}
	return bs, nil
}

// transition applies updates to a batch only if its current status is one of
// from. RowsAffected distinguishes a lost race from a missing row.
func (s *Store) transition(id uint, from []string, updates map[string]interface{}) error {
	res := s.db.Model(&model.OutreachBatch{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("transition batch %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := s.db.Model(&model.OutreachBatch{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return fmt.Errorf("transition batch %d: %w", id, err)
		}
		if count == 0 {
			return ErrNotFound
		}
		return ErrConflict
	}
	return nil
}

// Approve moves a queued batch to approved.
func (s *Store) Approve(id uint) error {
	return s.transition(id, []string{model.StatusQueued}, map[string]interface{}{
		"status":      model.StatusApproved,
		"approved_at": s.now(),
	})
}

// MarkSent moves an approved batch to sent. Only the Sender calls this,
// after a successful transmission.
func (s *Store) MarkSent(id uint) error {
	return s.transition(id, []string{model.StatusApproved}, map[string]interface{}{
		"status":  model.StatusSent,
		"sent_at": s.now(),
	})
}

// MarkReplied moves a sent batch to replied, recording an optional note.
func (s *Store) MarkReplied(id uint, note string) error {
	updates := map[string]interface{}{
		"status":     model.StatusReplied,
		"replied_at": s.now(),
	}
	if note != "" {
		updates["notes"] = s.appendNote(id, note)
	}
	return s.transition(id, []string{model.StatusSent}, updates)
}

// Close abandons a batch from any non-terminal status. The reason is
// mandatory and recorded in the notes audit trail.
func (s *Store) Close(id uint, reason string) error {
	if reason == "" {
		return fmt.Errorf("closing batch %d requires a reason", id)
	}
	return s.transition(id,
		[]string{model.StatusQueued, model.StatusApproved, model.StatusSent},
		map[string]interface{}{
			"status": model.StatusClosed,
			"notes":  s.appendNote(id, reason),
		})
}

// appendNote builds the new notes value. The read is advisory only; the
// status guard on the subsequent update keeps transitions safe.
func (s *Store) appendNote(id uint, note string) string {
	var b model.OutreachBatch
	if err := s.db.Select("notes").First(&b, id).Error; err != nil || b.Notes == "" {
		return note
	}
	return strings.TrimRight(b.Notes, "\n") + "\n" + note
}

// DueFollowups returns sent, unanswered batches whose elapsed time since
// sent_at crosses the interval for their next follow-up. intervals[n] is the
// wait before follow-up n+1, always measured from sent_at. Batches at
// maxFollowups are never returned.
func (s *Store) DueFollowups(now time.Time, intervals []time.Duration, maxFollowups int) ([]model.OutreachBatch, error) {
	var candidates []model.OutreachBatch
	err := s.db.
		Where("status = ? AND replied_at IS NULL AND follow_up_count < ?", model.StatusSent, maxFollowups).
		Order("sent_at").Find(&candidates).Error
	if err != nil {
		return nil, fmt.Errorf("load follow-up candidates: %w", err)
	}

	var due []model.OutreachBatch
	for _, b := range candidates {
		if b.SentAt == nil || b.FollowUpCount >= len(intervals) {
			continue
		}
		if !now.Before(b.SentAt.Add(intervals[b.FollowUpCount])) {
			due = append(due, b)
		}
	}
	return due, nil
}

// IncrementFollowup records a sent follow-up. The guard on the expected
// count makes concurrent runs increment at most once.
func (s *Store) IncrementFollowup(id uint, expected int, next *time.Time) error {
	res := s.db.Model(&model.OutreachBatch{}).
		Where("id = ? AND status = ? AND follow_up_count = ?", id, model.StatusSent, expected).
		Updates(map[string]interface{}{
			"follow_up_count":     expected + 1,
			"next_follow_up_date": next,
		})
	if res.Error != nil {
		return fmt.Errorf("increment follow-up for batch %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}
