package store

import (
	"fmt"
	"time"

	"outreach-engine-go/internal/model"
)

// PipelineStats is the operator-facing projection of pipeline state.
type PipelineStats struct {
	QueuedCount   int64   `json:"queued_count"`
	ApprovedCount int64   `json:"approved_count"`
	SentCount     int64   `json:"sent_count"`
	RepliedCount  int64   `json:"replied_count"`
	ClosedCount   int64   `json:"closed_count"`
	AwaitingReply int64   `json:"awaiting_reply"`
	SentToday     int64   `json:"sent_today"`
	RepliedToday  int64   `json:"replied_today"`
	ResponseRate  float64 `json:"response_rate"`
}

// PipelineStats aggregates batch counts, today's activity, and the all-time
// response rate.
func (s *Store) PipelineStats(now time.Time) (PipelineStats, error) {
	stats := PipelineStats{}

	counts := map[string]*int64{
		model.StatusQueued:   &stats.QueuedCount,
		model.StatusApproved: &stats.ApprovedCount,
		model.StatusSent:     &stats.SentCount,
		model.StatusReplied:  &stats.RepliedCount,
		model.StatusClosed:   &stats.ClosedCount,
	}
	for status, dst := range counts {
		if err := s.db.Model(&model.OutreachBatch{}).Where("status = ?", status).Count(dst).Error; err != nil {
			return stats, fmt.Errorf("count %s batches: %w", status, err)
		}
	}

	err := s.db.Model(&model.OutreachBatch{}).
		Where("status = ? AND replied_at IS NULL", model.StatusSent).
		Count(&stats.AwaitingReply).Error
	if err != nil {
		return stats, fmt.Errorf("count awaiting reply: %w", err)
	}

	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if err := s.db.Model(&model.OutreachBatch{}).
		Where("sent_at >= ?", dayStart).Count(&stats.SentToday).Error; err != nil {
		return stats, fmt.Errorf("count sent today: %w", err)
	}
	if err := s.db.Model(&model.OutreachBatch{}).
		Where("replied_at >= ?", dayStart).Count(&stats.RepliedToday).Error; err != nil {
		return stats, fmt.Errorf("count replied today: %w", err)
	}

	var totalSent, totalReplied int64
	err = s.db.Model(&model.OutreachBatch{}).
		Where("status IN ?", []string{model.StatusSent, model.StatusReplied, model.StatusClosed}).
		Count(&totalSent).Error
	if err != nil {
		return stats, fmt.Errorf("count total sent: %w", err)
	}
	err = s.db.Model(&model.OutreachBatch{}).
		Where("replied_at IS NOT NULL").Count(&totalReplied).Error
	if err != nil {
		return stats, fmt.Errorf("count total replied: %w", err)
	}
	if totalSent > 0 {
		stats.ResponseRate = float64(totalReplied) / float64(totalSent) * 100
	}
	return stats, nil
}
