package store

import (
	"fmt"
	"time"

	"outreach-engine-go/internal/model"
)

// WasContactedSince reports whether the organization with this registration
// id has a contact record at or after the given time. Opportunities without
// a registration id are exempt from the cooldown.
func (s *Store) WasContactedSince(registrationID string, since time.Time) (bool, error) {
	if registrationID == "" {
		return false, nil
	}
	var count int64
	err := s.db.Model(&model.ContactRecord{}).
		Where("registration_id = ? AND contacted_at >= ?", registrationID, since).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check contact history: %w", err)
	}
	return count > 0, nil
}

// RecordContact appends a contact-history record. Append-only.
func (s *Store) RecordContact(registrationID string, batchID uint) error {
	if registrationID == "" {
		return nil
	}
	rec := model.ContactRecord{
		RegistrationID: registrationID,
		ContactedAt:    s.now(),
		BatchID:        batchID,
	}
	if err := s.db.Create(&rec).Error; err != nil {
		return fmt.Errorf("record contact: %w", err)
	}
	return nil
}
