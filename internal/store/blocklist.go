package store

import (
	"fmt"
	"strings"

	"outreach-engine-go/internal/model"
)

// IsBlocked reports whether an address is on the blocklist. Matching is
// case-insensitive: entries are stored lower-cased.
func (s *Store) IsBlocked(email string) (bool, error) {
	var count int64
	err := s.db.Model(&model.BlocklistEntry{}).
		Where("email = ?", normalizeEmail(email)).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check blocklist: %w", err)
	}
	return count > 0, nil
}

// Block adds an address to the blocklist. Adding an already-blocked address
// is a no-op and keeps the original reason.
func (s *Store) Block(email, reason string) error {
	entry := model.BlocklistEntry{
		Email:   normalizeEmail(email),
		Reason:  reason,
		AddedAt: s.now(),
	}
	err := s.db.Where(model.BlocklistEntry{Email: entry.Email}).
		FirstOrCreate(&entry).Error
	if err != nil {
		return fmt.Errorf("add to blocklist: %w", err)
	}
	return nil
}

// Unblock removes an address from the blocklist.
func (s *Store) Unblock(email string) error {
	err := s.db.Where("email = ?", normalizeEmail(email)).
		Delete(&model.BlocklistEntry{}).Error
	if err != nil {
		return fmt.Errorf("remove from blocklist: %w", err)
	}
	return nil
}

// Blocklist returns all entries, most recently added first.
func (s *Store) Blocklist() ([]model.BlocklistEntry, error) {
	var entries []model.BlocklistEntry
	if err := s.db.Order("added_at DESC").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("load blocklist: %w", err)
	}
	return entries, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
