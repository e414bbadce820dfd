package model

import "time"

// BlocklistEntry suppresses all future sends to an address. Emails are
// stored lower-cased so the unique index enforces case-insensitivity.
type BlocklistEntry struct {
	ID      uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	Email   string    `json:"email" gorm:"type:varchar(255);not null;uniqueIndex"`
	Reason  string    `json:"reason" gorm:"type:varchar(255)"`
	AddedAt time.Time `json:"added_at"`
}

// TableName specifies the table name for BlocklistEntry.
func (BlocklistEntry) TableName() string {
	return "outreach_blocklist"
}

// WarmupDay is the per-calendar-date send counter. Dates are ISO strings
// (YYYY-MM-DD) so the unique key behaves identically on sqlite and mysql.
// FirstSendDate carries the program-wide anchor used to compute sender age.
type WarmupDay struct {
	ID            uint   `gorm:"primaryKey;autoIncrement"`
	Date          string `gorm:"type:varchar(10);not null;uniqueIndex"`
	EmailsSent    int    `gorm:"not null;default:0"`
	FirstSendDate string `gorm:"type:varchar(10)"`
}

// TableName specifies the table name for WarmupDay.
func (WarmupDay) TableName() string {
	return "warmup_days"
}

// ContactRecord is the append-only log of organizations contacted, keyed by
// registration identifier, used to enforce the cooldown window.
type ContactRecord struct {
	ID             uint      `gorm:"primaryKey;autoIncrement"`
	RegistrationID string    `gorm:"type:varchar(64);not null;index"`
	ContactedAt    time.Time `gorm:"not null"`
	BatchID        uint      `gorm:"index"`
}

// TableName specifies the table name for ContactRecord.
func (ContactRecord) TableName() string {
	return "contact_records"
}
