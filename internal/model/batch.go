package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Batch statuses. A batch only ever moves forward:
// queued -> approved -> sent -> replied, with closed reachable from any
// non-terminal status.
const (
	StatusQueued   = "queued"
	StatusApproved = "approved"
	StatusSent     = "sent"
	StatusReplied  = "replied"
	StatusClosed   = "closed"
)

// OutreachBatch is the unit of send: one or more opportunities bundled to
// one organization's recipients. Recipient and opportunity lists are stored
// as JSON columns; the typed accessors below are the only
// serialize/deserialize boundary.
type OutreachBatch struct {
	ID                uint   `json:"id" gorm:"primaryKey;autoIncrement"`
	Organization      string `json:"organization" gorm:"type:varchar(255);not null;index"`
	Status            string `json:"status" gorm:"type:varchar(20);not null;default:queued;index"`
	RecipientsJSON    string `json:"-" gorm:"column:recipients_json;type:text"`
	OpportunitiesJSON string `json:"-" gorm:"column:opportunities_json;type:text"`
	Subject           string `json:"subject" gorm:"type:varchar(500)"`
	Body              string `json:"body" gorm:"type:text"`
	CreatedAt         time.Time  `json:"created_at"`
	ApprovedAt        *time.Time `json:"approved_at,omitempty"`
	SentAt            *time.Time `json:"sent_at,omitempty"`
	RepliedAt         *time.Time `json:"replied_at,omitempty"`
	FollowUpCount     int        `json:"follow_up_count"`
	NextFollowUpDate  *time.Time `json:"next_follow_up_date,omitempty"`
	Notes             string     `json:"notes" gorm:"type:text"`
}

// TableName specifies the table name for OutreachBatch.
func (OutreachBatch) TableName() string {
	return "outreach_batches"
}

// Terminal reports whether no further transitions are possible.
func (b *OutreachBatch) Terminal() bool {
	return b.Status == StatusReplied || b.Status == StatusClosed
}

// Recipients decodes the stored recipient list. The first entry is the
// primary "To" address, the rest are CC.
func (b *OutreachBatch) Recipients() ([]Recipient, error) {
	if b.RecipientsJSON == "" {
		return nil, nil
	}
	var rs []Recipient
	if err := json.Unmarshal([]byte(b.RecipientsJSON), &rs); err != nil {
		return nil, fmt.Errorf("decode batch %d recipients: %w", b.ID, err)
	}
	return rs, nil
}

// SetRecipients encodes the recipient list into the JSON column.
func (b *OutreachBatch) SetRecipients(rs []Recipient) error {
	data, err := json.Marshal(rs)
	if err != nil {
		return fmt.Errorf("encode recipients: %w", err)
	}
	b.RecipientsJSON = string(data)
	return nil
}

// Opportunities decodes the stored opportunity summaries.
func (b *OutreachBatch) Opportunities() ([]OpportunitySummary, error) {
	if b.OpportunitiesJSON == "" {
		return nil, nil
	}
	var os []OpportunitySummary
	if err := json.Unmarshal([]byte(b.OpportunitiesJSON), &os); err != nil {
		return nil, fmt.Errorf("decode batch %d opportunities: %w", b.ID, err)
	}
	return os, nil
}

// SetOpportunities encodes the opportunity summaries into the JSON column.
func (b *OutreachBatch) SetOpportunities(os []OpportunitySummary) error {
	data, err := json.Marshal(os)
	if err != nil {
		return fmt.Errorf("encode opportunities: %w", err)
	}
	b.OpportunitiesJSON = string(data)
	return nil
}

// MaxScore returns the highest opportunity score in the batch.
func (b *OutreachBatch) MaxScore() int {
	os, err := b.Opportunities()
	if err != nil {
		return 0
	}
	max := 0
	for _, o := range os {
		if o.Score > max {
			max = o.Score
		}
	}
	return max
}

// BatchOpportunity is the per-opportunity detail row, written in the same
// transaction as its batch.
type BatchOpportunity struct {
	ID               uint   `gorm:"primaryKey;autoIncrement"`
	BatchID          uint   `gorm:"not null;index;uniqueIndex:idx_batch_opp"`
	OpportunityID    string `gorm:"type:varchar(255);not null;uniqueIndex:idx_batch_opp"`
	OrganizationName string `gorm:"type:varchar(255)"`
	RegistrationID   string `gorm:"type:varchar(64);index"`
	Score            int
}

// TableName specifies the table name for BatchOpportunity.
func (BatchOpportunity) TableName() string {
	return "batch_opportunities"
}
