package model

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Recipient is a named email address eligible to receive outreach.
type Recipient struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Role         string `json:"role,omitempty"`
	Organization string `json:"organization,omitempty"`
}

// SameEmail reports whether two recipients resolve to the same mailbox.
// Equality is case-insensitive on the email address.
func (r Recipient) SameEmail(other Recipient) bool {
	return strings.EqualFold(strings.TrimSpace(r.Email), strings.TrimSpace(other.Email))
}

// Opportunity is one external candidate for outreach as delivered by the
// upstream analysis pipeline. The engine never mutates an input record;
// enrichment is applied to a copy (see Clone).
type Opportunity struct {
	ID               string      `json:"id"`
	OrganizationName string      `json:"organization_name"`
	RegistrationID   string      `json:"registration_id"`
	Category         string      `json:"category"`
	Score            int         `json:"score"`
	Sector           string      `json:"sector,omitempty"`
	EstimatedAssets  []string    `json:"estimated_assets,omitempty"`
	WebsiteURL       string      `json:"website_url,omitempty"`
	Recipients       []Recipient `json:"recipients"`
	EntityStatus     string      `json:"entity_status,omitempty"`
}

// Clone returns a deep copy safe to enrich locally.
func (o Opportunity) Clone() Opportunity {
	c := o
	c.EstimatedAssets = append([]string(nil), o.EstimatedAssets...)
	c.Recipients = append([]Recipient(nil), o.Recipients...)
	return c
}

// OpportunitySummary is the slice of an opportunity a batch carries.
type OpportunitySummary struct {
	ID               string   `json:"id"`
	OrganizationName string   `json:"organization_name"`
	RegistrationID   string   `json:"registration_id"`
	Category         string   `json:"category"`
	Sector           string   `json:"sector,omitempty"`
	Score            int      `json:"score"`
	WebsiteURL       string   `json:"website_url,omitempty"`
	EstimatedAssets  []string `json:"estimated_assets,omitempty"`
}

// Summarize extracts the batch-facing summary of an opportunity.
func (o Opportunity) Summarize() OpportunitySummary {
	return OpportunitySummary{
		ID:               o.ID,
		OrganizationName: o.OrganizationName,
		RegistrationID:   o.RegistrationID,
		Category:         o.Category,
		Sector:           o.Sector,
		Score:            o.Score,
		WebsiteURL:       o.WebsiteURL,
		EstimatedAssets:  append([]string(nil), o.EstimatedAssets...),
	}
}

// ParseOpportunities decodes the upstream input contract: a JSON array of
// opportunity records.
func ParseOpportunities(r io.Reader) ([]Opportunity, error) {
	var opps []Opportunity
	if err := json.NewDecoder(r).Decode(&opps); err != nil {
		return nil, fmt.Errorf("decode opportunities: %w", err)
	}
	for i := range opps {
		if opps[i].ID == "" {
			return nil, fmt.Errorf("opportunity at index %d has no id", i)
		}
	}
	return opps, nil
}
