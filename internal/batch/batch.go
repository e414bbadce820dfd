// Package batch groups qualified opportunities into per-organization send
// units.
package batch

import (
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"outreach-engine-go/internal/model"
)

// UnknownOrganization is the grouping key used when no organization name can
// be derived for a recipient.
const UnknownOrganization = "Unknown Organization"

// Draft is a pre-persistence batch: one organization's recipients plus the
// opportunities bundled for them.
type Draft struct {
	Organization  string
	Recipients    []model.Recipient
	Opportunities []model.OpportunitySummary
}

// Primary returns the first-seen recipient, who goes in the To line.
func (d Draft) Primary() model.Recipient {
	return d.Recipients[0]
}

// CC returns every recipient after the primary.
func (d Draft) CC() []model.Recipient {
	if len(d.Recipients) < 2 {
		return nil
	}
	return d.Recipients[1:]
}

// MaxScore returns the highest opportunity score in the draft.
func (d Draft) MaxScore() int {
	max := 0
	for _, o := range d.Opportunities {
		if o.Score > max {
			max = o.Score
		}
	}
	return max
}

// Group batches opportunities by the organization of each one's first
// recipient. Recipients are pooled across a group's opportunities and
// deduplicated case-insensitively on email in first-seen order, so the
// earliest-seen recipient becomes the primary. Opportunities with no
// recipients are dropped. Results are sorted by descending max score, which
// sets processing priority.
func Group(opps []model.Opportunity) []Draft {
	byOrg := map[string]*Draft{}
	var order []string

	for _, opp := range opps {
		if len(opp.Recipients) == 0 {
			logrus.Debugf("Skipping opportunity %s: no recipients", opp.ID)
			continue
		}
		org := organizationKey(opp.Recipients[0])

		d, ok := byOrg[org]
		if !ok {
			d = &Draft{Organization: org}
			byOrg[org] = d
			order = append(order, org)
		}
		d.Opportunities = append(d.Opportunities, opp.Summarize())
		for _, r := range opp.Recipients {
			if !strings.Contains(r.Email, "@") {
				continue
			}
			if !containsEmail(d.Recipients, r) {
				d.Recipients = append(d.Recipients, r)
			}
		}
	}

	drafts := make([]Draft, 0, len(order))
	for _, org := range order {
		d := byOrg[org]
		if len(d.Recipients) == 0 {
			logrus.Debugf("Dropping batch for %s: no usable recipients", org)
			continue
		}
		drafts = append(drafts, *d)
	}

	sort.SliceStable(drafts, func(i, j int) bool {
		return drafts[i].MaxScore() > drafts[j].MaxScore()
	})

	logrus.Infof("Grouped %d opportunities into %d batches", len(opps), len(drafts))
	return drafts
}

// organizationKey derives the grouping key for a recipient: their stated
// organization, a pseudo-name from the email domain, or the sentinel.
func organizationKey(r model.Recipient) string {
	if org := strings.TrimSpace(r.Organization); org != "" {
		return org
	}
	if name := pseudoNameFromEmail(r.Email); name != "" {
		return name
	}
	return UnknownOrganization
}

// pseudoNameFromEmail turns "jane@firm-one.co.uk" into "Firm One".
func pseudoNameFromEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return ""
	}
	domain := email[at+1:]
	label, _, _ := strings.Cut(domain, ".")
	label = strings.ReplaceAll(label, "-", " ")
	return titleCase(label)
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}

func containsEmail(recipients []model.Recipient, r model.Recipient) bool {
	for _, existing := range recipients {
		if existing.SameEmail(r) {
			return true
		}
	}
	return false
}
