// Package qualify decides which opportunities may enter outreach.
//
// Gates, evaluated in order with the first failure winning:
//   - opportunity score threshold
//   - at least one valid recipient email (with one resolver pass)
//   - blocklist status
//   - organization contact cooldown
//   - entity already dissolved or closed
//   - low-urgency category unless the score clears a higher bar
package qualify

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"outreach-engine-go/internal/config"
	"outreach-engine-go/internal/model"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// ValidEmail reports whether an address is syntactically usable.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(strings.TrimSpace(email))
}

// Store is the read-only persistence surface the qualifier consults.
type Store interface {
	IsBlocked(email string) (bool, error)
	WasContactedSince(registrationID string, since time.Time) (bool, error)
}

// Resolver looks up a contact email for a recipient that arrived without
// one. Implementations return an empty string when nothing is found.
type Resolver interface {
	ResolveEmail(ctx context.Context, organization, name string) (string, error)
}

// Rejection pairs an opportunity with the reason it was turned away.
type Rejection struct {
	Opportunity model.Opportunity
	Reason      string
}

// Qualifier applies the admission gates to incoming opportunities.
type Qualifier struct {
	store    Store
	resolver Resolver // optional
	cfg      config.OutreachConfig
	now      func() time.Time
}

func New(store Store, resolver Resolver, cfg config.OutreachConfig) *Qualifier {
	return &Qualifier{store: store, resolver: resolver, cfg: cfg, now: time.Now}
}

// NewWithClock is New with an injected clock for tests.
func NewWithClock(store Store, resolver Resolver, cfg config.OutreachConfig, now func() time.Time) *Qualifier {
	return &Qualifier{store: store, resolver: resolver, cfg: cfg, now: now}
}

// Decide evaluates one opportunity. The returned opportunity is a copy of
// the input, possibly enriched with resolved recipient emails; the input is
// never mutated. The reason string is always populated: "qualified" on
// acceptance, a specific human-readable cause on rejection.
func (q *Qualifier) Decide(ctx context.Context, opp model.Opportunity) (model.Opportunity, bool, string, error) {
	local := opp.Clone()

	if local.Score < q.cfg.MinScore {
		return local, false, fmt.Sprintf("score %d below threshold %d", local.Score, q.cfg.MinScore), nil
	}

	valid := validRecipients(local.Recipients)
	if len(valid) == 0 && q.resolver != nil {
		q.resolveMissingEmails(ctx, &local)
		valid = validRecipients(local.Recipients)
	}
	if len(valid) == 0 {
		if len(local.Recipients) == 0 {
			return local, false, "no recipients on opportunity", nil
		}
		return local, false, fmt.Sprintf("no valid emails in %d recipients", len(local.Recipients)), nil
	}

	for _, r := range valid {
		blocked, err := q.store.IsBlocked(r.Email)
		if err != nil {
			return local, false, "", fmt.Errorf("blocklist lookup for %s: %w", r.Email, err)
		}
		if blocked {
			return local, false, fmt.Sprintf("recipient %s is on blocklist", strings.ToLower(strings.TrimSpace(r.Email))), nil
		}
	}

	if local.RegistrationID != "" {
		since := q.now().AddDate(0, 0, -q.cfg.CooldownDays)
		contacted, err := q.store.WasContactedSince(local.RegistrationID, since)
		if err != nil {
			return local, false, "", fmt.Errorf("contact history for %s: %w", local.RegistrationID, err)
		}
		if contacted {
			return local, false, fmt.Sprintf("organization %s already contacted within %d days", local.RegistrationID, q.cfg.CooldownDays), nil
		}
	}

	switch strings.ToLower(strings.TrimSpace(local.EntityStatus)) {
	case "dissolved", "closed", "converted-closed":
		return local, false, fmt.Sprintf("entity status is %s", strings.ToLower(local.EntityStatus)), nil
	}

	if lowUrgencyCategory(local.Category) && local.Score < q.cfg.SecondaryThreshold {
		return local, false, fmt.Sprintf("solvent wind-down category below secondary threshold %d", q.cfg.SecondaryThreshold), nil
	}

	return local, true, "qualified", nil
}

// QualifyAll partitions opportunities into qualified (enriched copies) and
// rejections with reasons. A lookup error rejects that one opportunity and
// never stops the rest.
func (q *Qualifier) QualifyAll(ctx context.Context, opps []model.Opportunity) ([]model.Opportunity, []Rejection) {
	var qualified []model.Opportunity
	var rejected []Rejection

	for _, opp := range opps {
		enriched, ok, reason, err := q.Decide(ctx, opp)
		if err != nil {
			logrus.WithError(err).Warnf("Qualification check failed for %s", opp.ID)
			rejected = append(rejected, Rejection{Opportunity: opp, Reason: "qualification check failed: " + err.Error()})
			continue
		}
		if !ok {
			logrus.WithFields(logrus.Fields{
				"opportunity": opp.ID,
				"org":         opp.OrganizationName,
				"reason":      reason,
			}).Debug("Opportunity rejected")
			rejected = append(rejected, Rejection{Opportunity: opp, Reason: reason})
			continue
		}
		qualified = append(qualified, enriched)
	}

	logrus.Infof("Qualified %d of %d opportunities", len(qualified), len(opps))
	return qualified, rejected
}

func (q *Qualifier) resolveMissingEmails(ctx context.Context, opp *model.Opportunity) {
	for i := range opp.Recipients {
		r := &opp.Recipients[i]
		if ValidEmail(r.Email) {
			continue
		}
		org := r.Organization
		if org == "" {
			org = opp.OrganizationName
		}
		if org == "" {
			continue
		}
		email, err := q.resolver.ResolveEmail(ctx, org, r.Name)
		if err != nil {
			logrus.WithError(err).Debugf("Email lookup failed for %s", org)
			continue
		}
		if email != "" && ValidEmail(email) {
			logrus.Infof("Resolved email via organization lookup: %s", email)
			r.Email = email
		}
	}
}

func validRecipients(recipients []model.Recipient) []model.Recipient {
	var valid []model.Recipient
	for _, r := range recipients {
		if ValidEmail(r.Email) {
			valid = append(valid, r)
		}
	}
	return valid
}

func lowUrgencyCategory(category string) bool {
	c := strings.ToLower(strings.ReplaceAll(category, "'", ""))
	return strings.Contains(c, "members voluntary") || strings.Contains(c, "mvl")
}
