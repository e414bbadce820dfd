package qualify

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"outreach-engine-go/internal/config"
	"outreach-engine-go/internal/model"
)

type fakeStore struct {
	blocked     map[string]bool
	contactedAt map[string]time.Time
}

func (f *fakeStore) IsBlocked(email string) (bool, error) {
	return f.blocked[strings.ToLower(strings.TrimSpace(email))], nil
}

func (f *fakeStore) WasContactedSince(registrationID string, since time.Time) (bool, error) {
	at, ok := f.contactedAt[registrationID]
	return ok && !at.Before(since), nil
}

type fakeResolver struct {
	emails map[string]string
	calls  int
}

func (f *fakeResolver) ResolveEmail(_ context.Context, organization, _ string) (string, error) {
	f.calls++
	return f.emails[organization], nil
}

func defaultPolicy() config.OutreachConfig {
	return config.OutreachConfig{
		MinScore:           40,
		SecondaryThreshold: 60,
		CooldownDays:       30,
	}
}

func newFakeStore() *fakeStore {
	return &fakeStore{blocked: map[string]bool{}, contactedAt: map[string]time.Time{}}
}

func opportunity(score int) model.Opportunity {
	return model.Opportunity{
		ID:               "n1",
		OrganizationName: "Acme Trading Ltd",
		RegistrationID:   "01234567",
		Category:         "creditors voluntary liquidation",
		Score:            score,
		Recipients: []model.Recipient{
			{Name: "Jane Price", Email: "jane@firmone.co.uk", Organization: "Firm One"},
		},
	}
}

func TestScoreThreshold(t *testing.T) {
	q := New(newFakeStore(), nil, defaultPolicy())

	_, ok, reason, err := q.Decide(context.Background(), opportunity(39))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, reason, "below threshold 40")

	_, ok, reason, err = q.Decide(context.Background(), opportunity(40))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "qualified", reason)
}

func TestNoValidEmails(t *testing.T) {
	q := New(newFakeStore(), nil, defaultPolicy())

	opp := opportunity(80)
	opp.Recipients = []model.Recipient{
		{Name: "Jane Price", Email: "not-an-email"},
		{Name: "Tom Reid", Email: ""},
	}
	_, ok, reason, err := q.Decide(context.Background(), opp)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, reason, "no valid emails in 2 recipients")

	opp.Recipients = nil
	_, ok, reason, err = q.Decide(context.Background(), opp)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "no recipients on opportunity", reason)
}

func TestResolverEnrichesLocalCopyOnly(t *testing.T) {
	resolver := &fakeResolver{emails: map[string]string{"Firm One": "office@firmone.co.uk"}}
	q := New(newFakeStore(), resolver, defaultPolicy())

	opp := opportunity(80)
	opp.Recipients[0].Email = ""

	enriched, ok, reason, err := q.Decide(context.Background(), opp)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "qualified", reason)
	assert.Equal(t, "office@firmone.co.uk", enriched.Recipients[0].Email)
	// input is never mutated
	assert.Equal(t, "", opp.Recipients[0].Email)
	assert.Equal(t, 1, resolver.calls)
}

func TestResolverNotCalledWhenEmailPresent(t *testing.T) {
	resolver := &fakeResolver{emails: map[string]string{}}
	q := New(newFakeStore(), resolver, defaultPolicy())

	_, ok, _, err := q.Decide(context.Background(), opportunity(80))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, resolver.calls)
}

func TestBlocklistGate(t *testing.T) {
	store := newFakeStore()
	store.blocked["jane@firmone.co.uk"] = true
	q := New(store, nil, defaultPolicy())

	opp := opportunity(80)
	opp.Recipients[0].Email = "Jane@FirmOne.co.uk"

	_, ok, reason, err := q.Decide(context.Background(), opp)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, reason, "jane@firmone.co.uk")
	assert.Contains(t, reason, "blocklist")
}

func TestContactCooldownGate(t *testing.T) {
	now := time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	store.contactedAt["01234567"] = now.AddDate(0, 0, -10)
	q := NewWithClock(store, nil, defaultPolicy(), func() time.Time { return now })

	_, ok, reason, err := q.Decide(context.Background(), opportunity(80))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, reason, "already contacted within 30 days")

	// 31 days later the organization is eligible again
	later := now.AddDate(0, 0, 21)
	q = NewWithClock(store, nil, defaultPolicy(), func() time.Time { return later })
	_, ok, _, err = q.Decide(context.Background(), opportunity(80))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDissolvedEntityGate(t *testing.T) {
	q := New(newFakeStore(), nil, defaultPolicy())

	for _, status := range []string{"dissolved", "closed", "converted-closed", "Dissolved"} {
		opp := opportunity(80)
		opp.EntityStatus = status
		_, ok, reason, err := q.Decide(context.Background(), opp)
		require.NoError(t, err)
		assert.False(t, ok, "status %q should reject", status)
		assert.Contains(t, reason, "entity status")
	}
}

func TestLowUrgencyCategoryGate(t *testing.T) {
	q := New(newFakeStore(), nil, defaultPolicy())

	opp := opportunity(55)
	opp.Category = "Members' Voluntary Liquidation"
	_, ok, reason, err := q.Decide(context.Background(), opp)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, reason, "secondary threshold 60")

	// high-scoring solvent wind-downs are still admitted
	opp.Score = 65
	_, ok, _, err = q.Decide(context.Background(), opp)
	require.NoError(t, err)
	assert.True(t, ok)

	opp = opportunity(55)
	opp.Category = "MVL"
	_, ok, _, err = q.Decide(context.Background(), opp)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestQualifyAllPartitions(t *testing.T) {
	q := New(newFakeStore(), nil, defaultPolicy())

	low := opportunity(10)
	low.ID = "n-low"
	good := opportunity(80)
	good.ID = "n-good"

	qualified, rejected := q.QualifyAll(context.Background(), []model.Opportunity{low, good})
	require.Len(t, qualified, 1)
	assert.Equal(t, "n-good", qualified[0].ID)
	require.Len(t, rejected, 1)
	assert.Equal(t, "n-low", rejected[0].Opportunity.ID)
	assert.Contains(t, rejected[0].Reason, "below threshold")
}

func TestValidEmail(t *testing.T) {
	assert.True(t, ValidEmail("jane@firmone.co.uk"))
	assert.True(t, ValidEmail("  jane.price+ip@firm-one.com  "))
	assert.False(t, ValidEmail(""))
	assert.False(t, ValidEmail("jane"))
	assert.False(t, ValidEmail("jane@firmone"))
	assert.False(t, ValidEmail("@firmone.com"))
}
