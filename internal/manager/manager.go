// Package manager orchestrates the outreach pipeline: qualification,
// batching, persistence, sending, and follow-ups.
package manager

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"outreach-engine-go/internal/batch"
	"outreach-engine-go/internal/config"
	"outreach-engine-go/internal/followup"
	"outreach-engine-go/internal/gate"
	"outreach-engine-go/internal/mailer"
	"outreach-engine-go/internal/metrics"
	"outreach-engine-go/internal/model"
	"outreach-engine-go/internal/qualify"
	"outreach-engine-go/internal/sender"
	"outreach-engine-go/internal/store"
	"outreach-engine-go/internal/template"
)

// ProcessResult summarizes qualification and batch creation.
type ProcessResult struct {
	Total          int                 `json:"total"`
	Qualified      int                 `json:"qualified"`
	Rejected       int                 `json:"rejected"`
	BatchesCreated int                 `json:"batches_created"`
	BatchIDs       []uint              `json:"batch_ids,omitempty"`
	Rejections     []qualify.Rejection `json:"rejections,omitempty"`
}

// SendResult summarizes one send pass.
type SendResult struct {
	Attempted int      `json:"attempted"`
	Sent      int      `json:"sent"`
	DryRun    int      `json:"dry_run"`
	Deferred  int      `json:"deferred"`
	Bounced   int      `json:"bounced"`
	Failed    int      `json:"failed"`
	Skipped   int      `json:"skipped"`
	Errors    []string `json:"errors,omitempty"`
}

// RunResult carries each stage's results separately so partial success is
// visible: batching can succeed while the send window is closed.
type RunResult struct {
	RunID      string          `json:"run_id"`
	Processing ProcessResult   `json:"processing"`
	Sending    SendResult      `json:"sending"`
	Followups  followup.Result `json:"followups"`
}

// StatusReport is the operator-facing status projection.
type StatusReport struct {
	Date           string              `json:"date"`
	Pipeline       store.PipelineStats `json:"pipeline"`
	Warmup         gate.Status         `json:"warmup"`
	FollowupsDue   int                 `json:"followups_due"`
	PendingBatches int                 `json:"pending_batches"`
}

// Manager wires the pipeline components together. All state lives in the
// Store; the Manager itself is stateless between calls.
type Manager struct {
	store     *store.Store
	qualifier *qualify.Qualifier
	renderer  *template.Renderer
	sender    followup.Sender
	followups *followup.Scheduler
	gate      *gate.Gate
	metrics   *metrics.Metrics
	cfg       config.OutreachConfig
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
}

func New(s *store.Store, q *qualify.Qualifier, r *template.Renderer, snd followup.Sender,
	f *followup.Scheduler, g *gate.Gate, m *metrics.Metrics, cfg config.OutreachConfig) *Manager {
	return &Manager{
		store:     s,
		qualifier: q,
		renderer:  r,
		sender:    snd,
		followups: f,
		gate:      g,
		metrics:   m,
		cfg:       cfg,
		now:       time.Now,
		sleep:     sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run executes the full pipeline under one run id.
func (m *Manager) Run(ctx context.Context, opps []model.Opportunity) (RunResult, error) {
	runID := uuid.NewString()
	log := logrus.WithField("run_id", runID)
	start := m.now()
	log.Infof("Pipeline run started with %d opportunities", len(opps))

	result := RunResult{RunID: runID}

	processing, err := m.ProcessOpportunities(ctx, opps)
	if err != nil {
		return result, fmt.Errorf("process opportunities: %w", err)
	}
	result.Processing = processing

	sending, err := m.SendPending(ctx)
	if err != nil {
		return result, fmt.Errorf("send pending: %w", err)
	}
	result.Sending = sending

	followups, err := m.ProcessFollowups(ctx)
	if err != nil {
		return result, fmt.Errorf("process follow-ups: %w", err)
	}
	result.Followups = followups

	m.metrics.RunDuration.Observe(time.Since(start).Seconds())
	m.updateGauges()
	log.WithFields(logrus.Fields{
		"qualified": processing.Qualified,
		"batches":   processing.BatchesCreated,
		"sent":      sending.Sent,
		"followups": followups.Sent,
	}).Info("Pipeline run finished")
	return result, nil
}

// ProcessOpportunities qualifies, batches, renders, and persists incoming
// opportunities. Batches are auto-approved unless manual approval is
// configured.
func (m *Manager) ProcessOpportunities(ctx context.Context, opps []model.Opportunity) (ProcessResult, error) {
	result := ProcessResult{Total: len(opps)}

	qualified, rejected := m.qualifier.QualifyAll(ctx, opps)
	result.Qualified = len(qualified)
	result.Rejected = len(rejected)
	result.Rejections = rejected
	m.metrics.Qualified.Add(float64(len(qualified)))
	m.metrics.Rejected.Add(float64(len(rejected)))
	for _, r := range rejected {
		logrus.Infof("Rejected %s (%s): %s", r.Opportunity.ID, r.Opportunity.OrganizationName, r.Reason)
	}
	if len(qualified) == 0 {
		return result, nil
	}

	drafts := batch.Group(qualified)
	for _, d := range drafts {
		id, err := m.createBatch(d)
		if err != nil {
			return result, err
		}
		result.BatchIDs = append(result.BatchIDs, id)
	}
	result.BatchesCreated = len(result.BatchIDs)

	if !m.cfg.RequireApproval {
		for _, id := range result.BatchIDs {
			if err := m.store.Approve(id); err != nil {
				return result, fmt.Errorf("auto-approve batch %d: %w", id, err)
			}
		}
		logrus.Infof("Auto-approved %d batches", len(result.BatchIDs))
	}
	return result, nil
}

func (m *Manager) createBatch(d batch.Draft) (uint, error) {
	email, err := m.renderer.Render(d)
	if err != nil {
		return 0, fmt.Errorf("render batch for %s: %w", d.Organization, err)
	}

	b := &model.OutreachBatch{
		Organization: d.Organization,
		Subject:      email.Subject,
		Body:         email.Body,
	}
	if err := b.SetRecipients(d.Recipients); err != nil {
		return 0, err
	}
	if err := b.SetOpportunities(d.Opportunities); err != nil {
		return 0, err
	}

	details := make([]model.BatchOpportunity, len(d.Opportunities))
	for i, o := range d.Opportunities {
		details[i] = model.BatchOpportunity{
			OpportunityID:    o.ID,
			OrganizationName: o.OrganizationName,
			RegistrationID:   o.RegistrationID,
			Score:            o.Score,
		}
	}

	if err := m.store.CreateBatch(b, details); err != nil {
		return 0, err
	}
	logrus.Infof("Created batch #%d: %s (%d opportunities, %d recipients)",
		b.ID, d.Organization, len(d.Opportunities), len(d.Recipients))
	return b.ID, nil
}

// SendPending attempts all approved batches in priority order, falling back
// to queued ones when nothing is approved so manual-approval workflows can
// still be driven by an explicit send. One batch's failure never stops the
// pass; a deferral does, since it applies to everything remaining.
func (m *Manager) SendPending(ctx context.Context) (SendResult, error) {
	result := SendResult{}

	batches, err := m.store.BatchesByStatus(model.StatusApproved)
	if err != nil {
		return result, err
	}
	fallback := false
	if len(batches) == 0 {
		batches, err = m.store.BatchesByStatus(model.StatusQueued)
		if err != nil {
			return result, err
		}
		fallback = true
	}
	if len(batches) == 0 {
		logrus.Info("No pending batches to send")
		return result, nil
	}

	// highest max score first
	sort.SliceStable(batches, func(i, j int) bool {
		return batches[i].MaxScore() > batches[j].MaxScore()
	})

	for i := range batches {
		b := &batches[i]
		if m.cfg.MaxSendsPerRun > 0 && result.Sent >= m.cfg.MaxSendsPerRun {
			logrus.Infof("Max sends per run (%d) reached", m.cfg.MaxSendsPerRun)
			break
		}

		outcome, err := m.sendBatch(ctx, b, fallback)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("batch %d: %v", b.ID, err))
			continue
		}
		result.Attempted++

		switch outcome.Status {
		case sender.StatusSent:
			result.Sent++
			m.metrics.Sent.Inc()
			if remaining := len(batches) - i - 1; remaining > 0 && m.cfg.MinSendDelay > 0 {
				if err := m.sleep(ctx, m.cfg.MinSendDelay); err != nil {
					return result, err
				}
			}
		case sender.StatusDryRun:
			result.DryRun++
		case sender.StatusSkipped:
			result.Skipped++
			// transport is unconfigured for every batch; no point continuing
			return result, nil
		case sender.StatusDeferred:
			result.Deferred++
			m.metrics.Deferred.Inc()
			logrus.Infof("Sending deferred: %s", outcome.Detail)
			return result, nil
		case sender.StatusBounced:
			result.Bounced++
			m.metrics.Bounced.Inc()
		case sender.StatusFailed:
			result.Failed++
			m.metrics.SendFailures.Inc()
			result.Errors = append(result.Errors, fmt.Sprintf("batch %d: %s", b.ID, outcome.Detail))
		}
	}
	return result, nil
}

// sendBatch attempts one batch. In fallback mode the batch is still queued
// and must be approved first; losing that race means another run owns it.
func (m *Manager) sendBatch(ctx context.Context, b *model.OutreachBatch, fallback bool) (sender.Outcome, error) {
	recipients, err := b.Recipients()
	if err != nil {
		return sender.Outcome{}, err
	}
	if len(recipients) == 0 {
		return sender.Outcome{}, fmt.Errorf("no recipients")
	}

	msg := mailer.Message{
		To:      recipients[0].Email,
		Subject: b.Subject,
		Body:    b.Body,
	}
	for _, r := range recipients[1:] {
		msg.CC = append(msg.CC, r.Email)
	}

	if fallback && !m.cfg.DryRun {
		if err := m.store.Approve(b.ID); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return sender.Outcome{}, fmt.Errorf("already claimed by another run")
			}
			return sender.Outcome{}, err
		}
	}

	outcome := m.sender.Send(ctx, msg)
	if outcome.Status == sender.StatusBounced {
		addr := outcome.BouncedAddress
		if addr == "" {
			addr = msg.To
		}
		if err := m.store.Block(addr, "bounce"); err != nil {
			logrus.WithError(err).Warnf("Could not blocklist bounced address %s", addr)
		} else {
			logrus.Warnf("Blocklisted %s after bounce; batch #%d stays approved", addr, b.ID)
		}
		return outcome, nil
	}
	if outcome.Status != sender.StatusSent {
		return outcome, nil
	}

	if err := m.store.MarkSent(b.ID); err != nil {
		// the mail is out; surface the bookkeeping failure loudly
		logrus.WithError(err).Errorf("Sent batch #%d but could not record it", b.ID)
		return outcome, nil
	}
	m.recordContacts(b)
	logrus.Infof("Sent batch #%d to %s", b.ID, msg.To)
	return outcome, nil
}

func (m *Manager) recordContacts(b *model.OutreachBatch) {
	opps, err := b.Opportunities()
	if err != nil {
		logrus.WithError(err).Warnf("Could not load opportunities for contact records on batch %d", b.ID)
		return
	}
	for _, o := range opps {
		if err := m.store.RecordContact(o.RegistrationID, b.ID); err != nil {
			logrus.WithError(err).Warnf("Could not record contact for %s", o.RegistrationID)
		}
	}
}

// ProcessFollowups sends all due follow-ups.
func (m *Manager) ProcessFollowups(ctx context.Context) (followup.Result, error) {
	result, err := m.followups.Process(ctx)
	if err != nil {
		return result, err
	}
	m.metrics.FollowupsSent.Add(float64(result.Sent))
	return result, nil
}

// Approve marks one queued batch approved.
func (m *Manager) Approve(id uint) error {
	return m.store.Approve(id)
}

// ApproveAll approves every queued batch, reporting how many.
func (m *Manager) ApproveAll() (int, error) {
	queued, err := m.store.BatchesByStatus(model.StatusQueued)
	if err != nil {
		return 0, err
	}
	approved := 0
	for _, b := range queued {
		if err := m.store.Approve(b.ID); err != nil {
			if errors.Is(err, store.ErrConflict) {
				continue
			}
			return approved, err
		}
		approved++
	}
	return approved, nil
}

// Skip closes a batch with a mandatory reason.
func (m *Manager) Skip(id uint, reason string) error {
	if reason == "" {
		reason = "skipped by operator"
	}
	return m.store.Close(id, reason)
}

// MarkReplied records a reply on a sent batch.
func (m *Manager) MarkReplied(id uint, note string) error {
	if err := m.store.MarkReplied(id, note); err != nil {
		return err
	}
	logrus.Infof("Marked batch #%d as replied", id)
	return nil
}

// Status assembles the operator status projection.
func (m *Manager) Status() (StatusReport, error) {
	now := m.now()

	pipeline, err := m.store.PipelineStats(now)
	if err != nil {
		return StatusReport{}, err
	}
	warm, err := m.gate.Status(now)
	if err != nil {
		return StatusReport{}, err
	}
	due, err := m.followups.Due(now)
	if err != nil {
		return StatusReport{}, err
	}
	pending, err := m.store.PendingBatches()
	if err != nil {
		return StatusReport{}, err
	}

	return StatusReport{
		Date:           now.Format("2006-01-02"),
		Pipeline:       pipeline,
		Warmup:         warm,
		FollowupsDue:   len(due),
		PendingBatches: len(pending),
	}, nil
}

func (m *Manager) updateGauges() {
	pending, err := m.store.PendingBatches()
	if err == nil {
		m.metrics.QueueDepth.Set(float64(len(pending)))
	}
	warm, err := m.gate.Status(m.now())
	if err == nil {
		m.metrics.WarmupUsed.Set(float64(warm.SentToday))
	}
}
