// Package replies scans the sender's mailbox over IMAP and marks batches
// replied when an answer from one of their recipients arrives.
package replies

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"
	"github.com/sirupsen/logrus"

	"outreach-engine-go/internal/config"
	"outreach-engine-go/internal/metrics"
	"outreach-engine-go/internal/model"
)

const snippetLimit = 200

// Store is the persistence surface the detector needs.
type Store interface {
	BatchesByStatus(status string) ([]model.OutreachBatch, error)
	MarkReplied(id uint, note string) error
}

// Detector matches inbox messages against sent, unreplied batches.
type Detector struct {
	cfg     config.IMAPConfig
	store   Store
	metrics *metrics.Metrics
	now     func() time.Time
}

func New(cfg config.IMAPConfig, store Store, met *metrics.Metrics) *Detector {
	return &Detector{cfg: cfg, store: store, metrics: met, now: time.Now}
}

// Scan connects to the mailbox, searches messages within the lookback
// window, and marks matching batches replied. Returns how many replies were
// recorded.
func (d *Detector) Scan() (int, error) {
	if !d.cfg.Enabled {
		return 0, nil
	}

	candidates, err := d.store.BatchesByStatus(model.StatusSent)
	if err != nil {
		return 0, fmt.Errorf("load sent batches: %w", err)
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	c, err := client.DialTLS(fmt.Sprintf("%s:%d", d.cfg.Host, d.cfg.Port), nil)
	if err != nil {
		return 0, fmt.Errorf("failed to connect to IMAP server: %w", err)
	}
	defer c.Logout()

	if err := c.Login(d.cfg.User, d.cfg.Password); err != nil {
		return 0, fmt.Errorf("failed to login to IMAP server: %w", err)
	}

	if _, err := c.Select("INBOX", true); err != nil {
		return 0, fmt.Errorf("failed to select INBOX: %w", err)
	}

	lookback := d.cfg.Lookback
	if lookback <= 0 {
		lookback = 14
	}
	criteria := imap.NewSearchCriteria()
	criteria.Since = d.now().AddDate(0, 0, -lookback)

	uids, err := c.Search(criteria)
	if err != nil {
		return 0, fmt.Errorf("failed to search messages: %w", err)
	}
	if len(uids) == 0 {
		return 0, nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)

	section := &imap.BodySectionName{Peek: true}
	messages := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqset, []imap.FetchItem{imap.FetchEnvelope, section.FetchItem()}, messages)
	}()

	found := 0
	for msg := range messages {
		if d.handleMessage(msg, section, candidates) {
			found++
		}
	}

	if err := <-done; err != nil {
		return found, fmt.Errorf("failed to fetch messages: %w", err)
	}
	return found, nil
}

// handleMessage matches one fetched message against the sent batches and
// records the reply. Reports whether a reply was recorded.
func (d *Detector) handleMessage(msg *imap.Message, section *imap.BodySectionName, candidates []model.OutreachBatch) bool {
	if msg.Envelope == nil || len(msg.Envelope.From) == 0 {
		return false
	}
	from := msg.Envelope.From[0].Address()
	batchID, ok := Match(msg.Envelope.Subject, from, candidates)
	if !ok {
		return false
	}

	note := fmt.Sprintf("Reply from %s", from)
	if snippet := extractSnippet(msg.GetBody(section)); snippet != "" {
		note = fmt.Sprintf("%s: %s", note, snippet)
	}
	if err := d.store.MarkReplied(batchID, note); err != nil {
		// a concurrent actor may have already recorded this reply
		logrus.WithError(err).Debugf("Could not mark batch %d replied", batchID)
		return false
	}
	if d.metrics != nil {
		d.metrics.RepliesFound.Inc()
	}
	logrus.WithFields(logrus.Fields{
		"batch": batchID,
		"from":  from,
	}).Info("Reply detected")
	return true
}

// Match finds the sent batch a message answers: its base subject must equal
// the batch subject and its sender must be one of the batch's recipients.
func Match(subject, from string, batches []model.OutreachBatch) (uint, bool) {
	base := BaseSubject(subject)
	for _, b := range batches {
		if b.RepliedAt != nil {
			continue
		}
		if !strings.EqualFold(base, BaseSubject(b.Subject)) {
			continue
		}
		recipients, err := b.Recipients()
		if err != nil {
			continue
		}
		for _, r := range recipients {
			if strings.EqualFold(strings.TrimSpace(r.Email), strings.TrimSpace(from)) {
				return b.ID, true
			}
		}
	}
	return 0, false
}

// BaseSubject strips any stack of reply/forward prefixes.
func BaseSubject(subject string) string {
	s := strings.TrimSpace(subject)
	for {
		lower := strings.ToLower(s)
		switch {
		case strings.HasPrefix(lower, "re:"):
			s = strings.TrimSpace(s[3:])
		case strings.HasPrefix(lower, "fwd:"):
			s = strings.TrimSpace(s[4:])
		case strings.HasPrefix(lower, "fw:"):
			s = strings.TrimSpace(s[3:])
		default:
			return s
		}
	}
}

// extractSnippet pulls the first text part of a message, truncated for the
// audit note.
func extractSnippet(r io.Reader) string {
	if r == nil {
		return ""
	}
	mr, err := mail.CreateReader(r)
	if err != nil {
		return ""
	}
	for {
		part, err := mr.NextPart()
		if err != nil {
			return ""
		}
		if _, ok := part.Header.(*mail.InlineHeader); !ok {
			continue
		}
		data, err := io.ReadAll(io.LimitReader(part.Body, snippetLimit))
		if err != nil {
			return ""
		}
		snippet := strings.Join(strings.Fields(string(data)), " ")
		if snippet != "" {
			return snippet
		}
	}
}
