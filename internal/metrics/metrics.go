// Package metrics exposes Prometheus metrics for the outreach pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics.
type Metrics struct {
	Qualified     prometheus.Counter
	Rejected      prometheus.Counter
	Sent          prometheus.Counter
	Bounced       prometheus.Counter
	Deferred      prometheus.Counter
	SendFailures  prometheus.Counter
	FollowupsSent prometheus.Counter
	RepliesFound  prometheus.Counter
	RunDuration   prometheus.Histogram
	QueueDepth    prometheus.Gauge
	WarmupUsed    prometheus.Gauge
}

// New creates metrics on the default registerer.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith creates metrics on a specific registerer, so tests can use a
// private registry without duplicate-registration panics.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Qualified: factory.NewCounter(prometheus.CounterOpts{
			Name: "outreach_qualified_total",
			Help: "Total number of opportunities that passed qualification",
		}),
		Rejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "outreach_rejected_total",
			Help: "Total number of opportunities rejected by qualification",
		}),
		Sent: factory.NewCounter(prometheus.CounterOpts{
			Name: "outreach_sent_total",
			Help: "Total number of batch emails sent",
		}),
		Bounced: factory.NewCounter(prometheus.CounterOpts{
			Name: "outreach_bounced_total",
			Help: "Total number of sends refused by the recipient server",
		}),
		Deferred: factory.NewCounter(prometheus.CounterOpts{
			Name: "outreach_deferred_total",
			Help: "Total number of sends deferred by the send window or warm-up cap",
		}),
		SendFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "outreach_send_failures_total",
			Help: "Total number of failed send attempts",
		}),
		FollowupsSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "outreach_followups_sent_total",
			Help: "Total number of follow-up emails sent",
		}),
		RepliesFound: factory.NewCounter(prometheus.CounterOpts{
			Name: "outreach_replies_found_total",
			Help: "Total number of replies detected in the mailbox",
		}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "outreach_run_duration_seconds",
			Help:    "Time spent on a full pipeline run",
			Buckets: prometheus.DefBuckets,
		}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "outreach_queue_depth",
			Help: "Number of batches currently queued or approved",
		}),
		WarmupUsed: factory.NewGauge(prometheus.GaugeOpts{
			Name: "outreach_warmup_sent_today",
			Help: "Emails counted against today's warm-up cap",
		}),
	}
}
