// Package metrics holds the domain counters exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Task results used as the "result" label.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Metrics groups the marketplace counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	listingTransitions *prometheus.CounterVec
	commentsCreated    prometheus.Counter
	messagesSent       prometheus.Counter
	tasksProcessed     *prometheus.CounterVec
}

// New registers the counters on reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		listingTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "listing_transitions_total",
				Help: "Lifecycle actions applied to services and ads.",
			},
			[]string{"kind", "action"},
		),
		commentsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "comments_created_total",
			Help: "Comments submitted for moderation.",
		}),
		messagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "messages_sent_total",
			Help: "Chat messages stored.",
		}),
		tasksProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tasks_processed_total",
				Help: "Background tasks handled by the worker.",
			},
			[]string{"type", "result"},
		),
	}

	for _, c := range []prometheus.Collector{m.listingTransitions, m.commentsCreated, m.messagesSent, m.tasksProcessed} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) ListingTransition(kind, action string) {
	if m == nil {
		return
	}
	m.listingTransitions.WithLabelValues(kind, action).Inc()
}

func (m *Metrics) CommentCreated() {
	if m == nil {
		return
	}
	m.commentsCreated.Inc()
}

func (m *Metrics) MessageSent() {
	if m == nil {
		return
	}
	m.messagesSent.Inc()
}

// TaskProcessed records a task outcome; err decides the result label.
func (m *Metrics) TaskProcessed(taskType string, err error) {
	if m == nil {
		return
	}
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	m.tasksProcessed.WithLabelValues(taskType, result).Inc()
}
