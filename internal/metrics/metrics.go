// Package metrics provides Prometheus metrics for the support bot.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the answer pipeline.
type Metrics struct {
	// QuestionsTotal counts terminal pipeline outcomes by label.
	QuestionsTotal *prometheus.CounterVec

	// DroppedTotal counts messages dropped by the per-user concurrency guard.
	DroppedTotal prometheus.Counter

	// MenuRepliesTotal counts menu navigation replies that bypass the pipeline.
	MenuRepliesTotal prometheus.Counter

	// GenerateDuration observes answer-generation latency in seconds.
	GenerateDuration prometheus.Histogram
}

// New creates and registers the collectors with the given registerer. Tests
// pass a fresh prometheus.NewRegistry to avoid duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		QuestionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "support_bot_questions_total",
				Help: "Total questions that reached a terminal pipeline outcome",
			},
			[]string{"outcome"},
		),
		DroppedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "support_bot_messages_dropped_total",
				Help: "Messages dropped because a pipeline was already in flight for the user",
			},
		),
		MenuRepliesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "support_bot_menu_replies_total",
				Help: "Menu navigation replies served without touching the pipeline",
			},
		),
		GenerateDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "support_bot_generate_duration_seconds",
				Help:    "Answer generator call latency in seconds",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 45, 60},
			},
		),
	}
}

// ObserveQuestion records one terminal pipeline outcome.
func (m *Metrics) ObserveQuestion(outcome string) {
	if m == nil {
		return
	}
	m.QuestionsTotal.WithLabelValues(outcome).Inc()
}

// ObserveDropped records one guard-dropped message.
func (m *Metrics) ObserveDropped() {
	if m == nil {
		return
	}
	m.DroppedTotal.Inc()
}

// ObserveMenuReply records one menu navigation reply.
func (m *Metrics) ObserveMenuReply() {
	if m == nil {
		return
	}
	m.MenuRepliesTotal.Inc()
}

// ObserveGenerateDuration records one generator call duration.
func (m *Metrics) ObserveGenerateDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.GenerateDuration.Observe(d.Seconds())
}
