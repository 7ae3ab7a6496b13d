package dedup

import "github.com/prometheus/client_golang/prometheus"

// Outcome labels used by the actions counter.
const (
	outcomePerformed     = "performed"
	outcomeSkipped       = "skipped"
	outcomeEffectFailed  = "effect_failed"
	outcomePersistFailed = "persist_failed"
)

// Metrics counts guarded action outcomes.
type Metrics struct {
	actions *prometheus.CounterVec
}

// NewMetrics registers the deduplicator collectors on reg. A nil registerer
// leaves the collectors unregistered, which is what tests want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cthulhu_news",
			Subsystem: "dedup",
			Name:      "actions_total",
			Help:      "Guarded actions by outcome.",
		}, []string{"outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.actions)
	}
	return m
}

func (m *Metrics) observe(outcome string) {
	if m == nil {
		return
	}
	m.actions.WithLabelValues(outcome).Inc()
}
