// README: Prometheus instrumentation for task evaluation.
package tasks

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	matches  *prometheus.CounterVec
	duration prometheus.Histogram
}

// NewMetrics registers the task collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		matches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fulfillments",
			Subsystem: "tasks",
			Name:      "rule_matches_total",
			Help:      "Tasks produced, by rule.",
		}, []string{"rule"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "fulfillments",
			Subsystem: "tasks",
			Name:      "get_tasks_duration_seconds",
			Help:      "Time to evaluate the whole rule table for one channel.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.matches, m.duration)
	return m
}

func (m *Metrics) observe(rule string, n int) {
	if m == nil {
		return
	}
	m.matches.WithLabelValues(rule).Add(float64(n))
}

func (m *Metrics) since(start time.Time) {
	if m == nil {
		return
	}
	m.duration.Observe(time.Since(start).Seconds())
}
