package haptics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"haptics-go/services/haptics/internal/result"
)

// Metrics counts driver calls, retries, reconnects and completions. One value
// may be shared by every controller in a process.
type Metrics struct {
	calls       *prometheus.CounterVec
	retries     *prometheus.CounterVec
	reconnects  prometheus.Counter
	completions *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "haptics",
				Subsystem: "driver",
				Name:      "calls_total",
				Help:      "Driver operations by final outcome.",
			},
			[]string{"op", "outcome"},
		),
		retries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "haptics",
				Subsystem: "driver",
				Name:      "retries_total",
				Help:      "Driver operations retried after a transient failure.",
			},
			[]string{"op"},
		),
		reconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "haptics",
				Subsystem: "driver",
				Name:      "reconnects_total",
				Help:      "Successful driver reconnects.",
			},
		),
		completions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "haptics",
				Name:      "completions_total",
				Help:      "Completion notifications by outcome.",
			},
			[]string{"result"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "haptics",
				Name:      "call_duration_seconds",
				Help:      "Driver operation duration including retries.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"op"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.calls, m.retries, m.reconnects, m.completions, m.duration)
	}
	return m
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// DefaultMetrics returns metrics registered once on the default registry.
func DefaultMetrics() *Metrics {
	defaultOnce.Do(func() {
		defaultMetrics = NewMetrics(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

func (m *Metrics) Call(op string, outcome result.Kind, d time.Duration) {
	if m == nil {
		return
	}
	m.calls.WithLabelValues(op, outcome.String()).Inc()
	m.duration.WithLabelValues(op).Observe(d.Seconds())
}

func (m *Metrics) Retry(op string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(op).Inc()
}

func (m *Metrics) Reconnect() {
	if m == nil {
		return
	}
	m.reconnects.Inc()
}

func (m *Metrics) Completion(outcome string) {
	if m == nil {
		return
	}
	m.completions.WithLabelValues(outcome).Inc()
}
