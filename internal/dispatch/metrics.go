package dispatch

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts dispatch runs and per-recipient outcomes
type Metrics struct {
	emails      *prometheus.CounterVec
	runs        *prometheus.CounterVec
	runDuration prometheus.Histogram
}

var (
	defaultMetricsOnce sync.Once
	defaultMetrics     *Metrics
)

// DefaultMetrics returns metrics registered on the default Prometheus registry
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		defaultMetrics = NewMetrics(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

// NewMetrics creates and registers dispatch metrics on registerer
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		emails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "campaign_dispatch_emails_total",
			Help: "Per-recipient delivery attempts by outcome.",
		}, []string{"status"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "campaign_dispatch_runs_total",
			Help: "Dispatch runs by final campaign status or skip reason.",
		}, []string{"status"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "campaign_dispatch_run_duration_seconds",
			Help:    "Wall time of completed dispatch runs.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 14),
		}),
	}
	registerer.MustRegister(m.emails, m.runs, m.runDuration)
	return m
}

func (m *Metrics) email(status string) {
	if m == nil {
		return
	}
	m.emails.WithLabelValues(status).Inc()
}

func (m *Metrics) run(status string, started time.Time) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(status).Inc()
	if !started.IsZero() {
		m.runDuration.Observe(time.Since(started).Seconds())
	}
}
