package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SweepMetrics records duration and outcome for sweeper jobs.
type SweepMetrics struct {
	duration *prometheus.HistogramVec
	runs     *prometheus.CounterVec
	items    *prometheus.CounterVec
}

// NewSweepMetrics registers the sweep metrics on reg. A nil registerer
// yields a recorder that drops everything.
func NewSweepMetrics(reg prometheus.Registerer) *SweepMetrics {
	if reg == nil {
		return &SweepMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "sweep_duration_seconds",
		Help:      "Duration of sweep jobs in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"job"})
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sweep_runs_total",
		Help:      "Sweep job executions by outcome.",
	}, []string{"job", "outcome"})
	items := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sweep_items_total",
		Help:      "Orders or reservations touched by sweep jobs.",
	}, []string{"job", "result"})
	reg.MustRegister(duration, runs, items)
	return &SweepMetrics{duration: duration, runs: runs, items: items}
}

// ObserveDuration records the duration for the named job.
func (m *SweepMetrics) ObserveDuration(job string, d time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(job)).Observe(d.Seconds())
}

func (m *SweepMetrics) IncSuccess(job string) {
	m.incRun(job, "success")
}

func (m *SweepMetrics) IncFailure(job string) {
	m.incRun(job, "failure")
}

// IncSkipped counts runs that did not start because another run held the lock.
func (m *SweepMetrics) IncSkipped(job string) {
	m.incRun(job, "skipped")
}

// AddItems adds n processed items to the job's result counter.
func (m *SweepMetrics) AddItems(job, result string, n int) {
	if m == nil || m.items == nil || n <= 0 {
		return
	}
	m.items.WithLabelValues(normalizeLabel(job), normalizeLabel(result)).Add(float64(n))
}

func (m *SweepMetrics) incRun(job, outcome string) {
	if m == nil || m.runs == nil {
		return
	}
	m.runs.WithLabelValues(normalizeLabel(job), outcome).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
