package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nginxinc/gateway-cutover/internal/probe"
)

// CutoverCollector collects metrics for the cutover controller.
// Implements the prometheus.Collector interface.
type CutoverCollector struct {
	verifyDuration  prometheus.Histogram
	verifyRuns      *prometheus.CounterVec
	probeMismatches *prometheus.CounterVec
	state           *prometheus.GaugeVec
}

// NewCutoverCollector creates a new CutoverCollector.
func NewCutoverCollector(constLabels map[string]string) *CutoverCollector {
	return &CutoverCollector{
		verifyDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:        "verification_duration_milliseconds",
				Namespace:   Namespace,
				Help:        "Duration in milliseconds of a verification pass",
				ConstLabels: constLabels,
				Buckets:     []float64{100, 500, 1000, 5000, 10000, 30000},
			},
		),
		verifyRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "verification_runs_total",
				Namespace:   Namespace,
				Help:        "Total verification passes by outcome",
				ConstLabels: constLabels,
			},
			[]string{"outcome"},
		),
		probeMismatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "probe_mismatches_total",
				Namespace:   Namespace,
				Help:        "Total probe mismatches by kind",
				ConstLabels: constLabels,
			},
			[]string{"kind"},
		),
		state: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name:        "state",
				Namespace:   Namespace,
				Help:        "Current cutover state (1 for the active state, 0 otherwise)",
				ConstLabels: constLabels,
			},
			[]string{"state"},
		),
	}
}

// ObserveVerification records the duration and outcome of a verification
// pass.
func (c *CutoverCollector) ObserveVerification(duration time.Duration, mismatches int) {
	c.verifyDuration.Observe(float64(duration / time.Millisecond))

	outcome := "clean"
	if mismatches > 0 {
		outcome = "mismatched"
	}
	c.verifyRuns.WithLabelValues(outcome).Inc()
}

// RecordMismatches counts probe mismatches by kind.
func (c *CutoverCollector) RecordMismatches(mismatches []probe.MismatchReport) {
	for _, m := range mismatches {
		c.probeMismatches.WithLabelValues(string(m.Kind)).Inc()
	}
}

// RecordState marks the given state as active.
func (c *CutoverCollector) RecordState(state string) {
	c.state.Reset()
	c.state.WithLabelValues(state).Set(1)
}

// Describe implements prometheus.Collector interface Describe method.
func (c *CutoverCollector) Describe(ch chan<- *prometheus.Desc) {
	c.verifyDuration.Describe(ch)
	c.verifyRuns.Describe(ch)
	c.probeMismatches.Describe(ch)
	c.state.Describe(ch)
}

// Collect implements the prometheus.Collector interface Collect method.
func (c *CutoverCollector) Collect(ch chan<- prometheus.Metric) {
	c.verifyDuration.Collect(ch)
	c.verifyRuns.Collect(ch)
	c.probeMismatches.Collect(ch)
	c.state.Collect(ch)
}
