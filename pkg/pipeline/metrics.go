package pipeline

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ccollicutt/wiretrace/pkg/matcher"
)

// Metrics holds the Prometheus collectors for pipeline runs. A nil
// *Metrics records nothing.
type Metrics struct {
	runs          *prometheus.CounterVec   // by outcome: succeeded, failed
	stageDuration *prometheus.HistogramVec // by stage
	entries       prometheus.Counter
	units         *prometheus.CounterVec // by kind: plain, group
}

// NewMetrics creates the pipeline collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wiretrace",
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total analysis runs by outcome.",
		}, []string{"outcome"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "wiretrace",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		}, []string{"stage"}),
		entries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wiretrace",
			Subsystem: "pipeline",
			Name:      "entries_decoded_total",
			Help:      "Total trace entries decoded.",
		}),
		units: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wiretrace",
			Subsystem: "pipeline",
			Name:      "units_total",
			Help:      "Total matcher units emitted by kind.",
		}, []string{"kind"}),
	}

	for _, c := range []prometheus.Collector{m.runs, m.stageDuration, m.entries, m.units} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("registering pipeline metrics: %w", err)
		}
	}
	return m, nil
}

func (m *Metrics) observeStage(name string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(name).Observe(d.Seconds())
}

func (m *Metrics) recordRun(success bool) {
	if m == nil {
		return
	}
	outcome := "failed"
	if success {
		outcome = "succeeded"
	}
	m.runs.WithLabelValues(outcome).Inc()
}

func (m *Metrics) recordEntries(n int) {
	if m == nil {
		return
	}
	m.entries.Add(float64(n))
}

func (m *Metrics) recordUnits(stats matcher.Stats) {
	if m == nil {
		return
	}
	m.units.WithLabelValues("plain").Add(float64(stats.Plain))
	m.units.WithLabelValues("group").Add(float64(stats.Groups))
}
