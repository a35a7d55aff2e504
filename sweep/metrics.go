package sweep

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// MetricsName is the file name of the metrics textfile in the log
	// directory. It can be picked up by node_exporter's textfile collector.
	MetricsName = "metrics.prom"

	metricsNamespace = "gridpipe"
	sweepSubsystem   = "sweep"
)

// Metrics tracks the progress of a sweep.
type Metrics struct {
	reg *prometheus.Registry

	runsPlanned  prometheus.Gauge
	runsTotal    *prometheus.CounterVec
	runMinutes   prometheus.Histogram
	gridsTotal   prometheus.Counter
	skippedTotal prometheus.Counter
	lastExitCode prometheus.Gauge
}

// NewMetrics returns metrics for a sweep of planned runs, registered with
// their own registry.
func NewMetrics(planned int) *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		runsPlanned: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: sweepSubsystem,
			Name:      "runs_planned",
			Help:      "Number of runs in the sweep",
		}),
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: sweepSubsystem,
				Name:      "runs_total",
				Help:      "Finished runs by final state",
			},
			[]string{"state"},
		),
		runMinutes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: sweepSubsystem,
			Name:      "run_duration_minutes",
			Help:      "Wall-clock time of each run in minutes",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 240, 480, 960},
		}),
		gridsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: sweepSubsystem,
			Name:      "grids_written_total",
			Help:      "Raw grids written by every run",
		}),
		skippedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: sweepSubsystem,
			Name:      "snapshots_skipped_total",
			Help:      "Unreadable snapshots skipped during conversion",
		}),
		lastExitCode: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: sweepSubsystem,
			Name:      "last_exit_code",
			Help:      "Exit code of the most recent simulation",
		}),
	}

	m.reg.MustRegister(
		m.runsPlanned, m.runsTotal, m.runMinutes,
		m.gridsTotal, m.skippedTotal, m.lastExitCode,
	)
	m.runsPlanned.Set(float64(planned))
	return m
}

// Observe records a finished run.
func (m *Metrics) Observe(rec Record) {
	m.runsTotal.WithLabelValues(rec.State.String()).Inc()
	m.runMinutes.Observe(rec.Minutes)
	m.gridsTotal.Add(float64(rec.Grids))
	m.skippedTotal.Add(float64(rec.Skipped))
	m.lastExitCode.Set(float64(rec.ExitCode))
}

// WriteTextfile writes the current metrics to path in the Prometheus text
// format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.reg)
}
