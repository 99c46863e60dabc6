// Package metrics counts conversion outcomes with Prometheus collectors.
// A CLI run has no scrape endpoint, so the registry is written out in the
// node-exporter textfile format when the run ends.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"dicomconvert/internal/models"
)

// Metrics holds the collectors of one process
type Metrics struct {
	registry *prometheus.Registry

	FilesTotal       *prometheus.CounterVec
	SkippedTotal     *prometheus.CounterVec
	FileDuration     prometheus.Histogram
	LastRunTimestamp prometheus.Gauge
	PatientsTotal    *prometheus.CounterVec
}

// New registers the collectors on a private registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		FilesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dicomconvert",
			Name:      "files_total",
			Help:      "Input files processed, by final status.",
		}, []string{"status"}),
		SkippedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dicomconvert",
			Name:      "skipped_total",
			Help:      "Input files skipped, by classification reason.",
		}, []string{"reason"}),
		FileDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "dicomconvert",
			Name:      "file_duration_seconds",
			Help:      "Time spent on one input file.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		LastRunTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dicomconvert",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last conversion run finished.",
		}),
		PatientsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dicomconvert",
			Name:      "patients_total",
			Help:      "Patient archives handled by the watcher, by result.",
		}, []string{"result"}),
	}
	m.registry.MustRegister(m.FilesTotal, m.SkippedTotal, m.FileDuration, m.LastRunTimestamp, m.PatientsTotal)
	return m
}

// Observe records one file outcome. Safe for concurrent use.
func (m *Metrics) Observe(o models.Outcome, elapsed time.Duration) {
	m.FilesTotal.WithLabelValues(string(o.Status)).Inc()
	if o.Status == models.StatusSkipped {
		m.SkippedTotal.WithLabelValues(string(o.Reason)).Inc()
	}
	m.FileDuration.Observe(elapsed.Seconds())
}

// RunFinished stamps the completion time of a run
func (m *Metrics) RunFinished(at time.Time) {
	m.LastRunTimestamp.Set(float64(at.Unix()))
}

// Patient records one archive handled by the watcher
func (m *Metrics) Patient(ok bool) {
	if ok {
		m.PatientsTotal.WithLabelValues("processed").Inc()
		return
	}
	m.PatientsTotal.WithLabelValues("failed").Inc()
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes the current values atomically to path
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
