// Package metrics records per-run pipeline metrics for a node-exporter textfile collector.
package metrics

import (
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
)

// Record-count stages.
const (
	StageIngested   = "ingested"
	StageFiltered   = "filtered"
	StageClassified = "classified"
)

// Run statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Recorder holds the metrics of one process. A nil *Recorder is valid and
// records nothing.
type Recorder struct {
	registry *prometheus.Registry

	runsTotal     *prometheus.CounterVec
	records       *prometheus.GaugeVec
	warningsTotal *prometheus.CounterVec
	duration      prometheus.Gauge
}

func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()

	runsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gradectl",
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Pipeline runs by final status.",
		},
		[]string{"status"},
	)
	records := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "gradectl",
			Subsystem: "pipeline",
			Name:      "records",
			Help:      "Records seen at each pipeline stage in the last run.",
		},
		[]string{"stage"},
	)
	warningsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gradectl",
			Subsystem: "pipeline",
			Name:      "warnings_total",
			Help:      "Non-fatal pipeline conditions by kind.",
		},
		[]string{"kind"},
	)
	duration := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "gradectl",
			Subsystem: "pipeline",
			Name:      "duration_seconds",
			Help:      "Wall time of the last pipeline run.",
		},
	)

	registry.MustRegister(runsTotal, records, warningsTotal, duration)

	return &Recorder{
		registry:      registry,
		runsTotal:     runsTotal,
		records:       records,
		warningsTotal: warningsTotal,
		duration:      duration,
	}
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func (r *Recorder) SetRecords(stage string, n int) {
	if r == nil {
		return
	}
	r.records.WithLabelValues(stage).Set(float64(n))
}

func (r *Recorder) Warning(kind string) {
	if r == nil {
		return
	}
	r.warningsTotal.WithLabelValues(kind).Inc()
}

func (r *Recorder) FinishRun(duration time.Duration, err error) {
	if r == nil {
		return
	}
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	r.runsTotal.WithLabelValues(status).Inc()
	r.duration.Set(duration.Seconds())
}

// WriteTextfile writes the metrics in text exposition format to path.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "metrics: create directory for %s", path)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return eris.Wrapf(err, "metrics: write %s", path)
	}
	return nil
}
