// Package metrics exports Prometheus metrics for pipeline runs, either on an
// HTTP /metrics endpoint (daemon) or as a node_exporter textfile (cron).
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/amishk599/skillradar/internal/model"
	"github.com/amishk599/skillradar/internal/pipeline"
)

// Runner is one pipeline pass.
type Runner interface {
	Run(ctx context.Context) (*pipeline.Result, error)
}

// Metrics holds the run metrics on their own registry.
type Metrics struct {
	registry *prometheus.Registry

	RunsTotal       *prometheus.CounterVec
	RunDuration     prometheus.Histogram
	RecordsFetched  prometheus.Gauge
	NewRecords      prometheus.Gauge
	AlertsSent      prometheus.Counter
	ClassifierFits  prometheus.Counter
	LastSuccessTime prometheus.Gauge
}

// New registers all metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skillradar_runs_total",
			Help: "Pipeline runs by outcome (ok, missing_input, insufficient_input, locked, model_load, persistence, error)",
		}, []string{"result"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "skillradar_run_duration_seconds",
			Help:    "Wall time of a pipeline run",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		RecordsFetched: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "skillradar_records_fetched",
			Help: "Records in the last committed batch",
		}),
		NewRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "skillradar_records_new",
			Help: "Records of the last committed batch that were not in the previous baseline",
		}),
		AlertsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "skillradar_alerts_total",
			Help: "Total new records in preferred clusters handed to the notifier",
		}),
		ClassifierFits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "skillradar_classifier_trainings_total",
			Help: "Times a classifier was trained because none was persisted",
		}),
		LastSuccessTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "skillradar_last_success_timestamp_seconds",
			Help: "Unix time of the last committed run",
		}),
	}
	reg.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.RecordsFetched,
		m.NewRecords,
		m.AlertsSent,
		m.ClassifierFits,
		m.LastSuccessTime,
	)
	return m
}

// Observe records the outcome of one run that took d.
func (m *Metrics) Observe(res *pipeline.Result, err error, d time.Duration) {
	m.RunDuration.Observe(d.Seconds())

	if err != nil {
		result := model.Kind(err)
		if result == "" {
			result = "error"
		}
		m.RunsTotal.WithLabelValues(result).Inc()
		return
	}

	m.RunsTotal.WithLabelValues("ok").Inc()
	m.RecordsFetched.Set(float64(res.Fetched))
	m.NewRecords.Set(float64(res.New))
	m.AlertsSent.Add(float64(res.Matched))
	if res.Trained {
		m.ClassifierFits.Inc()
	}
	m.LastSuccessTime.SetToCurrentTime()
}

// Wrap returns a Runner that observes every run of r.
func (m *Metrics) Wrap(r Runner) Runner {
	return &instrumentedRunner{inner: r, metrics: m}
}

type instrumentedRunner struct {
	inner   Runner
	metrics *Metrics
}

func (r *instrumentedRunner) Run(ctx context.Context) (*pipeline.Result, error) {
	start := time.Now()
	res, err := r.inner.Run(ctx)
	r.metrics.Observe(res, err, time.Since(start))
	return res, err
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// WriteTextfile writes the registry to path for the node_exporter textfile
// collector. The file is replaced atomically.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
