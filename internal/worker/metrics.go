package worker

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dunamismax/boothflow/internal/telemetry"
)

type metrics struct {
	registry    *prometheus.Registry
	jobsTotal   *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec
	activeJobs  prometheus.Gauge
	imagesTotal prometheus.Counter
}

func newMetrics(registry *prometheus.Registry) *metrics {
	if registry == nil {
		registry = telemetry.NewRegistry()
	}

	m := &metrics{
		registry: registry,
		jobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "boothflow_worker_jobs_total",
			Help: "Total worker jobs by kind and final status.",
		}, []string{"kind", "status"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "boothflow_worker_job_duration_seconds",
			Help:    "Total processing duration for each worker job.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind", "status"}),
		activeJobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "boothflow_worker_active_jobs",
			Help: "Current number of captures being processed by the worker.",
		}),
		imagesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "boothflow_worker_images_total",
			Help: "Total images listed in successful job manifests.",
		}),
	}

	registry.MustRegister(
		m.jobsTotal,
		m.jobDuration,
		m.activeJobs,
		m.imagesTotal,
	)
	return m
}

func (m *metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
