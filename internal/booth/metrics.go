package booth

import "github.com/prometheus/client_golang/prometheus"

type metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	artifactsTotal  *prometheus.CounterVec
	warningsTotal   prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "boothflow_requests_total",
			Help: "Processed capture requests by kind and outcome.",
		}, []string{"kind", "outcome"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "boothflow_request_duration_seconds",
			Help:    "Wall time spent on one capture request.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16, 32},
		}, []string{"kind"}),
		artifactsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "boothflow_artifacts_total",
			Help: "Finished images and videos by kind.",
		}, []string{"kind"}),
		warningsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "boothflow_warnings_total",
			Help: "Non-fatal problems reported while processing requests.",
		}),
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	reg.MustRegister(m.requestsTotal, m.requestDuration, m.artifactsTotal, m.warningsTotal)
	return m
}
