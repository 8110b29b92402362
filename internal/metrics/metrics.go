package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder owns a private registry so tests can build as many as they like.
type Recorder struct {
	registry   *prometheus.Registry
	admissions *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	resets     prometheus.Counter
	resetRows  prometheus.Counter
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		admissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gate",
			Name:      "admissions_total",
			Help:      "Admission attempts by entry path and outcome.",
		}, []string{"path", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gate",
			Name:      "admission_duration_seconds",
			Help:      "Time spent deciding an admission.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}, []string{"path"}),
		resets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gate",
			Name:      "resets_total",
			Help:      "Completed event resets.",
		}),
		resetRows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gate",
			Name:      "reset_guest_rows_total",
			Help:      "Guest rows cleared by resets.",
		}),
	}

	r.registry.MustRegister(
		r.admissions,
		r.latency,
		r.resets,
		r.resetRows,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

func (r *Recorder) ObserveAdmission(path, outcome string, elapsed time.Duration) {
	r.admissions.WithLabelValues(path, outcome).Inc()
	r.latency.WithLabelValues(path).Observe(elapsed.Seconds())
}

func (r *Recorder) ObserveReset(count int) {
	r.resets.Inc()
	r.resetRows.Add(float64(count))
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
