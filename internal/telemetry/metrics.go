// Package telemetry holds the Prometheus collectors shared by the job queues,
// the managers, and the model cache, plus the /metrics handler.
package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	JobsEnqueued   = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "singalong_jobs_enqueued_total", Help: "Jobs accepted into a queue"}, []string{"family"})
	JobsFinished   = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "singalong_jobs_finished_total", Help: "Jobs that reached a terminal state"}, []string{"family", "outcome"})
	QueueDepth     = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "singalong_queue_depth", Help: "Jobs waiting in queued state"}, []string{"family"})
	ActiveJobs     = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "singalong_jobs_active", Help: "1 while a job of the family is executing"}, []string{"family"})
	JobDuration    = prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "singalong_job_duration_seconds", Help: "Wall time spent executing a job", Buckets: []float64{1, 5, 15, 60, 300, 900, 1800, 3600, 7200}}, []string{"family"})
	ModelDownloads = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "singalong_model_downloads_total", Help: "Model asset download attempts"}, []string{"tier", "outcome"})
)

// Outcome label values for JobsFinished and ModelDownloads.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Register adds every collector to the default registry. Safe to call more than once.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			JobsEnqueued,
			JobsFinished,
			QueueDepth,
			ActiveJobs,
			JobDuration,
			ModelDownloads,
		)
	})
}

// Handler exposes /metrics HTTP handler with a singleton registry.
func Handler() http.Handler {
	Register()
	return promhttp.Handler()
}

// ObserveQueue records the depth and active flag reported by a queue broadcast.
func ObserveQueue(family string, queued int, active bool) {
	QueueDepth.WithLabelValues(family).Set(float64(queued))
	value := 0.0
	if active {
		value = 1
	}
	ActiveJobs.WithLabelValues(family).Set(value)
}

// ObserveFinished counts a terminal job and its execution time.
func ObserveFinished(family string, success bool, seconds float64) {
	outcome := OutcomeFailure
	if success {
		outcome = OutcomeSuccess
	}
	JobsFinished.WithLabelValues(family, outcome).Inc()
	if seconds >= 0 {
		JobDuration.WithLabelValues(family).Observe(seconds)
	}
}
