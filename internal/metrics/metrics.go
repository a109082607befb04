package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// RequestDuration tracks HTTP request duration in seconds by method, path, status.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// RequestTotal counts HTTP requests by method, path, status.
	RequestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// RunsRunning is 1 while a batch is in progress.
	RunsRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "signin_runs_running",
			Help: "Number of sign-in batches currently running",
		},
	)

	// RunDuration is the wall-clock time of a whole batch.
	RunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "signin_run_duration_seconds",
			Help:    "Sign-in batch duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	// SignInTotal counts per-target outcomes (success, failure).
	SignInTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signin_targets_total",
			Help: "Total number of per-target sign-in outcomes",
		},
		[]string{"target", "result"},
	)

	// SignInAttempts observes attempts used per target (0 when skipped).
	SignInAttempts = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "signin_attempts",
			Help:    "Attempts used per target sign-in",
			Buckets: []float64{0, 1, 2, 3, 5, 10},
		},
		[]string{"target"},
	)
)

var initOnce sync.Once

func init() {
	initOnce.Do(func() {
		prometheus.MustRegister(RequestDuration, RequestTotal, RunsRunning, RunDuration, SignInTotal, SignInAttempts)
	})
}

// RecordRequest records duration and count for an HTTP request.
func RecordRequest(method, path string, statusCode int, durationSeconds float64) {
	status := strconv.Itoa(statusCode)
	RequestDuration.WithLabelValues(method, path, status).Observe(durationSeconds)
	RequestTotal.WithLabelValues(method, path, status).Inc()
}

// RecordSignIn counts one target's outcome.
func RecordSignIn(target string, success bool, attempts int) {
	result := "failure"
	if success {
		result = "success"
	}
	SignInTotal.WithLabelValues(target, result).Inc()
	SignInAttempts.WithLabelValues(target).Observe(float64(attempts))
}

// StartRun marks a batch as running and returns a func that ends it.
func StartRun() func(durationSeconds float64) {
	RunsRunning.Inc()
	return func(durationSeconds float64) {
		RunsRunning.Dec()
		RunDuration.Observe(durationSeconds)
	}
}
