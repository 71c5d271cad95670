// Package metrics exposes Prometheus instrumentation for the HTTP surface and the
// upload and onboarding flows.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "candidly"

var (
	registerOnce sync.Once

	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	requestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests served.",
		},
		[]string{"method", "path", "status"},
	)

	requestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "HTTP requests currently being served.",
		},
	)

	signedURLs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "signed_urls_total",
			Help:      "Signed URL requests by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	videoUploads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "video",
			Name:      "uploads_total",
			Help:      "Server-side video uploads by outcome.",
		},
		[]string{"outcome"},
	)

	stageResolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "onboarding",
			Name:      "stage_resolutions_total",
			Help:      "Onboarding stage resolutions by stage and whether a redirect was issued.",
		},
		[]string{"stage", "redirect"},
	)
)

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Register adds every collector to the default registry. It is safe to call repeatedly.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(requestDuration, requestTotal, requestsInFlight, signedURLs, videoUploads, stageResolutions)
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	Register()
	return promhttp.Handler()
}

// ObserveSignedURL counts a signing attempt of kind "upload" or "read".
func ObserveSignedURL(kind string, err error) {
	signedURLs.WithLabelValues(kind, outcome(err)).Inc()
}

// ObserveVideoUpload counts a server-side video upload.
func ObserveVideoUpload(err error) {
	videoUploads.WithLabelValues(outcome(err)).Inc()
}

// ObserveStage counts a resolved onboarding stage.
func ObserveStage(stage string, redirected bool) {
	stageResolutions.WithLabelValues(stage, strconv.FormatBool(redirected)).Inc()
}

// Middleware records latency and status per ServeMux pattern. It must wrap the
// mux directly so the matched pattern is visible once the mux returns.
func Middleware(next http.Handler) http.Handler {
	Register()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestsInFlight.Inc()
		defer requestsInFlight.Dec()

		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}
		labels := prometheus.Labels{
			"method": r.Method,
			"path":   path,
			"status": strconv.Itoa(rec.Status()),
		}
		requestDuration.With(labels).Observe(time.Since(start).Seconds())
		requestTotal.With(labels).Inc()
	})
}

func outcome(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	if s.status == 0 {
		s.status = status
	}
	s.ResponseWriter.WriteHeader(status)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	return s.ResponseWriter.Write(b)
}

func (s *statusRecorder) Status() int {
	if s.status == 0 {
		return http.StatusOK
	}
	return s.status
}
