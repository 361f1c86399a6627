package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "audiosift"

// HTTP metrics (incremented by the API middleware).
var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total HTTP requests processed.",
	}, []string{"method", "path_pattern", "status_code"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path_pattern"})
)

// Analysis counters (incremented directly by the analyzer).
var (
	UploadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "uploads_total",
		Help:      "Audio uploads attempted, by outcome.",
	}, []string{"outcome"})

	UploadBytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "upload_bytes_total",
		Help:      "Total audio bytes streamed to the analysis service.",
	})

	AnalysisJobsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "analysis_jobs_total",
		Help:      "Analysis jobs by terminal outcome (completed, error, timeout).",
	}, []string{"outcome"})

	PollRequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "poll_requests_total",
		Help:      "Status poll requests issued against the analysis service.",
	})

	PollRetriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "poll_retries_total",
		Help:      "Transient poll failures that were retried with backoff.",
	})

	SegmentsParsedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "segments_parsed_total",
		Help:      "Segments produced from completed transcripts.",
	})

	AnalyzeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "analyze_duration_seconds",
		Help:      "End-to-end duration of one analyze call.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 12), // 1s up to ~68m
	})
)

// Matcher counters (incremented by the API handlers).
var MatchRequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "match_requests_total",
	Help:      "Preference match requests served.",
})

// Register registers all package metrics with the default registry.
// Call once at startup.
func Register() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		UploadsTotal,
		UploadBytesTotal,
		AnalysisJobsTotal,
		PollRequestsTotal,
		PollRetriesTotal,
		SegmentsParsedTotal,
		AnalyzeDuration,
		MatchRequestsTotal,
	)
}

// Handler returns the /metrics scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request counts and latency per chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		pattern := chi.RouteContext(r.Context()).RoutePattern()
		if pattern == "" {
			pattern = "unmatched"
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, pattern, strconv.Itoa(sw.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, pattern).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
