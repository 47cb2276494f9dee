package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	tgerrors "github.com/goliatone/go-tplguard/pkg/errors"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tplguard_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tplguard_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tplguard_http_requests_in_flight",
			Help: "Current number of HTTP requests being processed",
		},
	)

	rateLimitRejects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tplguard_rate_limit_rejects_total",
			Help: "Total number of requests rejected due to rate limiting",
		},
	)

	panicRecoveries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tplguard_panic_recoveries_total",
			Help: "Total number of panics recovered in HTTP handlers",
		},
	)

	// Template metrics, labelled with the error kind ("ok" on success).
	templateCompiles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tplguard_template_compiles_total",
			Help: "Total number of template compilations by outcome",
		},
		[]string{"result"},
	)

	templateCompileDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tplguard_template_compile_duration_seconds",
			Help:    "Template compilation latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		},
	)

	templateRenders = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tplguard_template_renders_total",
			Help: "Total number of template renders by outcome",
		},
		[]string{"result"},
	)

	templateRenderDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tplguard_template_render_duration_seconds",
			Help:    "Template render latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		},
	)
)

// ObserveCompile records one template compilation. It matches the compile
// observer signature so a runtime can report into the server's registry.
func ObserveCompile(_ string, elapsed time.Duration, err error) {
	templateCompiles.WithLabelValues(outcome(err)).Inc()
	templateCompileDuration.Observe(elapsed.Seconds())
}

// ObserveRender records one template render.
func ObserveRender(_ string, elapsed time.Duration, err error) {
	templateRenders.WithLabelValues(outcome(err)).Inc()
	templateRenderDuration.Observe(elapsed.Seconds())
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if kind := tgerrors.KindOf(err); kind != "" {
		return string(kind)
	}
	return "error"
}

// instrument counts and times requests. Paths are labelled with the matched
// route pattern to bound cardinality.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		rec := record(w)
		next.ServeHTTP(rec, r)

		path := r.Pattern
		if path == "" {
			path = r.URL.Path
		}
		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rec.Status())).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}
