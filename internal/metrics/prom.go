package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fpang/prompt-enhancer/internal/enhance"
)

// PromObserver implements enhance.Observer with Prometheus collectors on a
// private registry. Safe for concurrent use.
type PromObserver struct {
	registry        *prometheus.Registry
	attempts        *prometheus.CounterVec
	attemptDuration *prometheus.HistogramVec
	results         *prometheus.CounterVec
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// Compile-time interface check.
var _ enhance.Observer = (*PromObserver)(nil)

// NewPromObserver creates the collectors and registers them, together with the
// Go runtime and process collectors, on a new registry.
func NewPromObserver() *PromObserver {
	o := &PromObserver{
		registry: prometheus.NewRegistry(),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "prompt_enhancer_attempts_total",
			Help: "Provider calls by provider label, vendor and outcome.",
		}, []string{"provider", "vendor", "outcome"}),
		attemptDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "prompt_enhancer_attempt_duration_seconds",
			Help:    "Provider call latency.",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60},
		}, []string{"provider", "vendor"}),
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "prompt_enhancer_results_total",
			Help: "Finished enhancements by final provider label and success.",
		}, []string{"provider", "success"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "prompt_enhancer_http_requests_total",
			Help: "HTTP requests by route pattern, method and status code.",
		}, []string{"endpoint", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "prompt_enhancer_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern.",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
	}
	o.registry.MustRegister(
		o.attempts,
		o.attemptDuration,
		o.results,
		o.requests,
		o.requestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return o
}

// AttemptFinished implements enhance.Observer.
func (o *PromObserver) AttemptFinished(a enhance.Attempt) {
	o.attempts.WithLabelValues(string(a.Provider), a.Vendor, AttemptOutcome(a)).Inc()
	o.attemptDuration.WithLabelValues(string(a.Provider), a.Vendor).Observe(a.Duration.Seconds())
}

// EnhancementFinished implements enhance.Observer.
func (o *PromObserver) EnhancementFinished(r enhance.Result, _ time.Duration) {
	env := r.Envelope()
	o.results.WithLabelValues(string(env.Provider), strconv.FormatBool(env.Success)).Inc()
}

// RequestFinished records one served HTTP request.
func (o *PromObserver) RequestFinished(endpoint, method string, status int, elapsed time.Duration) {
	o.requests.WithLabelValues(endpoint, method, strconv.Itoa(status)).Inc()
	o.requestDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (o *PromObserver) Handler() http.Handler {
	return promhttp.HandlerFor(o.registry, promhttp.HandlerOpts{})
}
