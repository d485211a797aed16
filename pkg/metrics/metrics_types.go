package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds all metrics for the middleware
type Registry struct {
	// HTTP Metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Protection Metrics
	RateLimitedTotal        *prometheus.CounterVec
	RateLimitTrackedClients prometheus.Gauge
	CSRFRejectedTotal       prometheus.Counter
	CSRFIssuedTotal         prometheus.Counter
	AuthFailuresTotal       *prometheus.CounterVec
	TokensIssuedTotal       prometheus.Counter
	TokensRevokedTotal      prometheus.Counter
	RevocationSetSize       prometheus.Gauge
	ValidationFailuresTotal *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewRegistry creates a new metrics registry with all metrics initialized
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
	}

	r.initHTTPMetrics()
	r.initProtectionMetrics()

	return r
}

// PrometheusRegistry returns the underlying prometheus registry for the
// /metrics handler
func (r *Registry) PrometheusRegistry() *prometheus.Registry {
	return r.registry
}
