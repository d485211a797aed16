package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initProtectionMetrics() {
	r.RateLimitedTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "armor_rate_limited_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
		[]string{"preset"},
	)

	r.RateLimitTrackedClients = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "armor_rate_limit_tracked_clients",
			Help: "Number of client windows currently tracked by the limiter",
		},
	)

	r.CSRFRejectedTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "armor_csrf_rejected_total",
			Help: "Total number of requests rejected by the CSRF guard",
		},
	)

	r.CSRFIssuedTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "armor_csrf_issued_total",
			Help: "Total number of CSRF tokens issued",
		},
	)

	r.AuthFailuresTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "armor_auth_failures_total",
			Help: "Total number of token verification failures by reason",
		},
		[]string{"reason"},
	)

	r.TokensIssuedTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "armor_tokens_issued_total",
			Help: "Total number of bearer tokens issued",
		},
	)

	r.TokensRevokedTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "armor_tokens_revoked_total",
			Help: "Total number of bearer tokens revoked before expiry",
		},
	)

	r.RevocationSetSize = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "armor_revocation_set_size",
			Help: "Number of JTIs currently held in the revocation set",
		},
	)

	r.ValidationFailuresTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "armor_validation_failures_total",
			Help: "Total number of input validation failures by field",
		},
		[]string{"field"},
	)
}
