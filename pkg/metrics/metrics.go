package metrics

import (
	"time"
)

// RecordHTTPRequest records an HTTP request with its duration
func (r *Registry) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	r.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	r.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// RecordRateLimited records a request rejected by the rate limiter
func (r *Registry) RecordRateLimited(preset string) {
	r.RateLimitedTotal.WithLabelValues(preset).Inc()
}

// RecordAuthFailure records a token verification failure by reason
func (r *Registry) RecordAuthFailure(reason string) {
	r.AuthFailuresTotal.WithLabelValues(reason).Inc()
}

// RecordTokenIssued records a successful token issuance
func (r *Registry) RecordTokenIssued() {
	r.TokensIssuedTotal.Inc()
}

// RecordTokenRevoked records an explicit revocation
func (r *Registry) RecordTokenRevoked() {
	r.TokensRevokedTotal.Inc()
}

// RecordCSRFRejected records a request rejected by the CSRF guard
func (r *Registry) RecordCSRFRejected() {
	r.CSRFRejectedTotal.Inc()
}

// RecordCSRFIssued records a CSRF token issuance
func (r *Registry) RecordCSRFIssued() {
	r.CSRFIssuedTotal.Inc()
}

// RecordValidationFailure records an input validation failure for a field
func (r *Registry) RecordValidationFailure(field string) {
	r.ValidationFailuresTotal.WithLabelValues(field).Inc()
}

// UpdateGauges refreshes the gauges that mirror component state
func (r *Registry) UpdateGauges(trackedClients, revokedCount int) {
	r.RateLimitTrackedClients.Set(float64(trackedClients))
	r.RevocationSetSize.Set(float64(revokedCount))
}
