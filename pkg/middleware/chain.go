// Package middleware composes the protection components into an explicit,
// ordered chain of request-processing steps, each of which can short-circuit
// with a rejection. Handlers are plain http.Handler values; no component is
// reached through global state.
package middleware

import (
	"encoding/json"
	"net/http"
)

// Middleware wraps an http.Handler with one processing step.
type Middleware func(http.Handler) http.Handler

// Chain composes middlewares into one. The first argument is the outermost
// step: Chain(a, b, c)(h) serves a(b(c(h))).
func Chain(middlewares ...Middleware) Middleware {
	return func(next http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}

// ContextKey is a type for context keys to avoid collisions
type ContextKey string

const (
	// RequestIDContextKey is the context key for the request ID
	RequestIDContextKey ContextKey = "request_id"
	// ClaimsContextKey is the context key for verified auth claims
	ClaimsContextKey ContextKey = "auth_claims"
)

// errorBody is the machine-readable shape of every rejection response.
type errorBody struct {
	Error      string   `json:"error"`
	Message    string   `json:"message,omitempty"`
	RetryAfter int      `json:"retry_after,omitempty"`
	Reasons    []string `json:"reasons,omitempty"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
