package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/bipedhq/armor/pkg/metrics"
)

// Metrics creates middleware that records request counts, durations, and
// in-flight gauge for every request.
func Metrics(registry *metrics.Registry) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if registry == nil {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()

			registry.HTTPRequestsInFlight.Inc()
			defer registry.HTTPRequestsInFlight.Dec()

			sw := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(sw, r)

			registry.RecordHTTPRequest(r.Method, r.URL.Path, strconv.Itoa(sw.statusCode), time.Since(start))
		})
	}
}
