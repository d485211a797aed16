package middleware

import (
	"net/http"
)

// BodySizeLimit creates middleware that caps incoming request bodies to
// prevent resource exhaustion via oversized payloads. Content-Length is
// checked up front; MaxBytesReader covers chunked bodies with no declared
// length.
func BodySizeLimit(maxBytes int64) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{
					Error: "Request body too large",
				})
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

			next.ServeHTTP(w, r)
		})
	}
}
