package middleware

import (
	"net/http"

	"github.com/bipedhq/armor/pkg/csrf"
	"github.com/bipedhq/armor/pkg/logging"
	"github.com/bipedhq/armor/pkg/metrics"
)

// CSRFTokenHeader is the request header carrying the anti-forgery token.
const CSRFTokenHeader = "X-CSRF-Token"

// SessionIDFunc extracts the session identifier from a request, typically
// from a session cookie. Empty means no session.
type SessionIDFunc func(*http.Request) string

// CSRFOptions configures the CSRF middleware.
type CSRFOptions struct {
	Guard     *csrf.Guard
	SessionID SessionIDFunc
	Logger    logging.Logger
	Metrics   *metrics.Registry
}

// CSRF creates middleware that validates the anti-forgery token on
// state-changing requests. Safe methods pass through untouched. Missing,
// expired, or mismatched tokens are all rejected with the same 403 so the
// response does not reveal which check failed.
func CSRF(opts CSRFOptions) Middleware {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if opts.Guard == nil || isSafeMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			sessionID := opts.SessionID(r)
			presented := r.Header.Get(CSRFTokenHeader)

			if !opts.Guard.ValidateToken(sessionID, presented) {
				logger.Warn("csrf validation failed",
					logging.Method(r.Method),
					logging.Path(r.URL.Path),
				)
				if opts.Metrics != nil {
					opts.Metrics.RecordCSRFRejected()
				}

				writeJSON(w, http.StatusForbidden, errorBody{
					Error: "CSRF validation failed",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// isSafeMethod reports whether the method is read-only per RFC 9110.
func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	default:
		return false
	}
}
