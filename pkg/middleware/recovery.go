package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/bipedhq/armor/pkg/logging"
)

// PanicRecovery creates middleware that recovers from panics in HTTP
// handlers. The stack trace is logged; the client gets a generic 500.
func PanicRecovery(logger logging.Logger) Middleware {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic in HTTP handler",
						logging.Method(r.Method),
						logging.Path(r.URL.Path),
						logging.Any("panic", err),
						logging.String("stack", string(debug.Stack())),
					)

					writeJSON(w, http.StatusInternalServerError, errorBody{
						Error: "Internal server error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
