package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/bipedhq/armor/pkg/auth"
	"github.com/bipedhq/armor/pkg/logging"
	"github.com/bipedhq/armor/pkg/metrics"
)

// AuthOptions configures the bearer-token middleware.
type AuthOptions struct {
	Authority *auth.Authority
	Audience  string
	Issuer    string
	Logger    logging.Logger
	Metrics   *metrics.Registry
}

// RequireAuth creates middleware that verifies the Bearer credential and
// places the claims in the request context. Every verification failure gets
// the same 401 body; the specific error kind is only logged and counted.
func RequireAuth(opts AuthOptions) Middleware {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeJSON(w, http.StatusUnauthorized, errorBody{
					Error: "Authentication required",
				})
				return
			}

			claims, err := opts.Authority.Verify(token, opts.Audience, opts.Issuer)
			if err != nil {
				reason := failureReason(err)
				logger.Warn("token verification failed",
					logging.Reason(reason),
					logging.Path(r.URL.Path),
				)
				if opts.Metrics != nil {
					opts.Metrics.RecordAuthFailure(reason)
				}

				writeJSON(w, http.StatusUnauthorized, errorBody{
					Error: "Invalid or expired token",
				})
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole creates middleware that rejects authenticated requests whose
// role claim does not match. Must run inside RequireAuth.
func RequireRole(role string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok || claims.Role != role {
				writeJSON(w, http.StatusForbidden, errorBody{
					Error: "Insufficient permissions",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClaimsFromContext extracts verified claims placed by RequireAuth.
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(ClaimsContextKey).(*auth.Claims)
	return claims, ok
}

// bearerToken extracts the credential from the Authorization header.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// failureReason maps verification errors to stable metric label values.
func failureReason(err error) string {
	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		return "expired"
	case errors.Is(err, auth.ErrSignatureInvalid):
		return "signature_invalid"
	case errors.Is(err, auth.ErrTokenRevoked):
		return "revoked"
	case errors.Is(err, auth.ErrIssuerMismatch):
		return "issuer_mismatch"
	case errors.Is(err, auth.ErrAudienceMismatch):
		return "audience_mismatch"
	default:
		return "malformed"
	}
}
