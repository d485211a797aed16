package middleware

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/bipedhq/armor/pkg/logging"
	"github.com/bipedhq/armor/pkg/metrics"
	"github.com/bipedhq/armor/pkg/ratelimit"
)

// Quota is the rate-limit decision surface the middleware needs. Satisfied
// by the in-memory limiter and by the Redis-backed store for multi-instance
// deployments.
type Quota interface {
	Allow(key string, maxRequests int, window time.Duration) (allowed bool, remaining int)
	RemainingQuota(key string, maxRequests int, window time.Duration) int
	ResetAfter(key string, window time.Duration) time.Duration
}

// ClientKeyFunc extracts the rate-limit key from a request.
type ClientKeyFunc func(*http.Request) string

// RateLimitOptions configures the rate-limit middleware.
type RateLimitOptions struct {
	Quota     Quota
	Preset    ratelimit.Preset
	KeyFunc   ClientKeyFunc
	Logger    logging.Logger
	Metrics   *metrics.Registry
	OnLimited func(w http.ResponseWriter, r *http.Request, key string) // optional hook
}

// RateLimit creates middleware that applies a quota per client key and
// attaches X-RateLimit-Limit, X-RateLimit-Remaining, and X-RateLimit-Reset
// headers. Rejections are 429 with a machine-readable JSON body.
func RateLimit(opts RateLimitOptions) Middleware {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if opts.Quota == nil {
				next.ServeHTTP(w, r)
				return
			}

			key := opts.KeyFunc(r)

			allowed, remaining := opts.Quota.Allow(key, opts.Preset.MaxRequests, opts.Preset.Window)
			reset := opts.Quota.ResetAfter(key, opts.Preset.Window)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(opts.Preset.MaxRequests))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.Itoa(ceilSeconds(reset)))

			if !allowed {
				retryAfter := ceilSeconds(reset)

				logger.Warn("rate limit exceeded",
					logging.String("preset", opts.Preset.Name),
					logging.Path(r.URL.Path),
					logging.Method(r.Method),
				)
				if opts.Metrics != nil {
					opts.Metrics.RecordRateLimited(opts.Preset.Name)
				}
				if opts.OnLimited != nil {
					opts.OnLimited(w, r, key)
				}

				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				writeJSON(w, http.StatusTooManyRequests, errorBody{
					Error:      "Rate limit exceeded",
					Message:    fmt.Sprintf("%d requests per %s allowed", opts.Preset.MaxRequests, opts.Preset.Window),
					RetryAfter: retryAfter,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ceilSeconds rounds a duration up to whole seconds so a client that waits
// the advertised time is guaranteed to be past the window edge.
func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}
