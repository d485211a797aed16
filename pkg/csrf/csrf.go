// Package csrf issues and validates per-session anti-forgery tokens.
//
// Tokens are 32 bytes of crypto/rand output, URL-safe base64 encoded, stored
// keyed by session ID with an expiry. Validation is a constant-time compare
// against the session's current token (and, during rotation, the previous
// one, so a second tab holding the old token is not broken mid-flight).
package csrf

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/bipedhq/armor/pkg/logging"
)

const tokenRandomLength = 32 // bytes of random data, 256 bits of entropy

var (
	ErrEmptySessionID = errors.New("session ID cannot be empty")
	ErrEntropySource  = errors.New("failed to read random bytes")
)

// Config configures the CSRF guard.
type Config struct {
	TokenTTL time.Duration // How long an issued token stays valid
	Rotate   bool          // Issue a fresh token after each successful validation
}

// DefaultConfig returns a static-per-session policy with a 12 hour TTL.
func DefaultConfig() *Config {
	return &Config{
		TokenTTL: 12 * time.Hour,
		Rotate:   false,
	}
}

// sessionToken is the per-session record. previous holds the last rotated-out
// token, which stays acceptable until the record expires. That keeps a
// legitimate multi-tab client working at the cost of a one-deep reuse window.
type sessionToken struct {
	current   string
	previous  string
	expiresAt time.Time
}

// Guard issues and validates anti-forgery tokens. Safe for concurrent use.
type Guard struct {
	config   *Config
	logger   logging.Logger
	mu       sync.RWMutex
	sessions map[string]*sessionToken
	now      func() time.Time
}

// NewGuard creates a new CSRF guard.
func NewGuard(config *Config, logger logging.Logger) *Guard {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	return &Guard{
		config:   config,
		logger:   logger.With(logging.Component("csrf")),
		sessions: make(map[string]*sessionToken),
		now:      time.Now,
	}
}

// IssueToken generates a new token for the session and stores it, replacing
// any existing one. The returned token is meant to be embedded in a form or
// response header by the caller.
func (g *Guard) IssueToken(sessionID string) (string, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return "", ErrEmptySessionID
	}

	token, err := randomToken()
	if err != nil {
		return "", err
	}

	now := g.now()

	g.mu.Lock()
	g.pruneExpiredLocked(now)
	g.sessions[sessionID] = &sessionToken{
		current:   token,
		expiresAt: now.Add(g.config.TokenTTL),
	}
	g.mu.Unlock()

	return token, nil
}

// ValidateToken reports whether the presented token matches the session's
// stored token and has not expired. Failures are reported as false, never an
// error; the caller decides the HTTP response.
func (g *Guard) ValidateToken(sessionID, presented string) bool {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" || presented == "" {
		return false
	}

	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	st, exists := g.sessions[sessionID]
	if !exists {
		return false
	}

	if now.After(st.expiresAt) {
		delete(g.sessions, sessionID)
		return false
	}

	if !tokenEqual(presented, st.current) && !tokenEqual(presented, st.previous) {
		g.logger.Warn("csrf token mismatch", logging.SessionID(sessionID))
		return false
	}

	if g.config.Rotate {
		fresh, err := randomToken()
		if err != nil {
			// Keep the current token rather than leave the session without one.
			g.logger.Error("csrf token rotation failed", logging.Error(err))
			return true
		}
		st.previous = st.current
		st.current = fresh
		st.expiresAt = now.Add(g.config.TokenTTL)
	}

	return true
}

// CurrentToken returns the session's active token without validating,
// for re-embedding in rendered responses. Empty if none or expired.
func (g *Guard) CurrentToken(sessionID string) string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	st, exists := g.sessions[sessionID]
	if !exists || g.now().After(st.expiresAt) {
		return ""
	}
	return st.current
}

// InvalidateSession drops the session's token, e.g. on logout.
func (g *Guard) InvalidateSession(sessionID string) {
	g.mu.Lock()
	delete(g.sessions, sessionID)
	g.mu.Unlock()
}

// ActiveSessions returns the number of sessions with a stored token.
func (g *Guard) ActiveSessions() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.sessions)
}

// pruneExpiredLocked removes expired session records. Caller holds g.mu.
// Bounded so a single issuance never pays for a full scan of a large map.
func (g *Guard) pruneExpiredLocked(now time.Time) {
	const maxScan = 64

	scanned := 0
	for id, st := range g.sessions {
		if now.After(st.expiresAt) {
			delete(g.sessions, id)
		}
		scanned++
		if scanned >= maxScan {
			return
		}
	}
}

// randomToken returns a URL-safe base64 token with 256 bits of entropy.
func randomToken() (string, error) {
	randomBytes := make([]byte, tokenRandomLength)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", ErrEntropySource
	}
	return base64.RawURLEncoding.EncodeToString(randomBytes), nil
}

// tokenEqual compares tokens in constant time to prevent timing attacks.
func tokenEqual(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
