package ratelimit

import (
	"sync"
	"time"

	"github.com/bipedhq/armor/pkg/logging"
)

// Config configures the in-memory limiter.
type Config struct {
	SweepInterval    time.Duration // How often to sweep inactive clients (0 disables the sweep)
	ClientExpiration time.Duration // How long to keep clients with no activity
	MaxClients       int           // Maximum number of tracked clients (prevents DoS via memory exhaustion)
}

// DefaultConfig returns sensible defaults for the in-memory limiter.
func DefaultConfig() *Config {
	return &Config{
		SweepInterval:    5 * time.Minute,
		ClientExpiration: 30 * time.Minute,
		MaxClients:       100000,
	}
}

// window holds the request timestamps recorded for one client within the
// trailing window. Entries older than the window are pruned lazily on access.
type window struct {
	mu       sync.Mutex
	stamps   []time.Time
	lastSeen time.Time
}

// prune drops timestamps at or before the cutoff. Caller holds w.mu.
func (w *window) prune(cutoff time.Time) {
	keep := 0
	for _, ts := range w.stamps {
		if ts.After(cutoff) {
			w.stamps[keep] = ts
			keep++
		}
	}
	w.stamps = w.stamps[:keep]
}

// Limiter tracks request timestamps per client identity within a sliding
// time window. It is safe for concurrent use; the check-and-record step is
// atomic per identity.
type Limiter struct {
	config  *Config
	logger  logging.Logger
	mu      sync.RWMutex
	clients map[Identity]*window
	stopCh  chan struct{}
	now     func() time.Time
}

// NewLimiter creates a new in-memory sliding-window limiter.
// If the config enables a sweep interval, a background sweep goroutine is
// started; call Stop to terminate it.
func NewLimiter(config *Config, logger logging.Logger) *Limiter {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	l := &Limiter{
		config:  config,
		logger:  logger.With(logging.Component("ratelimit")),
		clients: make(map[Identity]*window),
		stopCh:  make(chan struct{}),
		now:     time.Now,
	}

	if config.SweepInterval > 0 {
		go l.sweepLoop()
	}

	return l
}

// Allow checks whether a request from the given key fits within maxRequests
// per windowDuration, recording the request if it does. It returns whether
// the request is allowed and how much quota remains after it.
// Invalid limits fail closed.
func (l *Limiter) Allow(key string, maxRequests int, windowDuration time.Duration) (bool, int) {
	if maxRequests <= 0 || windowDuration <= 0 {
		return false, 0
	}

	id := NewIdentity(key)
	w := l.getWindow(id)

	// Nil window means the client cap was hit; deny rather than track.
	if w == nil {
		return false, 0
	}

	now := l.now()

	w.mu.Lock()
	defer w.mu.Unlock()

	w.prune(now.Add(-windowDuration))
	w.lastSeen = now

	if len(w.stamps) >= maxRequests {
		return false, 0
	}

	w.stamps = append(w.stamps, now)
	return true, maxRequests - len(w.stamps)
}

// RemainingQuota reports how many requests the key could still make within
// the window without recording anything. Used to populate response headers.
func (l *Limiter) RemainingQuota(key string, maxRequests int, windowDuration time.Duration) int {
	if maxRequests <= 0 || windowDuration <= 0 {
		return 0
	}

	id := NewIdentity(key)

	l.mu.RLock()
	w, exists := l.clients[id]
	l.mu.RUnlock()

	if !exists {
		return maxRequests
	}

	now := l.now()
	cutoff := now.Add(-windowDuration)

	w.mu.Lock()
	defer w.mu.Unlock()

	count := 0
	for _, ts := range w.stamps {
		if ts.After(cutoff) {
			count++
		}
	}

	if count >= maxRequests {
		return 0
	}
	return maxRequests - count
}

// ResetAfter reports how long until the key's oldest recorded request leaves
// the window, i.e. when quota next frees up. Zero means the window is clear.
func (l *Limiter) ResetAfter(key string, windowDuration time.Duration) time.Duration {
	if windowDuration <= 0 {
		return 0
	}

	id := NewIdentity(key)

	l.mu.RLock()
	w, exists := l.clients[id]
	l.mu.RUnlock()

	if !exists {
		return 0
	}

	now := l.now()
	cutoff := now.Add(-windowDuration)

	w.mu.Lock()
	defer w.mu.Unlock()

	for _, ts := range w.stamps {
		if ts.After(cutoff) {
			return ts.Add(windowDuration).Sub(now)
		}
	}
	return 0
}

// getWindow gets or creates the window for an identity.
// Returns nil if the client limit has been reached and no window exists yet.
func (l *Limiter) getWindow(id Identity) *window {
	l.mu.RLock()
	w, exists := l.clients[id]
	clientCount := len(l.clients)
	l.mu.RUnlock()

	if exists {
		return w
	}

	if l.config.MaxClients > 0 && clientCount >= l.config.MaxClients {
		l.logger.Warn("max tracked clients reached, denying new client",
			logging.Int("max_clients", l.config.MaxClients),
			logging.ClientID(id.String()),
		)
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Double-check after acquiring the write lock.
	if w, exists = l.clients[id]; exists {
		return w
	}

	if l.config.MaxClients > 0 && len(l.clients) >= l.config.MaxClients {
		return nil
	}

	w = &window{lastSeen: l.now()}
	l.clients[id] = w
	return w
}

// sweepLoop periodically removes inactive client windows.
func (l *Limiter) sweepLoop() {
	ticker := time.NewTicker(l.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.sweep()
		case <-l.stopCh:
			return
		}
	}
}

// sweep removes windows with no recent activity.
// Two phases to keep the hot path's critical sections short:
// candidates are collected under the read lock, deleted under the write lock.
func (l *Limiter) sweep() {
	now := l.now()
	expired := make([]Identity, 0)

	l.mu.RLock()
	for id, w := range l.clients {
		w.mu.Lock()
		isExpired := now.Sub(w.lastSeen) > l.config.ClientExpiration
		w.mu.Unlock()
		if isExpired {
			expired = append(expired, id)
		}
	}
	l.mu.RUnlock()

	if len(expired) == 0 {
		return
	}

	l.mu.Lock()
	for _, id := range expired {
		// Re-verify expiration, the window may have been touched since.
		if w, exists := l.clients[id]; exists {
			w.mu.Lock()
			if now.Sub(w.lastSeen) > l.config.ClientExpiration {
				delete(l.clients, id)
			}
			w.mu.Unlock()
		}
	}
	l.mu.Unlock()

	l.logger.Debug("limiter sweep removed inactive clients", logging.Count(len(expired)))
}

// TrackedClients returns the number of client windows currently held.
func (l *Limiter) TrackedClients() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.clients)
}

// Stop terminates the background sweep goroutine, if one is running.
func (l *Limiter) Stop() {
	close(l.stopCh)
}
