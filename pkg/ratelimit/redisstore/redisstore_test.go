package redisstore

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupStore starts a miniredis instance and wires a store to it with a
// controllable clock.
func setupStore(t *testing.T) (*Store, *time.Time) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store := NewWithClient(client, "", nil)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	return store, &now
}

func TestStore_Allow(t *testing.T) {
	store, _ := setupStore(t)

	for i := 0; i < 3; i++ {
		allowed, remaining := store.Allow("clientA", 3, time.Minute)
		require.True(t, allowed, "request %d should be allowed", i+1)
		assert.Equal(t, 3-i-1, remaining)
	}

	allowed, remaining := store.Allow("clientA", 3, time.Minute)
	assert.False(t, allowed, "4th request within window should be denied")
	assert.Equal(t, 0, remaining)
}

func TestStore_WindowSlides(t *testing.T) {
	store, now := setupStore(t)

	for i := 0; i < 3; i++ {
		store.Allow("clientA", 3, time.Minute)
	}
	allowed, _ := store.Allow("clientA", 3, time.Minute)
	require.False(t, allowed, "quota should be exhausted")

	*now = now.Add(61 * time.Second)

	allowed, _ = store.Allow("clientA", 3, time.Minute)
	assert.True(t, allowed, "request after window elapsed should be allowed")
}

func TestStore_IdentityIsolation(t *testing.T) {
	store, _ := setupStore(t)

	for i := 0; i < 2; i++ {
		store.Allow("clientA", 2, time.Minute)
	}
	allowed, _ := store.Allow("clientA", 2, time.Minute)
	require.False(t, allowed)

	allowed, _ = store.Allow("clientB", 2, time.Minute)
	assert.True(t, allowed, "exhausting clientA must not affect clientB")
}

func TestStore_OvershootIsRemoved(t *testing.T) {
	store, _ := setupStore(t)

	store.Allow("clientA", 1, time.Minute)

	// Each denied attempt must take its own recording back out, or denials
	// would push the window's reset time forward forever.
	for i := 0; i < 5; i++ {
		allowed, _ := store.Allow("clientA", 1, time.Minute)
		require.False(t, allowed)
	}

	assert.Equal(t, 0, store.RemainingQuota("clientA", 1, time.Minute))

	reset := store.ResetAfter("clientA", time.Minute)
	assert.LessOrEqual(t, reset, time.Minute, "denied attempts must not extend the window")
}

func TestStore_InvalidLimitsFailClosed(t *testing.T) {
	store, _ := setupStore(t)

	tests := []struct {
		name   string
		max    int
		window time.Duration
	}{
		{"zero max", 0, time.Minute},
		{"negative max", -1, time.Minute},
		{"zero window", 5, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			allowed, remaining := store.Allow("clientA", tt.max, tt.window)
			assert.False(t, allowed)
			assert.Equal(t, 0, remaining)
		})
	}
}

func TestStore_RemainingQuotaDoesNotMutate(t *testing.T) {
	store, _ := setupStore(t)

	assert.Equal(t, 10, store.RemainingQuota("clientA", 10, time.Minute))

	store.Allow("clientA", 10, time.Minute)

	for i := 0; i < 5; i++ {
		assert.Equal(t, 9, store.RemainingQuota("clientA", 10, time.Minute))
	}
}

func TestStore_ResetAfter(t *testing.T) {
	store, now := setupStore(t)

	assert.Equal(t, time.Duration(0), store.ResetAfter("clientA", time.Minute))

	store.Allow("clientA", 3, time.Minute)
	*now = now.Add(20 * time.Second)

	assert.Equal(t, 40*time.Second, store.ResetAfter("clientA", time.Minute))
}

func TestStore_Reset(t *testing.T) {
	store, _ := setupStore(t)

	store.Allow("clientA", 1, time.Minute)
	allowed, _ := store.Allow("clientA", 1, time.Minute)
	require.False(t, allowed)

	require.NoError(t, store.Reset("clientA"))

	allowed, _ = store.Allow("clientA", 1, time.Minute)
	assert.True(t, allowed, "quota should be fresh after reset")
}

func TestStore_UnavailableRedisDenies(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	store := NewWithClient(client, "", nil)

	mr.Close()

	allowed, remaining := store.Allow("clientA", 5, time.Minute)
	assert.False(t, allowed, "store errors must deny, not admit")
	assert.Equal(t, 0, remaining)
	assert.Equal(t, 0, store.RemainingQuota("clientA", 5, time.Minute))
}

func TestNew_RequiresAddress(t *testing.T) {
	_, err := New(Config{}, nil)
	assert.Error(t, err)
}
