// Package redisstore implements the rate limiter's quota contract against a
// shared Redis instance, so limits stay correct across multiple middleware
// processes. Timestamps live in a sorted set per identity, scored by unix
// milliseconds, pruned on every access. Millisecond scores stay exactly
// representable as float64 sorted-set scores; nanoseconds would not.
package redisstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/bipedhq/armor/pkg/logging"
	"github.com/bipedhq/armor/pkg/ratelimit"
)

// opTimeout bounds every Redis round trip so a slow store cannot stall the
// request path.
const opTimeout = 500 * time.Millisecond

// Store is a Redis-backed sliding-window limiter. It satisfies the same
// quota surface as the in-memory limiter; Redis errors fail closed (deny),
// since safety takes priority over availability for this subsystem.
type Store struct {
	client *redis.Client
	prefix string
	logger logging.Logger
	now    func() time.Time
}

// Config configures the Redis connection.
type Config struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// New connects to Redis and verifies the connection with a ping.
func New(cfg Config, logger logging.Logger) (*Store, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "armor:ratelimit"
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Store{
		client: client,
		prefix: cfg.Prefix,
		logger: logger.With(logging.Component("ratelimit-redis")),
		now:    time.Now,
	}, nil
}

// NewWithClient wraps an existing client, mainly for tests.
func NewWithClient(client *redis.Client, prefix string, logger logging.Logger) *Store {
	if prefix == "" {
		prefix = "armor:ratelimit"
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Store{
		client: client,
		prefix: prefix,
		logger: logger.With(logging.Component("ratelimit-redis")),
		now:    time.Now,
	}
}

// Close releases the Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) keyFor(key string) string {
	id := ratelimit.NewIdentity(key)
	return fmt.Sprintf("%s:%s", s.prefix, id.String())
}

// Allow records the request if it fits within maxRequests per window.
// Overshoot is corrected by removing the just-added member, so concurrent
// callers across instances cannot durably exceed the quota.
func (s *Store) Allow(key string, maxRequests int, window time.Duration) (bool, int) {
	if maxRequests <= 0 || window <= 0 {
		return false, 0
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	redisKey := s.keyFor(key)
	now := s.now()
	cutoff := now.Add(-window).UnixMilli()
	member := strconv.FormatInt(now.UnixMilli(), 10) + "-" + uuid.NewString()

	pipe := s.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "-inf", strconv.FormatInt(cutoff, 10))
	pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixMilli()), Member: member})
	card := pipe.ZCard(ctx, redisKey)
	pipe.Expire(ctx, redisKey, window)

	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Error("redis quota check failed, denying", logging.Error(err))
		return false, 0
	}

	count := int(card.Val())
	if count > maxRequests {
		// Over quota; take the recorded request back out.
		if err := s.client.ZRem(ctx, redisKey, member).Err(); err != nil {
			s.logger.Error("failed to remove overshoot member", logging.Error(err))
		}
		return false, 0
	}

	return true, maxRequests - count
}

// RemainingQuota reports available quota without recording anything.
func (s *Store) RemainingQuota(key string, maxRequests int, window time.Duration) int {
	if maxRequests <= 0 || window <= 0 {
		return 0
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	cutoff := s.now().Add(-window).UnixMilli()

	count, err := s.client.ZCount(ctx, s.keyFor(key), strconv.FormatInt(cutoff, 10), "+inf").Result()
	if err != nil {
		s.logger.Error("redis remaining-quota read failed", logging.Error(err))
		return 0
	}

	remaining := maxRequests - int(count)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ResetAfter reports how long until the oldest recorded request leaves the
// window.
func (s *Store) ResetAfter(key string, window time.Duration) time.Duration {
	if window <= 0 {
		return 0
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	now := s.now()
	cutoff := now.Add(-window).UnixMilli()

	entries, err := s.client.ZRangeByScoreWithScores(ctx, s.keyFor(key), &redis.ZRangeBy{
		Min:   strconv.FormatInt(cutoff, 10),
		Max:   "+inf",
		Count: 1,
	}).Result()
	if err != nil || len(entries) == 0 {
		return 0
	}

	oldest := time.UnixMilli(int64(entries[0].Score))
	reset := oldest.Add(window).Sub(now)
	if reset < 0 {
		return 0
	}
	return reset
}

// Reset clears the recorded requests for a key.
func (s *Store) Reset(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	return s.client.Del(ctx, s.keyFor(key)).Err()
}
