package auth

import (
	"hash/fnv"
	"sync"
	"time"
)

// revocationShards splits the set so the read-heavy Contains path on the
// verify hot path does not contend with Add on a single lock.
const revocationShards = 16

// revocationShard holds one slice of the revoked JTI set.
// Values are the revoked token's original expiry.
type revocationShard struct {
	mu      sync.RWMutex
	entries map[string]time.Time
}

// RevocationSet tracks JTIs invalidated before their natural expiry.
// Membership checks are O(1). Entries are pruned opportunistically on Add
// once their original expiry has passed; a revoked-but-expired token needs
// no further tracking because expiry alone already rejects it.
type RevocationSet struct {
	shards [revocationShards]*revocationShard
}

// NewRevocationSet creates an empty revocation set.
func NewRevocationSet() *RevocationSet {
	s := &RevocationSet{}
	for i := range s.shards {
		s.shards[i] = &revocationShard{entries: make(map[string]time.Time)}
	}
	return s
}

func (s *RevocationSet) shardFor(jti string) *revocationShard {
	h := fnv.New32a()
	h.Write([]byte(jti))
	return s.shards[h.Sum32()%revocationShards]
}

// Add inserts a JTI with its original expiry, pruning a bounded number of
// lapsed entries from the same shard while the write lock is held.
func (s *RevocationSet) Add(jti string, expiresAt, now time.Time) {
	shard := s.shardFor(jti)

	shard.mu.Lock()
	defer shard.mu.Unlock()

	shard.entries[jti] = expiresAt

	const maxScan = 32
	scanned := 0
	for id, exp := range shard.entries {
		if !exp.IsZero() && now.After(exp) {
			delete(shard.entries, id)
		}
		scanned++
		if scanned >= maxScan {
			break
		}
	}
}

// Contains reports whether the JTI has been revoked.
func (s *RevocationSet) Contains(jti string) bool {
	shard := s.shardFor(jti)

	shard.mu.RLock()
	defer shard.mu.RUnlock()

	_, revoked := shard.entries[jti]
	return revoked
}

// Prune removes entries whose original expiry has passed and returns how
// many were dropped.
func (s *RevocationSet) Prune(now time.Time) int {
	removed := 0
	for _, shard := range s.shards {
		shard.mu.Lock()
		for id, exp := range shard.entries {
			if !exp.IsZero() && now.After(exp) {
				delete(shard.entries, id)
				removed++
			}
		}
		shard.mu.Unlock()
	}
	return removed
}

// Len returns the number of tracked revocations.
func (s *RevocationSet) Len() int {
	total := 0
	for _, shard := range s.shards {
		shard.mu.RLock()
		total += len(shard.entries)
		shard.mu.RUnlock()
	}
	return total
}
