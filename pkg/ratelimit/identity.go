package ratelimit

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Identity is a fixed-size digest of a client's stable key (usually its
// network address). Storing the digest instead of the raw key bounds memory
// per client and keeps addresses out of the limiter's state.
type Identity [16]byte

// unknownIdentity is the synthetic identity used when a caller cannot
// produce a usable client key. Identification fails open into a single
// shared bucket; the quota check itself still fails closed.
var unknownIdentity Identity

func init() {
	unknownIdentity = NewIdentity("unknown")
}

// NewIdentity derives an Identity from a caller-supplied key.
// Empty or whitespace-only keys collapse to the shared unknown identity.
func NewIdentity(key string) Identity {
	key = strings.TrimSpace(key)
	if key == "" {
		return unknownIdentity
	}

	sum := sha256.Sum256([]byte(key))

	var id Identity
	copy(id[:], sum[:16])
	return id
}

// String returns the hex form of the digest for logging.
func (id Identity) String() string {
	return hex.EncodeToString(id[:])
}
