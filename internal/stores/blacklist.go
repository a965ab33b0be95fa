package stores

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goGuard/internal/store"
	"golang.org/x/crypto/blake2b"
)

// ErrInvalidBlacklistTTL rejects entries that would outlive nothing.
var ErrInvalidBlacklistTTL = errors.New("blacklist ttl must be > 0")

// Blacklist records consumed refresh tokens by hash.
type Blacklist struct {
	store   store.Client
	hashKey []byte
}

// NewBlacklist creates a Blacklist. hashKey is an optional server-side pepper
// of at most 64 bytes mixed into every token hash.
func NewBlacklist(s store.Client, hashKey []byte) (*Blacklist, error) {
	if len(hashKey) > blake2b.Size {
		return nil, fmt.Errorf("blacklist hash key must be <= %d bytes", blake2b.Size)
	}
	key := make([]byte, len(hashKey))
	copy(key, hashKey)
	return &Blacklist{store: s, hashKey: key}, nil
}

// Hash returns the hex BLAKE2b-256 digest stored in place of token.
func (b *Blacklist) Hash(token string) string {
	if len(b.hashKey) == 0 {
		sum := blake2b.Sum256([]byte(token))
		return hex.EncodeToString(sum[:])
	}
	h, err := blake2b.New256(b.hashKey)
	if err != nil {
		// Key length is validated in NewBlacklist.
		panic(err)
	}
	_, _ = h.Write([]byte(token))
	return hex.EncodeToString(h.Sum(nil))
}

// BlacklistKey is the store key for one consumed token hash.
func BlacklistKey(tenantID, tokenHash string) string {
	return store.EscapeSegment(tenantID) + ":refresh:blacklist:" + tokenHash
}

// Add marks token as consumed for ttl.
func (b *Blacklist) Add(ctx context.Context, tenantID, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidBlacklistTTL
	}
	return b.store.Set(ctx, BlacklistKey(tenantID, b.Hash(token)), "1", ttl)
}

// Contains reports whether token was already consumed in tenantID.
func (b *Blacklist) Contains(ctx context.Context, tenantID, token string) (bool, error) {
	return b.store.Exists(ctx, BlacklistKey(tenantID, b.Hash(token)))
}
