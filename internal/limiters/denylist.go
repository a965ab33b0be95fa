package limiters

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/goGuard/internal/store"
)

const (
	// BlockedIPPrefix namespaces the IP block registry.
	BlockedIPPrefix = "blocked_ip:"
	// LockedAccountPrefix namespaces the account lock registry.
	LockedAccountPrefix = "locked_account:"
)

// ErrInvalidDuration rejects deny entries that would never expire.
var ErrInvalidDuration = errors.New("deny duration must be > 0")

// DenyEntry is one active entry with its remaining lifetime.
type DenyEntry struct {
	ID  string
	TTL time.Duration
}

// DenyList is a TTL-governed set of denied identifiers under one key prefix.
// Both the IP block registry and the account lock registry are DenyLists.
type DenyList struct {
	store  store.Client
	prefix string
}

// NewDenyList creates a DenyList storing entries as prefix+escaped(id).
func NewDenyList(s store.Client, prefix string) *DenyList {
	return &DenyList{store: s, prefix: prefix}
}

func (d *DenyList) key(id string) string {
	return d.prefix + store.EscapeSegment(id)
}

// Add creates or overwrites the entry for id with a fresh TTL. It reports
// true whenever the entry is in place afterwards.
func (d *DenyList) Add(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, ErrInvalidDuration
	}
	stamp := strconv.FormatInt(time.Now().Unix(), 10)
	if err := d.store.Set(ctx, d.key(id), stamp, ttl); err != nil {
		return false, err
	}
	return true, nil
}

// Remove deletes the entry and reports whether one existed.
func (d *DenyList) Remove(ctx context.Context, id string) (bool, error) {
	return d.store.Delete(ctx, d.key(id))
}

func (d *DenyList) Contains(ctx context.Context, id string) (bool, error) {
	return d.store.Exists(ctx, d.key(id))
}

// TTL returns the remaining lifetime of the entry for id. found is false when
// no entry exists.
func (d *DenyList) TTL(ctx context.Context, id string) (time.Duration, bool, error) {
	return d.store.TTL(ctx, d.key(id))
}

// List enumerates every active entry with its TTL. TTLs are fetched in the
// same batched round trips as the enumeration.
func (d *DenyList) List(ctx context.Context) ([]DenyEntry, error) {
	entries, err := d.store.ScanWithTTL(ctx, d.prefix)
	if err != nil {
		return nil, err
	}
	out := make([]DenyEntry, 0, len(entries))
	for _, e := range entries {
		id := strings.TrimPrefix(e.Key, d.prefix)
		out = append(out, DenyEntry{ID: store.UnescapeSegment(id), TTL: e.TTL})
	}
	return out, nil
}
