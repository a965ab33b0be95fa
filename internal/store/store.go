package store

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable wraps every backend failure returned by a [Client].
var ErrUnavailable = errors.New("store unavailable")

// Entry is a key found by [Client.ScanWithTTL] together with its remaining TTL.
// Keys that expire between the scan and the TTL lookup are omitted.
type Entry struct {
	Key string
	TTL time.Duration
}

// Client is the set of atomic primitives the security components rely on.
type Client interface {
	// IncrWithTTL increments key and attaches ttl only when the increment
	// created the key. It returns the post-increment count and the key's
	// remaining TTL.
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, time.Duration, error)
	// GetWithTTL returns the value and remaining TTL of key. found is false
	// when the key does not exist.
	GetWithTTL(ctx context.Context, key string) (value string, ttl time.Duration, found bool, err error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) (bool, error)
	// DeleteIfValue removes key only while it still holds value.
	DeleteIfValue(ctx context.Context, key, value string) (bool, error)
	// TTL reports the remaining lifetime of key. found is false when the key
	// does not exist.
	TTL(ctx context.Context, key string) (ttl time.Duration, found bool, err error)
	Exists(ctx context.Context, key string) (bool, error)
	ScanWithTTL(ctx context.Context, prefix string) ([]Entry, error)
	Ping(ctx context.Context) error
}
