package rate

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/MrEthical07/goGuard/internal/store"
)

// State is the store-resident usage of one counter within its window.
type State struct {
	Count int64
	TTL   time.Duration
}

// Counter performs fixed-window counting against the shared store.
type Counter struct {
	store store.Client
}

// NewCounter creates a [Counter] backed by s.
func NewCounter(s store.Client) *Counter {
	return &Counter{store: s}
}

// Increment records one hit and returns the post-increment state. The window
// is attached only when this hit opened it.
func (c *Counter) Increment(ctx context.Context, key Key, window time.Duration) (State, error) {
	count, ttl, err := c.store.IncrWithTTL(ctx, key.String(), window)
	if err != nil {
		return State{}, err
	}
	return State{Count: count, TTL: ttl}, nil
}

// Peek reads the current state without mutating it. A missing counter is
// reported as the zero State.
func (c *Counter) Peek(ctx context.Context, key Key) (State, error) {
	raw, ttl, found, err := c.store.GetWithTTL(ctx, key.String())
	if err != nil {
		return State{}, err
	}
	if !found {
		return State{}, nil
	}
	count, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return State{}, fmt.Errorf("rate: counter %s holds non-integer value", key)
	}
	if count < 0 {
		count = 0
	}
	return State{Count: count, TTL: ttl}, nil
}

// Reset deletes the counter. It reports whether a counter existed.
func (c *Counter) Reset(ctx context.Context, key Key) (bool, error) {
	return c.store.Delete(ctx, key.String())
}
