package limiters

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/MrEthical07/goGuard/internal/rate"
	"github.com/MrEthical07/goGuard/internal/store"
)

const failurePrefix = "failures:"

// FailureConfig holds the escalation policy of the failure tracker.
type FailureConfig struct {
	Window        time.Duration
	Threshold     int
	BlockDuration time.Duration
}

// ErrNotTracked rejects categories the failure tracker does not count.
var ErrNotTracked = errors.New("category is not tracked for failures")

// FailureOutcome describes what a recorded failure caused.
type FailureOutcome struct {
	Count    int64
	Blocked  bool
	BlockTTL time.Duration
}

// FailureTracker counts discrete credential-abuse failures per identifier on
// its own fixed window and blocks the identifier as an IP once the threshold
// is reached. It never locks accounts.
type FailureTracker struct {
	store  store.Client
	config FailureConfig
	blocks *DenyList
}

// NewFailureTracker creates a tracker escalating into blocks.
func NewFailureTracker(s store.Client, cfg FailureConfig, blocks *DenyList) *FailureTracker {
	return &FailureTracker{store: s, config: cfg, blocks: blocks}
}

func (f *FailureTracker) key(c rate.Category, identifier string) string {
	return failurePrefix + c.String() + ":" + store.EscapeSegment(identifier)
}

// RecordFailure increments the failure counter. Replays are counted again.
// Once the post-increment count reaches the threshold every further failure
// (re)blocks the identifier for the configured duration.
func (f *FailureTracker) RecordFailure(ctx context.Context, c rate.Category, identifier string) (FailureOutcome, error) {
	if !c.IsCredentialAbuse() {
		return FailureOutcome{}, fmt.Errorf("%w: %s", ErrNotTracked, c)
	}

	count, _, err := f.store.IncrWithTTL(ctx, f.key(c, identifier), f.config.Window)
	if err != nil {
		return FailureOutcome{}, err
	}

	out := FailureOutcome{Count: count}
	if count < int64(f.config.Threshold) {
		return out, nil
	}

	if _, err := f.blocks.Add(ctx, identifier, f.config.BlockDuration); err != nil {
		return out, err
	}
	out.Blocked = true
	out.BlockTTL = f.config.BlockDuration
	return out, nil
}

// Count returns the failures recorded in the current window.
func (f *FailureTracker) Count(ctx context.Context, c rate.Category, identifier string) (int64, error) {
	if !c.IsCredentialAbuse() {
		return 0, fmt.Errorf("%w: %s", ErrNotTracked, c)
	}
	raw, _, found, err := f.store.GetWithTTL(ctx, f.key(c, identifier))
	if err != nil || !found {
		return 0, err
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("limiters: failure counter for %s holds non-integer value", c)
	}
	return n, nil
}

// Reset clears the failure counter for identifier.
func (f *FailureTracker) Reset(ctx context.Context, c rate.Category, identifier string) error {
	if !c.IsCredentialAbuse() {
		return fmt.Errorf("%w: %s", ErrNotTracked, c)
	}
	_, err := f.store.Delete(ctx, f.key(c, identifier))
	return err
}
