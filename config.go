package goGuard

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goGuard/internal/stores"
)

// Config is cloned into the Engine at Build and is immutable afterwards.
type Config struct {
	RateLimit RateLimitConfig
	Failure   FailureConfig
	Refresh   RefreshConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
	Store     StoreConfig
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig controls the decision engine.
type RateLimitConfig struct {
	// FailOpen admits requests with Verdict.Degraded set when the counter
	// store fails. When false such requests are denied with
	// ErrStoreUnavailable.
	FailOpen bool
	// Policies overrides the built-in policy per category. Categories that
	// are absent keep their default.
	Policies map[Category]Policy
}

// FailureConfig controls escalation of credential-abuse failures into IP
// blocks.
type FailureConfig struct {
	Window        time.Duration
	Threshold     int
	BlockDuration time.Duration
}

/*
====================================
REFRESH CONFIG
====================================
*/

// RefreshLeaseTTL is the lifetime of the per-user refresh lease. A holder
// that crashes blocks that user's refreshes for at most this long.
const RefreshLeaseTTL = stores.DefaultLeaseTTL

// RefreshConfig controls the refresh coordinator.
type RefreshConfig struct {
	// UpstreamTimeout bounds the identity provider call. Together with three
	// store round trips it must fit inside [RefreshLeaseTTL].
	UpstreamTimeout time.Duration
	// FallbackTokenTTL is the blacklist lifetime for refresh tokens whose
	// expiry cannot be read (opaque tokens).
	FallbackTokenTTL time.Duration
	// MinBlacklistTTL floors the blacklist lifetime of nearly expired tokens.
	MinBlacklistTTL time.Duration
	// HashKey keys the BLAKE2b token hash. At most 64 bytes; empty means
	// unkeyed.
	HashKey []byte
}

// AuditConfig controls async audit dispatch.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// StoreConfig bounds individual store round trips.
type StoreConfig struct {
	OperationTimeout time.Duration
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		RateLimit: RateLimitConfig{
			FailOpen: true,
		},
		Failure: FailureConfig{
			Window:        5 * time.Minute,
			Threshold:     10,
			BlockDuration: 30 * time.Minute,
		},
		Refresh: RefreshConfig{
			UpstreamTimeout:  5 * time.Second,
			FallbackTokenTTL: 7 * 24 * time.Hour,
			MinBlacklistTTL:  time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
		Store: StoreConfig{
			OperationTimeout: 500 * time.Millisecond,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	if cfg.RateLimit.Policies != nil {
		out.RateLimit.Policies = make(map[Category]Policy, len(cfg.RateLimit.Policies))
		for c, p := range cfg.RateLimit.Policies {
			out.RateLimit.Policies[c] = p
		}
	}
	out.Refresh.HashKey = cloneBytes(cfg.Refresh.HashKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// refreshBudget is the worst-case time a refresh holds its lease before
// releasing it.
func (c *Config) refreshBudget() time.Duration {
	return c.Refresh.UpstreamTimeout + 3*c.Store.OperationTimeout
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// Rate limit
	for cat, p := range c.RateLimit.Policies {
		if !cat.Valid() {
			return fmt.Errorf("RateLimit policy: %w: %s", ErrInvalidCategory, cat)
		}
		if err := p.Validate(); err != nil {
			return fmt.Errorf("RateLimit policy %s: %w", cat, err)
		}
	}

	// Failure tracker
	if c.Failure.Window < time.Second {
		return errors.New("Failure Window must be >= 1s")
	}
	if c.Failure.Threshold < 1 {
		return errors.New("Failure Threshold must be >= 1")
	}
	if c.Failure.BlockDuration <= 0 {
		return errors.New("Failure BlockDuration must be > 0")
	}

	// Refresh
	if c.Refresh.UpstreamTimeout <= 0 {
		return errors.New("Refresh UpstreamTimeout must be > 0")
	}
	if c.Refresh.FallbackTokenTTL <= 0 {
		return errors.New("Refresh FallbackTokenTTL must be > 0")
	}
	if c.Refresh.MinBlacklistTTL <= 0 {
		return errors.New("Refresh MinBlacklistTTL must be > 0")
	}
	if c.Refresh.MinBlacklistTTL > c.Refresh.FallbackTokenTTL {
		return errors.New("Refresh MinBlacklistTTL must be <= FallbackTokenTTL")
	}
	if len(c.Refresh.HashKey) > 64 {
		return errors.New("Refresh HashKey must be at most 64 bytes")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	// Store
	if c.Store.OperationTimeout < 0 {
		return errors.New("Store OperationTimeout must be >= 0")
	}

	// A refresh holds the lease across the reuse check, the upstream call,
	// the blacklist write and the release.
	if budget := c.refreshBudget(); budget >= RefreshLeaseTTL {
		return fmt.Errorf("Refresh UpstreamTimeout + 3 x Store OperationTimeout (%s) must be shorter than the %s refresh lease", budget, RefreshLeaseTTL)
	}

	return nil
}
