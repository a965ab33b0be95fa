package goGuard

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	internalaudit "github.com/MrEthical07/goGuard/internal/audit"
	"github.com/MrEthical07/goGuard/internal/flows"
	"github.com/MrEthical07/goGuard/internal/limiters"
	"github.com/MrEthical07/goGuard/internal/rate"
	"github.com/MrEthical07/goGuard/internal/store"
	"github.com/MrEthical07/goGuard/internal/stores"
	xrate "golang.org/x/time/rate"
)

// maxIdentifierLen bounds identifiers and extra key parts so callers cannot
// mint arbitrarily large keys.
const maxIdentifierLen = 512

// Engine coordinates rate limiting, escalation and refresh rotation over the
// shared store. It holds no per-request state.
type Engine struct {
	config    Config
	store     store.Client
	policies  *rate.Registry
	counter   *rate.Counter
	blocks    *limiters.DenyList
	locks     *limiters.DenyList
	failures  *limiters.FailureTracker
	locker    *stores.Locker
	blacklist *stores.Blacklist
	idp       IdentityProvider
	audit     *internalaudit.Dispatcher
	metrics   *Metrics
	warnLimit *xrate.Limiter
	flowDeps  flows.Deps
	now       func() time.Time
}

// Close flushes pending audit events. The Redis client passed to the
// Builder is owned by the caller and stays open.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns how many audit events were dropped because the buffer
// was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// AuditDelivered returns how many audit events reached the sink.
func (e *Engine) AuditDelivered() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Delivered()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Ping checks that the shared store answers.
func (e *Engine) Ping(ctx context.Context) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}
	if err := e.store.Ping(ctx); err != nil {
		return storeUnavailable(err)
	}
	return nil
}

func (e *Engine) ready() error {
	if e == nil || e.store == nil || e.policies == nil {
		return ErrEngineNotReady
	}
	return nil
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) observeLatency(id MetricID, start time.Time) {
	if e == nil || !e.metrics.LatencyEnabled() {
		return
	}
	e.metrics.Observe(id, time.Since(start))
}

// warnf logs a best-effort warning. Bursts are sampled so a replay storm or
// store outage cannot flood the log.
func (e *Engine) warnf(format string, args ...any) {
	if e != nil && e.warnLimit != nil && !e.warnLimit.Allow() {
		return
	}
	log.Printf("goGuard: "+format, args...)
}

func validIdentifier(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidIdentifier)
	}
	if len(id) > maxIdentifierLen {
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidIdentifier, maxIdentifierLen)
	}
	return nil
}

// validTenantID also rejects dot segments, which URL-based identity
// providers would resolve to a different path.
func validTenantID(id string) error {
	if err := validIdentifier(id); err != nil {
		return err
	}
	if id == "." || id == ".." {
		return fmt.Errorf("%w: %q is not a tenant id", ErrInvalidIdentifier, id)
	}
	return nil
}

func validKeyParts(identifier string, extra []string) error {
	if err := validIdentifier(identifier); err != nil {
		return err
	}
	for _, part := range extra {
		if len(part) > maxIdentifierLen {
			return fmt.Errorf("%w: key part longer than %d bytes", ErrInvalidIdentifier, maxIdentifierLen)
		}
	}
	return nil
}

func storeUnavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

func degraded(err error) error {
	return fmt.Errorf("%w: %w: %v", ErrDegraded, ErrStoreUnavailable, err)
}

func invalidCategory(err error) error {
	return fmt.Errorf("%w: %v", ErrInvalidCategory, err)
}
