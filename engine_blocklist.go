package goGuard

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/MrEthical07/goGuard/internal/limiters"
)

// BlockIP blocks ip for d, replacing any existing block and its TTL.
func (e *Engine) BlockIP(ctx context.Context, ip string, d time.Duration) error {
	return e.addDeny(ctx, e.blocks, ip, d, MetricIPBlocked, AuditEventIPBlocked, auditSubject{Category: CategoryIP, Identifier: ip})
}

// UnblockIP removes the block on ip and reports whether one existed.
func (e *Engine) UnblockIP(ctx context.Context, ip string) (bool, error) {
	return e.removeDeny(ctx, e.blocks, ip, MetricIPUnblocked, AuditEventIPUnblocked, auditSubject{Category: CategoryIP, Identifier: ip})
}

// IsIPBlocked reports whether ip has an active block. On a store failure it
// returns false with an error wrapping [ErrDegraded].
func (e *Engine) IsIPBlocked(ctx context.Context, ip string) (bool, error) {
	return e.containsDeny(ctx, e.blocks, ip)
}

// IPBlockTTL returns the remaining block time; found is false when ip is
// not blocked.
func (e *Engine) IPBlockTTL(ctx context.Context, ip string) (time.Duration, bool, error) {
	return e.denyTTL(ctx, e.blocks, ip)
}

// GetBlockedIPs lists every active block with its remaining TTL.
func (e *Engine) GetBlockedIPs(ctx context.Context) ([]DenyEntry, error) {
	return e.listDeny(ctx, e.blocks)
}

// LockAccount locks userID for d, replacing any existing lock and its TTL.
func (e *Engine) LockAccount(ctx context.Context, userID string, d time.Duration) error {
	return e.addDeny(ctx, e.locks, userID, d, MetricAccountLocked, AuditEventAccountLocked, auditSubject{UserID: userID, Category: CategoryUser, Identifier: userID})
}

func (e *Engine) UnlockAccount(ctx context.Context, userID string) (bool, error) {
	return e.removeDeny(ctx, e.locks, userID, MetricAccountUnlocked, AuditEventAccountUnlocked, auditSubject{UserID: userID, Category: CategoryUser, Identifier: userID})
}

// IsAccountLocked reports whether userID has an active lock. On a store
// failure it returns false with an error wrapping [ErrDegraded].
func (e *Engine) IsAccountLocked(ctx context.Context, userID string) (bool, error) {
	return e.containsDeny(ctx, e.locks, userID)
}

func (e *Engine) AccountLockTTL(ctx context.Context, userID string) (time.Duration, bool, error) {
	return e.denyTTL(ctx, e.locks, userID)
}

func (e *Engine) GetLockedAccounts(ctx context.Context) ([]DenyEntry, error) {
	return e.listDeny(ctx, e.locks)
}

func (e *Engine) addDeny(ctx context.Context, list *limiters.DenyList, id string, d time.Duration, metric MetricID, event string, subject auditSubject) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := validIdentifier(id); err != nil {
		return err
	}
	if d <= 0 {
		return fmt.Errorf("%w: must be > 0, got %s", ErrInvalidDuration, d)
	}
	if _, err := list.Add(ctx, id, d); err != nil {
		return storeUnavailable(err)
	}
	e.metricInc(metric)
	e.emitAudit(ctx, event, true, subject, nil, func() map[string]string {
		return map[string]string{"ttl_ms": strconv.FormatInt(d.Milliseconds(), 10)}
	})
	return nil
}

func (e *Engine) removeDeny(ctx context.Context, list *limiters.DenyList, id string, metric MetricID, event string, subject auditSubject) (bool, error) {
	if err := e.ready(); err != nil {
		return false, err
	}
	if err := validIdentifier(id); err != nil {
		return false, err
	}
	existed, err := list.Remove(ctx, id)
	if err != nil {
		return false, storeUnavailable(err)
	}
	if existed {
		e.metricInc(metric)
		e.emitAudit(ctx, event, true, subject, nil, nil)
	}
	return existed, nil
}

func (e *Engine) containsDeny(ctx context.Context, list *limiters.DenyList, id string) (bool, error) {
	if err := e.ready(); err != nil {
		return false, err
	}
	if err := validIdentifier(id); err != nil {
		return false, err
	}
	ok, err := list.Contains(ctx, id)
	if err != nil {
		e.warnf("deny list read failed, failing open: %v", err)
		return false, degraded(err)
	}
	return ok, nil
}

func (e *Engine) denyTTL(ctx context.Context, list *limiters.DenyList, id string) (time.Duration, bool, error) {
	if err := e.ready(); err != nil {
		return 0, false, err
	}
	if err := validIdentifier(id); err != nil {
		return 0, false, err
	}
	ttl, found, err := list.TTL(ctx, id)
	if err != nil {
		return 0, false, degraded(err)
	}
	return ttl, found, nil
}

func (e *Engine) listDeny(ctx context.Context, list *limiters.DenyList) ([]DenyEntry, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	entries, err := list.List(ctx)
	if err != nil {
		return nil, storeUnavailable(err)
	}
	return entries, nil
}
