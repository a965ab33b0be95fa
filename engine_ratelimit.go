package goGuard

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/MrEthical07/goGuard/internal/limiters"
	"github.com/MrEthical07/goGuard/internal/rate"
)

// CheckRateLimit counts one request against the policy of c and decides
// whether it may proceed.
//
// IP checks consult the block registry and user checks the lock registry
// first; an active entry denies with [ErrIPBlocked] or [ErrAccountLocked]
// without counting. A denial by the counter returns [ErrRateLimitExceeded]
// together with the verdict. Throttling never escalates: repeated abuse is
// escalated only through [Engine.RecordFailure].
//
// When the counter store fails the request is admitted with
// Verdict.Degraded set, unless RateLimit.FailOpen is false, in which case it
// is denied with [ErrStoreUnavailable].
func (e *Engine) CheckRateLimit(ctx context.Context, c Category, identifier string, extra ...string) (Verdict, error) {
	start := time.Now()
	defer e.observeLatency(MetricCheckLatency, start)

	if err := e.ready(); err != nil {
		return Verdict{}, err
	}
	policy, err := e.policies.Resolve(c)
	if err != nil {
		return Verdict{}, invalidCategory(err)
	}
	if err := validKeyParts(identifier, extra); err != nil {
		return Verdict{}, err
	}
	key := rate.NewKey(c, identifier, extra...)

	var gateDegraded bool
	switch c {
	case CategoryIP:
		v, denied, deg := e.denyGate(ctx, e.blocks, key, policy, ActionBlockIP)
		if denied {
			e.metricInc(MetricIPBlockedRejected)
			e.emitBlocked(ctx, key, v)
			return v, ErrIPBlocked
		}
		gateDegraded = deg
	case CategoryUser:
		v, denied, deg := e.denyGate(ctx, e.locks, key, policy, ActionLockAccount)
		if denied {
			e.metricInc(MetricAccountLockedRejected)
			e.emitBlocked(ctx, key, v)
			return v, ErrAccountLocked
		}
		gateDegraded = deg
	}

	state, err := e.counter.Increment(ctx, key, policy.Window)
	if err != nil {
		e.metricInc(MetricRateLimitDegraded)
		e.warnf("rate limit counter unavailable for %s: %v", c, err)
		if e.config.RateLimit.FailOpen {
			return rate.Degraded(key, policy), nil
		}
		return Verdict{
			Category:   c,
			Identifier: identifier,
			Limit:      policy.MaxRequests,
			Action:     ActionReject,
			Degraded:   true,
		}, storeUnavailable(err)
	}

	v := rate.Decide(key, policy, state)
	v.Degraded = gateDegraded
	if !v.Allowed {
		e.metricInc(MetricRateLimitDenied)
		e.emitAudit(ctx, AuditEventRateLimitExceeded, false, auditSubject{Category: c, Identifier: identifier}, ErrRateLimitExceeded, func() map[string]string {
			return map[string]string{
				"count":       strconv.FormatInt(v.CurrentCount, 10),
				"limit":       strconv.Itoa(v.Limit),
				"retry_after": strconv.FormatInt(v.RetryAfterSeconds(), 10),
			}
		})
		return v, ErrRateLimitExceeded
	}
	e.metricInc(MetricRateLimitAllowed)
	return v, nil
}

// denyGate reports whether an active deny entry stops the request. A store
// error fails open and is reported through the degraded flag.
func (e *Engine) denyGate(ctx context.Context, list *limiters.DenyList, key rate.Key, policy Policy, action Action) (Verdict, bool, bool) {
	ttl, found, err := list.TTL(ctx, key.Identifier)
	if err != nil {
		e.warnf("deny list unavailable for %s, failing open: %v", key.Category, err)
		return Verdict{}, false, true
	}
	if !found {
		return Verdict{}, false, false
	}
	return rate.Denied(key, policy, ttl, action), true, false
}

func (e *Engine) emitBlocked(ctx context.Context, key rate.Key, v Verdict) {
	err := error(ErrIPBlocked)
	if v.Action == ActionLockAccount {
		err = ErrAccountLocked
	}
	e.emitAudit(ctx, AuditEventRequestBlocked, false, auditSubject{Category: key.Category, Identifier: key.Identifier}, err, func() map[string]string {
		return map[string]string{
			"retry_after": strconv.FormatInt(v.RetryAfterSeconds(), 10),
		}
	})
}

// GetRateLimitStatus reports the counter of c/identifier without counting.
// For IP and user categories an active block or lock marks the verdict
// Blocked with its TTL as RetryAfter.
func (e *Engine) GetRateLimitStatus(ctx context.Context, c Category, identifier string, extra ...string) (Verdict, error) {
	if err := e.ready(); err != nil {
		return Verdict{}, err
	}
	policy, err := e.policies.Resolve(c)
	if err != nil {
		return Verdict{}, invalidCategory(err)
	}
	if err := validKeyParts(identifier, extra); err != nil {
		return Verdict{}, err
	}
	key := rate.NewKey(c, identifier, extra...)

	state, err := e.counter.Peek(ctx, key)
	if err != nil {
		return Verdict{}, storeUnavailable(err)
	}
	v := rate.Status(key, policy, state)

	var list *limiters.DenyList
	action := ActionNone
	switch c {
	case CategoryIP:
		list, action = e.blocks, ActionBlockIP
	case CategoryUser:
		list, action = e.locks, ActionLockAccount
	}
	if list != nil {
		ttl, found, err := list.TTL(ctx, identifier)
		switch {
		case err != nil:
			v.Degraded = true
		case found:
			v.Allowed = false
			v.Blocked = true
			v.Action = action
			v.RetryAfter = ttl
		}
	}
	return v, nil
}

// ResetRateLimit deletes the counter of c/identifier and records which
// operator did it. Resetting a counter that does not exist succeeds.
func (e *Engine) ResetRateLimit(ctx context.Context, c Category, identifier, adminID string, extra ...string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if _, err := e.policies.Resolve(c); err != nil {
		return invalidCategory(err)
	}
	if err := validKeyParts(identifier, extra); err != nil {
		return err
	}
	if err := validIdentifier(adminID); err != nil {
		return fmt.Errorf("admin id: %w", err)
	}

	existed, err := e.counter.Reset(ctx, rate.NewKey(c, identifier, extra...))
	if err != nil {
		return storeUnavailable(err)
	}

	e.metricInc(MetricRateLimitReset)
	e.emitAudit(ctx, AuditEventRateLimitReset, true, auditSubject{Category: c, Identifier: identifier}, nil, func() map[string]string {
		return map[string]string{
			"admin_id": adminID,
			"existed":  strconv.FormatBool(existed),
		}
	})
	return nil
}
