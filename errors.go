package goGuard

import "errors"

var (
	// ErrRateLimitExceeded is returned with a denying [Verdict] when a counter
	// went over its policy limit.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	// ErrIPBlocked is returned when the caller IP has an active block entry.
	ErrIPBlocked = errors.New("ip blocked")
	// ErrAccountLocked is returned when the user has an active lock entry.
	ErrAccountLocked = errors.New("account locked")
	// ErrRefreshInProgress is returned when another refresh holds the user's lease.
	ErrRefreshInProgress = errors.New("refresh already in progress")
	// ErrRefreshReuse is returned when a consumed refresh token is presented again.
	ErrRefreshReuse = errors.New("refresh token reuse detected")
	// ErrUpstreamRefreshFailed is returned when the identity provider failed,
	// timed out or answered with an unusable pair. It is joined with the cause.
	ErrUpstreamRefreshFailed = errors.New("upstream refresh failed")
	// ErrStoreUnavailable wraps shared store failures on fail-closed paths.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrDegraded marks a fail-open read whose answer could not be confirmed.
	ErrDegraded           = errors.New("degraded: store unreachable, failing open")
	ErrInvalidCategory    = errors.New("invalid category")
	ErrInvalidIdentifier  = errors.New("invalid identifier")
	ErrInvalidDuration    = errors.New("invalid duration")
	ErrEngineNotReady     = errors.New("engine not ready")
	ErrNoIdentityProvider = errors.New("identity provider not configured")
)
