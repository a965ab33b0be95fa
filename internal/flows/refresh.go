package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goGuard/internal/stores"
)

// RefreshState is a step of the refresh state machine.
type RefreshState int

const (
	RefreshStateAcquireLock RefreshState = iota
	RefreshStateReuseCheck
	RefreshStateUpstream
	RefreshStateRotate
	RefreshStateRelease
	RefreshStateDone
)

func (s RefreshState) String() string {
	switch s {
	case RefreshStateAcquireLock:
		return "acquire_lock"
	case RefreshStateReuseCheck:
		return "reuse_check"
	case RefreshStateUpstream:
		return "upstream_refresh"
	case RefreshStateRotate:
		return "rotate"
	case RefreshStateRelease:
		return "release"
	case RefreshStateDone:
		return "done"
	default:
		return "unknown"
	}
}

// RefreshFailureKind classifies refresh flow failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureLockBusy
	RefreshFailureLockUnavailable
	RefreshFailureReuse
	RefreshFailureReuseCheckUnavailable
	RefreshFailureUpstream
	RefreshFailureRotate
)

var (
	errEmptyPair    = errors.New("upstream returned an empty token pair")
	errNotRotated   = errors.New("upstream returned the presented refresh token")
	errLeaseExpired = errors.New("refresh lease expired before release")
)

// RefreshRequest identifies one refresh attempt.
type RefreshRequest struct {
	TenantID     string
	UserID       string
	RefreshToken string
}

// RefreshResult carries either the issued token pair or failure metadata.
type RefreshResult struct {
	Failure  RefreshFailureKind
	Err      error
	FailedIn RefreshState
	TenantID string
	UserID   string

	AccessToken  string
	RefreshToken string
	BlacklistTTL time.Duration

	// Released reports whether this run deleted its own lease. It is false
	// when the lock was never acquired or the lease had already expired.
	Released   bool
	ReleaseErr error
}

type RefreshLocker interface {
	TryLock(ctx context.Context, key string) (stores.Lease, bool, error)
	Unlock(ctx context.Context, lease stores.Lease) (bool, error)
}

type RefreshBlacklist interface {
	Contains(ctx context.Context, tenantID, token string) (bool, error)
	Add(ctx context.Context, tenantID, token string, ttl time.Duration) error
}

// RefreshUpstream exchanges a refresh token at the identity provider.
type RefreshUpstream func(ctx context.Context, tenantID, refreshToken string) (newAccess, newRefresh string, err error)

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	Locker          RefreshLocker
	Blacklist       RefreshBlacklist
	Upstream        RefreshUpstream
	UpstreamTimeout time.Duration
	LockKey         func(tenantID, userID string) string
	// TokenTTL returns the remaining validity of the presented token, used
	// as the blacklist entry lifetime.
	TokenTTL func(token string) time.Duration
	Warn     func(string, ...any)
}

// RunRefresh drives one request through AcquireLock, ReuseCheck,
// UpstreamRefresh, Rotate, Release and Done. Every terminal outcome passes
// through Release.
func RunRefresh(ctx context.Context, req RefreshRequest, deps RefreshDeps) RefreshResult {
	res := RefreshResult{
		TenantID: req.TenantID,
		UserID:   req.UserID,
	}

	var (
		lease stores.Lease
		held  bool
	)
	fail := func(kind RefreshFailureKind, err error, in RefreshState) RefreshState {
		res.Failure = kind
		res.Err = err
		res.FailedIn = in
		res.AccessToken = ""
		res.RefreshToken = ""
		return RefreshStateRelease
	}

	state := RefreshStateAcquireLock
	for {
		switch state {
		case RefreshStateAcquireLock:
			l, ok, err := deps.Locker.TryLock(ctx, deps.LockKey(req.TenantID, req.UserID))
			switch {
			case err != nil:
				state = fail(RefreshFailureLockUnavailable, err, state)
			case !ok:
				state = fail(RefreshFailureLockBusy, nil, state)
			default:
				lease, held = l, true
				state = RefreshStateReuseCheck
			}

		case RefreshStateReuseCheck:
			consumed, err := deps.Blacklist.Contains(ctx, req.TenantID, req.RefreshToken)
			switch {
			case err != nil:
				state = fail(RefreshFailureReuseCheckUnavailable, err, state)
			case consumed:
				state = fail(RefreshFailureReuse, nil, state)
			default:
				state = RefreshStateUpstream
			}

		case RefreshStateUpstream:
			upstreamCtx, cancel := ctx, context.CancelFunc(func() {})
			if deps.UpstreamTimeout > 0 {
				upstreamCtx, cancel = context.WithTimeout(ctx, deps.UpstreamTimeout)
			}
			access, refresh, err := deps.Upstream(upstreamCtx, req.TenantID, req.RefreshToken)
			cancel()
			switch {
			case err != nil:
				state = fail(RefreshFailureUpstream, err, state)
			case access == "" || refresh == "":
				state = fail(RefreshFailureUpstream, errEmptyPair, state)
			case refresh == req.RefreshToken:
				state = fail(RefreshFailureUpstream, errNotRotated, state)
			default:
				res.AccessToken, res.RefreshToken = access, refresh
				state = RefreshStateRotate
			}

		case RefreshStateRotate:
			ttl := deps.TokenTTL(req.RefreshToken)
			if err := deps.Blacklist.Add(ctx, req.TenantID, req.RefreshToken, ttl); err != nil {
				state = fail(RefreshFailureRotate, err, state)
				break
			}
			res.BlacklistTTL = ttl
			state = RefreshStateRelease

		case RefreshStateRelease:
			if held {
				// The lease must be released even when the caller has gone away.
				released, err := deps.Locker.Unlock(context.WithoutCancel(ctx), lease)
				res.Released = released
				res.ReleaseErr = err
				if err == nil && !released && deps.Warn != nil {
					deps.Warn("%v", errLeaseExpired)
				}
			}
			if res.Failure != RefreshFailureNone {
				return res
			}
			state = RefreshStateDone

		case RefreshStateDone:
			return res

		default:
			return res
		}
	}
}
