package goGuard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goGuard/internal/flows"
	"github.com/MrEthical07/goGuard/internal/stores"
	"github.com/MrEthical07/goGuard/jwt"
)

// RefreshAccessToken rotates refreshToken for userID in tenantID.
//
// Concurrent refreshes for the same user are serialized by a short lease;
// the loser gets [ErrRefreshInProgress] and should retry. A token that was
// already rotated is rejected with [ErrRefreshReuse] and reported as a
// security incident. Identity provider failures return an error matching
// both [ErrUpstreamRefreshFailed] and the original cause. Lease acquisition,
// the reuse check and blacklisting fail closed with [ErrStoreUnavailable].
func (e *Engine) RefreshAccessToken(ctx context.Context, tenantID, userID, refreshToken string) (TokenPair, error) {
	start := time.Now()
	defer e.observeLatency(MetricRefreshLatency, start)

	if err := e.ready(); err != nil {
		return TokenPair{}, err
	}
	if err := validTenantID(tenantID); err != nil {
		return TokenPair{}, fmt.Errorf("tenant id: %w", err)
	}
	if err := validIdentifier(userID); err != nil {
		return TokenPair{}, fmt.Errorf("user id: %w", err)
	}
	if refreshToken == "" {
		return TokenPair{}, fmt.Errorf("%w: empty refresh token", ErrInvalidIdentifier)
	}
	if e.idp == nil {
		return TokenPair{}, ErrNoIdentityProvider
	}

	res := flows.RunRefresh(ctx, flows.RefreshRequest{
		TenantID:     tenantID,
		UserID:       userID,
		RefreshToken: refreshToken,
	}, e.flowDeps.Refresh)

	return e.refreshOutcome(ctx, res)
}

func (e *Engine) refreshOutcome(ctx context.Context, res flows.RefreshResult) (TokenPair, error) {
	if res.ReleaseErr != nil {
		e.warnf("refresh lease release failed: %v", res.ReleaseErr)
	}
	subject := auditSubject{UserID: res.UserID, TenantID: res.TenantID, Category: CategoryTokenRefresh, Identifier: res.UserID}

	var err error
	switch res.Failure {
	case flows.RefreshFailureNone:
		e.metricInc(MetricRefreshSuccess)
		e.emitAudit(ctx, AuditEventRefreshSuccess, true, subject, nil, nil)
		return TokenPair{AccessToken: res.AccessToken, RefreshToken: res.RefreshToken}, nil
	case flows.RefreshFailureLockBusy:
		e.metricInc(MetricRefreshLockBusy)
		err = ErrRefreshInProgress
	case flows.RefreshFailureReuse:
		e.metricInc(MetricRefreshReuseDetected)
		e.warnf("refresh token reuse detected for tenant %s", res.TenantID)
		e.emitAudit(ctx, AuditEventRefreshReuseDetected, false, subject, ErrRefreshReuse, func() map[string]string {
			return map[string]string{"state": res.FailedIn.String()}
		})
		return TokenPair{}, ErrRefreshReuse
	case flows.RefreshFailureUpstream:
		e.metricInc(MetricRefreshUpstreamFailure)
		err = errors.Join(ErrUpstreamRefreshFailed, res.Err)
	case flows.RefreshFailureRotate:
		e.metricInc(MetricRefreshRotateFailure)
		err = storeUnavailable(res.Err)
	case flows.RefreshFailureLockUnavailable, flows.RefreshFailureReuseCheckUnavailable:
		e.metricInc(MetricRefreshStoreFailure)
		err = storeUnavailable(res.Err)
	default:
		err = fmt.Errorf("refresh failed in %s: %v", res.FailedIn, res.Err)
	}

	e.emitAudit(ctx, AuditEventRefreshFailure, false, subject, err, func() map[string]string {
		return map[string]string{"state": res.FailedIn.String()}
	})
	return TokenPair{}, err
}

func (e *Engine) buildFlowDeps() flows.Deps {
	return flows.Deps{
		Refresh: flows.RefreshDeps{
			Locker:          e.locker,
			Blacklist:       e.blacklist,
			Upstream:        e.upstreamRefresh,
			UpstreamTimeout: e.config.Refresh.UpstreamTimeout,
			LockKey:         stores.RefreshLockKey,
			TokenTTL:        e.blacklistTTL,
			Warn:            e.warnf,
		},
	}
}

func (e *Engine) upstreamRefresh(ctx context.Context, tenantID, refreshToken string) (string, string, error) {
	if e.idp == nil {
		return "", "", ErrNoIdentityProvider
	}
	pair, err := e.idp.Refresh(ctx, tenantID, refreshToken)
	if err != nil {
		return "", "", err
	}
	return pair.AccessToken, pair.RefreshToken, nil
}

// blacklistTTL keeps a consumed token blacklisted for as long as it could
// still be presented.
func (e *Engine) blacklistTTL(token string) time.Duration {
	ttl, ok := jwt.RemainingLifetime(token, e.now())
	if !ok {
		ttl = e.config.Refresh.FallbackTokenTTL
	}
	if ttl < e.config.Refresh.MinBlacklistTTL {
		ttl = e.config.Refresh.MinBlacklistTTL
	}
	return ttl
}
