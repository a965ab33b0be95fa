package goGuard

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/MrEthical07/goGuard/internal/limiters"
)

// RecordFailure counts one credential-abuse failure (CategoryLogin or
// CategoryInvalidToken) for identifier. Once the failures in the current
// window reach Failure.Threshold the identifier is blocked as an IP for
// Failure.BlockDuration. Retries are counted again; accounts are never
// locked automatically.
func (e *Engine) RecordFailure(ctx context.Context, c Category, identifier string) error {
	_, err := e.RecordFailureWithResult(ctx, c, identifier)
	return err
}

// RecordFailureWithResult is [Engine.RecordFailure] that also reports the
// failure count and whether the call raised a block.
func (e *Engine) RecordFailureWithResult(ctx context.Context, c Category, identifier string) (FailureResult, error) {
	if err := e.ready(); err != nil {
		return FailureResult{}, err
	}
	if !c.IsCredentialAbuse() {
		return FailureResult{}, fmt.Errorf("%w: %s does not track failures", ErrInvalidCategory, c)
	}
	if err := validIdentifier(identifier); err != nil {
		return FailureResult{}, err
	}

	out, err := e.failures.RecordFailure(ctx, c, identifier)
	if err != nil {
		if errors.Is(err, limiters.ErrNotTracked) {
			return FailureResult{}, invalidCategory(err)
		}
		return FailureResult{Count: out.Count}, storeUnavailable(err)
	}
	e.metricInc(MetricFailureRecorded)

	res := FailureResult{Count: out.Count, Blocked: out.Blocked, BlockTTL: out.BlockTTL}
	if out.Blocked {
		e.metricInc(MetricAutoBlock)
		e.warnf("identifier blocked after %d %s failures", out.Count, c)
		e.emitAudit(ctx, AuditEventIPAutoBlocked, true, auditSubject{Category: c, Identifier: identifier}, nil, func() map[string]string {
			return map[string]string{
				"failures":     strconv.FormatInt(out.Count, 10),
				"threshold":    strconv.Itoa(e.config.Failure.Threshold),
				"block_ttl_ms": strconv.FormatInt(out.BlockTTL.Milliseconds(), 10),
			}
		})
	}
	return res, nil
}

// FailureCount returns the failures recorded for identifier in the current
// window.
func (e *Engine) FailureCount(ctx context.Context, c Category, identifier string) (int64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	if !c.IsCredentialAbuse() {
		return 0, fmt.Errorf("%w: %s does not track failures", ErrInvalidCategory, c)
	}
	if err := validIdentifier(identifier); err != nil {
		return 0, err
	}
	n, err := e.failures.Count(ctx, c, identifier)
	if err != nil {
		return 0, storeUnavailable(err)
	}
	return n, nil
}
