package goGuard

import (
	"context"
	"errors"

	internalaudit "github.com/MrEthical07/goGuard/internal/audit"
)

// Audit event types emitted by the engine.
const (
	AuditEventRateLimitExceeded    = "rate_limit_exceeded"
	AuditEventRateLimitReset       = "rate_limit_reset"
	AuditEventRequestBlocked       = "request_blocked"
	AuditEventIPAutoBlocked        = "ip_auto_blocked"
	AuditEventIPBlocked            = "ip_blocked"
	AuditEventIPUnblocked          = "ip_unblocked"
	AuditEventAccountLocked        = "account_locked"
	AuditEventAccountUnlocked      = "account_unlocked"
	AuditEventRefreshSuccess       = "refresh_success"
	AuditEventRefreshFailure       = "refresh_failure"
	AuditEventRefreshReuseDetected = "refresh_reuse_detected"
)

// AuditErrorCode is the stable, low-cardinality error label carried in
// [AuditEvent.Error].
type AuditErrorCode string

const (
	auditErrRateLimited       AuditErrorCode = "rate_limited"
	auditErrIPBlocked         AuditErrorCode = "ip_blocked"
	auditErrAccountLocked     AuditErrorCode = "account_locked"
	auditErrRefreshInProgress AuditErrorCode = "refresh_in_progress"
	auditErrRefreshReuse      AuditErrorCode = "refresh_reuse"
	auditErrUpstream          AuditErrorCode = "upstream_failed"
	auditErrUnavailable       AuditErrorCode = "backend_unavailable"
	auditErrInvalidRequest    AuditErrorCode = "invalid_request"
	auditErrInternal          AuditErrorCode = "internal_error"
)

// auditSubject names who or what an event is about.
type auditSubject struct {
	UserID     string
	TenantID   string
	Category   Category
	Identifier string
}

func newAuditDispatcher(cfg AuditConfig, sink AuditSink) *internalaudit.Dispatcher {
	return internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Enabled,
		BufferSize: cfg.BufferSize,
		DropIfFull: cfg.DropIfFull,
		Critical:   []string{AuditEventRefreshReuseDetected, AuditEventIPAutoBlocked},
	}, sink)
}

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	subject auditSubject,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}
	tenantID := subject.TenantID
	if tenantID == "" {
		tenantID = tenantIDFromContext(ctx)
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		ID:         internalaudit.NewEventID(),
		Timestamp:  e.now().UTC(),
		EventType:  eventType,
		UserID:     subject.UserID,
		TenantID:   tenantID,
		IP:         clientIPFromContext(ctx),
		Identifier: subject.Identifier,
		Success:    success,
		Metadata:   metadata,
	}
	if subject.Category.Valid() {
		event.Category = subject.Category.String()
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrRateLimitExceeded):
		return auditErrRateLimited
	case errors.Is(err, ErrIPBlocked):
		return auditErrIPBlocked
	case errors.Is(err, ErrAccountLocked):
		return auditErrAccountLocked
	case errors.Is(err, ErrRefreshInProgress):
		return auditErrRefreshInProgress
	case errors.Is(err, ErrRefreshReuse):
		return auditErrRefreshReuse
	case errors.Is(err, ErrUpstreamRefreshFailed),
		errors.Is(err, ErrNoIdentityProvider):
		return auditErrUpstream
	case errors.Is(err, ErrStoreUnavailable),
		errors.Is(err, ErrDegraded):
		return auditErrUnavailable
	case errors.Is(err, ErrInvalidCategory),
		errors.Is(err, ErrInvalidIdentifier),
		errors.Is(err, ErrInvalidDuration):
		return auditErrInvalidRequest
	default:
		return auditErrInternal
	}
}
