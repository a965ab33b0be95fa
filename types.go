package goGuard

import (
	"context"
	"io"
	"time"

	internalaudit "github.com/MrEthical07/goGuard/internal/audit"
	"github.com/MrEthical07/goGuard/internal/limiters"
	internalmetrics "github.com/MrEthical07/goGuard/internal/metrics"
	"github.com/MrEthical07/goGuard/internal/rate"
)

// Category is the class of thing being limited.
type Category = rate.Category

const (
	CategoryIP           = rate.CategoryIP
	CategoryUser         = rate.CategoryUser
	CategoryEndpoint     = rate.CategoryEndpoint
	CategoryLogin        = rate.CategoryLogin
	CategoryOTP          = rate.CategoryOTP
	CategoryTokenRefresh = rate.CategoryTokenRefresh
	CategoryInvalidToken = rate.CategoryInvalidToken
)

// Categories lists every category in declaration order.
func Categories() []Category {
	return rate.Categories()
}

// ParseCategory maps a key-space name such as "token_refresh" to its
// Category. Unknown names return an error wrapping [ErrInvalidCategory].
func ParseCategory(s string) (Category, error) {
	c, err := rate.ParseCategory(s)
	if err != nil {
		return 0, invalidCategory(err)
	}
	return c, nil
}

// Policy is a (MaxRequests, Window) limit rule.
type Policy = rate.Policy

// DefaultPolicy returns the built-in policy for c.
func DefaultPolicy(c Category) (Policy, error) {
	p, err := rate.DefaultPolicy(c)
	if err != nil {
		return Policy{}, invalidCategory(err)
	}
	return p, nil
}

// Action is the escalation hint attached to a denial.
type Action = rate.Action

const (
	ActionNone        = rate.ActionNone
	ActionReject      = rate.ActionReject
	ActionBlockIP     = rate.ActionBlockIP
	ActionLockAccount = rate.ActionLockAccount
	ActionRevokeToken = rate.ActionRevokeToken
)

// Verdict is the outcome of [Engine.CheckRateLimit] and
// [Engine.GetRateLimitStatus].
type Verdict = rate.Verdict

// DenyEntry is an active IP block or account lock with its remaining TTL.
type DenyEntry = limiters.DenyEntry

// FailureResult is returned by [Engine.RecordFailureWithResult].
type FailureResult struct {
	Count    int64
	Blocked  bool
	BlockTTL time.Duration
}

// TokenPair is a freshly issued access and refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// IdentityProvider exchanges a refresh token for a new pair. Implementations
// must return a refresh token different from the one presented.
type IdentityProvider interface {
	Refresh(ctx context.Context, tenantID, refreshToken string) (TokenPair, error)
}

// IdentityProviderFunc adapts a function to [IdentityProvider].
type IdentityProviderFunc func(ctx context.Context, tenantID, refreshToken string) (TokenPair, error)

func (f IdentityProviderFunc) Refresh(ctx context.Context, tenantID, refreshToken string) (TokenPair, error) {
	return f(ctx, tenantID, refreshToken)
}

// SecurityReport is a read-only snapshot of the engine's effective security
// posture, returned by [Engine.SecurityReport].
type SecurityReport struct {
	Policies              map[Category]Policy
	FailOpen              bool
	FailureWindow         time.Duration
	FailureThreshold      int
	FailureBlockDuration  time.Duration
	LeaseTTL              time.Duration
	UpstreamTimeout       time.Duration
	FallbackTokenTTL      time.Duration
	MinBlacklistTTL       time.Duration
	KeyedTokenHash        bool
	IdentityProviderWired bool
	AuditEnabled          bool
	AuditDropIfFull       bool
	// Audit throughput since Build. Reuse-detection and auto-block events
	// wait briefly for buffer space before they count as dropped.
	AuditDelivered        uint64
	AuditDropped          uint64
	AuditDroppedByType    map[string]uint64
	MetricsEnabled        bool
	StoreOperationTimeout time.Duration
}

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes one JSON-encoded event per line to an [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// MultiSink fans every event out to several sinks.
type MultiSink = internalaudit.MultiSink

func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// MetricID identifies a counter or latency histogram.
type MetricID = internalmetrics.MetricID

const (
	MetricRateLimitAllowed       = internalmetrics.MetricRateLimitAllowed
	MetricRateLimitDenied        = internalmetrics.MetricRateLimitDenied
	MetricRateLimitDegraded      = internalmetrics.MetricRateLimitDegraded
	MetricIPBlockedRejected      = internalmetrics.MetricIPBlockedRejected
	MetricAccountLockedRejected  = internalmetrics.MetricAccountLockedRejected
	MetricFailureRecorded        = internalmetrics.MetricFailureRecorded
	MetricAutoBlock              = internalmetrics.MetricAutoBlock
	MetricIPBlocked              = internalmetrics.MetricIPBlocked
	MetricIPUnblocked            = internalmetrics.MetricIPUnblocked
	MetricAccountLocked          = internalmetrics.MetricAccountLocked
	MetricAccountUnlocked        = internalmetrics.MetricAccountUnlocked
	MetricRateLimitReset         = internalmetrics.MetricRateLimitReset
	MetricRefreshSuccess         = internalmetrics.MetricRefreshSuccess
	MetricRefreshLockBusy        = internalmetrics.MetricRefreshLockBusy
	MetricRefreshReuseDetected   = internalmetrics.MetricRefreshReuseDetected
	MetricRefreshUpstreamFailure = internalmetrics.MetricRefreshUpstreamFailure
	MetricRefreshRotateFailure   = internalmetrics.MetricRefreshRotateFailure
	MetricRefreshStoreFailure    = internalmetrics.MetricRefreshStoreFailure
	MetricCheckLatency           = internalmetrics.MetricCheckLatency
	MetricRefreshLatency         = internalmetrics.MetricRefreshLatency

	// MetricIDCount is one past the last MetricID.
	MetricIDCount = internalmetrics.MetricIDCount
)

// Metrics holds atomic counters and optional latency histograms.
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time copy of all metrics.
type MetricsSnapshot = internalmetrics.Snapshot

// NewMetrics creates a [Metrics] instance. When Enabled is false every
// operation is a no-op.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return internalmetrics.New(internalmetrics.Config{
		Enabled:       cfg.Enabled,
		EnableLatency: cfg.EnableLatencyHistograms,
	})
}
