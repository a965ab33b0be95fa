package goGuard

import (
	"fmt"
	"time"
)

// LintSeverity ranks a [LintWarning].
type LintSeverity int

const (
	LintInfo LintSeverity = iota
	LintWarn
	LintHigh
)

func (s LintSeverity) String() string {
	switch s {
	case LintInfo:
		return "info"
	case LintWarn:
		return "warn"
	case LintHigh:
		return "high"
	default:
		return "unknown"
	}
}

// LintWarning is an advisory finding about a configuration that validates
// but is probably not what an operator wants in production.
type LintWarning struct {
	Code     string
	Severity LintSeverity
	Message  string
}

// LintResult is the ordered list of findings returned by [Config.Lint].
type LintResult []LintWarning

// Codes returns the warning codes in order.
func (r LintResult) Codes() []string {
	out := make([]string, 0, len(r))
	for _, w := range r {
		out = append(out, w.Code)
	}
	return out
}

// AtLeast returns the findings with severity >= min.
func (r LintResult) AtLeast(min LintSeverity) LintResult {
	var out LintResult
	for _, w := range r {
		if w.Severity >= min {
			out = append(out, w)
		}
	}
	return out
}

// Lint reports advisory findings. It never fails; use [Config.Validate] for
// hard errors.
func (c *Config) Lint() LintResult {
	var ws LintResult
	add := func(code string, sev LintSeverity, format string, args ...any) {
		ws = append(ws, LintWarning{Code: code, Severity: sev, Message: fmt.Sprintf(format, args...)})
	}

	if c.RateLimit.FailOpen {
		add("fail_open", LintInfo, "rate limits are skipped while the store is unreachable")
	}
	if len(c.Refresh.HashKey) == 0 {
		add("token_hash_unkeyed", LintWarn, "blacklisted refresh tokens are hashed without a key")
	}
	if !c.Audit.Enabled {
		add("audit_disabled", LintWarn, "reuse detections and blocks are not audited")
	}
	if c.Audit.Enabled && c.Audit.DropIfFull {
		add("audit_drop_if_full", LintInfo, "audit events are dropped when the buffer of %d is full", c.Audit.BufferSize)
	}
	if c.Refresh.UpstreamTimeout > RefreshLeaseTTL/2 {
		add("upstream_timeout_near_lease", LintWarn,
			"upstream timeout %s leaves little of the %s lease for blacklisting", c.Refresh.UpstreamTimeout, RefreshLeaseTTL)
	}
	if c.Failure.Threshold > 100 {
		add("failure_threshold_high", LintWarn, "%d failures are tolerated before blocking", c.Failure.Threshold)
	}
	if c.Failure.BlockDuration > 0 && c.Failure.BlockDuration < c.Failure.Window {
		add("block_shorter_than_window", LintWarn,
			"block duration %s is shorter than the failure window %s", c.Failure.BlockDuration, c.Failure.Window)
	}
	if c.Store.OperationTimeout == 0 {
		add("store_timeout_disabled", LintHigh, "store calls are bounded only by the caller context")
	}
	if c.Refresh.FallbackTokenTTL > 0 && c.Refresh.FallbackTokenTTL < time.Hour {
		add("fallback_ttl_short", LintWarn,
			"opaque refresh tokens leave the blacklist after %s and could be replayed later", c.Refresh.FallbackTokenTTL)
	}
	return ws
}
