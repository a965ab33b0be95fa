package internaldefs

import (
	goGuard "github.com/MrEthical07/goGuard"
)

// Def names one engine metric for export.
type Def struct {
	ID   goGuard.MetricID
	Name string
	Help string
}

// Counters are exported in this order by every exporter.
var Counters = []Def{
	{ID: goGuard.MetricRateLimitAllowed, Name: "goguard_rate_limit_allowed_total", Help: "Rate limit checks that admitted the request."},
	{ID: goGuard.MetricRateLimitDenied, Name: "goguard_rate_limit_denied_total", Help: "Rate limit checks denied by a counter."},
	{ID: goGuard.MetricRateLimitDegraded, Name: "goguard_rate_limit_degraded_total", Help: "Rate limit checks answered without the counter store."},
	{ID: goGuard.MetricIPBlockedRejected, Name: "goguard_ip_blocked_rejected_total", Help: "Requests rejected because the client IP is blocked."},
	{ID: goGuard.MetricAccountLockedRejected, Name: "goguard_account_locked_rejected_total", Help: "Requests rejected because the account is locked."},
	{ID: goGuard.MetricFailureRecorded, Name: "goguard_failure_recorded_total", Help: "Credential-abuse failures recorded."},
	{ID: goGuard.MetricAutoBlock, Name: "goguard_auto_block_total", Help: "IPs blocked by the failure tracker."},
	{ID: goGuard.MetricIPBlocked, Name: "goguard_ip_blocked_total", Help: "Manual IP blocks."},
	{ID: goGuard.MetricIPUnblocked, Name: "goguard_ip_unblocked_total", Help: "Manual IP unblocks."},
	{ID: goGuard.MetricAccountLocked, Name: "goguard_account_locked_total", Help: "Account locks."},
	{ID: goGuard.MetricAccountUnlocked, Name: "goguard_account_unlocked_total", Help: "Account unlocks."},
	{ID: goGuard.MetricRateLimitReset, Name: "goguard_rate_limit_reset_total", Help: "Operator counter resets."},
	{ID: goGuard.MetricRefreshSuccess, Name: "goguard_refresh_success_total", Help: "Completed token rotations."},
	{ID: goGuard.MetricRefreshLockBusy, Name: "goguard_refresh_lock_busy_total", Help: "Refreshes refused because another refresh held the lease."},
	{ID: goGuard.MetricRefreshReuseDetected, Name: "goguard_refresh_reuse_detected_total", Help: "Presented refresh tokens that were already rotated."},
	{ID: goGuard.MetricRefreshUpstreamFailure, Name: "goguard_refresh_upstream_failure_total", Help: "Refreshes failed by the identity provider."},
	{ID: goGuard.MetricRefreshRotateFailure, Name: "goguard_refresh_rotate_failure_total", Help: "Refreshes whose old token could not be blacklisted."},
	{ID: goGuard.MetricRefreshStoreFailure, Name: "goguard_refresh_store_failure_total", Help: "Refreshes failed closed on a store error."},
}

// Histograms share the bucket layout in Bounds.
var Histograms = []Def{
	{ID: goGuard.MetricCheckLatency, Name: "goguard_check_latency_seconds", Help: "CheckRateLimit latency."},
	{ID: goGuard.MetricRefreshLatency, Name: "goguard_refresh_latency_seconds", Help: "RefreshAccessToken latency."},
}

// AuditDropped describes the dispatcher backpressure counter.
var AuditDropped = Def{
	Name: "goguard_audit_dropped_total",
	Help: "Audit events dropped because the dispatcher buffer was full.",
}

// BucketCount matches the engine's latency histogram layout.
const BucketCount = 8

// Bounds are the upper bucket bounds in seconds, as Prometheus le labels.
var Bounds = [BucketCount]string{"0.005", "0.01", "0.025", "0.05", "0.1", "0.25", "0.5", "+Inf"}

// BoundSuffixes are Bounds spelled for instrument names.
var BoundSuffixes = [BucketCount]string{"0_005", "0_01", "0_025", "0_05", "0_1", "0_25", "0_5", "inf"}

// Cumulative turns raw per-bucket counts into cumulative counts. Short
// input is zero-padded and extra buckets are ignored.
func Cumulative(raw []uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	var running uint64
	for i := 0; i < BucketCount; i++ {
		if i < len(raw) {
			running += raw[i]
		}
		out[i] = running
	}
	return out
}
