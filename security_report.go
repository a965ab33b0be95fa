package goGuard

// SecurityReport returns the effective configuration of the engine. Policies
// include built-in defaults for categories that were not overridden.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}
	stats := e.audit.Stats()

	return SecurityReport{
		Policies:              e.policies.Snapshot(),
		FailOpen:              e.config.RateLimit.FailOpen,
		FailureWindow:         e.config.Failure.Window,
		FailureThreshold:      e.config.Failure.Threshold,
		FailureBlockDuration:  e.config.Failure.BlockDuration,
		LeaseTTL:              RefreshLeaseTTL,
		UpstreamTimeout:       e.config.Refresh.UpstreamTimeout,
		FallbackTokenTTL:      e.config.Refresh.FallbackTokenTTL,
		MinBlacklistTTL:       e.config.Refresh.MinBlacklistTTL,
		KeyedTokenHash:        len(e.config.Refresh.HashKey) > 0,
		IdentityProviderWired: e.idp != nil,
		AuditEnabled:          e.config.Audit.Enabled,
		AuditDropIfFull:       e.config.Audit.DropIfFull,
		AuditDelivered:        stats.Delivered,
		AuditDropped:          stats.Dropped,
		AuditDroppedByType:    stats.DroppedByType,
		MetricsEnabled:        e.config.Metrics.Enabled,
		StoreOperationTimeout: e.config.Store.OperationTimeout,
	}
}
