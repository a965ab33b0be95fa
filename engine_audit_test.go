package goGuard

import (
	"context"
	"testing"
	"time"
)

func newAuditedEngine(t *testing.T, configure ...func(*Builder)) (*Engine, *ChannelSink) {
	t.Helper()
	cfg := testConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.DropIfFull = false
	sink := NewChannelSink(64)
	engine, _ := newTestEngine(t, cfg, append([]func(*Builder){func(b *Builder) { b.WithAuditSink(sink) }}, configure...)...)
	return engine, sink
}

func nextEvent(t *testing.T, sink *ChannelSink) AuditEvent {
	t.Helper()
	select {
	case ev := <-sink.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for audit event")
		return AuditEvent{}
	}
}

func TestAuditRateLimitExceeded(t *testing.T) {
	engine, sink := newAuditedEngine(t, func(b *Builder) {
		b.WithPolicy(CategoryLogin, Policy{MaxRequests: 1, Window: time.Minute})
	})
	ctx := WithTenantID(WithClientIP(context.Background(), "203.0.113.7"), "acme")

	engine.CheckRateLimit(ctx, CategoryLogin, "alice")
	engine.CheckRateLimit(ctx, CategoryLogin, "alice")

	ev := nextEvent(t, sink)
	if ev.EventType != AuditEventRateLimitExceeded || ev.Success {
		t.Fatalf("unexpected event %+v", ev)
	}
	if ev.Category != "login" || ev.Identifier != "alice" || ev.Error != string(auditErrRateLimited) {
		t.Fatalf("unexpected event fields %+v", ev)
	}
	if ev.IP != "203.0.113.7" || ev.TenantID != "acme" {
		t.Fatalf("context attribution missing: ip=%q tenant=%q", ev.IP, ev.TenantID)
	}
	if ev.Metadata["count"] != "2" || ev.Metadata["limit"] != "1" {
		t.Fatalf("metadata = %v", ev.Metadata)
	}
	if ev.ID == "" || ev.Timestamp.IsZero() {
		t.Fatal("event id and timestamp must be set")
	}
}

func TestAuditAutoBlockAndAdminActions(t *testing.T) {
	engine, sink := newAuditedEngine(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		engine.RecordFailure(ctx, CategoryLogin, "1.2.3.4")
	}
	ev := nextEvent(t, sink)
	if ev.EventType != AuditEventIPAutoBlocked || ev.Metadata["failures"] != "10" {
		t.Fatalf("unexpected event %+v", ev)
	}

	engine.UnblockIP(ctx, "1.2.3.4")
	if ev := nextEvent(t, sink); ev.EventType != AuditEventIPUnblocked {
		t.Fatalf("expected ip_unblocked, got %s", ev.EventType)
	}

	engine.ResetRateLimit(ctx, CategoryLogin, "1.2.3.4", "admin-7")
	ev = nextEvent(t, sink)
	if ev.EventType != AuditEventRateLimitReset || ev.Metadata["admin_id"] != "admin-7" || ev.Metadata["existed"] != "false" {
		t.Fatalf("unexpected reset event %+v", ev)
	}
}

func TestAuditRefreshReuse(t *testing.T) {
	engine, sink := newAuditedEngine(t, func(b *Builder) { b.WithIdentityProvider(&rotatingIDP{}) })
	ctx := context.Background()

	engine.RefreshAccessToken(ctx, "acme", "alice", "token-x")
	if ev := nextEvent(t, sink); ev.EventType != AuditEventRefreshSuccess || !ev.Success || ev.UserID != "alice" {
		t.Fatalf("unexpected success event %+v", ev)
	}

	engine.RefreshAccessToken(ctx, "acme", "alice", "token-x")
	ev := nextEvent(t, sink)
	if ev.EventType != AuditEventRefreshReuseDetected || ev.TenantID != "acme" || ev.Error != string(auditErrRefreshReuse) {
		t.Fatalf("unexpected reuse event %+v", ev)
	}
	if ev.Metadata["state"] != "reuse_check" {
		t.Fatalf("metadata = %v", ev.Metadata)
	}
}

func TestAuditErrorCodeMapping(t *testing.T) {
	tests := []struct {
		err  error
		want AuditErrorCode
	}{
		{nil, ""},
		{ErrRateLimitExceeded, auditErrRateLimited},
		{ErrIPBlocked, auditErrIPBlocked},
		{ErrAccountLocked, auditErrAccountLocked},
		{ErrRefreshInProgress, auditErrRefreshInProgress},
		{ErrRefreshReuse, auditErrRefreshReuse},
		{ErrNoIdentityProvider, auditErrUpstream},
		{storeUnavailable(context.DeadlineExceeded), auditErrUnavailable},
		{invalidCategory(context.Canceled), auditErrInvalidRequest},
		{context.Canceled, auditErrInternal},
	}
	for _, tc := range tests {
		if got := auditErrorCode(tc.err); got != tc.want {
			t.Errorf("auditErrorCode(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestMetricsDisabledByDefault(t *testing.T) {
	engine, _ := newTestEngine(t, defaultConfig())
	engine.CheckRateLimit(context.Background(), CategoryIP, "1.2.3.4")

	if snap := engine.MetricsSnapshot(); len(snap.Counters) != 0 {
		t.Fatalf("expected empty snapshot, got %+v", snap.Counters)
	}
}

func TestLatencyHistogramsObserved(t *testing.T) {
	cfg := testConfig()
	cfg.Metrics.EnableLatencyHistograms = true
	engine, _ := newTestEngine(t, cfg)

	for i := 0; i < 3; i++ {
		engine.CheckRateLimit(context.Background(), CategoryIP, "1.2.3.4")
	}
	snap := engine.MetricsSnapshot()
	var total uint64
	for _, n := range snap.Histograms[MetricCheckLatency] {
		total += n
	}
	if total != 3 {
		t.Fatalf("check latency observations = %d, want 3", total)
	}
	if snap.Counters[MetricRateLimitAllowed] != 3 {
		t.Fatalf("allowed = %d", snap.Counters[MetricRateLimitAllowed])
	}
}

func TestAuditThroughputInSecurityReport(t *testing.T) {
	engine, sink := newAuditedEngine(t)
	ctx := context.Background()

	if err := engine.BlockIP(ctx, "198.51.100.4", time.Minute); err != nil {
		t.Fatal(err)
	}
	if ev := nextEvent(t, sink); ev.EventType != AuditEventIPBlocked {
		t.Fatalf("expected ip_blocked, got %s", ev.EventType)
	}
	engine.Close()

	if got := engine.AuditDelivered(); got != 1 {
		t.Fatalf("AuditDelivered = %d", got)
	}
	rep := engine.SecurityReport()
	if rep.AuditDelivered != 1 || rep.AuditDropped != 0 || len(rep.AuditDroppedByType) != 0 {
		t.Fatalf("report audit stats = %d/%d/%v", rep.AuditDelivered, rep.AuditDropped, rep.AuditDroppedByType)
	}
}
