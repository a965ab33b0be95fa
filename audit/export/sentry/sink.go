package sentry

import (
	"context"

	goGuard "github.com/MrEthical07/goGuard"
	sentrygo "github.com/getsentry/sentry-go"
)

// Hub is the part of *sentry.Hub the sink uses.
type Hub interface {
	CaptureEvent(event *sentrygo.Event) *sentrygo.EventID
}

// Sink reports security incidents from the audit stream to Sentry. Event
// types without a configured level are ignored.
type Sink struct {
	hub    Hub
	levels map[string]sentrygo.Level
}

// DefaultLevels are the incidents forwarded by [NewSink].
func DefaultLevels() map[string]sentrygo.Level {
	return map[string]sentrygo.Level{
		goGuard.AuditEventRefreshReuseDetected: sentrygo.LevelError,
		goGuard.AuditEventIPAutoBlocked:        sentrygo.LevelWarning,
		goGuard.AuditEventAccountLocked:        sentrygo.LevelWarning,
		goGuard.AuditEventIPBlocked:            sentrygo.LevelInfo,
	}
}

// NewSink captures on hub, or on the current global hub when hub is nil.
func NewSink(hub Hub) *Sink {
	if hub == nil {
		hub = sentrygo.CurrentHub()
	}
	return &Sink{hub: hub, levels: DefaultLevels()}
}

// Forward reports eventType at level in addition to the defaults.
func (s *Sink) Forward(eventType string, level sentrygo.Level) *Sink {
	s.levels[eventType] = level
	return s
}

func (s *Sink) Emit(ctx context.Context, ev goGuard.AuditEvent) {
	level, ok := s.levels[ev.EventType]
	if !ok {
		return
	}

	hub := s.hub
	if ctxHub := sentrygo.GetHubFromContext(ctx); ctxHub != nil {
		hub = ctxHub
	}
	hub.CaptureEvent(toSentryEvent(ev, level))
}

func toSentryEvent(ev goGuard.AuditEvent, level sentrygo.Level) *sentrygo.Event {
	out := sentrygo.NewEvent()
	out.Level = level
	out.Message = "goguard: " + ev.EventType
	out.Timestamp = ev.Timestamp
	out.Logger = "goguard.audit"
	// One issue per event type; identifiers go to tags.
	out.Fingerprint = []string{"goguard", ev.EventType}

	out.Tags = map[string]string{
		"event_type": ev.EventType,
		"audit_id":   ev.ID,
	}
	setTag(out.Tags, "tenant_id", ev.TenantID)
	setTag(out.Tags, "category", ev.Category)
	setTag(out.Tags, "error_code", ev.Error)

	if ev.UserID != "" {
		out.User = sentrygo.User{ID: ev.UserID, IPAddress: ev.IP}
	} else if ev.IP != "" {
		out.User = sentrygo.User{IPAddress: ev.IP}
	}

	extra := make(map[string]interface{}, len(ev.Metadata)+1)
	if ev.Identifier != "" {
		extra["identifier"] = ev.Identifier
	}
	for k, v := range ev.Metadata {
		extra[k] = v
	}
	out.Extra = extra
	return out
}

func setTag(tags map[string]string, k, v string) {
	if v != "" {
		tags[k] = v
	}
}
