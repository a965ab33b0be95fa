// Package sentry forwards security incidents from the engine's audit stream
// to Sentry.
//
// Only event types with a configured level are captured; by default refresh
// token reuse, automatic IP blocks, account locks and manual IP blocks.
// Routine events such as refresh_success never leave the process. Wire the
// sink with goGuard.Builder.WithAuditSink, alone or inside a MultiSink.
package sentry
