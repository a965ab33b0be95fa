// Package goGuard is the security-coordination core of an API gateway: it
// decides per request whether a caller may proceed and rotates refresh
// credentials safely under concurrent load.
//
// Two subsystems share one Redis-compatible store and keep no state in
// process memory, so any number of gateway instances can run side by side:
//
//   - adaptive rate limiting with threat escalation: fixed-window counters per
//     [Category], IP blocks raised by the failure tracker, operator-managed
//     account locks ([Engine.CheckRateLimit], [Engine.RecordFailure]);
//   - refresh coordination: a per-user lease, a blacklist of consumed
//     refresh tokens and an explicit state machine around the identity
//     provider call ([Engine.RefreshAccessToken]).
//
// Engine methods are safe for concurrent use after [Builder.Build].
//
// # Failure policy
//
// Block and lock reads fail open and report [ErrDegraded]. Counter failures
// follow [RateLimitConfig.FailOpen]. Lease acquisition and the reuse check
// fail closed with [ErrStoreUnavailable].
//
// # Architecture boundaries
//
// This package is the public surface. Storage primitives, counters, deny
// lists and the refresh state machine live under internal/ and are never
// exported. Redis clients are accepted by [Builder.WithRedis] but never
// returned.
package goGuard
