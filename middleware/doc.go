// Package middleware gates HTTP requests through goGuard.Engine.
//
// # Gate
//
// [Gate] checks the caller IP on every request, and optionally the user and
// the endpoint, before the wrapped handler runs. Denials are written as:
//
//   - 429 with X-RateLimit-Limit, X-RateLimit-Remaining and Retry-After when
//     a counter is over its limit;
//   - 403 with Retry-After when the IP is blocked or the account locked;
//   - 503 when the counter store is down and the engine fails closed.
//
// Allowed requests carry the limit headers of the IP check. The client IP is
// attached to the request context so audit events can attribute it.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does not
// count, block or store anything itself.
package middleware
