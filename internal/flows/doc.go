// Package flows contains pure-function orchestrators for multi-step Engine
// operations.
//
// [RunRefresh] is the credential refresh state machine. It accepts a typed
// dependency struct and returns a result classified by [RefreshFailureKind]
// without side effects beyond those dependencies, which keeps the Engine thin
// and lets every terminal state be tested with fakes.
//
// # Architecture boundaries
//
// Flow functions coordinate the lease lock, the token blacklist and the
// upstream identity provider. They do NOT own any of these resources and they
// do not emit audit events or metrics; the Engine maps results to both.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import goGuard (to avoid import cycles).
//   - Perform I/O directly; all I/O is mediated through dependency interfaces.
package flows
