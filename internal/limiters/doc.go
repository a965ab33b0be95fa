// Package limiters provides the escalation side of the gateway: the failure
// tracker and the TTL-governed deny lists it escalates into.
//
// # Components
//
//   - [DenyList]: symmetric block/lock registry over a key prefix
//     (blocked_ip:, locked_account:).
//   - [FailureTracker]: fixed-window failure counter for login and
//     invalid-credential events; blocks the identifier as an IP at threshold.
//
// # Architecture boundaries
//
// Each component owns its own key namespace. Durations and thresholds come from
// config structs supplied at construction time. Whether a store error is
// fail-open or fail-closed is decided by the Engine, not here.
//
// # What this package must NOT do
//
//   - Import goGuard or any sibling internal package except internal/rate and
//     internal/store.
//   - Lock accounts automatically; account locks are explicit operations.
package limiters
