// Package rate implements the fixed-window Decision Engine: categories,
// policies, canonical counter keys, the counter itself and verdict construction.
//
// # Window semantics
//
// Fixed-window counters: one atomic INCR with the window attached only on the
// 0→1 transition. Later hits in the same window never extend it. Keys follow
// {category}:{identifier}[:{extra}...] with every user-controlled segment
// escaped, so "a:b" as an identifier cannot alias an extra part.
//
// # What this package must NOT do
//
//   - Escalate denials to blocks or locks (see internal/limiters).
//   - Consult deny lists; the Engine composes those checks.
//   - Be imported outside the goGuard module.
package rate
