// Package store is the single gateway to the shared Redis-compatible backend.
//
// # Design
//
// Every component that needs shared state (counters, deny lists, lease locks,
// token blacklist) talks to a [Client]. The Redis implementation performs the
// multi-step primitives server-side in Lua so that increment-and-expire and
// compare-and-delete are atomic across gateway instances. Enumeration uses
// SCAN and batches the TTL lookups of each page into one pipelined round trip.
//
// # Architecture boundaries
//
// This package owns key I/O, key segment escaping and error normalization. It
// does NOT decide key layouts or what a failure means for the caller.
//
// # What this package must NOT do
//
//   - Cache values in process memory.
//   - Import goGuard or any sibling internal package.
//   - Retry failed commands; callers choose fail-open or fail-closed.
package store
