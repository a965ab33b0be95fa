// Package stores provides the store-backed primitives of the credential
// refresh protocol: a lease lock and the refresh-token blacklist.
//
// # Design
//
// [Locker] grants non-blocking, fixed-lease mutual exclusion with SET NX PX.
// Each lease carries a random owner token and is released with an atomic
// compare-and-delete, so a holder whose lease already expired cannot delete
// its successor's lease. There is no renewal and no queuing.
//
// [Blacklist] remembers consumed refresh tokens by their keyed BLAKE2b-256
// hash only; entries live exactly as long as the token they shadow.
//
// # Architecture boundaries
//
// This package owns key layout and persistence for leases and blacklist
// entries. It does NOT call the identity provider or decide the refresh state
// machine; that belongs to internal/flows.
//
// # What this package must NOT do
//
//   - Import goGuard or any sibling internal package except internal/store.
//   - Persist or log a raw refresh token.
package stores
