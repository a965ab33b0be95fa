// Package audit implements async delivery of security events.
//
// # Components
//
//   - [Sink]: event consumer interface (channel, JSON writer, fan-out, no-op).
//   - [Dispatcher]: buffered relay with drop-if-full or block-if-full behavior.
//   - [Event]: one record with ID, timestamp, type, subject and metadata.
//
// This package owns buffering and delivery. The engine decides which events
// to emit. Sinks that talk to external systems live in audit/export.
package audit
