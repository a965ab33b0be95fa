// Package metrics provides lock-free counters and latency histograms for the
// rate-limit and refresh paths.
//
// Counters live in cache-line-padded uint64 slots and are incremented with
// [sync/atomic.AddUint64]. Histograms use 8 fixed buckets (<=5ms ... +Inf).
// The write path does not allocate.
//
// Export (Prometheus, OTel) lives in metrics/export and reads [Snapshot]
// values. This package performs no I/O and keeps no global registry.
package metrics
