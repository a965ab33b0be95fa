// Package prometheus exposes engine counters and latency histograms in the
// Prometheus text format.
//
// The exporter renders on demand from [goGuard.Engine.MetricsSnapshot]; it
// registers nothing globally. Mount [Exporter.Handler] wherever the scrape
// endpoint should live.
package prometheus
