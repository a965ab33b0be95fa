// Package otel bridges engine metrics to OpenTelemetry.
//
// [NewExporter] creates an Int64ObservableCounter per engine counter and an
// Int64ObservableGauge per latency bucket, then reads
// [goGuard.Engine.MetricsSnapshot] from one callback per collection. The
// caller owns the MeterProvider.
package otel
