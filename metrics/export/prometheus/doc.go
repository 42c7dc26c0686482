// Package prometheus exposes authcore engine metrics through a
// prometheus/client_golang Collector.
//
// Counter names are authcore_*_total; the single histogram is
// authcore_authenticate_latency_seconds. Register the [Collector] on your own
// registry, or mount [Collector.Handler] which uses a private one.
//
// # What this package must NOT do
//
//   - Register metrics in the global Prometheus registry.
//   - Mutate engine state.
package prometheus
