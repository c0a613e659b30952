// Package server exposes operational HTTP endpoints for long-running slotwise
// commands such as replay.
//
// MetricsServer serves, on a dedicated port:
//   - /metrics: Prometheus exposition from the instrumentation provider
//   - /healthz: liveness
//   - /readyz: readiness, failing until SetReady(true) and while any registered
//     check returns an error
//   - /healthz/detailed: uptime plus engine counters supplied through SetStats
package server
