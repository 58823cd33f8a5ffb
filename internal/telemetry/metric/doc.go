// Package metric provides Prometheus metrics for idbridge.
//
// The Registry owns a private prometheus.Registry (plus Go and process
// collectors) and exposes typed recording helpers for the resolver,
// bootstrap, provider and isolation guard paths. Every helper is safe to
// call on a nil *Registry, so components can run without metrics.
//
// Metrics are served by Handler, typically mounted at /metrics by
// `idbridge watch` when metrics.addr is set.
package metric
