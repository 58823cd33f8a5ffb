package metric

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "idbridge"

// Resolver paths.
const (
	PathSnapshot     = "snapshot"
	PathCache        = "cache"
	PathSync         = "sync"
	PathSyncRetry    = "sync_retry"
	PathDirectOpaque = "direct_opaque"
	PathDirectEmail  = "direct_email"
	PathUnresolved   = "unresolved"
)

// Bootstrap outcomes.
const (
	OutcomeConfirmed       = "confirmed"
	OutcomeOptimisticKept  = "optimistic_kept"
	OutcomeUnauthenticated = "unauthenticated"
	OutcomeMinimal         = "minimal"
)

// Provider call results.
const (
	ProviderSession   = "session"
	ProviderNoSession = "no_session"
	ProviderError     = "error"
	ProviderTimeout   = "timeout"
)

// Registry holds all application metrics.
type Registry struct {
	registry *prometheus.Registry

	Resolutions       *prometheus.CounterVec
	SyncAttempts      *prometheus.CounterVec
	Bootstraps        *prometheus.CounterVec
	BootstrapDuration prometheus.Histogram
	ProviderCalls     *prometheus.CounterVec
	Mismatches        prometheus.Counter
	SignOuts          *prometheus.CounterVec
	Hydrations        *prometheus.CounterVec
}

var (
	globalRegistry *Registry
	globalOnce     sync.Once
)

// Global returns the process-wide registry.
func Global() *Registry {
	globalOnce.Do(func() {
		globalRegistry = NewRegistry()
	})
	return globalRegistry
}

// NewRegistry creates a registry with all idbridge metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		registry: reg,
		Resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "resolutions_total",
			Help:      "Identity resolutions by the path that produced the answer.",
		}, []string{"path"}),
		SyncAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "sync_attempts_total",
			Help:      "Profile sync attempts by result.",
		}, []string{"result"}),
		Bootstraps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bootstrap_total",
			Help:      "Completed bootstrap runs by outcome.",
		}, []string{"outcome"}),
		BootstrapDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bootstrap_duration_seconds",
			Help:      "Bootstrap run latency.",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		ProviderCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_calls_total",
			Help:      "Live session checks by result.",
		}, []string{"result"}),
		Mismatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "identity_mismatch_total",
			Help:      "Persisted and live identities that disagreed.",
		}),
		SignOuts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signout_total",
			Help:      "Explicit sign-outs by remote call result.",
		}, []string{"remote"}),
		Hydrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hydration_total",
			Help:      "Persisted record loads by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(
		r.Resolutions,
		r.SyncAttempts,
		r.Bootstraps,
		r.BootstrapDuration,
		r.ProviderCalls,
		r.Mismatches,
		r.SignOuts,
		r.Hydrations,
	)
	return r
}

// Registerer exposes the underlying registerer for extra collectors
// (e.g. storage engine stats).
func (r *Registry) Registerer() prometheus.Registerer {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Handler returns the global registry's HTTP handler.
func Handler() http.Handler {
	return Global().Handler()
}

// ============================================================================
// Recording helpers (nil-safe)
// ============================================================================

// RecordResolution counts a resolution by path.
func (r *Registry) RecordResolution(path string) {
	if r == nil {
		return
	}
	r.Resolutions.WithLabelValues(path).Inc()
}

// RecordSyncAttempt counts one profile sync call.
func (r *Registry) RecordSyncAttempt(err error) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.SyncAttempts.WithLabelValues(result).Inc()
}

// RecordBootstrap counts a finished bootstrap and its duration.
func (r *Registry) RecordBootstrap(outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.Bootstraps.WithLabelValues(outcome).Inc()
	r.BootstrapDuration.Observe(elapsed.Seconds())
}

// RecordProviderCall counts a live session check by result.
func (r *Registry) RecordProviderCall(result string) {
	if r == nil {
		return
	}
	r.ProviderCalls.WithLabelValues(result).Inc()
}

// IncMismatch counts a detected identity mismatch.
func (r *Registry) IncMismatch() {
	if r == nil {
		return
	}
	r.Mismatches.Inc()
}

// RecordSignOut counts an explicit sign-out.
func (r *Registry) RecordSignOut(remoteErr error) {
	if r == nil {
		return
	}
	remote := "ok"
	if remoteErr != nil {
		remote = "error"
	}
	r.SignOuts.WithLabelValues(remote).Inc()
}

// RecordHydration counts a persisted record load ("found", "empty",
// "error", "timeout").
func (r *Registry) RecordHydration(result string) {
	if r == nil {
		return
	}
	r.Hydrations.WithLabelValues(result).Inc()
}
