package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	labmetrics "gitlab.com/gitlab-org/labkit/metrics"
)

var (
	// RoutesRegistered is the number of route templates registered across
	// every server of the process
	RoutesRegistered = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "leafless_routes_registered",
		Help: "The number of route templates registered across every server",
	})

	// StaticFilesRegistered counts the files registered as GET routes by the static collaborator
	StaticFilesRegistered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "leafless_static_files_registered_total",
		Help: "The total number of static files registered as routes",
	})

	// DispatchTotal counts dispatched requests by outcome
	DispatchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "leafless_dispatch_total",
		Help: "The total number of dispatched requests partitioned by outcome",
	}, []string{"outcome"})

	// HandlerDuration measures the time spent in route handlers
	HandlerDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name: "leafless_handler_duration_seconds",
		Help: "The time (in seconds) spent inside route handlers",
	}, []string{"method"})

	// HandlerFailures counts handler invocations that returned an error or panicked
	HandlerFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "leafless_handler_failures_total",
		Help: "The total number of failed handler invocations",
	})

	// LimitListenerMaxConns is the max number of concurrent connections allowed by the limit listener
	LimitListenerMaxConns = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "leafless_limit_listener_max_conns",
		Help: "The maximum number of concurrent connections allowed by the limit listener",
	})

	// LimitListenerConcurrentConns is the number of concurrent connections in the limit listener
	LimitListenerConcurrentConns = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "leafless_limit_listener_concurrent_conns",
		Help: "The number of concurrent connections handled by the limit listener",
	})

	// LimitListenerWaitingConns is the number of connections waiting for a slot in the limit listener
	LimitListenerWaitingConns = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "leafless_limit_listener_waiting_conns",
		Help: "The number of backlogged connections waiting on concurrency limit",
	})

	// StaticCachedEntries is the number of entries in the static file cache
	StaticCachedEntries = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "leafless_static_cached_entries",
		Help: "The number of entries in the static file cache",
	}, []string{"op"})

	// StaticCacheRequests counts static file cache requests by result
	StaticCacheRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "leafless_static_cache_requests_total",
		Help: "The number of static file cache requests partitioned by result",
	}, []string{"op", "cache"})
)

var (
	registerOnce sync.Once

	httpMiddlewareOnce sync.Once
	httpMiddleware     labmetrics.HandlerFactory
)

// MustRegister collectors with the Prometheus client. It is safe to call it
// more than once.
func MustRegister() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			RoutesRegistered,
			StaticFilesRegistered,
			DispatchTotal,
			HandlerDuration,
			HandlerFailures,
			LimitListenerMaxConns,
			LimitListenerConcurrentConns,
			LimitListenerWaitingConns,
			StaticCachedEntries,
			StaticCacheRequests,
		)
	})
}

// HTTPMiddleware wraps handler with the labkit HTTP request metrics. The
// underlying collectors are registered with the default registry the first
// time it is called.
func HTTPMiddleware(handler http.Handler) http.Handler {
	httpMiddlewareOnce.Do(func() {
		httpMiddleware = labmetrics.NewHandlerFactory(labmetrics.WithNamespace("leafless"))
	})

	return httpMiddleware(handler)
}
