package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics follow Prometheus naming conventions with an offlinecache_ prefix.
var (
	fetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offlinecache_fetches_total",
			Help: "Intercepted fetches by outcome: network (live response), cache (offline fallback hit), miss (offline with no cached entry)",
		},
		[]string{"outcome"},
	)

	installsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offlinecache_installs_total",
			Help: "Install attempts by result",
		},
		[]string{"status"},
	)

	prunedNamespacesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "offlinecache_pruned_namespaces_total",
			Help: "Stale cache namespaces deleted during activation",
		},
	)

	droppedWritesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "offlinecache_dropped_cache_writes_total",
			Help: "Background snapshot writes dropped because the store rejected them",
		},
	)
)
