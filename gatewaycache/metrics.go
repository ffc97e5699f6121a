package gatewaycache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var requestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "offlinecache_gateway_requests_total",
		Help: "Gateway requests by outcome: intercepted (worker handled), passthrough (default handling), failed (no response and no fallback)",
	},
	[]string{"outcome"},
)
