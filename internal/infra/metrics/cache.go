package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(cacheRequestsTotal, cacheEntries) }

var cacheRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "cache_requests_total",
		Help: "Tracks cache hits and misses for various caches.",
	},
	[]string{"cache", "result"}, // e.g., cache="response", result="hit"
)

var cacheEntries = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "cache_entries",
		Help: "Current number of live entries per cache.",
	},
	[]string{"cache"},
)

func IncCacheRequest(cacheName, result string) {
	cacheRequestsTotal.WithLabelValues(norm(cacheName), norm(result)).Inc()
}

func SetCacheEntries(cacheName string, n int) {
	cacheEntries.WithLabelValues(norm(cacheName)).Set(float64(n))
}
