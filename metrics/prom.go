package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PasteCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pastebin_paste_created_total",
		Help: "no. of pastes created",
	})
	PasteConsumed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pastebin_paste_consumed_total",
		Help: "no. of consuming fetches served",
	})
	PastePeeked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pastebin_paste_peeked_total",
		Help: "no. of non-consuming fetches served",
	})
	PasteUnavailable = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pastebin_paste_unavailable_total",
		Help: "no. of fetches answered with not-found (missing, expired, or exhausted)",
	})
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pastebin_cache_hits_total",
		Help: "no. of cache hits",
	})
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pastebin_cache_misses_total",
		Help: "no. of cache misses",
	})
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pastebin_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pastebin_rate_limit_hits_total",
			Help: "no. of rate limit violations",
		},
		[]string{"endpoint"},
	)
	PruneCycles = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pastebin_prune_cycles_total",
		Help: "no. of cleanup worker cycles",
	})
	PastesPruned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pastebin_pastes_pruned_total",
		Help: "no. of expired or exhausted rows removed by the cleanup worker",
	})
)

func Init() {
}
