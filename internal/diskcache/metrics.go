package diskcache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const cacheLabel = "cache"

var corruptEntries = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "tile_disk_cache_corrupt_entries",
	Help: "The number of disk cache entries discarded as corrupt or partial.",
}, []string{
	cacheLabel,
})
