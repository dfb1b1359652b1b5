package provider

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const layerLabel = "layer"

var (
	lruHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tile_provider_lru_hits",
		Help: "The number of tile requests served from memory.",
	}, []string{
		layerLabel,
	})

	lruMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tile_provider_lru_misses",
		Help: "The number of tile requests not found in memory.",
	}, []string{
		layerLabel,
	})

	diskHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tile_provider_disk_hits",
		Help: "The number of tiles loaded from the disk cache.",
	}, []string{
		layerLabel,
	})

	originFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tile_provider_origin_fetches",
		Help: "The number of tiles requested from the origin.",
	}, []string{
		layerLabel,
	})

	loadErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tile_provider_load_errors",
		Help: "The number of tile loads that failed.",
	}, []string{
		layerLabel,
	})

	droppedRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tile_provider_dropped_requests",
		Help: "The number of tile requests dropped because the load queue was full.",
	}, []string{
		layerLabel,
	})
)
