// Package cache provides in-memory caching for rendered tile previews and
// encoded API responses.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/allegro/bigcache/v3"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/atlasmap-sc/globelod/internal/geo"
)

// Config contains cache configuration.
type Config struct {
	PreviewSizeMB  int
	PreviewTTL     time.Duration
	QueryCacheSize int
}

// Manager manages the preview and query caches. It is safe for concurrent use.
type Manager struct {
	previewCache *bigcache.BigCache
	queryCache   *lru.Cache[string, []byte]
}

// NewManager creates a new cache manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.PreviewTTL <= 0 {
		cfg.PreviewTTL = 10 * time.Minute
	}
	if cfg.QueryCacheSize <= 0 {
		cfg.QueryCacheSize = 64
	}

	previewCacheConfig := bigcache.Config{
		Shards:             256,
		LifeWindow:         cfg.PreviewTTL,
		CleanWindow:        cfg.PreviewTTL / 2,
		MaxEntriesInWindow: 10000,
		MaxEntrySize:       64 * 1024,
		HardMaxCacheSize:   cfg.PreviewSizeMB,
		Verbose:            false,
	}

	previewCache, err := bigcache.New(context.Background(), previewCacheConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create preview cache: %w", err)
	}

	queryCache, err := lru.New[string, []byte](cfg.QueryCacheSize)
	if err != nil {
		previewCache.Close()
		return nil, fmt.Errorf("failed to create query cache: %w", err)
	}

	return &Manager{
		previewCache: previewCache,
		queryCache:   queryCache,
	}, nil
}

// GetPreview retrieves a rendered preview.
func (m *Manager) GetPreview(key string) ([]byte, bool) {
	data, err := m.previewCache.Get(key)
	if err != nil {
		return nil, false
	}
	return data, true
}

// SetPreview stores a rendered preview.
func (m *Manager) SetPreview(key string, data []byte) error {
	return m.previewCache.Set(key, data)
}

// GetQuery retrieves an encoded response.
func (m *Manager) GetQuery(key string) ([]byte, bool) {
	return m.queryCache.Get(key)
}

// SetQuery stores an encoded response.
func (m *Manager) SetQuery(key string, data []byte) {
	m.queryCache.Add(key, data)
}

// PreviewKey generates the cache key of a rendered tile preview. The depth of
// the source tile is part of the key, so a preview drawn from an ancestor is
// superseded once finer data loads.
func PreviewKey(layer string, idx geo.TileIndex, depth int, colormapName string) string {
	return fmt.Sprintf("preview:%s:%d/%d/%d:d%d:%s", layer, idx.Level, idx.X, idx.Y, depth, colormapName)
}

// ChunksKey generates the cache key of the leaf listing of one frame.
func ChunksKey(frame uint64) string {
	return fmt.Sprintf("chunks:%d", frame)
}

// Stats returns cache statistics.
func (m *Manager) Stats() map[string]interface{} {
	stats := m.previewCache.Stats()
	return map[string]interface{}{
		"preview_cache_len":    m.previewCache.Len(),
		"preview_cache_cap":    m.previewCache.Capacity(),
		"preview_cache_hits":   stats.Hits,
		"preview_cache_misses": stats.Misses,
		"query_cache_len":      m.queryCache.Len(),
	}
}

// Close closes the cache manager.
func (m *Manager) Close() error {
	m.queryCache.Purge()
	return m.previewCache.Close()
}
