package api

import (
	"sync"

	"github.com/atlasmap-sc/globelod/internal/provider"
	"github.com/atlasmap-sc/globelod/internal/tile"
)

// LayerInfo contains information about a layer for the API response.
type LayerInfo struct {
	Name     string          `json:"name"`
	Kind     tile.LayerID    `json:"kind"`
	MaxLevel int             `json:"max_level"`
	Enabled  bool            `json:"enabled"`
	Stats    *provider.Stats `json:"stats,omitempty"`
}

// statsProvider is implemented by providers that report cache statistics.
type statsProvider interface {
	Stats() provider.Stats
}

// LayerRegistry lists the configured layers in config order and tracks
// which of them are enabled in their provider group.
type LayerRegistry struct {
	providers *tile.ProviderManager

	mu      sync.RWMutex
	order   []string
	kinds   map[string]tile.LayerID
	enabled map[string]bool
}

// NewLayerRegistry creates a registry over a provider manager.
func NewLayerRegistry(providers *tile.ProviderManager) *LayerRegistry {
	return &LayerRegistry{
		providers: providers,
		kinds:     make(map[string]tile.LayerID),
		enabled:   make(map[string]bool),
	}
}

// Register records a layer that was added to the kind's provider group.
func (r *LayerRegistry) Register(name string, kind tile.LayerID, enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.kinds[name]; !ok {
		r.order = append(r.order, name)
	}
	r.kinds[name] = kind
	r.enabled[name] = enabled
}

// SetEnabled toggles a layer. It reports whether the layer exists.
func (r *LayerRegistry) SetEnabled(name string, enabled bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	kind, ok := r.kinds[name]
	if !ok {
		return false
	}
	group := r.providers.Group(kind)
	if group == nil || !group.SetEnabled(name, enabled) {
		return false
	}
	r.enabled[name] = enabled
	return true
}

// Layers returns layer info for all registered layers.
func (r *LayerRegistry) Layers() []LayerInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]LayerInfo, 0, len(r.order))
	for _, name := range r.order {
		info := LayerInfo{
			Name:    name,
			Kind:    r.kinds[name],
			Enabled: r.enabled[name],
		}
		if p, ok := r.providers.Lookup(name); ok {
			info.MaxLevel = p.MaxLevel()
			if sp, ok := p.(statsProvider); ok {
				stats := sp.Stats()
				info.Stats = &stats
			}
		}
		infos = append(infos, info)
	}
	return infos
}
