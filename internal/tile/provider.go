package tile

import (
	"sync"

	"github.com/atlasmap-sc/globelod/internal/geo"
)

// Provider serves tiles for one data set. Tile must not block; data that is
// not loaded yet is reported as StatusUnavailable and requested in the
// background. Update is called once per frame on the update goroutine.
type Provider interface {
	Name() string
	Tile(idx geo.TileIndex) Tile
	DefaultTile() Tile
	MaxLevel() int
	Update()
}

// LayerID names a group of providers that contribute to one conceptual layer.
type LayerID string

const (
	HeightLayers LayerID = "height"
	ColorLayers  LayerID = "color"
)

type groupEntry struct {
	provider Provider
	enabled  bool
}

// ProviderGroup is the ordered set of providers of one layer.
type ProviderGroup struct {
	mu      sync.RWMutex
	entries []groupEntry
}

// NewProviderGroup creates an empty group.
func NewProviderGroup() *ProviderGroup {
	return &ProviderGroup{}
}

// Add appends an enabled provider.
func (g *ProviderGroup) Add(p Provider) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.entries = append(g.entries, groupEntry{provider: p, enabled: true})
}

// SetEnabled toggles a provider by name. It reports whether the name was found.
func (g *ProviderGroup) SetEnabled(name string, enabled bool) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := range g.entries {
		if g.entries[i].provider.Name() == name {
			g.entries[i].enabled = enabled
			return true
		}
	}
	return false
}

// Provider returns a provider by name regardless of its enabled state.
func (g *ProviderGroup) Provider(name string) (Provider, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, e := range g.entries {
		if e.provider.Name() == name {
			return e.provider, true
		}
	}
	return nil, false
}

// ActiveProviders returns the enabled providers in insertion order.
func (g *ProviderGroup) ActiveProviders() []Provider {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Provider, 0, len(g.entries))
	for _, e := range g.entries {
		if e.enabled {
			out = append(out, e.provider)
		}
	}
	return out
}

// All returns every provider in insertion order.
func (g *ProviderGroup) All() []Provider {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Provider, 0, len(g.entries))
	for _, e := range g.entries {
		out = append(out, e.provider)
	}
	return out
}

// ProviderManager holds the provider group of every layer.
type ProviderManager struct {
	groups map[LayerID]*ProviderGroup
}

// NewProviderManager creates a manager with empty height and color groups.
func NewProviderManager() *ProviderManager {
	return &ProviderManager{
		groups: map[LayerID]*ProviderGroup{
			HeightLayers: NewProviderGroup(),
			ColorLayers:  NewProviderGroup(),
		},
	}
}

// Group returns the group for a layer, or nil.
func (m *ProviderManager) Group(layer LayerID) *ProviderGroup {
	return m.groups[layer]
}

// Update calls Update on every provider of every group.
func (m *ProviderManager) Update() {
	for _, layer := range []LayerID{HeightLayers, ColorLayers} {
		for _, p := range m.groups[layer].All() {
			p.Update()
		}
	}
}

// Lookup finds a provider by name across all groups.
func (m *ProviderManager) Lookup(name string) (Provider, bool) {
	for _, layer := range []LayerID{HeightLayers, ColorLayers} {
		if p, ok := m.groups[layer].Provider(name); ok {
			return p, true
		}
	}
	return nil, false
}
