package provider

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/atlasmap-sc/globelod/internal/geo"
	"github.com/atlasmap-sc/globelod/internal/lru"
	"github.com/atlasmap-sc/globelod/internal/tile"
)

// Config contains caching provider configuration.
type Config struct {
	Name      string
	MaxLevel  int
	CacheSize int // tiles kept in memory (default 512)
	Logger    *zap.Logger
}

// Stats is a snapshot of a provider's state.
type Stats struct {
	Name     string `json:"name"`
	MaxLevel int    `json:"max_level"`
	Cached   int    `json:"cached"`
	Capacity int    `json:"capacity"`
	InFlight int    `json:"in_flight"`
	Pending  int    `json:"pending"`
}

// CachingProvider serves tiles from an LRU and requests missing ones from a
// Loader. Tile never blocks; Update moves finished loads into the LRU.
type CachingProvider struct {
	name     string
	maxLevel int
	loader   *Loader
	logger   *zap.Logger

	mu       sync.Mutex
	tiles    *lru.Cache[geo.TileIndex, tile.Tile]
	inflight map[geo.TileIndex]struct{}
}

// NewCachingProvider creates a provider on top of a loader. The loader must be
// started by the caller.
func NewCachingProvider(loader *Loader, cfg Config) (*CachingProvider, error) {
	if cfg.Name == "" {
		return nil, errors.New("provider name is required")
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 512
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	tiles, err := lru.New[geo.TileIndex, tile.Tile](cfg.CacheSize)
	if err != nil {
		return nil, err
	}
	return &CachingProvider{
		name:     cfg.Name,
		maxLevel: cfg.MaxLevel,
		loader:   loader,
		logger:   cfg.Logger.With(zap.String("provider", cfg.Name)),
		tiles:    tiles,
		inflight: make(map[geo.TileIndex]struct{}),
	}, nil
}

func (p *CachingProvider) Name() string  { return p.name }
func (p *CachingProvider) MaxLevel() int { return p.maxLevel }

// Tile returns the cached tile for idx. A miss schedules a load and reports
// the tile as unavailable.
func (p *CachingProvider) Tile(idx geo.TileIndex) tile.Tile {
	if !idx.IsValid() || idx.Level > p.maxLevel {
		return tile.Tile{Status: tile.StatusOutOfRange}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if t, err := p.tiles.Get(idx); err == nil {
		lruHits.WithLabelValues(p.name).Inc()
		return t
	}
	lruMisses.WithLabelValues(p.name).Inc()

	if _, ok := p.inflight[idx]; !ok && p.loader.Enqueue(idx) {
		p.inflight[idx] = struct{}{}
	}
	return tile.Tile{Status: tile.StatusUnavailable}
}

// DefaultTile is a flat single sample tile at height zero.
func (p *CachingProvider) DefaultTile() tile.Tile {
	return tile.Tile{
		Status:     tile.StatusOK,
		Data:       tile.EncodeFloat32([]float32{0}),
		Dimensions: tile.Dimensions{Width: 1, Height: 1},
		DataType:   tile.Float32,
		Channels:   1,
		Preprocess: &tile.PreprocessData{
			MinValues:      []float32{0},
			MaxValues:      []float32{0},
			HasMissingData: []bool{false},
		},
	}
}

// Update inserts the loads finished since the last frame. Indices the origin
// has no data for are cached as unavailable so they are not requested again.
// Failed loads are not cached; the next Tile call for the index retries.
func (p *CachingProvider) Update() {
	results := p.loader.Drain()
	if len(results) == 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	failed := 0
	for _, res := range results {
		delete(p.inflight, res.Index)
		switch {
		case res.Err == nil:
			p.tiles.Put(res.Index, tile.FromIOResult(res))
		case errors.Is(res.Err, ErrTileUnavailable):
			p.tiles.Put(res.Index, tile.Tile{Status: tile.StatusUnavailable})
		default:
			failed++
		}
	}
	p.logger.Debug("tiles loaded", zap.Int("count", len(results)-failed), zap.Int("failed", failed))
}

// Stats returns a snapshot of the provider's caches.
func (p *CachingProvider) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Name:     p.name,
		MaxLevel: p.maxLevel,
		Cached:   p.tiles.Size(),
		Capacity: p.tiles.Capacity(),
		InFlight: len(p.inflight),
		Pending:  p.loader.Pending(),
	}
}
