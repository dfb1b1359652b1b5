// Package service provides business logic for the globe tile server.
package service

import (
	"errors"
	"fmt"

	"github.com/segmentio/encoding/json"
	"go.uber.org/zap"

	"github.com/atlasmap-sc/globelod/internal/cache"
	"github.com/atlasmap-sc/globelod/internal/geo"
	"github.com/atlasmap-sc/globelod/internal/globe"
	"github.com/atlasmap-sc/globelod/internal/render"
	"github.com/atlasmap-sc/globelod/internal/tile"
)

// ErrLayerNotFound is returned for a layer name no provider serves.
var ErrLayerNotFound = errors.New("layer not found")

// TileServiceConfig contains tile service configuration.
type TileServiceConfig struct {
	Globe    *globe.Globe
	Cache    *cache.Manager
	Renderer *render.TileRenderer
	// NoData holds the no-data value of each layer; layers not listed use
	// tile.DefaultNoData.
	NoData map[string]float32
	Logger *zap.Logger
}

// HeightRange overrides the value range mapped onto the colormap.
type HeightRange struct {
	Min *float32
	Max *float32
}

// TileService renders previews of provider tiles and serves snapshots of the
// chunk trees.
type TileService struct {
	globe    *globe.Globe
	cache    *cache.Manager
	renderer *render.TileRenderer
	noData   map[string]float32
	logger   *zap.Logger
}

// NewTileService creates a new tile service.
func NewTileService(cfg TileServiceConfig) *TileService {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TileService{
		globe:    cfg.Globe,
		cache:    cfg.Cache,
		renderer: cfg.Renderer,
		noData:   cfg.NoData,
		logger:   logger,
	}
}

// GetTile renders the finest loaded tile of a layer covering idx. When the
// layer has nothing loaded for idx or any ancestor an empty tile is returned
// and the load stays scheduled.
func (s *TileService) GetTile(layer string, idx geo.TileIndex, colormapName string, hr HeightRange) ([]byte, error) {
	if !idx.IsValid() {
		return nil, globe.ErrInvalidIndex
	}
	p, ok := s.globe.Providers().Lookup(layer)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLayerNotFound, layer)
	}

	tt := tile.HighestResolutionTile(p, idx)
	if tt.Tile.Status != tile.StatusOK || p.Tile(tt.Index).Status != tile.StatusOK {
		return s.GetEmptyTile()
	}

	minH, maxH := valueRange(tt.Tile.Preprocess)
	if hr.Min != nil {
		minH = *hr.Min
	}
	if hr.Max != nil {
		maxH = *hr.Max
	}

	cmap := s.renderer.Colormap(colormapName)
	cacheKey := cache.PreviewKey(layer, idx, tt.Depth, colormapName)
	if hr.Min != nil || hr.Max != nil {
		cacheKey = fmt.Sprintf("%s:%g:%g", cacheKey, minH, maxH)
	}
	if data, ok := s.cache.GetPreview(cacheKey); ok {
		return data, nil
	}

	data, err := s.renderer.RenderHeightTile(tt, minH, maxH, s.noData[layer], cmap)
	if err != nil {
		return nil, fmt.Errorf("failed to render tile %s: %w", idx, err)
	}
	if err := s.cache.SetPreview(cacheKey, data); err != nil {
		s.logger.Debug("preview not cached", zap.String("key", cacheKey), zap.Error(err))
	}
	return data, nil
}

// GetEmptyTile returns a transparent tile.
func (s *TileService) GetEmptyTile() ([]byte, error) {
	return s.renderer.CreateEmptyTile()
}

// ChunksResponse is the leaf listing of one frame.
type ChunksResponse struct {
	Stats  globe.Stats       `json:"stats"`
	Chunks []globe.ChunkInfo `json:"chunks"`
}

// Chunks returns the JSON encoded leaves of the current frame. The encoding
// is reused until the next update.
func (s *TileService) Chunks() ([]byte, error) {
	stats := s.globe.Stats()
	key := cache.ChunksKey(stats.Frame)
	if data, ok := s.cache.GetQuery(key); ok {
		return data, nil
	}

	resp := ChunksResponse{Stats: stats, Chunks: s.globe.Leaves()}
	if resp.Chunks == nil {
		resp.Chunks = []globe.ChunkInfo{}
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to encode chunks: %w", err)
	}
	s.cache.SetQuery(key, data)
	return data, nil
}

// HeightsResponse describes the bounding volume of one patch.
type HeightsResponse struct {
	Index     geo.TileIndex `json:"index"`
	InTree    bool          `json:"in_tree"`
	Min       float32       `json:"min"`
	Max       float32       `json:"max"`
	Available bool          `json:"available"`
	Corners   [8][3]float64 `json:"corners"`
}

// Heights computes the bounding heights and polyhedron corners of idx.
func (s *TileService) Heights(idx geo.TileIndex) (*HeightsResponse, error) {
	bh, corners, err := s.globe.BoundingHeights(idx)
	if err != nil {
		return nil, err
	}
	resp := &HeightsResponse{
		Index:     idx,
		InTree:    s.globe.InTree(idx),
		Min:       bh.Min,
		Max:       bh.Max,
		Available: bh.Available,
	}
	for i, c := range corners {
		resp.Corners[i] = [3]float64{c.X, c.Y, c.Z}
	}
	return resp, nil
}

func valueRange(pd *tile.PreprocessData) (float32, float32) {
	if pd == nil || len(pd.MinValues) == 0 || len(pd.MaxValues) == 0 {
		return 0, 1
	}
	return pd.MinValues[0], pd.MaxValues[0]
}
