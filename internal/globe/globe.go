// Package globe owns the chunk quadtrees of a planet and drives their
// level-of-detail updates.
package globe

import (
	"errors"
	"math"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/atlasmap-sc/globelod/internal/camera"
	"github.com/atlasmap-sc/globelod/internal/chunk"
	"github.com/atlasmap-sc/globelod/internal/geo"
	"github.com/atlasmap-sc/globelod/internal/tile"
)

// ErrInvalidIndex is returned for tile indices outside the quadtree.
var ErrInvalidIndex = errors.New("invalid tile index")

// Config contains globe configuration.
type Config struct {
	Ellipsoid      geo.Ellipsoid
	MinLevel       int
	MaxLevel       int
	LODScaleFactor float64
	FrustumCulling bool
	HorizonCulling bool
	Logger         *zap.Logger
}

// Stats describes the chunk trees after the last update.
type Stats struct {
	Frame         uint64 `json:"frame"`
	Nodes         int    `json:"nodes"`
	Leaves        int    `json:"leaves"`
	VisibleLeaves int    `json:"visible_leaves"`
	DeepestLevel  int    `json:"deepest_level"`
}

// ChunkInfo is a snapshot of one leaf chunk.
type ChunkInfo struct {
	Index   geo.TileIndex `json:"index"`
	Visible bool          `json:"visible"`
	MinLat  float64       `json:"min_lat"`
	MaxLat  float64       `json:"max_lat"`
	MinLon  float64       `json:"min_lon"`
	MaxLon  float64       `json:"max_lon"`
}

// Globe implements chunk.Owner. Update and the accessors are safe to call
// from different goroutines; updates themselves are serialized.
type Globe struct {
	cfg       Config
	providers *tile.ProviderManager
	cullers   []Culler
	logger    *zap.Logger

	savedCamera atomic.Pointer[camera.Camera]

	mu    sync.Mutex
	roots [2]*chunk.Node
	stats Stats
}

// New creates a globe with its two level 0 root chunks.
func New(providers *tile.ProviderManager, cfg Config) (*Globe, error) {
	if providers == nil {
		return nil, errors.New("provider manager is required")
	}
	if cfg.Ellipsoid.MinimumRadius() <= 0 {
		return nil, errors.New("ellipsoid radii must be positive")
	}
	if cfg.MinLevel < 0 {
		cfg.MinLevel = 0
	}
	if cfg.MaxLevel < cfg.MinLevel {
		return nil, errors.New("max level must not be below min level")
	}
	if cfg.LODScaleFactor <= 0 {
		cfg.LODScaleFactor = 10
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	g := &Globe{
		cfg:       cfg,
		providers: providers,
		logger:    cfg.Logger,
	}
	if cfg.FrustumCulling {
		g.cullers = append(g.cullers, FrustumCuller{})
	}
	if cfg.HorizonCulling {
		g.cullers = append(g.cullers, HorizonCuller{})
	}
	g.roots = [2]*chunk.Node{
		chunk.NewNode(g, geo.NewTileIndex(0, 0, 0)),
		chunk.NewNode(g, geo.NewTileIndex(0, 1, 0)),
	}
	return g, nil
}

// Providers returns the provider manager of the globe.
func (g *Globe) Providers() *tile.ProviderManager { return g.providers }

// Ellipsoid returns the reference ellipsoid.
func (g *Globe) Ellipsoid() geo.Ellipsoid { return g.cfg.Ellipsoid }

// TileProviderGroup returns the provider group of a layer.
func (g *Globe) TileProviderGroup(layer tile.LayerID) *tile.ProviderGroup {
	return g.providers.Group(layer)
}

// SavedCamera returns the camera chunk updates are pinned to, or nil.
func (g *Globe) SavedCamera() *camera.Camera { return g.savedCamera.Load() }

// SetSavedCamera pins level-of-detail decisions to cam. Passing nil resumes
// using the live camera.
func (g *Globe) SetSavedCamera(cam *camera.Camera) {
	if cam != nil {
		cam = cam.Clone()
	}
	g.savedCamera.Store(cam)
}

// IsCullable reports whether any enabled culler rejects the chunk.
func (g *Globe) IsCullable(c *chunk.Chunk, data chunk.RenderData) bool {
	for _, culler := range g.cullers {
		if culler.IsCullable(c, data) {
			return true
		}
	}
	return false
}

// DesiredLevel picks a level from the distance between the camera and the
// closest point of the chunk. Halving the distance adds one level.
func (g *Globe) DesiredLevel(c *chunk.Chunk, data chunk.RenderData) int {
	ellipsoid := g.cfg.Ellipsoid
	cameraPos := data.Camera.Position

	minHeight := float64(c.BoundingHeights().Min)
	closest := c.SurfacePatch().ClosestPoint(ellipsoid.CartesianToGeodetic2(cameraPos))
	pos := ellipsoid.CartesianPosition(geo.Geodetic3{Geodetic2: closest, Height: minHeight})

	distance := max(r3.Norm(r3.Sub(pos, cameraPos)), 1e-6)
	level := math.Ceil(math.Log2(g.cfg.LODScaleFactor * ellipsoid.MinimumRadius() / distance))
	if math.IsNaN(level) {
		return g.cfg.MinLevel
	}
	return int(min(max(level, float64(g.cfg.MinLevel)), float64(g.cfg.MaxLevel)))
}

// Update drains finished tile loads into the providers and then refines or
// coarsens both chunk trees for the frame.
func (g *Globe) Update(data chunk.RenderData) Stats {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.providers.Update()
	for _, root := range g.roots {
		root.UpdateChunkTree(data)
	}

	stats := Stats{Frame: g.stats.Frame + 1}
	for _, root := range g.roots {
		root.Walk(func(n *chunk.Node) bool {
			stats.Nodes++
			if !n.IsLeaf() {
				return true
			}
			c := n.Chunk()
			stats.Leaves++
			if c.IsVisible() {
				stats.VisibleLeaves++
			}
			stats.DeepestLevel = max(stats.DeepestLevel, c.Index().Level)
			return true
		})
	}
	g.stats = stats

	if data.DoPerformanceMeasurement {
		g.logger.Info("globe updated",
			zap.Uint64("frame", stats.Frame),
			zap.Int("nodes", stats.Nodes),
			zap.Int("leaves", stats.Leaves),
			zap.Int("visible_leaves", stats.VisibleLeaves),
			zap.Int("deepest_level", stats.DeepestLevel))
	}
	return stats
}

// Stats returns the statistics of the last update.
func (g *Globe) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stats
}

// Leaves returns a snapshot of every leaf chunk, visible or not.
func (g *Globe) Leaves() []ChunkInfo {
	g.mu.Lock()
	defer g.mu.Unlock()

	var out []ChunkInfo
	for _, root := range g.roots {
		for _, c := range root.Leaves() {
			patch := c.SurfacePatch()
			out = append(out, ChunkInfo{
				Index:   c.Index(),
				Visible: c.IsVisible(),
				MinLat:  patch.MinLat(),
				MaxLat:  patch.MaxLat(),
				MinLon:  patch.MinLon(),
				MaxLon:  patch.MaxLon(),
			})
		}
	}
	return out
}

// InTree reports whether idx is a node of the current chunk trees.
func (g *Globe) InTree(idx geo.TileIndex) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, root := range g.roots {
		if root.Find(idx) != nil {
			return true
		}
	}
	return false
}

// BoundingHeights computes the bounding heights and polyhedron of the patch
// at idx with the tiles loaded so far. idx need not be part of the tree.
func (g *Globe) BoundingHeights(idx geo.TileIndex) (chunk.BoundingHeights, [8]r3.Vec, error) {
	if !idx.IsValid() {
		return chunk.BoundingHeights{}, [8]r3.Vec{}, ErrInvalidIndex
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	c := chunk.New(g, idx, false)
	return c.BoundingHeights(), c.BoundingPolyhedronCorners(), nil
}
