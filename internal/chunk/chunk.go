// Package chunk implements the quadtree nodes of a chunked level-of-detail globe.
package chunk

import (
	"github.com/atlasmap-sc/globelod/internal/camera"
	"github.com/atlasmap-sc/globelod/internal/geo"
	"github.com/atlasmap-sc/globelod/internal/tile"
)

// Status is the outcome of a chunk update. The owner turns it into quadtree
// changes.
type Status int

const (
	StatusDoNothing Status = iota
	StatusWantSplit
	StatusWantMerge
)

func (s Status) String() string {
	switch s {
	case StatusWantSplit:
		return "want_split"
	case StatusWantMerge:
		return "want_merge"
	default:
		return "do_nothing"
	}
}

// RenderData is the per-frame input of an update.
type RenderData struct {
	Camera                   camera.Camera
	DoPerformanceMeasurement bool
}

// Owner is the globe a chunk belongs to. Chunks only refer to it; the owner
// controls their lifetime.
type Owner interface {
	IsCullable(c *Chunk, data RenderData) bool
	DesiredLevel(c *Chunk, data RenderData) int
	SavedCamera() *camera.Camera
	TileProviderGroup(layer tile.LayerID) *tile.ProviderGroup
	Ellipsoid() geo.Ellipsoid
}

// Chunk is one patch of the globe at one level of detail.
type Chunk struct {
	owner     Owner
	index     geo.TileIndex
	patch     geo.GeodeticPatch
	isVisible bool
}

// New creates a chunk for idx.
func New(owner Owner, idx geo.TileIndex, initVisible bool) *Chunk {
	return &Chunk{
		owner:     owner,
		index:     idx,
		patch:     geo.NewPatch(idx),
		isVisible: initVisible,
	}
}

func (c *Chunk) Owner() Owner                    { return c.owner }
func (c *Chunk) SetOwner(o Owner)                { c.owner = o }
func (c *Chunk) Index() geo.TileIndex            { return c.index }
func (c *Chunk) SurfacePatch() geo.GeodeticPatch { return c.patch }
func (c *Chunk) IsVisible() bool                 { return c.isVisible }
func (c *Chunk) setVisible(v bool)               { c.isVisible = v }

// SetIndex moves the chunk to a new index and recomputes its patch.
func (c *Chunk) SetIndex(idx geo.TileIndex) {
	c.index = idx
	c.patch = geo.NewPatch(idx)
}

// Update decides whether the chunk should split, merge or stay. A chunk
// without owner never changes.
func (c *Chunk) Update(data RenderData) Status {
	if c.owner == nil {
		return StatusDoNothing
	}
	if saved := c.owner.SavedCamera(); saved != nil {
		data.Camera = *saved
	}

	if c.owner.IsCullable(c, data) {
		c.isVisible = false
		return StatusWantMerge
	}
	c.isVisible = true

	desired := c.owner.DesiredLevel(c, data)
	switch {
	case desired < c.index.Level:
		return StatusWantMerge
	case desired > c.index.Level:
		return StatusWantSplit
	default:
		return StatusDoNothing
	}
}
