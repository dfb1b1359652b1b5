package chunk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/atlasmap-sc/globelod/internal/camera"
	"github.com/atlasmap-sc/globelod/internal/geo"
	"github.com/atlasmap-sc/globelod/internal/tile"
)

type fakeOwner struct {
	cullable   bool
	desired    int
	desiredFn  func(*Chunk) int
	saved      *camera.Camera
	seenCamera camera.Camera
	heights    *tile.ProviderGroup
	ellipsoid  geo.Ellipsoid
}

func (o *fakeOwner) IsCullable(c *Chunk, data RenderData) bool {
	o.seenCamera = data.Camera
	return o.cullable
}

func (o *fakeOwner) DesiredLevel(c *Chunk, data RenderData) int {
	if o.desiredFn != nil {
		return o.desiredFn(c)
	}
	return o.desired
}

func (o *fakeOwner) SavedCamera() *camera.Camera { return o.saved }

func (o *fakeOwner) TileProviderGroup(layer tile.LayerID) *tile.ProviderGroup {
	if layer == tile.HeightLayers {
		return o.heights
	}
	return nil
}

func (o *fakeOwner) Ellipsoid() geo.Ellipsoid { return o.ellipsoid }

// heightProvider serves preprocess-only tiles.
type heightProvider struct {
	name  string
	tiles map[geo.TileIndex]tile.Tile
}

func newHeightProvider(name string) *heightProvider {
	return &heightProvider{name: name, tiles: make(map[geo.TileIndex]tile.Tile)}
}

func (p *heightProvider) Name() string           { return p.name }
func (p *heightProvider) MaxLevel() int          { return 20 }
func (p *heightProvider) DefaultTile() tile.Tile { return tile.Tile{} }
func (p *heightProvider) Update()                {}

func (p *heightProvider) Tile(idx geo.TileIndex) tile.Tile {
	if t, ok := p.tiles[idx]; ok {
		return t
	}
	return tile.Tile{Status: tile.StatusUnavailable}
}

func (p *heightProvider) put(idx geo.TileIndex, minH, maxH float32, missing bool) {
	p.tiles[idx] = tile.Tile{
		Status:     tile.StatusOK,
		Dimensions: tile.Dimensions{Width: 64, Height: 64},
		Preprocess: &tile.PreprocessData{
			MinValues:      []float32{minH},
			MaxValues:      []float32{maxH},
			HasMissingData: []bool{missing},
		},
	}
}

func TestChunk_UpdateStatus(t *testing.T) {
	idx := geo.NewTileIndex(3, 4, 2)
	tests := []struct {
		name     string
		cullable bool
		desired  int
		want     Status
		visible  bool
	}{
		{"split", false, 5, StatusWantSplit, true},
		{"merge", false, 2, StatusWantMerge, true},
		{"nothing", false, 3, StatusDoNothing, true},
		{"culled wants split", true, 9, StatusWantMerge, false},
		{"culled equal", true, 3, StatusWantMerge, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			owner := &fakeOwner{cullable: tt.cullable, desired: tt.desired}
			c := New(owner, idx, !tt.visible)

			assert.Equal(t, tt.want, c.Update(RenderData{}))
			assert.Equal(t, tt.visible, c.IsVisible())
		})
	}
}

func TestChunk_UpdateUsesSavedCamera(t *testing.T) {
	saved := camera.LookAt(r3.Vec{X: 42}, r3.Vec{}, r3.Vec{Z: 1}, 1, 1)
	owner := &fakeOwner{saved: &saved}
	c := New(owner, geo.NewTileIndex(0, 0, 0), true)

	live := camera.LookAt(r3.Vec{Y: 7}, r3.Vec{}, r3.Vec{Z: 1}, 1, 1)
	c.Update(RenderData{Camera: live})
	assert.Equal(t, saved, owner.seenCamera)

	owner.saved = nil
	c.Update(RenderData{Camera: live})
	assert.Equal(t, live, owner.seenCamera)
}

func TestChunk_NilOwner(t *testing.T) {
	c := New(nil, geo.NewTileIndex(1, 0, 0), true)
	assert.Equal(t, StatusDoNothing, c.Update(RenderData{}))
	assert.Equal(t, BoundingHeights{}, c.BoundingHeights())
	assert.Equal(t, [8]r3.Vec{}, c.BoundingPolyhedronCorners())
}

func TestChunk_SetIndex(t *testing.T) {
	c := New(nil, geo.NewTileIndex(0, 0, 0), true)
	c.SetIndex(geo.NewTileIndex(2, 5, 1))
	assert.Equal(t, geo.NewTileIndex(2, 5, 1), c.Index())
	assert.Equal(t, geo.NewPatch(geo.NewTileIndex(2, 5, 1)), c.SurfacePatch())
}

func TestBoundingHeights(t *testing.T) {
	idx := geo.NewTileIndex(2, 1, 1)

	t.Run("no tiles", func(t *testing.T) {
		group := tile.NewProviderGroup()
		group.Add(newHeightProvider("a"))
		c := New(&fakeOwner{heights: group}, idx, true)
		assert.Equal(t, BoundingHeights{Min: 0, Max: 0, Available: false}, c.BoundingHeights())
	})

	t.Run("no group", func(t *testing.T) {
		c := New(&fakeOwner{}, idx, true)
		assert.Equal(t, BoundingHeights{}, c.BoundingHeights())
	})

	t.Run("single tile", func(t *testing.T) {
		p := newHeightProvider("a")
		p.put(idx, 10, 50, false)
		group := tile.NewProviderGroup()
		group.Add(p)
		c := New(&fakeOwner{heights: group}, idx, true)
		assert.Equal(t, BoundingHeights{Min: 10, Max: 50, Available: true}, c.BoundingHeights())
	})

	t.Run("union of same level providers", func(t *testing.T) {
		a, b := newHeightProvider("a"), newHeightProvider("b")
		a.put(idx, 5, 20, false)
		b.put(idx, 8, 30, false)
		group := tile.NewProviderGroup()
		group.Add(a)
		group.Add(b)
		c := New(&fakeOwner{heights: group}, idx, true)
		assert.Equal(t, BoundingHeights{Min: 5, Max: 30, Available: true}, c.BoundingHeights())
	})

	t.Run("complete tile stops at its level", func(t *testing.T) {
		p := newHeightProvider("a")
		p.put(idx, 10, 50, false)
		p.put(idx.Parent(), -100, 900, false)
		group := tile.NewProviderGroup()
		group.Add(p)
		c := New(&fakeOwner{heights: group}, idx, true)
		assert.Equal(t, BoundingHeights{Min: 10, Max: 50, Available: true}, c.BoundingHeights())
	})

	t.Run("missing data widens to default and continues", func(t *testing.T) {
		p := newHeightProvider("a")
		p.put(idx, 100, 200, true)
		p.put(idx.Parent(), 80, 250, false)
		p.put(idx.Parent().Parent(), -5000, 9000, false)
		group := tile.NewProviderGroup()
		group.Add(p)
		c := New(&fakeOwner{heights: group}, idx, true)
		assert.Equal(t, BoundingHeights{Min: 0, Max: 250, Available: true}, c.BoundingHeights())
	})

	t.Run("negative tile with missing data", func(t *testing.T) {
		p := newHeightProvider("a")
		p.put(idx, -300, -20, true)
		group := tile.NewProviderGroup()
		group.Add(p)
		c := New(&fakeOwner{heights: group}, idx, true)
		assert.Equal(t, BoundingHeights{Min: -300, Max: 0, Available: true}, c.BoundingHeights())
	})

	t.Run("tiles without preprocess data are skipped", func(t *testing.T) {
		p := newHeightProvider("a")
		p.tiles[idx] = tile.Tile{Status: tile.StatusOK}
		p.put(idx.Parent(), 1, 2, false)
		group := tile.NewProviderGroup()
		group.Add(p)
		c := New(&fakeOwner{heights: group}, idx, true)
		assert.Equal(t, BoundingHeights{Min: 1, Max: 2, Available: true}, c.BoundingHeights())
	})
}

func TestBoundingPolyhedron_Sphere(t *testing.T) {
	const radius = 1000.0
	sphere := geo.NewSphere(radius)

	for _, idx := range []geo.TileIndex{
		geo.NewTileIndex(3, 5, 2),
		geo.NewTileIndex(3, 9, 5),
		geo.NewTileIndex(5, 30, 14),
		geo.NewTileIndex(4, 3, 1),
	} {
		p := newHeightProvider("a")
		p.put(idx, -4, 80, false)
		group := tile.NewProviderGroup()
		group.Add(p)
		c := New(&fakeOwner{heights: group, ellipsoid: sphere}, idx, true)
		corners := c.BoundingPolyhedronCorners()
		patch := c.SurfacePatch()

		for i := 0; i < 4; i++ {
			assert.InDelta(t, radius-4, r3.Norm(corners[i]), 1e-6, "%s bottom corner %d", idx, i)
			assert.Greater(t, r3.Norm(corners[i+4]), radius+80, "%s top corner %d", idx, i)
		}

		// The top face reaches above the max height at the patch centre.
		center := sphere.CartesianPosition(geo.Geodetic3{Geodetic2: patch.Center(), Height: 80})
		normal := sphere.GeodeticSurfaceNormal(patch.Center())
		for i := 4; i < 8; i++ {
			assert.GreaterOrEqual(t, r3.Dot(corners[i], normal)*1.0001, r3.Dot(center, normal)*0.999)
		}

		// Equator side corners move towards the equator, the others stay put.
		for i, corner := range corners {
			q := geo.Quad(i % 4)
			lat := sphere.CartesianToGeodetic2(corner).Lat
			cornerIsNorthern := q == geo.NorthWest || q == geo.NorthEast
			switch {
			case patch.IsNorthern() && !cornerIsNorthern:
				assert.Less(t, lat, patch.MinLat(), "%s corner %d", idx, i)
			case !patch.IsNorthern() && cornerIsNorthern:
				assert.Greater(t, lat, patch.MaxLat(), "%s corner %d", idx, i)
			default:
				assert.InDelta(t, patch.Corner(q).Lat, lat, 1e-9, "%s corner %d", idx, i)
			}
		}
	}
}

func TestBoundingPolyhedron_DefaultHeights(t *testing.T) {
	ellipsoid := geo.NewSphere(1000)
	c := New(&fakeOwner{ellipsoid: ellipsoid}, geo.NewTileIndex(3, 4, 2), true)
	corners := c.BoundingPolyhedronCorners()

	for i := 0; i < 4; i++ {
		assert.InDelta(t, 1000, r3.Norm(corners[i]), 1e-6)
		assert.Greater(t, r3.Norm(corners[i+4]), 1000.0)
	}
}

func TestNode_SplitAndMerge(t *testing.T) {
	owner := &fakeOwner{desired: 2}
	root := NewNode(owner, geo.NewTileIndex(0, 0, 0))

	// One split per update and level.
	assert.False(t, root.UpdateChunkTree(RenderData{}))
	require.Len(t, root.Children(), 4)
	assert.True(t, root.Children()[0].Children() == nil)

	root.UpdateChunkTree(RenderData{})
	assert.Len(t, root.Leaves(), 16)
	assert.Equal(t, 21, root.Count())
	for _, leaf := range root.Leaves() {
		assert.Equal(t, 2, leaf.Index().Level)
	}

	// Steady state.
	root.UpdateChunkTree(RenderData{})
	assert.Len(t, root.Leaves(), 16)

	// Merges collapse one level per update.
	owner.desired = 0
	root.UpdateChunkTree(RenderData{})
	assert.Len(t, root.Leaves(), 4)
	root.UpdateChunkTree(RenderData{})
	assert.True(t, root.IsLeaf())
	assert.True(t, root.Chunk().IsVisible())
}

func TestNode_NoMergeWhenParentWantsSplit(t *testing.T) {
	owner := &fakeOwner{}
	owner.desiredFn = func(c *Chunk) int {
		// Parent asks for its children, children ask to go away.
		if c.Index().Level == 0 {
			return 1
		}
		return 0
	}
	root := NewNode(owner, geo.NewTileIndex(0, 1, 0))
	root.Split(1)

	root.UpdateChunkTree(RenderData{})
	assert.Len(t, root.Children(), 4)
}

func TestNode_PartialMergeKeepsChildren(t *testing.T) {
	owner := &fakeOwner{}
	owner.desiredFn = func(c *Chunk) int {
		if c.Index() == geo.NewTileIndex(1, 0, 0) {
			return 1
		}
		return 0
	}
	root := NewNode(owner, geo.NewTileIndex(0, 0, 0))
	root.Split(1)

	root.UpdateChunkTree(RenderData{})
	assert.Len(t, root.Children(), 4)
}

func TestNode_InnerChunkEvaluatedOnlyWhenMerging(t *testing.T) {
	rootIdx := geo.NewTileIndex(0, 0, 0)
	keep := geo.NewTileIndex(1, 0, 0)
	evaluated := map[geo.TileIndex]int{}
	owner := &fakeOwner{}
	owner.desiredFn = func(c *Chunk) int {
		evaluated[c.Index()]++
		if c.Index() == keep {
			return 1
		}
		return 0
	}
	root := NewNode(owner, rootIdx)
	root.Split(1)

	root.UpdateChunkTree(RenderData{})
	assert.Len(t, root.Children(), 4)
	assert.Zero(t, evaluated[rootIdx])
	assert.Equal(t, 1, evaluated[keep])

	// Once every child asks to merge the parent is consulted.
	keep = geo.TileIndex{Level: -1}
	root.UpdateChunkTree(RenderData{})
	assert.Equal(t, 1, evaluated[rootIdx])
	assert.True(t, root.IsLeaf())
}

func TestNode_CulledChildrenMerge(t *testing.T) {
	owner := &fakeOwner{desired: 1}
	root := NewNode(owner, geo.NewTileIndex(0, 0, 0))
	root.Split(1)

	owner.cullable = true
	root.UpdateChunkTree(RenderData{})
	assert.True(t, root.IsLeaf())
	assert.True(t, root.Chunk().IsVisible(), "merge restores visibility")
}

func TestNode_Find(t *testing.T) {
	root := NewNode(nil, geo.NewTileIndex(0, 1, 0))
	root.Split(3)

	target := geo.NewTileIndex(3, 13, 5)
	n := root.Find(target)
	require.NotNil(t, n)
	assert.Equal(t, target, n.Chunk().Index())
	assert.Equal(t, geo.NewTileIndex(2, 6, 2), n.Parent().Chunk().Index())

	assert.Nil(t, root.Find(geo.NewTileIndex(3, 2, 5)), "other root")
	assert.Nil(t, root.Find(geo.NewTileIndex(4, 26, 10)), "deeper than tree")
	assert.Same(t, root, root.Find(geo.NewTileIndex(0, 1, 0)))
}
