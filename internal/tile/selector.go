package tile

import (
	"iter"

	"github.com/atlasmap-sc/globelod/internal/geo"
)

// TileAndTransform pairs a tile with the part of its pixel space that covers
// the requested patch. Depth is the number of levels between the requested
// index and the tile's own index.
type TileAndTransform struct {
	Tile   Tile
	Index  geo.TileIndex
	Depth  int
	Region PixelRegion
}

// Ancestor returns the index depth levels above idx.
func Ancestor(idx geo.TileIndex, depth int) geo.TileIndex {
	if depth <= 0 {
		return idx
	}
	if depth > idx.Level {
		depth = idx.Level
	}
	return geo.TileIndex{Level: idx.Level - depth, X: idx.X >> depth, Y: idx.Y >> depth}
}

// RegionInAncestor maps the full pixel region of the ancestor depth levels
// above idx onto the sub-region covering idx. Each step halves the region
// around the corner it shares with the child quadrant.
func RegionInAncestor(full PixelRegion, idx geo.TileIndex, depth int) PixelRegion {
	r := full
	for k := depth - 1; k >= 0; k-- {
		cx, cy := Ancestor(idx, k).QuadOffset()
		pivot := PixelCoordinate{
			X: r.Start.X + cx*r.NumPixels.X,
			Y: r.Start.Y + cy*r.NumPixels.Y,
		}
		r.DownscalePow2(1, pivot)
	}
	return r
}

// Tiles yields the usable tiles of the group's active providers for idx,
// highest resolution first. Within one level providers keep their group
// order. Lookups happen lazily, so a consumer that stops early never queries
// coarser levels.
func Tiles(group *ProviderGroup, idx geo.TileIndex) iter.Seq[TileAndTransform] {
	return func(yield func(TileAndTransform) bool) {
		if group == nil {
			return
		}
		providers := group.ActiveProviders()
		for depth := 0; depth <= idx.Level; depth++ {
			ancestor := Ancestor(idx, depth)
			for _, p := range providers {
				if ancestor.Level > p.MaxLevel() {
					continue
				}
				t := p.Tile(ancestor)
				if t.Status != StatusOK {
					continue
				}
				tt := TileAndTransform{
					Tile:   t,
					Index:  ancestor,
					Depth:  depth,
					Region: RegionInAncestor(t.FullRegion(), idx, depth),
				}
				if !yield(tt) {
					return
				}
			}
		}
	}
}

// TilesSortedByHighestResolution collects Tiles into a slice.
func TilesSortedByHighestResolution(group *ProviderGroup, idx geo.TileIndex) []TileAndTransform {
	var out []TileAndTransform
	for tt := range Tiles(group, idx) {
		out = append(out, tt)
	}
	return out
}

// HighestResolutionTile returns the finest loaded tile of one provider
// covering idx, or the provider's default tile when nothing is loaded.
func HighestResolutionTile(p Provider, idx geo.TileIndex) TileAndTransform {
	start := 0
	if idx.Level > p.MaxLevel() {
		start = idx.Level - p.MaxLevel()
	}
	for depth := start; depth <= idx.Level; depth++ {
		ancestor := Ancestor(idx, depth)
		t := p.Tile(ancestor)
		if t.Status == StatusOK {
			return TileAndTransform{
				Tile:   t,
				Index:  ancestor,
				Depth:  depth,
				Region: RegionInAncestor(t.FullRegion(), idx, depth),
			}
		}
	}
	def := p.DefaultTile()
	return TileAndTransform{Tile: def, Index: idx, Region: def.FullRegion()}
}
