package chunk

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/atlasmap-sc/globelod/internal/geo"
	"github.com/atlasmap-sc/globelod/internal/tile"
)

// DefaultHeight is the reference height assumed where height data is missing.
const DefaultHeight float32 = 0

const heightChannel = 0

// BoundingHeights is the elevation interval of a patch.
type BoundingHeights struct {
	Min       float32 `json:"min"`
	Max       float32 `json:"max"`
	Available bool    `json:"available"`
}

// BoundingHeights aggregates the min/max elevation of the height tiles
// covering the chunk, finest first. The interval only ever widens. Once a
// tile without missing data has contributed, its resolution level is taken as
// authoritative: the remaining tiles of that level still contribute, coarser
// ones are not consulted.
func (c *Chunk) BoundingHeights() BoundingHeights {
	var bh BoundingHeights
	if c.owner == nil {
		return bh
	}
	group := c.owner.TileProviderGroup(tile.HeightLayers)
	if group == nil {
		return bh
	}

	authoritativeDepth := -1
	for tt := range tile.Tiles(group, c.index) {
		if authoritativeDepth >= 0 && tt.Depth > authoritativeDepth {
			break
		}
		pd := tt.Tile.Preprocess
		if pd == nil || len(pd.MinValues) <= heightChannel ||
			len(pd.MaxValues) <= heightChannel || len(pd.HasMissingData) <= heightChannel {
			continue
		}
		minV, maxV := pd.MinValues[heightChannel], pd.MaxValues[heightChannel]
		missing := pd.HasMissingData[heightChannel]

		if !bh.Available {
			if missing {
				minV = min(minV, DefaultHeight)
				maxV = max(maxV, DefaultHeight)
			}
			bh = BoundingHeights{Min: minV, Max: maxV, Available: true}
		} else {
			bh.Min = min(bh.Min, minV)
			bh.Max = max(bh.Max, maxV)
		}

		if !missing && authoritativeDepth < 0 {
			authoritativeDepth = tt.Depth
		}
	}
	return bh
}

// BoundingPolyhedronCorners returns eight model space points whose convex
// hull contains the chunk's surface between its bounding heights. The first
// four lie at the minimum height, the last four at the (inflated) maximum,
// each in NW, NE, SW, SE order.
func (c *Chunk) BoundingPolyhedronCorners() [8]r3.Vec {
	var corners [8]r3.Vec
	if c.owner == nil {
		return corners
	}
	ellipsoid := c.owner.Ellipsoid()
	patch := c.patch
	bh := c.BoundingHeights()

	// Worst case radius under the patch centre.
	centerRadius := ellipsoid.MaximumRadius()
	maxCenterRadius := centerRadius + float64(bh.Max)

	// The flat top face spanned by the corners dips below the curved surface
	// towards the patch centre. Raising the corners by this factor makes the
	// face reach maxCenterRadius above the centre.
	half := patch.HalfSize()
	y1 := math.Tan(half.Lat)
	y2 := math.Tan(half.Lon)
	scaleToCoverCenter := math.Sqrt(1 + y1*y1 + y2*y2)
	maxCornerHeight := maxCenterRadius*scaleToCoverCenter - centerRadius

	minCornerHeight := float64(bh.Min)

	// Corners on the equator side are pushed further towards the equator so
	// the panel spanned between them still covers the bulge of the edge.
	northern := patch.IsNorthern()
	latNearEquator := patch.EdgeLatitudeNearestEquator()
	p1 := ellipsoid.CartesianPosition(geo.Geodetic3{
		Geodetic2: geo.Geodetic2{Lat: latNearEquator, Lon: patch.MinLon()},
		Height:    maxCornerHeight,
	})
	p2 := ellipsoid.CartesianPosition(geo.Geodetic3{
		Geodetic2: geo.Geodetic2{Lat: latNearEquator, Lon: patch.MaxLon()},
		Height:    maxCornerHeight,
	})
	mid := ellipsoid.CartesianToGeodetic2(r3.Scale(0.5, r3.Add(p1, p2)))
	latDiff := latNearEquator - mid.Lat
	// Only ever move outwards.
	if northern {
		latDiff = min(latDiff, 0)
	} else {
		latDiff = max(latDiff, 0)
	}

	for i := range corners {
		q := geo.Quad(i % 4)
		height := minCornerHeight
		if i >= 4 {
			height = maxCornerHeight
		}
		corner := geo.Geodetic3{Geodetic2: patch.Corner(q), Height: height}

		cornerIsNorthern := q == geo.NorthWest || q == geo.NorthEast
		if northern != cornerIsNorthern {
			corner.Lat += latDiff
		}
		corners[i] = ellipsoid.CartesianPosition(corner)
	}
	return corners
}
