package geo

import "math"

// Geodetic2 is a latitude/longitude pair in radians.
type Geodetic2 struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Geodetic3 is a surface point raised by a height in metres.
type Geodetic3 struct {
	Geodetic2
	Height float64 `json:"height"`
}

// GeodeticPatch is a rectangular latitude/longitude region of the globe.
type GeodeticPatch struct {
	center   Geodetic2
	halfSize Geodetic2
}

// NewPatch derives the patch covered by a tile index.
func NewPatch(idx TileIndex) GeodeticPatch {
	delta := math.Pi / float64(int(1)<<idx.Level)
	return GeodeticPatch{
		center: Geodetic2{
			Lat: math.Pi/2 - (float64(idx.Y)+0.5)*delta,
			Lon: -math.Pi + (float64(idx.X)+0.5)*delta,
		},
		halfSize: Geodetic2{Lat: delta / 2, Lon: delta / 2},
	}
}

func (p GeodeticPatch) Center() Geodetic2   { return p.center }
func (p GeodeticPatch) HalfSize() Geodetic2 { return p.halfSize }
func (p GeodeticPatch) MinLat() float64     { return p.center.Lat - p.halfSize.Lat }
func (p GeodeticPatch) MaxLat() float64     { return p.center.Lat + p.halfSize.Lat }
func (p GeodeticPatch) MinLon() float64     { return p.center.Lon - p.halfSize.Lon }
func (p GeodeticPatch) MaxLon() float64     { return p.center.Lon + p.halfSize.Lon }

// IsNorthern reports whether the patch centre lies north of the equator.
func (p GeodeticPatch) IsNorthern() bool {
	return p.center.Lat > 0
}

// EdgeLatitudeNearestEquator returns the latitude of the patch edge closest to the equator.
func (p GeodeticPatch) EdgeLatitudeNearestEquator() float64 {
	if p.IsNorthern() {
		return p.MinLat()
	}
	return p.MaxLat()
}

// Corner returns one of the four patch corners.
func (p GeodeticPatch) Corner(q Quad) Geodetic2 {
	switch q {
	case NorthWest:
		return Geodetic2{Lat: p.MaxLat(), Lon: p.MinLon()}
	case NorthEast:
		return Geodetic2{Lat: p.MaxLat(), Lon: p.MaxLon()}
	case SouthWest:
		return Geodetic2{Lat: p.MinLat(), Lon: p.MinLon()}
	default:
		return Geodetic2{Lat: p.MinLat(), Lon: p.MaxLon()}
	}
}

// Contains reports whether a point lies inside the patch.
func (p GeodeticPatch) Contains(g Geodetic2) bool {
	dLon := wrapAngle(g.Lon - p.center.Lon)
	return math.Abs(g.Lat-p.center.Lat) <= p.halfSize.Lat && math.Abs(dLon) <= p.halfSize.Lon
}

// ClosestPoint returns the point of the patch closest to g in angular terms.
// Longitudes are compared on the wrapped circle so patches at the antimeridian
// behave.
func (p GeodeticPatch) ClosestPoint(g Geodetic2) Geodetic2 {
	if p.Contains(g) {
		return g
	}
	lat := clamp(g.Lat, p.MinLat(), p.MaxLat())

	dLon := wrapAngle(g.Lon - p.center.Lon)
	// Points on the far side of the globe snap to the nearer meridian edge
	// through the pole rather than the long way around.
	if math.Abs(dLon) > math.Pi/2+p.halfSize.Lon {
		if g.Lat > 0 {
			lat = p.MaxLat()
		} else {
			lat = p.MinLat()
		}
	}
	clamped := clamp(dLon, -p.halfSize.Lon, p.halfSize.Lon)
	if clamped == dLon {
		return Geodetic2{Lat: lat, Lon: g.Lon}
	}
	return Geodetic2{Lat: lat, Lon: p.center.Lon + clamped}
}

func wrapAngle(a float64) float64 {
	a = math.Mod(a+math.Pi, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a - math.Pi
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
