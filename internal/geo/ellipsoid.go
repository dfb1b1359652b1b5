package geo

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Ellipsoid is a triaxial reference ellipsoid centred at the origin, z up.
type Ellipsoid struct {
	radii            r3.Vec
	radiiSquared     r3.Vec
	oneOverRadiiSq   r3.Vec
	radiiToTheFourth r3.Vec
	minimumRadius    float64
	maximumRadius    float64
}

// NewEllipsoid creates an ellipsoid from its three radii in metres.
func NewEllipsoid(x, y, z float64) Ellipsoid {
	r := r3.Vec{X: x, Y: y, Z: z}
	sq := mulElem(r, r)
	return Ellipsoid{
		radii:            r,
		radiiSquared:     sq,
		oneOverRadiiSq:   r3.Vec{X: 1 / sq.X, Y: 1 / sq.Y, Z: 1 / sq.Z},
		radiiToTheFourth: mulElem(sq, sq),
		minimumRadius:    math.Min(x, math.Min(y, z)),
		maximumRadius:    math.Max(x, math.Max(y, z)),
	}
}

// NewSphere creates a spherical ellipsoid.
func NewSphere(radius float64) Ellipsoid {
	return NewEllipsoid(radius, radius, radius)
}

func (e Ellipsoid) Radii() r3.Vec          { return e.radii }
func (e Ellipsoid) MinimumRadius() float64 { return e.minimumRadius }
func (e Ellipsoid) MaximumRadius() float64 { return e.maximumRadius }

// GeodeticSurfaceNormal returns the unit surface normal at a geodetic position.
func (e Ellipsoid) GeodeticSurfaceNormal(g Geodetic2) r3.Vec {
	cosLat := math.Cos(g.Lat)
	return r3.Vec{
		X: cosLat * math.Cos(g.Lon),
		Y: cosLat * math.Sin(g.Lon),
		Z: math.Sin(g.Lat),
	}
}

// CartesianSurfacePosition returns the point on the ellipsoid surface.
func (e Ellipsoid) CartesianSurfacePosition(g Geodetic2) r3.Vec {
	n := e.GeodeticSurfaceNormal(g)
	k := mulElem(e.radiiSquared, n)
	gamma := math.Sqrt(r3.Dot(k, n))
	return r3.Scale(1/gamma, k)
}

// CartesianPosition returns the model space position of a raised geodetic point.
func (e Ellipsoid) CartesianPosition(g Geodetic3) r3.Vec {
	n := e.GeodeticSurfaceNormal(g.Geodetic2)
	return r3.Add(e.CartesianSurfacePosition(g.Geodetic2), r3.Scale(g.Height, n))
}

// GeodeticSurfaceProjection projects a point along the surface normal onto the
// ellipsoid using Newton iteration.
func (e Ellipsoid) GeodeticSurfaceProjection(p r3.Vec) r3.Vec {
	if r3.Norm2(p) == 0 {
		return r3.Vec{Z: e.radii.Z}
	}
	beta := 1 / math.Sqrt(r3.Dot(mulElem(p, p), e.oneOverRadiiSq))
	n := r3.Norm(mulElem(r3.Scale(beta, p), e.oneOverRadiiSq))
	alpha := (1 - beta) * (r3.Norm(p) / n)
	p2 := mulElem(p, p)

	var d r3.Vec
	s := 0.0
	dSdA := 1.0
	for i := 0; i < 16; i++ {
		alpha -= s / dSdA
		d = r3.Add(r3.Vec{X: 1, Y: 1, Z: 1}, r3.Scale(alpha, e.oneOverRadiiSq))
		d2 := mulElem(d, d)
		d3 := mulElem(d, d2)
		s = p2.X/(e.radiiSquared.X*d2.X) + p2.Y/(e.radiiSquared.Y*d2.Y) + p2.Z/(e.radiiSquared.Z*d2.Z) - 1
		dSdA = -2 * (p2.X/(e.radiiToTheFourth.X*d3.X) + p2.Y/(e.radiiToTheFourth.Y*d3.Y) + p2.Z/(e.radiiToTheFourth.Z*d3.Z))
		if math.Abs(s) < 1e-12 {
			break
		}
	}
	return r3.Vec{X: p.X / d.X, Y: p.Y / d.Y, Z: p.Z / d.Z}
}

// CartesianToGeodetic2 returns the geodetic position of the surface point
// under p.
func (e Ellipsoid) CartesianToGeodetic2(p r3.Vec) Geodetic2 {
	surface := e.GeodeticSurfaceProjection(p)
	n := r3.Unit(mulElem(surface, e.oneOverRadiiSq))
	return Geodetic2{
		Lat: math.Asin(clamp(n.Z, -1, 1)),
		Lon: math.Atan2(n.Y, n.X),
	}
}

func mulElem(a, b r3.Vec) r3.Vec {
	return r3.Vec{X: a.X * b.X, Y: a.Y * b.Y, Z: a.Z * b.Z}
}
