// Package camera describes the viewer used for culling and level-of-detail decisions.
package camera

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Camera is a perspective viewer in globe model space.
type Camera struct {
	Position    r3.Vec
	Direction   r3.Vec // view direction, need not be normalized
	Up          r3.Vec
	VerticalFOV float64 // radians
	AspectRatio float64 // width / height
}

// LookAt creates a camera at position looking at target.
func LookAt(position, target, up r3.Vec, verticalFOV, aspect float64) Camera {
	return Camera{
		Position:    position,
		Direction:   r3.Sub(target, position),
		Up:          up,
		VerticalFOV: verticalFOV,
		AspectRatio: aspect,
	}
}

// Clone returns a copy of the camera.
func (c *Camera) Clone() *Camera {
	cp := *c
	return &cp
}

// Plane is a half space {p : dot(Normal, p) + Offset >= 0}.
type Plane struct {
	Normal r3.Vec
	Offset float64
}

// Distance returns the signed distance of p to the plane. Points inside the
// half space have non-negative distance.
func (p Plane) Distance(v r3.Vec) float64 {
	return r3.Dot(p.Normal, v) + p.Offset
}

// Frustum returns the near, left, right, top and bottom planes of the camera
// with inward facing normals. The near plane passes through the camera
// position.
func (c *Camera) Frustum() [5]Plane {
	forward := r3.Unit(c.Direction)
	right := r3.Unit(r3.Cross(forward, c.Up))
	up := r3.Cross(right, forward)

	halfV := c.VerticalFOV / 2
	halfH := math.Atan(math.Tan(halfV) * c.AspectRatio)

	// Side plane normals are the forward vector tilted towards each side.
	normals := [5]r3.Vec{
		forward,
		r3.Add(r3.Scale(math.Sin(halfH), forward), r3.Scale(math.Cos(halfH), right)),
		r3.Sub(r3.Scale(math.Sin(halfH), forward), r3.Scale(math.Cos(halfH), right)),
		r3.Sub(r3.Scale(math.Sin(halfV), forward), r3.Scale(math.Cos(halfV), up)),
		r3.Add(r3.Scale(math.Sin(halfV), forward), r3.Scale(math.Cos(halfV), up)),
	}

	var planes [5]Plane
	for i, n := range normals {
		planes[i] = Plane{Normal: n, Offset: -r3.Dot(n, c.Position)}
	}
	return planes
}
