package globe

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/atlasmap-sc/globelod/internal/chunk"
	"github.com/atlasmap-sc/globelod/internal/geo"
)

// Culler decides whether a chunk can be skipped for a camera.
type Culler interface {
	IsCullable(c *chunk.Chunk, data chunk.RenderData) bool
}

// FrustumCuller culls chunks whose bounding polyhedron lies entirely outside
// one of the view frustum planes.
type FrustumCuller struct{}

func (FrustumCuller) IsCullable(c *chunk.Chunk, data chunk.RenderData) bool {
	corners := c.BoundingPolyhedronCorners()
	for _, plane := range data.Camera.Frustum() {
		outside := true
		for _, corner := range corners {
			if plane.Distance(corner) >= 0 {
				outside = false
				break
			}
		}
		if outside {
			return true
		}
	}
	return false
}

// HorizonCuller culls chunks hidden behind the horizon. The globe is
// approximated by a sphere of the ellipsoid's minimum radius and the chunk by
// its point closest to the camera, raised to the chunk's maximum height.
type HorizonCuller struct{}

func (HorizonCuller) IsCullable(c *chunk.Chunk, data chunk.RenderData) bool {
	owner := c.Owner()
	if owner == nil {
		return false
	}
	ellipsoid := owner.Ellipsoid()
	cameraPos := data.Camera.Position

	maxHeight := float64(c.BoundingHeights().Max)
	closest := c.SurfacePatch().ClosestPoint(ellipsoid.CartesianToGeodetic2(cameraPos))
	objectPos := ellipsoid.CartesianPosition(geo.Geodetic3{Geodetic2: closest, Height: maxHeight})

	return isHidden(cameraPos, objectPos, ellipsoid.MinimumRadius())
}

// isHidden reports whether a point is further from the camera than the
// horizon distance of both the camera and the point itself.
func isHidden(cameraPos, objectPos r3.Vec, radius float64) bool {
	r2 := radius * radius
	camDist2 := r3.Norm2(cameraPos)
	if camDist2 <= r2 {
		return false
	}
	distanceToHorizon := math.Sqrt(camDist2 - r2)
	objectToHorizon := math.Sqrt(max(r3.Norm2(objectPos)-r2, 0))
	distanceToObject := r3.Norm(r3.Sub(objectPos, cameraPos))
	return distanceToObject > distanceToHorizon+objectToHorizon
}
