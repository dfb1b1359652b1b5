package tile

// Side names an edge of a PixelRegion.
type Side int

const (
	Left Side = iota
	Top
	Right
	Bottom
)

// PixelCoordinate is an integer position or extent in pixel space.
type PixelCoordinate struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (c PixelCoordinate) add(o PixelCoordinate) PixelCoordinate {
	return PixelCoordinate{X: c.X + o.X, Y: c.Y + o.Y}
}

func (c PixelCoordinate) sub(o PixelCoordinate) PixelCoordinate {
	return PixelCoordinate{X: c.X - o.X, Y: c.Y - o.Y}
}

// PixelRegion is an axis aligned rectangle in pixel space. Operations that
// would leave NumPixels negative are caller errors; check with LineIntersect
// or IsInside first.
type PixelRegion struct {
	Start     PixelCoordinate `json:"start"`
	NumPixels PixelCoordinate `json:"num_pixels"`
}

// NewPixelRegion creates a region from its start and size.
func NewPixelRegion(x, y, width, height int) PixelRegion {
	return PixelRegion{
		Start:     PixelCoordinate{X: x, Y: y},
		NumPixels: PixelCoordinate{X: width, Y: height},
	}
}

// SetSide moves one edge to pos, keeping the opposite edge in place.
func (r *PixelRegion) SetSide(side Side, pos int) {
	switch side {
	case Left:
		r.SetLeft(pos)
	case Top:
		r.SetTop(pos)
	case Right:
		r.SetRight(pos)
	case Bottom:
		r.SetBottom(pos)
	}
}

func (r *PixelRegion) SetLeft(x int) {
	r.NumPixels.X += r.Start.X - x
	r.Start.X = x
}

func (r *PixelRegion) SetTop(y int) {
	r.NumPixels.Y += r.Start.Y - y
	r.Start.Y = y
}

func (r *PixelRegion) SetRight(x int) {
	r.NumPixels.X = x - r.Start.X
}

func (r *PixelRegion) SetBottom(y int) {
	r.NumPixels.Y = y - r.Start.Y
}

// Align translates the region so the given edge sits at pos.
func (r *PixelRegion) Align(side Side, pos int) {
	switch side {
	case Left:
		r.AlignLeft(pos)
	case Top:
		r.AlignTop(pos)
	case Right:
		r.AlignRight(pos)
	case Bottom:
		r.AlignBottom(pos)
	}
}

func (r *PixelRegion) AlignLeft(x int)   { r.Start.X = x }
func (r *PixelRegion) AlignTop(y int)    { r.Start.Y = y }
func (r *PixelRegion) AlignRight(x int)  { r.Start.X = x - r.NumPixels.X }
func (r *PixelRegion) AlignBottom(y int) { r.Start.Y = y - r.NumPixels.Y }

// Scale multiplies start and size by s, rounding to the nearest pixel.
func (r *PixelRegion) Scale(s float64) {
	r.ScaleXY(s, s)
}

// ScaleXY scales each axis separately, rounding to the nearest pixel.
func (r *PixelRegion) ScaleXY(sx, sy float64) {
	r.Start = PixelCoordinate{X: round(sx * float64(r.Start.X)), Y: round(sy * float64(r.Start.Y))}
	r.NumPixels = PixelCoordinate{X: round(sx * float64(r.NumPixels.X)), Y: round(sy * float64(r.NumPixels.Y))}
}

// DownscalePow2 divides the region by 2^exponent around pivot.
func (r *PixelRegion) DownscalePow2(exponent int, pivot PixelCoordinate) {
	rel := r.Start.sub(pivot)
	rel.X >>= exponent
	rel.Y >>= exponent
	r.NumPixels.X >>= exponent
	r.NumPixels.Y >>= exponent
	r.Start = rel.add(pivot)
}

// UpscalePow2 multiplies the region by 2^exponent around pivot. It inverts
// DownscalePow2 for the same pivot.
func (r *PixelRegion) UpscalePow2(exponent int, pivot PixelCoordinate) {
	rel := r.Start.sub(pivot)
	rel.X <<= exponent
	rel.Y <<= exponent
	r.NumPixels.X <<= exponent
	r.NumPixels.Y <<= exponent
	r.Start = rel.add(pivot)
}

// Move translates the region by amount towards side.
func (r *PixelRegion) Move(side Side, amount int) {
	switch side {
	case Left:
		r.Start.X -= amount
	case Top:
		r.Start.Y -= amount
	case Right:
		r.Start.X += amount
	case Bottom:
		r.Start.Y += amount
	}
}

// Pad grows the region by padding's start and size.
func (r *PixelRegion) Pad(padding PixelRegion) {
	r.Start = r.Start.add(padding.Start)
	r.NumPixels = r.NumPixels.add(padding.NumPixels)
}

// ClampTo intersects the region with bound. The regions must overlap.
func (r *PixelRegion) ClampTo(bound PixelRegion) {
	end := r.End()
	bend := bound.End()
	r.Start = PixelCoordinate{X: max(r.Start.X, bound.Start.X), Y: max(r.Start.Y, bound.Start.Y)}
	r.NumPixels = PixelCoordinate{X: min(end.X, bend.X), Y: min(end.Y, bend.Y)}.sub(r.Start)
}

// ForceNumPixelToDifferByNearestMultipleOf grows the smaller dimension so
// the width and height differ by a multiple of m.
func (r *PixelRegion) ForceNumPixelToDifferByNearestMultipleOf(m int) {
	if m < 1 {
		return
	}
	diff := r.NumPixels.X - r.NumPixels.Y
	switch {
	case diff > 0:
		r.NumPixels.Y += diff % m
	case diff < 0:
		r.NumPixels.X += -diff % m
	}
}

// RoundUpNumPixelToNearestMultipleOf grows both dimensions by their remainder modulo m.
func (r *PixelRegion) RoundUpNumPixelToNearestMultipleOf(m int) {
	if m < 1 {
		return
	}
	r.NumPixels.X += r.NumPixels.X % m
	r.NumPixels.Y += r.NumPixels.Y % m
}

// RoundDownToQuadratic shrinks the larger dimension to the smaller one.
func (r *PixelRegion) RoundDownToQuadratic() {
	if r.NumPixels.X < r.NumPixels.Y {
		r.NumPixels.Y = r.NumPixels.X
	} else if r.NumPixels.X > r.NumPixels.Y {
		r.NumPixels.X = r.NumPixels.Y
	}
}

// GlobalCut splits the region along the line pos. The receiver keeps the
// part on the side facing away from side and the cut off part is returned.
// A line that misses the region returns the zero region.
func (r *PixelRegion) GlobalCut(side Side, pos int) PixelRegion {
	if !r.LineIntersect(side, pos) {
		return PixelRegion{}
	}

	cutOff := *r
	switch side {
	case Left:
		r.SetLeft(pos)
		cutOff.SetRight(pos)
	case Top:
		r.SetTop(pos)
		cutOff.SetBottom(pos)
	case Right:
		r.SetRight(pos)
		cutOff.SetLeft(pos)
	case Bottom:
		r.SetBottom(pos)
		cutOff.SetTop(pos)
	}
	return cutOff
}

// LocalCut cuts offset pixels off the given edge and returns them.
func (r *PixelRegion) LocalCut(side Side, offset int) PixelRegion {
	if offset < 1 {
		return PixelRegion{}
	}
	return r.GlobalCut(side, r.Edge(side)-r.EdgeDirectionSign(side)*offset)
}

// Area returns the number of pixels in the region.
func (r PixelRegion) Area() int {
	return r.NumPixels.X * r.NumPixels.Y
}

// Edge returns the pixel coordinate of one edge.
func (r PixelRegion) Edge(side Side) int {
	switch side {
	case Left:
		return r.Start.X
	case Top:
		return r.Start.Y
	case Right:
		return r.Start.X + r.NumPixels.X
	default:
		return r.Start.Y + r.NumPixels.Y
	}
}

// EdgeDirectionSign is -1 for Left and Top, +1 for Right and Bottom.
func (r PixelRegion) EdgeDirectionSign(side Side) int {
	if side < Right {
		return -1
	}
	return 1
}

// End returns the exclusive far corner.
func (r PixelRegion) End() PixelCoordinate {
	return r.Start.add(r.NumPixels)
}

// LineIntersect reports whether the line at pos, parallel to side, touches the region.
func (r PixelRegion) LineIntersect(side Side, pos int) bool {
	switch side {
	case Left, Right:
		return r.Start.X <= pos && pos <= r.Start.X+r.NumPixels.X
	default:
		return r.Start.Y <= pos && pos <= r.Start.Y+r.NumPixels.Y
	}
}

// IsInside reports whether r lies entirely within o.
func (r PixelRegion) IsInside(o PixelRegion) bool {
	e := r.End()
	oe := o.End()
	return o.Start.X <= r.Start.X && e.X <= oe.X &&
		o.Start.Y <= r.Start.Y && e.Y <= oe.Y
}

// Equals reports whether both regions have the same start and size.
func (r PixelRegion) Equals(o PixelRegion) bool {
	return r == o
}

func round(v float64) int {
	if v < 0 {
		return -int(-v + 0.5)
	}
	return int(v + 0.5)
}
