package geometry

import "math"

// Side is one of the four edges of a shape's bounding rectangle.
// The zero value means "unknown" and carries no outward normal.
type Side string

const (
	SideNone   Side = ""
	SideTop    Side = "top"
	SideRight  Side = "right"
	SideBottom Side = "bottom"
	SideLeft   Side = "left"
)

// DefaultSideTolerance is the display tolerance used by SideFromAnchor.
const DefaultSideTolerance = 0.15

// Valid reports whether s names one of the four edges.
func (s Side) Valid() bool {
	switch s {
	case SideTop, SideRight, SideBottom, SideLeft:
		return true
	}
	return false
}

// Horizontal reports whether the side's normal runs along the x axis.
func (s Side) Horizontal() bool { return s == SideLeft || s == SideRight }

// Vertical reports whether the side's normal runs along the y axis.
func (s Side) Vertical() bool { return s == SideTop || s == SideBottom }

// Anchor is a position relative to a shape's own size, each axis in [0,1].
type Anchor struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Clamp returns the anchor with both coordinates forced into [0,1].
func (a Anchor) Clamp() Anchor { return Anchor{X: Clamp01(a.X), Y: Clamp01(a.Y)} }

// Midpoint anchors of the four sides, used for connector dots.
var sideMidpoints = map[Side]Anchor{
	SideTop:    {X: 0.5, Y: 0},
	SideRight:  {X: 1, Y: 0.5},
	SideBottom: {X: 0.5, Y: 1},
	SideLeft:   {X: 0, Y: 0.5},
}

// SideMidpoint returns the anchor at the middle of side s.
func SideMidpoint(s Side) (Anchor, bool) {
	a, ok := sideMidpoints[s]
	return a, ok
}

// Sides lists the four sides in connector-dot order.
func Sides() []Side { return []Side{SideTop, SideRight, SideBottom, SideLeft} }

// AnchorToAbsolute converts a relative anchor on r to a world point.
func AnchorToAbsolute(r Rect, a Anchor) Point {
	return Point{X: r.X + r.Width*a.X, Y: r.Y + r.Height*a.Y}
}

// AbsoluteToAnchor converts a world point to an anchor relative to r,
// clamped into [0,1]. Zero-sized axes are treated as 1 unit wide.
func AbsoluteToAnchor(r Rect, p Point) Anchor {
	w, h := r.Width, r.Height
	if w == 0 {
		w = 1
	}
	if h == 0 {
		h = 1
	}
	return Anchor{X: Clamp01((p.X - r.X) / w), Y: Clamp01((p.Y - r.Y) / h)}
}

// SideFromAnchor returns the edge nearest to a.
func SideFromAnchor(a Anchor) Side {
	s, _ := ClassifyAnchor(a, DefaultSideTolerance)
	return s
}

// ClassifyAnchor returns the edge nearest to a and whether that edge lies
// within tolerance. The edge is returned even when it is farther away than
// tolerance. Exact ties resolve top, bottom, left, right.
func ClassifyAnchor(a Anchor, tolerance float64) (Side, bool) {
	dists := [4]float64{a.Y, 1 - a.Y, a.X, 1 - a.X}
	order := [4]Side{SideTop, SideBottom, SideLeft, SideRight}

	best := 0
	for i := 1; i < len(dists); i++ {
		if dists[i] < dists[best] {
			best = i
		}
	}
	return order[best], dists[best] <= tolerance
}

// NormalForSide returns the outward unit normal of s. The second result is
// false for SideNone, in which case no outward push should be applied.
func NormalForSide(s Side) (Point, bool) {
	switch s {
	case SideTop:
		return Point{X: 0, Y: -1}, true
	case SideBottom:
		return Point{X: 0, Y: 1}, true
	case SideLeft:
		return Point{X: -1, Y: 0}, true
	case SideRight:
		return Point{X: 1, Y: 0}, true
	}
	return Point{}, false
}

// NearestBoundaryPoint returns the point on r's border closest to p and the
// side it lies on. A point in the interior projects onto the nearest edge,
// never onto the centroid.
func NearestBoundaryPoint(r Rect, p Point) (Point, Side) {
	if !r.ContainsStrict(p) {
		q := Point{X: Clamp(p.X, r.X, r.Right()), Y: Clamp(p.Y, r.Y, r.Bottom())}
		return q, SideFromAnchor(AbsoluteToAnchor(r, q))
	}

	dists := [4]float64{p.Y - r.Y, r.Bottom() - p.Y, p.X - r.X, r.Right() - p.X}
	order := [4]Side{SideTop, SideBottom, SideLeft, SideRight}
	best := 0
	for i := 1; i < len(dists); i++ {
		if dists[i] < dists[best] {
			best = i
		}
	}

	switch order[best] {
	case SideTop:
		return Point{X: p.X, Y: r.Y}, SideTop
	case SideBottom:
		return Point{X: p.X, Y: r.Bottom()}, SideBottom
	case SideLeft:
		return Point{X: r.X, Y: p.Y}, SideLeft
	default:
		return Point{X: r.Right(), Y: p.Y}, SideRight
	}
}

// InwardAngle is the arrowhead angle, in degrees, of a line entering a shape
// through side s. Angles follow screen coordinates (y grows downward).
func InwardAngle(s Side) (float64, bool) {
	n, ok := NormalForSide(s)
	if !ok {
		return 0, false
	}
	return AngleOf(n.Scale(-1)), true
}

// AngleOf returns the direction of v in degrees.
func AngleOf(v Point) float64 {
	// atan2 distinguishes -0 from +0
	if v.X == 0 {
		v.X = 0
	}
	if v.Y == 0 {
		v.Y = 0
	}
	return math.Atan2(v.Y, v.X) * 180 / math.Pi
}
