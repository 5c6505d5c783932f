// Package routing computes orthogonal connector paths between two shape
// anchors. Routes are recomputed from live shape geometry every time they
// are drawn and are never stored.
package routing

import (
	"math"

	"coaching-backend/internal/geometry"
)

// Options holds the three distances that shape a route.
type Options struct {
	// Out pushes each visible endpoint off the shape border.
	Out float64 `json:"out" yaml:"out"`
	// Stub is the straight run before the first and after the last bend.
	Stub float64 `json:"stub" yaml:"stub"`
	// Hook is the size of the jog inserted when the final approach would
	// double back on itself.
	Hook float64 `json:"hook" yaml:"hook"`
}

// DefaultOptions returns the distances the canvas uses unless configured.
func DefaultOptions() Options {
	return Options{Out: 6, Stub: 20, Hook: 16}
}

// Endpoint is an absolute world point plus the side of the shape it sits on.
// Side may be SideNone when unknown.
type Endpoint struct {
	Point geometry.Point `json:"point"`
	Side  geometry.Side  `json:"side,omitempty"`
}

// Result is a routed polyline and the arrowhead angle in degrees.
type Result struct {
	Points []geometry.Point `json:"points"`
	Angle  float64          `json:"angle"`
}

// Route produces the committed-connection path from one endpoint to another.
func Route(from, to Endpoint, opt Options) Result {
	pts := basePath(from, to, opt)
	pts = insertEndHook(pts, opt.Hook)
	pts = geometry.Simplify(pts)
	return Result{Points: pts, Angle: arrowAngle(pts, to.Side)}
}

// RoutePreview produces the live path drawn while a connection is dragged
// and no target is snapped yet. The cursor end carries no side, so no hook
// is ever added.
func RoutePreview(from Endpoint, cursor geometry.Point, opt Options) Result {
	pts := geometry.Simplify(basePath(from, Endpoint{Point: cursor}, opt))
	return Result{Points: pts, Angle: arrowAngle(pts, geometry.SideNone)}
}

// basePath returns [S, S1, corner, E1, E].
func basePath(from, to Endpoint, opt Options) []geometry.Point {
	s := push(from.Point, from.Side, opt.Out)
	e := push(to.Point, to.Side, opt.Out)
	s1 := push(s, from.Side, opt.Stub)
	e1 := push(e, to.Side, opt.Stub)

	corner := pickCorner(s, s1, e1, e, from.Side, to.Side)
	return []geometry.Point{s, s1, corner, e1, e}
}

func push(p geometry.Point, side geometry.Side, d float64) geometry.Point {
	n, ok := geometry.NormalForSide(side)
	if !ok {
		return p
	}
	return p.Add(n.Scale(d))
}

// pickCorner chooses between the two single-bend corners (S1.x, E1.y) and
// (E1.x, S1.y).
func pickCorner(s, s1, e1, e geometry.Point, fromSide, toSide geometry.Side) geometry.Point {
	a := geometry.Point{X: s1.X, Y: e1.Y}
	b := geometry.Point{X: e1.X, Y: s1.Y}

	if toSide.Valid() {
		// Deviation is measured on the axis parallel to the target edge.
		var devA, devB float64
		if toSide.Horizontal() {
			devA, devB = math.Abs(a.Y-e1.Y), math.Abs(b.Y-e1.Y)
		} else {
			devA, devB = math.Abs(a.X-e1.X), math.Abs(b.X-e1.X)
		}
		if devB < devA {
			return b
		}
		return a
	}

	lenA := geometry.PathLength([]geometry.Point{s, s1, a, e1, e})
	lenB := geometry.PathLength([]geometry.Point{s, s1, b, e1, e})
	switch {
	case lenA < lenB:
		return a
	case lenB < lenA:
		return b
	}
	// Equal lengths: take the corner whose first leg turns off the exit stub.
	if fromSide.Vertical() {
		return b
	}
	return a
}

// insertEndHook splices a perpendicular jog between the corner and E1 when
// corner->E1 and E1->E run along the same axis in opposite directions.
func insertEndHook(pts []geometry.Point, hook float64) []geometry.Point {
	if len(pts) != 5 || hook == 0 {
		return pts
	}
	s1, corner, e1, e := pts[1], pts[2], pts[3], pts[4]

	d1 := e1.Sub(corner)
	d2 := e.Sub(e1)
	if !opposed(d1, d2) {
		return pts
	}

	var perp geometry.Point
	if math.Abs(d2.Y) <= geometry.Epsilon {
		perp = geometry.Point{Y: sign(s1.Y - corner.Y)}
	} else {
		perp = geometry.Point{X: sign(s1.X - corner.X)}
	}
	off := perp.Scale(hook)

	out := make([]geometry.Point, 0, 7)
	out = append(out, pts[0], s1, corner, corner.Add(off), e1.Add(off), e1, e)
	return out
}

// opposed reports whether two non-zero vectors are collinear and point in
// opposite directions.
func opposed(a, b geometry.Point) bool {
	if a.Eq(geometry.Point{}) || b.Eq(geometry.Point{}) {
		return false
	}
	cross := a.X*b.Y - a.Y*b.X
	dot := a.X*b.X + a.Y*b.Y
	return math.Abs(cross) <= geometry.Epsilon && dot < 0
}

func sign(v float64) float64 {
	if v < -geometry.Epsilon {
		return -1
	}
	return 1
}

// arrowAngle faces the inward normal of the target side, or follows the last
// segment when the side is unknown.
func arrowAngle(pts []geometry.Point, toSide geometry.Side) float64 {
	if a, ok := geometry.InwardAngle(toSide); ok {
		return a
	}
	if len(pts) < 2 {
		return 0
	}
	return geometry.AngleOf(pts[len(pts)-1].Sub(pts[len(pts)-2]))
}
