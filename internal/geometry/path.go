package geometry

import "math"

// Collinear reports whether a, b and c lie on one line.
func Collinear(a, b, c Point) bool {
	cross := (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
	return math.Abs(cross) <= Epsilon
}

// Dedupe drops consecutive duplicate points.
func Dedupe(pts []Point) []Point {
	if len(pts) == 0 {
		return nil
	}
	out := make([]Point, 0, len(pts))
	out = append(out, pts[0])
	for _, p := range pts[1:] {
		if !p.Eq(out[len(out)-1]) {
			out = append(out, p)
		}
	}
	return out
}

// Simplify removes consecutive duplicates and then every interior point
// that is collinear with its neighbours. The first and last points are
// always kept, and no three consecutive points of the result are collinear.
func Simplify(pts []Point) []Point {
	pts = Dedupe(pts)
	if len(pts) < 3 {
		return pts
	}

	out := make([]Point, 0, len(pts))
	for _, p := range pts {
		for len(out) >= 2 && Collinear(out[len(out)-2], out[len(out)-1], p) {
			out = out[:len(out)-1]
		}
		out = append(out, p)
	}
	return out
}

// PathLength is the summed Manhattan length of consecutive segments.
func PathLength(pts []Point) float64 {
	total := 0.0
	for i := 0; i < len(pts)-1; i++ {
		total += pts[i].Manhattan(pts[i+1])
	}
	return total
}

// Orthogonal reports whether every segment of pts is axis-aligned.
func Orthogonal(pts []Point) bool {
	for i := 0; i < len(pts)-1; i++ {
		dx := math.Abs(pts[i+1].X - pts[i].X)
		dy := math.Abs(pts[i+1].Y - pts[i].Y)
		if dx > Epsilon && dy > Epsilon {
			return false
		}
	}
	return true
}

// Bounds returns the bounding rectangle of pts.
func Bounds(pts []Point) Rect {
	if len(pts) == 0 {
		return Rect{}
	}
	minX, minY := pts[0].X, pts[0].Y
	maxX, maxY := minX, minY
	for _, p := range pts[1:] {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}
