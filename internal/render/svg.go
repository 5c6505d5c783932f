package render

import (
	"fmt"
	"io"
	"math"

	svg "github.com/ajstarks/svgo"

	"coaching-backend/internal/geometry"
	"coaching-backend/internal/model"
)

// WriteSVG draws the scene as an SVG document. Connections are drawn below
// shapes.
func WriteSVG(w io.Writer, s Scene, opts Options) error {
	opts = opts.withDefaults()
	f := newFrame(s, opts)

	canvas := svg.New(w)
	canvas.Start(f.width, f.height)
	canvas.Rect(0, 0, f.width, f.height, "fill:#ffffff")

	if opts.Grid {
		step := int(math.Max(1, math.Round(opts.GridSize*f.scale)))
		canvas.Grid(0, 0, f.width, f.height, step, "stroke:"+gridColor+";stroke-width:1")
	}

	canvas.Gid("connections")
	for _, c := range s.Connections {
		svgConnection(canvas, f, c, opts)
	}
	canvas.Gend()

	canvas.Gid("shapes")
	for i := range s.Shapes {
		svgShape(canvas, f, &s.Shapes[i])
	}
	canvas.Gend()

	canvas.End()
	return nil
}

func svgConnection(canvas *svg.SVG, f frame, c RoutedConnection, opts Options) {
	pts := c.Route.Points
	if len(pts) < 2 {
		return
	}
	xs, ys := ints(f.points(pts))
	canvas.Polyline(xs, ys, fmt.Sprintf("fill:none;stroke:%s;stroke-width:%.1f", connectionColor, 1.5*f.scale))

	head := arrowHead(f.point(pts[len(pts)-1]), c.Route.Angle, opts.ArrowSize*f.scale)
	hx, hy := ints(head[:])
	canvas.Polygon(hx, hy, "fill:"+connectionColor)
}

func svgShape(canvas *svg.SVG, f frame, s *model.Shape) {
	r := f.rect(s.Bounds())
	x, y := round(r.X), round(r.Y)
	w, h := round(r.Width), round(r.Height)
	style := fmt.Sprintf("fill:%s;stroke:%s;stroke-width:%.1f", fillFor(*s), strokeFor(*s), f.scale)

	switch s.Type {
	case model.ShapeEllipse:
		c := r.Center()
		canvas.Ellipse(round(c.X), round(c.Y), w/2, h/2, style)
	case model.ShapeImage:
		if href := imageHref(s); href != "" {
			canvas.Image(x, y, w, h, href)
		}
		canvas.Rect(x, y, w, h, style+";fill-opacity:0")
	default:
		canvas.Roundrect(x, y, w, h, 6, 6, style)
	}

	if label := s.Label(); label != "" {
		canvas.Text(x+w/2, y+h/2, label,
			fmt.Sprintf("text-anchor:middle;dominant-baseline:middle;font-family:monospace;font-size:%.0fpx;fill:%s", fontSize*f.scale, textColor))
	}
}

// imageHref prefers the uploaded URL and falls back to the local preview.
func imageHref(s *model.Shape) string {
	if s.URL != "" {
		return s.URL
	}
	return s.PreviewURL
}

func ints(pts []geometry.Point) ([]int, []int) {
	xs := make([]int, len(pts))
	ys := make([]int, len(pts))
	for i, p := range pts {
		xs[i], ys[i] = round(p.X), round(p.Y)
	}
	return xs, ys
}

func round(v float64) int {
	return int(math.Round(v))
}
