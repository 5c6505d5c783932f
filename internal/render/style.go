package render

import (
	"math"

	"coaching-backend/internal/geometry"
	"coaching-backend/internal/model"
)

// Options controls export output.
type Options struct {
	Padding   float64
	Scale     float64
	Grid      bool
	GridSize  float64
	ArrowSize float64
}

// DefaultOptions returns the export defaults.
func DefaultOptions() Options {
	return Options{Padding: 40, Scale: 1, GridSize: 24, ArrowSize: 10}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Padding < 0 {
		o.Padding = 0
	}
	if o.Scale <= 0 {
		o.Scale = d.Scale
	}
	if o.GridSize <= 0 {
		o.GridSize = d.GridSize
	}
	if o.ArrowSize <= 0 {
		o.ArrowSize = d.ArrowSize
	}
	return o
}

// frame maps world coordinates onto the output image.
type frame struct {
	origin geometry.Point
	scale  float64
	width  int
	height int
}

func newFrame(s Scene, o Options) frame {
	b := s.Bounds
	f := frame{
		origin: geometry.Point{X: b.X - o.Padding, Y: b.Y - o.Padding},
		scale:  o.Scale,
	}
	f.width = max(1, int(math.Ceil((b.Width+2*o.Padding)*o.Scale)))
	f.height = max(1, int(math.Ceil((b.Height+2*o.Padding)*o.Scale)))
	return f
}

func (f frame) point(p geometry.Point) geometry.Point {
	return p.Sub(f.origin).Scale(f.scale)
}

func (f frame) points(pts []geometry.Point) []geometry.Point {
	out := make([]geometry.Point, len(pts))
	for i, p := range pts {
		out[i] = f.point(p)
	}
	return out
}

func (f frame) rect(r geometry.Rect) geometry.Rect {
	p := f.point(geometry.Point{X: r.X, Y: r.Y})
	return geometry.Rect{X: p.X, Y: p.Y, Width: r.Width * f.scale, Height: r.Height * f.scale}
}

// arrowHead returns the three corners of the arrowhead at tip pointing
// along angle degrees.
func arrowHead(tip geometry.Point, angle, size float64) [3]geometry.Point {
	rad := angle * math.Pi / 180
	dir := geometry.Point{X: math.Cos(rad), Y: math.Sin(rad)}
	perp := geometry.Point{X: -dir.Y, Y: dir.X}
	base := tip.Sub(dir.Scale(size))
	return [3]geometry.Point{
		tip,
		base.Add(perp.Scale(size / 2)),
		base.Sub(perp.Scale(size / 2)),
	}
}

var cardFills = map[model.CardSubtype]string{
	model.CardJob:          "#dbeafe",
	model.CardPain:         "#fee2e2",
	model.CardGain:         "#dcfce7",
	model.CardProduct:      "#e0e7ff",
	model.CardPainReliever: "#ffedd5",
	model.CardGainCreator:  "#ccfbf1",
	model.CardSegment:      "#fef9c3",
	model.CardTask:         "#f3f4f6",
	model.CardNote:         "#fef3c7",
}

func fillFor(s model.Shape) string {
	switch s.Type {
	case model.ShapeCard:
		if c, ok := cardFills[s.Subtype]; ok {
			return c
		}
		return "#f9fafb"
	case model.ShapeText:
		return "none"
	case model.ShapeImage:
		return "#f3f4f6"
	default:
		return "#ffffff"
	}
}

func strokeFor(s model.Shape) string {
	if s.Type == model.ShapeText {
		return "none"
	}
	if s.IsExample {
		return "#9ca3af"
	}
	return "#374151"
}

const (
	connectionColor = "#4b5563"
	gridColor       = "#e5e7eb"
	textColor       = "#111827"
	fontSize        = 14.0
)
