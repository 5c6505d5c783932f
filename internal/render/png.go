package render

import (
	"fmt"
	"io"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"

	"coaching-backend/internal/model"
)

var (
	monoOnce sync.Once
	monoFont *truetype.Font
	monoErr  error
)

func loadMono() (*truetype.Font, error) {
	monoOnce.Do(func() {
		monoFont, monoErr = truetype.Parse(gomono.TTF)
	})
	return monoFont, monoErr
}

// WritePNG rasterizes the scene. Image shapes are drawn as placeholders;
// remote images are never fetched.
func WritePNG(w io.Writer, s Scene, opts Options) error {
	opts = opts.withDefaults()
	f := newFrame(s, opts)

	ttf, err := loadMono()
	if err != nil {
		return fmt.Errorf("failed to parse font: %w", err)
	}

	dc := gg.NewContext(f.width, f.height)
	dc.SetHexColor("#ffffff")
	dc.Clear()
	dc.SetFontFace(truetype.NewFace(ttf, &truetype.Options{
		Size:    fontSize * f.scale,
		DPI:     72,
		Hinting: font.HintingFull,
	}))

	if opts.Grid {
		pngGrid(dc, f, opts.GridSize*f.scale)
	}

	// Connections first so shapes sit on top.
	for _, c := range s.Connections {
		pngConnection(dc, f, c, opts)
	}
	for i := range s.Shapes {
		pngShape(dc, f, &s.Shapes[i])
	}

	return dc.EncodePNG(w)
}

func pngGrid(dc *gg.Context, f frame, step float64) {
	if step < 2 {
		return
	}
	dc.SetHexColor(gridColor)
	dc.SetLineWidth(1)
	for x := 0.0; x <= float64(f.width); x += step {
		dc.DrawLine(x, 0, x, float64(f.height))
	}
	for y := 0.0; y <= float64(f.height); y += step {
		dc.DrawLine(0, y, float64(f.width), y)
	}
	dc.Stroke()
}

func pngConnection(dc *gg.Context, f frame, c RoutedConnection, opts Options) {
	pts := f.points(c.Route.Points)
	if len(pts) < 2 {
		return
	}
	dc.SetHexColor(connectionColor)
	dc.SetLineWidth(1.5 * f.scale)
	dc.MoveTo(pts[0].X, pts[0].Y)
	for _, p := range pts[1:] {
		dc.LineTo(p.X, p.Y)
	}
	dc.Stroke()

	head := arrowHead(pts[len(pts)-1], c.Route.Angle, opts.ArrowSize*f.scale)
	dc.MoveTo(head[0].X, head[0].Y)
	dc.LineTo(head[1].X, head[1].Y)
	dc.LineTo(head[2].X, head[2].Y)
	dc.ClosePath()
	dc.Fill()
}

func pngShape(dc *gg.Context, f frame, s *model.Shape) {
	r := f.rect(s.Bounds())
	path := func() {
		if s.Type == model.ShapeEllipse {
			c := r.Center()
			dc.DrawEllipse(c.X, c.Y, r.Width/2, r.Height/2)
			return
		}
		dc.DrawRoundedRectangle(r.X, r.Y, r.Width, r.Height, 6*f.scale)
	}

	if fill := fillFor(*s); fill != "none" {
		path()
		dc.SetHexColor(fill)
		dc.Fill()
	}
	if stroke := strokeFor(*s); stroke != "none" {
		path()
		dc.SetHexColor(stroke)
		dc.SetLineWidth(f.scale)
		if s.Type == model.ShapeImage {
			dc.SetDash(4*f.scale, 3*f.scale)
		}
		dc.Stroke()
		dc.SetDash()
	}

	label := s.Label()
	if label == "" && s.Type == model.ShapeImage {
		label = "image"
	}
	if label == "" {
		return
	}
	dc.SetHexColor(textColor)
	c := r.Center()
	pad := 8 * f.scale
	dc.DrawStringWrapped(label, c.X, c.Y, 0.5, 0.5, max(r.Width-2*pad, 1), 1.3, gg.AlignCenter)
}
