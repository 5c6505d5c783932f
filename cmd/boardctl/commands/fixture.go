package commands

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"coaching-backend/internal/geometry"
	"coaching-backend/internal/model"
	"coaching-backend/internal/render"
	"coaching-backend/internal/routing"
)

// Fixture is a board described in YAML.
type Fixture struct {
	Title           string              `yaml:"title"`
	Route           *routing.Options    `yaml:"route,omitempty"`
	ShapeSpecs      []FixtureShape      `yaml:"shapes"`
	ConnectionSpecs []FixtureConnection `yaml:"connections"`
}

// FixtureShape is one shape. Width and height default to the type's size.
type FixtureShape struct {
	ID      string  `yaml:"id"`
	Type    string  `yaml:"type"`
	Subtype string  `yaml:"subtype,omitempty"`
	X       float64 `yaml:"x"`
	Y       float64 `yaml:"y"`
	Width   float64 `yaml:"width,omitempty"`
	Height  float64 `yaml:"height,omitempty"`
	Label   string  `yaml:"label,omitempty"`
	Example bool    `yaml:"example,omitempty"`
}

// FixtureConnection links two fixture shapes. Anchors default to the
// facing side midpoints when only sides are given.
type FixtureConnection struct {
	ID         string           `yaml:"id,omitempty"`
	From       string           `yaml:"from"`
	To         string           `yaml:"to"`
	FromSide   geometry.Side    `yaml:"from_side,omitempty"`
	ToSide     geometry.Side    `yaml:"to_side,omitempty"`
	FromAnchor *geometry.Anchor `yaml:"from_anchor,omitempty"`
	ToAnchor   *geometry.Anchor `yaml:"to_anchor,omitempty"`
}

// LoadFixture reads and validates a fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseFixture(data)
}

// ParseFixture decodes a fixture and checks shape types and references.
func ParseFixture(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}

	ids := make(map[string]bool, len(f.ShapeSpecs))
	for i, s := range f.ShapeSpecs {
		if s.ID == "" {
			return nil, fmt.Errorf("shape %d: id is required", i)
		}
		if ids[s.ID] {
			return nil, fmt.Errorf("shape %q: duplicate id", s.ID)
		}
		if !model.ShapeType(s.Type).Valid() {
			return nil, fmt.Errorf("shape %q: unknown type %q", s.ID, s.Type)
		}
		ids[s.ID] = true
	}
	for i, c := range f.ConnectionSpecs {
		if !ids[c.From] || !ids[c.To] {
			return nil, fmt.Errorf("connection %d: unknown shape %q -> %q", i, c.From, c.To)
		}
		if c.From == c.To {
			return nil, fmt.Errorf("connection %d: endpoints must differ", i)
		}
	}
	return &f, nil
}

// Shapes converts the fixture shapes into board shapes in stacking order.
func (f *Fixture) Shapes() ([]model.Shape, error) {
	out := make([]model.Shape, 0, len(f.ShapeSpecs))
	for i, fs := range f.ShapeSpecs {
		typ := model.ShapeType(fs.Type)
		w, h := model.DefaultSize(typ)
		if fs.Width > 0 {
			w = fs.Width
		}
		if fs.Height > 0 {
			h = fs.Height
		}
		s := model.Shape{
			ID:        fs.ID,
			Type:      typ,
			Subtype:   model.CardSubtype(fs.Subtype),
			X:         fs.X,
			Y:         fs.Y,
			Width:     w,
			Height:    h,
			ZIndex:    i,
			IsExample: fs.Example,
		}
		if fs.Label != "" {
			if err := s.SetKind(labelKind(typ, s.Subtype, fs.Label)); err != nil {
				return nil, fmt.Errorf("shape %q: %w", fs.ID, err)
			}
		}
		out = append(out, s)
	}
	return out, nil
}

func labelKind(t model.ShapeType, subtype model.CardSubtype, label string) model.ShapeKind {
	switch t {
	case model.ShapeEllipse:
		return &model.EllipseKind{Label: label}
	case model.ShapeText:
		return &model.TextKind{Text: label}
	case model.ShapeImage:
		return &model.ImageKind{Alt: label}
	case model.ShapeTable:
		return &model.TableKind{Rows: [][]string{{label}}}
	case model.ShapeCard:
		return &model.CardKind{Subtype: subtype, Title: label}
	}
	return &model.RectKind{Label: label}
}

// Connections converts the fixture connections.
func (f *Fixture) Connections() []model.Connection {
	out := make([]model.Connection, 0, len(f.ConnectionSpecs))
	for i, fc := range f.ConnectionSpecs {
		c := model.Connection{
			ID:          fc.ID,
			FromShapeID: fc.From,
			ToShapeID:   fc.To,
			FromSide:    fc.FromSide,
			ToSide:      fc.ToSide,
			Style:       model.ConnectionOrthogonal,
		}
		if c.ID == "" {
			c.ID = fmt.Sprintf("c%d", i+1)
		}
		c.FromAnchor = resolveAnchor(fc.FromAnchor, fc.FromSide, geometry.SideRight)
		c.ToAnchor = resolveAnchor(fc.ToAnchor, fc.ToSide, geometry.SideLeft)
		out = append(out, c)
	}
	return out
}

func resolveAnchor(a *geometry.Anchor, side, fallback geometry.Side) geometry.Anchor {
	if a != nil {
		return a.Clamp()
	}
	if !side.Valid() {
		side = fallback
	}
	mid, _ := geometry.SideMidpoint(side)
	return mid
}

// RouteOptions returns the fixture's route distances or the defaults.
func (f *Fixture) RouteOptions() routing.Options {
	if f.Route != nil {
		return *f.Route
	}
	return routing.DefaultOptions()
}

// Scene builds the render scene of the fixture.
func (f *Fixture) Scene() (render.Scene, error) {
	shapes, err := f.Shapes()
	if err != nil {
		return render.Scene{}, err
	}
	return render.BuildScene(shapes, f.Connections(), f.RouteOptions(), nil), nil
}

// parseRect reads "x,y,w,h".
func parseRect(s string) (geometry.Rect, error) {
	var r geometry.Rect
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return r, fmt.Errorf("rect %q: want x,y,w,h", s)
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		if _, err := fmt.Sscanf(strings.TrimSpace(p), "%g", &vals[i]); err != nil {
			return r, fmt.Errorf("rect %q: %w", s, err)
		}
	}
	return geometry.Rect{X: vals[0], Y: vals[1], Width: vals[2], Height: vals[3]}, nil
}
