// Package render is the presentation layer: it turns the current shape and
// connection collections into a drawable scene and writes it as SVG or PNG.
// Connection geometry is derived here on every call from live shape
// positions; nothing absolute is ever stored.
package render

import (
	"coaching-backend/internal/geometry"
	"coaching-backend/internal/model"
	"coaching-backend/internal/routing"
)

// RoutedConnection is a connection with its geometry resolved for drawing.
type RoutedConnection struct {
	model.Connection
	From  geometry.Point `json:"from"`
	To    geometry.Point `json:"to"`
	Route routing.Result `json:"route"`
}

// Scene is everything needed to draw a board.
type Scene struct {
	Shapes      []model.Shape      `json:"shapes"`
	Connections []RoutedConnection `json:"connections"`
	Bounds      geometry.Rect      `json:"bounds"`
}

// BuildScene resolves every connection against the shapes it references.
// overrides replaces shape bounds, which is how in-flight drags and resizes
// show up before they are committed. Connections whose endpoints are gone
// are skipped.
func BuildScene(shapes []model.Shape, conns []model.Connection, opt routing.Options, overrides map[string]geometry.Rect) Scene {
	live := make([]model.Shape, len(shapes))
	index := make(map[string]geometry.Rect, len(shapes))
	for i, s := range shapes {
		if r, ok := overrides[s.ID]; ok {
			s.SetBounds(r)
		}
		live[i] = s
		index[s.ID] = s.Bounds()
	}

	routed := make([]RoutedConnection, 0, len(conns))
	for _, c := range conns {
		fromRect, ok := index[c.FromShapeID]
		if !ok {
			continue
		}
		toRect, ok := index[c.ToShapeID]
		if !ok {
			continue
		}
		routed = append(routed, RouteConnection(c, fromRect, toRect, opt))
	}

	scene := Scene{Shapes: live, Connections: routed}
	scene.Bounds = scene.contentBounds()
	return scene
}

// RouteConnection computes the absolute endpoints and path of c.
func RouteConnection(c model.Connection, fromRect, toRect geometry.Rect, opt routing.Options) RoutedConnection {
	from := geometry.AnchorToAbsolute(fromRect, c.FromAnchor)
	to := geometry.AnchorToAbsolute(toRect, c.ToAnchor)
	res := routing.Route(
		routing.Endpoint{Point: from, Side: c.ResolvedFromSide()},
		routing.Endpoint{Point: to, Side: c.ResolvedToSide()},
		opt,
	)
	return RoutedConnection{Connection: c, From: from, To: to, Route: res}
}

// Connection returns the routed connection with id.
func (s Scene) Connection(id string) (RoutedConnection, bool) {
	for _, c := range s.Connections {
		if c.ID == id {
			return c, true
		}
	}
	return RoutedConnection{}, false
}

func (s Scene) contentBounds() geometry.Rect {
	var (
		b   geometry.Rect
		any bool
	)
	add := func(r geometry.Rect) {
		if !any {
			b, any = r, true
			return
		}
		b = b.Union(r)
	}
	for _, sh := range s.Shapes {
		add(sh.Bounds())
	}
	for _, c := range s.Connections {
		if len(c.Route.Points) > 0 {
			add(geometry.Bounds(c.Route.Points))
		}
	}
	return b
}
