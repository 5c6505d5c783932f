package interaction

import (
	"context"
	"maps"

	"coaching-backend/internal/geometry"
	"coaching-backend/internal/render"
	"coaching-backend/internal/routing"
	"coaching-backend/internal/snapping"
)

// View 공유 씬 위에 그리는 세션별 오버레이
type View struct {
	Gesture            GestureKind              `json:"gesture"`
	Selection          []string                 `json:"selection"`
	SelectedConnection string                   `json:"selectedConnection,omitempty"`
	Marquee            *geometry.Rect           `json:"marquee,omitempty"`
	Working            map[string]geometry.Rect `json:"working,omitempty"`
	Preview            *routing.Result          `json:"preview,omitempty"`
	Snap               *snapping.Target         `json:"snap,omitempty"`
	PendingDelete      []string                 `json:"pendingDelete,omitempty"`
	Placement          *Placement               `json:"placement,omitempty"`
	Grid               bool                     `json:"grid"`
	PanTool            bool                     `json:"panTool"`
	Viewport           Viewport                 `json:"viewport"`
	CanUndo            bool                     `json:"canUndo"`
	CanRedo            bool                     `json:"canRedo"`
}

// View 오버레이 스냅샷 (사라진 도형은 선택에서 먼저 제거)
func (c *Controller) View(ctx context.Context) (View, error) {
	shapes, err := c.board.Shapes.List(ctx)
	if err != nil {
		return View{}, err
	}
	c.pruneSelection(shapes)

	v := View{
		Gesture:            c.Gesture(),
		Selection:          c.Selection(),
		SelectedConnection: c.selectedConnection,
		Working:            maps.Clone(c.overrides()),
		PendingDelete:      c.PendingDelete(),
		Grid:               c.grid,
		PanTool:            c.panTool,
		Viewport:           c.viewport,
		CanUndo:            c.history.CanUndo(),
		CanRedo:            c.history.CanRedo(),
	}
	if c.placement != nil {
		p := *c.placement
		v.Placement = &p
	}

	switch g := c.gesture.(type) {
	case *marqueeGesture:
		r := g.rect()
		v.Marquee = &r
	case *connectGesture:
		for _, s := range shapes {
			if s.ID != g.fromID {
				continue
			}
			from := routing.Endpoint{
				Point: geometry.AnchorToAbsolute(s.Bounds(), g.fromAnchor),
				Side:  g.fromSide,
			}
			var res routing.Result
			if g.snap != nil {
				res = routing.Route(from, routing.Endpoint{Point: g.snap.Point, Side: g.snap.Side}, c.cfg.Route)
				snap := *g.snap
				v.Snap = &snap
			} else {
				res = routing.RoutePreview(from, g.cursor, c.cfg.Route)
			}
			v.Preview = &res
		}
	}
	return v, nil
}

// Scene 진행 중인 드래그/리사이즈를 반영한 이 세션 시점의 씬
func (c *Controller) Scene(ctx context.Context) (render.Scene, error) {
	shapes, err := c.board.Shapes.List(ctx)
	if err != nil {
		return render.Scene{}, err
	}
	conns, err := c.board.Connections.List(ctx)
	if err != nil {
		return render.Scene{}, err
	}
	return render.BuildScene(shapes, conns, c.cfg.Route, c.overrides()), nil
}
