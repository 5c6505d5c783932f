package interaction

import (
	"context"
	"errors"
	"log"

	"coaching-backend/internal/document"
	"coaching-backend/internal/geometry"
	"coaching-backend/internal/model"
	"coaching-backend/internal/render"
	"coaching-backend/internal/snapping"
	"coaching-backend/internal/store"
)

// PointerDown 제스처 시작
// 히트 테스트 순서: 단일 선택의 리사이즈 핸들 > 연결점 > 도형(위쪽부터) > 배치 대기 > 연결선 > 배경
func (c *Controller) PointerDown(ctx context.Context, ev PointerEvent) error {
	if c.gesture != nil {
		return nil
	}
	world := c.trackCursor(ev.Screen)

	if ev.Button == ButtonMiddle || (ev.Button == ButtonLeft && c.panTool) {
		c.gesture = &panGesture{last: ev.Screen, origin: c.viewport.Pan}
		return nil
	}
	if ev.Button != ButtonLeft {
		return nil
	}

	shapes, err := c.board.Shapes.List(ctx)
	if err != nil {
		return err
	}
	c.pruneSelection(shapes)

	if g := c.hitHandle(shapes, world); g != nil {
		c.gesture = g
		return nil
	}
	if g := c.hitConnector(shapes, world); g != nil {
		c.gesture = g
		return nil
	}
	if s, ok := topmostAt(shapes, world); ok {
		c.selectedConnection = ""
		if ev.Mods.Shift {
			if c.isSelected(s.ID) {
				c.deselect(s.ID)
				return nil
			}
			c.selection = append(c.selection, s.ID)
		} else if !c.isSelected(s.ID) {
			c.selection = []string{s.ID}
		}
		c.beginDrag(shapes, world)
		return nil
	}

	if c.placement != nil && c.cursorInside {
		return c.place(ctx, world)
	}

	id, err := c.hitConnection(ctx, shapes, world)
	if err != nil {
		return err
	}
	if id != "" {
		c.selection = nil
		c.selectedConnection = id
		return nil
	}

	c.selectedConnection = ""
	base := []string(nil)
	if ev.Mods.Shift {
		base = c.Selection()
	}
	c.selection = base
	c.gesture = &marqueeGesture{origin: world, current: world, base: base}
	return nil
}

// PointerMove 제스처 진행 (로컬 상태만 변경)
func (c *Controller) PointerMove(ctx context.Context, ev PointerEvent) error {
	world := c.trackCursor(ev.Screen)

	switch g := c.gesture.(type) {
	case *panGesture:
		c.viewport.Pan = c.viewport.Pan.Add(ev.Screen.Sub(g.last))
		g.last = ev.Screen
	case *connectGesture:
		g.cursor = world
		snap, err := c.snapAt(ctx, world, g.fromID)
		if err != nil {
			return err
		}
		g.snap = snap
	default:
		return c.track(ctx, g, world)
	}
	return nil
}

// 선택 영역/드래그/리사이즈 제스처를 world 위치로 갱신
func (c *Controller) track(ctx context.Context, g gesture, world geometry.Point) error {
	switch g := g.(type) {
	case *marqueeGesture:
		g.current = world
		shapes, err := c.board.Shapes.List(ctx)
		if err != nil {
			return err
		}
		c.selection = marqueeSelection(shapes, g.rect(), g.base)
	case *dragGesture:
		d := world.Sub(g.start)
		for id, r := range g.originals {
			g.working[id] = r.Translate(d)
		}
		g.moved = !d.Eq(geometry.Point{})
	case *resizeGesture:
		g.working = ResizeRect(g.original, g.handle, world.Sub(g.start), c.cfg.MinWidth, c.cfg.MinHeight)
	}
	return nil
}

// PointerUp 제스처 완료 (문서 쓰기는 최대 한 번)
// 놓은 위치도 마지막 이동으로 반영. 캔버스 밖에서 놓으면 드래그/리사이즈 취소
func (c *Controller) PointerUp(ctx context.Context, ev PointerEvent) error {
	world := c.trackCursor(ev.Screen)
	g := c.gesture
	c.gesture = nil

	switch g := g.(type) {
	case *marqueeGesture:
		if !c.cursorInside {
			c.selection = g.base
			return nil
		}
		return c.track(ctx, g, world)
	case *dragGesture:
		if !c.cursorInside {
			return nil
		}
		if err := c.track(ctx, g, world); err != nil {
			return err
		}
		if !g.moved {
			return nil
		}
		return c.commitDrag(ctx, g)
	case *resizeGesture:
		if !c.cursorInside {
			return nil
		}
		if err := c.track(ctx, g, world); err != nil {
			return err
		}
		if g.working == g.original {
			return nil
		}
		working := g.working
		_, err := c.board.Shapes.Patch(ctx, g.id, func(s *model.Shape) { s.SetBounds(working) })
		return err
	case *connectGesture:
		snap, err := c.snapAt(ctx, world, g.fromID)
		if err != nil {
			return err
		}
		if snap == nil {
			return nil
		}
		return c.commitConnection(ctx, g, snap)
	}
	return nil
}

func (c *Controller) commitDrag(ctx context.Context, g *dragGesture) error {
	patches := make([]document.Patch[model.Shape], 0, len(g.ids))
	for _, id := range g.ids {
		r, ok := g.working[id]
		if !ok {
			continue
		}
		patches = append(patches, document.Patch[model.Shape]{
			ID: id,
			Apply: func(s *model.Shape) {
				s.X, s.Y = r.X, r.Y
			},
		})
	}
	_, err := c.board.Shapes.BatchPatch(ctx, patches)
	return err
}

func (c *Controller) commitConnection(ctx context.Context, g *connectGesture, snap *snapping.Target) error {
	_, err := c.board.Connections.Create(ctx, model.Connection{
		FromShapeID: g.fromID,
		ToShapeID:   snap.ShapeID,
		FromAnchor:  g.fromAnchor,
		ToAnchor:    snap.Anchor,
		FromSide:    g.fromSide,
		ToSide:      snap.Side,
	})
	if errors.Is(err, store.ErrMissingShape) {
		// 제스처 도중 다른 사용자가 끝점 도형을 삭제한 경우
		log.Printf("[Interaction] board %d: connection dropped: %v", c.board.ID, err)
		return nil
	}
	return err
}

func (c *Controller) beginDrag(shapes []model.Shape, world geometry.Point) {
	g := &dragGesture{
		start:     world,
		originals: make(map[string]geometry.Rect, len(c.selection)),
		working:   make(map[string]geometry.Rect, len(c.selection)),
	}
	for _, s := range shapes {
		if c.isSelected(s.ID) {
			g.ids = append(g.ids, s.ID)
			g.originals[s.ID] = s.Bounds()
			g.working[s.ID] = s.Bounds()
		}
	}
	c.gesture = g
}

func (c *Controller) place(ctx context.Context, world geometry.Point) error {
	p := c.placement
	c.placement = nil
	s, err := c.board.Shapes.Add(ctx, p.Type, p.Subtype, world.X, world.Y, "")
	if err != nil {
		return err
	}
	c.selection = []string{s.ID}
	c.selectedConnection = ""
	return nil
}

func (c *Controller) hitHandle(shapes []model.Shape, world geometry.Point) gesture {
	if len(c.selection) != 1 {
		return nil
	}
	tol := c.worldTolerance(c.cfg.HandleRadius)
	for _, s := range shapes {
		if s.ID != c.selection[0] {
			continue
		}
		r := s.Bounds()
		for _, h := range handles {
			if HandlePoint(r, h).Dist(world) <= tol {
				return &resizeGesture{id: s.ID, handle: h, start: world, original: r, working: r}
			}
		}
	}
	return nil
}

// ConnectorPoint r의 side 연결점 월드 좌표
// 연결점은 변 중점에서 offset만큼 바깥에 위치
func ConnectorPoint(r geometry.Rect, side geometry.Side, offset float64) geometry.Point {
	a, _ := geometry.SideMidpoint(side)
	n, _ := geometry.NormalForSide(side)
	return geometry.AnchorToAbsolute(r, a).Add(n.Scale(offset))
}

func (c *Controller) hitConnector(shapes []model.Shape, world geometry.Point) gesture {
	tol := c.worldTolerance(c.cfg.HandleRadius)
	offset := c.worldTolerance(c.cfg.ConnectorOffset)
	for i := len(shapes) - 1; i >= 0; i-- {
		r := shapes[i].Bounds()
		for _, side := range geometry.Sides() {
			if ConnectorPoint(r, side, offset).Dist(world) > tol {
				continue
			}
			a, _ := geometry.SideMidpoint(side)
			return &connectGesture{
				fromID:     shapes[i].ID,
				fromSide:   side,
				fromAnchor: a,
				cursor:     world,
			}
		}
	}
	return nil
}

func (c *Controller) hitConnection(ctx context.Context, shapes []model.Shape, world geometry.Point) (string, error) {
	conns, err := c.board.Connections.List(ctx)
	if err != nil {
		return "", err
	}
	if len(conns) == 0 {
		return "", nil
	}
	scene := render.BuildScene(shapes, conns, c.cfg.Route, nil)
	tol := c.worldTolerance(c.cfg.HandleRadius)
	for i := len(scene.Connections) - 1; i >= 0; i-- {
		rc := scene.Connections[i]
		if geometry.DistanceToPolyline(world, rc.Route.Points) <= tol {
			return rc.ID, nil
		}
	}
	return "", nil
}

func (c *Controller) snapAt(ctx context.Context, world geometry.Point, originID string) (*snapping.Target, error) {
	shapes, err := c.board.Shapes.List(ctx)
	if err != nil {
		return nil, err
	}
	candidates := make([]snapping.Candidate, len(shapes))
	for i, s := range shapes {
		candidates[i] = snapping.Candidate{ID: s.ID, Bounds: s.Bounds()}
	}
	return c.snapper.Snap(world, candidates, originID, c.viewport.scale()), nil
}

func topmostAt(shapes []model.Shape, p geometry.Point) (model.Shape, bool) {
	for i := len(shapes) - 1; i >= 0; i-- {
		if shapes[i].Bounds().Contains(p) {
			return shapes[i], true
		}
	}
	return model.Shape{}, false
}

// base 뒤에 r과 겹치는 도형을 쌓임 순서대로 추가
func marqueeSelection(shapes []model.Shape, r geometry.Rect, base []string) []string {
	out := append([]string(nil), base...)
	seen := make(map[string]struct{}, len(base))
	for _, id := range base {
		seen[id] = struct{}{}
	}
	for _, s := range shapes {
		if _, ok := seen[s.ID]; ok {
			continue
		}
		if s.Bounds().Intersects(r) {
			out = append(out, s.ID)
		}
	}
	return out
}
