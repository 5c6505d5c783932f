// Package interaction 세션별 캔버스 상태 머신.
// 포인터/키보드 이벤트를 도형, 연결선 변경으로 바꾼다. 제스처 상태는 여기에만 있고
// 문서에는 제스처가 끝날 때 한 번만 쓴다.
package interaction

import (
	"context"
	"fmt"
	"slices"
	"time"

	"coaching-backend/internal/clipboard"
	"coaching-backend/internal/config"
	"coaching-backend/internal/geometry"
	"coaching-backend/internal/model"
	"coaching-backend/internal/routing"
	"coaching-backend/internal/snapping"
	"coaching-backend/internal/store"
)

// Undoer 히스토리 서비스의 실행 취소 부분
type Undoer interface {
	Undo(ctx context.Context) error
	Redo(ctx context.Context) error
	CanUndo() bool
	CanRedo() bool
}

type noUndo struct{}

func (noUndo) Undo(context.Context) error { return nil }
func (noUndo) Redo(context.Context) error { return nil }
func (noUndo) CanUndo() bool              { return false }
func (noUndo) CanRedo() bool              { return false }

// Config 인터랙션 설정값
// screen 표시된 반경/오프셋은 픽셀 단위이며 줌 배율로 나눠 사용
type Config struct {
	SnapRadius      float64 // screen
	HandleRadius    float64 // screen
	ConnectorOffset float64 // screen, 테두리 바깥 연결점 거리
	DuplicateOffset float64 // world
	MinWidth        float64
	MinHeight       float64
	Route           routing.Options
}

// DefaultConfig 캔버스 기본 설정
func DefaultConfig() Config {
	return Config{
		SnapRadius:      snapping.DefaultRadius,
		HandleRadius:    8,
		ConnectorOffset: 16,
		DuplicateOffset: 24,
		MinWidth:        model.MinShapeWidth,
		MinHeight:       model.MinShapeHeight,
		Route:           routing.DefaultOptions(),
	}
}

// NewConfig 환경 변수 기반 캔버스 설정으로 Config 생성
func NewConfig(c config.CanvasConfig) Config {
	cfg := DefaultConfig()
	cfg.SnapRadius = c.SnapRadius
	cfg.HandleRadius = c.HandleRadius
	cfg.DuplicateOffset = c.DuplicateOffset
	cfg.MinWidth = c.MinWidth
	cfg.MinHeight = c.MinHeight
	cfg.Route = routing.Options{Out: c.RouteOut, Stub: c.RouteStub, Hook: c.RouteHook}
	return cfg
}

// Placement 다음 클릭에 도형을 생성하는 배치 도구
type Placement struct {
	Type    model.ShapeType   `json:"type"`
	Subtype model.CardSubtype `json:"subtype,omitempty"`
}

// Controller 캔버스 세션 하나의 인터랙션 상태
// 동시 사용 불가 (세션이 단일 고루틴에서 호출)
type Controller struct {
	board     *store.Board
	history   Undoer
	clipboard clipboard.Service
	snapper   *snapping.Engine
	cfg       Config
	now       func() time.Time

	viewport           Viewport
	gesture            gesture
	selection          []string
	selectedConnection string
	placement          *Placement
	pendingDelete      []string
	panTool            bool
	grid               bool
	cursor             geometry.Point
	cursorInside       bool
}

// New Controller 생성 (h, cb는 nil 가능)
func New(board *store.Board, h Undoer, cb clipboard.Service, cfg Config) *Controller {
	if h == nil {
		h = noUndo{}
	}
	if cb == nil {
		cb = clipboard.NewMemory()
	}
	return &Controller{
		board:     board,
		history:   h,
		clipboard: cb,
		snapper:   snapping.NewEngine(cfg.SnapRadius),
		cfg:       cfg,
		now:       time.Now,
		viewport:  Viewport{Scale: 1},
	}
}

// Gesture 진행 중인 제스처 종류
func (c *Controller) Gesture() GestureKind {
	if c.gesture == nil {
		return GestureIdle
	}
	return c.gesture.kind()
}

// Selection 선택 순서대로 선택 도형 id
func (c *Controller) Selection() []string {
	return slices.Clone(c.selection)
}

// SelectedConnection 선택된 연결선 id
func (c *Controller) SelectedConnection() string {
	return c.selectedConnection
}

// Viewport 현재 뷰포트
func (c *Controller) Viewport() Viewport {
	return c.viewport
}

// SetViewport 뷰포트 교체 (브라우저 리사이즈, 줌 이후)
func (c *Controller) SetViewport(v Viewport) {
	c.viewport = v.normalized()
}

// Zoom 화면 좌표 기준 확대/축소
func (c *Controller) Zoom(factor float64, around geometry.Point) {
	c.viewport = c.viewport.ZoomAt(factor, around)
}

// Cursor 마지막 포인터 위치(월드 좌표)와 캔버스 내부 여부
func (c *Controller) Cursor() (geometry.Point, bool) {
	return c.cursor, c.cursorInside
}

// Grid 배경 그리드 표시 여부
func (c *Controller) Grid() bool {
	return c.grid
}

// ArmPlacement typ 도형 1회 생성 대기
func (c *Controller) ArmPlacement(typ model.ShapeType, subtype model.CardSubtype) error {
	if !typ.Valid() {
		return fmt.Errorf("%w: %q", store.ErrUnknownType, typ)
	}
	c.placement = &Placement{Type: typ, Subtype: subtype}
	return nil
}

// DisarmPlacement 배치 대기 해제
func (c *Controller) DisarmPlacement() {
	c.placement = nil
}

// SetPanTool 왼쪽 버튼 드래그를 선택/이동 중 하나로 전환
func (c *Controller) SetPanTool(on bool) {
	c.panTool = on
}

// PanTool 이동 도구 활성 여부
func (c *Controller) PanTool() bool {
	return c.panTool
}

func (c *Controller) trackCursor(screen geometry.Point) geometry.Point {
	c.cursor = c.viewport.ToWorld(screen)
	c.cursorInside = c.viewport.Contains(screen)
	return c.cursor
}

// 화면 반경을 월드 단위로 변환
func (c *Controller) worldTolerance(px float64) float64 {
	return px / c.viewport.scale()
}

func (c *Controller) isSelected(id string) bool {
	return slices.Contains(c.selection, id)
}

func (c *Controller) deselect(id string) {
	c.selection = slices.DeleteFunc(c.selection, func(s string) bool { return s == id })
}

// 없어진 id를 선택에서 제거 (실행 취소, 원격 삭제 이후)
func (c *Controller) pruneSelection(shapes []model.Shape) {
	if len(c.selection) == 0 {
		return
	}
	live := make(map[string]struct{}, len(shapes))
	for _, s := range shapes {
		live[s.ID] = struct{}{}
	}
	c.selection = slices.DeleteFunc(c.selection, func(id string) bool {
		_, ok := live[id]
		return !ok
	})
}

func (c *Controller) selectedShapes(ctx context.Context) ([]model.Shape, error) {
	shapes, err := c.board.Shapes.List(ctx)
	if err != nil {
		return nil, err
	}
	c.pruneSelection(shapes)
	var out []model.Shape
	for _, s := range shapes {
		if c.isSelected(s.ID) {
			out = append(out, s)
		}
	}
	return out, nil
}

// 진행 중인 드래그/리사이즈의 작업 경계
func (c *Controller) overrides() map[string]geometry.Rect {
	switch g := c.gesture.(type) {
	case *dragGesture:
		return g.working
	case *resizeGesture:
		return map[string]geometry.Rect{g.id: g.working}
	}
	return nil
}
