package interaction

import (
	"coaching-backend/internal/geometry"
	"coaching-backend/internal/snapping"
)

// Button 브라우저 포인터 버튼
type Button int

const (
	ButtonLeft   Button = 0
	ButtonMiddle Button = 1
	ButtonRight  Button = 2
)

// Modifiers 이벤트 중 눌린 수정 키
type Modifiers struct {
	Shift bool `json:"shift"`
	Ctrl  bool `json:"ctrl"`
	Meta  bool `json:"meta"`
	Alt   bool `json:"alt"`
}

// PointerEvent 화면 좌표 포인터 이벤트
type PointerEvent struct {
	Screen geometry.Point `json:"screen"`
	Button Button         `json:"button"`
	Mods   Modifiers      `json:"mods"`
}

// KeyEvent 키 입력. 편집 가능한 요소에 포커스가 있으면 InTextInput이 설정되고 무시된다
type KeyEvent struct {
	Key         string    `json:"key"`
	Mods        Modifiers `json:"mods"`
	InTextInput bool      `json:"inTextInput"`
}

// GestureKind 제스처 종류
type GestureKind string

const (
	GestureIdle    GestureKind = "idle"
	GestureMarquee GestureKind = "marquee"
	GestureDrag    GestureKind = "drag"
	GestureResize  GestureKind = "resize"
	GesturePan     GestureKind = "pan"
	GestureConnect GestureKind = "connect"
)

// Handle 8개 리사이즈 핸들 중 하나
type Handle string

const (
	HandleNW Handle = "nw"
	HandleN  Handle = "n"
	HandleNE Handle = "ne"
	HandleE  Handle = "e"
	HandleSE Handle = "se"
	HandleS  Handle = "s"
	HandleSW Handle = "sw"
	HandleW  Handle = "w"
)

var handles = []Handle{HandleNW, HandleN, HandleNE, HandleE, HandleSE, HandleS, HandleSW, HandleW}

// HandlePoint r 위 핸들 h의 월드 좌표
func HandlePoint(r geometry.Rect, h Handle) geometry.Point {
	c := r.Center()
	switch h {
	case HandleNW:
		return geometry.Point{X: r.X, Y: r.Y}
	case HandleN:
		return geometry.Point{X: c.X, Y: r.Y}
	case HandleNE:
		return geometry.Point{X: r.Right(), Y: r.Y}
	case HandleE:
		return geometry.Point{X: r.Right(), Y: c.Y}
	case HandleSE:
		return geometry.Point{X: r.Right(), Y: r.Bottom()}
	case HandleS:
		return geometry.Point{X: c.X, Y: r.Bottom()}
	case HandleSW:
		return geometry.Point{X: r.X, Y: r.Bottom()}
	default:
		return geometry.Point{X: r.X, Y: c.Y}
	}
}

func (h Handle) west() bool  { return h == HandleNW || h == HandleW || h == HandleSW }
func (h Handle) east() bool  { return h == HandleNE || h == HandleE || h == HandleSE }
func (h Handle) north() bool { return h == HandleNW || h == HandleN || h == HandleNE }
func (h Handle) south() bool { return h == HandleSW || h == HandleS || h == HandleSE }

// ResizeRect 핸들 h로 r에 포인터 이동량 d 적용
// 크기는 minW/minH 이상, 반대편 변은 고정
func ResizeRect(r geometry.Rect, h Handle, d geometry.Point, minW, minH float64) geometry.Rect {
	out := r
	switch {
	case h.east():
		out.Width = max(minW, r.Width+d.X)
	case h.west():
		out.Width = max(minW, r.Width-d.X)
		out.X = r.Right() - out.Width
	}
	switch {
	case h.south():
		out.Height = max(minH, r.Height+d.Y)
	case h.north():
		out.Height = max(minH, r.Height-d.Y)
		out.Y = r.Bottom() - out.Height
	}
	return out
}

// 컨트롤러 제스처 상태 (nil이면 대기)
type gesture interface {
	kind() GestureKind
}

type marqueeGesture struct {
	origin  geometry.Point
	current geometry.Point
	base    []string
}

type dragGesture struct {
	start     geometry.Point
	ids       []string
	originals map[string]geometry.Rect
	working   map[string]geometry.Rect
	moved     bool
}

type resizeGesture struct {
	id       string
	handle   Handle
	start    geometry.Point
	original geometry.Rect
	working  geometry.Rect
}

type panGesture struct {
	last   geometry.Point
	origin geometry.Point
}

type connectGesture struct {
	fromID     string
	fromSide   geometry.Side
	fromAnchor geometry.Anchor
	cursor     geometry.Point
	snap       *snapping.Target
}

func (*marqueeGesture) kind() GestureKind { return GestureMarquee }
func (*dragGesture) kind() GestureKind    { return GestureDrag }
func (*resizeGesture) kind() GestureKind  { return GestureResize }
func (*panGesture) kind() GestureKind     { return GesturePan }
func (*connectGesture) kind() GestureKind { return GestureConnect }

func (m *marqueeGesture) rect() geometry.Rect {
	return geometry.RectFromPoints(m.origin, m.current)
}
