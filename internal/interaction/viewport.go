package interaction

import (
	"coaching-backend/internal/geometry"
)

// Viewport 화면 픽셀과 월드 좌표 변환
// Pan은 화면 공간 오프셋: screen = world*Scale + Pan
type Viewport struct {
	Pan    geometry.Point `json:"pan"`
	Scale  float64        `json:"scale"`
	Width  float64        `json:"width"`
	Height float64        `json:"height"`
}

const (
	minScale = 0.1
	maxScale = 8
)

func (v Viewport) scale() float64 {
	if v.Scale <= 0 {
		return 1
	}
	return v.Scale
}

// ToWorld 화면 좌표 -> 월드 좌표
func (v Viewport) ToWorld(screen geometry.Point) geometry.Point {
	return screen.Sub(v.Pan).Scale(1 / v.scale())
}

// ToScreen 월드 좌표 -> 화면 좌표
func (v Viewport) ToScreen(world geometry.Point) geometry.Point {
	return world.Scale(v.scale()).Add(v.Pan)
}

// Contains 화면 좌표가 캔버스 안인지 여부 (크기를 모르면 항상 true)
func (v Viewport) Contains(screen geometry.Point) bool {
	if v.Width <= 0 || v.Height <= 0 {
		return true
	}
	return geometry.Rect{Width: v.Width, Height: v.Height}.Contains(screen)
}

// Center 캔버스 중앙의 월드 좌표
func (v Viewport) Center() geometry.Point {
	return v.ToWorld(geometry.Point{X: v.Width / 2, Y: v.Height / 2})
}

// ZoomAt screen 아래 월드 좌표를 고정한 채 factor만큼 확대/축소
func (v Viewport) ZoomAt(factor float64, screen geometry.Point) Viewport {
	if factor <= 0 {
		return v
	}
	old := v.scale()
	next := geometry.Clamp(old*factor, minScale, maxScale)
	world := v.ToWorld(screen)
	v.Scale = next
	v.Pan = screen.Sub(world.Scale(next))
	return v
}

func (v Viewport) normalized() Viewport {
	v.Scale = geometry.Clamp(v.scale(), minScale, maxScale)
	return v
}
