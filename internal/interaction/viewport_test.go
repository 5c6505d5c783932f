package interaction

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"coaching-backend/internal/geometry"
)

func TestViewportRoundTrip(t *testing.T) {
	v := Viewport{Pan: geometry.Point{X: 40, Y: -20}, Scale: 2}
	world := geometry.Point{X: 15, Y: 30}

	screen := v.ToScreen(world)
	assert.Equal(t, geometry.Point{X: 70, Y: 40}, screen)
	assert.Equal(t, world, v.ToWorld(screen))
}

func TestViewportZeroScaleActsAsOne(t *testing.T) {
	var v Viewport
	p := geometry.Point{X: 3, Y: 4}
	assert.Equal(t, p, v.ToWorld(p))
	assert.True(t, v.Contains(geometry.Point{X: -1e6, Y: 1e6}))
}

func TestViewportZoomKeepsPointUnderCursor(t *testing.T) {
	v := Viewport{Pan: geometry.Point{X: 10, Y: 10}, Scale: 1, Width: 800, Height: 600}
	cursor := geometry.Point{X: 200, Y: 150}
	before := v.ToWorld(cursor)

	z := v.ZoomAt(2, cursor)
	assert.Equal(t, 2.0, z.Scale)
	after := z.ToWorld(cursor)
	assert.InDelta(t, before.X, after.X, 1e-9)
	assert.InDelta(t, before.Y, after.Y, 1e-9)

	assert.Equal(t, float64(maxScale), v.ZoomAt(1000, cursor).Scale)
}

func TestViewportCenterAndContains(t *testing.T) {
	v := Viewport{Pan: geometry.Point{X: 100}, Scale: 2, Width: 800, Height: 600}
	assert.Equal(t, geometry.Point{X: 150, Y: 150}, v.Center())
	assert.True(t, v.Contains(geometry.Point{X: 800, Y: 600}))
	assert.False(t, v.Contains(geometry.Point{X: 801, Y: 10}))
}
