package clipboard

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coaching-backend/internal/geometry"
	"coaching-backend/internal/model"
)

func sampleShapes() []model.Shape {
	return []model.Shape{
		{ID: "a", Type: model.ShapeRect, X: 0, Y: 0, Width: 100, Height: 80},
		{ID: "b", Type: model.ShapeCard, X: 200, Y: 120, Width: 100, Height: 80},
	}
}

func TestNewPayloadCentersOnBounds(t *testing.T) {
	p, err := NewPayload(sampleShapes(), time.Unix(0, 0))
	require.NoError(t, err)
	assert.Equal(t, Kind, p.Kind)
	assert.Equal(t, geometry.Point{X: 150, Y: 100}, p.Anchor)
	assert.Len(t, p.Shapes, 2)

	_, err = NewPayload(nil, time.Now())
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestMemoryClipboard(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	got, err := m.Read(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	p, _ := NewPayload(sampleShapes(), time.Unix(100, 0).UTC())
	require.NoError(t, m.Write(ctx, p))

	got, err = m.Read(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, p.Anchor, got.Anchor)
	assert.Equal(t, "b", got.Shapes[1].ID)

	assert.ErrorIs(t, m.Write(ctx, Payload{}), ErrEmpty)
}

func TestRedisClipboard(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	c := NewRedis(client, 42, time.Minute)
	got, err := c.Read(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	p, _ := NewPayload(sampleShapes(), time.Unix(100, 0).UTC())
	require.NoError(t, c.Write(ctx, p))
	assert.True(t, mr.Exists("clipboard:user:42"))

	got, err = c.Read(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Len(t, got.Shapes, 2)

	mr.FastForward(2 * time.Minute)
	got, err = c.Read(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDecodeRejectsForeignText(t *testing.T) {
	assert.Nil(t, decode([]byte("hello")))
	assert.Nil(t, decode([]byte(`{"kind":"other","shapes":[{"id":"a"}]}`)))
	assert.Nil(t, decode([]byte(`{"kind":"canvas/shapes","shapes":[]}`)))
}
