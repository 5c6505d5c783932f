package document

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coaching-backend/internal/model"
)

func setupTestClient(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

type backend struct {
	name string
	make func(t *testing.T) Collection[model.Shape]
}

func backends() []backend {
	return []backend{
		{"memory", func(t *testing.T) Collection[model.Shape] {
			return NewMemoryCollection[model.Shape](1, ShapesCollection)
		}},
		{"redis", func(t *testing.T) Collection[model.Shape] {
			return NewRedisCollection[model.Shape](setupTestClient(t), 1, ShapesCollection)
		}},
	}
}

func shape(id string, x float64) model.Shape {
	return model.Shape{ID: id, BoardID: 1, Type: model.ShapeRect, X: x, Y: 0, Width: 100, Height: 80}
}

func TestCollectionCRUD(t *testing.T) {
	ctx := context.Background()
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			c := b.make(t)

			require.NoError(t, c.Insert(ctx, shape("a", 0), shape("b", 10), shape("c", 20)))

			list, err := c.List(ctx)
			require.NoError(t, err)
			require.Len(t, list, 3)
			assert.Equal(t, []string{"a", "b", "c"}, []string{list[0].ID, list[1].ID, list[2].ID})

			ok, err := c.Patch(ctx, "b", func(s *model.Shape) { s.X = 99 })
			require.NoError(t, err)
			assert.True(t, ok)

			got, found, err := c.Get(ctx, "b")
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, 99.0, got.X)

			n, err := c.Delete(ctx, "a", "missing")
			require.NoError(t, err)
			assert.Equal(t, 1, n)

			_, found, err = c.Get(ctx, "a")
			require.NoError(t, err)
			assert.False(t, found)

			list, err = c.List(ctx)
			require.NoError(t, err)
			assert.Len(t, list, 2)
		})
	}
}

func TestPatchMissingIsNoOp(t *testing.T) {
	ctx := context.Background()
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			c := b.make(t)
			require.NoError(t, c.Insert(ctx, shape("a", 0)))

			called := false
			ok, err := c.Patch(ctx, "gone", func(s *model.Shape) { called = true })
			require.NoError(t, err)
			assert.False(t, ok)
			assert.False(t, called)

			n, err := c.Delete(ctx, "gone")
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}
}

func TestBatchPatchAppliesInOrder(t *testing.T) {
	ctx := context.Background()
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			c := b.make(t)
			require.NoError(t, c.Insert(ctx, shape("a", 0), shape("b", 0)))

			n, err := c.BatchPatch(ctx, []Patch[model.Shape]{
				{ID: "a", Apply: func(s *model.Shape) { s.X += 5 }},
				{ID: "missing", Apply: func(s *model.Shape) { s.X = -1 }},
				{ID: "a", Apply: func(s *model.Shape) { s.X *= 2 }},
				{ID: "b", Apply: func(s *model.Shape) { s.Y = 7 }},
			})
			require.NoError(t, err)
			assert.Equal(t, 2, n)

			a, _, _ := c.Get(ctx, "a")
			bb, _, _ := c.Get(ctx, "b")
			assert.Equal(t, 10.0, a.X)
			assert.Equal(t, 7.0, bb.Y)
		})
	}
}

func TestReplace(t *testing.T) {
	ctx := context.Background()
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			c := b.make(t)
			require.NoError(t, c.Insert(ctx, shape("old", 0)))
			require.NoError(t, c.Replace(ctx, []model.Shape{shape("x", 1), shape("y", 2)}))

			list, err := c.List(ctx)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "x", list[0].ID)

			// Inserts after a replace keep appending.
			require.NoError(t, c.Insert(ctx, shape("z", 3)))
			list, _ = c.List(ctx)
			assert.Equal(t, "z", list[2].ID)
		})
	}
}

func TestSubscribeReceivesChanges(t *testing.T) {
	ctx := context.Background()
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			c := b.make(t)

			var mu sync.Mutex
			var got []Change
			cancel := c.Subscribe(func(ch Change) {
				mu.Lock()
				got = append(got, ch)
				mu.Unlock()
			})
			defer cancel()

			require.NoError(t, c.Insert(ctx, shape("a", 0)))
			_, err := c.Patch(ctx, "a", func(s *model.Shape) { s.X = 1 })
			require.NoError(t, err)
			_, err = c.Delete(ctx, "a")
			require.NoError(t, err)

			assert.Eventually(t, func() bool {
				mu.Lock()
				defer mu.Unlock()
				return len(got) == 3
			}, 2*time.Second, 10*time.Millisecond)

			mu.Lock()
			defer mu.Unlock()
			assert.Equal(t, OpInsert, got[0].Op)
			assert.Equal(t, OpPatch, got[1].Op)
			assert.Equal(t, OpDelete, got[2].Op)
			assert.Equal(t, ShapesCollection, got[0].Collection)
			assert.Equal(t, []string{"a"}, got[2].IDs)
		})
	}
}

func TestRedisSubscribeFiltersOtherCollections(t *testing.T) {
	ctx := context.Background()
	client := setupTestClient(t)
	shapes := NewRedisCollection[model.Shape](client, 7, ShapesCollection)
	conns := NewRedisCollection[model.Connection](client, 7, ConnectionsCollection)

	var mu sync.Mutex
	var got []Change
	cancel := shapes.Subscribe(func(ch Change) {
		mu.Lock()
		got = append(got, ch)
		mu.Unlock()
	})
	defer cancel()

	require.NoError(t, conns.Insert(ctx, model.Connection{ID: "c1", FromShapeID: "a", ToShapeID: "b"}))
	require.NoError(t, shapes.Insert(ctx, shape("a", 0)))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a"}, got[0].IDs)
}

func TestInsertRejectsEmptyID(t *testing.T) {
	ctx := context.Background()
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			assert.ErrorIs(t, b.make(t).Insert(ctx, model.Shape{}), ErrEmptyID)
		})
	}
}

func TestRegistryReusesDocuments(t *testing.T) {
	r := NewMemoryRegistry()
	a := r.Open(3)
	assert.Same(t, a, r.Open(3))
	assert.NotSame(t, a, r.Open(4))

	r.Evict(3)
	assert.NotSame(t, a, r.Open(3))
}
