package presence

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestManager(t *testing.T) (*Manager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewManager(client, 30*time.Second), mr
}

func TestSetAndListCursors(t *testing.T) {
	ctx := context.Background()
	m, _ := setupTestManager(t)

	require.NoError(t, m.SetCursor(ctx, Cursor{BoardID: 1, UserID: 7, Nickname: "kim", X: 10, Y: 20}))
	require.NoError(t, m.SetCursor(ctx, Cursor{BoardID: 1, UserID: 3, X: 1, Y: 2}))
	require.NoError(t, m.SetCursor(ctx, Cursor{BoardID: 2, UserID: 9}))

	cursors, err := m.GetBoardCursors(ctx, 1)
	require.NoError(t, err)
	require.Len(t, cursors, 2)
	assert.Equal(t, int64(3), cursors[0].UserID)
	assert.Equal(t, "kim", cursors[1].Nickname)
	assert.Equal(t, 10.0, cursors[1].X)
	assert.NotZero(t, cursors[1].UpdatedAt)
}

func TestCursorExpiresAndIsPruned(t *testing.T) {
	ctx := context.Background()
	m, mr := setupTestManager(t)

	require.NoError(t, m.SetCursor(ctx, Cursor{BoardID: 1, UserID: 7}))
	mr.FastForward(31 * time.Second)

	cursors, err := m.GetBoardCursors(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, cursors)

	err = m.Heartbeat(ctx, 1, 7)
	assert.ErrorIs(t, err, ErrOffline)
}

func TestHeartbeatExtendsTTL(t *testing.T) {
	ctx := context.Background()
	m, mr := setupTestManager(t)

	require.NoError(t, m.SetCursor(ctx, Cursor{BoardID: 1, UserID: 7}))
	mr.FastForward(20 * time.Second)
	require.NoError(t, m.Heartbeat(ctx, 1, 7))
	mr.FastForward(20 * time.Second)

	cursors, err := m.GetBoardCursors(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, cursors, 1)
}

func TestRemovePublishesLeave(t *testing.T) {
	ctx := context.Background()
	m, _ := setupTestManager(t)

	sub, err := m.Subscribe(ctx, 1)
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, m.SetCursor(ctx, Cursor{BoardID: 1, UserID: 7, X: 5}))
	require.NoError(t, m.Remove(ctx, 1, 7))

	ch := sub.Channel()
	var got []Cursor
	for len(got) < 2 {
		select {
		case msg := <-ch:
			c, err := DecodeCursor(msg.Payload)
			require.NoError(t, err)
			got = append(got, c)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for cursor events")
		}
	}
	assert.False(t, got[0].Left)
	assert.Equal(t, 5.0, got[0].X)
	assert.True(t, got[1].Left)

	cursors, err := m.GetBoardCursors(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, cursors)
}
