package handler

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"coaching-backend/internal/geometry"
	"coaching-backend/internal/interaction"
	"coaching-backend/internal/model"
	"coaching-backend/internal/repository"
	"coaching-backend/internal/session"
)

func message(t *testing.T, typ string, payload any) ClientMessage {
	t.Helper()
	msg := ClientMessage{Type: typ}
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		msg.Payload = raw
	}
	return msg
}

// waitFor drains the outbound queue until a message of typ arrives.
func waitFor(t *testing.T, sess *session.Session, typ string) *session.Message {
	t.Helper()
	timeout := time.After(time.Second)
	for {
		select {
		case msg := <-sess.Outbound():
			if msg.Type == typ {
				return msg
			}
		case <-timeout:
			t.Fatalf("no %s message", typ)
			return nil
		}
	}
}

func TestHubHydratesAndFlushes(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	require.NoError(t, env.repo.SaveSnapshot(ctx, env.board.ID, repository.Snapshot{
		Shapes: []model.Shape{{ID: "s1", Type: model.ShapeRect, Width: 100, Height: 80}},
	}))

	room, err := env.hub.Acquire(ctx, env.board.ID)
	require.NoError(t, err)
	again, err := env.hub.Acquire(ctx, env.board.ID)
	require.NoError(t, err)
	assert.Same(t, room, again)
	assert.Equal(t, 1, env.hub.OpenRooms())

	board := env.hub.Board(room, nil)
	shapes, err := board.Shapes.List(ctx)
	require.NoError(t, err)
	require.Len(t, shapes, 1)

	_, err = board.Shapes.Add(ctx, model.ShapeText, "", 200, 0, "s2")
	require.NoError(t, err)

	env.hub.Release(ctx, again)
	assert.True(t, env.hub.IsOpen(env.board.ID))
	env.hub.Release(ctx, room)
	assert.False(t, env.hub.IsOpen(env.board.ID))

	snap, err := env.repo.LoadSnapshot(ctx, env.board.ID)
	require.NoError(t, err)
	assert.Len(t, snap.Shapes, 2)
}

func TestReleaseSavesOutsideHubLock(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	other := &model.Board{WorkspaceID: env.board.WorkspaceID, Title: "Other", CreatedBy: env.owner.ID}
	require.NoError(t, env.repo.Create(ctx, other))
	otherRoom, err := env.hub.Acquire(ctx, other.ID)
	require.NoError(t, err)
	defer env.hub.Release(ctx, otherRoom)

	// Hold the snapshot write of env.board until the gate opens.
	gate := make(chan struct{})
	entered := make(chan struct{})
	var once sync.Once
	require.NoError(t, env.db.Callback().Create().Before("gorm:create").Register("test:hold_snapshot", func(tx *gorm.DB) {
		if tx.Statement.Table == "board_shapes" {
			once.Do(func() { close(entered) })
			<-gate
		}
	}))

	room, err := env.hub.Acquire(ctx, env.board.ID)
	require.NoError(t, err)
	_, err = env.hub.Board(room, nil).Shapes.Add(ctx, model.ShapeRect, "", 0, 0, "kept")
	require.NoError(t, err)

	released := make(chan struct{})
	go func() {
		env.hub.Release(ctx, room)
		close(released)
	}()
	select {
	case <-entered:
	case <-time.After(time.Second):
		t.Fatal("snapshot write never started")
	}

	// Other boards stay reachable while the save is in flight.
	acquired := make(chan *BoardRoom, 1)
	go func() {
		r, err := env.hub.Acquire(ctx, other.ID)
		if err == nil {
			acquired <- r
		}
	}()
	select {
	case r := <-acquired:
		assert.Same(t, otherRoom, r)
		env.hub.Release(ctx, r)
	case <-time.After(time.Second):
		t.Fatal("hub blocked by a snapshot write")
	}
	assert.True(t, env.hub.IsOpen(env.board.ID))

	// Reopening the board being saved waits for the save.
	reopened := make(chan *BoardRoom, 1)
	go func() {
		r, err := env.hub.Acquire(ctx, env.board.ID)
		if err == nil {
			reopened <- r
		}
	}()
	select {
	case <-reopened:
		t.Fatal("board reopened before its save finished")
	case <-time.After(50 * time.Millisecond):
	}

	close(gate)
	<-released
	select {
	case r := <-reopened:
		assert.NotSame(t, room, r)
		shapes, err := env.hub.Board(r, nil).Shapes.List(ctx)
		require.NoError(t, err)
		require.Len(t, shapes, 1)
		assert.Equal(t, "kept", shapes[0].ID)
		env.hub.Release(ctx, r)
	case <-time.After(time.Second):
		t.Fatal("board not reopened after save")
	}
}

func TestDispatchPlacesShapeAndBroadcastsScene(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	room, err := env.hub.Acquire(ctx, env.board.ID)
	require.NoError(t, err)
	defer env.hub.Release(ctx, room)

	author := env.hub.NewSession(room, env.owner.ID, "coach")
	watcher := env.hub.NewSession(room, env.owner.ID+1, "mentor")
	defer author.Close()
	defer watcher.Close()
	assert.Len(t, room.Sessions(), 2)

	require.NoError(t, env.hub.Dispatch(ctx, author, message(t, MsgViewport, interaction.Viewport{Scale: 1, Width: 800, Height: 600})))
	assert.Equal(t, session.StateActive, author.GetState())
	waitFor(t, author, MsgView)

	require.NoError(t, env.hub.Dispatch(ctx, author, message(t, MsgArmPlacement, interaction.Placement{Type: model.ShapeCard, Subtype: model.CardPain})))
	require.NoError(t, env.hub.Dispatch(ctx, author, message(t, MsgPointerDown, interaction.PointerEvent{Screen: geometry.Point{X: 100, Y: 100}})))
	require.NoError(t, env.hub.Dispatch(ctx, author, message(t, MsgPointerUp, interaction.PointerEvent{Screen: geometry.Point{X: 100, Y: 100}})))

	shapes, err := env.hub.Board(room, nil).Shapes.List(ctx)
	require.NoError(t, err)
	require.Len(t, shapes, 1)
	assert.Equal(t, model.CardPain, shapes[0].Subtype)

	msg := waitFor(t, watcher, MsgScene)
	raw, err := json.Marshal(msg.Payload)
	require.NoError(t, err)
	assert.Contains(t, string(raw), shapes[0].ID)

	require.NoError(t, env.hub.Dispatch(ctx, author, message(t, MsgKey, interaction.KeyEvent{Key: "z", Mods: interaction.Modifiers{Ctrl: true}})))
	shapes, err = env.hub.Board(room, nil).Shapes.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, shapes)
}

func TestDispatchRejectsBadMessages(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	room, err := env.hub.Acquire(ctx, env.board.ID)
	require.NoError(t, err)
	defer env.hub.Release(ctx, room)
	sess := env.hub.NewSession(room, env.owner.ID, "coach")
	defer sess.Close()

	assert.ErrorIs(t, env.hub.Dispatch(ctx, sess, ClientMessage{Type: "teleport"}), ErrUnknownMessage)
	assert.Error(t, env.hub.Dispatch(ctx, sess, ClientMessage{Type: MsgPointerDown}))
	assert.Error(t, env.hub.Dispatch(ctx, sess, ClientMessage{Type: MsgZoom, Payload: json.RawMessage(`{"factor":"big"}`)}))

	require.NoError(t, env.hub.Dispatch(ctx, sess, message(t, MsgTogglePanTool, nil)))
	assert.True(t, sess.Controller.PanTool())
}

func TestActionNames(t *testing.T) {
	assert.Equal(t, "move", gestureAction(interaction.GestureDrag))
	assert.Equal(t, "", gestureAction(interaction.GestureIdle))
	assert.Equal(t, "undo", keyAction(interaction.KeyEvent{Key: "Z", Mods: interaction.Modifiers{Meta: true}}))
	assert.Equal(t, "redo", keyAction(interaction.KeyEvent{Key: "z", Mods: interaction.Modifiers{Ctrl: true, Shift: true}}))
	assert.Equal(t, "delete", keyAction(interaction.KeyEvent{Key: "Backspace"}))
	assert.Equal(t, "", keyAction(interaction.KeyEvent{Key: "a"}))
}
