package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gofiber/contrib/websocket"

	"coaching-backend/internal/cache"
	"coaching-backend/internal/geometry"
	"coaching-backend/internal/interaction"
	"coaching-backend/internal/presence"
	"coaching-backend/internal/session"
)

// Client -> server message types
const (
	MsgPointerDown   = "pointer_down"
	MsgPointerMove   = "pointer_move"
	MsgPointerUp     = "pointer_up"
	MsgKey           = "key"
	MsgArmPlacement  = "arm_placement"
	MsgViewport      = "viewport"
	MsgZoom          = "zoom"
	MsgConfirmDelete = "confirm_delete"
	MsgCancelDelete  = "cancel_delete"
	MsgTogglePanTool = "toggle_pan_tool"
)

// Server -> client message types
const (
	MsgView   = "view"
	MsgScene  = "scene"
	MsgCursor = "cursor"
	MsgError  = "error"
)

// ErrUnknownMessage 처리할 수 없는 메시지 타입
var ErrUnknownMessage = errors.New("unknown message type")

// ClientMessage WebSocket 수신 메시지
type ClientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ZoomPayload 줌 요청
type ZoomPayload struct {
	Factor float64        `json:"factor"`
	Screen geometry.Point `json:"screen"`
}

// ErrorPayload 에러 메시지 페이로드
type ErrorPayload struct {
	Message string `json:"message"`
	Request string `json:"request,omitempty"`
}

// HandleWebSocket runs one canvas session. Locals boardID, userId and
// nickname are set by the upgrade handler.
func (h *BoardHub) HandleWebSocket(c *websocket.Conn) {
	boardID, ok1 := c.Locals("boardID").(int64)
	userID, ok2 := c.Locals("userId").(int64)
	nickname, ok3 := c.Locals("nickname").(string)
	if !ok1 || !ok2 || !ok3 {
		c.WriteMessage(websocket.TextMessage, []byte(`{"type":"error","payload":{"message":"invalid session"}}`))
		c.Close()
		return
	}

	ctx := context.Background()
	room, err := h.Acquire(ctx, boardID)
	if err != nil {
		log.Printf("[Hub] board %d open failed: %v", boardID, err)
		c.WriteMessage(websocket.TextMessage, []byte(`{"type":"error","payload":{"message":"board unavailable"}}`))
		c.Close()
		return
	}

	sess := h.NewSession(room, userID, nickname)
	defer func() {
		room.remove(sess)
		sess.Close()
		if h.presence != nil {
			if err := h.presence.Remove(ctx, boardID, userID); err != nil {
				log.Printf("[Hub] presence remove failed: %v", err)
			}
		}
		h.Release(ctx, room)
		c.Close()
		log.Printf("[Hub] session %s closed after %s", sess.ID, sess.Duration().Round(time.Second))
	}()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.writeLoop(c, sess)
	}()

	h.sendInitial(sess, room)

	// 메시지 수신 루프
	for {
		_, msgBytes, err := c.ReadMessage()
		if err != nil {
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(msgBytes, &msg); err != nil {
			sess.Enqueue(errorMessage("", errors.New("malformed message")))
			continue
		}

		if err := h.Dispatch(sess.Context(), sess, msg); err != nil {
			sess.Enqueue(errorMessage(msg.Type, err))
		}
	}

	sess.Close()
	<-writerDone
}

// writeLoop is the only writer of c.
func (h *BoardHub) writeLoop(c *websocket.Conn, sess *session.Session) {
	var heartbeat <-chan time.Time
	if h.presence != nil {
		t := time.NewTicker(h.presence.TTL() / 2)
		defer t.Stop()
		heartbeat = t.C
	}

	for {
		select {
		case msg, ok := <-sess.Outbound():
			if !ok {
				return
			}
			c.SetWriteDeadline(time.Now().Add(h.writeWait))
			if err := c.WriteJSON(msg); err != nil {
				log.Printf("[Hub] write to session %s failed: %v", sess.ID, err)
				return
			}
		case <-heartbeat:
			err := h.presence.Heartbeat(sess.Context(), sess.BoardID, sess.UserID)
			if err != nil && !errors.Is(err, presence.ErrOffline) {
				log.Printf("[Hub] presence heartbeat failed: %v", err)
			}
		}
	}
}

func (h *BoardHub) sendInitial(sess *session.Session, room *BoardRoom) {
	ctx := sess.Context()
	if scene, err := room.Scene(ctx); err == nil {
		sess.Enqueue(&session.Message{Type: MsgScene, Payload: scene})
	}
	if h.presence != nil {
		if cursors, err := h.presence.GetBoardCursors(ctx, room.BoardID); err == nil {
			for _, cur := range cursors {
				if cur.UserID != sess.UserID {
					sess.Enqueue(&session.Message{Type: MsgCursor, Payload: cur})
				}
			}
		}
	}
	h.sendView(sess)
}

func (h *BoardHub) sendView(sess *session.Session) {
	view, err := sess.Controller.View(sess.Context())
	if err != nil {
		sess.Enqueue(errorMessage(MsgView, err))
		return
	}
	sess.Enqueue(&session.Message{Type: MsgView, Payload: view})
}

// Dispatch applies one client message to the session's controller and
// queues the resulting view. It must only be called from the session's
// read loop.
func (h *BoardHub) Dispatch(ctx context.Context, sess *session.Session, msg ClientMessage) error {
	ctrl := sess.Controller
	sess.IncrementEventCount()

	var err error
	var action string
	switch msg.Type {
	case MsgPointerDown, MsgPointerMove, MsgPointerUp:
		var ev interaction.PointerEvent
		if err := decodePayload(msg, &ev); err != nil {
			return err
		}
		switch msg.Type {
		case MsgPointerDown:
			err = ctrl.PointerDown(ctx, ev)
		case MsgPointerMove:
			err = ctrl.PointerMove(ctx, ev)
			h.publishCursor(ctx, sess)
		case MsgPointerUp:
			action = gestureAction(ctrl.Gesture())
			err = ctrl.PointerUp(ctx, ev)
		}

	case MsgKey:
		var ev interaction.KeyEvent
		if err := decodePayload(msg, &ev); err != nil {
			return err
		}
		if !ev.InTextInput {
			action = keyAction(ev)
		}
		err = ctrl.Key(ctx, ev)

	case MsgArmPlacement:
		var p interaction.Placement
		if err := decodePayload(msg, &p); err != nil {
			return err
		}
		if p.Type == "" {
			ctrl.DisarmPlacement()
		} else {
			err = ctrl.ArmPlacement(p.Type, p.Subtype)
		}

	case MsgViewport:
		var v interaction.Viewport
		if err := decodePayload(msg, &v); err != nil {
			return err
		}
		ctrl.SetViewport(v)
		if sess.GetState() == session.StateConnecting {
			sess.Activate()
		}

	case MsgZoom:
		var z ZoomPayload
		if err := decodePayload(msg, &z); err != nil {
			return err
		}
		ctrl.Zoom(z.Factor, z.Screen)

	case MsgConfirmDelete:
		action = "delete"
		err = ctrl.ConfirmDelete(ctx)

	case MsgCancelDelete:
		ctrl.CancelDelete()

	case MsgTogglePanTool:
		ctrl.SetPanTool(!ctrl.PanTool())

	default:
		return fmt.Errorf("%w: %q", ErrUnknownMessage, msg.Type)
	}

	if err != nil {
		return err
	}
	if action != "" {
		h.recordActivity(ctx, sess, action)
	}
	h.sendView(sess)
	return nil
}

func decodePayload(msg ClientMessage, v any) error {
	if len(msg.Payload) == 0 {
		return fmt.Errorf("%s: missing payload", msg.Type)
	}
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		return fmt.Errorf("%s: %w", msg.Type, err)
	}
	return nil
}

func errorMessage(request string, err error) *session.Message {
	return &session.Message{Type: MsgError, Payload: ErrorPayload{Message: err.Error(), Request: request}}
}

func gestureAction(g interaction.GestureKind) string {
	switch g {
	case interaction.GestureDrag:
		return "move"
	case interaction.GestureResize:
		return "resize"
	case interaction.GestureConnect:
		return "connect"
	}
	return ""
}

func keyAction(ev interaction.KeyEvent) string {
	key := strings.ToLower(ev.Key)
	if ev.Mods.Ctrl || ev.Mods.Meta {
		switch key {
		case "z":
			if ev.Mods.Shift {
				return "redo"
			}
			return "undo"
		case "y":
			return "redo"
		case "x":
			return "cut"
		case "v":
			return "paste"
		case "d":
			return "duplicate"
		}
		return ""
	}
	if key == "delete" || key == "backspace" {
		return "delete"
	}
	return ""
}

func (h *BoardHub) publishCursor(ctx context.Context, sess *session.Session) {
	if h.presence == nil {
		return
	}
	world, inside := sess.Controller.Cursor()
	if !inside {
		return
	}
	err := h.presence.SetCursor(ctx, presence.Cursor{
		BoardID:  sess.BoardID,
		UserID:   sess.UserID,
		Nickname: sess.Nickname,
		X:        world.X,
		Y:        world.Y,
		Gesture:  string(sess.Controller.Gesture()),
	})
	if err != nil {
		log.Printf("[Hub] presence update failed: %v", err)
	}
}

func (h *BoardHub) recordActivity(ctx context.Context, sess *session.Session, action string) {
	if h.activity == nil {
		return
	}
	err := h.activity.AddActivity(ctx, &cache.Activity{
		BoardID:   sess.BoardID,
		UserID:    sess.UserID,
		Nickname:  sess.Nickname,
		Action:    action,
		ShapeIDs:  sess.Controller.Selection(),
		Timestamp: time.Now(),
	})
	if err != nil {
		log.Printf("[Hub] activity log failed: %v", err)
	}
}
