package handler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"coaching-backend/internal/cache"
	"coaching-backend/internal/clipboard"
	"coaching-backend/internal/config"
	"coaching-backend/internal/document"
	"coaching-backend/internal/history"
	"coaching-backend/internal/interaction"
	"coaching-backend/internal/presence"
	"coaching-backend/internal/render"
	"coaching-backend/internal/repository"
	"coaching-backend/internal/routing"
	"coaching-backend/internal/session"
	"coaching-backend/internal/store"
)

// =============================================================================
// Board Hub - 보드 단위 공유 문서, 세션, presence 관리
// =============================================================================

// BoardHub owns one BoardRoom per open board. The first Acquire hydrates the
// shared document from the database; the last Release flushes it back.
type BoardHub struct {
	registry   *document.Registry
	repo       *repository.BoardRepository
	presence   *presence.Manager  // nil이면 원격 커서 비활성
	activity   *cache.RedisClient // nil이면 활동 로그 비활성
	clipboards func(userID int64) clipboard.Service
	canvas     config.CanvasConfig
	sendBuffer int
	writeWait  time.Duration

	rooms   map[int64]*BoardRoom
	closing map[int64]chan struct{} // 저장 중인 보드, 끝나면 close
	mu      sync.Mutex
}

// BoardRoom is the live state of one board inside this process.
type BoardRoom struct {
	BoardID int64
	doc     *document.Document
	refs    int

	sessions map[string]*session.Session
	mu       sync.RWMutex

	dirty       chan struct{}
	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe []func()
	done        sync.WaitGroup
	hub         *BoardHub
}

// HubOptions wires the optional collaborators of a BoardHub.
type HubOptions struct {
	Presence   *presence.Manager
	Activity   *cache.RedisClient
	Clipboards func(userID int64) clipboard.Service
	Canvas     config.CanvasConfig
	SendBuffer int
	WriteWait  time.Duration
}

// NewBoardHub creates a BoardHub.
func NewBoardHub(registry *document.Registry, repo *repository.BoardRepository, opts HubOptions) *BoardHub {
	if opts.Clipboards == nil {
		shared := make(map[int64]clipboard.Service)
		var mu sync.Mutex
		opts.Clipboards = func(userID int64) clipboard.Service {
			mu.Lock()
			defer mu.Unlock()
			if cb, ok := shared[userID]; ok {
				return cb
			}
			cb := clipboard.NewMemory()
			shared[userID] = cb
			return cb
		}
	}
	if opts.Canvas == (config.CanvasConfig{}) {
		opts.Canvas = config.LoadCanvas()
	}
	if opts.WriteWait <= 0 {
		opts.WriteWait = 5 * time.Second
	}
	return &BoardHub{
		registry:   registry,
		repo:       repo,
		presence:   opts.Presence,
		activity:   opts.Activity,
		clipboards: opts.Clipboards,
		canvas:     opts.Canvas,
		sendBuffer: opts.SendBuffer,
		writeWait:  opts.WriteWait,
		rooms:      make(map[int64]*BoardRoom),
		closing:    make(map[int64]chan struct{}),
	}
}

// Acquire returns the room for boardID, hydrating it on first use. Every
// successful Acquire must be paired with Release.
func (h *BoardHub) Acquire(ctx context.Context, boardID int64) (*BoardRoom, error) {
	h.mu.Lock()
	// A board that is still being saved reopens from the stored snapshot.
	for {
		closed, ok := h.closing[boardID]
		if !ok {
			break
		}
		h.mu.Unlock()
		select {
		case <-closed:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		h.mu.Lock()
	}
	defer h.mu.Unlock()

	if room, ok := h.rooms[boardID]; ok {
		room.refs++
		return room, nil
	}

	doc := h.registry.Open(boardID)
	if err := h.hydrate(ctx, doc); err != nil {
		h.registry.Evict(boardID)
		return nil, err
	}

	rctx, cancel := context.WithCancel(context.Background())
	room := &BoardRoom{
		BoardID:  boardID,
		doc:      doc,
		refs:     1,
		sessions: make(map[string]*session.Session),
		dirty:    make(chan struct{}, 1),
		ctx:      rctx,
		cancel:   cancel,
		hub:      h,
	}
	markDirty := func(document.Change) { room.markDirty() }
	room.unsubscribe = append(room.unsubscribe,
		doc.Shapes.Subscribe(markDirty),
		doc.Connections.Subscribe(markDirty),
	)

	room.done.Add(1)
	go room.runBroadcaster()
	if h.presence != nil {
		if err := room.startPresence(); err != nil {
			log.Printf("[Hub] board %d presence disabled: %v", boardID, err)
		}
	}

	h.rooms[boardID] = room
	log.Printf("[Hub] Opened board %d", boardID)
	return room, nil
}

// hydrate loads the stored snapshot into an empty document. A document that
// already has content (another instance is serving it) is left alone.
func (h *BoardHub) hydrate(ctx context.Context, doc *document.Document) error {
	shapes, err := doc.Shapes.List(ctx)
	if err != nil {
		return fmt.Errorf("list shapes: %w", err)
	}
	conns, err := doc.Connections.List(ctx)
	if err != nil {
		return fmt.Errorf("list connections: %w", err)
	}
	if len(shapes) > 0 || len(conns) > 0 {
		return nil
	}

	snap, err := h.repo.LoadSnapshot(ctx, doc.BoardID)
	if err != nil {
		return err
	}
	if len(snap.Shapes) == 0 && len(snap.Connections) == 0 {
		return nil
	}
	if err := doc.Shapes.Replace(ctx, snap.Shapes); err != nil {
		return fmt.Errorf("hydrate shapes: %w", err)
	}
	if err := doc.Connections.Replace(ctx, snap.Connections); err != nil {
		return fmt.Errorf("hydrate connections: %w", err)
	}
	log.Printf("[Hub] Hydrated board %d (%d shapes, %d connections)", doc.BoardID, len(snap.Shapes), len(snap.Connections))
	return nil
}

// Release drops one reference. The last one flushes the document to the
// database and closes the room. The flush runs outside the hub lock; other
// boards stay available and this board's next Acquire waits for it.
func (h *BoardHub) Release(ctx context.Context, room *BoardRoom) {
	h.mu.Lock()
	room.refs--
	if room.refs > 0 {
		h.mu.Unlock()
		return
	}
	delete(h.rooms, room.BoardID)
	closed := make(chan struct{})
	h.closing[room.BoardID] = closed
	h.mu.Unlock()

	for _, unsub := range room.unsubscribe {
		unsub()
	}
	room.cancel()
	room.done.Wait()

	if err := h.Flush(context.WithoutCancel(ctx), room); err != nil {
		log.Printf("[Hub] board %d flush failed: %v", room.BoardID, err)
	}

	h.mu.Lock()
	h.registry.Evict(room.BoardID)
	delete(h.closing, room.BoardID)
	close(closed)
	h.mu.Unlock()
	log.Printf("[Hub] Closed board %d", room.BoardID)
}

// Flush writes the current document into the board snapshot tables.
func (h *BoardHub) Flush(ctx context.Context, room *BoardRoom) error {
	shapes, err := room.doc.Shapes.List(ctx)
	if err != nil {
		return err
	}
	conns, err := room.doc.Connections.List(ctx)
	if err != nil {
		return err
	}
	return h.repo.SaveSnapshot(ctx, room.BoardID, repository.Snapshot{Shapes: shapes, Connections: conns})
}

// Board returns stores over the room's document. h records undo steps and
// may be nil.
func (h *BoardHub) Board(room *BoardRoom, hist store.History) *store.Board {
	return store.NewBoard(room.doc, hist, store.Options{
		MinWidth:  h.canvas.MinWidth,
		MinHeight: h.canvas.MinHeight,
	})
}

// NewSession creates a canvas session with its own controller and undo
// history and joins it to the room.
func (h *BoardHub) NewSession(room *BoardRoom, userID int64, nickname string) *session.Session {
	hist := history.New(h.canvas.HistoryLimit)
	ctrl := interaction.New(h.Board(room, hist), hist, h.clipboards(userID), interaction.NewConfig(h.canvas))
	sess := session.New(room.BoardID, userID, nickname, ctrl, h.sendBuffer)
	room.add(sess)
	return sess
}

// IsOpen reports whether boardID has a live room in this process or is
// still being saved.
func (h *BoardHub) IsOpen(boardID int64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, open := h.rooms[boardID]
	_, closing := h.closing[boardID]
	return open || closing
}

// OpenRooms returns the number of boards currently open.
func (h *BoardHub) OpenRooms() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms)
}

// =============================================================================
// Room Methods
// =============================================================================

func (r *BoardRoom) add(sess *session.Session) {
	r.mu.Lock()
	r.sessions[sess.ID] = sess
	count := len(r.sessions)
	r.mu.Unlock()
	log.Printf("[Hub] board %d joined by user %d, sessions: %d", r.BoardID, sess.UserID, count)
}

func (r *BoardRoom) remove(sess *session.Session) {
	r.mu.Lock()
	delete(r.sessions, sess.ID)
	count := len(r.sessions)
	r.mu.Unlock()
	log.Printf("[Hub] board %d left by user %d, sessions: %d", r.BoardID, sess.UserID, count)
}

// Sessions returns a snapshot of the room's sessions.
func (r *BoardRoom) Sessions() []*session.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*session.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

func (r *BoardRoom) markDirty() {
	select {
	case r.dirty <- struct{}{}:
	default:
	}
}

// runBroadcaster coalesces document changes into one scene per burst.
func (r *BoardRoom) runBroadcaster() {
	defer r.done.Done()
	for {
		select {
		case <-r.ctx.Done():
			return
		case <-r.dirty:
			scene, err := r.Scene(r.ctx)
			if err != nil {
				if r.ctx.Err() == nil {
					log.Printf("[Hub] board %d scene failed: %v", r.BoardID, err)
				}
				continue
			}
			r.broadcast(&session.Message{Type: MsgScene, Payload: scene}, nil)
		}
	}
}

// Scene builds the committed scene of the board.
func (r *BoardRoom) Scene(ctx context.Context) (render.Scene, error) {
	shapes, err := r.doc.Shapes.List(ctx)
	if err != nil {
		return render.Scene{}, err
	}
	conns, err := r.doc.Connections.List(ctx)
	if err != nil {
		return render.Scene{}, err
	}
	return render.BuildScene(shapes, conns, r.hub.routeOptions(), nil), nil
}

// broadcast enqueues msg on every session for which skip returns false.
func (r *BoardRoom) broadcast(msg *session.Message, skip func(*session.Session) bool) {
	for _, s := range r.Sessions() {
		if skip != nil && skip(s) {
			continue
		}
		if !s.Enqueue(msg) {
			log.Printf("[Hub] board %d dropped %s for session %s", r.BoardID, msg.Type, s.ID)
		}
	}
}

func (r *BoardRoom) startPresence() error {
	sub, err := r.hub.presence.Subscribe(r.ctx, r.BoardID)
	if err != nil {
		return err
	}
	r.done.Add(1)
	go func() {
		defer r.done.Done()
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-r.ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				cur, err := presence.DecodeCursor(msg.Payload)
				if err != nil {
					continue
				}
				r.broadcast(&session.Message{Type: MsgCursor, Payload: cur}, func(s *session.Session) bool {
					return s.UserID == cur.UserID
				})
			}
		}
	}()
	return nil
}

func (h *BoardHub) routeOptions() routing.Options {
	return interaction.NewConfig(h.canvas).Route
}
