package presence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrOffline 하트비트 대상 커서가 이미 만료됨
var ErrOffline = errors.New("presence: cursor expired")

// Cursor 보드 위 원격 커서 상태
type Cursor struct {
	BoardID   int64   `json:"board_id"`
	UserID    int64   `json:"user_id"`
	Nickname  string  `json:"nickname"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Gesture   string  `json:"gesture,omitempty"`
	Left      bool    `json:"left,omitempty"` // 보드를 떠났을 때만 true
	UpdatedAt int64   `json:"updated_at"`
	ServerID  string  `json:"server_id"`
}

// Manager 보드 커서 presence 관리자
type Manager struct {
	client *redis.Client
	ttl    time.Duration
}

// NewManager 생성자
func NewManager(client *redis.Client, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &Manager{client: client, ttl: ttl}
}

// TTL 커서 만료 시간
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

func cursorKey(boardID, userID int64) string {
	return fmt.Sprintf("presence:board:%d:user:%d", boardID, userID)
}

func membersKey(boardID int64) string {
	return fmt.Sprintf("presence:board:%d:users", boardID)
}

// Channel 보드 커서 이벤트 채널
func Channel(boardID int64) string {
	return fmt.Sprintf("presence:board:%d:cursors", boardID)
}

// SetCursor 커서 위치 저장 후 이벤트 발행
func (m *Manager) SetCursor(ctx context.Context, c Cursor) error {
	c.UpdatedAt = time.Now().UnixMilli()
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}

	pipe := m.client.TxPipeline()
	pipe.Set(ctx, cursorKey(c.BoardID, c.UserID), data, m.ttl)
	pipe.SAdd(ctx, membersKey(c.BoardID), c.UserID)
	pipe.Expire(ctx, membersKey(c.BoardID), m.ttl)
	pipe.Publish(ctx, Channel(c.BoardID), data)
	_, err = pipe.Exec(ctx)
	return err
}

// Heartbeat 생존 신고 (TTL 연장)
func (m *Manager) Heartbeat(ctx context.Context, boardID, userID int64) error {
	ok, err := m.client.Expire(ctx, cursorKey(boardID, userID), m.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: board %d user %d", ErrOffline, boardID, userID)
	}
	return m.client.Expire(ctx, membersKey(boardID), m.ttl).Err()
}

// Remove 커서 삭제 (Disconnect) 후 leave 이벤트 발행
func (m *Manager) Remove(ctx context.Context, boardID, userID int64) error {
	data, err := json.Marshal(Cursor{BoardID: boardID, UserID: userID, Left: true, UpdatedAt: time.Now().UnixMilli()})
	if err != nil {
		return err
	}
	pipe := m.client.TxPipeline()
	pipe.Del(ctx, cursorKey(boardID, userID))
	pipe.SRem(ctx, membersKey(boardID), userID)
	pipe.Publish(ctx, Channel(boardID), data)
	_, err = pipe.Exec(ctx)
	return err
}

// GetBoardCursors 보드의 살아있는 커서 목록 (user id 순)
func (m *Manager) GetBoardCursors(ctx context.Context, boardID int64) ([]Cursor, error) {
	members, err := m.client.SMembers(ctx, membersKey(boardID)).Result()
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return []Cursor{}, nil
	}

	keys := make([]string, len(members))
	for i, member := range members {
		id, _ := strconv.ParseInt(member, 10, 64)
		keys[i] = cursorKey(boardID, id)
	}

	// MGET으로 한 번에 조회
	results, err := m.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	cursors := make([]Cursor, 0, len(results))
	var stale []interface{}
	for i, result := range results {
		strVal, ok := result.(string)
		if !ok {
			stale = append(stale, members[i])
			continue
		}
		var c Cursor
		if err := json.Unmarshal([]byte(strVal), &c); err == nil {
			cursors = append(cursors, c)
		}
	}
	if len(stale) > 0 {
		m.client.SRem(ctx, membersKey(boardID), stale...)
	}

	sort.Slice(cursors, func(i, j int) bool { return cursors[i].UserID < cursors[j].UserID })
	return cursors, nil
}

// Subscribe 보드 커서 이벤트 구독. 첫 응답을 받은 뒤 반환한다
func (m *Manager) Subscribe(ctx context.Context, boardID int64) (*redis.PubSub, error) {
	sub := m.client.Subscribe(ctx, Channel(boardID))
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, err
	}
	return sub, nil
}

// DecodeCursor pub/sub 메시지 디코드
func DecodeCursor(payload string) (Cursor, error) {
	var c Cursor
	err := json.Unmarshal([]byte(payload), &c)
	return c, err
}
