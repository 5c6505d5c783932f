package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"coaching-backend/internal/interaction"
)

// State 캔버스 세션 상태
type State int

const (
	StateConnecting State = iota // 뷰포트 수신 대기
	StateActive                  // 편집 중
	StateClosed                  // 연결 종료
)

// String 상태를 문자열로 반환
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Message 서버 -> 클라이언트 메시지
type Message struct {
	Type    string `json:"type"` // view, scene, cursor, error
	Payload any    `json:"payload,omitempty"`
}

// Session 보드 캔버스 세션 (Thread-Safe)
// Controller는 세션의 읽기 루프에서만 사용한다
type Session struct {
	ID          string
	BoardID     int64
	UserID      int64
	Nickname    string
	ConnectedAt time.Time
	Controller  *interaction.Controller

	mu         sync.RWMutex
	state      State
	eventCount uint64

	// 비동기 송신
	send   chan *Message
	ctx    context.Context
	cancel context.CancelFunc
}

// New 새 세션 생성
func New(boardID, userID int64, nickname string, ctrl *interaction.Controller, bufferSize int) *Session {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Session{
		ID:          uuid.New().String(),
		BoardID:     boardID,
		UserID:      userID,
		Nickname:    nickname,
		ConnectedAt: time.Now(),
		Controller:  ctrl,
		state:       StateConnecting,
		send:        make(chan *Message, bufferSize),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Context 세션 컨텍스트 반환
func (s *Session) Context() context.Context {
	return s.ctx
}

// Outbound 송신 큐 (Close 시 닫힘)
func (s *Session) Outbound() <-chan *Message {
	return s.send
}

// Enqueue 송신 큐에 메시지 추가. 큐가 가득 찼거나 닫혔으면 false
func (s *Session) Enqueue(msg *Message) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state == StateClosed {
		return false
	}
	select {
	case s.send <- msg:
		return true
	default:
		return false
	}
}

// Activate 첫 뷰포트 수신 후 활성 상태로 전환
func (s *Session) Activate() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateConnecting {
		s.state = StateActive
	}
}

// GetState 현재 상태 조회
func (s *Session) GetState() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.state
}

// IncrementEventCount 처리한 입력 이벤트 수 증가
func (s *Session) IncrementEventCount() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.eventCount++
	return s.eventCount
}

// Duration 연결 유지 시간
func (s *Session) Duration() time.Duration {
	return time.Since(s.ConnectedAt)
}

// Close 세션 정리
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return
	}

	s.state = StateClosed
	s.cancel()
	close(s.send)
}

// IsClosed 세션 종료 여부 확인
func (s *Session) IsClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.state == StateClosed
}
