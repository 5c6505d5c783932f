// Package history 캔버스 세션의 실행 취소/다시 실행 서비스.
// 모든 변경은 역연산을 기록하고, Pause/Resume 사이의 변경은 한 단계로 묶인다
// (붙여넣기, 다중 도형 드래그를 한 번에 되돌리기 위함).
package history

import (
	"context"
	"errors"
	"sync"
)

// DefaultLimit 세션당 보관하는 실행 취소 단계 수
const DefaultLimit = 100

// Action 되돌릴 수 있는 변경 하나
type Action struct {
	Label string
	Undo  func(ctx context.Context) error
	Redo  func(ctx context.Context) error
}

// Recorder 스토어가 기록하는 대상
type Recorder interface {
	Record(a Action)
}

// Manager 실행 취소/다시 실행 스택 관리자
type Manager struct {
	mu       sync.Mutex
	limit    int
	undo     [][]Action
	redo     [][]Action
	paused   int
	pending  []Action
	applying bool
}

// New Manager 생성 (최대 limit 단계 보관)
func New(limit int) *Manager {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Manager{limit: limit}
}

// Record 액션을 한 단계로 기록 (Pause 중이면 열린 그룹에 추가)
// Undo/Redo 재생 중 발생한 액션은 다시 기록하지 않는다
func (m *Manager) Record(a Action) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.applying {
		return
	}
	if m.paused > 0 {
		m.pending = append(m.pending, a)
		return
	}
	m.push([]Action{a})
}

// Pause 그룹 시작 (중첩 가능)
func (m *Manager) Pause() {
	m.mu.Lock()
	m.paused++
	m.mu.Unlock()
}

// Resume 그룹 종료. 가장 바깥 Resume에서 한 단계로 확정
func (m *Manager) Resume() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.paused == 0 {
		return
	}
	m.paused--
	if m.paused == 0 && len(m.pending) > 0 {
		step := m.pending
		m.pending = nil
		m.push(step)
	}
}

func (m *Manager) push(step []Action) {
	m.undo = append(m.undo, step)
	if len(m.undo) > m.limit {
		m.undo = m.undo[len(m.undo)-m.limit:]
	}
	m.redo = nil
}

// CanUndo 되돌릴 단계 존재 여부
func (m *Manager) CanUndo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.undo) > 0
}

// CanRedo 다시 실행할 단계 존재 여부
func (m *Manager) CanRedo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.redo) > 0
}

// Undo 최근 단계를 되돌린다 (최신 액션부터)
func (m *Manager) Undo(ctx context.Context) error {
	m.mu.Lock()
	if len(m.undo) == 0 || m.applying {
		m.mu.Unlock()
		return nil
	}
	step := m.undo[len(m.undo)-1]
	m.undo = m.undo[:len(m.undo)-1]
	m.applying = true
	m.mu.Unlock()

	var errs []error
	for i := len(step) - 1; i >= 0; i-- {
		if step[i].Undo == nil {
			continue
		}
		if err := step[i].Undo(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	m.mu.Lock()
	m.applying = false
	m.redo = append(m.redo, step)
	m.mu.Unlock()
	return errors.Join(errs...)
}

// Redo 마지막으로 되돌린 단계를 다시 적용 (오래된 액션부터)
func (m *Manager) Redo(ctx context.Context) error {
	m.mu.Lock()
	if len(m.redo) == 0 || m.applying {
		m.mu.Unlock()
		return nil
	}
	step := m.redo[len(m.redo)-1]
	m.redo = m.redo[:len(m.redo)-1]
	m.applying = true
	m.mu.Unlock()

	var errs []error
	for _, a := range step {
		if a.Redo == nil {
			continue
		}
		if err := a.Redo(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	m.mu.Lock()
	m.applying = false
	m.undo = append(m.undo, step)
	m.mu.Unlock()
	return errors.Join(errs...)
}
