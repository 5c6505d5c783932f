// Package clipboard 복사한 도형을 붙여넣기까지 보관.
// 페이로드는 도형 전체 스냅샷과 복사 기준점을 담아 어디서든 재배치할 수 있다.
package clipboard

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"coaching-backend/internal/geometry"
	"coaching-backend/internal/model"
)

// Kind 캔버스 페이로드 식별 태그
const Kind = "canvas/shapes"

var ErrEmpty = errors.New("clipboard: payload has no shapes")

// Payload 직렬화 가능한 클립보드 스냅샷
type Payload struct {
	Kind      string         `json:"kind"`
	CreatedAt time.Time      `json:"createdAt"`
	Anchor    geometry.Point `json:"anchor"`
	Shapes    []model.Shape  `json:"shapes"`
}

// Service 페이로드 하나 보관 (쓸 수 있는 내용이 없으면 Read는 nil)
type Service interface {
	Write(ctx context.Context, p Payload) error
	Read(ctx context.Context) (*Payload, error)
}

// NewPayload 바운딩 박스 중심 기준 도형 스냅샷
func NewPayload(shapes []model.Shape, now time.Time) (Payload, error) {
	if len(shapes) == 0 {
		return Payload{}, ErrEmpty
	}
	bounds := shapes[0].Bounds()
	copied := make([]model.Shape, len(shapes))
	for i, s := range shapes {
		bounds = bounds.Union(s.Bounds())
		copied[i] = s.Clone()
	}
	return Payload{Kind: Kind, CreatedAt: now, Anchor: bounds.Center(), Shapes: copied}, nil
}

func encode(p Payload) ([]byte, error) {
	if len(p.Shapes) == 0 {
		return nil, ErrEmpty
	}
	if p.Kind == "" {
		p.Kind = Kind
	}
	return json.Marshal(p)
}

// 외부/손상된 내용이면 nil
func decode(data []byte) *Payload {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil
	}
	if p.Kind != Kind || len(p.Shapes) == 0 {
		return nil
	}
	return &p
}

// Memory 프로세스 로컬 클립보드
type Memory struct {
	mu   sync.Mutex
	data []byte
}

// NewMemory 빈 클립보드 생성
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Write(ctx context.Context, p Payload) error {
	data, err := encode(p)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.data = data
	m.mu.Unlock()
	return nil
}

func (m *Memory) Read(ctx context.Context) (*Payload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return nil, nil
	}
	return decode(m.data), nil
}
