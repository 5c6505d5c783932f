// Package store 보드 문서에 쓰는 내용을 결정한다.
// 도형 최소 크기, 앵커 보정, 연쇄 삭제, 실행 취소 기록을 담당하고
// 동시 쓰기 조정은 문서 백엔드에 맡긴다.
package store

import (
	"context"
	"errors"
	"time"

	"coaching-backend/internal/document"
	"coaching-backend/internal/history"
)

var (
	ErrSelfLoop     = errors.New("connection endpoints must be different shapes")
	ErrMissingShape = errors.New("connection endpoint shape does not exist")
	ErrUnknownType  = errors.New("unknown shape type")
)

// History 스토어가 사용하는 실행 취소 서비스 부분집합
type History interface {
	Record(a history.Action)
	Pause()
	Resume()
}

type noHistory struct{}

func (noHistory) Record(history.Action) {}
func (noHistory) Pause()                {}
func (noHistory) Resume()               {}

// Options 스토어 설정
type Options struct {
	MinWidth  float64
	MinHeight float64
	Now       func() time.Time
}

func (o Options) withDefaults() Options {
	if o.MinWidth <= 0 {
		o.MinWidth = 40
	}
	if o.MinHeight <= 0 {
		o.MinHeight = 75
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Board 보드 문서 하나의 도형/연결선 스토어 묶음
type Board struct {
	ID          int64
	Shapes      *ShapeStore
	Connections *ConnectionStore
	history     History
}

// NewBoard 스토어 생성 (h가 nil이면 실행 취소 기록 안 함)
func NewBoard(doc *document.Document, h History, opts Options) *Board {
	if h == nil {
		h = noHistory{}
	}
	opts = opts.withDefaults()
	shapes := &ShapeStore{boardID: doc.BoardID, col: doc.Shapes, history: h, opts: opts}
	conns := &ConnectionStore{boardID: doc.BoardID, col: doc.Connections, shapes: shapes, history: h, opts: opts}
	return &Board{ID: doc.BoardID, Shapes: shapes, Connections: conns, history: h}
}

// Group fn 실행 중 기록을 한 실행 취소 단계로 묶음
func (b *Board) Group(fn func() error) error {
	b.history.Pause()
	defer b.history.Resume()
	return fn()
}

// DeleteShapes 도형과 연결된 연결선을 한 번에 삭제
// 연결선을 먼저 지워 끊어진 참조가 보이지 않게 한다
func (b *Board) DeleteShapes(ctx context.Context, ids ...string) (shapes, connections int, err error) {
	if len(ids) == 0 {
		return 0, 0, nil
	}
	err = b.Group(func() error {
		var err error
		connections, err = b.Connections.DeleteForShapes(ctx, ids...)
		if err != nil {
			return err
		}
		shapes, err = b.Shapes.Remove(ctx, ids...)
		return err
	})
	return shapes, connections, err
}
