package store

import (
	"context"
	"fmt"

	"coaching-backend/internal/document"
	"coaching-backend/internal/history"
	"coaching-backend/internal/model"

	"github.com/google/uuid"
)

// ShapeStore 보드 하나의 도형 쓰기 담당
type ShapeStore struct {
	boardID int64
	col     document.Collection[model.Shape]
	history History
	opts    Options
}

// List 쌓임 순서대로 전체 도형 조회
func (s *ShapeStore) List(ctx context.Context) ([]model.Shape, error) {
	return s.col.List(ctx)
}

// Get 도형 단건 조회
func (s *ShapeStore) Get(ctx context.Context, id string) (model.Shape, bool, error) {
	return s.col.Get(ctx, id)
}

// Subscribe 도형 변경을 fn으로 전달
func (s *ShapeStore) Subscribe(fn func(document.Change)) func() {
	return s.col.Subscribe(fn)
}

// Add (x, y)에 기본 크기의 도형 생성 (id가 비어 있으면 새로 발급)
func (s *ShapeStore) Add(ctx context.Context, typ model.ShapeType, subtype model.CardSubtype, x, y float64, id string) (model.Shape, error) {
	if !typ.Valid() {
		return model.Shape{}, fmt.Errorf("%w: %q", ErrUnknownType, typ)
	}
	w, h := model.DefaultSize(typ)
	shape := model.Shape{
		ID:      id,
		Type:    typ,
		Subtype: subtype,
		X:       x,
		Y:       y,
		Width:   w,
		Height:  h,
	}
	inserted, err := s.Insert(ctx, shape)
	if err != nil {
		return model.Shape{}, err
	}
	return inserted[0], nil
}

// Insert 도형 일괄 삽입 (id 없으면 발급), 저장된 값 반환
func (s *ShapeStore) Insert(ctx context.Context, shapes ...model.Shape) ([]model.Shape, error) {
	if len(shapes) == 0 {
		return nil, nil
	}
	prepared := make([]model.Shape, len(shapes))
	ids := make([]string, len(shapes))
	for i, sh := range shapes {
		if sh.ID == "" {
			sh.ID = uuid.NewString()
		}
		prepared[i] = s.prepare(sh)
		ids[i] = sh.ID
	}
	if err := s.col.Insert(ctx, prepared...); err != nil {
		return nil, fmt.Errorf("insert shapes: %w", err)
	}

	s.history.Record(history.Action{
		Label: "insert shapes",
		Undo: func(ctx context.Context) error {
			_, err := s.col.Delete(ctx, ids...)
			return err
		},
		Redo: func(ctx context.Context) error {
			return s.col.Insert(ctx, prepared...)
		},
	})
	return prepared, nil
}

func (s *ShapeStore) prepare(sh model.Shape) model.Shape {
	now := s.opts.Now()
	sh.BoardID = s.boardID
	if sh.CreatedAt.IsZero() {
		sh.CreatedAt = now
	}
	sh.UpdatedAt = now
	s.floor(&sh)
	return sh
}

func (s *ShapeStore) floor(sh *model.Shape) {
	if sh.Width < s.opts.MinWidth {
		sh.Width = s.opts.MinWidth
	}
	if sh.Height < s.opts.MinHeight {
		sh.Height = s.opts.MinHeight
	}
}

// Patch 도형 수정 (없는 도형이면 false, 에러 아님)
func (s *ShapeStore) Patch(ctx context.Context, id string, fn func(*model.Shape)) (bool, error) {
	n, err := s.BatchPatch(ctx, []document.Patch[model.Shape]{{ID: id, Apply: fn}})
	return n > 0, err
}

// BatchPatch 여러 패치를 한 번의 문서 쓰기, 한 번의 실행 취소 단계로 적용
func (s *ShapeStore) BatchPatch(ctx context.Context, patches []document.Patch[model.Shape]) (int, error) {
	if len(patches) == 0 {
		return 0, nil
	}

	before := make(map[string]model.Shape, len(patches))
	after := make(map[string]model.Shape, len(patches))
	var order []string

	// 한 시도 안에서는 순서대로 실행된다.
	// 인덱스가 증가하지 않으면 재시도이므로 이전 캡처는 버린다
	last := -1
	wrapped := make([]document.Patch[model.Shape], len(patches))
	for i, p := range patches {
		wrapped[i] = document.Patch[model.Shape]{
			ID: p.ID,
			Apply: func(sh *model.Shape) {
				if i <= last {
					clear(before)
					clear(after)
					order = order[:0]
				}
				last = i
				if _, seen := before[sh.ID]; !seen {
					before[sh.ID] = sh.Clone()
					order = append(order, sh.ID)
				}
				p.Apply(sh)
				sh.ID = p.ID
				sh.BoardID = s.boardID
				sh.UpdatedAt = s.opts.Now()
				s.floor(sh)
				after[sh.ID] = sh.Clone()
			},
		}
	}

	n, err := s.col.BatchPatch(ctx, wrapped)
	if err != nil {
		return 0, fmt.Errorf("patch shapes: %w", err)
	}
	if n == 0 {
		return 0, nil
	}

	s.history.Record(history.Action{
		Label: "patch shapes",
		Undo:  func(ctx context.Context) error { return s.restore(ctx, order, before) },
		Redo:  func(ctx context.Context) error { return s.restore(ctx, order, after) },
	})
	return n, nil
}

func (s *ShapeStore) restore(ctx context.Context, ids []string, states map[string]model.Shape) error {
	patches := make([]document.Patch[model.Shape], 0, len(ids))
	for _, id := range ids {
		state := states[id]
		patches = append(patches, document.Patch[model.Shape]{
			ID:    id,
			Apply: func(sh *model.Shape) { *sh = state.Clone() },
		})
	}
	_, err := s.col.BatchPatch(ctx, patches)
	return err
}

// Remove 도형 삭제 (연결선은 건드리지 않음, 연쇄 삭제는 Board.DeleteShapes)
func (s *ShapeStore) Remove(ctx context.Context, ids ...string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	var removed []model.Shape
	for _, id := range ids {
		sh, ok, err := s.col.Get(ctx, id)
		if err != nil {
			return 0, err
		}
		if ok {
			removed = append(removed, sh)
		}
	}

	n, err := s.col.Delete(ctx, ids...)
	if err != nil {
		return 0, fmt.Errorf("delete shapes: %w", err)
	}
	if len(removed) == 0 {
		return n, nil
	}

	removedIDs := make([]string, len(removed))
	for i, sh := range removed {
		removedIDs[i] = sh.ID
	}
	s.history.Record(history.Action{
		Label: "delete shapes",
		Undo:  func(ctx context.Context) error { return s.col.Insert(ctx, removed...) },
		Redo: func(ctx context.Context) error {
			_, err := s.col.Delete(ctx, removedIDs...)
			return err
		},
	})
	return n, nil
}
