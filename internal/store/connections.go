package store

import (
	"context"
	"fmt"

	"coaching-backend/internal/document"
	"coaching-backend/internal/geometry"
	"coaching-backend/internal/history"
	"coaching-backend/internal/model"

	"github.com/google/uuid"
)

// ConnectionStore 보드 하나의 연결선 쓰기 담당
// 앵커는 문서에 쓰기 전에 항상 [0,1]로 보정
type ConnectionStore struct {
	boardID int64
	col     document.Collection[model.Connection]
	shapes  *ShapeStore
	history History
	opts    Options
}

// List 전체 연결선 조회
func (s *ConnectionStore) List(ctx context.Context) ([]model.Connection, error) {
	return s.col.List(ctx)
}

// Get 연결선 단건 조회
func (s *ConnectionStore) Get(ctx context.Context, id string) (model.Connection, bool, error) {
	return s.col.Get(ctx, id)
}

// Subscribe 연결선 변경을 fn으로 전달
func (s *ConnectionStore) Subscribe(fn func(document.Change)) func() {
	return s.col.Subscribe(fn)
}

func (s *ConnectionStore) normalize(c *model.Connection) {
	c.BoardID = s.boardID
	c.FromAnchor = c.FromAnchor.Clamp()
	c.ToAnchor = c.ToAnchor.Clamp()
	if !c.FromSide.Valid() {
		c.FromSide = geometry.SideFromAnchor(c.FromAnchor)
	}
	if !c.ToSide.Valid() {
		c.ToSide = geometry.SideFromAnchor(c.ToAnchor)
	}
	if c.Style == "" {
		c.Style = model.ConnectionOrthogonal
	}
}

// Create 연결선 검증 후 생성
// 자기 자신 연결, 존재하지 않는 끝점은 거부
func (s *ConnectionStore) Create(ctx context.Context, c model.Connection) (model.Connection, error) {
	if c.FromShapeID == c.ToShapeID {
		return model.Connection{}, ErrSelfLoop
	}
	for _, id := range []string{c.FromShapeID, c.ToShapeID} {
		_, ok, err := s.shapes.Get(ctx, id)
		if err != nil {
			return model.Connection{}, err
		}
		if !ok {
			return model.Connection{}, fmt.Errorf("%w: %s", ErrMissingShape, id)
		}
	}

	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	s.normalize(&c)
	c.CreatedAt = s.opts.Now()

	if err := s.col.Insert(ctx, c); err != nil {
		return model.Connection{}, fmt.Errorf("insert connection: %w", err)
	}

	created := c
	s.history.Record(history.Action{
		Label: "create connection",
		Undo: func(ctx context.Context) error {
			_, err := s.col.Delete(ctx, created.ID)
			return err
		},
		Redo: func(ctx context.Context) error { return s.col.Insert(ctx, created) },
	})
	return c, nil
}

// Patch 연결선 수정 후 앵커 재보정
func (s *ConnectionStore) Patch(ctx context.Context, id string, fn func(*model.Connection)) (bool, error) {
	var before, after model.Connection
	ok, err := s.col.Patch(ctx, id, func(c *model.Connection) {
		before = *c
		fn(c)
		c.ID = id
		s.normalize(c)
		after = *c
	})
	if err != nil || !ok {
		return false, err
	}

	s.history.Record(history.Action{
		Label: "patch connection",
		Undo: func(ctx context.Context) error {
			_, err := s.col.Patch(ctx, id, func(c *model.Connection) { *c = before })
			return err
		},
		Redo: func(ctx context.Context) error {
			_, err := s.col.Patch(ctx, id, func(c *model.Connection) { *c = after })
			return err
		},
	})
	return true, nil
}

// Delete 연결선 삭제
func (s *ConnectionStore) Delete(ctx context.Context, ids ...string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var removed []model.Connection
	for _, id := range ids {
		c, ok, err := s.col.Get(ctx, id)
		if err != nil {
			return 0, err
		}
		if ok {
			removed = append(removed, c)
		}
	}
	return s.deleteRecorded(ctx, removed)
}

// DeleteForShapes 양 끝 중 하나라도 shapeIDs에 속한 연결선 삭제
func (s *ConnectionStore) DeleteForShapes(ctx context.Context, shapeIDs ...string) (int, error) {
	set := make(map[string]struct{}, len(shapeIDs))
	for _, id := range shapeIDs {
		set[id] = struct{}{}
	}

	all, err := s.col.List(ctx)
	if err != nil {
		return 0, err
	}
	var doomed []model.Connection
	for _, c := range all {
		if c.Touches(set) {
			doomed = append(doomed, c)
		}
	}
	return s.deleteRecorded(ctx, doomed)
}

func (s *ConnectionStore) deleteRecorded(ctx context.Context, removed []model.Connection) (int, error) {
	if len(removed) == 0 {
		return 0, nil
	}
	ids := make([]string, len(removed))
	for i, c := range removed {
		ids[i] = c.ID
	}

	n, err := s.col.Delete(ctx, ids...)
	if err != nil {
		return 0, fmt.Errorf("delete connections: %w", err)
	}

	s.history.Record(history.Action{
		Label: "delete connections",
		Undo:  func(ctx context.Context) error { return s.col.Insert(ctx, removed...) },
		Redo: func(ctx context.Context) error {
			_, err := s.col.Delete(ctx, ids...)
			return err
		},
	})
	return n, nil
}
