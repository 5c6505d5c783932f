package interaction

import (
	"context"
	"strings"
	"time"

	"coaching-backend/internal/clipboard"
	"coaching-backend/internal/geometry"
	"coaching-backend/internal/model"

	"github.com/google/uuid"
)

// Key 키보드 명령 처리 (텍스트 입력 중인 키는 무시)
func (c *Controller) Key(ctx context.Context, ev KeyEvent) error {
	if ev.InTextInput {
		return nil
	}
	key := strings.ToLower(ev.Key)
	chord := ev.Mods.Ctrl || ev.Mods.Meta

	if chord {
		switch {
		case key == "z" && ev.Mods.Shift, key == "y":
			return c.Redo(ctx)
		case key == "z":
			return c.Undo(ctx)
		case key == "c":
			return c.Copy(ctx)
		case key == "x":
			return c.Cut(ctx)
		case key == "v":
			return c.Paste(ctx)
		case key == "d":
			return c.Duplicate(ctx)
		}
		return nil
	}

	switch key {
	case "g":
		c.grid = !c.grid
	case "delete", "backspace":
		return c.DeleteSelection(ctx)
	case "escape":
		c.Escape()
	}
	return nil
}

// Escape 진행 중인 제스처를 쓰기 없이 취소하고
// 선택, 연결선 선택, 배치 대기, 삭제 확인 대기를 모두 해제
func (c *Controller) Escape() {
	c.cancelGesture()
	c.selection = nil
	c.selectedConnection = ""
	c.placement = nil
	c.pendingDelete = nil
}

func (c *Controller) cancelGesture() {
	if g, ok := c.gesture.(*panGesture); ok {
		c.viewport.Pan = g.origin
	}
	c.gesture = nil
}

// Undo 마지막 단계 되돌리기
func (c *Controller) Undo(ctx context.Context) error {
	c.cancelGesture()
	return c.history.Undo(ctx)
}

// Redo 되돌린 단계 다시 적용
func (c *Controller) Redo(ctx context.Context) error {
	c.cancelGesture()
	return c.history.Redo(ctx)
}

// Copy 선택한 도형을 클립보드에 복사
func (c *Controller) Copy(ctx context.Context) error {
	shapes, err := c.selectedShapes(ctx)
	if err != nil || len(shapes) == 0 {
		return err
	}
	p, err := clipboard.NewPayload(shapes, c.now())
	if err != nil {
		return err
	}
	return c.clipboard.Write(ctx, p)
}

// Cut 선택 복사 후 DeleteSelection과 같은 방식으로 삭제
func (c *Controller) Cut(ctx context.Context) error {
	if err := c.Copy(ctx); err != nil {
		return err
	}
	c.selectedConnection = ""
	return c.requestShapeDelete(ctx)
}

// Paste 클립보드 도형을 커서 위치(캔버스 밖이면 뷰포트 중앙) 기준으로 삽입
// 붙여넣은 도형은 새 id를 받고 연결선은 복사되지 않는다
func (c *Controller) Paste(ctx context.Context) error {
	p, err := c.clipboard.Read(ctx)
	if err != nil || p == nil {
		return err
	}
	target := c.viewport.Center()
	if c.cursorInside {
		target = c.cursor
	}
	return c.insertClones(ctx, p.Shapes, target.Sub(p.Anchor))
}

// Duplicate 선택 도형을 오프셋만큼 옮겨 복제
func (c *Controller) Duplicate(ctx context.Context) error {
	shapes, err := c.selectedShapes(ctx)
	if err != nil || len(shapes) == 0 {
		return err
	}
	d := c.cfg.DuplicateOffset
	return c.insertClones(ctx, shapes, geometry.Point{X: d, Y: d})
}

func (c *Controller) insertClones(ctx context.Context, shapes []model.Shape, offset geometry.Point) error {
	clones := make([]model.Shape, len(shapes))
	for i, s := range shapes {
		clones[i] = cloneShape(s, offset)
	}
	inserted, err := c.board.Shapes.Insert(ctx, clones...)
	if err != nil {
		return err
	}
	c.selection = make([]string, len(inserted))
	for i, s := range inserted {
		c.selection[i] = s.ID
	}
	c.selectedConnection = ""
	return nil
}

// 새 id로 도형 복사. 복사본은 사용자 콘텐츠이므로 예시 플래그와 업로드 상태는 제거
func cloneShape(s model.Shape, offset geometry.Point) model.Shape {
	out := s.Clone()
	out.ID = uuid.NewString()
	out.X += offset.X
	out.Y += offset.Y
	out.IsExample = false
	out.Uploading = false
	out.CreatedAt = time.Time{}
	return out
}

// DeleteSelection 선택된 연결선이 있으면 연결선을, 없으면 선택 도형을 삭제
// 예시 도형은 ConfirmDelete를 기다리고 나머지는 즉시 삭제
func (c *Controller) DeleteSelection(ctx context.Context) error {
	if id := c.selectedConnection; id != "" {
		c.selectedConnection = ""
		_, err := c.board.Connections.Delete(ctx, id)
		return err
	}
	return c.requestShapeDelete(ctx)
}

func (c *Controller) requestShapeDelete(ctx context.Context) error {
	shapes, err := c.selectedShapes(ctx)
	if err != nil || len(shapes) == 0 {
		return err
	}
	ids := make([]string, len(shapes))
	needsConfirm := false
	for i, s := range shapes {
		ids[i] = s.ID
		needsConfirm = needsConfirm || s.IsExample
	}
	if needsConfirm {
		c.pendingDelete = ids
		return nil
	}
	return c.deleteShapes(ctx, ids)
}

// PendingDelete 삭제 확인 대기 중인 도형 id
func (c *Controller) PendingDelete() []string {
	return append([]string(nil), c.pendingDelete...)
}

// ConfirmDelete 확인 대기 도형 삭제
func (c *Controller) ConfirmDelete(ctx context.Context) error {
	ids := c.pendingDelete
	c.pendingDelete = nil
	if len(ids) == 0 {
		return nil
	}
	return c.deleteShapes(ctx, ids)
}

// CancelDelete 삭제 확인 취소
func (c *Controller) CancelDelete() {
	c.pendingDelete = nil
}

func (c *Controller) deleteShapes(ctx context.Context, ids []string) error {
	_, _, err := c.board.DeleteShapes(ctx, ids...)
	c.selection = nil
	return err
}
