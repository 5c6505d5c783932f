package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"coaching-backend/internal/model"
)

var (
	// ErrBoardNotFound 보드 없음
	ErrBoardNotFound = errors.New("board not found")
	// ErrInvalidKind 지원하지 않는 보드 종류
	ErrInvalidKind = errors.New("invalid board kind")
)

// Snapshot 보드의 도형/연결선 전체 상태
type Snapshot struct {
	Shapes      []model.Shape
	Connections []model.Connection
}

// BoardRepository 보드 메타데이터와 캔버스 스냅샷 영속화
type BoardRepository struct {
	db *gorm.DB
}

// NewBoardRepository BoardRepository 생성
func NewBoardRepository(db *gorm.DB) *BoardRepository {
	return &BoardRepository{db: db}
}

// Create 보드 생성
func (r *BoardRepository) Create(ctx context.Context, board *model.Board) error {
	if board.Kind == "" {
		board.Kind = model.BoardKindFreeform
	}
	if !board.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidKind, board.Kind)
	}
	return r.db.WithContext(ctx).Omit("Workspace", "Shapes", "Connections").Create(board).Error
}

// GetByID 보드 조회
func (r *BoardRepository) GetByID(ctx context.Context, id int64) (*model.Board, error) {
	var board model.Board
	if err := r.db.WithContext(ctx).First(&board, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBoardNotFound
		}
		return nil, err
	}
	return &board, nil
}

// ListByWorkspace 워크스페이스의 보드 목록 (최근 수정 순)
func (r *BoardRepository) ListByWorkspace(ctx context.Context, workspaceID int64) ([]model.Board, error) {
	var boards []model.Board
	err := r.db.WithContext(ctx).
		Where("workspace_id = ?", workspaceID).
		Order("updated_at DESC, id DESC").
		Find(&boards).Error
	return boards, err
}

// Delete 보드와 캔버스 데이터 삭제
func (r *BoardRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("board_id = ?", id).Delete(&model.Connection{}).Error; err != nil {
			return err
		}
		if err := tx.Where("board_id = ?", id).Delete(&model.Shape{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&model.Board{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrBoardNotFound
		}
		return nil
	})
}

// LoadSnapshot 저장된 도형(쌓임 순서)과 연결선 조회
func (r *BoardRepository) LoadSnapshot(ctx context.Context, boardID int64) (Snapshot, error) {
	var snap Snapshot
	db := r.db.WithContext(ctx)
	if err := db.Where("board_id = ?", boardID).
		Order("z_index ASC, created_at ASC").
		Find(&snap.Shapes).Error; err != nil {
		return Snapshot{}, fmt.Errorf("load shapes: %w", err)
	}
	if err := db.Where("board_id = ?", boardID).
		Order("created_at ASC, id ASC").
		Find(&snap.Connections).Error; err != nil {
		return Snapshot{}, fmt.Errorf("load connections: %w", err)
	}
	return snap, nil
}

// SaveSnapshot 보드의 캔버스 상태를 통째로 교체 (단일 트랜잭션)
// 도형의 z_index는 슬라이스 순서로 다시 매긴다
func (r *BoardRepository) SaveSnapshot(ctx context.Context, boardID int64, snap Snapshot) error {
	shapes := make([]model.Shape, len(snap.Shapes))
	for i, s := range snap.Shapes {
		s.BoardID = boardID
		s.ZIndex = i
		shapes[i] = s
	}
	conns := make([]model.Connection, len(snap.Connections))
	for i, c := range snap.Connections {
		c.BoardID = boardID
		conns[i] = c
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("board_id = ?", boardID).Delete(&model.Connection{}).Error; err != nil {
			return err
		}
		if err := tx.Where("board_id = ?", boardID).Delete(&model.Shape{}).Error; err != nil {
			return err
		}
		if len(shapes) > 0 {
			if err := tx.CreateInBatches(shapes, 200).Error; err != nil {
				return fmt.Errorf("save shapes: %w", err)
			}
		}
		if len(conns) > 0 {
			if err := tx.CreateInBatches(conns, 200).Error; err != nil {
				return fmt.Errorf("save connections: %w", err)
			}
		}
		return tx.Model(&model.Board{}).Where("id = ?", boardID).Update("updated_at", time.Now()).Error
	})
}
