package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"coaching-backend/internal/database"
	"coaching-backend/internal/geometry"
	"coaching-backend/internal/model"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(&database.Config{Driver: database.DriverSQLite, Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func seedBoard(t *testing.T, db *gorm.DB, repo *BoardRepository) *model.Board {
	t.Helper()
	user := model.User{Email: "coach@example.com", Nickname: "coach"}
	require.NoError(t, db.Create(&user).Error)
	ws := model.Workspace{Name: "Acme", OwnerID: user.ID}
	require.NoError(t, db.Omit("Owner").Create(&ws).Error)

	board := &model.Board{WorkspaceID: ws.ID, Title: "VPC", Kind: model.BoardKindValueProposition, CreatedBy: user.ID}
	require.NoError(t, repo.Create(context.Background(), board))
	return board
}

func TestCreateAndGet(t *testing.T) {
	db := openTestDB(t)
	repo := NewBoardRepository(db)
	board := seedBoard(t, db, repo)
	require.NotZero(t, board.ID)

	got, err := repo.GetByID(context.Background(), board.ID)
	require.NoError(t, err)
	assert.Equal(t, "VPC", got.Title)
	assert.Equal(t, model.BoardKindValueProposition, got.Kind)

	_, err = repo.GetByID(context.Background(), board.ID+100)
	assert.ErrorIs(t, err, ErrBoardNotFound)
}

func TestCreateDefaultsAndValidatesKind(t *testing.T) {
	db := openTestDB(t)
	repo := NewBoardRepository(db)
	board := seedBoard(t, db, repo)

	free := &model.Board{WorkspaceID: board.WorkspaceID, Title: "Scratch", CreatedBy: board.CreatedBy}
	require.NoError(t, repo.Create(context.Background(), free))
	assert.Equal(t, model.BoardKindFreeform, free.Kind)

	bad := &model.Board{WorkspaceID: board.WorkspaceID, Title: "x", Kind: "mindmap", CreatedBy: board.CreatedBy}
	assert.ErrorIs(t, repo.Create(context.Background(), bad), ErrInvalidKind)

	boards, err := repo.ListByWorkspace(context.Background(), board.WorkspaceID)
	require.NoError(t, err)
	assert.Len(t, boards, 2)
}

func TestSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewBoardRepository(db)
	board := seedBoard(t, db, repo)

	top := model.Shape{ID: "s-top", Type: model.ShapeRect, X: 10, Y: 20, Width: 100, Height: 80}
	bottom := model.Shape{ID: "s-bottom", Type: model.ShapeCard, Subtype: model.CardPain, X: 300, Y: 200, Width: 220, Height: 140, IsExample: true}
	require.NoError(t, bottom.SetKind(&model.CardKind{Subtype: model.CardPain, Title: "Manual invoicing"}))
	conn := model.Connection{
		ID:          "c-1",
		FromShapeID: "s-bottom",
		ToShapeID:   "s-top",
		FromAnchor:  geometry.Anchor{X: 0, Y: 0.5},
		ToAnchor:    geometry.Anchor{X: 1, Y: 0.25},
		FromSide:    geometry.SideLeft,
		Style:       model.ConnectionOrthogonal,
	}

	require.NoError(t, repo.SaveSnapshot(ctx, board.ID, Snapshot{
		Shapes:      []model.Shape{bottom, top},
		Connections: []model.Connection{conn},
	}))

	snap, err := repo.LoadSnapshot(ctx, board.ID)
	require.NoError(t, err)
	require.Len(t, snap.Shapes, 2)
	assert.Equal(t, "s-bottom", snap.Shapes[0].ID)
	assert.Equal(t, "s-top", snap.Shapes[1].ID)
	assert.Equal(t, 1, snap.Shapes[1].ZIndex)
	assert.Equal(t, board.ID, snap.Shapes[0].BoardID)
	assert.True(t, snap.Shapes[0].IsExample)
	assert.Equal(t, "Manual invoicing", snap.Shapes[0].Label())
	assert.Equal(t, geometry.Rect{X: 10, Y: 20, Width: 100, Height: 80}, snap.Shapes[1].Bounds())

	require.Len(t, snap.Connections, 1)
	got := snap.Connections[0]
	assert.Equal(t, conn.FromAnchor, got.FromAnchor)
	assert.Equal(t, conn.ToAnchor, got.ToAnchor)
	assert.Equal(t, geometry.SideLeft, got.FromSide)
	assert.Equal(t, geometry.SideRight, got.ResolvedToSide())
}

func TestSaveSnapshotReplaces(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewBoardRepository(db)
	board := seedBoard(t, db, repo)

	first := Snapshot{Shapes: []model.Shape{
		{ID: "a", Type: model.ShapeRect, Width: 100, Height: 100},
		{ID: "b", Type: model.ShapeRect, Width: 100, Height: 100},
	}}
	require.NoError(t, repo.SaveSnapshot(ctx, board.ID, first))
	require.NoError(t, repo.SaveSnapshot(ctx, board.ID, Snapshot{Shapes: first.Shapes[1:]}))

	snap, err := repo.LoadSnapshot(ctx, board.ID)
	require.NoError(t, err)
	require.Len(t, snap.Shapes, 1)
	assert.Equal(t, "b", snap.Shapes[0].ID)
	assert.Equal(t, 0, snap.Shapes[0].ZIndex)

	require.NoError(t, repo.SaveSnapshot(ctx, board.ID, Snapshot{}))
	snap, err = repo.LoadSnapshot(ctx, board.ID)
	require.NoError(t, err)
	assert.Empty(t, snap.Shapes)
	assert.Empty(t, snap.Connections)
}

func TestDeleteBoard(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewBoardRepository(db)
	board := seedBoard(t, db, repo)
	require.NoError(t, repo.SaveSnapshot(ctx, board.ID, Snapshot{Shapes: []model.Shape{{ID: "a", Type: model.ShapeRect, Width: 100, Height: 100}}}))

	require.NoError(t, repo.Delete(ctx, board.ID))
	_, err := repo.GetByID(ctx, board.ID)
	assert.ErrorIs(t, err, ErrBoardNotFound)

	var count int64
	db.Model(&model.Shape{}).Where("board_id = ?", board.ID).Count(&count)
	assert.Zero(t, count)

	assert.ErrorIs(t, repo.Delete(ctx, board.ID), ErrBoardNotFound)
}
