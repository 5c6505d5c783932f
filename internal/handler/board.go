package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/datatypes"

	"coaching-backend/internal/attachment"
	"coaching-backend/internal/auth"
	"coaching-backend/internal/cache"
	"coaching-backend/internal/middleware"
	"coaching-backend/internal/model"
	"coaching-backend/internal/render"
	"coaching-backend/internal/repository"
	"coaching-backend/internal/storage"
	"coaching-backend/internal/store"
)

// UploadSigner Presigned 업로드 URL 발급자 (storage.S3Service)
type UploadSigner interface {
	GenerateUploadURL(boardID int64, fileName, contentType string) (*storage.PresignedUpload, error)
}

// BoardHandler 보드 REST 핸들러
type BoardHandler struct {
	repo     *repository.BoardRepository
	hub      *BoardHub
	tracker  *attachment.Tracker // nil이면 첨부 업로드 비활성
	signer   UploadSigner        // nil이면 presign 비활성
	activity *cache.RedisClient  // nil이면 활동 로그 비활성
}

// BoardHandlerOptions BoardHandler 선택 의존성
type BoardHandlerOptions struct {
	Tracker  *attachment.Tracker
	Signer   UploadSigner
	Activity *cache.RedisClient
}

// NewBoardHandler BoardHandler 생성
func NewBoardHandler(repo *repository.BoardRepository, hub *BoardHub, opts BoardHandlerOptions) *BoardHandler {
	return &BoardHandler{
		repo:     repo,
		hub:      hub,
		tracker:  opts.Tracker,
		signer:   opts.Signer,
		activity: opts.Activity,
	}
}

// CreateBoardRequest 보드 생성 요청
type CreateBoardRequest struct {
	Title string          `json:"title"`
	Kind  model.BoardKind `json:"kind,omitempty"`
}

// CreateShapeRequest 도형 생성 요청. 크기를 생략하면 타입 기본 크기
type CreateShapeRequest struct {
	ID        string            `json:"id,omitempty"`
	Type      model.ShapeType   `json:"type"`
	Subtype   model.CardSubtype `json:"subtype,omitempty"`
	X         float64           `json:"x"`
	Y         float64           `json:"y"`
	Width     *float64          `json:"width,omitempty"`
	Height    *float64          `json:"height,omitempty"`
	Payload   json.RawMessage   `json:"payload,omitempty"`
	IsExample bool              `json:"is_example"`
}

// UpdateShapeRequest 도형 부분 수정 요청
type UpdateShapeRequest struct {
	X       *float64           `json:"x,omitempty"`
	Y       *float64           `json:"y,omitempty"`
	Width   *float64           `json:"width,omitempty"`
	Height  *float64           `json:"height,omitempty"`
	Subtype *model.CardSubtype `json:"subtype,omitempty"`
	Payload json.RawMessage    `json:"payload,omitempty"`
}

// DeleteShapesRequest 도형 일괄 삭제 요청
type DeleteShapesRequest struct {
	IDs []string `json:"ids"`
}

// PresignRequest Presigned URL 요청
type PresignRequest struct {
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
}

// ========================================
// 보드
// ========================================

// ListBoards 워크스페이스 보드 목록 (RequireMembershipOrOwner 뒤에서 호출)
func (h *BoardHandler) ListBoards(c *fiber.Ctx) error {
	workspaceID, ok := c.Locals("workspaceID").(int64)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid workspace id"})
	}

	boards, err := h.repo.ListByWorkspace(c.UserContext(), workspaceID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to list boards",
		})
	}
	return c.JSON(fiber.Map{
		"boards": boards,
		"total":  len(boards),
	})
}

// CreateBoard 보드 생성 (RequireMembershipOrOwner 뒤에서 호출)
func (h *BoardHandler) CreateBoard(c *fiber.Ctx) error {
	claims, err := auth.GetClaimsFromContext(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}
	workspaceID, ok := c.Locals("workspaceID").(int64)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid workspace id"})
	}

	var req CreateBoardRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	req.Title = sanitizeString(req.Title)
	if req.Title == "" || len(req.Title) > 200 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "title must be between 1 and 200 characters",
		})
	}

	board := &model.Board{
		WorkspaceID: workspaceID,
		Title:       req.Title,
		Kind:        req.Kind,
		CreatedBy:   claims.UserID,
	}
	if err := h.repo.Create(c.UserContext(), board); err != nil {
		if errors.Is(err, repository.ErrInvalidKind) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to create board",
		})
	}
	return c.Status(fiber.StatusCreated).JSON(board)
}

// GetBoard 보드 메타데이터 조회 (RequireBoardAccess 뒤에서 호출)
func (h *BoardHandler) GetBoard(c *fiber.Ctx) error {
	board, ok := middleware.GetBoardFromContext(c)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "board not found"})
	}
	return c.JSON(board)
}

// DeleteBoard 보드 삭제. 편집 중인 보드는 삭제할 수 없다
func (h *BoardHandler) DeleteBoard(c *fiber.Ctx) error {
	boardID, ok := c.Locals("boardID").(int64)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid board id"})
	}
	if h.hub.IsOpen(boardID) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "board is being edited",
		})
	}
	if err := h.repo.Delete(c.UserContext(), boardID); err != nil {
		if errors.Is(err, repository.ErrBoardNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "board not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to delete board",
		})
	}
	if h.activity != nil {
		if _, err := h.activity.FlushBoard(c.UserContext(), boardID); err != nil {
			log.Printf("[Board] Failed to flush activity for board %d: %v", boardID, err)
		}
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ========================================
// 도형 / 연결선
// ========================================

// withBoard 요청 동안 보드 룸을 열어 둔다
func (h *BoardHandler) withBoard(c *fiber.Ctx, fn func(ctx context.Context, board *store.Board) error) error {
	boardID, ok := c.Locals("boardID").(int64)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid board id"})
	}

	ctx := c.UserContext()
	room, err := h.hub.Acquire(ctx, boardID)
	if err != nil {
		log.Printf("[Board] open board %d failed: %v", boardID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "board unavailable",
		})
	}
	defer h.hub.Release(ctx, room)

	return fn(ctx, h.hub.Board(room, nil))
}

// GetScene 라우팅된 연결선을 포함한 보드 장면
func (h *BoardHandler) GetScene(c *fiber.Ctx) error {
	scene, err := h.scene(c.UserContext(), c)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to build scene"})
	}
	return c.JSON(scene)
}

func (h *BoardHandler) scene(ctx context.Context, c *fiber.Ctx) (render.Scene, error) {
	boardID, ok := c.Locals("boardID").(int64)
	if !ok {
		return render.Scene{}, errors.New("missing board id")
	}
	room, err := h.hub.Acquire(ctx, boardID)
	if err != nil {
		return render.Scene{}, err
	}
	defer h.hub.Release(ctx, room)
	return room.Scene(ctx)
}

// CreateShape 도형 추가
func (h *BoardHandler) CreateShape(c *fiber.Ctx) error {
	var req CreateShapeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if !req.Type.Valid() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": fmt.Sprintf("unknown shape type %q", req.Type),
		})
	}

	w, hgt := model.DefaultSize(req.Type)
	if req.Width != nil {
		w = *req.Width
	}
	if req.Height != nil {
		hgt = *req.Height
	}
	shape := model.Shape{
		ID:        req.ID,
		Type:      req.Type,
		Subtype:   req.Subtype,
		X:         req.X,
		Y:         req.Y,
		Width:     w,
		Height:    hgt,
		IsExample: req.IsExample,
	}
	if len(req.Payload) > 0 {
		shape.Payload = datatypes.JSON(req.Payload)
	}

	return h.withBoard(c, func(ctx context.Context, board *store.Board) error {
		inserted, err := board.Shapes.Insert(ctx, shape)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create shape"})
		}
		h.record(ctx, c, "create", inserted[0].ID)
		return c.Status(fiber.StatusCreated).JSON(inserted[0])
	})
}

// UpdateShape 도형 부분 수정. 없는 도형은 204 (no-op)
func (h *BoardHandler) UpdateShape(c *fiber.Ctx) error {
	shapeID := c.Params("shapeId")
	var req UpdateShapeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	return h.withBoard(c, func(ctx context.Context, board *store.Board) error {
		ok, err := board.Shapes.Patch(ctx, shapeID, func(s *model.Shape) {
			if req.X != nil {
				s.X = *req.X
			}
			if req.Y != nil {
				s.Y = *req.Y
			}
			if req.Width != nil {
				s.Width = *req.Width
			}
			if req.Height != nil {
				s.Height = *req.Height
			}
			if req.Subtype != nil {
				s.Subtype = *req.Subtype
			}
			if len(req.Payload) > 0 {
				s.Payload = datatypes.JSON(req.Payload)
			}
		})
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to update shape"})
		}
		if !ok {
			return c.SendStatus(fiber.StatusNoContent)
		}

		shape, _, err := board.Shapes.Get(ctx, shapeID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load shape"})
		}
		h.record(ctx, c, "update", shapeID)
		return c.JSON(shape)
	})
}

// DeleteShapes 도형과 연결된 연결선 삭제
func (h *BoardHandler) DeleteShapes(c *fiber.Ctx) error {
	var req DeleteShapesRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if len(req.IDs) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "ids must not be empty"})
	}

	return h.withBoard(c, func(ctx context.Context, board *store.Board) error {
		shapes, conns, err := board.DeleteShapes(ctx, req.IDs...)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to delete shapes"})
		}
		if shapes > 0 {
			h.record(ctx, c, "delete", req.IDs...)
		}
		return c.JSON(fiber.Map{
			"deleted_shapes":      shapes,
			"deleted_connections": conns,
		})
	})
}

// CreateConnection 연결선 추가
func (h *BoardHandler) CreateConnection(c *fiber.Ctx) error {
	var req model.Connection
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	return h.withBoard(c, func(ctx context.Context, board *store.Board) error {
		conn, err := board.Connections.Create(ctx, req)
		if errors.Is(err, store.ErrSelfLoop) || errors.Is(err, store.ErrMissingShape) {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
		}
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create connection"})
		}
		h.record(ctx, c, "connect", conn.FromShapeID, conn.ToShapeID)
		return c.Status(fiber.StatusCreated).JSON(conn)
	})
}

// DeleteConnection 연결선 삭제. 없는 연결선도 204
func (h *BoardHandler) DeleteConnection(c *fiber.Ctx) error {
	connID := c.Params("connectionId")
	return h.withBoard(c, func(ctx context.Context, board *store.Board) error {
		if _, err := board.Connections.Delete(ctx, connID); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to delete connection"})
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}

// ========================================
// 내보내기
// ========================================

func exportOptions(c *fiber.Ctx) render.Options {
	opts := render.DefaultOptions()
	if scale := c.QueryFloat("scale", 0); scale > 0 {
		opts.Scale = scale
	}
	opts.Grid = c.QueryBool("grid", false)
	return opts
}

// ExportSVG 보드를 SVG로 내보내기
func (h *BoardHandler) ExportSVG(c *fiber.Ctx) error {
	return h.export(c, "image/svg+xml", "svg", render.WriteSVG)
}

// ExportPNG 보드를 PNG로 내보내기
func (h *BoardHandler) ExportPNG(c *fiber.Ctx) error {
	return h.export(c, "image/png", "png", render.WritePNG)
}

func (h *BoardHandler) export(c *fiber.Ctx, contentType, ext string, write func(io.Writer, render.Scene, render.Options) error) error {
	scene, err := h.scene(c.UserContext(), c)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to build scene"})
	}

	var buf bytes.Buffer
	if err := write(&buf, scene, exportOptions(c)); err != nil {
		log.Printf("[Board] %s export failed: %v", ext, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "export failed"})
	}

	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="board-%d.%s"`, c.Locals("boardID").(int64), ext))
	return c.Send(buf.Bytes())
}

// ========================================
// 첨부
// ========================================

// UploadAttachment 도형에 파일 첨부 (multipart "file", 선택 "preview_url")
// 업로드는 백그라운드로 진행되고 도형의 uploading/progress로 보인다
func (h *BoardHandler) UploadAttachment(c *fiber.Ctx) error {
	if h.tracker == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "attachment upload not configured",
		})
	}
	boardID, ok := c.Locals("boardID").(int64)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid board id"})
	}
	shapeID := c.Params("shapeId")

	fh, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "file is required"})
	}
	src, err := fh.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "failed to read file"})
	}
	// 요청이 끝나면 multipart 버퍼가 재사용되므로 메모리로 복사
	data, err := io.ReadAll(src)
	src.Close()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "failed to read file"})
	}

	contentType := fh.Header.Get(fiber.HeaderContentType)
	if contentType == "" {
		contentType = fiber.MIMEOctetStream
	}
	file := attachment.File{
		Name:        filepath.Base(fh.Filename),
		ContentType: contentType,
		Size:        int64(len(data)),
		Body:        bytes.NewReader(data),
	}

	ctx := c.UserContext()
	room, err := h.hub.Acquire(ctx, boardID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "board unavailable"})
	}
	board := h.hub.Board(room, nil)

	if _, found, err := board.Shapes.Get(ctx, shapeID); err != nil || !found {
		h.hub.Release(ctx, room)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load shape"})
		}
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "shape not found"})
	}

	// 업로드가 끝날 때까지 룸을 유지
	release := func() { h.hub.Release(context.Background(), room) }
	if err := h.tracker.StartThen(ctx, board.Shapes, boardID, shapeID, file, c.FormValue("preview_url"), release); err != nil {
		h.hub.Release(ctx, room)
		if errors.Is(err, attachment.ErrNoUploader) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "attachment upload not configured"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to start upload"})
	}

	h.record(ctx, c, "attach", shapeID)
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"shape_id": shapeID,
		"status":   "uploading",
	})
}

// PresignAttachment 클라이언트 직접 업로드용 Presigned URL 발급
func (h *BoardHandler) PresignAttachment(c *fiber.Ctx) error {
	if h.signer == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "storage service not configured",
		})
	}
	boardID, ok := c.Locals("boardID").(int64)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid board id"})
	}

	var req PresignRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	req.FileName = strings.TrimSpace(req.FileName)
	if req.FileName == "" || req.ContentType == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "file_name and content_type are required",
		})
	}

	upload, err := h.signer.GenerateUploadURL(boardID, filepath.Base(req.FileName), req.ContentType)
	if err != nil {
		log.Printf("[Board] presign failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to generate upload url",
		})
	}
	return c.JSON(upload)
}

// ========================================
// 활동 로그
// ========================================

// GetActivity 최근 보드 활동 (?count=50)
func (h *BoardHandler) GetActivity(c *fiber.Ctx) error {
	if h.activity == nil {
		return c.JSON(fiber.Map{"activities": []cache.Activity{}})
	}
	boardID, ok := c.Locals("boardID").(int64)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid board id"})
	}

	count := c.QueryInt("count", 50)
	switch {
	case count <= 0:
		count = 50
	case count > 200:
		count = 200
	}
	activities, err := h.activity.GetRecentActivity(c.UserContext(), boardID, int64(count))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load activity"})
	}
	if activities == nil {
		activities = []cache.Activity{}
	}
	return c.JSON(fiber.Map{"activities": activities})
}

func (h *BoardHandler) record(ctx context.Context, c *fiber.Ctx, action string, shapeIDs ...string) {
	if h.activity == nil {
		return
	}
	claims, err := auth.GetClaimsFromContext(c)
	if err != nil {
		return
	}
	err = h.activity.AddActivity(ctx, &cache.Activity{
		BoardID:   c.Locals("boardID").(int64),
		UserID:    claims.UserID,
		Nickname:  claims.Nickname,
		Action:    action,
		ShapeIDs:  shapeIDs,
		Timestamp: time.Now(),
	})
	if err != nil {
		log.Printf("[Board] activity log failed: %v", err)
	}
}
