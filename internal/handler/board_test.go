package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"coaching-backend/internal/attachment"
	"coaching-backend/internal/auth"
	"coaching-backend/internal/cache"
	"coaching-backend/internal/database"
	"coaching-backend/internal/document"
	"coaching-backend/internal/middleware"
	"coaching-backend/internal/model"
	"coaching-backend/internal/repository"
	"coaching-backend/internal/service"
	"coaching-backend/internal/storage"
)

type testEnv struct {
	db      *gorm.DB
	repo    *repository.BoardRepository
	hub     *BoardHub
	app     *fiber.App
	owner   model.User
	board   *model.Board
	tracker *attachment.Tracker
}

type fakeUploader struct {
	calls atomic.Int32
	fail  bool
}

func (u *fakeUploader) Upload(_ context.Context, boardID int64, f attachment.File, onProgress func(float64)) (string, error) {
	u.calls.Add(1)
	if _, err := io.ReadAll(f.Body); err != nil {
		return "", err
	}
	onProgress(0.5)
	if u.fail {
		return "", errors.New("bucket unavailable")
	}
	return "https://cdn.example.com/" + storage.ObjectKey(boardID, f.Name), nil
}

type fakeSigner struct{}

func (fakeSigner) GenerateUploadURL(boardID int64, fileName, contentType string) (*storage.PresignedUpload, error) {
	return &storage.PresignedUpload{
		URL:       "https://bucket.example.com/" + fileName + "?sig=1",
		Key:       storage.ObjectKey(boardID, fileName),
		ExpiresAt: time.Now().Add(15 * time.Minute),
	}, nil
}

func newTestEnv(t *testing.T, uploader attachment.Uploader) *testEnv {
	t.Helper()
	return newTestEnvWithActivity(t, uploader, nil)
}

func newTestEnvWithActivity(t *testing.T, uploader attachment.Uploader, activity *cache.RedisClient) *testEnv {
	t.Helper()
	db, err := database.Open(&database.Config{Driver: database.DriverSQLite, Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	env := &testEnv{db: db, repo: repository.NewBoardRepository(db)}
	env.owner = model.User{Email: "coach@example.com", Nickname: "coach"}
	require.NoError(t, db.Create(&env.owner).Error)
	ws := model.Workspace{Name: "Acme", OwnerID: env.owner.ID}
	require.NoError(t, db.Omit("Owner").Create(&ws).Error)
	env.board = &model.Board{WorkspaceID: ws.ID, Title: "Canvas", CreatedBy: env.owner.ID}
	require.NoError(t, env.repo.Create(context.Background(), env.board))

	env.hub = NewBoardHub(document.NewMemoryRegistry(), env.repo, HubOptions{})
	if uploader != nil {
		env.tracker = attachment.NewTracker(uploader, time.Second)
	}
	h := NewBoardHandler(env.repo, env.hub, BoardHandlerOptions{
		Tracker:  env.tracker,
		Signer:   fakeSigner{},
		Activity: activity,
	})

	members := service.NewMemberService(db)
	wsMiddleware := middleware.NewWorkspaceMiddleware(members)
	boardMiddleware := middleware.NewBoardMiddleware(env.repo, members)

	env.app = fiber.New()
	api := env.app.Group("/api", fakeAuth)
	api.Get("/workspaces/:workspaceId/boards", wsMiddleware.RequireMembershipOrOwner(), h.ListBoards)
	api.Post("/workspaces/:workspaceId/boards", wsMiddleware.RequireMembershipOrOwner(), h.CreateBoard)

	boards := api.Group("/boards/:boardId", boardMiddleware.RequireBoardAccess())
	boards.Get("", h.GetBoard)
	boards.Delete("", h.DeleteBoard)
	boards.Get("/scene", h.GetScene)
	boards.Post("/shapes", h.CreateShape)
	boards.Patch("/shapes/:shapeId", h.UpdateShape)
	boards.Delete("/shapes", h.DeleteShapes)
	boards.Post("/shapes/:shapeId/attachments", h.UploadAttachment)
	boards.Post("/connections", h.CreateConnection)
	boards.Delete("/connections/:connectionId", h.DeleteConnection)
	boards.Get("/export.svg", h.ExportSVG)
	boards.Get("/export.png", h.ExportPNG)
	boards.Post("/attachments/presign", h.PresignAttachment)
	boards.Get("/activity", h.GetActivity)
	return env
}

// fakeAuth X-User-Id 헤더로 인증을 대신한다
func fakeAuth(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Get("X-User-Id"), 10, 64)
	if err != nil {
		return c.SendStatus(fiber.StatusUnauthorized)
	}
	c.Locals("claims", &auth.Claims{UserID: id, Nickname: "tester"})
	c.Locals("userId", id)
	return c.Next()
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-User-Id", jsonInt(e.owner.ID))
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func (e *testEnv) boardPath(suffix string) string {
	return "/api/boards/" + jsonInt(e.board.ID) + suffix
}

func jsonInt(v int64) string {
	return strconv.FormatInt(v, 10)
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestBoardCRUD(t *testing.T) {
	env := newTestEnv(t, nil)
	wsPath := "/api/workspaces/" + jsonInt(env.board.WorkspaceID) + "/boards"

	resp := env.do(t, "POST", wsPath, CreateBoardRequest{Title: "Segments", Kind: model.BoardKindMarketSegments})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	created := decode[model.Board](t, resp)
	assert.Equal(t, model.BoardKindMarketSegments, created.Kind)

	resp = env.do(t, "POST", wsPath, CreateBoardRequest{Title: "Bad", Kind: "mindmap"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, "GET", wsPath, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	list := decode[struct {
		Total int `json:"total"`
	}](t, resp)
	assert.Equal(t, 2, list.Total)

	resp = env.do(t, "GET", env.boardPath(""), nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "Canvas", decode[model.Board](t, resp).Title)

	resp = env.do(t, "GET", "/api/boards/9999", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestBoardAccessDeniedForStranger(t *testing.T) {
	env := newTestEnv(t, nil)
	stranger := model.User{Email: "x@example.com", Nickname: "x"}
	require.NoError(t, env.db.Create(&stranger).Error)

	req := httptest.NewRequest("GET", env.boardPath("/scene"), nil)
	req.Header.Set("X-User-Id", jsonInt(stranger.ID))
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestShapeAndConnectionLifecycle(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.do(t, "POST", env.boardPath("/shapes"), CreateShapeRequest{Type: "hexagon"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, "POST", env.boardPath("/shapes"), CreateShapeRequest{ID: "a", Type: model.ShapeRect, X: 0, Y: 0})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	a := decode[model.Shape](t, resp)
	w, h := model.DefaultSize(model.ShapeRect)
	assert.Equal(t, w, a.Width)
	assert.Equal(t, h, a.Height)

	width := 200.0
	resp = env.do(t, "POST", env.boardPath("/shapes"), CreateShapeRequest{ID: "b", Type: model.ShapeRect, X: 400, Y: 0, Width: &width})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	x := 10.0
	resp = env.do(t, "PATCH", env.boardPath("/shapes/a"), UpdateShapeRequest{X: &x})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, 10.0, decode[model.Shape](t, resp).X)

	resp = env.do(t, "PATCH", env.boardPath("/shapes/ghost"), UpdateShapeRequest{X: &x})
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	resp = env.do(t, "POST", env.boardPath("/connections"), map[string]any{
		"from_shape_id": "a", "to_shape_id": "a",
		"from_anchor": map[string]float64{"x": 1, "y": 0.5},
		"to_anchor":   map[string]float64{"x": 0, "y": 0.5},
	})
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)

	resp = env.do(t, "POST", env.boardPath("/connections"), map[string]any{
		"from_shape_id": "a", "to_shape_id": "missing",
		"from_anchor": map[string]float64{"x": 1, "y": 0.5},
		"to_anchor":   map[string]float64{"x": 0, "y": 0.5},
	})
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)

	resp = env.do(t, "POST", env.boardPath("/connections"), map[string]any{
		"id":            "c1",
		"from_shape_id": "a", "to_shape_id": "b",
		"from_anchor": map[string]float64{"x": 1, "y": 0.5},
		"to_anchor":   map[string]float64{"x": 0, "y": 0.5},
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp = env.do(t, "GET", env.boardPath("/scene"), nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"c1"`)

	// 룸이 닫히면 DB에 반영된다
	assert.Equal(t, 0, env.hub.OpenRooms())
	snap, err := env.repo.LoadSnapshot(context.Background(), env.board.ID)
	require.NoError(t, err)
	assert.Len(t, snap.Shapes, 2)
	require.Len(t, snap.Connections, 1)

	resp = env.do(t, "DELETE", env.boardPath("/shapes"), DeleteShapesRequest{IDs: []string{"a"}})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	counts := decode[map[string]int](t, resp)
	assert.Equal(t, 1, counts["deleted_shapes"])
	assert.Equal(t, 1, counts["deleted_connections"])

	resp = env.do(t, "DELETE", env.boardPath("/connections/c1"), nil)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	snap, err = env.repo.LoadSnapshot(context.Background(), env.board.ID)
	require.NoError(t, err)
	assert.Len(t, snap.Shapes, 1)
	assert.Empty(t, snap.Connections)
}

func TestExport(t *testing.T) {
	env := newTestEnv(t, nil)
	resp := env.do(t, "POST", env.boardPath("/shapes"), CreateShapeRequest{Type: model.ShapeEllipse, X: 10, Y: 10})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp = env.do(t, "GET", env.boardPath("/export.svg?grid=true"), nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/svg+xml", resp.Header.Get("Content-Type"))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "<svg")

	resp = env.do(t, "GET", env.boardPath("/export.png?scale=2"), nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	body, err = io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(body, []byte("\x89PNG")))
}

func TestDeleteBoardWhileOpen(t *testing.T) {
	env := newTestEnv(t, nil)
	room, err := env.hub.Acquire(context.Background(), env.board.ID)
	require.NoError(t, err)

	resp := env.do(t, "DELETE", env.boardPath(""), nil)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	env.hub.Release(context.Background(), room)
	resp = env.do(t, "DELETE", env.boardPath(""), nil)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}

func multipartUpload(t *testing.T, env *testEnv, shapeID string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "persona.png")
	require.NoError(t, err)
	_, err = fw.Write([]byte("png-bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("preview_url", "blob:preview"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", env.boardPath("/shapes/"+shapeID+"/attachments"), &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-User-Id", jsonInt(env.owner.ID))
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestUploadAttachment(t *testing.T) {
	uploader := &fakeUploader{}
	env := newTestEnv(t, uploader)

	resp := env.do(t, "POST", env.boardPath("/shapes"), CreateShapeRequest{ID: "img", Type: model.ShapeImage})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp = multipartUpload(t, env, "ghost")
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp = multipartUpload(t, env, "img")
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode)

	env.tracker.Wait()
	assert.Eventually(t, func() bool { return env.hub.OpenRooms() == 0 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(1), uploader.calls.Load())

	snap, err := env.repo.LoadSnapshot(context.Background(), env.board.ID)
	require.NoError(t, err)
	require.Len(t, snap.Shapes, 1)
	img := snap.Shapes[0]
	assert.False(t, img.Uploading)
	assert.Equal(t, 1.0, img.Progress)
	assert.Equal(t, "blob:preview", img.PreviewURL)
	assert.True(t, strings.HasSuffix(img.URL, ".png"))
}

func TestUploadAttachmentNotConfigured(t *testing.T) {
	env := newTestEnv(t, nil)
	resp := multipartUpload(t, env, "img")
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}

func TestPresignAndActivity(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.do(t, "POST", env.boardPath("/attachments/presign"), PresignRequest{FileName: "deck.pdf"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, "POST", env.boardPath("/attachments/presign"), PresignRequest{FileName: "../deck.pdf", ContentType: "application/pdf"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	upload := decode[storage.PresignedUpload](t, resp)
	assert.Contains(t, upload.URL, "deck.pdf")
	assert.NotContains(t, upload.Key, "..")

	resp = env.do(t, "GET", env.boardPath("/activity"), nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	body := decode[map[string][]json.RawMessage](t, resp)
	assert.Empty(t, body["activities"])
}

func TestActivityLog(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	env := newTestEnvWithActivity(t, nil, cache.NewRedisClientFrom(client))

	resp := env.do(t, "POST", env.boardPath("/shapes"), CreateShapeRequest{ID: "a", Type: model.ShapeRect})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	resp = env.do(t, "POST", env.boardPath("/shapes"), CreateShapeRequest{ID: "b", Type: model.ShapeRect, X: 300})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp = env.do(t, "GET", env.boardPath("/activity?count=500"), nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	body := decode[map[string][]cache.Activity](t, resp)
	require.Len(t, body["activities"], 2)
	assert.Equal(t, "create", body["activities"][0].Action)
	assert.Equal(t, []string{"a"}, body["activities"][0].ShapeIDs)
	assert.Equal(t, env.owner.ID, body["activities"][1].UserID)

	resp = env.do(t, "GET", env.boardPath("/activity?count=1"), nil)
	body = decode[map[string][]cache.Activity](t, resp)
	require.Len(t, body["activities"], 1)
	assert.Equal(t, []string{"b"}, body["activities"][0].ShapeIDs)

	resp = env.do(t, "DELETE", env.boardPath(""), nil)
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	assert.False(t, mr.Exists("board:"+jsonInt(env.board.ID)+":activity"))
}
