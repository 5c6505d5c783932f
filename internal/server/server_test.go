package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coaching-backend/internal/auth"
	"coaching-backend/internal/config"
	"coaching-backend/internal/database"
	"coaching-backend/internal/model"
)

func newTestServer(t *testing.T) (*Server, *auth.JWTManager, model.User) {
	t.Helper()
	db, err := database.Open(&database.Config{Driver: database.DriverSQLite, Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	user := model.User{Email: "coach@example.com", Nickname: "coach"}
	require.NoError(t, db.Create(&user).Error)

	cfg := &config.Config{
		Server:   config.ServerConfig{Port: ":0", ReadTimeout: time.Second, WriteTimeout: time.Second},
		CORS:     config.CORSConfig{AllowOrigins: "*", AllowHeaders: "Origin, Content-Type, Accept, Authorization"},
		Auth:     config.AuthConfig{JWTSecret: "test-secret", AccessTokenExpiry: time.Hour},
		Document: config.DocumentConfig{Backend: "memory"},
		Canvas:   config.LoadCanvas(),
		Presence: config.PresenceConfig{TTL: time.Minute},
	}
	s := New(cfg, db)
	s.SetupMiddleware()
	s.SetupRoutes()
	return s, auth.NewJWTManager(cfg.Auth.JWTSecret, time.Hour), user
}

func call(t *testing.T, s *Server, method, path, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestHealthEndpoint(t *testing.T) {
	s, _, _ := newTestServer(t)
	resp := call(t, s, "GET", "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestBoardFlowThroughRoutes(t *testing.T) {
	s, jwt, user := newTestServer(t)
	token, err := jwt.GenerateAccessToken(user.ID, user.Email, user.Nickname)
	require.NoError(t, err)

	resp := call(t, s, "GET", "/api/workspaces", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = call(t, s, "POST", "/api/workspaces", token, map[string]any{"name": "Acme"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var ws struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ws))

	wsID := strconv.FormatInt(ws.ID, 10)
	resp = call(t, s, "POST", "/api/workspaces/"+wsID+"/boards", token, map[string]any{"title": "Value Proposition", "kind": "value_proposition"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var board model.Board
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&board))

	boardPath := "/api/boards/" + strconv.FormatInt(board.ID, 10)
	resp = call(t, s, "POST", boardPath+"/shapes", token, map[string]any{"type": "card", "subtype": "gain", "x": 40, "y": 40})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = call(t, s, "GET", boardPath+"/scene", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var scene struct {
		Shapes []model.Shape `json:"shapes"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&scene))
	assert.Len(t, scene.Shapes, 1)

	resp = call(t, s, "POST", boardPath+"/attachments/presign", token, map[string]any{"file_name": "a.png", "content_type": "image/png"})
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	other, err := jwt.GenerateAccessToken(user.ID+100, "x@example.com", "x")
	require.NoError(t, err)
	resp = call(t, s, "GET", boardPath+"/scene", other, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestBoardSocketRequiresUpgrade(t *testing.T) {
	s, _, _ := newTestServer(t)
	resp := call(t, s, "GET", "/ws/boards/1", "", nil)
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
}
