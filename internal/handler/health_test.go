package handler

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coaching-backend/internal/cache"
)

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t, nil)
	mr := miniredis.RunT(t)
	rc := cache.NewRedisClientFrom(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	h := NewHealthHandler(env.db, rc, env.hub)
	app := fiber.New()
	app.Get("/health", h.Check)
	app.Get("/ready", h.Readiness)

	resp, err := app.Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var body HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "healthy", body.Checks["redis"].Status)

	mr.Close()
	resp, err = app.Test(httptest.NewRequest("GET", "/health", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "degraded", body.Status)

	resp, err = app.Test(httptest.NewRequest("GET", "/ready", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestHealthWithoutRedis(t *testing.T) {
	env := newTestEnv(t, nil)
	app := fiber.New()
	app.Get("/health", NewHealthHandler(env.db, nil, nil).Check)

	resp, err := app.Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)
	var body HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "not_configured", body.Checks["redis"].Status)
}
