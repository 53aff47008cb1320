package handler_test

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/presence-go-api/internal/config"
	"github.com/noah-isme/presence-go-api/internal/handler"
)

func TestHealthCheck(t *testing.T) {
	cfg := config.Config{
		AppName:    "Presence API",
		AppEnv:     "test",
		Timezone:   "Africa/Dakar",
		LateCutoff: "08:15",
	}

	app := fiber.New()
	app.Get("/api/v1/health", handler.HealthCheck(cfg))

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var payload handler.HealthResponse
	env := readEnvelope(t, resp, &payload)
	assert.True(t, env.Success)
	assert.Equal(t, "ok", payload.Status)
	assert.Equal(t, cfg.AppName, payload.Service)
	assert.Equal(t, cfg.AppEnv, payload.Environment)
	assert.Equal(t, "Africa/Dakar", payload.Timezone)
	assert.Equal(t, "08:15", payload.LateCutoff)
	assert.WithinDuration(t, time.Now().UTC(), payload.Timestamp, 2*time.Second)
}

func TestMetricsEndpointExposesScanCounters(t *testing.T) {
	env := newTestApp(t)

	resp := env.do(t, "GET", "/metrics", "", nil, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	require.Contains(t, string(body), "presence_live_feed_clients_active")
	require.Contains(t, string(body), "presence_sse_clients_active")
}
