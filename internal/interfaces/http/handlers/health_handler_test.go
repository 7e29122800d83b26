package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DailyForkCast/osint-foresight-sub003/pkg/errors"
)

func healthRouter(h *HealthHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/healthz", h.Liveness)
	r.GET("/readyz", h.Readiness)
	return r
}

func TestLivenessAlwaysHealthy(t *testing.T) {
	r := healthRouter(NewHealthHandler("1.2.3"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var body LivenessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "alive", body.Status)
	assert.Equal(t, "1.2.3", body.Version)
	assert.NotEmpty(t, body.Uptime)
}

func TestReadinessWithoutCheckersIsReady(t *testing.T) {
	r := healthRouter(NewHealthHandler("test"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReadinessReportsComponents(t *testing.T) {
	healthy := CheckerFunc{Component: "postgres", Fn: func(ctx context.Context) error { return nil }}
	r := healthRouter(NewHealthHandler("test", healthy))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var body ReadinessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ready", body.Status)
	assert.Equal(t, "healthy", body.Components["postgres"].Status)
	assert.NotEmpty(t, body.Components["postgres"].Latency)
}

func TestReadinessFailsWhenAnyComponentIsDown(t *testing.T) {
	healthy := CheckerFunc{Component: "postgres", Fn: func(ctx context.Context) error { return nil }}
	broken := CheckerFunc{Component: "redis", Fn: func(ctx context.Context) error {
		return errors.Internal("connection refused")
	}}
	r := healthRouter(NewHealthHandler("test", healthy, broken))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body ReadinessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "not_ready", body.Status)
	assert.Equal(t, "healthy", body.Components["postgres"].Status)
	assert.Equal(t, "unhealthy", body.Components["redis"].Status)
	assert.Contains(t, body.Components["redis"].Error, "connection refused")
}
