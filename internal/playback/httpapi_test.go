package playback

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ako-systems/autoplayer/internal/clock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestHealthEndpoint(t *testing.T) {
	svc := NewService(nil, clock.NewLocalClock(), nil)
	api := NewHTTPAPI(svc)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/health", nil)
	api.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ok"`)
}

func TestPlayEndpointRequiresPathOrParts(t *testing.T) {
	svc := NewService(nil, clock.NewLocalClock(), nil)
	api := NewHTTPAPI(svc)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/play", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	api.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProgressReflectsIdleByDefault(t *testing.T) {
	svc := NewService(nil, clock.NewLocalClock(), nil)
	api := NewHTTPAPI(svc)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/progress", nil)
	api.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Idle")
}

func TestScheduleRejectsMissingPath(t *testing.T) {
	svc := NewService(nil, clock.NewLocalClock(), nil)
	api := NewHTTPAPI(svc)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/schedule", strings.NewReader(`{"base_unix_seconds": 0}`))
	req.Header.Set("Content-Type", "application/json")
	api.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
