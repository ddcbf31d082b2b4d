package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Abdullah0x0/dreamdirector/internal/services"
	"github.com/Abdullah0x0/dreamdirector/internal/worker"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type fixedStats worker.Stats

func (s fixedStats) Stats() worker.Stats { return worker.Stats(s) }

func TestHealthHandler_ServeHTTP(t *testing.T) {
	tests := []struct {
		name           string
		cache          services.HealthChecker
		expectedStatus int
		expectedHealth string
		expectedCache  string
	}{
		{
			name:           "cache disabled",
			cache:          nil,
			expectedStatus: http.StatusOK,
			expectedHealth: "healthy",
			expectedCache:  "disabled",
		},
		{
			name:           "healthy cache",
			cache:          services.NewMemoryCache(),
			expectedStatus: http.StatusOK,
			expectedHealth: "healthy",
			expectedCache:  "healthy",
		},
		{
			name:           "unhealthy cache",
			cache:          pingFunc(func(context.Context) error { return errors.New("connection refused") }),
			expectedStatus: http.StatusServiceUnavailable,
			expectedHealth: "degraded",
			expectedCache:  "unhealthy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHealthHandler(tt.cache, fixedStats{Workers: 2, Completed: 3}, "/tmp/media", testLogger())

			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

			var response HealthResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
			assert.Equal(t, tt.expectedHealth, response.Status)
			assert.Equal(t, "dreamdirector", response.Service)
			assert.Equal(t, tt.expectedCache, response.Components["cache"])
			assert.Equal(t, "/tmp/media", response.Components["media_directory"])

			workers, ok := response.Components["music_workers"].(map[string]interface{})
			require.True(t, ok)
			assert.Equal(t, float64(2), workers["workers"])
			assert.Equal(t, float64(3), workers["completed"])
		})
	}
}

func TestHealthRoutes(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/health", "/api/health"} {
		rr := s.do(t, http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, rr.Code, path)
	}
}
