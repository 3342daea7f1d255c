package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockPinger is a mock implementation of Pinger for testing.
type MockPinger struct {
	mock.Mock
}

func (m *MockPinger) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// setupTestRouter creates a bare test Gin router.
func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func TestHealthHandler_Health(t *testing.T) {
	handler := &HealthHandler{startTime: time.Now(), env: "test"}

	router := setupTestRouter()
	router.GET("/health", handler.Health)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response HealthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, HealthResponse{Status: "healthy"}, response)
}

func TestHealthHandler_Ready(t *testing.T) {
	pingErr := errors.New("connection refused")

	tests := []struct {
		name           string
		dbErr          error
		withCache      bool
		cacheErr       error
		expectedStatus int
		expectedBody   ReadyResponse
	}{
		{
			name:           "database connected, no cache backend",
			expectedStatus: http.StatusOK,
			expectedBody:   ReadyResponse{Status: "ready", Database: "connected"},
		},
		{
			name:           "database disconnected",
			dbErr:          pingErr,
			expectedStatus: http.StatusServiceUnavailable,
			expectedBody:   ReadyResponse{Status: "not_ready", Database: "disconnected"},
		},
		{
			name:           "database and cache connected",
			withCache:      true,
			expectedStatus: http.StatusOK,
			expectedBody:   ReadyResponse{Status: "ready", Database: "connected", Cache: "connected"},
		},
		{
			name:           "cache disconnected",
			withCache:      true,
			cacheErr:       pingErr,
			expectedStatus: http.StatusServiceUnavailable,
			expectedBody:   ReadyResponse{Status: "not_ready", Database: "connected", Cache: "disconnected"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := new(MockPinger)
			db.On("Ping", mock.Anything).Return(tt.dbErr)

			var cachePinger Pinger
			cacheMock := new(MockPinger)
			if tt.withCache {
				cacheMock.On("Ping", mock.Anything).Return(tt.cacheErr)
				cachePinger = cacheMock
			}

			handler := NewHealthHandler(db, cachePinger, "test", "1.0.0")
			router := setupTestRouter()
			router.GET("/health/ready", handler.Ready)

			req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)

			var response ReadyResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
			assert.Equal(t, tt.expectedBody, response)

			db.AssertExpectations(t)
			cacheMock.AssertExpectations(t)
		})
	}
}

func TestHealthHandler_Ready_UsesTimeout(t *testing.T) {
	db := new(MockPinger)
	db.On("Ping", mock.MatchedBy(func(ctx context.Context) bool {
		deadline, ok := ctx.Deadline()
		return ok && time.Until(deadline) <= HealthCheckTimeout
	})).Return(nil)

	handler := NewHealthHandler(db, nil, "test", "1.0.0")
	router := setupTestRouter()
	router.GET("/health/ready", handler.Ready)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	db.AssertExpectations(t)
}

func TestHealthHandler_Info(t *testing.T) {
	tests := []struct {
		name        string
		env         string
		startTime   time.Time
		checkUptime bool
	}{
		{
			name:        "returns API info with development environment",
			env:         "development",
			startTime:   time.Now().Add(-2 * time.Hour),
			checkUptime: true,
		},
		{
			name:        "returns API info with production environment",
			env:         "production",
			startTime:   time.Now().Add(-24 * time.Hour),
			checkUptime: true,
		},
		{
			name:      "returns API info with test environment",
			env:       "test",
			startTime: time.Now(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := &HealthHandler{
				startTime:       tt.startTime,
				env:             tt.env,
				manifestVersion: "2.3.0",
			}

			router := setupTestRouter()
			router.GET("/api/v1/info", handler.Info)

			req := httptest.NewRequest(http.MethodGet, "/api/v1/info", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code)

			var response InfoResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&response))

			assert.Equal(t, APIVersion, response.Version)
			assert.Equal(t, tt.env, response.Environment)
			assert.Equal(t, "2.3.0", response.ManifestVersion)
			if tt.checkUptime {
				assert.NotEmpty(t, response.Uptime)
			}
		})
	}
}

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		expected string
	}{
		{
			name:     "formats seconds only",
			duration: 45 * time.Second,
			expected: "0h 0m 45s",
		},
		{
			name:     "formats minutes and seconds",
			duration: 5*time.Minute + 30*time.Second,
			expected: "0h 5m 30s",
		},
		{
			name:     "formats hours, minutes and seconds",
			duration: 2*time.Hour + 15*time.Minute + 45*time.Second,
			expected: "2h 15m 45s",
		},
		{
			name:     "formats days, hours, minutes and seconds",
			duration: 3*24*time.Hour + 5*time.Hour + 30*time.Minute + 15*time.Second,
			expected: "3d 5h 30m 15s",
		},
		{
			name:     "formats zero duration",
			duration: 0,
			expected: "0h 0m 0s",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatUptime(tt.duration))
		})
	}
}

func TestNewHealthHandler(t *testing.T) {
	db := new(MockPinger)
	handler := NewHealthHandler(db, nil, "production", "1.0.0")

	require.NotNil(t, handler)
	assert.Equal(t, db, handler.db)
	assert.Nil(t, handler.cache)
	assert.Equal(t, "production", handler.env)
	assert.Equal(t, "1.0.0", handler.manifestVersion)
	assert.False(t, handler.startTime.IsZero())
}

func TestReadyResponse_JSON(t *testing.T) {
	data, err := json.Marshal(ReadyResponse{Status: "ready", Database: "connected"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ready","database":"connected"}`, string(data))
}

func BenchmarkHealthHandler_Health(b *testing.B) {
	handler := &HealthHandler{startTime: time.Now(), env: "test"}

	router := setupTestRouter()
	router.GET("/health", handler.Health)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
	}
}
