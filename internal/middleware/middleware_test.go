package middleware

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/stwalsh4118/zoning-engine/internal/logger"
	"github.com/stwalsh4118/zoning-engine/internal/telemetry"
)

func init() {
	// Set Gin to test mode to reduce noise in tests
	gin.SetMode(gin.TestMode)
}

// TestRequestID tests the RequestID middleware
func TestRequestID(t *testing.T) {
	t.Run("generates new request ID", func(t *testing.T) {
		router := gin.New()
		router.Use(RequestID())
		router.GET("/test", func(c *gin.Context) {
			requestID := GetRequestID(c)
			if requestID == "" {
				t.Error("Expected request ID to be set")
			}
			c.String(200, requestID)
		})

		req := httptest.NewRequest("GET", "/test", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		// Check response header
		headerID := w.Header().Get(RequestIDHeader)
		if headerID == "" {
			t.Error("Expected X-Request-ID header to be set")
		}

		// Check response body contains the ID
		if w.Body.String() != headerID {
			t.Errorf("Expected body to contain request ID %s, got %s", headerID, w.Body.String())
		}
	})

	t.Run("uses existing request ID from header", func(t *testing.T) {
		router := gin.New()
		router.Use(RequestID())
		router.GET("/test", func(c *gin.Context) {
			c.String(200, GetRequestID(c))
		})

		existingID := "existing-request-id-123"
		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set(RequestIDHeader, existingID)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Body.String() != existingID {
			t.Errorf("Expected request ID %s, got %s", existingID, w.Body.String())
		}
	})

	t.Run("propagates request ID as correlation ID", func(t *testing.T) {
		router := gin.New()
		router.Use(RequestID())
		router.GET("/test", func(c *gin.Context) {
			c.String(200, telemetry.CorrelationID(c.Request.Context()))
		})

		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set(RequestIDHeader, "corr-abc")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Body.String() != "corr-abc" {
			t.Errorf("Expected correlation ID corr-abc, got %s", w.Body.String())
		}
	})

	t.Run("GetRequestID returns empty string if not set", func(t *testing.T) {
		c := &gin.Context{}
		requestID := GetRequestID(c)
		if requestID != "" {
			t.Errorf("Expected empty string, got %s", requestID)
		}
	})
}

// TestCORS tests the CORS middleware
func TestCORS(t *testing.T) {
	allowedOrigins := []string{"http://localhost:3000", "http://localhost:3001"}

	t.Run("allows request from allowed origin", func(t *testing.T) {
		router := gin.New()
		router.Use(CORS(allowedOrigins))
		router.GET("/test", func(c *gin.Context) {
			c.String(200, "OK")
		})

		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != 200 {
			t.Errorf("Expected status 200, got %d", w.Code)
		}

		// Check CORS headers (gin-contrib/cors sets these on regular requests)
		if w.Header().Get("Access-Control-Allow-Origin") != "http://localhost:3000" {
			t.Error("Expected Access-Control-Allow-Origin header to be set")
		}
		// Credentials header should be set
		if w.Header().Get("Access-Control-Allow-Credentials") != "true" {
			t.Error("Expected Access-Control-Allow-Credentials header to be set")
		}
	})

	t.Run("exposes request ID and location", func(t *testing.T) {
		router := gin.New()
		router.Use(CORS(allowedOrigins))
		router.POST("/api/v1/analyses", func(c *gin.Context) {
			c.String(201, "created")
		})

		req := httptest.NewRequest("POST", "/api/v1/analyses", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		exposed := strings.ToLower(w.Header().Get("Access-Control-Expose-Headers"))
		if !strings.Contains(exposed, "x-request-id") {
			t.Errorf("Expected X-Request-ID to be exposed, got %q", exposed)
		}
		if !strings.Contains(exposed, "location") {
			t.Errorf("Expected Location to be exposed, got %q", exposed)
		}
	})

	t.Run("does not set CORS headers for disallowed origin", func(t *testing.T) {
		router := gin.New()
		router.Use(CORS(allowedOrigins))
		router.GET("/test", func(c *gin.Context) {
			c.String(200, "OK")
		})

		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("Origin", "http://evil.com")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Header().Get("Access-Control-Allow-Origin") != "" {
			t.Error("Expected no CORS headers for disallowed origin")
		}
	})

	t.Run("handles OPTIONS preflight for allowed origin", func(t *testing.T) {
		router := gin.New()
		router.Use(CORS(allowedOrigins))
		router.OPTIONS("/test", func(c *gin.Context) {
			c.String(200, "OK")
		})

		req := httptest.NewRequest("OPTIONS", "/test", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != 204 {
			t.Errorf("Expected status 204 for OPTIONS, got %d", w.Code)
		}
	})

	t.Run("rejects OPTIONS preflight for disallowed origin", func(t *testing.T) {
		router := gin.New()
		router.Use(CORS(allowedOrigins))
		router.OPTIONS("/test", func(c *gin.Context) {
			c.String(200, "OK")
		})

		req := httptest.NewRequest("OPTIONS", "/test", nil)
		req.Header.Set("Origin", "http://evil.com")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != 403 {
			t.Errorf("Expected status 403 for disallowed OPTIONS, got %d", w.Code)
		}
	})
}

// TestLogger tests the Logger middleware
func TestLogger(t *testing.T) {
	t.Run("logs route template and request ID", func(t *testing.T) {
		var buf bytes.Buffer
		log := logger.NewWithOutput(&buf, zerolog.InfoLevel)
		router := gin.New()
		router.Use(RequestID())
		router.Use(Logger(log))
		router.GET("/api/v1/analyses/:id", func(c *gin.Context) {
			c.String(200, "OK")
		})

		req := httptest.NewRequest("GET", "/api/v1/analyses/abc?verbose=1", nil)
		req.Header.Set(RequestIDHeader, "req-42")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		var entry map[string]interface{}
		if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
			t.Fatalf("Expected one JSON log line, got %q: %v", buf.String(), err)
		}
		if entry["route"] != "/api/v1/analyses/:id" {
			t.Errorf("Expected route template, got %v", entry["route"])
		}
		if entry["path"] != "/api/v1/analyses/abc" {
			t.Errorf("Expected request path, got %v", entry["path"])
		}
		if entry["query"] != "verbose=1" {
			t.Errorf("Expected query, got %v", entry["query"])
		}
		if entry["request_id"] != "req-42" {
			t.Errorf("Expected request_id req-42, got %v", entry["request_id"])
		}
		if entry["status"] != float64(200) {
			t.Errorf("Expected status 200, got %v", entry["status"])
		}
	})

	t.Run("logs client errors at warn level", func(t *testing.T) {
		var buf bytes.Buffer
		log := logger.NewWithOutput(&buf, zerolog.InfoLevel)
		router := gin.New()
		router.Use(RequestID())
		router.Use(Logger(log))
		router.POST("/api/v1/analyses", func(c *gin.Context) {
			c.String(400, "bad")
		})

		req := httptest.NewRequest("POST", "/api/v1/analyses", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if !strings.Contains(buf.String(), `"level":"warn"`) {
			t.Errorf("Expected warn level entry, got %s", buf.String())
		}
	})

	t.Run("GetLogger retrieves logger from context", func(t *testing.T) {
		log := logger.New("test")
		router := gin.New()
		router.Use(RequestID())
		router.Use(Logger(log))
		router.GET("/test", func(c *gin.Context) {
			contextLogger := GetLogger(c)
			if contextLogger == nil {
				t.Error("Expected logger to be in context")
			}
			c.String(200, "OK")
		})

		req := httptest.NewRequest("GET", "/test", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
	})

	t.Run("GetLogger returns nil if not set", func(t *testing.T) {
		c := &gin.Context{}
		log := GetLogger(c)
		if log != nil {
			t.Error("Expected nil logger")
		}
	})
}

// TestRecovery tests the Recovery middleware
func TestRecovery(t *testing.T) {
	t.Run("recovers from panic and returns 500", func(t *testing.T) {
		log := logger.New("test")
		sink := telemetry.NewMemorySink()
		router := gin.New()
		router.Use(RequestID())
		router.Use(Recovery(log, sink))
		router.GET("/panic", func(c *gin.Context) {
			panic("test panic")
		})

		req := httptest.NewRequest("GET", "/panic", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != 500 {
			t.Errorf("Expected status 500 after panic, got %d", w.Code)
		}

		// Check response contains error
		body := w.Body.String()
		if !strings.Contains(body, "INTERNAL_SERVER_ERROR") {
			t.Error("Expected error response to contain INTERNAL_SERVER_ERROR")
		}
		if !strings.Contains(body, "request_id") {
			t.Error("Expected error response to contain request_id")
		}

		events := sink.ErrorsAt(StageHTTP)
		if len(events) != 1 {
			t.Fatalf("Expected 1 panic event, got %d", len(events))
		}
		if events[0].CorrelationID != w.Header().Get(RequestIDHeader) {
			t.Errorf("Expected panic event correlated with request ID, got %q", events[0].CorrelationID)
		}
	})

	t.Run("does not interfere with normal requests", func(t *testing.T) {
		log := logger.New("test")
		router := gin.New()
		router.Use(Recovery(log, nil))
		router.GET("/normal", func(c *gin.Context) {
			c.String(200, "OK")
		})

		req := httptest.NewRequest("GET", "/normal", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != 200 {
			t.Errorf("Expected status 200, got %d", w.Code)
		}
		if w.Body.String() != "OK" {
			t.Errorf("Expected body 'OK', got %s", w.Body.String())
		}
	})
}

// TestMiddlewareStack tests that all middleware work together
func TestMiddlewareStack(t *testing.T) {
	log := logger.New("test")
	allowedOrigins := []string{"http://localhost:3000"}

	router := gin.New()
	router.Use(RequestID())
	router.Use(Logger(log))
	router.Use(Recovery(log, nil))
	router.Use(CORS(allowedOrigins))
	router.GET("/test", func(c *gin.Context) {
		// Verify all middleware added their data
		requestID := GetRequestID(c)
		if requestID == "" {
			t.Error("Expected request ID from RequestID middleware")
		}

		contextLogger := GetLogger(c)
		if contextLogger == nil {
			t.Error("Expected logger from Logger middleware")
		}

		c.String(200, "OK")
	})

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != 200 {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	// Check all middleware effects
	if w.Header().Get(RequestIDHeader) == "" {
		t.Error("Expected X-Request-ID header")
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "http://localhost:3000" {
		t.Error("Expected CORS headers")
	}
}
