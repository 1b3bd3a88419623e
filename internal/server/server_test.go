package server

import (
	"bytes"
	"context"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "mlbdash/internal/api/v1"
	"mlbdash/internal/config"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func newTestServer(t *testing.T, origins []string, buf *bytes.Buffer) *Server {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Server.DevMode = true
	cfg.Server.AllowedOrigins = origins
	logger := slog.New(slog.NewJSONHandler(buf, nil))
	h := v1.NewHandler(v1.Options{Auth: v1.NewAuthenticator("pw", logger), Logger: logger})
	return NewServer(cfg, h, logger)
}

func TestRequestID(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil, &bytes.Buffer{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	_, err := uuid.Parse(rec.Header().Get(RequestIDHeader))
	assert.NoError(t, err)

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}

func TestRequestLogger(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	s := newTestServer(t, nil, &buf)

	req := httptest.NewRequest(http.MethodGet, "/api/quantity", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	out := buf.String()
	assert.Contains(t, out, `"msg":"http.request"`)
	assert.Contains(t, out, `"path":"/api/quantity"`)
	assert.Contains(t, out, `"status":401`)
	assert.Contains(t, out, `"request_id":"req-1"`)
	assert.Contains(t, out, `"level":"WARN"`)
}

func TestRecovery(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	r := gin.New()
	r.Use(RequestID(), RequestLogger(logger), Recovery(logger))
	r.GET("/boom", func(*gin.Context) { panic("boom") })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, buf.String(), "panic recovered")
	assert.Contains(t, buf.String(), `"status":500`)
}

func TestCORS(t *testing.T) {
	t.Parallel()

	t.Run("wildcard", func(t *testing.T) {
		t.Parallel()
		s := newTestServer(t, []string{"*"}, &bytes.Buffer{})
		req := httptest.NewRequest(http.MethodOptions, "/api/quantity", nil)
		req.Header.Set("Origin", "http://example.com")
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, rec.Header().Get("Access-Control-Expose-Headers"), "ETag")
	})

	t.Run("allow list", func(t *testing.T) {
		t.Parallel()
		s := newTestServer(t, []string{"http://dash.local"}, &bytes.Buffer{})

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", "http://dash.local")
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		assert.Equal(t, "http://dash.local", rec.Header().Get("Access-Control-Allow-Origin"))

		req = httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", "http://evil.local")
		rec = httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestServe_Shutdown(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil, &bytes.Buffer{})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
