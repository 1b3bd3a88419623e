package v1

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"mlbdash/internal/model"
	"mlbdash/internal/service/cache"
	"mlbdash/internal/service/excel"
)

const testPassword = "MLB123"

var loadedAt = time.Date(2026, 10, 14, 2, 0, 0, 0, time.UTC)

type stubCache struct {
	mu        sync.Mutex
	entries   map[string]cache.Entry
	getErr    error
	refreshTS time.Time
	refreshes []model.RefreshTrigger
}

func (s *stubCache) Get(_ context.Context, key string) (cache.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return cache.Entry{}, s.getErr
	}
	e, ok := s.entries[key]
	if !ok {
		return cache.Entry{}, cache.ErrUnknownDataset
	}
	return e, nil
}

func (s *stubCache) Refresh(_ context.Context, force bool, trigger model.RefreshTrigger) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshes = append(s.refreshes, trigger)
	if s.getErr != nil {
		return time.Time{}, s.getErr
	}
	return s.refreshTS, nil
}

func (s *stubCache) Status() model.CacheStatus {
	ts := loadedAt
	return model.CacheStatus{HasCache: true, CacheTimestamp: &ts, Datasets: []string{cache.DatasetQuantity}}
}

type stubWorkbook struct {
	path   string
	sheets []string
	err    error
}

func (w stubWorkbook) Path() string                  { return w.path }
func (w stubWorkbook) SheetNames() ([]string, error) { return w.sheets, w.err }

type stubRefreshLog []model.RefreshAttempt

func (l stubRefreshLog) ListRefreshAttempts(_ context.Context, limit int) ([]model.RefreshAttempt, error) {
	if limit < len(l) {
		return l[:limit], nil
	}
	return l, nil
}

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func (l stubRefreshLog) AllState(context.Context) (map[string]string, error) {
	return map[string]string{"last_success_at": loadedAt.Format(time.RFC3339)}, nil
}

func quantityDoc() *model.Document {
	doc := model.NewDocument("수량 기준", model.WeekPair{Current: 41, Next: 42})
	doc.SetBlock("nations", []model.Record{{"code": "KR", "total_qty": int64(100)}})
	doc.SetBlock("items", nil)
	doc.SetBlock("categories", nil)
	return doc
}

func newTestRouter(t *testing.T, c *stubCache, wb stubWorkbook, password string) *gin.Engine {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(Options{
		Cache:      c,
		Workbook:   wb,
		RefreshLog: stubRefreshLog{{ID: "a", Status: model.RefreshStatusSuccess}, {ID: "b", Status: model.RefreshStatusFailed}},
		Auth:       NewAuthenticator(password, logger),
		Sheet:      "수량 기준",
		Logger:     logger,
	})
	r := gin.New()
	h.RegisterHealth(r)
	h.RegisterRoutes(r.Group("/api"))
	return r
}

func newStubCache() *stubCache {
	return &stubCache{
		entries: map[string]cache.Entry{
			cache.DatasetQuantity: {Document: quantityDoc(), LoadedAt: loadedAt, FileModTime: loadedAt.Add(-time.Hour)},
		},
		refreshTS: loadedAt,
	}
}

func do(r http.Handler, method, path string, auth bool, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if auth {
		req.SetBasicAuth("anyone", testPassword)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	t.Parallel()
	r := newTestRouter(t, newStubCache(), stubWorkbook{}, testPassword)

	w := do(r, http.MethodGet, "/health", false, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])
}

func TestAuthRequired(t *testing.T) {
	t.Parallel()
	r := newTestRouter(t, newStubCache(), stubWorkbook{}, testPassword)

	for _, path := range []string{"/api/quantity", "/api/v2/quantity", "/api/cache-status", "/api/auth/verify", "/api/refresh-log"} {
		w := do(r, http.MethodGet, path, false, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
		assert.NotEmpty(t, w.Header().Get("WWW-Authenticate"), path)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/auth/verify", nil)
	req.SetBasicAuth("x", "wrong")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, http.MethodGet, "/api/v2/auth/verify", true, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "authenticated", decode(t, w)["status"])
}

func TestAuthenticator_Bcrypt(t *testing.T) {
	t.Parallel()

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	a := NewAuthenticator(string(hash), nil)
	assert.True(t, a.Check("s3cret"))
	assert.False(t, a.Check("nope"))

	plain := NewAuthenticator("s3cret", nil)
	assert.True(t, plain.Check("s3cret"))
	assert.False(t, plain.Check("s3cre"))

	assert.False(t, NewAuthenticator("", nil).Check(""))
}

func TestGetQuantity(t *testing.T) {
	t.Parallel()
	r := newTestRouter(t, newStubCache(), stubWorkbook{}, testPassword)

	w := do(r, http.MethodGet, "/api/quantity", true, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode(t, w)
	assert.Equal(t, "수량 기준", body["sheet_name"])
	assert.Equal(t, map[string]any{"current_week": float64(41), "next_week": float64(42)}, body["week_info"])
	nations := body["nations"].([]any)
	require.Len(t, nations, 1)
	assert.Equal(t, "KR", nations[0].(map[string]any)["code"])
	assert.Equal(t, []any{}, body["items"])

	meta := body["_meta"].(map[string]any)
	assert.Equal(t, loadedAt.Format(time.RFC3339Nano), meta["cache_timestamp"])
	assert.NotNil(t, meta["file_modified_time"])

	assert.Equal(t, datasetCacheControl, w.Header().Get("Cache-Control"))
	assert.Equal(t, loadedAt.Format(time.RFC3339), w.Header().Get("X-Cache-Timestamp"))
	assert.NotEmpty(t, w.Header().Get("X-File-Modified"))
	etag := w.Header().Get("ETag")
	require.NotEmpty(t, etag)

	w = do(r, http.MethodGet, "/api/quantity", true, map[string]string{"If-None-Match": etag})
	assert.Equal(t, http.StatusNotModified, w.Code)
	assert.Empty(t, w.Body.String())

	w = do(r, http.MethodGet, "/api/quantity", true, map[string]string{"If-None-Match": `"other"`})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetDataset_ErrorMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		err    error
		status int
		check  func(t *testing.T, w *httptest.ResponseRecorder)
	}{
		{
			name:   "missing file",
			err:    &excel.LoadError{Path: "x.xlsx", Kind: excel.ErrSourceUnavailable, Err: os.ErrNotExist},
			status: http.StatusNotFound,
		},
		{
			name:   "locked",
			err:    &excel.LoadError{Path: "x.xlsx", Kind: excel.ErrPermissionDenied},
			status: http.StatusServiceUnavailable,
			check: func(t *testing.T, w *httptest.ResponseRecorder) {
				assert.Equal(t, retryAfterSeconds, w.Header().Get("Retry-After"))
				assert.NotEmpty(t, decode(t, w)["hint"])
			},
		},
		{
			name:   "sheet missing",
			err:    &excel.LoadError{Sheet: "수량 기준", Kind: excel.ErrSheetNotFound, Sheets: []string{"Sheet1", "요약"}},
			status: http.StatusInternalServerError,
			check: func(t *testing.T, w *httptest.ResponseRecorder) {
				assert.Equal(t, []any{"Sheet1", "요약"}, decode(t, w)["available_sheets"])
			},
		},
		{
			name:   "validation",
			err:    cache.ErrValidation,
			status: http.StatusInternalServerError,
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			c := newStubCache()
			c.getErr = tc.err
			r := newTestRouter(t, c, stubWorkbook{}, testPassword)

			w := do(r, http.MethodGet, "/api/style-count", true, nil)
			require.Equal(t, tc.status, w.Code, w.Body.String())
			assert.NotEmpty(t, decode(t, w)["error"])
			if tc.check != nil {
				tc.check(t, w)
			}
		})
	}
}

func TestGetStyleCount_UnknownDataset(t *testing.T) {
	t.Parallel()
	r := newTestRouter(t, newStubCache(), stubWorkbook{}, testPassword)

	w := do(r, http.MethodGet, "/api/style-count", true, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRefresh(t *testing.T) {
	t.Parallel()
	c := newStubCache()
	r := newTestRouter(t, c, stubWorkbook{}, testPassword)

	w := do(r, http.MethodPost, "/api/refresh", true, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, loadedAt.Format(time.RFC3339Nano), body["timestamp"])
	assert.Equal(t, []model.RefreshTrigger{model.TriggerManual}, c.refreshes)

	c.getErr = errors.New("boom")
	w = do(r, http.MethodPost, "/api/refresh", true, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestCacheStatusAndRefreshLog(t *testing.T) {
	t.Parallel()
	r := newTestRouter(t, newStubCache(), stubWorkbook{}, testPassword)

	w := do(r, http.MethodGet, "/api/cache-status", true, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["has_cache"])

	w = do(r, http.MethodGet, "/api/refresh-log?limit=1", true, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Len(t, body["attempts"], 1)
	assert.Equal(t, loadedAt.Format(time.RFC3339), body["state"].(map[string]any)["last_success_at"])

	w = do(r, http.MethodGet, "/api/refresh-log?limit=abc", true, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListSheets(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "summary.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("PK"), 0o644))

	r := newTestRouter(t, newStubCache(), stubWorkbook{path: path, sheets: []string{"수량 기준", "스타일수 기준"}}, testPassword)
	w := do(r, http.MethodGet, "/api/sheets", false, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp SheetsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.FileExists)
	assert.True(t, resp.FileReadable)
	assert.True(t, resp.SheetExists)
	assert.Equal(t, "수량 기준", resp.CurrentSheet)
	assert.Len(t, resp.Sheets, 2)

	missing := &excel.LoadError{Path: "gone.xlsx", Kind: excel.ErrSourceUnavailable}
	r = newTestRouter(t, newStubCache(), stubWorkbook{path: "gone.xlsx", err: missing}, testPassword)
	w = do(r, http.MethodGet, "/api/sheets", false, nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp = SheetsResponse{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.FileExists)
	assert.NotEmpty(t, resp.Error)
	assert.NotEmpty(t, resp.Suggestion)
	assert.Equal(t, []string{}, resp.Sheets)
}

func TestExportExcel(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "★26SS MLB 생산스케쥴_DASHBOARD.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("PK\x03\x04data"), 0o644))

	r := newTestRouter(t, newStubCache(), stubWorkbook{path: path}, testPassword)
	w := do(r, http.MethodGet, "/api/export/excel", true, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Equal(t, "PK\x03\x04data", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), `filename="26SS MLB _DASHBOARD.xlsx"`)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "filename*=UTF-8''%E2%98%8526SS%20MLB%20")

	r = newTestRouter(t, newStubCache(), stubWorkbook{path: filepath.Join(t.TempDir(), "none.xlsx")}, testPassword)
	w = do(r, http.MethodGet, "/api/export/excel", true, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestContentDisposition_Fallback(t *testing.T) {
	t.Parallel()

	got := contentDisposition("요약.xlsx")
	want := "attachment; filename=\"26SS_MLB_DASHBOARD.xlsx\"; filename*=UTF-8''%EC%9A%94%EC%95%BD.xlsx"
	if got != want {
		t.Fatalf("content-disposition mismatch:\n got: %s\nwant: %s", got, want)
	}
}

func TestEtagMatches(t *testing.T) {
	t.Parallel()

	assert.True(t, etagMatches(`"a", "b"`, `"b"`))
	assert.True(t, etagMatches(`W/"b"`, `"b"`))
	assert.True(t, etagMatches(`*`, `"b"`))
	assert.False(t, etagMatches(``, `"b"`))
	assert.False(t, etagMatches(`"c"`, `"b"`))
}
