package v1

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"mlbdash/internal/service/cache"
)

const datasetCacheControl = "public, max-age=3600, stale-while-revalidate=60"

// GetQuantity 수량 기준
// GET /api/quantity
func (h *Handler) GetQuantity(c *gin.Context) {
	h.serveDataset(c, cache.DatasetQuantity)
}

// GetStyleCount 스타일수 기준
// GET /api/style-count
func (h *Handler) GetStyleCount(c *gin.Context) {
	h.serveDataset(c, cache.DatasetStyleCount)
}

func (h *Handler) serveDataset(c *gin.Context, key string) {
	entry, err := h.cache.Get(c.Request.Context(), key)
	if err != nil {
		h.writeError(c, err)
		return
	}

	etag := datasetETag(key, entry)
	c.Header("ETag", etag)
	c.Header("Cache-Control", datasetCacheControl)
	c.Header("X-Cache-Timestamp", entry.LoadedAt.Format(time.RFC3339))
	if !entry.FileModTime.IsZero() {
		c.Header("X-File-Modified", entry.FileModTime.Format(time.RFC3339))
	}
	if etagMatches(c.GetHeader("If-None-Match"), etag) {
		c.Status(http.StatusNotModified)
		return
	}

	meta := gin.H{
		"cache_timestamp":    entry.LoadedAt,
		"cache_age_seconds":  time.Since(entry.LoadedAt).Seconds(),
		"file_modified_time": nil,
	}
	if !entry.FileModTime.IsZero() {
		meta["file_modified_time"] = entry.FileModTime
	}
	payload := entry.Document.Payload()
	payload["_meta"] = meta
	c.JSON(http.StatusOK, payload)
}

// datasetETag 周次与加载时间确定一次快照
func datasetETag(key string, entry cache.Entry) string {
	w := entry.Document.WeekInfo
	return fmt.Sprintf(`"%s-%d-%d-%d"`, key, w.Current, w.Next, entry.LoadedAt.UnixNano())
}

func etagMatches(header, etag string) bool {
	if header == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		candidate = strings.TrimPrefix(candidate, "W/")
		if candidate == "*" || candidate == etag {
			return true
		}
	}
	return false
}
