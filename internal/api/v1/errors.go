package v1

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"mlbdash/internal/service/cache"
	"mlbdash/internal/service/excel"
)

// retryAfterSeconds 工作簿被占用时建议的重试间隔
const retryAfterSeconds = "30"

// writeError 把加载错误映射为 HTTP 响应
func (h *Handler) writeError(c *gin.Context, err error) {
	body := gin.H{"error": err.Error()}
	var le *excel.LoadError
	if errors.As(err, &le) {
		if hint := le.Hint(); hint != "" {
			body["hint"] = hint
		}
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, excel.ErrSourceUnavailable):
		status = http.StatusNotFound
	case errors.Is(err, excel.ErrPermissionDenied):
		status = http.StatusServiceUnavailable
		c.Header("Retry-After", retryAfterSeconds)
	case errors.Is(err, excel.ErrSheetNotFound):
		if le != nil {
			body["available_sheets"] = le.Sheets
		}
	case errors.Is(err, cache.ErrUnknownDataset):
		status = http.StatusNotFound
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "path", c.Request.URL.Path, "status", status, "error", err)
	}
	c.AbortWithStatusJSON(status, body)
}
