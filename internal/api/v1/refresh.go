package v1

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"mlbdash/internal/model"
	"mlbdash/internal/store"
)

// Refresh 强制重新同步并加载
// POST /api/refresh
func (h *Handler) Refresh(c *gin.Context) {
	ts, err := h.cache.Refresh(c.Request.Context(), true, model.TriggerManual)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "success",
		"message":   "캐시가 성공적으로 업데이트되었습니다.",
		"timestamp": ts,
	})
}

// ListRefreshLog 最近的刷新记录
// GET /api/refresh-log?limit=20
func (h *Handler) ListRefreshLog(c *gin.Context) {
	if h.refreshLog == nil {
		c.JSON(http.StatusOK, gin.H{"attempts": []model.RefreshAttempt{}, "state": gin.H{}})
		return
	}
	limit := store.DefaultRefreshLogLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 500"})
			return
		}
		limit = n
	}

	attempts, err := h.refreshLog.ListRefreshAttempts(c.Request.Context(), limit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	state, err := h.refreshLog.AllState(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"attempts": attempts, "state": state})
}
