package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Health 健康检查
// GET /health
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// VerifyAuth 仅校验口令，不加载工作簿
// GET /api/auth/verify
func (h *Handler) VerifyAuth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "authenticated", "message": "Authentication successful"})
}

// PasswordInfo 口令来源（不返回口令本身）
// GET /api/password-info
func (h *Handler) PasswordInfo(c *gin.Context) {
	source := "environment_variable"
	if h.passwordDefault {
		source = "default"
	}
	c.JSON(http.StatusOK, gin.H{
		"password_source": source,
		"is_default":      h.passwordDefault,
	})
}

// CacheStatus 缓存状态
// GET /api/cache-status
func (h *Handler) CacheStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.cache.Status())
}
