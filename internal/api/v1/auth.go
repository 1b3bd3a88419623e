package v1

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// Authenticator HTTP Basic 口令校验；用户名忽略
type Authenticator struct {
	secret []byte
	hashed bool
	logger *slog.Logger
}

// NewAuthenticator password 以 $2 开头时按 bcrypt 哈希比较
func NewAuthenticator(password string, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{
		secret: []byte(password),
		hashed: strings.HasPrefix(password, "$2"),
		logger: logger.With("component", "auth"),
	}
}

// Check 校验口令
func (a *Authenticator) Check(password string) bool {
	if len(a.secret) == 0 {
		return false
	}
	if a.hashed {
		return bcrypt.CompareHashAndPassword(a.secret, []byte(password)) == nil
	}
	return subtle.ConstantTimeCompare(a.secret, []byte(password)) == 1
}

// Middleware 未通过校验时返回 401
func (a *Authenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		_, password, ok := c.Request.BasicAuth()
		if !ok || !a.Check(password) {
			a.logger.Warn("authentication failed",
				"path", c.Request.URL.Path,
				"client_ip", c.ClientIP(),
				"credentials", ok,
			)
			c.Header("WWW-Authenticate", `Basic realm="dashboard"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "비밀번호가 올바르지 않습니다."})
			return
		}
		c.Next()
	}
}
