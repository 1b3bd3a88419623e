package v1

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"mlbdash/internal/model"
	"mlbdash/internal/service/cache"
)

// Cache 缓存管理器
type Cache interface {
	Get(ctx context.Context, key string) (cache.Entry, error)
	Refresh(ctx context.Context, force bool, trigger model.RefreshTrigger) (time.Time, error)
	Status() model.CacheStatus
}

// Workbook 工作簿诊断信息
type Workbook interface {
	Path() string
	SheetNames() ([]string, error)
}

// RefreshLog 刷新记录与运行状态
type RefreshLog interface {
	ListRefreshAttempts(ctx context.Context, limit int) ([]model.RefreshAttempt, error)
	AllState(ctx context.Context) (map[string]string, error)
}

// Syncer 导出前确保本地文件存在
type Syncer interface {
	Ensure(ctx context.Context, force bool) error
}

// Options 处理器依赖
type Options struct {
	Cache           Cache
	Workbook        Workbook
	RefreshLog      RefreshLog // 可选
	Syncer          Syncer     // 可选
	Auth            *Authenticator
	Sheet           string // 当前配置的工作表
	PasswordDefault bool
	Logger          *slog.Logger
}

// Handler 仪表盘 API 处理器
type Handler struct {
	cache           Cache
	workbook        Workbook
	refreshLog      RefreshLog
	syncer          Syncer
	auth            *Authenticator
	sheet           string
	passwordDefault bool
	logger          *slog.Logger
}

// NewHandler 创建处理器
func NewHandler(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		cache:           opts.Cache,
		workbook:        opts.Workbook,
		refreshLog:      opts.RefreshLog,
		syncer:          opts.Syncer,
		auth:            opts.Auth,
		sheet:           opts.Sheet,
		passwordDefault: opts.PasswordDefault,
		logger:          logger.With("component", "api"),
	}
}

// RegisterHealth 注册根路径下的健康检查
func (h *Handler) RegisterHealth(router gin.IRoutes) {
	router.GET("/health", h.Health)
}

// RegisterRoutes 注册 /api 路由；/api/v2 为旧版前端保留的同名别名
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	// 诊断，无需口令
	router.GET("/sheets", h.ListSheets)
	router.GET("/password-info", h.PasswordInfo)

	for _, g := range []*gin.RouterGroup{router, router.Group("/v2")} {
		protected := g.Group("", h.auth.Middleware())
		protected.GET("/auth/verify", h.VerifyAuth)
		protected.GET("/quantity", h.GetQuantity)
		protected.GET("/style-count", h.GetStyleCount)
		protected.POST("/refresh", h.Refresh)
		protected.GET("/export/excel", h.ExportExcel)
	}

	protected := router.Group("", h.auth.Middleware())
	protected.GET("/cache-status", h.CacheStatus)
	protected.GET("/refresh-log", h.ListRefreshLog)
}
