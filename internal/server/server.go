package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	v1 "mlbdash/internal/api/v1"
	"mlbdash/internal/config"
)

// Server HTTP服务器
type Server struct {
	router          *gin.Engine
	addr            string
	shutdownTimeout time.Duration
	logger          *slog.Logger
}

// NewServer 创建服务器
func NewServer(cfg *config.AppConfig, h *v1.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if !cfg.Server.DevMode {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		router:          gin.New(),
		addr:            fmt.Sprintf(":%d", cfg.Server.Port),
		shutdownTimeout: cfg.ShutdownTimeout(),
		logger:          logger.With("component", "http"),
	}
	s.setupRoutes(cfg.Server.AllowedOrigins, h)
	return s
}

// setupRoutes 设置路由
func (s *Server) setupRoutes(origins []string, h *v1.Handler) {
	s.router.Use(
		RequestID(),
		RequestLogger(s.logger),
		Recovery(s.logger),
		CORS(origins),
	)

	h.RegisterHealth(s.router)
	api := s.router.Group("/api")
	{
		h.RegisterRoutes(api)
	}
}

// Handler 返回路由（测试使用）
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr 监听地址
func (s *Server) Addr() string {
	return s.addr
}

// Run 监听配置端口直到 ctx 结束
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve 在给定监听器上提供服务；ctx 结束后优雅关闭
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("server shutting down", "timeout", s.shutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// CORS 跨域；origins 含 "*" 时允许任意来源
func CORS(origins []string) gin.HandlerFunc {
	allowAll := len(origins) == 0 || slices.Contains(origins, "*")
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		switch {
		case allowAll:
			c.Header("Access-Control-Allow-Origin", "*")
		case origin != "" && slices.Contains(origins, origin):
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		}
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, If-None-Match")
		c.Header("Access-Control-Expose-Headers", strings.Join([]string{
			"ETag", "X-Cache-Timestamp", "X-File-Modified", "Content-Disposition", RequestIDHeader,
		}, ", "))
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
