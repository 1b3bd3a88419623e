package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	v1 "mlbdash/internal/api/v1"
	"mlbdash/internal/config"
	"mlbdash/internal/model"
	"mlbdash/internal/server"
	"mlbdash/internal/service/cache"
	"mlbdash/internal/service/filesync"
	"mlbdash/internal/store"
)

// refreshLogKeep 启动时保留的刷新记录条数
const refreshLogKeep = 1000

func newServeCmd(opts *rootOptions) *cobra.Command {
	var (
		port    int
		devMode bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, info, logger, err := opts.setup()
			if err != nil {
				return err
			}
			if port > 0 {
				cfg.Server.Port = port
			}
			if devMode {
				cfg.Server.DevMode = true
			}
			return serve(cmd.Context(), cfg, info, logger)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides server.port / PORT)")
	cmd.Flags().BoolVar(&devMode, "dev", false, "development mode (gin debug output)")
	return cmd
}

func serve(parent context.Context, cfg *config.AppConfig, info config.LoadInfo, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if info.PasswordDefault {
		logger.Warn("using the default dashboard password; set DASHBOARD_PASSWORD")
	}

	loader, err := newLoader(cfg, logger)
	if err != nil {
		return err
	}

	st, err := store.New(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()
	if n, err := st.PruneRefreshLog(ctx, refreshLogKeep); err != nil {
		logger.Warn("prune refresh log failed", "error", err)
	} else if n > 0 {
		logger.Info("refresh log pruned", "deleted", n)
	}

	if at, weeks, ok, err := st.LastSuccess(ctx); err != nil {
		logger.Warn("read last refresh state failed", "error", err)
	} else if ok {
		logger.Info("previous successful refresh",
			"completed_at", at,
			"week_current", weeks.Current,
			"week_next", weeks.Next,
		)
	}

	syncer := filesync.New(filesync.Options{
		URL:      cfg.Sync.URL,
		Path:     cfg.Workbook.Path,
		Interval: cfg.SyncInterval(),
		Timeout:  cfg.SyncTimeout(),
		Logger:   logger,
	})

	mgr, err := cache.New(loader, cache.Options{
		Datasets:      cache.DefaultDatasets(cfg.Workbook.Sheet),
		RefreshHour:   cfg.Refresh.Hour,
		RefreshMinute: cfg.Refresh.Minute,
		Source:        cache.FileSource(cfg.Workbook.Path),
		Syncer:        syncer,
		History:       st,
		Logger:        logger,
	})
	if err != nil {
		return err
	}
	defer mgr.Wait()

	logger.Info("starting",
		"workbook", cfg.Workbook.Path,
		"sheet", cfg.Workbook.Sheet,
		"layout", cfg.Workbook.Layout,
		"sync", syncer.Enabled(),
		"update_at", cache.NextRun(time.Now(), cfg.Refresh.Hour, cfg.Refresh.Minute),
	)

	// 启动预热；失败不阻止服务，首个请求会再次尝试
	startupDone := make(chan struct{})
	go func() {
		defer close(startupDone)
		if _, err := mgr.Refresh(ctx, false, model.TriggerStartup); err != nil {
			logger.Warn("startup load failed", "error", err)
		}
	}()
	defer func() { <-startupDone }()

	sched := cache.NewScheduler(mgr, cfg.Refresh.Hour, cfg.Refresh.Minute, cfg.PollInterval(), logger)
	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		sched.Run(ctx)
	}()
	defer func() { <-schedDone }()

	// SIGHUP 立即强制刷新
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				logger.Info("SIGHUP received, refreshing")
				sched.Trigger()
			}
		}
	}()

	h := v1.NewHandler(v1.Options{
		Cache:           mgr,
		Workbook:        loader,
		RefreshLog:      st,
		Syncer:          syncer,
		Auth:            v1.NewAuthenticator(cfg.Auth.Password, logger),
		Sheet:           cfg.Workbook.Sheet,
		PasswordDefault: info.PasswordDefault,
		Logger:          logger,
	})
	srv := server.NewServer(cfg, h, logger)
	err = srv.Run(ctx)
	stop()
	if err != nil {
		return err
	}
	logger.Info("stopped")
	return nil
}
