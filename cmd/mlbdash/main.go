package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"mlbdash/internal/config"
	"mlbdash/internal/logx"
	"mlbdash/internal/model"
	"mlbdash/internal/parser"
	"mlbdash/internal/service/excel"
)

// rootOptions 所有子命令共用的参数
type rootOptions struct {
	configPath string
	workbook   string
	sheet      string
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:          "mlbdash",
		Short:        "MLB 생산스케쥴 dashboard API",
		Long:         "mlbdash serves the production-schedule workbook as cached JSON for the dashboard.",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (default: ./config.toml, then next to the executable)")
	root.PersistentFlags().StringVar(&opts.workbook, "workbook", "", "workbook path (overrides workbook.path / SUMMARY_EXCEL)")
	root.PersistentFlags().StringVar(&opts.sheet, "sheet", "", "quantity sheet name (overrides workbook.sheet / SUMMARY_SHEET)")

	root.AddCommand(
		newServeCmd(opts),
		newDumpCmd(opts),
		newSheetsCmd(opts),
		newInitConfigCmd(opts),
	)
	return root
}

// setup 加载配置并初始化日志
func (o *rootOptions) setup() (*config.AppConfig, config.LoadInfo, *slog.Logger, error) {
	cfg, info, err := config.Load(o.configPath)
	if err != nil {
		return nil, info, nil, err
	}
	if o.workbook != "" {
		cfg.Workbook.Path = o.workbook
	}
	if o.sheet != "" {
		cfg.Workbook.Sheet = o.sheet
	}
	logger := logx.New(cfg.Log)
	if info.Path != "" {
		logger.Debug("config loaded", "path", info.Path)
	}
	return cfg, info, logger, nil
}

// newLoader 按配置创建工作簿加载器
func newLoader(cfg *config.AppConfig, logger *slog.Logger) (*excel.Loader, error) {
	layout, err := parser.LayoutByName(cfg.Workbook.Layout)
	if err != nil {
		return nil, err
	}
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	defaults := model.WeekPair{Current: cfg.Workbook.DefaultWeek1, Next: cfg.Workbook.DefaultWeek2}
	return excel.NewLoader(cfg.Workbook.Path, layout, defaults, logger), nil
}

func newInitConfigCmd(opts *rootOptions) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init-config",
		Short: "Write a config.toml with default values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := opts.configPath
			if path == "" {
				path = "config.toml"
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.Save(config.DefaultConfig(), path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}
