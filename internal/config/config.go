package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/pelletier/go-toml/v2"
)

// DefaultPassword 未配置 DASHBOARD_PASSWORD 时的口令，部署时必须修改
const DefaultPassword = "MLB123"

// AppConfig 应用配置
type AppConfig struct {
	Server   ServerConfig   `toml:"server"`
	Workbook WorkbookConfig `toml:"workbook"`
	Refresh  RefreshConfig  `toml:"refresh"`
	Sync     SyncConfig     `toml:"sync"`
	Auth     AuthConfig     `toml:"auth"`
	Store    StoreConfig    `toml:"store"`
	Log      LogConfig      `toml:"log"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port                   int      `toml:"port"                     env:"PORT"`
	DevMode                bool     `toml:"dev_mode"                 env:"DEV_MODE"`
	AllowedOrigins         []string `toml:"allowed_origins"          env:"CORS_ALLOWED_ORIGINS" env-separator:","`
	ShutdownTimeoutSeconds int      `toml:"shutdown_timeout_seconds" env:"SHUTDOWN_TIMEOUT"`
}

// WorkbookConfig 工作簿配置
type WorkbookConfig struct {
	Path         string `toml:"path"          env:"SUMMARY_EXCEL"`
	Sheet        string `toml:"sheet"         env:"SUMMARY_SHEET"`
	Layout       string `toml:"layout"        env:"SUMMARY_LAYOUT"`
	DefaultWeek1 int    `toml:"default_week1" env:"DEFAULT_WEEK1"`
	DefaultWeek2 int    `toml:"default_week2" env:"DEFAULT_WEEK2"`
}

// RefreshConfig 每日刷新时间
type RefreshConfig struct {
	Hour                int `toml:"hour"                  env:"UPDATE_HOUR"`
	Minute              int `toml:"minute"                env:"UPDATE_MINUTE"`
	PollIntervalSeconds int `toml:"poll_interval_seconds" env:"POLL_INTERVAL"`
}

// SyncConfig 远程文件同步
type SyncConfig struct {
	URL             string `toml:"url"              env:"ONEDRIVE_FILE_URL"`
	IntervalSeconds int    `toml:"interval_seconds" env:"SYNC_INTERVAL"`
	TimeoutSeconds  int    `toml:"timeout_seconds"  env:"SYNC_TIMEOUT"`
}

// AuthConfig 访问口令；以 $2 开头视为 bcrypt 哈希
type AuthConfig struct {
	Password string `toml:"password,omitempty" env:"DASHBOARD_PASSWORD"`
}

// StoreConfig 刷新记录数据库
type StoreConfig struct {
	Path string `toml:"path" env:"STORE_PATH"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `toml:"level"  env:"LOG_LEVEL"`
	Format string `toml:"format" env:"LOG_FORMAT"`
}

// LoadInfo 配置加载元信息
type LoadInfo struct {
	Path            string // 实际读取的配置文件；未读取时为空
	PasswordDefault bool   // 使用了默认口令
}

// DefaultConfig 默认配置
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:                   8000,
			AllowedOrigins:         []string{"*"},
			ShutdownTimeoutSeconds: 10,
		},
		Workbook: WorkbookConfig{
			Path:         "★26SS MLB 생산스케쥴_DASHBOARD.xlsx",
			Sheet:        "수량 기준",
			Layout:       "v2",
			DefaultWeek1: 48,
			DefaultWeek2: 49,
		},
		Refresh: RefreshConfig{
			Hour:                2,
			Minute:              0,
			PollIntervalSeconds: 3600,
		},
		Sync: SyncConfig{
			IntervalSeconds: 3600,
			TimeoutSeconds:  60,
		},
		Auth: AuthConfig{
			Password: DefaultPassword,
		},
		Store: StoreConfig{
			Path: filepath.Join("data", "mlbdash.db"),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// GetExeDir 获取可执行文件所在目录
func GetExeDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.Dir(exe), nil
}

// DefaultPath 默认配置文件：当前目录的 config.toml，不存在时取可执行文件同目录
func DefaultPath() string {
	if _, err := os.Stat("config.toml"); err == nil {
		return "config.toml"
	}
	exeDir, err := GetExeDir()
	if err != nil {
		return "config.toml"
	}
	return filepath.Join(exeDir, "config.toml")
}

// Load 默认值 -> config.toml（不存在则跳过）-> 环境变量
func Load(path string) (*AppConfig, LoadInfo, error) {
	info := LoadInfo{}
	cfg := DefaultConfig()

	if path == "" {
		path = DefaultPath()
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, info, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		info.Path = path
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, info, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, info, fmt.Errorf("failed to read environment: %w", err)
	}
	info.PasswordDefault = cfg.Auth.Password == DefaultPassword

	if err := cfg.Validate(); err != nil {
		return nil, info, err
	}
	return cfg, info, nil
}

// Validate 校验配置
func (c *AppConfig) Validate() error {
	var errs []error
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if strings.TrimSpace(c.Workbook.Path) == "" {
		errs = append(errs, errors.New("workbook.path is empty"))
	}
	if strings.TrimSpace(c.Workbook.Sheet) == "" {
		errs = append(errs, errors.New("workbook.sheet is empty"))
	}
	switch c.Workbook.Layout {
	case "v1", "v2":
	default:
		errs = append(errs, fmt.Errorf("workbook.layout %q must be v1 or v2", c.Workbook.Layout))
	}
	for _, w := range []int{c.Workbook.DefaultWeek1, c.Workbook.DefaultWeek2} {
		if w < 1 || w > 60 {
			errs = append(errs, fmt.Errorf("default week %d outside 1-60", w))
		}
	}
	if c.Refresh.Hour < 0 || c.Refresh.Hour > 23 {
		errs = append(errs, fmt.Errorf("refresh.hour %d outside 0-23", c.Refresh.Hour))
	}
	if c.Refresh.Minute < 0 || c.Refresh.Minute > 59 {
		errs = append(errs, fmt.Errorf("refresh.minute %d outside 0-59", c.Refresh.Minute))
	}
	if c.Refresh.PollIntervalSeconds <= 0 {
		errs = append(errs, errors.New("refresh.poll_interval_seconds must be positive"))
	}
	if c.Sync.IntervalSeconds <= 0 {
		errs = append(errs, errors.New("sync.interval_seconds must be positive"))
	}
	if c.Auth.Password == "" {
		errs = append(errs, errors.New("auth.password is empty"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// PollInterval 调度器唤醒间隔，不超过一小时也不超过同步间隔
func (c *AppConfig) PollInterval() time.Duration {
	poll := time.Duration(c.Refresh.PollIntervalSeconds) * time.Second
	if poll > time.Hour {
		poll = time.Hour
	}
	if c.Sync.URL != "" {
		if sync := c.SyncInterval(); sync < poll {
			poll = sync
		}
	}
	return poll
}

// SyncInterval 同步间隔
func (c *AppConfig) SyncInterval() time.Duration {
	return time.Duration(c.Sync.IntervalSeconds) * time.Second
}

// SyncTimeout 下载超时
func (c *AppConfig) SyncTimeout() time.Duration {
	return time.Duration(c.Sync.TimeoutSeconds) * time.Second
}

// ShutdownTimeout 优雅退出超时
func (c *AppConfig) ShutdownTimeout() time.Duration {
	if c.Server.ShutdownTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Server.ShutdownTimeoutSeconds) * time.Second
}

// Save 写出配置文件；口令不写入
func Save(cfg *AppConfig, path string) error {
	out := *cfg
	out.Auth.Password = ""
	data, err := toml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config dir: %w", err)
		}
	}
	return os.WriteFile(path, data, 0o644)
}
