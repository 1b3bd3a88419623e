package filesync

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	DefaultInterval = time.Hour
	DefaultTimeout  = 60 * time.Second
)

// ErrNotWorkbook 下载内容不是 xlsx（通常是登录页或错误页）
var ErrNotWorkbook = errors.New("downloaded content is not an xlsx workbook")

// Options 同步配置
type Options struct {
	URL      string // 共享链接；为空时不做任何下载
	Path     string // 本地工作簿路径
	Interval time.Duration
	Timeout  time.Duration
	Client   *http.Client
	Logger   *slog.Logger
	Now      func() time.Time
}

// Status 本地文件状态
type Status struct {
	Present bool
	ModTime time.Time
	Age     time.Duration
}

// Syncer 把共享链接上的工作簿同步到本地路径
type Syncer struct {
	url      string
	path     string
	interval time.Duration
	client   *http.Client
	logger   *slog.Logger
	now      func() time.Time

	mu sync.Mutex
}

// New 创建同步器
func New(opts Options) *Syncer {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Syncer{
		url:      strings.TrimSpace(opts.URL),
		path:     opts.Path,
		interval: opts.Interval,
		client:   opts.Client,
		logger:   opts.Logger.With("component", "filesync"),
		now:      opts.Now,
	}
}

// Enabled 是否配置了共享链接
func (s *Syncer) Enabled() bool {
	return s.url != ""
}

// Status 本地文件是否存在及其年龄
func (s *Syncer) Status() Status {
	st, err := os.Stat(s.path)
	if err != nil || st.IsDir() {
		return Status{}
	}
	return Status{Present: true, ModTime: st.ModTime(), Age: s.now().Sub(st.ModTime())}
}

// Ensure 文件缺失、超过同步间隔或 force 时下载；未配置链接时为空操作
func (s *Syncer) Ensure(ctx context.Context, force bool) error {
	if !s.Enabled() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if st := s.Status(); !force && st.Present && st.Age < s.interval {
		s.logger.Debug("local workbook is recent, skipping download", "age", st.Age.Round(time.Second))
		return nil
	}

	start := s.now()
	link, err := s.resolve(ctx, s.url)
	if err != nil {
		return err
	}
	n, err := s.download(ctx, link)
	if err != nil {
		return err
	}
	s.logger.Info("workbook downloaded", "path", s.path, "bytes", n, "forced", force, "duration", s.now().Sub(start))
	return nil
}

// DownloadURL 把 OneDrive 嵌入 / 查看链接改写为直接下载链接；其它链接原样返回
func DownloadURL(link string) string {
	if !strings.Contains(link, "onedrive.live.com") {
		return link
	}
	if strings.Contains(link, "/embed?") {
		return strings.Replace(link, "/embed?", "/download?", 1)
	}
	if !strings.Contains(link, "download") {
		return strings.Replace(link, "?", "/download?", 1)
	}
	return link
}

// resolve 1drv.ms 短链先跟随重定向再改写
func (s *Syncer) resolve(ctx context.Context, link string) (string, error) {
	if !strings.Contains(link, "1drv.ms") {
		return DownloadURL(link), nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to resolve share link: %w", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return DownloadURL(resp.Request.URL.String()), nil
}

func (s *Syncer) download(ctx context.Context, link string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to download workbook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("failed to download workbook: status %d", resp.StatusCode)
	}

	body := bufio.NewReader(resp.Body)
	head, err := body.Peek(2)
	if err != nil || !bytes.Equal(head, []byte("PK")) {
		return 0, ErrNotWorkbook
	}
	return writeFileAtomic(s.path, body)
}

// writeFileAtomic 写入同目录临时文件后 rename，读者不会看到半个文件
func writeFileAtomic(path string, r io.Reader) (int64, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("failed to create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".download-*.xlsx")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}

	n, err := io.Copy(tmp, r)
	if err != nil {
		cleanup()
		return 0, fmt.Errorf("failed to write workbook: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return 0, fmt.Errorf("failed to sync workbook: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return 0, fmt.Errorf("failed to close workbook: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return 0, fmt.Errorf("failed to replace workbook: %w", err)
	}
	return n, nil
}
