package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"mlbdash/internal/model"
	"mlbdash/internal/parser"
)

var (
	// ErrValidation 文档缺少必需的顶层键，本次加载作废
	ErrValidation = errors.New("document validation failed")
	// ErrUnknownDataset 未配置的数据集
	ErrUnknownDataset = errors.New("unknown dataset")
)

// 数据集键
const (
	DatasetQuantity   = "quantity"
	DatasetStyleCount = "style_count"
)

// StyleCountSheet 스타일수 기준 工作表
const StyleCountSheet = "스타일수 기준"

// 过期原因
const (
	StaleEmpty        = "empty"
	StaleFileModified = "file_modified"
	StaleDailyWindow  = "daily_window"
)

// Dataset 数据集到工作表的映射
type Dataset struct {
	Key   string
	Sheet string
}

// DefaultDatasets quantity 使用配置的工作表，style_count 固定
func DefaultDatasets(quantitySheet string) []Dataset {
	return []Dataset{
		{Key: DatasetQuantity, Sheet: quantitySheet},
		{Key: DatasetStyleCount, Sheet: StyleCountSheet},
	}
}

// Loader 工作簿加载器
type Loader interface {
	LoadSheets(sheetNames []string) (map[string]*model.Document, error)
}

// SourceInfo 源文件状态
type SourceInfo struct {
	Exists  bool
	ModTime time.Time
	Size    int64
}

// Source 提供源文件是否存在及修改时间
type Source interface {
	Info() SourceInfo
}

// Syncer 文件同步：必要时（或强制）下载源文件
type Syncer interface {
	Ensure(ctx context.Context, force bool) error
}

// History 刷新记录
type History interface {
	RecordRefresh(ctx context.Context, attempt model.RefreshAttempt) error
}

// FileSource 直接 stat 本地文件
type FileSource string

// Info 实现 Source
func (p FileSource) Info() SourceInfo {
	st, err := os.Stat(string(p))
	if err != nil || st.IsDir() {
		return SourceInfo{}
	}
	return SourceInfo{Exists: true, ModTime: st.ModTime(), Size: st.Size()}
}

// Options 缓存配置
type Options struct {
	Datasets      []Dataset
	RefreshHour   int
	RefreshMinute int
	Source        Source
	Syncer        Syncer  // 可选
	History       History // 可选
	Logger        *slog.Logger
	Now           func() time.Time // 测试注入
}

type snapshot struct {
	docs        map[string]*model.Document
	loadedAt    time.Time
	fileModTime time.Time
}

// Manager 缓存管理器：读者只读取不可变快照，重载期间旧值始终可读
type Manager struct {
	loader   Loader
	opts     Options
	logger   *slog.Logger
	now      func() time.Time
	datasets map[string]string

	current atomic.Pointer[snapshot]
	group   singleflight.Group
	bgBusy  atomic.Bool
	bg      sync.WaitGroup

	mu          sync.Mutex
	lastAttempt time.Time
	lastFailure time.Time
	lastError   string
}

// New 创建缓存管理器
func New(loader Loader, opts Options) (*Manager, error) {
	if loader == nil {
		return nil, errors.New("cache: nil loader")
	}
	if len(opts.Datasets) == 0 {
		return nil, errors.New("cache: no datasets")
	}
	if opts.Source == nil {
		return nil, errors.New("cache: nil source")
	}
	if opts.RefreshHour < 0 || opts.RefreshHour > 23 || opts.RefreshMinute < 0 || opts.RefreshMinute > 59 {
		return nil, fmt.Errorf("cache: invalid refresh time %02d:%02d", opts.RefreshHour, opts.RefreshMinute)
	}
	datasets := make(map[string]string, len(opts.Datasets))
	for _, d := range opts.Datasets {
		if d.Key == "" || d.Sheet == "" {
			return nil, fmt.Errorf("cache: invalid dataset %+v", d)
		}
		if _, dup := datasets[d.Key]; dup {
			return nil, fmt.Errorf("cache: duplicate dataset %q", d.Key)
		}
		datasets[d.Key] = d.Sheet
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{
		loader:   loader,
		opts:     opts,
		logger:   logger.With("component", "cache"),
		now:      now,
		datasets: datasets,
	}, nil
}

// Datasets 已配置的数据集键（按配置顺序）
func (m *Manager) Datasets() []string {
	keys := make([]string, 0, len(m.opts.Datasets))
	for _, d := range m.opts.Datasets {
		keys = append(keys, d.Key)
	}
	return keys
}

// Entry 一次读取的结果
type Entry struct {
	Document    *model.Document
	LoadedAt    time.Time
	FileModTime time.Time
}

// Get 读取数据集。缓存为空时同步加载（或加入进行中的加载）；
// 已过期时立即返回旧值并在后台重载。
func (m *Manager) Get(ctx context.Context, key string) (Entry, error) {
	if _, ok := m.datasets[key]; !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrUnknownDataset, key)
	}

	snap := m.current.Load()
	if snap == nil {
		if _, err := m.Refresh(ctx, false, model.TriggerOnDemand); err != nil {
			return Entry{}, err
		}
		snap = m.current.Load()
		if snap == nil {
			return Entry{}, errors.New("cache: empty after load")
		}
	} else if stale, reason, signal := m.staleness(m.now(), snap); stale && !m.failedSince(signal) {
		trigger := model.TriggerScheduled
		if reason == StaleFileModified {
			trigger = model.TriggerFileChange
		}
		m.refreshAsync(trigger)
	}

	return Entry{
		Document:    snap.docs[key],
		LoadedAt:    snap.loadedAt,
		FileModTime: snap.fileModTime,
	}, nil
}

// reloadKey 所有刷新共用一个 singleflight 通道
const reloadKey = "reload"

type reloadResult struct {
	loadedAt time.Time
	loaded   bool // 本次确实读取了工作簿
}

// Refresh 重新加载；同一时刻只有一次加载在执行，进行中的加载被所有调用者共享。
// force=false 时仅在过期（或为空）时加载。强制调用者若加入的是一次判定为
// 无需加载的非强制刷新，则在其结束后再发起一次。返回当前缓存的加载时间。
func (m *Manager) Refresh(ctx context.Context, force bool, trigger model.RefreshTrigger) (time.Time, error) {
	// 调用方取消不应中断共享的加载
	base := context.WithoutCancel(ctx)
	for {
		res, err := m.join(ctx, base, force, trigger)
		if err != nil {
			return time.Time{}, err
		}
		if res.loaded || !force {
			return res.loadedAt, nil
		}
	}
}

func (m *Manager) join(ctx, base context.Context, force bool, trigger model.RefreshTrigger) (reloadResult, error) {
	m.bg.Add(1)
	ch := m.group.DoChan(reloadKey, func() (any, error) {
		return m.reload(base, force, trigger)
	})
	select {
	case res := <-ch:
		m.bg.Done()
		if res.Err != nil {
			return reloadResult{}, res.Err
		}
		return res.Val.(reloadResult), nil
	case <-ctx.Done():
		go func() {
			<-ch
			m.bg.Done()
		}()
		return reloadResult{}, ctx.Err()
	}
}

// Wait 等待所有进行中的重载结束（包括调用方已放弃等待的）
func (m *Manager) Wait() {
	m.bg.Wait()
}

func (m *Manager) refreshAsync(trigger model.RefreshTrigger) {
	if !m.bgBusy.CompareAndSwap(false, true) {
		return
	}
	m.bg.Add(1)
	go func() {
		defer m.bg.Done()
		defer m.bgBusy.Store(false)
		if _, err := m.Refresh(context.Background(), false, trigger); err != nil {
			m.logger.Warn("background refresh failed", "trigger", string(trigger), "error", err)
		}
	}()
}

func (m *Manager) reload(ctx context.Context, force bool, trigger model.RefreshTrigger) (reloadResult, error) {
	if m.opts.Syncer != nil {
		if err := m.opts.Syncer.Ensure(ctx, force); err != nil {
			m.logger.Warn("file sync failed, using local copy", "trigger", string(trigger), "error", err)
		}
	}

	prev := m.current.Load()
	if !force && prev != nil {
		if stale, _, _ := m.staleness(m.now(), prev); !stale {
			return reloadResult{loadedAt: prev.loadedAt}, nil
		}
	}

	attempt := model.RefreshAttempt{
		ID:        uuid.NewString(),
		Trigger:   trigger,
		Forced:    force,
		StartedAt: m.now(),
	}
	info := m.opts.Source.Info()
	loadedAt := m.now()

	docs, err := m.load()
	attempt.CompletedAt = m.now()
	if err != nil {
		attempt.Status = model.RefreshStatusFailed
		attempt.Error = err.Error()
		m.recordFailure(attempt)
		m.record(ctx, attempt)
		m.logger.Error("refresh failed, keeping previous cache",
			"trigger", string(trigger),
			"has_previous", prev != nil,
			"duration", attempt.Duration(),
			"error", err,
		)
		return reloadResult{}, err
	}

	m.current.Store(&snapshot{docs: docs, loadedAt: loadedAt, fileModTime: info.ModTime})

	first := docs[m.opts.Datasets[0].Key]
	attempt.Status = model.RefreshStatusSuccess
	attempt.CurrentWeek = first.WeekInfo.Current
	attempt.NextWeek = first.WeekInfo.Next
	attempt.Rows = first.RowCounts()
	m.recordSuccess(attempt)
	m.record(ctx, attempt)
	m.logger.Info("cache refreshed",
		"trigger", string(trigger),
		"forced", force,
		"week_current", attempt.CurrentWeek,
		"week_next", attempt.NextWeek,
		"rows", attempt.Rows,
		"duration", attempt.Duration(),
	)
	return reloadResult{loadedAt: loadedAt, loaded: true}, nil
}

func (m *Manager) load() (map[string]*model.Document, error) {
	sheets := make([]string, 0, len(m.opts.Datasets))
	for _, d := range m.opts.Datasets {
		sheets = append(sheets, d.Sheet)
	}
	bySheet, err := m.loader.LoadSheets(sheets)
	if err != nil {
		return nil, err
	}

	docs := make(map[string]*model.Document, len(m.opts.Datasets))
	for _, d := range m.opts.Datasets {
		doc, ok := bySheet[d.Sheet]
		if !ok || doc == nil {
			return nil, fmt.Errorf("%w: sheet %q not loaded", ErrValidation, d.Sheet)
		}
		if err := Validate(doc); err != nil {
			return nil, err
		}
		docs[d.Key] = doc
	}
	return docs, nil
}

// Validate 检查文档包含必需的块与 week_info
func Validate(doc *model.Document) error {
	for _, name := range parser.RequiredBlocks {
		if _, ok := doc.Block(name); !ok {
			return fmt.Errorf("%w: sheet %q missing %s", ErrValidation, doc.SheetName, name)
		}
	}
	if doc.WeekInfo.Current == 0 || doc.WeekInfo.Next == 0 {
		return fmt.Errorf("%w: sheet %q missing %s", ErrValidation, doc.SheetName, model.KeyWeekInfo)
	}
	return nil
}

func (m *Manager) record(ctx context.Context, attempt model.RefreshAttempt) {
	if m.opts.History == nil {
		return
	}
	if err := m.opts.History.RecordRefresh(ctx, attempt); err != nil {
		m.logger.Warn("failed to record refresh", "id", attempt.ID, "error", err)
	}
}

func (m *Manager) recordFailure(a model.RefreshAttempt) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastAttempt = a.StartedAt
	m.lastFailure = a.CompletedAt
	m.lastError = a.Error
}

func (m *Manager) recordSuccess(a model.RefreshAttempt) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastAttempt = a.StartedAt
	m.lastError = ""
}

// failedSince 过期信号之后是否已有失败的尝试；是则不再由请求触发重载
func (m *Manager) failedSince(signal time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.lastFailure.IsZero() && m.lastFailure.After(signal)
}

// Stale 判断当前缓存是否过期
func (m *Manager) Stale(now time.Time) (bool, string) {
	stale, reason, _ := m.staleness(now, m.current.Load())
	return stale, reason
}

// staleness 返回是否过期、原因以及触发过期的时间点
func (m *Manager) staleness(now time.Time, snap *snapshot) (bool, string, time.Time) {
	if snap == nil {
		return true, StaleEmpty, time.Time{}
	}
	info := m.opts.Source.Info()
	if info.Exists && info.ModTime.After(snap.loadedAt) {
		return true, StaleFileModified, info.ModTime
	}
	window := DailyWindow(now, m.opts.RefreshHour, m.opts.RefreshMinute)
	if snap.loadedAt.Before(startOfDay(now)) && !now.Before(window) {
		return true, StaleDailyWindow, window
	}
	return false, "", time.Time{}
}

// Status 缓存状态
func (m *Manager) Status() model.CacheStatus {
	now := m.now()
	snap := m.current.Load()
	info := m.opts.Source.Info()

	st := model.CacheStatus{
		HasCache:   snap != nil,
		FileExists: info.Exists,
		Datasets:   m.Datasets(),
	}
	if snap != nil {
		ts := snap.loadedAt
		age := now.Sub(ts).Seconds()
		st.CacheTimestamp = &ts
		st.CacheAgeSeconds = &age
	}
	if info.Exists {
		mt, size := info.ModTime, info.Size
		st.FileModifiedTime = &mt
		st.FileSize = &size
	}
	st.Stale, st.StaleReason, _ = m.staleness(now, snap)

	m.mu.Lock()
	if !m.lastAttempt.IsZero() {
		la := m.lastAttempt
		st.LastAttempt = &la
	}
	st.LastError = m.lastError
	m.mu.Unlock()

	next := NextRun(now, m.opts.RefreshHour, m.opts.RefreshMinute)
	st.NextUpdateTime = &next
	return st
}
