package cache

import (
	"context"
	"log/slog"
	"time"

	"mlbdash/internal/model"
)

// DefaultPollInterval 两次唤醒之间的最长等待
const DefaultPollInterval = time.Hour

// Refresher 调度器驱动的刷新目标
type Refresher interface {
	Refresh(ctx context.Context, force bool, trigger model.RefreshTrigger) (time.Time, error)
}

// NextRun 下一次 hour:minute（当天尚未到达则为当天，否则为次日）
func NextRun(now time.Time, hour, minute int) time.Time {
	next := DailyWindow(now, hour, minute)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// DailyWindow 当天的 hour:minute
func DailyWindow(now time.Time, hour, minute int) time.Time {
	y, mo, d := now.Date()
	return time.Date(y, mo, d, hour, minute, 0, 0, now.Location())
}

func startOfDay(t time.Time) time.Time {
	return DailyWindow(t, 0, 0)
}

// Scheduler 每日定时刷新；按 poll 间隔唤醒以检查文件变化，也可被 Trigger 唤醒
type Scheduler struct {
	target  Refresher
	hour    int
	minute  int
	poll    time.Duration
	trigger chan struct{}
	logger  *slog.Logger
	now     func() time.Time
}

// NewScheduler 创建调度器；poll 超过一小时按一小时处理
func NewScheduler(target Refresher, hour, minute int, poll time.Duration, logger *slog.Logger) *Scheduler {
	if poll <= 0 || poll > DefaultPollInterval {
		poll = DefaultPollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		target:  target,
		hour:    hour,
		minute:  minute,
		poll:    poll,
		trigger: make(chan struct{}, 1),
		logger:  logger.With("component", "scheduler"),
		now:     time.Now,
	}
}

// Trigger 请求一次强制刷新；不阻塞，未处理的请求合并为一次
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Run 运行到 ctx 取消
func (s *Scheduler) Run(ctx context.Context) {
	next := NextRun(s.now(), s.hour, s.minute)
	s.logger.Info("scheduler started", "next_run", next, "poll", s.poll)

	for {
		wait := next.Sub(s.now())
		if wait > s.poll {
			wait = s.poll
		}
		if wait < 0 {
			wait = 0
		}
		timer := time.NewTimer(wait)

		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("scheduler stopped")
			return
		case <-s.trigger:
			timer.Stop()
			s.run(ctx, true, model.TriggerManual)
		case <-timer.C:
			if now := s.now(); !now.Before(next) {
				s.run(ctx, true, model.TriggerScheduled)
				next = NextRun(now, s.hour, s.minute)
				s.logger.Info("next scheduled refresh", "next_run", next)
			} else {
				// 未到定时点：仅在文件变化或同步间隔到期时加载
				s.run(ctx, false, model.TriggerFileChange)
			}
		}
	}
}

func (s *Scheduler) run(ctx context.Context, force bool, trigger model.RefreshTrigger) {
	if _, err := s.target.Refresh(ctx, force, trigger); err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Warn("refresh failed", "trigger", string(trigger), "error", err)
	}
}
