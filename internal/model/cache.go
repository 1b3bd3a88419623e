package model

import "time"

// RefreshTrigger 缓存刷新的触发来源
type RefreshTrigger string

const (
	TriggerStartup    RefreshTrigger = "startup"
	TriggerScheduled  RefreshTrigger = "scheduled"
	TriggerManual     RefreshTrigger = "manual"
	TriggerFileChange RefreshTrigger = "file_change"
	TriggerOnDemand   RefreshTrigger = "on_demand"
)

// 刷新结果状态
const (
	RefreshStatusSuccess = "success"
	RefreshStatusFailed  = "failed"
)

// RefreshAttempt 一次重新加载的记录
type RefreshAttempt struct {
	ID          string         `json:"id"`
	Trigger     RefreshTrigger `json:"trigger"`
	Forced      bool           `json:"forced"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt time.Time      `json:"completed_at"`
	Status      string         `json:"status"`
	Error       string         `json:"error,omitempty"`
	CurrentWeek int            `json:"current_week,omitempty"`
	NextWeek    int            `json:"next_week,omitempty"`
	Rows        map[string]int `json:"rows,omitempty"`
}

// Duration 耗时
func (a RefreshAttempt) Duration() time.Duration {
	if a.CompletedAt.IsZero() {
		return 0
	}
	return a.CompletedAt.Sub(a.StartedAt)
}

// CacheStatus 缓存状态（/api/cache-status）
type CacheStatus struct {
	HasCache         bool       `json:"has_cache"`
	CacheTimestamp   *time.Time `json:"cache_timestamp"`
	CacheAgeSeconds  *float64   `json:"cache_age_seconds"`
	FileExists       bool       `json:"file_exists"`
	FileModifiedTime *time.Time `json:"file_modified_time"`
	FileSize         *int64     `json:"file_size"`
	Stale            bool       `json:"stale"`
	StaleReason      string     `json:"stale_reason,omitempty"`
	LastAttempt      *time.Time `json:"last_attempt"`
	LastError        string     `json:"last_error,omitempty"`
	NextUpdateTime   *time.Time `json:"next_update_time"`
	Datasets         []string   `json:"datasets"`
}
