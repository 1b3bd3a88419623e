package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"mlbdash/internal/model"
)

// 运行状态键
const (
	StateLastSuccessAt = "last_success_at"
	StateLastWeeks     = "last_weeks"
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// GetState 读取状态；不存在时 ok=false
func (s *Store) GetState(ctx context.Context, key string) (value string, ok bool, err error) {
	err = s.db.QueryRowContext(ctx, "SELECT value FROM state WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get state %s: %w", key, err)
	}
	return value, true, nil
}

// LastSuccess 上一次成功刷新的完成时间与周次；尚无成功记录时 ok=false
func (s *Store) LastSuccess(ctx context.Context) (at time.Time, weeks model.WeekPair, ok bool, err error) {
	raw, ok, err := s.GetState(ctx, StateLastSuccessAt)
	if err != nil || !ok {
		return time.Time{}, model.WeekPair{}, false, err
	}
	at, err = time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, model.WeekPair{}, false, fmt.Errorf("invalid %s %q: %w", StateLastSuccessAt, raw, err)
	}

	raw, found, err := s.GetState(ctx, StateLastWeeks)
	if err != nil {
		return time.Time{}, model.WeekPair{}, false, err
	}
	if found {
		cur, next, _ := strings.Cut(raw, ",")
		weeks.Current, _ = strconv.Atoi(cur)
		weeks.Next, _ = strconv.Atoi(next)
	}
	return at, weeks, true, nil
}

// AllState 全部状态
func (s *Store) AllState(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM state")
	if err != nil {
		return nil, fmt.Errorf("failed to query state: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		out[key] = value
	}
	return out, rows.Err()
}

func setState(ctx context.Context, db execer, key, value string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set state %s: %w", key, err)
	}
	return nil
}
