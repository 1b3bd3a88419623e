package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"mlbdash/internal/model"
)

// DefaultRefreshLogLimit 列表默认条数
const DefaultRefreshLogLimit = 50

// RecordRefresh 写入一次刷新记录；成功时同时更新运行状态
func (s *Store) RecordRefresh(ctx context.Context, a model.RefreshAttempt) error {
	rows, err := json.Marshal(a.Rows)
	if err != nil {
		return fmt.Errorf("failed to encode row counts: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO refresh_log (id, trigger_name, forced, status, error_message, current_week, next_week, row_counts, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, string(a.Trigger), a.Forced, a.Status, a.Error, a.CurrentWeek, a.NextWeek, string(rows),
		a.StartedAt.UTC(), a.CompletedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert refresh log: %w", err)
	}

	if a.Status == model.RefreshStatusSuccess {
		if err := setState(ctx, tx, StateLastSuccessAt, a.CompletedAt.UTC().Format(time.RFC3339Nano)); err != nil {
			return err
		}
		if err := setState(ctx, tx, StateLastWeeks, strconv.Itoa(a.CurrentWeek)+","+strconv.Itoa(a.NextWeek)); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit refresh log: %w", err)
	}
	return nil
}

// ListRefreshAttempts 最近的刷新记录，按开始时间倒序
func (s *Store) ListRefreshAttempts(ctx context.Context, limit int) ([]model.RefreshAttempt, error) {
	if limit <= 0 {
		limit = DefaultRefreshLogLimit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, trigger_name, forced, status, error_message, current_week, next_week, row_counts, started_at, completed_at
		FROM refresh_log
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query refresh log: %w", err)
	}
	defer rows.Close()

	out := make([]model.RefreshAttempt, 0)
	for rows.Next() {
		var (
			a       model.RefreshAttempt
			trigger string
			counts  string
		)
		if err := rows.Scan(&a.ID, &trigger, &a.Forced, &a.Status, &a.Error, &a.CurrentWeek, &a.NextWeek,
			&counts, &a.StartedAt, &a.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan refresh log: %w", err)
		}
		a.Trigger = model.RefreshTrigger(trigger)
		if counts != "" && counts != "null" {
			if err := json.Unmarshal([]byte(counts), &a.Rows); err != nil {
				return nil, fmt.Errorf("failed to decode row counts: %w", err)
			}
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// PruneRefreshLog 只保留最近 keep 条记录
func (s *Store) PruneRefreshLog(ctx context.Context, keep int) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM refresh_log
		WHERE id NOT IN (SELECT id FROM refresh_log ORDER BY started_at DESC LIMIT ?)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune refresh log: %w", err)
	}
	return res.RowsAffected()
}
