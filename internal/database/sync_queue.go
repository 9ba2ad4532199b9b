package database

import (
	"context"
	"fmt"
	"time"

	"staybook/internal/models"
)

const syncTaskColumns = `id, task_type, booking_id, calendar_id, payload, status, last_error, created_at, processed_at`

func (db *DB) CreateSyncTask(ctx context.Context, task *models.SyncTask) error {
	query := `INSERT INTO sync_queue (task_type, booking_id, calendar_id, payload, status, created_at)
              VALUES (?, ?, ?, ?, ?, ?)`
	if task.Status == "" {
		task.Status = models.SyncTaskPending
	}
	now := time.Now().UTC()
	result, err := db.ExecContext(ctx, query,
		task.TaskType,
		task.BookingID,
		task.CalendarID,
		task.Payload,
		task.Status,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create sync task: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	task.ID = id
	task.CreatedAt = now
	return nil
}

// GetPendingSyncTasks returns tasks that were queued but never attempted.
func (db *DB) GetPendingSyncTasks(ctx context.Context, limit int) ([]models.SyncTask, error) {
	query := `SELECT ` + syncTaskColumns + ` FROM sync_queue WHERE status = ? ORDER BY id ASC LIMIT ?`
	return db.querySyncTasks(ctx, query, models.SyncTaskPending, limit)
}

// GetFailedSyncTasks lists failed attempts, newest first, for operators.
func (db *DB) GetFailedSyncTasks(ctx context.Context, limit int) ([]models.SyncTask, error) {
	query := `SELECT ` + syncTaskColumns + ` FROM sync_queue WHERE status = ? ORDER BY id DESC LIMIT ?`
	return db.querySyncTasks(ctx, query, models.SyncTaskFailed, limit)
}

func (db *DB) GetSyncTask(ctx context.Context, id int64) (*models.SyncTask, error) {
	tasks, err := db.querySyncTasks(ctx, `SELECT `+syncTaskColumns+` FROM sync_queue WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, fmt.Errorf("sync task %d not found", id)
	}
	return &tasks[0], nil
}

func (db *DB) UpdateSyncTaskStatus(ctx context.Context, id int64, status, errMsg string) error {
	var lastError *string
	if errMsg != "" {
		lastError = &errMsg
	}

	var processedAt *time.Time
	if status == models.SyncTaskCompleted || status == models.SyncTaskFailed {
		now := time.Now().UTC()
		processedAt = &now
	}

	query := `UPDATE sync_queue SET status = ?, last_error = ?, processed_at = ? WHERE id = ?`
	if _, err := db.ExecContext(ctx, query, status, lastError, processedAt, id); err != nil {
		return fmt.Errorf("failed to update sync task status: %w", err)
	}
	return nil
}

func (db *DB) querySyncTasks(ctx context.Context, query string, args ...any) ([]models.SyncTask, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.SyncTask
	for rows.Next() {
		var t models.SyncTask
		err := rows.Scan(
			&t.ID, &t.TaskType, &t.BookingID, &t.CalendarID, &t.Payload, &t.Status, &t.LastError, &t.CreatedAt, &t.ProcessedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}
