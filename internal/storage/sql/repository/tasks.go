package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/retrack-engine/retrack/internal/domain"
)

// InsertTask implements tasks.Repository.
func (s *Store) InsertTask(ctx context.Context, task *domain.Task) error {
	typeBlob, err := json.Marshal(task.Type)
	if err != nil {
		return fmt.Errorf("marshal task type: %w", err)
	}
	tagsJSON, err := json.Marshal(task.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, task_type_blob, tags, scheduled_at, retry_attempt)
		VALUES ($1, $2, $3, $4, $5)`,
		task.ID, typeBlob, tagsJSON, task.ScheduledAt, task.RetryAttempt)
	return err
}

// GetTask implements tasks.Repository.
func (s *Store) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, task_type_blob, tags, scheduled_at, retry_attempt
		FROM tasks WHERE id = $1`, taskID)

	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// RemoveTask implements tasks.Repository.
func (s *Store) RemoveTask(ctx context.Context, taskID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, taskID)
	return err
}

// RescheduleTask implements tasks.Repository.
func (s *Store) RescheduleTask(ctx context.Context, taskID string, retryAttempt int, scheduledAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET retry_attempt = $1, scheduled_at = $2 WHERE id = $3`,
		retryAttempt, scheduledAt, taskID)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

// ListDueTasks implements tasks.Repository: keyset pagination ordered
// by (scheduled_at ASC, id ASC), resuming after the given cursor.
func (s *Store) ListDueTasks(ctx context.Context, now, afterScheduledAt time.Time, afterID string, limit int) ([]domain.Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task_type_blob, tags, scheduled_at, retry_attempt
		FROM tasks
		WHERE scheduled_at <= $1
		  AND (scheduled_at, id) > ($2, $3)
		ORDER BY scheduled_at ASC, id ASC
		LIMIT $4`, now, afterScheduledAt, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("query due tasks: %w", err)
	}
	defer rows.Close()

	var out []domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, task)
	}
	return out, rows.Err()
}

func scanTask(row rowScanner) (domain.Task, error) {
	var (
		task         domain.Task
		typeBlob     []byte
		tagsJSON     []byte
		retryAttempt sql.NullInt64
	)
	if err := row.Scan(&task.ID, &typeBlob, &tagsJSON, &task.ScheduledAt, &retryAttempt); err != nil {
		return domain.Task{}, err
	}
	if err := json.Unmarshal(typeBlob, &task.Type); err != nil {
		return domain.Task{}, fmt.Errorf("unmarshal task type: %w", err)
	}
	if err := json.Unmarshal(tagsJSON, &task.Tags); err != nil {
		return domain.Task{}, fmt.Errorf("unmarshal tags: %w", err)
	}
	if retryAttempt.Valid {
		n := int(retryAttempt.Int64)
		task.RetryAttempt = &n
	}
	return task, nil
}
