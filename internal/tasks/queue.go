// Package tasks implements the Task Queue: persisted, retriable
// side-effectful work (email, HTTP webhook) pulled in batches and left in
// place on failure for a later drain to retry.
package tasks

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/retrack-engine/retrack/internal/domain"
)

// pageSize bounds a single drain's keyset page, matching the Task Queue
// contract's PAGE_SIZE.
const pageSize = 100

// Repository is the persistence boundary the Queue depends on.
type Repository interface {
	InsertTask(ctx context.Context, task *domain.Task) error
	GetTask(ctx context.Context, taskID string) (*domain.Task, error)
	RemoveTask(ctx context.Context, taskID string) error

	// ListDueTasks returns up to limit tasks with ScheduledAt <= now,
	// ordered by (scheduled_at ASC, id ASC), resuming after the keyset
	// cursor (afterScheduledAt, afterID).
	ListDueTasks(ctx context.Context, now time.Time, afterScheduledAt time.Time, afterID string, limit int) ([]domain.Task, error)

	// RescheduleTask bumps a failed task's retry_attempt and defers it to
	// scheduledAt, for Queue.Drain's retry-strategy-backed failure path.
	RescheduleTask(ctx context.Context, taskID string, retryAttempt int, scheduledAt time.Time) error
}

// Executor runs one task to completion; a non-nil error leaves the task
// in the queue for the next drain.
type Executor interface {
	Execute(ctx context.Context, task domain.Task) error
}

// Recorder appends an audit entry to the separate notifications log for
// every task outcome (success or failure), independent of the
// retriable tasks row itself — grounded on spec.md's persisted-state
// table listing `notifications(id, destination_blob, content_blob,
// scheduled_at)` alongside `tasks`: the admin surface reads this table
// for delivery history, while `tasks` is purely the work queue. A nil
// Recorder disables logging.
type Recorder interface {
	RecordNotification(ctx context.Context, task domain.Task, outcome error) error
}

// Queue schedules and drains tasks.
type Queue struct {
	repo           Repository
	executors      map[domain.TaskTypeKind]Executor
	recorder       Recorder
	retryStrategies map[domain.TaskTypeKind]*domain.RetryStrategy
}

// New builds a Queue backed by repo, dispatching to executors by
// TaskTypeKind.
func New(repo Repository, executors map[domain.TaskTypeKind]Executor) *Queue {
	return &Queue{repo: repo, executors: executors}
}

// WithRecorder attaches a notification-log Recorder, returning the same
// Queue for chaining at construction time.
func (q *Queue) WithRecorder(recorder Recorder) *Queue {
	q.recorder = recorder
	return q
}

// WithRetryStrategies attaches a per-task-kind retry policy (spec.md §6's
// `tasks.{http,email}.retry_strategy`), returning the same Queue for
// chaining. A kind with no entry keeps the default behavior of leaving a
// failed task in place, unattempted-count, for every subsequent drain.
func (q *Queue) WithRetryStrategies(strategies map[domain.TaskTypeKind]*domain.RetryStrategy) *Queue {
	q.retryStrategies = strategies
	return q
}

// Schedule inserts a new task with a time-sortable id.
func (q *Queue) Schedule(ctx context.Context, taskType domain.TaskType, scheduledAt time.Time, tags []string) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", domain.NewEngineError(domain.KindUnknown, err)
	}

	task := &domain.Task{
		ID:          id.String(),
		Type:        taskType,
		Tags:        tags,
		ScheduledAt: scheduledAt.UTC(),
	}
	if err := q.repo.InsertTask(ctx, task); err != nil {
		return "", domain.NewEngineError(domain.KindPersistence, err)
	}
	return task.ID, nil
}

// Get returns a single task, or domain.ErrNotFound.
func (q *Queue) Get(ctx context.Context, taskID string) (*domain.Task, error) {
	task, err := q.repo.GetTask(ctx, taskID)
	if err != nil {
		return nil, domain.NewEngineError(domain.KindPersistence, err)
	}
	return task, nil
}

// Remove deletes a single task unconditionally.
func (q *Queue) Remove(ctx context.Context, taskID string) error {
	if err := q.repo.RemoveTask(ctx, taskID); err != nil {
		return domain.NewEngineError(domain.KindPersistence, err)
	}
	return nil
}

// Drain pulls due tasks in keyset-paginated pages of at most
// min(limit, pageSize), executing each via its registered Executor.
// Successful tasks are deleted; failed tasks are handled by
// handleFailure. Returns the number of tasks successfully executed.
func (q *Queue) Drain(ctx context.Context, limit int) (int, error) {
	if limit <= 0 || limit > pageSize {
		limit = pageSize
	}

	now := time.Now().UTC()
	var (
		processed        int
		afterScheduledAt time.Time
		afterID          string
	)

	for processed < limit {
		remaining := limit - processed
		page, err := q.repo.ListDueTasks(ctx, now, afterScheduledAt, afterID, min(remaining, pageSize))
		if err != nil {
			return processed, domain.NewEngineError(domain.KindPersistence, err)
		}
		if len(page) == 0 {
			break
		}

		for _, task := range page {
			execErr := q.executeOne(ctx, task)
			q.record(ctx, task, execErr)

			if execErr != nil {
				q.handleFailure(ctx, task, execErr)
				continue
			}
			if err := q.repo.RemoveTask(ctx, task.ID); err != nil {
				slog.ErrorContext(ctx, "failed to delete completed task", "task_id", task.ID, "error", err)
				continue
			}
			processed++
		}

		last := page[len(page)-1]
		afterScheduledAt, afterID = last.ScheduledAt, last.ID

		if len(page) < pageSize {
			break
		}
	}

	return processed, nil
}

// executeOne recovers from a panicking executor so one bad task never
// aborts the drain loop, mirroring the per-boundary error containment the
// Fetch Pipeline applies per tracker.
func (q *Queue) executeOne(ctx context.Context, task domain.Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = domain.NewEngineError(domain.KindUnknown, panicError{r})
		}
	}()

	executor, ok := q.executors[task.Type.Kind]
	if !ok {
		return domain.NewEngineError(domain.KindClient, unsupportedTaskKindError{task.Type.Kind})
	}
	return executor.Execute(ctx, task)
}

// handleFailure applies the task kind's configured retry strategy, if
// any: with no strategy for the kind the task is left in place with its
// ScheduledAt unchanged; with one, the task is deferred by the strategy's
// next delay with its retry_attempt bumped, and is removed once the
// attempt would exceed the strategy's MaxAttempts.
func (q *Queue) handleFailure(ctx context.Context, task domain.Task, execErr error) {
	strategy := q.retryStrategies[task.Type.Kind]
	if strategy == nil {
		slog.ErrorContext(ctx, "task execution failed, leaving in place for retry",
			"task_id", task.ID, "task_kind", task.Type.Kind, "error", execErr)
		return
	}

	attempt := 1
	if task.RetryAttempt != nil {
		attempt = *task.RetryAttempt + 1
	}
	if attempt > strategy.MaxAttempts() {
		slog.ErrorContext(ctx, "task retry budget exhausted, dropping task",
			"task_id", task.ID, "task_kind", task.Type.Kind, "attempts", attempt-1, "error", execErr)
		if err := q.repo.RemoveTask(ctx, task.ID); err != nil {
			slog.ErrorContext(ctx, "failed to delete exhausted task", "task_id", task.ID, "error", err)
		}
		return
	}

	nextAt := time.Now().UTC().Add(strategy.NextDelay(attempt))
	if err := q.repo.RescheduleTask(ctx, task.ID, attempt, nextAt); err != nil {
		slog.ErrorContext(ctx, "failed to reschedule failed task", "task_id", task.ID, "error", err)
	}
}

func (q *Queue) record(ctx context.Context, task domain.Task, outcome error) {
	if q.recorder == nil {
		return
	}
	if err := q.recorder.RecordNotification(ctx, task, outcome); err != nil {
		slog.ErrorContext(ctx, "failed to record notification log entry", "task_id", task.ID, "error", err)
	}
}

type panicError struct{ value any }

func (e panicError) Error() string { return "task executor panicked" }

type unsupportedTaskKindError struct{ kind domain.TaskTypeKind }

func (e unsupportedTaskKindError) Error() string { return "no executor registered for task kind " + string(e.kind) }
