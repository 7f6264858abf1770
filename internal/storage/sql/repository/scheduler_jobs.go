package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/retrack-engine/retrack/internal/domain"
	"github.com/retrack-engine/retrack/internal/ptr"
)

// GetJobByType implements scheduler.Repository for the three fixed
// recurring job types (TrackersSchedule, TrackersRun, TasksRun).
func (s *Store) GetJobByType(ctx context.Context, jobType domain.JobType) (*domain.SchedulerJob, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, job_type, tracker_id, cron_source, last_tick, next_run, stopped, retry_meta_blob
		FROM scheduler_jobs
		WHERE job_type = $1 AND tracker_id IS NULL`, string(jobType))

	job, err := scanSchedulerJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// GetPerTrackerJob implements scheduler.Repository.
func (s *Store) GetPerTrackerJob(ctx context.Context, trackerID string) (*domain.SchedulerJob, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, job_type, tracker_id, cron_source, last_tick, next_run, stopped, retry_meta_blob
		FROM scheduler_jobs
		WHERE tracker_id = $1`, trackerID)

	job, err := scanSchedulerJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// ListPerTrackerJobs implements scheduler.Repository.
func (s *Store) ListPerTrackerJobs(ctx context.Context) ([]domain.SchedulerJob, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, job_type, tracker_id, cron_source, last_tick, next_run, stopped, retry_meta_blob
		FROM scheduler_jobs
		WHERE tracker_id IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("query per-tracker jobs: %w", err)
	}
	defer rows.Close()

	var out []domain.SchedulerJob
	for rows.Next() {
		job, err := scanSchedulerJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

// UpsertJob implements scheduler.Repository: inserts a new job row, or
// replaces the row matching its (job_type, tracker_id) slot — the same
// slot the partial unique indexes on scheduler_jobs enforce uniqueness
// over.
func (s *Store) UpsertJob(ctx context.Context, job *domain.SchedulerJob) error {
	metaBlob, err := json.Marshal(job.RetryMeta)
	if err != nil {
		return fmt.Errorf("marshal retry meta: %w", err)
	}

	conflictTarget := "(job_type) WHERE tracker_id IS NULL"
	if job.TrackerID != nil {
		conflictTarget = "(tracker_id) WHERE tracker_id IS NOT NULL"
	}

	_, err = s.db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO scheduler_jobs (id, job_type, tracker_id, cron_source, last_tick, next_run, stopped, retry_meta_blob)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT %s DO UPDATE SET
			cron_source = EXCLUDED.cron_source,
			last_tick = EXCLUDED.last_tick,
			next_run = EXCLUDED.next_run,
			stopped = EXCLUDED.stopped,
			retry_meta_blob = EXCLUDED.retry_meta_blob`, conflictTarget),
		job.ID, string(job.Type), job.TrackerID, job.CronSource, job.LastTick, job.NextRun, job.Stopped, metaBlob)
	return err
}

// RemoveJob implements scheduler.Repository.
func (s *Store) RemoveJob(ctx context.Context, jobID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM scheduler_jobs WHERE id = $1`, jobID)
	return err
}

// SetRetryMeta implements scheduler.Repository and, via
// RemovePerTrackerJob/GetRetryMeta below, the retry-accounting half of
// fetch.JobRepository.
func (s *Store) SetRetryMeta(ctx context.Context, jobID string, meta *domain.RetryMeta, stopped bool) error {
	metaBlob, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal retry meta: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE scheduler_jobs SET retry_meta_blob = $1, stopped = $2 WHERE id = $3`,
		metaBlob, stopped, jobID)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

// Touch implements scheduler.Repository, recording the tick a job was
// last run at and its freshly computed next occurrence.
func (s *Store) Touch(ctx context.Context, jobID string, tick time.Time, nextRun time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE scheduler_jobs SET last_tick = $1, next_run = $2 WHERE id = $3`, tick, nextRun, jobID)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

// RemovePerTrackerJob implements fetch.JobRepository, called by the
// pipeline's validate step for a display-only tracker (no revisions or
// no job config).
func (s *Store) RemovePerTrackerJob(ctx context.Context, trackerID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM scheduler_jobs WHERE tracker_id = $1`, trackerID)
	return err
}

// GetRetryMeta implements fetch.JobRepository, returning the persisted
// retry state for a tracker's per-tracker job, or nil if none exists.
func (s *Store) GetRetryMeta(ctx context.Context, trackerID string) (*domain.RetryMeta, error) {
	job, err := s.GetPerTrackerJob(ctx, trackerID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, nil
	}
	return job.RetryMeta, nil
}

func scanSchedulerJob(row rowScanner) (domain.SchedulerJob, error) {
	var (
		job           domain.SchedulerJob
		jobType       string
		trackerID     sql.NullString
		lastTick      sql.NullTime
		retryMetaBlob []byte
	)
	if err := row.Scan(&job.ID, &jobType, &trackerID, &job.CronSource, &lastTick, &job.NextRun, &job.Stopped, &retryMetaBlob); err != nil {
		return domain.SchedulerJob{}, err
	}
	job.Type = domain.JobType(jobType)
	if trackerID.Valid {
		job.TrackerID = ptr.To(trackerID.String)
	}
	if lastTick.Valid {
		job.LastTick = ptr.To(lastTick.Time)
	}
	if len(retryMetaBlob) > 0 && string(retryMetaBlob) != "null" {
		var meta domain.RetryMeta
		if err := json.Unmarshal(retryMetaBlob, &meta); err != nil {
			return domain.SchedulerJob{}, fmt.Errorf("unmarshal retry meta: %w", err)
		}
		job.RetryMeta = &meta
	}
	return job, nil
}
