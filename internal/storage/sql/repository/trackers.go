package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/retrack-engine/retrack/internal/domain"
)

// ListTrackersWithJob returns every enabled tracker whose config carries
// a non-nil JobConfig — the candidate set for per-tracker scheduler jobs.
func (s *Store) ListTrackersWithJob(ctx context.Context) ([]domain.Tracker, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, enabled, target_json, config_json, tags, actions_json, job_id, created_at, updated_at
		FROM trackers
		WHERE enabled AND config_json::jsonb ? 'job'`)
	if err != nil {
		return nil, fmt.Errorf("query trackers with job: %w", err)
	}
	defer rows.Close()

	var out []domain.Tracker
	for rows.Next() {
		t, err := scanTracker(rows)
		if err != nil {
			return nil, err
		}
		if t.Config.Job != nil {
			out = append(out, t)
		}
	}
	return out, rows.Err()
}

// GetTracker returns one tracker by id, or domain.ErrNotFound.
func (s *Store) GetTracker(ctx context.Context, trackerID string) (*domain.Tracker, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, enabled, target_json, config_json, tags, actions_json, job_id, created_at, updated_at
		FROM trackers WHERE id = $1`, trackerID)

	t, err := scanTracker(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// InsertTracker persists a new tracker row.
func (s *Store) InsertTracker(ctx context.Context, t *domain.Tracker) error {
	targetJSON, err := json.Marshal(t.Target)
	if err != nil {
		return fmt.Errorf("marshal target: %w", err)
	}
	configJSON, err := json.Marshal(t.Config)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	actionsJSON, err := json.Marshal(t.Actions)
	if err != nil {
		return fmt.Errorf("marshal actions: %w", err)
	}
	tagsJSON, err := json.Marshal(t.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO trackers (id, name, enabled, target_json, config_json, tags, actions_json, job_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		t.ID, t.Name, t.Enabled, targetJSON, configJSON, tagsJSON, actionsJSON, t.JobID, t.CreatedAt, t.UpdatedAt)
	return err
}

// SetTrackerJobID binds or clears the scheduler job id a tracker points
// at. The scheduler does not call it; it tracks per-tracker jobs in
// scheduler_jobs by tracker_id.
func (s *Store) SetTrackerJobID(ctx context.Context, trackerID string, jobID *string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE trackers SET job_id = $1 WHERE id = $2`, jobID, trackerID)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

// DeleteTracker removes a tracker and, via ON DELETE CASCADE, its
// revisions and per-tracker scheduler job.
func (s *Store) DeleteTracker(ctx context.Context, trackerID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM trackers WHERE id = $1`, trackerID)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTracker(row rowScanner) (domain.Tracker, error) {
	var (
		t                                            domain.Tracker
		targetJSON, configJSON, tagsJSON, actionsJSON []byte
		jobID                                        sql.NullString
	)
	if err := row.Scan(&t.ID, &t.Name, &t.Enabled, &targetJSON, &configJSON, &tagsJSON, &actionsJSON, &jobID, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return domain.Tracker{}, err
	}
	if err := json.Unmarshal(targetJSON, &t.Target); err != nil {
		return domain.Tracker{}, fmt.Errorf("unmarshal target: %w", err)
	}
	if err := json.Unmarshal(configJSON, &t.Config); err != nil {
		return domain.Tracker{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := json.Unmarshal(tagsJSON, &t.Tags); err != nil {
		return domain.Tracker{}, fmt.Errorf("unmarshal tags: %w", err)
	}
	if err := json.Unmarshal(actionsJSON, &t.Actions); err != nil {
		return domain.Tracker{}, fmt.Errorf("unmarshal actions: %w", err)
	}
	if jobID.Valid {
		t.JobID = &jobID.String
	}
	return t, nil
}

func requireRowAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
