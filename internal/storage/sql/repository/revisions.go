package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/retrack-engine/retrack/internal/domain"
)

// LatestRevision implements revisions.Repository.
func (s *Store) LatestRevision(ctx context.Context, trackerID string) (*domain.TrackerRevision, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, tracker_id, created_at, data_blob
		FROM tracker_revisions
		WHERE tracker_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1`, trackerID)

	rev, err := scanRevision(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rev, nil
}

// ListRevisions implements revisions.Repository.
func (s *Store) ListRevisions(ctx context.Context, trackerID string, limit int) ([]domain.TrackerRevision, error) {
	query := `
		SELECT id, tracker_id, created_at, data_blob
		FROM tracker_revisions
		WHERE tracker_id = $1
		ORDER BY created_at DESC, id DESC`
	args := []any{trackerID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query revisions: %w", err)
	}
	defer rows.Close()

	var out []domain.TrackerRevision
	for rows.Next() {
		rev, err := scanRevision(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rev)
	}
	return out, rows.Err()
}

// GetRevision implements revisions.Repository.
func (s *Store) GetRevision(ctx context.Context, trackerID, revisionID string) (*domain.TrackerRevision, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, tracker_id, created_at, data_blob
		FROM tracker_revisions
		WHERE tracker_id = $1 AND id = $2`, trackerID, revisionID)

	rev, err := scanRevision(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rev, nil
}

// InsertRevision implements revisions.Repository.
func (s *Store) InsertRevision(ctx context.Context, rev *domain.TrackerRevision) error {
	blob, err := json.Marshal(rev.Data)
	if err != nil {
		return fmt.Errorf("marshal revision data: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tracker_revisions (id, tracker_id, created_at, data_blob)
		VALUES ($1, $2, $3, $4)`, rev.ID, rev.TrackerID, rev.CreatedAt, blob)
	return err
}

// TrimRevisions implements revisions.Repository: deletes the oldest
// revisions for trackerID beyond the newest keep, in a single
// statement per the contract's "single DELETE...OFFSET" shape.
func (s *Store) TrimRevisions(ctx context.Context, trackerID string, keep int) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM tracker_revisions
		WHERE id IN (
			SELECT id FROM tracker_revisions
			WHERE tracker_id = $1
			ORDER BY created_at DESC, id DESC
			OFFSET $2
		)`, trackerID, keep)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// ClearRevisions implements revisions.Repository.
func (s *Store) ClearRevisions(ctx context.Context, trackerID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tracker_revisions WHERE tracker_id = $1`, trackerID)
	return err
}

// RemoveRevision implements revisions.Repository.
func (s *Store) RemoveRevision(ctx context.Context, trackerID, revisionID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tracker_revisions WHERE tracker_id = $1 AND id = $2`, trackerID, revisionID)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func scanRevision(row rowScanner) (domain.TrackerRevision, error) {
	var (
		rev  domain.TrackerRevision
		blob []byte
	)
	if err := row.Scan(&rev.ID, &rev.TrackerID, &rev.CreatedAt, &blob); err != nil {
		return domain.TrackerRevision{}, err
	}
	if err := json.Unmarshal(blob, &rev.Data); err != nil {
		return domain.TrackerRevision{}, fmt.Errorf("unmarshal revision data: %w", err)
	}
	return rev, nil
}
