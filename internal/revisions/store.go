// Package revisions implements the per-tracker bounded revision history:
// change detection against the latest revision, history trimming, and
// on-demand diff computation for response shaping.
package revisions

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/retrack-engine/retrack/internal/domain"
)

// Store wraps a Repository with the change-detection and trimming
// invariants from the Revision Store contract.
type Store struct {
	repo Repository
}

// New builds a Store backed by repo.
func New(repo Repository) *Store {
	return &Store{repo: repo}
}

// ListOptions configures List.
type ListOptions struct {
	Limit         int
	CalculateDiff bool
}

// List returns revisions newest-first. When CalculateDiff is set and more
// than one revision is returned, each adjacent pair is diffed and the
// result attached to the newer revision's in-memory Diff field — this is
// computed fresh on every call and never persisted.
func (s *Store) List(ctx context.Context, trackerID string, opts ListOptions) ([]domain.TrackerRevision, error) {
	revs, err := s.repo.ListRevisions(ctx, trackerID, opts.Limit)
	if err != nil {
		return nil, domain.NewEngineError(domain.KindPersistence, err)
	}

	if opts.CalculateDiff && len(revs) > 1 {
		for i := 0; i < len(revs)-1; i++ {
			newer, older := &revs[i], &revs[i+1]
			d, err := diffValues(older.Data.Value(), newer.Data.Value())
			if err != nil {
				return nil, domain.NewEngineError(domain.KindUnknown, err)
			}
			newer.Diff = &d
		}
	}

	return revs, nil
}

// Get returns a single revision, or domain.ErrNotFound.
func (s *Store) Get(ctx context.Context, trackerID, revisionID string) (*domain.TrackerRevision, error) {
	rev, err := s.repo.GetRevision(ctx, trackerID, revisionID)
	if err != nil {
		return nil, domain.NewEngineError(domain.KindPersistence, err)
	}
	return rev, nil
}

// AppendIfChanged reads the latest revision for trackerID, compares its
// canonical form against value, and inserts a new revision only if they
// differ. On insert, it trims the oldest revisions beyond maxRevisions.
// Returns (nil, nil) if the value is unchanged.
func (s *Store) AppendIfChanged(ctx context.Context, trackerID string, value json.RawMessage, maxRevisions int) (*domain.TrackerRevision, error) {
	latest, err := s.repo.LatestRevision(ctx, trackerID)
	if err != nil {
		return nil, domain.NewEngineError(domain.KindPersistence, err)
	}

	if latest != nil {
		equal, err := canonicalEqual(latest.Data.Value(), value)
		if err != nil {
			return nil, domain.NewEngineError(domain.KindUnknown, fmt.Errorf("canonicalize: %w", err))
		}
		if equal {
			return nil, nil
		}
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, domain.NewEngineError(domain.KindUnknown, err)
	}

	rev := &domain.TrackerRevision{
		ID:        id.String(),
		TrackerID: trackerID,
		CreatedAt: time.Now().UTC(),
		Data:      domain.RevisionData{Original: value},
	}
	if err := s.repo.InsertRevision(ctx, rev); err != nil {
		return nil, domain.NewEngineError(domain.KindPersistence, err)
	}

	if maxRevisions > 0 {
		if _, err := s.repo.TrimRevisions(ctx, trackerID, maxRevisions); err != nil {
			return nil, domain.NewEngineError(domain.KindPersistence, err)
		}
	}

	return rev, nil
}

// Clear deletes every revision for trackerID.
func (s *Store) Clear(ctx context.Context, trackerID string) error {
	if err := s.repo.ClearRevisions(ctx, trackerID); err != nil {
		return domain.NewEngineError(domain.KindPersistence, err)
	}
	return nil
}

// Remove deletes a single revision.
func (s *Store) Remove(ctx context.Context, trackerID, revisionID string) error {
	if err := s.repo.RemoveRevision(ctx, trackerID, revisionID); err != nil {
		return domain.NewEngineError(domain.KindPersistence, err)
	}
	return nil
}
