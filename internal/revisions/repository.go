package revisions

import (
	"context"

	"github.com/retrack-engine/retrack/internal/domain"
)

// Repository is the persistence boundary the Store depends on; the SQL
// implementation lives in internal/storage/sql/repository.
type Repository interface {
	// LatestRevision returns the most recently inserted revision for
	// trackerID, or nil if none exists.
	LatestRevision(ctx context.Context, trackerID string) (*domain.TrackerRevision, error)

	// ListRevisions returns up to limit revisions for trackerID, newest
	// first. limit <= 0 means no limit.
	ListRevisions(ctx context.Context, trackerID string, limit int) ([]domain.TrackerRevision, error)

	// GetRevision returns a single revision, or domain.ErrNotFound.
	GetRevision(ctx context.Context, trackerID, revisionID string) (*domain.TrackerRevision, error)

	// InsertRevision appends a new revision row.
	InsertRevision(ctx context.Context, rev *domain.TrackerRevision) error

	// TrimRevisions deletes the oldest revisions for trackerID beyond
	// keep, returning the number of rows deleted.
	TrimRevisions(ctx context.Context, trackerID string, keep int) (int, error)

	// ClearRevisions deletes every revision for trackerID.
	ClearRevisions(ctx context.Context, trackerID string) error

	// RemoveRevision deletes a single revision.
	RemoveRevision(ctx context.Context, trackerID, revisionID string) error
}
