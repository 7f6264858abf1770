package scheduler

import (
	"context"

	"github.com/retrack-engine/retrack/internal/domain"
)

// TrackerRepository is the subset of tracker persistence the scheduler
// needs: enumerate trackers with a job config.
type TrackerRepository interface {
	// ListTrackersWithJob returns every enabled tracker that carries a
	// non-nil JobConfig (candidates for a per-tracker scheduler job).
	ListTrackersWithJob(ctx context.Context) ([]domain.Tracker, error)
}

// runner is the subset of fetch.Pipeline the scheduler depends on,
// narrowed to avoid an import cycle between internal/scheduler and
// internal/fetch (fetch depends on domain/jsruntime/etc, not scheduler).
type runner interface {
	Run(ctx context.Context, tracker *domain.Tracker) error
}
