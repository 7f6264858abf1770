package scheduler

import (
	"context"
	"time"

	"github.com/retrack-engine/retrack/internal/domain"
)

// Repository persists scheduler_jobs rows. Implemented by
// internal/storage/sql/repository.
type Repository interface {
	GetJobByType(ctx context.Context, jobType domain.JobType) (*domain.SchedulerJob, error)
	GetPerTrackerJob(ctx context.Context, trackerID string) (*domain.SchedulerJob, error)
	ListPerTrackerJobs(ctx context.Context) ([]domain.SchedulerJob, error)
	UpsertJob(ctx context.Context, job *domain.SchedulerJob) error
	RemoveJob(ctx context.Context, jobID string) error
	SetRetryMeta(ctx context.Context, jobID string, meta *domain.RetryMeta, stopped bool) error
	Touch(ctx context.Context, jobID string, tick time.Time, nextRun time.Time) error
}
