package domain

import "time"

// SchedulerJob is a persisted row describing one of the three fixed
// recurring jobs or one per-tracker job. Exactly one active record exists
// per recurring JobType; per-tracker records are in 1:1 correspondence
// with trackers that carry a JobConfig.
type SchedulerJob struct {
	ID         string
	Type       JobType
	TrackerID  *string // set iff Type == JobTypePerTracker
	CronSource string
	LastTick   *time.Time
	// NextRun is the job's next scheduled occurrence per CronSource; for
	// per-tracker jobs, trackers-run skips the job until NextRun <= now.
	NextRun   time.Time
	Stopped   bool
	RetryMeta *RetryMeta
}

// RetryMeta is per-job state consulted by the scheduler to defer a due
// job until its next retry attempt is due.
type RetryMeta struct {
	Attempts int
	NextAt   time.Time
}
