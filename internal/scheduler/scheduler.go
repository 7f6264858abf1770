package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/retrack-engine/retrack/internal/domain"
)

// Config holds the three fixed jobs' cron sources plus the tasks-run
// drain batch size, grounded on spec.md §6's scheduler config table.
type Config struct {
	TrackersScheduleCron string
	TrackersRunCron      string
	TasksRunCron         string
	TasksDrainBatchSize  int

	// MinScheduleInterval rejects a per-tracker cron pattern whose
	// smallest gap between occurrences falls under this floor.
	MinScheduleInterval time.Duration
}

// TaskDrainer matches tasks.Queue.Drain's signature, kept as a narrow
// interface so the scheduler doesn't import internal/tasks directly.
type TaskDrainer interface {
	Drain(ctx context.Context, limit int) (int, error)
}

// Scheduler owns the three fixed cron.Cron entries (trackers-schedule,
// trackers-run, tasks-run), grounded on bravo1goingdark-mailgrid's
// scheduler package shape, generalized from a single recurring job to
// the fixed-plus-per-tracker job set spec.md §4.7 describes.
// Per-tracker jobs carry no cron.Cron entry of their own: trackers-run
// is the sole dispatcher, consulting each job's NextRun.
type Scheduler struct {
	cfg     Config
	cron    *cron.Cron
	jobs    Repository
	trkRepo TrackerRepository
	runner  runner
	tasks   TaskDrainer
}

// New builds a Scheduler. Call Resume before Start to load persisted
// scheduler_jobs state.
func New(cfg Config, jobs Repository, trackers TrackerRepository, pipeline runner, taskQueue TaskDrainer) *Scheduler {
	return &Scheduler{
		cfg:     cfg,
		cron:    cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
		jobs:    jobs,
		trkRepo: trackers,
		runner:  pipeline,
		tasks:   taskQueue,
	}
}

// Resume loads persisted scheduler_jobs rows for the three fixed jobs; a
// row whose stored cron source matches the configured one keeps its
// last_tick/retry state, otherwise it is replaced.
func (s *Scheduler) Resume(ctx context.Context) error {
	for jobType, source := range map[domain.JobType]string{
		domain.JobTypeTrackersSchedule: s.cfg.TrackersScheduleCron,
		domain.JobTypeTrackersRun:      s.cfg.TrackersRunCron,
		domain.JobTypeTasksRun:         s.cfg.TasksRunCron,
	} {
		if err := s.resumeFixedJob(ctx, jobType, source); err != nil {
			return err
		}
	}

	trackers, err := s.trkRepo.ListTrackersWithJob(ctx)
	if err != nil {
		return domain.NewEngineError(domain.KindPersistence, err)
	}
	for i := range trackers {
		if err := s.ensurePerTrackerJob(ctx, &trackers[i]); err != nil {
			return err
		}
	}

	return nil
}

func (s *Scheduler) resumeFixedJob(ctx context.Context, jobType domain.JobType, configuredCron string) error {
	existing, err := s.jobs.GetJobByType(ctx, jobType)
	if err != nil && err != domain.ErrNotFound {
		return domain.NewEngineError(domain.KindPersistence, err)
	}

	if existing != nil && existing.CronSource == configuredCron {
		return nil // keep last_tick/retry state as-is
	}

	id, err := uuid.NewV7()
	if err != nil {
		return domain.NewEngineError(domain.KindUnknown, err)
	}
	job := &domain.SchedulerJob{ID: id.String(), Type: jobType, CronSource: configuredCron}
	if existing != nil {
		job.ID = existing.ID
	}
	if err := s.jobs.UpsertJob(ctx, job); err != nil {
		return domain.NewEngineError(domain.KindPersistence, err)
	}
	return nil
}

// Start registers the three fixed jobs with the underlying cron.Cron and
// begins running it. Resume must be called first. Per-tracker jobs carry
// no cron.Cron entry of their own — trackers-run dispatches them.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(ExpandAlias(s.cfg.TrackersScheduleCron), func() { s.runTrackersSchedule(ctx) }); err != nil {
		return domain.NewEngineError(domain.KindClient, err)
	}
	if _, err := s.cron.AddFunc(ExpandAlias(s.cfg.TrackersRunCron), func() { s.runTrackersRun(ctx) }); err != nil {
		return domain.NewEngineError(domain.KindClient, err)
	}
	if _, err := s.cron.AddFunc(ExpandAlias(s.cfg.TasksRunCron), func() { s.runTasksRun(ctx) }); err != nil {
		return domain.NewEngineError(domain.KindClient, err)
	}

	s.cron.Start()
	return nil
}

// Stop blocks until any running entries finish and the scheduler is
// fully stopped.
func (s *Scheduler) Stop(ctx context.Context) {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
}

// runTrackersSchedule reconciles scheduler_jobs rows of kind per_tracker
// against trackers carrying JobConfig: creates missing rows, removes
// orphaned ones.
func (s *Scheduler) runTrackersSchedule(ctx context.Context) {
	trackers, err := s.trkRepo.ListTrackersWithJob(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "trackers-schedule: list trackers failed", "error", err)
		return
	}

	wanted := make(map[string]*domain.Tracker, len(trackers))
	for i := range trackers {
		wanted[trackers[i].ID] = &trackers[i]
		if err := s.ensurePerTrackerJob(ctx, &trackers[i]); err != nil {
			slog.ErrorContext(ctx, "trackers-schedule: ensure job failed", "tracker_id", trackers[i].ID, "error", err)
		}
	}

	existing, err := s.jobs.ListPerTrackerJobs(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "trackers-schedule: list jobs failed", "error", err)
		return
	}
	for _, job := range existing {
		if job.TrackerID == nil {
			continue
		}
		if _, ok := wanted[*job.TrackerID]; ok {
			continue
		}
		if err := s.jobs.RemoveJob(ctx, job.ID); err != nil {
			slog.ErrorContext(ctx, "trackers-schedule: remove orphaned job failed", "job_id", job.ID, "error", err)
		}
	}
}

func (s *Scheduler) ensurePerTrackerJob(ctx context.Context, tracker *domain.Tracker) error {
	existing, err := s.jobs.GetPerTrackerJob(ctx, tracker.ID)
	if err != nil && err != domain.ErrNotFound {
		return domain.NewEngineError(domain.KindPersistence, err)
	}
	if existing != nil && existing.CronSource == tracker.Config.Job.CronPattern {
		return nil
	}

	sched, err := ParsePattern(tracker.Config.Job.CronPattern)
	if err != nil {
		return domain.NewEngineError(domain.KindClient, err)
	}
	if gap := MinInterval(sched, time.Now().UTC()); gap < s.cfg.MinScheduleInterval {
		return domain.NewEngineError(domain.KindClient, fmt.Errorf(
			"cron pattern %q's minimum gap %s is below the configured minimum %s",
			tracker.Config.Job.CronPattern, gap, s.cfg.MinScheduleInterval))
	}

	id, err := uuid.NewV7()
	if err != nil {
		return domain.NewEngineError(domain.KindUnknown, err)
	}
	job := &domain.SchedulerJob{
		ID:         id.String(),
		Type:       domain.JobTypePerTracker,
		TrackerID:  &tracker.ID,
		CronSource: tracker.Config.Job.CronPattern,
		NextRun:    sched.Next(time.Now().UTC()),
	}
	if existing != nil {
		job.ID = existing.ID
	}
	if err := s.jobs.UpsertJob(ctx, job); err != nil {
		return domain.NewEngineError(domain.KindPersistence, err)
	}
	return nil
}

// nextRunAfter returns cronSource's next occurrence strictly after t. A
// malformed cronSource (should have been rejected at tracker validation
// time) falls back to t itself so the job stays due rather than stuck.
func nextRunAfter(cronSource string, t time.Time) time.Time {
	sched, err := ParsePattern(cronSource)
	if err != nil {
		slog.Error("scheduler: parse cron source failed", "cron_source", cronSource, "error", err)
		return t
	}
	return sched.Next(t)
}

// runTrackersRun queries due trackers and feeds each sequentially to the
// fetch pipeline — sequential by construction, matching the serialization
// requirement. It is the sole dispatcher of per-tracker fetches: no
// per-tracker cron.Cron entry exists.
func (s *Scheduler) runTrackersRun(ctx context.Context) {
	trackers, err := s.trkRepo.ListTrackersWithJob(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "trackers-run: list trackers failed", "error", err)
		return
	}
	now := time.Now().UTC()
	for i := range trackers {
		tracker := &trackers[i]
		job, err := s.jobs.GetPerTrackerJob(ctx, tracker.ID)
		if err != nil {
			if err != domain.ErrNotFound {
				slog.ErrorContext(ctx, "trackers-run: get job failed", "tracker_id", tracker.ID, "error", err)
			}
			continue
		}
		if job.Stopped {
			continue
		}
		if job.NextRun.After(now) {
			continue
		}
		if job.RetryMeta != nil && job.RetryMeta.NextAt.After(now) {
			continue
		}
		s.run(ctx, tracker, job)
	}
}

func (s *Scheduler) run(ctx context.Context, tracker *domain.Tracker, job *domain.SchedulerJob) {
	if err := s.runner.Run(ctx, tracker); err != nil {
		slog.ErrorContext(ctx, "tracker run failed", "tracker_id", tracker.ID, "error", err)
	}
	now := time.Now().UTC()
	_ = s.jobs.Touch(ctx, job.ID, now, nextRunAfter(job.CronSource, now))
}

// runTasksRun drains the task queue in one batch.
func (s *Scheduler) runTasksRun(ctx context.Context) {
	n, err := s.tasks.Drain(ctx, s.cfg.TasksDrainBatchSize)
	if err != nil {
		slog.ErrorContext(ctx, "tasks-run: drain failed", "error", err)
		return
	}
	slog.DebugContext(ctx, "tasks-run: drained", "count", n)
}
