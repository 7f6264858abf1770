package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/retrack-engine/retrack/internal/domain"
)

type fakeJobs struct {
	byID   map[string]*domain.SchedulerJob
	byType map[domain.JobType]*domain.SchedulerJob
}

func newFakeJobs() *fakeJobs {
	return &fakeJobs{byID: make(map[string]*domain.SchedulerJob), byType: make(map[domain.JobType]*domain.SchedulerJob)}
}

func (f *fakeJobs) GetJobByType(ctx context.Context, jobType domain.JobType) (*domain.SchedulerJob, error) {
	job, ok := f.byType[jobType]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return job, nil
}

func (f *fakeJobs) GetPerTrackerJob(ctx context.Context, trackerID string) (*domain.SchedulerJob, error) {
	for _, job := range f.byID {
		if job.TrackerID != nil && *job.TrackerID == trackerID {
			return job, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeJobs) ListPerTrackerJobs(ctx context.Context) ([]domain.SchedulerJob, error) {
	var out []domain.SchedulerJob
	for _, job := range f.byID {
		if job.Type == domain.JobTypePerTracker {
			out = append(out, *job)
		}
	}
	return out, nil
}

func (f *fakeJobs) UpsertJob(ctx context.Context, job *domain.SchedulerJob) error {
	cp := *job
	f.byID[job.ID] = &cp
	if job.Type != domain.JobTypePerTracker {
		f.byType[job.Type] = &cp
	}
	return nil
}

func (f *fakeJobs) RemoveJob(ctx context.Context, jobID string) error {
	delete(f.byID, jobID)
	return nil
}

func (f *fakeJobs) SetRetryMeta(ctx context.Context, jobID string, meta *domain.RetryMeta, stopped bool) error {
	job, ok := f.byID[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	job.RetryMeta = meta
	job.Stopped = stopped
	return nil
}

func (f *fakeJobs) Touch(ctx context.Context, jobID string, tick time.Time, nextRun time.Time) error {
	job, ok := f.byID[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	job.LastTick = &tick
	job.NextRun = nextRun
	return nil
}

type fakeTrackerRepo struct {
	trackers map[string]domain.Tracker
}

func (f *fakeTrackerRepo) ListTrackersWithJob(ctx context.Context) ([]domain.Tracker, error) {
	var out []domain.Tracker
	for _, t := range f.trackers {
		if t.Config.Job != nil {
			out = append(out, t)
		}
	}
	return out, nil
}

type fakeRunner struct {
	ran []string
}

func (f *fakeRunner) Run(ctx context.Context, tracker *domain.Tracker) error {
	f.ran = append(f.ran, tracker.ID)
	return nil
}

type fakeDrainer struct{ drained int }

func (f *fakeDrainer) Drain(ctx context.Context, limit int) (int, error) {
	f.drained++
	return 0, nil
}

func trackerWithJob(id, cron string) domain.Tracker {
	return domain.Tracker{
		ID:     id,
		Name:   id,
		Config: domain.TrackerConfig{Revisions: 5, Job: &domain.JobConfig{CronPattern: cron}},
	}
}

func TestResumeKeepsMatchingFixedJobState(t *testing.T) {
	jobs := newFakeJobs()
	lastTick := time.Now().Add(-time.Hour)
	id, _ := uuid.NewV7()
	jobs.byType[domain.JobTypeTrackersRun] = &domain.SchedulerJob{
		ID: id.String(), Type: domain.JobTypeTrackersRun, CronSource: "@hourly", LastTick: &lastTick,
	}
	jobs.byID[id.String()] = jobs.byType[domain.JobTypeTrackersRun]

	trackers := &fakeTrackerRepo{trackers: map[string]domain.Tracker{}}
	s := New(Config{TrackersScheduleCron: "@daily", TrackersRunCron: "@hourly", TasksRunCron: "@hourly"}, jobs, trackers, &fakeRunner{}, &fakeDrainer{})

	if err := s.Resume(context.Background()); err != nil {
		t.Fatalf("Resume: %v", err)
	}

	job := jobs.byType[domain.JobTypeTrackersRun]
	if job.LastTick == nil || !job.LastTick.Equal(lastTick) {
		t.Fatalf("expected matching cron source to keep last_tick, got %+v", job)
	}
}

func TestResumeReplacesChangedFixedJob(t *testing.T) {
	jobs := newFakeJobs()
	lastTick := time.Now().Add(-time.Hour)
	id, _ := uuid.NewV7()
	jobs.byType[domain.JobTypeTrackersRun] = &domain.SchedulerJob{
		ID: id.String(), Type: domain.JobTypeTrackersRun, CronSource: "@daily", LastTick: &lastTick,
	}
	jobs.byID[id.String()] = jobs.byType[domain.JobTypeTrackersRun]

	trackers := &fakeTrackerRepo{trackers: map[string]domain.Tracker{}}
	s := New(Config{TrackersScheduleCron: "@daily", TrackersRunCron: "@hourly", TasksRunCron: "@hourly"}, jobs, trackers, &fakeRunner{}, &fakeDrainer{})

	if err := s.Resume(context.Background()); err != nil {
		t.Fatalf("Resume: %v", err)
	}

	job := jobs.byType[domain.JobTypeTrackersRun]
	if job.LastTick != nil {
		t.Fatalf("expected changed cron source to reset last_tick, got %+v", job)
	}
}

func TestRunTrackersScheduleCreatesAndRemovesJobs(t *testing.T) {
	jobs := newFakeJobs()
	trackers := &fakeTrackerRepo{trackers: map[string]domain.Tracker{
		"a": trackerWithJob("a", "@hourly"),
	}}
	s := New(Config{TrackersScheduleCron: "@daily", TrackersRunCron: "@hourly", TasksRunCron: "@hourly"}, jobs, trackers, &fakeRunner{}, &fakeDrainer{})

	if err := s.Resume(context.Background()); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	ctx := context.Background()
	s.runTrackersSchedule(ctx)

	perTracker, _ := jobs.ListPerTrackerJobs(ctx)
	if len(perTracker) != 1 {
		t.Fatalf("got %d per-tracker jobs, want 1", len(perTracker))
	}

	delete(trackers.trackers, "a")
	s.runTrackersSchedule(ctx)

	perTracker, _ = jobs.ListPerTrackerJobs(ctx)
	if len(perTracker) != 0 {
		t.Fatalf("got %d per-tracker jobs after removal, want 0", len(perTracker))
	}
}

func TestRunTrackersRunSkipsStoppedAndPendingRetry(t *testing.T) {
	jobs := newFakeJobs()
	trackers := &fakeTrackerRepo{trackers: map[string]domain.Tracker{
		"a": trackerWithJob("a", "@hourly"),
		"b": trackerWithJob("b", "@hourly"),
	}}
	runner := &fakeRunner{}
	s := New(Config{TrackersScheduleCron: "@daily", TrackersRunCron: "@hourly", TasksRunCron: "@hourly"}, jobs, trackers, runner, &fakeDrainer{})

	ctx := context.Background()
	if err := s.Resume(ctx); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	s.runTrackersSchedule(ctx)

	jobA, _ := jobs.GetPerTrackerJob(ctx, "a")
	jobA.Stopped = true
	jobA.NextRun = time.Now().Add(-time.Second)
	jobB, _ := jobs.GetPerTrackerJob(ctx, "b")
	jobB.RetryMeta = &domain.RetryMeta{Attempts: 1, NextAt: time.Now().Add(time.Hour)}
	jobB.NextRun = time.Now().Add(-time.Second)

	s.runTrackersRun(ctx)

	if len(runner.ran) != 0 {
		t.Fatalf("expected no trackers run, got %v", runner.ran)
	}
}

func TestRunTrackersRunSkipsNotYetDueJob(t *testing.T) {
	jobs := newFakeJobs()
	trackers := &fakeTrackerRepo{trackers: map[string]domain.Tracker{
		"a": trackerWithJob("a", "@hourly"),
	}}
	runner := &fakeRunner{}
	s := New(Config{TrackersScheduleCron: "@daily", TrackersRunCron: "@hourly", TasksRunCron: "@hourly"}, jobs, trackers, runner, &fakeDrainer{})

	ctx := context.Background()
	if err := s.Resume(ctx); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	s.runTrackersSchedule(ctx)

	// ensurePerTrackerJob computes NextRun an hour out for "@hourly";
	// the tracker is not due yet on this tick.
	s.runTrackersRun(ctx)

	if len(runner.ran) != 0 {
		t.Fatalf("expected no trackers run before NextRun, got %v", runner.ran)
	}

	job, _ := jobs.GetPerTrackerJob(ctx, "a")
	job.NextRun = time.Now().Add(-time.Second)

	s.runTrackersRun(ctx)

	if len(runner.ran) != 1 || runner.ran[0] != "a" {
		t.Fatalf("expected tracker a to run once NextRun had passed, got %v", runner.ran)
	}
}
