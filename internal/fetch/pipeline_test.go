package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/retrack-engine/retrack/internal/domain"
	"github.com/retrack-engine/retrack/internal/jsruntime"
	"github.com/retrack-engine/retrack/internal/netguard"
	"github.com/retrack-engine/retrack/internal/revisions"
	"github.com/retrack-engine/retrack/internal/tasks"
)

type fakeRevisionRepo struct {
	byTracker map[string][]domain.TrackerRevision
}

func newFakeRevisionRepo() *fakeRevisionRepo {
	return &fakeRevisionRepo{byTracker: make(map[string][]domain.TrackerRevision)}
}

func (r *fakeRevisionRepo) LatestRevision(ctx context.Context, trackerID string) (*domain.TrackerRevision, error) {
	revs := r.byTracker[trackerID]
	if len(revs) == 0 {
		return nil, nil
	}
	rev := revs[len(revs)-1]
	return &rev, nil
}

func (r *fakeRevisionRepo) ListRevisions(ctx context.Context, trackerID string, limit int) ([]domain.TrackerRevision, error) {
	revs := r.byTracker[trackerID]
	out := make([]domain.TrackerRevision, len(revs))
	for i := range revs {
		out[i] = revs[len(revs)-1-i]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeRevisionRepo) GetRevision(ctx context.Context, trackerID, revisionID string) (*domain.TrackerRevision, error) {
	for _, rev := range r.byTracker[trackerID] {
		if rev.ID == revisionID {
			return &rev, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *fakeRevisionRepo) InsertRevision(ctx context.Context, rev *domain.TrackerRevision) error {
	r.byTracker[rev.TrackerID] = append(r.byTracker[rev.TrackerID], *rev)
	return nil
}

func (r *fakeRevisionRepo) TrimRevisions(ctx context.Context, trackerID string, maxRevisions int) (int, error) {
	revs := r.byTracker[trackerID]
	if len(revs) <= maxRevisions {
		return 0, nil
	}
	trimmed := len(revs) - maxRevisions
	r.byTracker[trackerID] = revs[trimmed:]
	return trimmed, nil
}

func (r *fakeRevisionRepo) ClearRevisions(ctx context.Context, trackerID string) error {
	delete(r.byTracker, trackerID)
	return nil
}

func (r *fakeRevisionRepo) RemoveRevision(ctx context.Context, trackerID, revisionID string) error {
	revs := r.byTracker[trackerID]
	for i, rev := range revs {
		if rev.ID == revisionID {
			r.byTracker[trackerID] = append(revs[:i], revs[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

type fakeTaskRepo struct {
	tasks map[string]domain.Task
}

func newFakeTaskRepo() *fakeTaskRepo { return &fakeTaskRepo{tasks: make(map[string]domain.Task)} }

func (f *fakeTaskRepo) InsertTask(ctx context.Context, task *domain.Task) error {
	f.tasks[task.ID] = *task
	return nil
}
func (f *fakeTaskRepo) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	t, ok := f.tasks[taskID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &t, nil
}
func (f *fakeTaskRepo) RemoveTask(ctx context.Context, taskID string) error {
	delete(f.tasks, taskID)
	return nil
}
func (f *fakeTaskRepo) ListDueTasks(ctx context.Context, now, afterScheduledAt time.Time, afterID string, limit int) ([]domain.Task, error) {
	return nil, nil
}
func (f *fakeTaskRepo) RescheduleTask(ctx context.Context, taskID string, retryAttempt int, scheduledAt time.Time) error {
	return nil
}

type fakeJobRepository struct {
	removed   map[string]bool
	retryMeta map[string]*domain.RetryMeta
}

func newFakeJobRepository() *fakeJobRepository {
	return &fakeJobRepository{removed: make(map[string]bool), retryMeta: make(map[string]*domain.RetryMeta)}
}

func (f *fakeJobRepository) RemovePerTrackerJob(ctx context.Context, trackerID string) error {
	f.removed[trackerID] = true
	return nil
}
func (f *fakeJobRepository) GetRetryMeta(ctx context.Context, trackerID string) (*domain.RetryMeta, error) {
	return f.retryMeta[trackerID], nil
}
func (f *fakeJobRepository) SetRetryMeta(ctx context.Context, trackerID string, meta *domain.RetryMeta, stopped bool) error {
	f.retryMeta[trackerID] = meta
	return nil
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) Do(req *http.Request) (*http.Response, error) { return f(req) }

func jsonBody(v any) io.ReadCloser {
	b, _ := json.Marshal(v)
	return io.NopCloser(bytes.NewReader(b))
}

func newPipeline(doer HTTPDoer, taskRepo tasks.Repository, revRepo revisions.Repository, jobs JobRepository) *Pipeline {
	return &Pipeline{
		Runtime:   jsruntime.New(4),
		Guard:     netguard.New(nil),
		Revisions: revisions.New(revRepo),
		Tasks:     tasks.New(taskRepo, map[domain.TaskTypeKind]tasks.Executor{}),
		Jobs:      jobs,
		HTTP:      doer,
		Budget:    jsruntime.Budget{MaxHeapBytes: 16 << 20, MaxWall: time.Second},
	}
}

func apiTracker() *domain.Tracker {
	return &domain.Tracker{
		ID:   "tracker-1",
		Name: "example api",
		Target: domain.TrackerTarget{
			Kind: domain.TargetKindAPI,
			Api: &domain.ApiTarget{
				Requests: []domain.APIRequest{{URL: "https://example.com/data", Method: "GET"}},
			},
		},
		Config: domain.TrackerConfig{
			Revisions: 5,
			Timeout:   5 * time.Second,
			Job: &domain.JobConfig{
				CronPattern: "@hourly",
			},
		},
	}
}

func TestPipelineRunSkipsDisplayOnlyTracker(t *testing.T) {
	jobs := newFakeJobRepository()
	p := newPipeline(nil, newFakeTaskRepo(), newFakeRevisionRepo(), jobs)

	tracker := apiTracker()
	tracker.Config.Job = nil

	if err := p.Run(context.Background(), tracker); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !jobs.removed[tracker.ID] {
		t.Fatalf("expected per-tracker job to be removed")
	}
}

func TestPipelineRunAppendsRevisionAndSchedulesAction(t *testing.T) {
	jobs := newFakeJobRepository()
	taskRepo := newFakeTaskRepo()
	doer := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: 200, Body: jsonBody(map[string]string{"status": "ok"})}, nil
	})
	p := newPipeline(doer, taskRepo, newFakeRevisionRepo(), jobs)

	tracker := apiTracker()
	tracker.Actions = []domain.Action{{
		Kind:    domain.ActionKindWebhook,
		Webhook: &domain.WebhookAction{URL: "https://hooks.example.com", Method: "POST"},
	}}

	if err := p.Run(context.Background(), tracker); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(taskRepo.tasks) != 1 {
		t.Fatalf("got %d scheduled tasks, want 1", len(taskRepo.tasks))
	}
}

func TestPipelineRunFetchFailureSchedulesRetry(t *testing.T) {
	jobs := newFakeJobRepository()
	doer := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: 503, Body: jsonBody(map[string]string{"error": "unavailable"})}, nil
	})
	p := newPipeline(doer, newFakeTaskRepo(), newFakeRevisionRepo(), jobs)

	tracker := apiTracker()
	tracker.Config.Job.RetryStrategy = &domain.RetryStrategy{
		Kind:     domain.RetryKindConstant,
		Constant: &domain.ConstantRetry{Interval: time.Minute, MaxAttempts: 3},
	}

	err := p.Run(context.Background(), tracker)
	if err == nil {
		t.Fatalf("expected an error")
	}
	meta := jobs.retryMeta[tracker.ID]
	if meta == nil || meta.Attempts != 1 {
		t.Fatalf("expected retry meta with attempt 1, got %+v", meta)
	}
}

func TestPipelineRunExponentialRetryBacksOffThenGivesUp(t *testing.T) {
	jobs := newFakeJobRepository()
	taskRepo := newFakeTaskRepo()
	doer := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: 503, Body: jsonBody(map[string]string{"error": "unavailable"})}, nil
	})
	p := newPipeline(doer, taskRepo, newFakeRevisionRepo(), jobs)

	tracker := apiTracker()
	tracker.Actions = []domain.Action{{
		Kind:    domain.ActionKindWebhook,
		Webhook: &domain.WebhookAction{URL: "https://hooks.example.com", Method: "POST"},
	}}
	tracker.Config.Job.RetryStrategy = &domain.RetryStrategy{
		Kind: domain.RetryKindExponential,
		Exponential: &domain.ExponentialRetry{
			Initial:     time.Second,
			Multiplier:  2,
			Max:         10 * time.Second,
			MaxAttempts: 5,
		},
	}

	wantDelays := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 10 * time.Second}
	for i, want := range wantDelays {
		before := time.Now().UTC()
		if err := p.Run(context.Background(), tracker); err == nil {
			t.Fatalf("attempt %d: expected an error", i+1)
		}
		meta := jobs.retryMeta[tracker.ID]
		if meta == nil || meta.Attempts != i+1 {
			t.Fatalf("attempt %d: expected retry meta attempt %d, got %+v", i+1, i+1, meta)
		}
		got := meta.NextAt.Sub(before)
		if got < want || got > want+time.Second {
			t.Fatalf("attempt %d: delay = %s, want ~%s", i+1, got, want)
		}
	}
	if len(taskRepo.tasks) != 0 {
		t.Fatalf("expected no failure-notify task scheduled before exhausting retries, got %d", len(taskRepo.tasks))
	}

	// A 6th attempt exceeds MaxAttempts: no further retry is scheduled,
	// retry state is cleared, and the failure fans out to the tracker's
	// actions instead.
	if err := p.Run(context.Background(), tracker); err == nil {
		t.Fatalf("attempt 6: expected an error")
	}
	if meta := jobs.retryMeta[tracker.ID]; meta != nil {
		t.Fatalf("attempt 6: expected retry meta cleared, got %+v", meta)
	}
	if len(taskRepo.tasks) != 1 {
		t.Fatalf("attempt 6: expected 1 failure-notify task scheduled, got %d", len(taskRepo.tasks))
	}
}
