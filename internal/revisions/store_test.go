package revisions

import (
	"context"
	"encoding/json"
	"sort"
	"testing"

	"github.com/retrack-engine/retrack/internal/domain"
)

// fakeRepository is an in-memory Repository for exercising Store without
// a database.
type fakeRepository struct {
	byTracker map[string][]domain.TrackerRevision
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{byTracker: make(map[string][]domain.TrackerRevision)}
}

func (f *fakeRepository) LatestRevision(ctx context.Context, trackerID string) (*domain.TrackerRevision, error) {
	revs := f.byTracker[trackerID]
	if len(revs) == 0 {
		return nil, nil
	}
	latest := revs[len(revs)-1]
	return &latest, nil
}

func (f *fakeRepository) ListRevisions(ctx context.Context, trackerID string, limit int) ([]domain.TrackerRevision, error) {
	revs := f.byTracker[trackerID]
	out := make([]domain.TrackerRevision, len(revs))
	for i, r := range revs {
		out[len(revs)-1-i] = r // newest-first
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeRepository) GetRevision(ctx context.Context, trackerID, revisionID string) (*domain.TrackerRevision, error) {
	for _, r := range f.byTracker[trackerID] {
		if r.ID == revisionID {
			rev := r
			return &rev, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeRepository) InsertRevision(ctx context.Context, rev *domain.TrackerRevision) error {
	f.byTracker[rev.TrackerID] = append(f.byTracker[rev.TrackerID], *rev)
	return nil
}

func (f *fakeRepository) TrimRevisions(ctx context.Context, trackerID string, keep int) (int, error) {
	revs := f.byTracker[trackerID]
	if len(revs) <= keep {
		return 0, nil
	}
	trimmed := len(revs) - keep
	f.byTracker[trackerID] = revs[trimmed:]
	return trimmed, nil
}

func (f *fakeRepository) ClearRevisions(ctx context.Context, trackerID string) error {
	delete(f.byTracker, trackerID)
	return nil
}

func (f *fakeRepository) RemoveRevision(ctx context.Context, trackerID, revisionID string) error {
	revs := f.byTracker[trackerID]
	for i, r := range revs {
		if r.ID == revisionID {
			f.byTracker[trackerID] = append(revs[:i], revs[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

func TestAppendIfChangedIdempotence(t *testing.T) {
	store := New(newFakeRepository())
	ctx := context.Background()
	value := json.RawMessage(`"some-content"`)

	for i := 0; i < 5; i++ {
		if _, err := store.AppendIfChanged(ctx, "t1", value, 30); err != nil {
			t.Fatalf("AppendIfChanged: %v", err)
		}
	}

	revs, err := store.List(ctx, "t1", ListOptions{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(revs) != 1 {
		t.Fatalf("got %d revisions, want 1", len(revs))
	}
}

func TestAppendIfChangedDetectsChange(t *testing.T) {
	store := New(newFakeRepository())
	ctx := context.Background()

	if _, err := store.AppendIfChanged(ctx, "t1", json.RawMessage(`"some-content"`), 30); err != nil {
		t.Fatalf("AppendIfChanged: %v", err)
	}
	rev, err := store.AppendIfChanged(ctx, "t1", json.RawMessage(`"other-content"`), 30)
	if err != nil {
		t.Fatalf("AppendIfChanged: %v", err)
	}
	if rev == nil {
		t.Fatal("expected a new revision for changed content")
	}

	revs, err := store.List(ctx, "t1", ListOptions{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(revs) != 2 {
		t.Fatalf("got %d revisions, want 2", len(revs))
	}
	if string(revs[0].Data.Value()) != `"other-content"` {
		t.Fatalf("newest revision should be other-content, got %s", revs[0].Data.Value())
	}
}

func TestAppendIfChangedIgnoresKeyOrder(t *testing.T) {
	store := New(newFakeRepository())
	ctx := context.Background()

	if _, err := store.AppendIfChanged(ctx, "t1", json.RawMessage(`{"a":1,"b":2}`), 30); err != nil {
		t.Fatalf("AppendIfChanged: %v", err)
	}
	rev, err := store.AppendIfChanged(ctx, "t1", json.RawMessage(`{"b":2,"a":1}`), 30)
	if err != nil {
		t.Fatalf("AppendIfChanged: %v", err)
	}
	if rev != nil {
		t.Fatal("expected reordered-but-equal object to be treated as unchanged")
	}
}

func TestHistoryBound(t *testing.T) {
	store := New(newFakeRepository())
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		value, _ := json.Marshal(i)
		if _, err := store.AppendIfChanged(ctx, "t1", value, 3); err != nil {
			t.Fatalf("AppendIfChanged: %v", err)
		}
	}

	revs, err := store.List(ctx, "t1", ListOptions{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(revs) != 3 {
		t.Fatalf("got %d revisions, want 3", len(revs))
	}
	// Newest-first; trimmed revisions are the oldest, so the remaining
	// three should be values 7, 8, 9.
	var gotValues []int
	for _, r := range revs {
		var v int
		if err := json.Unmarshal(r.Data.Value(), &v); err != nil {
			t.Fatalf("Unmarshal: %v", err)
		}
		gotValues = append(gotValues, v)
	}
	sort.Ints(gotValues)
	want := []int{7, 8, 9}
	for i := range want {
		if gotValues[i] != want[i] {
			t.Fatalf("got %v, want %v", gotValues, want)
		}
	}
}

func TestListCalculateDiff(t *testing.T) {
	store := New(newFakeRepository())
	ctx := context.Background()

	if _, err := store.AppendIfChanged(ctx, "t1", json.RawMessage(`"a"`), 30); err != nil {
		t.Fatalf("AppendIfChanged: %v", err)
	}
	if _, err := store.AppendIfChanged(ctx, "t1", json.RawMessage(`"b"`), 30); err != nil {
		t.Fatalf("AppendIfChanged: %v", err)
	}

	revs, err := store.List(ctx, "t1", ListOptions{CalculateDiff: true})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if revs[0].Diff == nil {
		t.Fatal("expected newest revision to carry a computed diff")
	}
	if revs[len(revs)-1].Diff != nil {
		t.Fatal("oldest revision in the pair should not carry a diff")
	}
}
