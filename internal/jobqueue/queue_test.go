package jobqueue_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"singalong/internal/jobqueue"
)

type testJob struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (j testJob) JobID() string          { return j.ID }
func (j testJob) IsQueued() bool         { return j.Status == "queued" }
func (j testJob) IsActive() bool         { return j.Status == "running" }
func (j testJob) CreatedTime() time.Time { return j.CreatedAt }
func (j testJob) Touched(now time.Time) testJob {
	j.UpdatedAt = now
	return j
}
func (j testJob) Interrupted(reason string) testJob {
	j.Status = "failed"
	j.Error = reason
	return j
}

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func queued(id string, offset int) testJob {
	return testJob{ID: id, Status: "queued", CreatedAt: base.Add(time.Duration(offset) * time.Second)}
}

func finish(q *jobqueue.Queue[testJob], id string) {
	q.Update(id, func(j *testJob) { j.Status = "done" })
}

func TestPromotionIsFIFOAndSerial(t *testing.T) {
	q := jobqueue.New[testJob](nil)

	var mu sync.Mutex
	var order []string
	concurrent, maxConcurrent := 0, 0
	q.SetRunner(func(ctx context.Context, job testJob) {
		mu.Lock()
		order = append(order, job.ID)
		concurrent++
		if concurrent > maxConcurrent {
			maxConcurrent = concurrent
		}
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		concurrent--
		mu.Unlock()
		finish(q, job.ID)
	})

	q.Enqueue(queued("b", 2))
	q.Enqueue(queued("c", 3))
	q.Enqueue(queued("a", 1))
	if q.ActiveID() != "" {
		t.Fatal("nothing should run before Start")
	}

	q.Start(context.Background())
	q.Wait()

	if got := strings.Join(order, ","); got != "a,b,c" {
		t.Fatalf("unexpected execution order %q", got)
	}
	if maxConcurrent != 1 {
		t.Fatalf("expected one job at a time, saw %d", maxConcurrent)
	}
	if q.ActiveID() != "" {
		t.Fatalf("active slot not released: %q", q.ActiveID())
	}
}

func TestActiveSlotHoldsSecondJob(t *testing.T) {
	q := jobqueue.New[testJob](nil)
	release := make(chan struct{})
	started := make(chan string, 2)
	q.SetRunner(func(ctx context.Context, job testJob) {
		q.Update(job.ID, func(j *testJob) { j.Status = "running" })
		started <- job.ID
		<-release
		finish(q, job.ID)
	})
	q.Start(context.Background())

	q.Enqueue(queued("first", 1))
	if id := <-started; id != "first" {
		t.Fatalf("expected first job to start, got %q", id)
	}
	q.Enqueue(queued("second", 2))
	if q.ActiveID() != "first" {
		t.Fatalf("expected first to hold the slot, got %q", q.ActiveID())
	}
	if job, _ := q.Get("second"); job.Status != "queued" {
		t.Fatalf("second job should wait, got status %q", job.Status)
	}

	release <- struct{}{}
	if id := <-started; id != "second" {
		t.Fatalf("expected second job to start, got %q", id)
	}
	release <- struct{}{}
	q.Wait()
}

func TestRestoreInterruptsOrphans(t *testing.T) {
	store := jobqueue.NewMemoryStore(
		testJob{ID: "run", Status: "running", CreatedAt: base},
		queued("wait", 1),
		testJob{ID: "done", Status: "done", CreatedAt: base.Add(-time.Hour)},
	)
	q := jobqueue.New[testJob](store, jobqueue.WithClock[testJob](func() time.Time { return base.Add(time.Minute) }))

	job, ok := q.Get("run")
	if !ok {
		t.Fatal("expected orphan to be kept")
	}
	if job.Status != "failed" || job.Error != jobqueue.ReasonRestart {
		t.Fatalf("unexpected orphan state: %+v", job)
	}
	if !job.UpdatedAt.Equal(base.Add(time.Minute)) {
		t.Fatalf("expected orphan to be touched, got %v", job.UpdatedAt)
	}
	if job, _ := q.Get("wait"); job.Status != "queued" {
		t.Fatalf("queued job should survive restart, got %q", job.Status)
	}
	if store.Saves() != 1 {
		t.Fatalf("expected recovery to persist once, got %d saves", store.Saves())
	}
}

func TestRestoreHandlesMissingAndCorruptFiles(t *testing.T) {
	dir := t.TempDir()

	missing := jobqueue.New[testJob](jobqueue.NewFileStore[testJob](filepath.Join(dir, "missing.json")))
	if len(missing.Snapshot()) != 0 {
		t.Fatal("expected empty queue for missing file")
	}

	corruptPath := filepath.Join(dir, "corrupt.json")
	if err := os.WriteFile(corruptPath, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}
	if _, err := jobqueue.NewFileStore[testJob](corruptPath).Load(); !errors.Is(err, jobqueue.ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
	corrupt := jobqueue.New[testJob](jobqueue.NewFileStore[testJob](corruptPath))
	if len(corrupt.Snapshot()) != 0 {
		t.Fatal("expected empty queue for corrupt file")
	}
}

func TestFileStorePersistsEveryBroadcast(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.json")
	q := jobqueue.New[testJob](jobqueue.NewFileStore[testJob](path))
	q.Enqueue(queued("one", 1))
	q.Update("one", func(j *testJob) { j.Status = "running" })

	reloaded := jobqueue.New[testJob](jobqueue.NewFileStore[testJob](path))
	job, ok := reloaded.Get("one")
	if !ok {
		t.Fatal("expected persisted job")
	}
	if job.Status != "failed" || job.Error != jobqueue.ReasonRestart {
		t.Fatalf("expected persisted running job to be recovered as failed, got %+v", job)
	}
}

func TestSubscribeDeliversSnapshotsInOrder(t *testing.T) {
	q := jobqueue.New[testJob](nil)
	q.Enqueue(queued("old", 1))

	var got [][]testJob
	unsubscribe := q.Subscribe(func(jobs []testJob) { got = append(got, jobs) })
	q.Subscribe(func([]testJob) { panic("bad subscriber") })
	var tail int
	q.Subscribe(func([]testJob) { tail++ })

	if len(got) != 1 || len(got[0]) != 1 {
		t.Fatalf("expected immediate snapshot with one job, got %v", got)
	}

	q.Enqueue(queued("new", 2))
	q.Update("old", func(j *testJob) { j.Status = "done" })
	if len(got) != 3 {
		t.Fatalf("expected two broadcasts after subscribe, got %d", len(got)-1)
	}
	if got[1][0].ID != "new" || got[1][1].ID != "old" {
		t.Fatalf("snapshot should be newest first: %+v", got[1])
	}
	if got[2][1].Status != "done" {
		t.Fatalf("expected update to be visible, got %+v", got[2])
	}
	if tail != 3 {
		t.Fatalf("panicking subscriber blocked later subscribers: %d deliveries", tail)
	}

	got[2][0].Status = "mutated"
	if job, _ := q.Get("new"); job.Status != "queued" {
		t.Fatal("subscriber mutation leaked into queue state")
	}

	unsubscribe()
	unsubscribe()
	q.Update("new", func(j *testJob) { j.Status = "done" })
	if len(got) != 3 {
		t.Fatal("unsubscribed callback still receives broadcasts")
	}
}

func TestPersistenceFailureIsSwallowed(t *testing.T) {
	store := jobqueue.NewMemoryStore[testJob]()
	store.FailSaves(errors.New("disk full"))
	q := jobqueue.New[testJob](store)

	q.Enqueue(queued("a", 1))
	if _, ok := q.Get("a"); !ok {
		t.Fatal("job should be queued despite save failure")
	}
	if store.Saves() == 0 {
		t.Fatal("expected save to be attempted")
	}
}

func TestRunnerPanicFailsJobAndContinues(t *testing.T) {
	q := jobqueue.New[testJob](nil)
	q.SetRunner(func(ctx context.Context, job testJob) {
		if job.ID == "boom" {
			panic("exploded")
		}
		finish(q, job.ID)
	})
	q.Enqueue(queued("boom", 1))
	q.Enqueue(queued("next", 2))
	q.Start(context.Background())
	q.Wait()

	boom, _ := q.Get("boom")
	if boom.Status != "failed" || !strings.Contains(boom.Error, "exploded") {
		t.Fatalf("expected panic to fail job, got %+v", boom)
	}
	if next, _ := q.Get("next"); next.Status != "done" {
		t.Fatalf("expected queue to continue after panic, got %+v", next)
	}
}

func TestUnfinishedJobIsFailedOnRelease(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	q := jobqueue.New[testJob](nil)
	q.SetRunner(func(ctx context.Context, job testJob) {
		if job.ID == "lazy" {
			return
		}
		q.Update(job.ID, func(j *testJob) { j.Status = "running" })
		cancel()
		<-ctx.Done()
	})
	q.Start(ctx)
	q.Enqueue(queued("lazy", 1))
	q.Wait()
	if job, _ := q.Get("lazy"); job.Status != "failed" {
		t.Fatalf("job left queued should fail, got %+v", job)
	}

	q.Enqueue(queued("cancelled", 2))
	q.Wait()
	if job, _ := q.Get("cancelled"); job.Error != jobqueue.ReasonShutdown {
		t.Fatalf("expected shutdown reason, got %+v", job)
	}
}

func TestRemoveSkipsActiveJob(t *testing.T) {
	q := jobqueue.New[testJob](nil)
	release := make(chan struct{})
	running := make(chan struct{})
	q.SetRunner(func(ctx context.Context, job testJob) {
		close(running)
		<-release
		finish(q, job.ID)
	})
	q.Start(context.Background())
	q.Enqueue(queued("active", 1))
	<-running
	q.Enqueue(queued("idle", 2))
	q.Enqueue(queued("idle-2", 3))

	removed := q.Remove(func(testJob) bool { return true })
	if removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}
	if _, ok := q.Get("active"); !ok {
		t.Fatal("active job must not be removed")
	}
	close(release)
	q.Close()
}

func TestNewIDFormat(t *testing.T) {
	pattern := regexp.MustCompile(`^\d+-[0-9a-f]{6}$`)
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		id := jobqueue.NewID(base)
		if !pattern.MatchString(id) {
			t.Fatalf("unexpected id format %q", id)
		}
		if !strings.HasPrefix(id, "1772366400000-") {
			t.Fatalf("expected millisecond prefix, got %q", id)
		}
		seen[id] = struct{}{}
	}
	if len(seen) < 95 {
		t.Fatalf("ids collide too often: %d unique of 100", len(seen))
	}
}
