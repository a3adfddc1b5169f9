package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"singalong/internal/logging"
	"singalong/internal/telemetry"
)

// Runner executes one job. It owns the job's status transitions through
// Queue.Update and returns once the job reached a terminal state.
type Runner[T any] func(ctx context.Context, job T)

// Option configures a Queue.
type Option[T Job[T]] func(*Queue[T])

// WithLogger sets the queue logger.
func WithLogger[T Job[T]](logger *slog.Logger) Option[T] {
	return func(q *Queue[T]) {
		if logger != nil {
			q.logger = logger
		}
	}
}

// WithFamily names the job family in logs, contexts, and metrics.
func WithFamily[T Job[T]](family string) Option[T] {
	return func(q *Queue[T]) {
		q.family = family
	}
}

// WithClock overrides time.Now.
func WithClock[T Job[T]](now func() time.Time) Option[T] {
	return func(q *Queue[T]) {
		if now != nil {
			q.now = now
		}
	}
}

type subscriber[T any] struct {
	id int
	fn func([]T)
}

// Queue is a single-runner job list with broadcast and write-through persistence.
type Queue[T Job[T]] struct {
	mu       sync.Mutex
	jobs     []T
	activeID string
	started  bool
	closed   bool
	baseCtx  context.Context
	runner   Runner[T]
	subs     []subscriber[T]
	nextSub  int
	running  sync.WaitGroup
	notifyMu sync.Mutex

	store  Store[T]
	logger *slog.Logger
	family string
	now    func() time.Time
}

// New restores the job list from store and fails jobs orphaned by a previous
// process. A nil store keeps jobs in memory only.
func New[T Job[T]](store Store[T], opts ...Option[T]) *Queue[T] {
	if store == nil {
		store = NewMemoryStore[T]()
	}
	q := &Queue[T]{
		store:  store,
		logger: logging.NewNop(),
		family: "jobs",
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	q.logger = q.logger.With(logging.String(logging.FieldJobFamily, q.family))
	q.restore()
	return q
}

func (q *Queue[T]) restore() {
	jobs, err := q.store.Load()
	if err != nil {
		hint := "check file permissions"
		if errors.Is(err, ErrCorrupt) {
			hint = "fix or delete the job file; history was discarded"
		}
		logging.WarnWithContext(q.logger, "job store unreadable; starting empty", "job_store_corrupt",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, hint),
			logging.String(logging.FieldImpact, "previous job history is not shown"),
		)
		jobs = nil
	}

	recovered := 0
	now := q.now()
	for i, job := range jobs {
		if job.IsActive() {
			jobs[i] = job.Interrupted(ReasonRestart).Touched(now)
			recovered++
		}
	}
	q.jobs = jobs
	if recovered > 0 {
		q.logger.Info("recovered orphaned jobs",
			logging.String(logging.FieldEventType, "job_orphans_recovered"),
			logging.Int("count", recovered),
		)
		q.persist(q.snapshotLocked())
	}
}

// SetRunner attaches the family's execution routine. It must be called before Start.
func (q *Queue[T]) SetRunner(fn Runner[T]) {
	q.mu.Lock()
	q.runner = fn
	q.mu.Unlock()
}

// Start records ctx as the parent of every runner context and promotes any
// job left queued by a previous process.
func (q *Queue[T]) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	q.mu.Lock()
	q.baseCtx = ctx
	q.started = true
	q.mu.Unlock()
	q.promoteNext()
}

// Enqueue inserts job at the front of the list and promotes if idle.
func (q *Queue[T]) Enqueue(job T) {
	q.mu.Lock()
	q.jobs = append([]T{job}, q.jobs...)
	q.broadcastLocked()
	telemetry.JobsEnqueued.WithLabelValues(q.family).Inc()
	q.logger.Info("job queued", logging.String(logging.FieldJobID, job.JobID()))
	q.promoteNext()
}

// Update applies patch to a copy of the job, stamps updatedAt, stores and
// broadcasts it. It returns false when id is unknown.
func (q *Queue[T]) Update(id string, patch func(*T)) (T, bool) {
	q.mu.Lock()
	idx := q.indexLocked(id)
	if idx < 0 {
		q.mu.Unlock()
		var zero T
		return zero, false
	}
	next := q.jobs[idx]
	if patch != nil {
		patch(&next)
	}
	next = next.Touched(q.now())
	q.jobs[idx] = next
	q.broadcastLocked()
	return next, true
}

// Remove deletes every job matching match, except the active one, and
// returns how many were removed.
func (q *Queue[T]) Remove(match func(T) bool) int {
	q.mu.Lock()
	kept := q.jobs[:0:0]
	removed := 0
	for _, job := range q.jobs {
		if job.JobID() != q.activeID && match(job) {
			removed++
			continue
		}
		kept = append(kept, job)
	}
	if removed == 0 {
		q.mu.Unlock()
		return 0
	}
	q.jobs = kept
	q.broadcastLocked()
	return removed
}

// Find returns the first job, newest first, matching match.
func (q *Queue[T]) Find(match func(T) bool) (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, job := range q.jobs {
		if match(job) {
			return job, true
		}
	}
	var zero T
	return zero, false
}

// Get returns the job with id.
func (q *Queue[T]) Get(id string) (T, bool) {
	return q.Find(func(job T) bool { return job.JobID() == id })
}

// Snapshot returns a copy of all jobs sorted newest-created first.
func (q *Queue[T]) Snapshot() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.snapshotLocked()
}

// ActiveID returns the id of the executing job, or "".
func (q *Queue[T]) ActiveID() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.activeID
}

// Family returns the configured family name.
func (q *Queue[T]) Family() string {
	return q.family
}

// Subscribe delivers the current snapshot synchronously and then every
// broadcast until the returned function is called. Callbacks run on the
// mutating goroutine and must not call back into the queue.
func (q *Queue[T]) Subscribe(fn func([]T)) func() {
	q.mu.Lock()
	q.nextSub++
	id := q.nextSub
	q.subs = append(q.subs, subscriber[T]{id: id, fn: fn})
	snapshot := q.snapshotLocked()
	q.notifyMu.Lock()
	q.mu.Unlock()
	q.deliver(subscriber[T]{id: id, fn: fn}, snapshot)
	q.notifyMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			q.mu.Lock()
			defer q.mu.Unlock()
			for i, sub := range q.subs {
				if sub.id == id {
					q.subs = append(q.subs[:i:i], q.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Wait blocks until no job is executing and nothing queued can be promoted.
func (q *Queue[T]) Wait() {
	q.running.Wait()
}

// Close stops promotion and waits for the executing job to return.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.running.Wait()
}

func (q *Queue[T]) promoteNext() {
	q.mu.Lock()
	if !q.started || q.closed || q.activeID != "" || q.runner == nil {
		q.mu.Unlock()
		return
	}
	idx := -1
	for i := len(q.jobs) - 1; i >= 0; i-- {
		if !q.jobs[i].IsQueued() {
			continue
		}
		if idx < 0 || q.jobs[i].CreatedTime().Before(q.jobs[idx].CreatedTime()) {
			idx = i
		}
	}
	if idx < 0 {
		q.mu.Unlock()
		return
	}
	job := q.jobs[idx]
	q.activeID = job.JobID()
	q.running.Add(1)
	ctx := logging.WithJob(q.baseCtx, q.family, job.JobID())
	runner := q.runner
	q.broadcastLocked()

	go q.run(ctx, runner, job)
}

func (q *Queue[T]) run(ctx context.Context, runner Runner[T], job T) {
	defer q.running.Done()
	defer q.promoteNext()
	defer q.release(ctx, job.JobID())

	defer func() {
		if r := recover(); r != nil {
			logging.ErrorWithContext(q.logger, "job runner panicked", "job_runner_panic",
				logging.String(logging.FieldJobID, job.JobID()),
				logging.String("panic", fmt.Sprint(r)),
				logging.String("stack", string(debug.Stack())),
				logging.String(logging.FieldErrorHint, "report the panic with the log file attached"),
			)
			reason := fmt.Sprintf("job runner panic: %v", r)
			q.Update(job.JobID(), func(j *T) { *j = (*j).Interrupted(reason) })
		}
	}()

	runner(ctx, job)
}

// release clears the active slot. A job the runner left queued or executing
// is failed so it is neither stuck nor promoted again.
func (q *Queue[T]) release(ctx context.Context, id string) {
	q.mu.Lock()
	if q.activeID == id {
		q.activeID = ""
	}
	idx := q.indexLocked(id)
	if idx >= 0 && (q.jobs[idx].IsActive() || q.jobs[idx].IsQueued()) {
		reason := reasonAbandon
		if ctx.Err() != nil {
			reason = ReasonShutdown
		}
		q.jobs[idx] = q.jobs[idx].Interrupted(reason).Touched(q.now())
		logging.WarnWithContext(q.logger, "job left unfinished by runner", "job_abandoned",
			logging.String(logging.FieldJobID, id),
			logging.String("reason", reason),
			logging.String(logging.FieldImpact, "job marked failed"),
		)
	}
	q.broadcastLocked()
}

// broadcastLocked must be called with q.mu held and releases it. Holding
// notifyMu across the unlock keeps delivery in mutation order.
func (q *Queue[T]) broadcastLocked() {
	snapshot := q.snapshotLocked()
	subs := append([]subscriber[T](nil), q.subs...)
	queued := 0
	for _, job := range q.jobs {
		if job.IsQueued() {
			queued++
		}
	}
	active := q.activeID != ""
	q.notifyMu.Lock()
	q.mu.Unlock()
	defer q.notifyMu.Unlock()

	telemetry.ObserveQueue(q.family, queued, active)
	for _, sub := range subs {
		q.deliver(sub, cloneJobs(snapshot))
	}
	q.persist(snapshot)
}

func (q *Queue[T]) deliver(sub subscriber[T], jobs []T) {
	defer func() {
		if r := recover(); r != nil {
			logging.WarnWithContext(q.logger, "job subscriber panicked", "job_subscriber_panic",
				logging.Int("subscriber", sub.id),
				logging.String("panic", fmt.Sprint(r)),
				logging.String(logging.FieldErrorHint, "inspect the subscriber callback"),
				logging.String(logging.FieldImpact, "this subscriber missed one update"),
			)
		}
	}()
	sub.fn(jobs)
}

func (q *Queue[T]) persist(jobs []T) {
	if err := q.store.Save(jobs); err != nil {
		logging.WarnWithContext(q.logger, "failed to persist jobs", "job_store_save_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check free space and permissions on the data directory"),
			logging.String(logging.FieldImpact, "job history may be stale after restart"),
		)
	}
}

func (q *Queue[T]) snapshotLocked() []T {
	out := cloneJobs(q.jobs)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedTime().After(out[j].CreatedTime())
	})
	return out
}

func (q *Queue[T]) indexLocked(id string) int {
	for i, job := range q.jobs {
		if job.JobID() == id {
			return i
		}
	}
	return -1
}

func cloneJobs[T any](jobs []T) []T {
	out := make([]T, len(jobs))
	copy(out, jobs)
	return out
}
