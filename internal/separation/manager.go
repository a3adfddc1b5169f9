package separation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"singalong/internal/catalog"
	"singalong/internal/jobqueue"
	"singalong/internal/logging"
	"singalong/internal/models"
	"singalong/internal/services"
	"singalong/internal/services/separator"
	"singalong/internal/telemetry"
)

// Family names the separation queue in logs and metrics.
const Family = "separation"

var (
	// ErrEntryNotFound means the catalog has no entry with the requested id.
	ErrEntryNotFound = fmt.Errorf("%w: catalog entry", services.ErrNotFound)
	// ErrNotSeparable means the entry is not a 原曲 track.
	ErrNotSeparable = fmt.Errorf("%w: only 原曲 entries can be separated", services.ErrValidation)
)

// Catalog is the slice of the catalog store the manager depends on.
type Catalog interface {
	Get(ctx context.Context, id string) (*catalog.Entry, error)
	SongDir(id string) string
	Mutate(ctx context.Context, id string, fn func(*catalog.Entry) error) (*catalog.Entry, error)
}

// Settings supplies the default quality tier.
type Settings interface {
	SeparationQuality() models.Tier
}

// ModelCache provides model files by tier.
type ModelCache interface {
	Dir() string
	Ensure(ctx context.Context, tier models.Tier, onProgress func(percent float64)) (string, error)
}

// Separator runs one separation.
type Separator interface {
	Run(ctx context.Context, req separator.Request, onProgress func(percent float64)) (*separator.Result, error)
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the manager logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithStore persists job history. Without it jobs live in memory.
func WithStore(store jobqueue.Store[Job]) Option {
	return func(m *Manager) {
		m.store = store
	}
}

// WithSettings sets the source of the default quality tier.
func WithSettings(settings Settings) Option {
	return func(m *Manager) {
		m.settings = settings
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// Manager owns the separation queue.
type Manager struct {
	queue     *jobqueue.Queue[Job]
	store     jobqueue.Store[Job]
	catalog   Catalog
	models    ModelCache
	separator Separator
	settings  Settings
	logger    *slog.Logger
	now       func() time.Time

	enqueueMu sync.Mutex
}

// NewManager restores persisted jobs and attaches the separation runner.
func NewManager(cat Catalog, cache ModelCache, sep Separator, opts ...Option) *Manager {
	m := &Manager{
		catalog:   cat,
		models:    cache,
		separator: sep,
		logger:    logging.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = logging.NewComponentLogger(m.logger, Family)
	m.queue = jobqueue.New(m.store,
		jobqueue.WithLogger[Job](m.logger),
		jobqueue.WithFamily[Job](Family),
		jobqueue.WithClock[Job](m.now),
	)
	m.queue.SetRunner(m.execute)
	return m
}

// Start begins processing queued jobs. ctx cancels any running separation.
func (m *Manager) Start(ctx context.Context) {
	m.recoverEntries(ctx)
	m.queue.Start(ctx)
}

// recoverEntries fails catalog entries left pending or separating by jobs
// the previous process never finished.
func (m *Manager) recoverEntries(ctx context.Context) {
	for _, job := range m.queue.Snapshot() {
		if job.Status != StatusFailed || job.ErrorMessage != jobqueue.ReasonRestart {
			continue
		}
		if _, pending := m.queue.Find(func(j Job) bool {
			return j.CatalogID == job.CatalogID && (j.IsQueued() || j.IsActive())
		}); pending {
			continue
		}
		entry, err := m.catalog.Get(ctx, job.CatalogID)
		if err == nil && (entry == nil || (entry.AudioStatus != catalog.AudioSeparating && entry.AudioStatus != catalog.AudioSeparationPending)) {
			continue
		}
		if err == nil {
			_, err = m.catalog.Mutate(ctx, job.CatalogID, func(e *catalog.Entry) error {
				e.AudioStatus = catalog.AudioSeparationFailed
				e.LastSeparationError = jobqueue.ReasonRestart
				return nil
			})
		}
		if err != nil && !errors.Is(err, catalog.ErrNotFound) {
			logging.WarnWithContext(m.logger, "failed to recover entry status", "separation_recover_failed",
				logging.String(logging.FieldCatalogID, job.CatalogID),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "queue the separation again"),
				logging.String(logging.FieldImpact, "entry may show a stale separation status"),
			)
		}
	}
}

// Close stops promotion and waits for the running separation to return.
func (m *Manager) Close() {
	m.queue.Close()
}

// Wait blocks until the queue is idle.
func (m *Manager) Wait() {
	m.queue.Wait()
}

// Subscribe delivers the job list now and after every change.
func (m *Manager) Subscribe(fn func([]Job)) func() {
	return m.queue.Subscribe(fn)
}

// Jobs returns all jobs, newest first.
func (m *Manager) Jobs() []Job {
	return m.queue.Snapshot()
}

// Get returns one job.
func (m *Manager) Get(id string) (Job, bool) {
	return m.queue.Get(id)
}

// QueueJob schedules a separation for catalogID. A queued or running job for
// the same entry is returned unchanged.
func (m *Manager) QueueJob(ctx context.Context, catalogID, qualityOverride string) (Job, error) {
	catalogID = strings.TrimSpace(catalogID)
	if catalogID == "" {
		return Job{}, services.Wrap(services.ErrValidation, Family, "queue", "catalog id is required", nil)
	}
	quality, err := m.resolveQuality(qualityOverride)
	if err != nil {
		return Job{}, err
	}

	m.enqueueMu.Lock()
	defer m.enqueueMu.Unlock()

	entry, err := m.catalog.Get(ctx, catalogID)
	if err != nil {
		return Job{}, fmt.Errorf("load catalog entry: %w", err)
	}
	if entry == nil {
		return Job{}, fmt.Errorf("%w: %s", ErrEntryNotFound, catalogID)
	}
	if !entry.IsSeparable() {
		return Job{}, fmt.Errorf("%w: %s is %s", ErrNotSeparable, catalogID, entry.Type)
	}

	if existing, ok := m.queue.Find(func(j Job) bool {
		return j.CatalogID == catalogID && (j.IsQueued() || j.IsActive())
	}); ok {
		return existing, nil
	}

	if _, err := m.catalog.Mutate(ctx, catalogID, func(e *catalog.Entry) error {
		e.AudioStatus = catalog.AudioSeparationPending
		e.LastSeparationError = ""
		return nil
	}); err != nil {
		return Job{}, fmt.Errorf("mark entry pending: %w", err)
	}

	now := m.now()
	job := Job{
		ID:        jobqueue.NewID(now),
		CatalogID: catalogID,
		Quality:   quality,
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.queue.Enqueue(job)
	return job, nil
}

func (m *Manager) resolveQuality(override string) (models.Tier, error) {
	if strings.TrimSpace(override) != "" {
		return models.ParseTier(override)
	}
	if m.settings != nil {
		if tier := m.settings.SeparationQuality(); tier != "" {
			if _, ok := models.Lookup(tier); ok {
				return tier, nil
			}
		}
	}
	return models.DefaultTier, nil
}

func (m *Manager) execute(ctx context.Context, job Job) {
	logger := logging.WithContext(ctx, m.logger).With(
		logging.String(logging.FieldCatalogID, job.CatalogID),
		logging.String(logging.FieldQuality, string(job.Quality)),
	)
	started := m.now()

	result, err := m.separate(ctx, job, logger)
	elapsed := m.now().Sub(started).Seconds()
	if err != nil {
		m.fail(ctx, job, err, elapsed, logger)
		return
	}

	if _, err := m.catalog.Mutate(ctx, job.CatalogID, func(e *catalog.Entry) error {
		e.AudioStatus = catalog.AudioSeparated
		e.InstrumentalPath = result.Instrumental
		e.VocalPath = result.Vocal
		e.SeparationQuality = string(job.Quality)
		e.LastSeparationError = ""
		return nil
	}); err != nil {
		m.fail(ctx, job, fmt.Errorf("record separation result: %w", err), elapsed, logger)
		return
	}
	m.queue.Update(job.ID, func(j *Job) {
		j.Status = StatusSucceeded
		j.Progress = 100
		j.ErrorMessage = ""
	})
	telemetry.ObserveFinished(Family, true, elapsed)
	logger.Info("separation completed",
		logging.String(logging.FieldEventType, "separation_completed"),
		logging.String("instrumental", result.Instrumental),
		logging.String("vocal", result.Vocal),
		logging.Float64("elapsed_seconds", elapsed),
	)
}

func (m *Manager) separate(ctx context.Context, job Job, logger *slog.Logger) (*separator.Result, error) {
	entry, err := m.catalog.Get(ctx, job.CatalogID)
	if err != nil {
		return nil, fmt.Errorf("load catalog entry: %w", err)
	}
	if entry == nil {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, job.CatalogID)
	}
	songDir := m.catalog.SongDir(entry.ID)
	input := filepath.Join(songDir, entry.StoredFilename)
	if _, err := os.Stat(input); err != nil {
		return nil, fmt.Errorf("original audio missing at %s", input)
	}

	if _, err := m.catalog.Mutate(ctx, job.CatalogID, func(e *catalog.Entry) error {
		e.AudioStatus = catalog.AudioSeparating
		return nil
	}); err != nil {
		return nil, fmt.Errorf("mark entry separating: %w", err)
	}
	m.queue.Update(job.ID, func(j *Job) {
		j.Status = StatusRunning
		j.Progress = 0
		j.ErrorMessage = ""
	})
	logger.Info("separation started",
		logging.String(logging.FieldEventType, "separation_started"),
		logging.String("input", input),
	)

	preset, ok := models.Lookup(job.Quality)
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrUnknownTier, job.Quality)
	}
	modelSampler := logging.NewProgressSampler(10)
	if _, err := m.models.Ensure(ctx, job.Quality, func(percent float64) {
		if modelSampler.ShouldLog(percent, "model") {
			logger.Info("model download progress",
				logging.String("model", preset.DisplayName),
				logging.Float64("percent", percent),
			)
		}
	}); err != nil {
		return nil, fmt.Errorf("prepare model %s: %w", preset.DisplayName, err)
	}

	return m.separator.Run(ctx, separator.Request{
		Input:     input,
		OutputDir: songDir,
		Quality:   job.Quality,
		ModelFile: preset.Filename,
		CacheDir:  m.models.Dir(),
	}, func(percent float64) {
		m.queue.Update(job.ID, func(j *Job) { j.Progress = percent })
	})
}

func (m *Manager) fail(ctx context.Context, job Job, err error, elapsed float64, logger *slog.Logger) {
	message := err.Error()
	if ctx.Err() != nil {
		message = jobqueue.ReasonShutdown
	}
	telemetry.ObserveFinished(Family, false, elapsed)
	logging.WarnWithContext(logger, "separation failed", "separation_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check the separator runtime and retry"),
		logging.String(logging.FieldImpact, "entry keeps its original audio only"),
	)

	// The catalog write must land even when ctx was cancelled by shutdown.
	writeCtx := context.WithoutCancel(ctx)
	if _, mutErr := m.catalog.Mutate(writeCtx, job.CatalogID, func(e *catalog.Entry) error {
		e.AudioStatus = catalog.AudioSeparationFailed
		e.LastSeparationError = message
		return nil
	}); mutErr != nil && !errors.Is(mutErr, catalog.ErrNotFound) {
		logging.WarnWithContext(logger, "failed to record separation failure", "separation_status_write_failed",
			logging.Error(mutErr),
			logging.String(logging.FieldErrorHint, "check the catalog database"),
			logging.String(logging.FieldImpact, "entry may show a stale separation status"),
		)
	}
	m.queue.Update(job.ID, func(j *Job) {
		j.Status = StatusFailed
		j.ErrorMessage = message
	})
}
