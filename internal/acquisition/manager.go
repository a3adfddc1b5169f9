package acquisition

import (
	"context"
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
	"singalong/internal/media/ffprobe"
	"singalong/internal/services"
	"singalong/internal/services/ytdlp"
	"singalong/internal/telemetry"
	"singalong/internal/textutil"
)

// Family names the acquisition queue in logs and metrics.
const Family = "acquisition"

// Catalog is the slice of the catalog store the manager depends on.
type Catalog interface {
	FindByRemoteID(ctx context.Context, remoteID string) (*catalog.Entry, error)
	NewID() string
	SongDir(id string) string
	Create(ctx context.Context, entry catalog.Entry) (*catalog.Entry, error)
	Invalidate()
}

// Fetcher probes and downloads remote references.
type Fetcher interface {
	Probe(ctx context.Context, ref string) (*ytdlp.Metadata, error)
	Download(ctx context.Context, req ytdlp.DownloadRequest, onProgress func(percent float64)) (string, error)
}

// DurationProber reads the duration of a local audio file in seconds.
type DurationProber func(ctx context.Context, path string) (float64, error)

// FFprobeDuration returns a DurationProber backed by the ffprobe binary.
func FFprobeDuration(binary string, timeout time.Duration) DurationProber {
	return func(ctx context.Context, path string) (float64, error) {
		ctx, cancel := services.WithTimeout(ctx, timeout)
		defer cancel()
		return ffprobe.Duration(ctx, binary, path)
	}
}

// Request is the caller input for QueueJob.
type Request struct {
	SourceRef  string `json:"sourceRef"`
	Quality    string `json:"quality,omitempty"`
	Title      string `json:"title,omitempty"`
	Artist     string `json:"artist,omitempty"`
	Kind       string `json:"kind,omitempty"`
	LyricsText string `json:"lyricsText,omitempty"`
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

// WithDurationProber sets how downloaded audio durations are read.
func WithDurationProber(probe DurationProber) Option {
	return func(m *Manager) {
		m.probeDuration = probe
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

// Manager owns the acquisition queue.
type Manager struct {
	queue         *jobqueue.Queue[Job]
	store         jobqueue.Store[Job]
	catalog       Catalog
	fetcher       Fetcher
	probeDuration DurationProber
	logger        *slog.Logger
	now           func() time.Time

	// enqueueMu makes dedup and enqueue one step.
	enqueueMu sync.Mutex

	changedMu        sync.RWMutex
	onCatalogChanged func()
}

// NewManager restores persisted jobs and attaches the download runner.
func NewManager(cat Catalog, fetcher Fetcher, opts ...Option) *Manager {
	m := &Manager{
		catalog: cat,
		fetcher: fetcher,
		logger:  logging.NewNop(),
		now:     time.Now,
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

// Start begins processing queued jobs. ctx cancels any running download.
func (m *Manager) Start(ctx context.Context) {
	m.queue.Start(ctx)
}

// Close stops promotion and waits for the running download to return.
func (m *Manager) Close() {
	m.queue.Close()
}

// Wait blocks until the queue is idle.
func (m *Manager) Wait() {
	m.queue.Wait()
}

// SetCatalogChangedHandler registers fn to run after each completed download.
func (m *Manager) SetCatalogChangedHandler(fn func()) {
	m.changedMu.Lock()
	m.onCatalogChanged = fn
	m.changedMu.Unlock()
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

// RemoveJobBySongID drops finished jobs that produced catalogID.
func (m *Manager) RemoveJobBySongID(catalogID string) int {
	if strings.TrimSpace(catalogID) == "" {
		return 0
	}
	return m.queue.Remove(func(j Job) bool {
		return j.CatalogID == catalogID && j.IsTerminal()
	})
}

// Validate probes ref. An unusable reference yields (nil, nil).
func (m *Manager) Validate(ctx context.Context, ref string) (*ytdlp.Metadata, error) {
	return m.fetcher.Probe(ctx, ref)
}

// QueueJob validates and deduplicates req, then enqueues it.
func (m *Manager) QueueJob(ctx context.Context, req Request) (Job, error) {
	ref := strings.TrimSpace(req.SourceRef)
	if ref == "" {
		return Job{}, services.Wrap(services.ErrValidation, Family, "queue", "source reference is required", nil)
	}
	quality, err := ytdlp.ParseQuality(req.Quality)
	if err != nil {
		return Job{}, err
	}
	kind, err := catalog.ParseType(req.Kind)
	if err != nil {
		return Job{}, err
	}

	meta, err := m.Validate(ctx, ref)
	if err != nil {
		return Job{}, err
	}
	if meta == nil {
		return Job{}, fmt.Errorf("%w: %s", ErrInvalidReference, ref)
	}

	m.enqueueMu.Lock()
	defer m.enqueueMu.Unlock()

	if err := m.dedup(ctx, meta.RemoteID); err != nil {
		return Job{}, err
	}

	title := textutil.CleanTitle(req.Title)
	if title == "" {
		title = textutil.CleanTitle(meta.Title)
	}
	if title == "" {
		title = meta.RemoteID
	}
	now := m.now()
	job := Job{
		ID:         jobqueue.NewID(now),
		RemoteID:   meta.RemoteID,
		Title:      title,
		Artist:     textutil.CleanTitle(req.Artist),
		Quality:    quality,
		Kind:       kind,
		LyricsText: req.LyricsText,
		Status:     StatusQueued,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	m.queue.Enqueue(job)
	return job, nil
}

func (m *Manager) dedup(ctx context.Context, remoteID string) error {
	evicted := m.queue.Remove(func(j Job) bool {
		return j.RemoteID == remoteID && j.Status == StatusFailed
	})
	if evicted > 0 {
		m.logger.Debug("evicted failed duplicate jobs",
			logging.String("remote_id", remoteID),
			logging.Int("count", evicted),
		)
	}
	if _, pending := m.queue.Find(func(j Job) bool {
		return j.RemoteID == remoteID && !j.IsTerminal()
	}); pending {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, remoteID)
	}

	existing, err := m.catalog.FindByRemoteID(ctx, remoteID)
	if err != nil {
		return fmt.Errorf("check catalog: %w", err)
	}
	if existing != nil {
		return fmt.Errorf("%w: %q", ErrAlreadyInCatalog, existing.Title)
	}
	m.queue.Remove(func(j Job) bool {
		return j.RemoteID == remoteID && j.Status == StatusCompleted
	})
	return nil
}

func (m *Manager) update(id string, patch func(*Job)) {
	m.queue.Update(id, patch)
}

func (m *Manager) execute(ctx context.Context, job Job) {
	logger := logging.WithContext(ctx, m.logger).With(logging.String("remote_id", job.RemoteID))
	started := m.now()
	logger.Info("download started",
		logging.String(logging.FieldEventType, "acquisition_started"),
		logging.String("title", job.Title),
		logging.String(logging.FieldQuality, string(job.Quality)),
	)
	m.update(job.ID, func(j *Job) {
		j.Status = StatusDownloading
		j.Progress = 0
		j.Error = ""
	})

	entry, err := m.acquire(ctx, job, logger)
	elapsed := m.now().Sub(started).Seconds()
	if err != nil {
		message := err.Error()
		if ctx.Err() != nil {
			message = jobqueue.ReasonShutdown
		}
		telemetry.ObserveFinished(Family, false, elapsed)
		logging.WarnWithContext(logger, "download failed", "acquisition_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the reference in a browser and retry"),
			logging.String(logging.FieldImpact, "song was not added to the library"),
		)
		m.update(job.ID, func(j *Job) {
			j.Status = StatusFailed
			j.Error = message
		})
		return
	}

	m.update(job.ID, func(j *Job) {
		j.Status = StatusCompleted
		j.Progress = 100
		j.Error = ""
		j.CatalogID = entry.ID
	})
	telemetry.ObserveFinished(Family, true, elapsed)
	logger.Info("download completed",
		logging.String(logging.FieldEventType, "acquisition_completed"),
		logging.String(logging.FieldCatalogID, entry.ID),
		logging.Float64("elapsed_seconds", elapsed),
	)
	m.catalog.Invalidate()
	m.notifyCatalogChanged()
}

func (m *Manager) acquire(ctx context.Context, job Job, logger *slog.Logger) (*catalog.Entry, error) {
	id := m.catalog.NewID()
	songDir := m.catalog.SongDir(id)
	cleanup := func() {
		if err := os.RemoveAll(songDir); err != nil {
			logger.Debug("remove partial song directory", logging.Error(err))
		}
	}

	sampler := logging.NewProgressSampler(10)
	audioPath, err := m.fetcher.Download(ctx, ytdlp.DownloadRequest{
		RemoteID: job.RemoteID,
		Quality:  job.Quality,
		Dir:      songDir,
	}, func(percent float64) {
		m.update(job.ID, func(j *Job) { j.Progress = percent })
		if sampler.ShouldLog(percent, "download") {
			logger.Info("download progress", logging.Float64("percent", percent))
		}
	})
	if err != nil {
		cleanup()
		return nil, err
	}

	m.update(job.ID, func(j *Job) { j.Status = StatusProcessing })

	var duration float64
	if m.probeDuration != nil {
		d, err := m.probeDuration(ctx, audioPath)
		if err != nil {
			logging.WarnWithContext(logger, "duration probe failed", "acquisition_duration_unknown",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "install ffprobe or set tools.ffprobe_binary"),
				logging.String(logging.FieldImpact, "library shows no duration for this song"),
			)
		} else {
			duration = d
		}
	}

	lyricsPath, err := catalog.WriteRawLyrics(songDir, job.LyricsText)
	if err != nil {
		cleanup()
		return nil, err
	}
	lyricsStatus := catalog.LyricsNone
	if lyricsPath != "" {
		lyricsStatus = catalog.LyricsTextOnly
	}

	entry, err := m.catalog.Create(ctx, catalog.Entry{
		ID:              id,
		Title:           job.Title,
		Artist:          job.Artist,
		Type:            job.Kind,
		AudioStatus:     catalog.AudioOriginalOnly,
		LyricsStatus:    lyricsStatus,
		LyricsRawPath:   lyricsPath,
		Source:          catalog.Source{Kind: catalog.SourceYouTube, RemoteID: job.RemoteID},
		StoredFilename:  filepath.Base(audioPath),
		DurationSeconds: duration,
	})
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("create catalog entry: %w", err)
	}
	return entry, nil
}

func (m *Manager) notifyCatalogChanged() {
	m.changedMu.RLock()
	fn := m.onCatalogChanged
	m.changedMu.RUnlock()
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logging.WarnWithContext(m.logger, "catalog change handler panicked", "catalog_changed_panic",
				logging.String("panic", fmt.Sprint(r)),
				logging.String(logging.FieldErrorHint, "inspect the registered handler"),
				logging.String(logging.FieldImpact, "listeners may show a stale library"),
			)
		}
	}()
	fn()
}
