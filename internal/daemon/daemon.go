package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"singalong/internal/acquisition"
	"singalong/internal/catalog"
	"singalong/internal/config"
	"singalong/internal/deps"
	"singalong/internal/jobqueue"
	"singalong/internal/logging"
	"singalong/internal/models"
	"singalong/internal/preflight"
	"singalong/internal/separation"
	"singalong/internal/services"
	"singalong/internal/services/separator"
	"singalong/internal/services/ytdlp"
	"singalong/internal/settings"
	"singalong/internal/telemetry"
)

var (
	// ErrNotRunning is returned by operations that need the job managers.
	ErrNotRunning = fmt.Errorf("%w: daemon is not running", services.ErrConfiguration)
	// ErrEntryBusy means a separation for the entry is queued or running.
	ErrEntryBusy = fmt.Errorf("%w: entry has a pending separation", services.ErrConflict)
)

// Daemon owns the catalog, both job managers and the model cache, and
// enforces single-instance execution through a lock file.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	rt      atomic.Pointer[components]

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	api    *apiServer

	subMu      sync.RWMutex
	nextSubID  int
	catalogSub map[int]func()
}

// components exist only while the lock is held.
type components struct {
	catalog     *catalog.Store
	settings    *settings.Store
	models      *models.Cache
	downloads   *acquisition.Manager
	separations *separation.Manager
	unsubscribe []func()
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	LockFilePath string
	DataDir      string
	CatalogPath  string
	Downloads    []acquisition.Job
	Separations  []separation.Job
	Models       []models.Status
	Dependencies []deps.Status
	Checks       []preflight.Result
}

// New constructs a daemon. Nothing is opened until Start.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:        cfg,
		logger:     logging.NewComponentLogger(logger, "daemon"),
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
		catalogSub: make(map[int]func()),
	}, nil
}

// Start acquires the daemon lock, restores job history and starts both
// queues. Managers are built only after the lock is held so a second
// process never rewrites the live daemon's job files.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := d.cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another singalong daemon instance is already running")
	}

	rt, err := d.build()
	if err != nil {
		_ = d.lock.Unlock()
		return err
	}

	telemetry.Register()
	runCtx, cancel := context.WithCancel(ctx)
	d.mu.Lock()
	d.cancel = cancel
	d.done = make(chan struct{})
	d.mu.Unlock()

	d.rt.Store(rt)
	d.running.Store(true)
	rt.downloads.Start(runCtx)
	rt.separations.Start(runCtx)

	srv := newAPIServer(d.cfg, d, d.logger)
	if err := srv.start(runCtx); err != nil {
		d.Stop()
		return err
	}
	d.mu.Lock()
	d.api = srv
	d.mu.Unlock()

	d.logger.Info("singalong daemon started",
		logging.String("lock", d.lockPath),
		logging.String("catalog", rt.catalog.Path()),
		logging.String("separation_quality", string(rt.settings.SeparationQuality())),
	)
	return nil
}

func (d *Daemon) build() (*components, error) {
	cfg := d.cfg
	store, err := catalog.Open(cfg.CatalogDBPath(), cfg.SongsDir(), catalog.WithLogger(d.logger))
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}

	prefs := settings.NewStore(cfg.SettingsPath(), d.logger)
	cache := models.NewCache(cfg.ModelDir(),
		models.WithLogger(d.logger),
		models.WithTimeout(cfg.ModelDownloadTimeout()),
		models.WithMirror(cfg.Tools.ModelMirrorURL),
	)
	fetcher := ytdlp.NewFromConfig(cfg, ytdlp.WithLogger(d.logger))
	runner := separator.NewFromConfig(cfg, separator.WithLogger(d.logger))

	downloads := acquisition.NewManager(store, fetcher,
		acquisition.WithLogger(d.logger),
		acquisition.WithStore(jobqueue.NewFileStore[acquisition.Job](cfg.AcquisitionJobsPath())),
		acquisition.WithDurationProber(acquisition.FFprobeDuration(cfg.Tools.FFprobeBinary, cfg.ProbeTimeout())),
	)
	separations := separation.NewManager(store, cache, runner,
		separation.WithLogger(d.logger),
		separation.WithStore(jobqueue.NewFileStore[separation.Job](cfg.SeparationJobsPath())),
		separation.WithSettings(prefs),
	)

	store.OnDelete(func(_ context.Context, id string) {
		if removed := downloads.RemoveJobBySongID(id); removed > 0 {
			d.logger.Debug("removed download history for deleted entry",
				logging.String(logging.FieldCatalogID, id),
				logging.Int("jobs", removed),
			)
		}
	})
	downloads.SetCatalogChangedHandler(d.notifyCatalog)

	// Separation transitions rewrite the entry's audio status.
	var lastSignature string
	unsubSep := separations.Subscribe(func(jobs []separation.Job) {
		sig := separationSignature(jobs)
		if sig == lastSignature {
			return
		}
		first := lastSignature == ""
		lastSignature = sig
		if !first {
			d.notifyCatalog()
		}
	})

	return &components{
		catalog:     store,
		settings:    prefs,
		models:      cache,
		downloads:   downloads,
		separations: separations,
		unsubscribe: []func(){unsubSep},
	}, nil
}

func separationSignature(jobs []separation.Job) string {
	var b strings.Builder
	b.WriteByte('|')
	for _, job := range jobs {
		b.WriteString(job.ID)
		b.WriteByte(':')
		b.WriteString(string(job.Status))
		b.WriteByte('|')
	}
	return b.String()
}

// Stop cancels running jobs, closes the managers and the catalog, and
// releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.CompareAndSwap(true, false) {
		return
	}
	rt := d.rt.Swap(nil)

	d.mu.Lock()
	cancel, done, srv := d.cancel, d.done, d.api
	d.cancel = nil
	d.api = nil
	d.mu.Unlock()
	srv.stop()
	if cancel != nil {
		cancel()
	}

	if rt != nil {
		for _, unsub := range rt.unsubscribe {
			unsub()
		}
		rt.downloads.Close()
		rt.separations.Close()
		if err := rt.catalog.Close(); err != nil {
			logging.WarnWithContext(d.logger, "failed to close catalog", "catalog_close_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the data directory for a stale WAL file"),
				logging.String(logging.FieldImpact, "next start replays the write-ahead log"),
			)
		}
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	if done != nil {
		close(done)
	}
	d.logger.Info("singalong daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return d.lock.Close()
}

// Done is closed when Stop completes. It is nil before the first Start.
func (d *Daemon) Done() <-chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.done
}

// APIAddress returns the HTTP listener address, or "" when the API is
// disabled or the daemon is stopped.
func (d *Daemon) APIAddress() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.api.addr()
}

// Running reports whether Start succeeded and Stop has not run.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

func (d *Daemon) live() (*components, error) {
	rt := d.rt.Load()
	if rt == nil {
		return nil, ErrNotRunning
	}
	return rt, nil
}

// Status reports lock, queue, model and dependency state.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		LockFilePath: d.lockPath,
		DataDir:      d.cfg.Paths.DataDir,
		CatalogPath:  d.cfg.CatalogDBPath(),
	}
	if rt := d.rt.Load(); rt != nil {
		status.Downloads = rt.downloads.Jobs()
		status.Separations = rt.separations.Jobs()
		status.Models = rt.models.List()
	} else {
		status.Models = models.NewCache(d.cfg.ModelDir()).List()
	}
	status.Dependencies = preflight.CheckSystemDeps(ctx, d.cfg)
	status.Checks = preflight.RunAll(ctx, d.cfg)
	return status
}

// ValidateDownload probes ref without queueing anything.
func (d *Daemon) ValidateDownload(ctx context.Context, ref string) (*ytdlp.Metadata, error) {
	rt, err := d.live()
	if err != nil {
		return nil, err
	}
	return rt.downloads.Validate(ctx, ref)
}

// QueueDownload schedules an acquisition job.
func (d *Daemon) QueueDownload(ctx context.Context, req acquisition.Request) (acquisition.Job, error) {
	rt, err := d.live()
	if err != nil {
		return acquisition.Job{}, err
	}
	return rt.downloads.QueueJob(ctx, req)
}

// Downloads lists acquisition jobs, newest first.
func (d *Daemon) Downloads() []acquisition.Job {
	if rt := d.rt.Load(); rt != nil {
		return rt.downloads.Jobs()
	}
	return nil
}

// Download returns one acquisition job.
func (d *Daemon) Download(id string) (acquisition.Job, bool) {
	if rt := d.rt.Load(); rt != nil {
		return rt.downloads.Get(id)
	}
	return acquisition.Job{}, false
}

// QueueSeparation schedules a separation job for a catalog entry.
func (d *Daemon) QueueSeparation(ctx context.Context, catalogID, quality string) (separation.Job, error) {
	rt, err := d.live()
	if err != nil {
		return separation.Job{}, err
	}
	return rt.separations.QueueJob(ctx, catalogID, quality)
}

// Separations lists separation jobs, newest first.
func (d *Daemon) Separations() []separation.Job {
	if rt := d.rt.Load(); rt != nil {
		return rt.separations.Jobs()
	}
	return nil
}

// Separation returns one separation job.
func (d *Daemon) Separation(id string) (separation.Job, bool) {
	if rt := d.rt.Load(); rt != nil {
		return rt.separations.Get(id)
	}
	return separation.Job{}, false
}

// Library lists catalog entries.
func (d *Daemon) Library(ctx context.Context) ([]catalog.Entry, error) {
	rt, err := d.live()
	if err != nil {
		return nil, err
	}
	return rt.catalog.List(ctx)
}

// Entry returns one catalog entry, or nil when absent.
func (d *Daemon) Entry(ctx context.Context, id string) (*catalog.Entry, error) {
	rt, err := d.live()
	if err != nil {
		return nil, err
	}
	return rt.catalog.Get(ctx, id)
}

// Playback resolves the audio files for an entry.
func (d *Daemon) Playback(ctx context.Context, id string) (catalog.Playback, error) {
	rt, err := d.live()
	if err != nil {
		return catalog.Playback{}, err
	}
	return rt.catalog.PlaybackPaths(ctx, id)
}

// RemoveEntry deletes an entry and its files. Entries with a queued or
// running separation are refused.
func (d *Daemon) RemoveEntry(ctx context.Context, id string) error {
	rt, err := d.live()
	if err != nil {
		return err
	}
	for _, job := range rt.separations.Jobs() {
		if job.CatalogID == id && (job.IsQueued() || job.IsActive()) {
			return fmt.Errorf("%w: %s", ErrEntryBusy, id)
		}
	}
	if err := rt.catalog.Delete(ctx, id); err != nil {
		return err
	}
	d.notifyCatalog()
	return nil
}

// ImportLocal copies a local audio file into the catalog.
func (d *Daemon) ImportLocal(ctx context.Context, req catalog.LocalRequest) (*catalog.Entry, error) {
	rt, err := d.live()
	if err != nil {
		return nil, err
	}
	entry, err := rt.catalog.AddLocal(ctx, req)
	if err != nil {
		return nil, err
	}
	d.notifyCatalog()
	return entry, nil
}

// Models lists every tier and whether its file is cached.
func (d *Daemon) Models() []models.Status {
	if rt := d.rt.Load(); rt != nil {
		return rt.models.List()
	}
	return models.NewCache(d.cfg.ModelDir()).List()
}

// DownloadModel fetches the model for tier, replacing any cached copy.
func (d *Daemon) DownloadModel(ctx context.Context, tier models.Tier) (models.Status, error) {
	rt, err := d.live()
	if err != nil {
		return models.Status{}, err
	}
	logger := d.logger.With(logging.String(logging.FieldQuality, string(tier)))
	sampler := logging.NewProgressSampler(10)
	_, err = rt.models.Download(ctx, tier, func(percent float64) {
		if sampler.ShouldLog(percent, "download") {
			logger.Info("model download progress", logging.Float64("percent", percent))
		}
	})
	if err != nil {
		return models.Status{}, err
	}
	for _, status := range rt.models.List() {
		if status.Preset.Tier == tier {
			return status, nil
		}
	}
	return models.Status{}, fmt.Errorf("%w: %s", models.ErrUnknownTier, tier)
}

// Settings returns persisted preferences.
func (d *Daemon) Settings() settings.Settings {
	if rt := d.rt.Load(); rt != nil {
		return rt.settings.Load()
	}
	return settings.NewStore(d.cfg.SettingsPath(), d.logger).Load()
}

// SetSeparationQuality persists the default separation tier.
func (d *Daemon) SetSeparationQuality(tier models.Tier) (settings.Settings, error) {
	rt, err := d.live()
	if err != nil {
		return settings.Settings{}, err
	}
	return rt.settings.SetSeparationQuality(tier)
}

// SubscribeDownloads delivers acquisition job lists until the returned
// function is called.
func (d *Daemon) SubscribeDownloads(fn func([]acquisition.Job)) func() {
	if rt := d.rt.Load(); rt != nil {
		return rt.downloads.Subscribe(fn)
	}
	return func() {}
}

// SubscribeSeparations delivers separation job lists until the returned
// function is called.
func (d *Daemon) SubscribeSeparations(fn func([]separation.Job)) func() {
	if rt := d.rt.Load(); rt != nil {
		return rt.separations.Subscribe(fn)
	}
	return func() {}
}

// SubscribeCatalog calls fn whenever catalog entries change.
func (d *Daemon) SubscribeCatalog(fn func()) func() {
	d.subMu.Lock()
	id := d.nextSubID
	d.nextSubID++
	d.catalogSub[id] = fn
	d.subMu.Unlock()
	return func() {
		d.subMu.Lock()
		delete(d.catalogSub, id)
		d.subMu.Unlock()
	}
}

func (d *Daemon) notifyCatalog() {
	d.subMu.RLock()
	fns := make([]func(), 0, len(d.catalogSub))
	for _, fn := range d.catalogSub {
		fns = append(fns, fn)
	}
	d.subMu.RUnlock()
	for _, fn := range fns {
		fn()
	}
}
