package models

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"singalong/internal/fileutil"
	"singalong/internal/logging"
	"singalong/internal/services"
	"singalong/internal/telemetry"
)

// ErrUnexpectedStatus reports a non-2xx response from the model host.
var ErrUnexpectedStatus = errors.New("unexpected download status")

// Status is the cache state of one tier.
type Status struct {
	Preset    Preset `json:"preset"`
	Path      string `json:"path"`
	Available bool   `json:"available"`
	SizeBytes int64  `json:"sizeBytes"`
}

// Option customizes the cache.
type Option func(*Cache)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Cache) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithLogger sets the cache logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTimeout bounds each download. Zero disables the limit.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Cache) {
		c.timeout = timeout
	}
}

// WithURL replaces the download URL of one tier, mainly for tests and mirrors.
func WithURL(tier Tier, url string) Option {
	return func(c *Cache) {
		c.urls[tier] = url
	}
}

// WithMirror fetches every tier from base joined with the preset filename.
func WithMirror(base string) Option {
	return func(c *Cache) {
		c.mirror = strings.TrimRight(strings.TrimSpace(base), "/")
	}
}

// Cache manages model files under a single directory.
type Cache struct {
	dir        string
	httpClient *http.Client
	logger     *slog.Logger
	timeout    time.Duration
	urls       map[Tier]string
	mirror     string

	mu    sync.Mutex
	locks map[Tier]*sync.Mutex
}

// NewCache returns a cache rooted at dir.
func NewCache(dir string, opts ...Option) *Cache {
	c := &Cache{
		dir:        dir,
		httpClient: &http.Client{},
		logger:     logging.NewNop(),
		urls:       make(map[Tier]string),
		locks:      make(map[Tier]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.NewComponentLogger(c.logger, "models")
	return c
}

// Dir returns the cache directory.
func (c *Cache) Dir() string {
	return c.dir
}

// Path returns where the tier's model file lives, whether or not it exists.
func (c *Cache) Path(tier Tier) string {
	preset, ok := Lookup(tier)
	if !ok {
		return ""
	}
	return filepath.Join(c.dir, preset.Filename)
}

// IsAvailable reports whether the model file exists. It never touches the network.
func (c *Cache) IsAvailable(tier Tier) bool {
	path := c.Path(tier)
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// List reports every tier's cache state.
func (c *Cache) List() []Status {
	out := make([]Status, 0, len(presets))
	for _, tier := range Tiers() {
		preset, _ := Lookup(tier)
		status := Status{Preset: preset, Path: c.Path(tier)}
		if info, err := os.Stat(status.Path); err == nil && info.Mode().IsRegular() {
			status.Available = true
			status.SizeBytes = info.Size()
		}
		out = append(out, status)
	}
	return out
}

// Ensure returns the model path, downloading the file first when absent.
func (c *Cache) Ensure(ctx context.Context, tier Tier, onProgress func(percent float64)) (string, error) {
	if c.IsAvailable(tier) {
		return c.Path(tier), nil
	}
	return c.Download(ctx, tier, onProgress)
}

// Download fetches the tier's model. A caller that waited on another
// in-flight download of the same tier returns the finished file.
func (c *Cache) Download(ctx context.Context, tier Tier, onProgress func(percent float64)) (string, error) {
	preset, ok := Lookup(tier)
	if !ok {
		return "", services.Wrap(services.ErrValidation, "models", "download", string(tier), ErrUnknownTier)
	}
	lock := c.tierLock(tier)
	lock.Lock()
	defer lock.Unlock()

	finalPath := c.Path(tier)
	if c.IsAvailable(tier) {
		return finalPath, nil
	}

	url := preset.URL
	if c.mirror != "" {
		url = c.mirror + "/" + preset.Filename
	}
	if override, ok := c.urls[tier]; ok {
		url = override
	}
	logger := c.logger.With(logging.String(logging.FieldQuality, string(tier)))
	logger.Info("downloading separation model",
		logging.String(logging.FieldEventType, "model_download_started"),
		logging.String("model", preset.DisplayName),
		logging.String("url", url),
	)

	start := time.Now()
	size, err := c.fetch(ctx, url, finalPath, onProgress)
	if err != nil {
		telemetry.ModelDownloads.WithLabelValues(string(tier), telemetry.OutcomeFailure).Inc()
		logging.WarnWithContext(logger, "model download failed", "model_download_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check network access to "+url),
			logging.String(logging.FieldImpact, "separation for this tier cannot run"),
		)
		return "", err
	}
	telemetry.ModelDownloads.WithLabelValues(string(tier), telemetry.OutcomeSuccess).Inc()
	logger.Info("separation model downloaded",
		logging.String(logging.FieldEventType, "model_download_completed"),
		logging.String("path", finalPath),
		logging.Int64("bytes", size),
		logging.Duration("elapsed", time.Since(start)),
	)
	return finalPath, nil
}

func (c *Cache) fetch(ctx context.Context, url, finalPath string, onProgress func(float64)) (int64, error) {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return 0, fmt.Errorf("create model dir: %w", err)
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("build model request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return 0, services.Wrap(services.ErrTimeout, "models", "download", fmt.Sprintf("timed out after %s", c.timeout), err)
		}
		return 0, fmt.Errorf("request model: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)
	}

	total := resp.ContentLength
	var onWrite func(int64)
	if total > 0 && onProgress != nil {
		onWrite = func(written int64) {
			onProgress(float64(written) / float64(total) * 100)
		}
	}
	written, err := fileutil.StreamToFile(resp.Body, finalPath, 0o644, onWrite)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return written, services.Wrap(services.ErrTimeout, "models", "download", fmt.Sprintf("timed out after %s", c.timeout), err)
		}
		return written, fmt.Errorf("write model file: %w", err)
	}
	return written, nil
}

func (c *Cache) tierLock(tier Tier) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	lock, ok := c.locks[tier]
	if !ok {
		lock = &sync.Mutex{}
		c.locks[tier] = lock
	}
	return lock
}
