package ytdlp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"singalong/internal/config"
	"singalong/internal/logging"
	"singalong/internal/services"
	"singalong/internal/textutil"
)

const toolName = "yt-dlp"

// OutputStem is the file stem every download is written under.
const OutputStem = "Original"

// ErrBinaryMissing reports that no yt-dlp executable could be found or installed.
var ErrBinaryMissing = fmt.Errorf("%w: yt-dlp binary not found", services.ErrConfiguration)

// Metadata is the subset of --dump-json output the acquisition flow needs.
type Metadata struct {
	RemoteID string  `json:"id"`
	Title    string  `json:"title"`
	Uploader string  `json:"uploader,omitempty"`
	Duration float64 `json:"duration,omitempty"`
}

// DownloadRequest describes one audio download.
type DownloadRequest struct {
	RemoteID string
	Quality  Quality
	Dir      string
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec services.Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTimeouts bounds probe and download invocations. Zero disables a limit.
func WithTimeouts(probe, download time.Duration) Option {
	return func(c *Client) {
		c.probeTimeout = probe
		c.downloadTimeout = download
	}
}

// WithAutoInstall enables fetching the standalone binary from url into binDir
// when the configured binary cannot be resolved.
func WithAutoInstall(binDir, url string) Option {
	return func(c *Client) {
		c.binDir = binDir
		c.installURL = strings.TrimSpace(url)
	}
}

// WithHTTPClient overrides the client used for auto-install.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// Client wraps yt-dlp CLI interactions.
type Client struct {
	binary          string
	binDir          string
	installURL      string
	probeTimeout    time.Duration
	downloadTimeout time.Duration
	exec            services.Executor
	httpClient      *http.Client
	logger          *slog.Logger

	installMu sync.Mutex
}

// New constructs a yt-dlp client.
func New(binary string, opts ...Option) *Client {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = toolName
	}
	c := &Client{
		binary:     binary,
		exec:       services.CommandExecutor{},
		httpClient: &http.Client{},
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.NewComponentLogger(c.logger, "ytdlp")
	return c
}

// NewFromConfig wires binary location, timeouts and auto-install from cfg.
func NewFromConfig(cfg *config.Config, opts ...Option) *Client {
	base := []Option{WithTimeouts(cfg.ProbeTimeout(), cfg.DownloadTimeout())}
	if cfg.Tools.YtDlpAutoInstall {
		base = append(base, WithAutoInstall(cfg.BinDir(), cfg.Tools.YtDlpDownloadURL))
	} else {
		base = append(base, WithAutoInstall(cfg.BinDir(), ""))
	}
	return New(cfg.Tools.YtDlpBinary, append(base, opts...)...)
}

// Probe asks yt-dlp for the metadata of ref without downloading. A reference
// yt-dlp rejects yields (nil, nil). Missing binaries and timeouts are errors.
func (c *Client) Probe(ctx context.Context, ref string) (*Metadata, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, nil
	}
	binary, err := c.EnsureBinary(ctx)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := services.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	var lines []string
	var mu sync.Mutex
	tail := textutil.NewTailBuffer(0, 0)
	runErr := c.exec.Run(runCtx, services.Command{
		Binary: binary,
		Args:   ProbeArgs(ref),
		OnStdout: func(line string) {
			mu.Lock()
			lines = append(lines, line)
			mu.Unlock()
		},
		OnStderr: tail.Add,
	})
	if runErr != nil {
		if services.IsMissingBinary(runErr) {
			return nil, fmt.Errorf("%w: %v", ErrBinaryMissing, runErr)
		}
		classified := services.ClassifyRunError(ctx, runCtx, toolName, c.probeTimeout, runErr, tail.String())
		var exitErr *services.ToolExitError
		if errors.As(classified, &exitErr) {
			c.logger.Debug("yt-dlp rejected reference",
				logging.String("ref", ref),
				logging.Int("exit_code", exitErr.Code),
				logging.String("stderr", exitErr.Tail),
			)
			return nil, nil
		}
		return nil, classified
	}

	mu.Lock()
	defer mu.Unlock()
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var meta Metadata
		if err := json.Unmarshal([]byte(line), &meta); err != nil {
			return nil, nil
		}
		meta.RemoteID = strings.TrimSpace(meta.RemoteID)
		if meta.RemoteID == "" {
			return nil, nil
		}
		meta.Title = textutil.CleanTitle(meta.Title)
		return &meta, nil
	}
	return nil, nil
}

// Download fetches req as WAV into req.Dir and returns the written path.
// onProgress receives percentages parsed from yt-dlp output.
func (c *Client) Download(ctx context.Context, req DownloadRequest, onProgress func(percent float64)) (string, error) {
	if strings.TrimSpace(req.RemoteID) == "" {
		return "", errors.New("remote id required")
	}
	if req.Dir == "" {
		return "", errors.New("destination directory required")
	}
	binary, err := c.EnsureBinary(ctx)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(req.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create destination: %w", err)
	}

	runCtx, cancel := services.WithTimeout(ctx, c.downloadTimeout)
	defer cancel()

	tail := textutil.NewTailBuffer(0, 0)
	runErr := c.exec.Run(runCtx, services.Command{
		Binary: binary,
		Args:   DownloadArgs(req),
		OnStdout: func(line string) {
			if onProgress == nil {
				return
			}
			if percent, ok := ParseProgress(line); ok {
				onProgress(percent)
			}
		},
		OnStderr: tail.Add,
	})
	if runErr != nil {
		if services.IsMissingBinary(runErr) {
			return "", fmt.Errorf("%w: %v", ErrBinaryMissing, runErr)
		}
		return "", services.ClassifyRunError(ctx, runCtx, toolName, c.downloadTimeout, runErr, tail.String())
	}

	path := filepath.Join(req.Dir, OutputStem+".wav")
	if _, err := os.Stat(path); err != nil {
		return "", services.Wrap(services.ErrExternalTool, toolName, "download", "finished without producing "+path, err)
	}
	return path, nil
}

// ProbeArgs builds the metadata-only invocation.
func ProbeArgs(ref string) []string {
	return []string{"--dump-json", "--no-playlist", "--skip-download", ref}
}

// DownloadArgs builds the audio extraction invocation.
func DownloadArgs(req DownloadRequest) []string {
	return []string{
		"-f", FormatSelector(req.Quality),
		"-x",
		"--audio-format", "wav",
		"-o", filepath.Join(req.Dir, OutputStem+".%(ext)s"),
		"--no-playlist",
		"--newline",
		CanonicalURL(req.RemoteID),
	}
}
