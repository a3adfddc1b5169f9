package ytdlp

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"singalong/internal/deps"
	"singalong/internal/fileutil"
	"singalong/internal/logging"
	"singalong/internal/services"
)

const installTimeout = 5 * time.Minute

// EnsureBinary resolves the yt-dlp executable on PATH or in the bin directory,
// installing it when auto-install is enabled.
func (c *Client) EnsureBinary(ctx context.Context) (string, error) {
	if path, ok := deps.Resolve(c.binary, c.binDir); ok {
		return path, nil
	}
	if c.installURL == "" || c.binDir == "" {
		return "", fmt.Errorf("%w: %s", ErrBinaryMissing, c.binary)
	}

	c.installMu.Lock()
	defer c.installMu.Unlock()
	if path, ok := deps.Resolve(c.binary, c.binDir); ok {
		return path, nil
	}
	return c.install(ctx)
}

func (c *Client) install(ctx context.Context) (string, error) {
	target := filepath.Join(c.binDir, filepath.Base(c.binary))
	c.logger.Info("installing yt-dlp",
		logging.String(logging.FieldEventType, "ytdlp_install_started"),
		logging.String("url", c.installURL),
		logging.String("path", target),
	)

	ctx, cancel := context.WithTimeout(ctx, installTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.installURL, nil)
	if err != nil {
		return "", fmt.Errorf("build install request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", c.installFailed(fmt.Errorf("fetch yt-dlp: %w", err))
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", c.installFailed(fmt.Errorf("fetch yt-dlp: unexpected status %s", resp.Status))
	}
	written, err := fileutil.StreamToFile(resp.Body, target, 0o755, nil)
	if err != nil {
		return "", c.installFailed(fmt.Errorf("write yt-dlp: %w", err))
	}
	c.logger.Info("yt-dlp installed",
		logging.String(logging.FieldEventType, "ytdlp_install_completed"),
		logging.String("path", target),
		logging.Int64("bytes", written),
	)
	return target, nil
}

func (c *Client) installFailed(err error) error {
	logging.WarnWithContext(c.logger, "yt-dlp install failed", "ytdlp_install_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "install yt-dlp manually or set tools.ytdlp_binary"),
		logging.String(logging.FieldImpact, "downloads cannot start"),
	)
	return services.Wrap(services.ErrConfiguration, toolName, "install", "", fmt.Errorf("%w: %w", ErrBinaryMissing, err))
}
