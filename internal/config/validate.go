package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateTools(); err != nil {
		return err
	}
	if err := c.validateTimeouts(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	if !strings.Contains(c.Paths.APIBind, ":") {
		return fmt.Errorf("paths.api_bind must be host:port, got %q", c.Paths.APIBind)
	}
	return nil
}

func (c *Config) validateTools() error {
	if c.Tools.YtDlpAutoInstall {
		parsed, err := url.Parse(c.Tools.YtDlpDownloadURL)
		if err != nil || (parsed.Scheme != "https" && parsed.Scheme != "http") {
			return fmt.Errorf("tools.ytdlp_download_url must be an http(s) URL, got %q", c.Tools.YtDlpDownloadURL)
		}
	}
	if mirror := strings.TrimSpace(c.Tools.ModelMirrorURL); mirror != "" {
		parsed, err := url.Parse(mirror)
		if err != nil || (parsed.Scheme != "https" && parsed.Scheme != "http") {
			return fmt.Errorf("tools.model_mirror_url must be an http(s) URL, got %q", mirror)
		}
	}
	return nil
}

func (c *Config) validateTimeouts() error {
	return ensureNonNegativeMap(map[string]int{
		"timeouts.probe":          c.Timeouts.Probe,
		"timeouts.download":       c.Timeouts.Download,
		"timeouts.separation":     c.Timeouts.Separation,
		"timeouts.model_download": c.Timeouts.ModelDownload,
	})
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func ensureNonNegativeMap(values map[string]int) error {
	for key, value := range values {
		if value < 0 {
			return fmt.Errorf("%s must be zero or positive (seconds)", key)
		}
	}
	return nil
}
