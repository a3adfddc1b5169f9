package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeTools(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if value, ok := os.LookupEnv("SINGALONG_DATA_DIR"); ok && strings.TrimSpace(value) != "" {
		c.Paths.DataDir = value
	}
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("SINGALONG_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}

	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeTools() error {
	c.Tools.YtDlpBinary = defaultIfBlank(c.Tools.YtDlpBinary, defaultYtDlpBinary)
	c.Tools.YtDlpDownloadURL = defaultIfBlank(c.Tools.YtDlpDownloadURL, defaultYtDlpDownloadURL)
	c.Tools.FFprobeBinary = defaultIfBlank(c.Tools.FFprobeBinary, defaultFFprobeBinary)
	c.Tools.PythonBinary = defaultIfBlank(c.Tools.PythonBinary, defaultPythonBinary)
	c.Tools.SeparatorScript = defaultIfBlank(c.Tools.SeparatorScript, defaultSeparatorScript)

	var err error
	if c.Tools.SeparatorScript, err = expandPath(c.Tools.SeparatorScript); err != nil {
		return fmt.Errorf("tools.separator_script: %w", err)
	}
	if strings.ContainsRune(c.Tools.YtDlpBinary, '/') || strings.HasPrefix(c.Tools.YtDlpBinary, "~") {
		if c.Tools.YtDlpBinary, err = expandPath(c.Tools.YtDlpBinary); err != nil {
			return fmt.Errorf("tools.ytdlp_binary: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func defaultIfBlank(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return strings.TrimSpace(value)
}
