package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// Tools locates the external executables the job managers supervise.
type Tools struct {
	YtDlpBinary      string `toml:"ytdlp_binary"`
	YtDlpAutoInstall bool   `toml:"ytdlp_auto_install"`
	YtDlpDownloadURL string `toml:"ytdlp_download_url"`
	FFprobeBinary    string `toml:"ffprobe_binary"`
	PythonBinary     string `toml:"python_binary"`
	SeparatorScript  string `toml:"separator_script"`
	ModelMirrorURL   string `toml:"model_mirror_url"`
}

// Timeouts bounds each external invocation, in seconds. Zero disables the limit.
type Timeouts struct {
	Probe         int `toml:"probe"`
	Download      int `toml:"download"`
	Separation    int `toml:"separation"`
	ModelDownload int `toml:"model_download"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for singalong.
//
// Configuration sections by subsystem:
//   - Paths: data directory, logs, and API bind address
//   - Tools: yt-dlp, ffprobe, and the separator runtime
//   - Timeouts: per-tool subprocess and download limits
//   - Logging: log format and level
type Config struct {
	Paths    Paths    `toml:"paths"`
	Tools    Tools    `toml:"tools"`
	Timeouts Timeouts `toml:"timeouts"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/singalong/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("singalong.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir, c.SongsDir(), c.ModelDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// SongsDir holds one folder per catalog entry.
func (c *Config) SongsDir() string {
	return filepath.Join(c.Paths.DataDir, "songs")
}

// ModelDir is the separation model cache.
func (c *Config) ModelDir() string {
	return filepath.Join(c.Paths.DataDir, "models", "mdx")
}

// BinDir receives auto-installed tool binaries.
func (c *Config) BinDir() string {
	return filepath.Join(c.Paths.DataDir, "bin")
}

// AcquisitionJobsPath is the persisted acquisition job list.
func (c *Config) AcquisitionJobsPath() string {
	return filepath.Join(c.Paths.DataDir, "downloadJobs.json")
}

// SeparationJobsPath is the persisted separation job list.
func (c *Config) SeparationJobsPath() string {
	return filepath.Join(c.Paths.DataDir, "separationJobs.json")
}

// SettingsPath is the user preference file.
func (c *Config) SettingsPath() string {
	return filepath.Join(c.Paths.DataDir, "settings.json")
}

// CatalogDBPath is the SQLite catalog database.
func (c *Config) CatalogDBPath() string {
	return filepath.Join(c.Paths.DataDir, "catalog.db")
}

// LockPath guards single-instance daemon execution.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "singalongd.lock")
}

// SocketPath is the IPC socket used by the CLI.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.LogDir, "singalong.sock")
}

// PIDPath records the running daemon's process id.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.LogDir, "singalong.pid")
}

// CurrentLogPath points at the most recent daemon run's log file.
func (c *Config) CurrentLogPath() string {
	return filepath.Join(c.Paths.LogDir, "singalong.log")
}

// ProbeTimeout returns the metadata probe limit.
func (c *Config) ProbeTimeout() time.Duration {
	return seconds(c.Timeouts.Probe)
}

// DownloadTimeout returns the media download limit.
func (c *Config) DownloadTimeout() time.Duration {
	return seconds(c.Timeouts.Download)
}

// SeparationTimeout returns the separator process limit.
func (c *Config) SeparationTimeout() time.Duration {
	return seconds(c.Timeouts.Separation)
}

// ModelDownloadTimeout returns the model fetch limit.
func (c *Config) ModelDownloadTimeout() time.Duration {
	return seconds(c.Timeouts.ModelDownload)
}

func seconds(value int) time.Duration {
	if value <= 0 {
		return 0
	}
	return time.Duration(value) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
