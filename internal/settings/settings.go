// Package settings stores user preferences that outlive the daemon, such as
// the default separation quality.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"

	"singalong/internal/fileutil"
	"singalong/internal/logging"
	"singalong/internal/models"
)

// Settings mirrors settings.json.
type Settings struct {
	SeparationQuality models.Tier `json:"separationQuality"`
	IgnoredVersion    string      `json:"ignoredVersion,omitempty"`
}

// Defaults returns the settings used when nothing was saved.
func Defaults() Settings {
	return Settings{SeparationQuality: models.DefaultTier}
}

// Store reads and writes settings.json.
type Store struct {
	path   string
	logger *slog.Logger
	mu     sync.Mutex
}

// NewStore returns a store backed by path.
func NewStore(path string, logger *slog.Logger) *Store {
	return &Store{path: path, logger: logging.NewComponentLogger(logger, "settings")}
}

// Load returns the saved settings, or defaults when the file is missing or
// unreadable. An invalid quality falls back to the default tier.
func (s *Store) Load() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := Defaults()
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logging.WarnWithContext(s.logger, "settings unreadable; using defaults", "settings_read_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check permissions on "+s.path),
			)
		}
		return out
	}
	var saved Settings
	if err := json.Unmarshal(data, &saved); err != nil {
		logging.WarnWithContext(s.logger, "settings malformed; using defaults", "settings_corrupt",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "fix or delete "+s.path),
		)
		return out
	}
	if tier, err := models.ParseTier(string(saved.SeparationQuality)); err == nil {
		out.SeparationQuality = tier
	}
	out.IgnoredVersion = saved.IgnoredVersion
	return out
}

// Save validates and atomically writes settings.
func (s *Store) Save(value Settings) error {
	tier, err := models.ParseTier(string(value.SeparationQuality))
	if err != nil {
		return err
	}
	value.SeparationQuality = tier

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := fileutil.WriteJSONAtomic(s.path, value); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// SeparationQuality returns the configured default tier.
func (s *Store) SeparationQuality() models.Tier {
	return s.Load().SeparationQuality
}

// SetSeparationQuality updates only the quality preference.
func (s *Store) SetSeparationQuality(tier models.Tier) (Settings, error) {
	current := s.Load()
	current.SeparationQuality = tier
	if err := s.Save(current); err != nil {
		return Settings{}, err
	}
	return s.Load(), nil
}
