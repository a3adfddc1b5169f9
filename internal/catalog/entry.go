package catalog

import (
	"fmt"
	"strings"
	"time"

	"singalong/internal/services"
)

// Entry types.
const (
	TypeOriginal      = "原曲"
	TypeAccompaniment = "伴奏"
)

// Audio statuses.
const (
	AudioOriginalOnly      = "original_only"
	AudioSeparationPending = "separation_pending"
	AudioSeparating        = "separating"
	AudioSeparated         = "separated"
	AudioSeparationFailed  = "separation_failed"
)

// Lyrics statuses.
const (
	LyricsNone     = "none"
	LyricsTextOnly = "text_only"
)

// Source kinds.
const (
	SourceYouTube = "youtube"
	SourceFile    = "file"
)

// RawLyricsFilename is the plain-text lyrics sidecar inside a song directory.
const RawLyricsFilename = "lyrics_raw.txt"

var (
	ErrNotFound    = fmt.Errorf("catalog entry %w", services.ErrNotFound)
	ErrInvalidType = fmt.Errorf("%w: unsupported entry type", services.ErrValidation)
)

// Source records where an entry's audio came from.
type Source struct {
	Kind         string `json:"kind"`
	RemoteID     string `json:"remoteId,omitempty"`
	OriginalPath string `json:"originalPath,omitempty"`
}

// Entry is one song in the catalog.
type Entry struct {
	ID                  string    `json:"id"`
	Title               string    `json:"title"`
	Artist              string    `json:"artist,omitempty"`
	Type                string    `json:"type"`
	AudioStatus         string    `json:"audio_status"`
	LyricsStatus        string    `json:"lyrics_status"`
	LyricsRawPath       string    `json:"lyrics_raw_path,omitempty"`
	Source              Source    `json:"source"`
	StoredFilename      string    `json:"stored_filename"`
	InstrumentalPath    string    `json:"instrumental_path,omitempty"`
	VocalPath           string    `json:"vocal_path,omitempty"`
	SeparationQuality   string    `json:"separation_quality,omitempty"`
	LastSeparationError string    `json:"last_separation_error,omitempty"`
	DurationSeconds     float64   `json:"duration_seconds,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// IsSeparable reports whether the entry can be split into stems.
func (e Entry) IsSeparable() bool {
	return e.Type == TypeOriginal
}

// ParseType validates an entry type; empty means TypeOriginal.
func ParseType(value string) (string, error) {
	switch strings.TrimSpace(value) {
	case "", TypeOriginal:
		return TypeOriginal, nil
	case TypeAccompaniment:
		return TypeAccompaniment, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidType, value)
	}
}

func (e *Entry) normalize() error {
	entryType, err := ParseType(e.Type)
	if err != nil {
		return err
	}
	e.Type = entryType
	switch e.AudioStatus {
	case AudioOriginalOnly, AudioSeparationPending, AudioSeparating, AudioSeparated, AudioSeparationFailed:
	default:
		e.AudioStatus = AudioOriginalOnly
	}
	switch e.LyricsStatus {
	case LyricsNone, LyricsTextOnly:
	default:
		e.LyricsStatus = LyricsNone
	}
	if e.Source.Kind == "" {
		e.Source.Kind = SourceFile
	}
	if e.StoredFilename == "" {
		e.StoredFilename = "Original.wav"
	}
	return nil
}
