package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"singalong/internal/fileutil"
	"singalong/internal/services"
	"singalong/internal/textutil"
)

// LocalRequest imports an audio file already on disk.
type LocalRequest struct {
	SourcePath string
	Title      string
	Artist     string
	Type       string
	LyricsText string
}

// AddLocal copies the source file into a new song directory as
// "Original<ext>" and registers the entry.
func (s *Store) AddLocal(ctx context.Context, req LocalRequest) (*Entry, error) {
	source := strings.TrimSpace(req.SourcePath)
	title := textutil.CleanTitle(req.Title)
	if source == "" || title == "" {
		return nil, services.Wrap(services.ErrValidation, "catalog", "import", "source path and title are required", nil)
	}
	entryType, err := ParseType(req.Type)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(source)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "catalog", "import", "source file unreadable", err)
	}
	if !info.Mode().IsRegular() {
		return nil, services.Wrap(services.ErrValidation, "catalog", "import", "source is not a regular file", nil)
	}

	id := s.NewID()
	songDir := s.SongDir(id)
	if err := os.MkdirAll(songDir, 0o755); err != nil {
		return nil, fmt.Errorf("create song directory: %w", err)
	}
	ext := filepath.Ext(source)
	if ext == "" {
		ext = ".mp3"
	}
	stored := "Original" + ext
	if err := fileutil.CopyFile(source, filepath.Join(songDir, stored)); err != nil {
		_ = os.RemoveAll(songDir)
		return nil, fmt.Errorf("copy source audio: %w", err)
	}

	lyricsPath, err := WriteRawLyrics(songDir, req.LyricsText)
	if err != nil {
		_ = os.RemoveAll(songDir)
		return nil, err
	}
	lyricsStatus := LyricsNone
	if lyricsPath != "" {
		lyricsStatus = LyricsTextOnly
	}

	entry, err := s.Create(ctx, Entry{
		ID:             id,
		Title:          title,
		Artist:         textutil.CleanTitle(req.Artist),
		Type:           entryType,
		AudioStatus:    AudioOriginalOnly,
		LyricsStatus:   lyricsStatus,
		LyricsRawPath:  lyricsPath,
		Source:         Source{Kind: SourceFile, OriginalPath: source},
		StoredFilename: stored,
	})
	if err != nil {
		_ = os.RemoveAll(songDir)
		return nil, err
	}
	return entry, nil
}

// WriteRawLyrics writes text to the lyrics sidecar in songDir with LF line
// endings. Blank text writes nothing and returns "".
func WriteRawLyrics(songDir, text string) (string, error) {
	text = textutil.NormalizeNewlines(text)
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	path := filepath.Join(songDir, RawLyricsFilename)
	if err := fileutil.WriteAtomic(path, []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("write lyrics: %w", err)
	}
	return path, nil
}

// Playback names the files a player should load for an entry.
type Playback struct {
	Instrumental string `json:"instrumental"`
	Vocal        string `json:"vocal,omitempty"`
}

// PlaybackPaths prefers separated stems for 原曲 entries whose stems exist on
// disk and falls back to the original audio otherwise.
func (s *Store) PlaybackPaths(ctx context.Context, id string) (Playback, error) {
	entry, err := s.Get(ctx, id)
	if err != nil {
		return Playback{}, err
	}
	if entry == nil {
		return Playback{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if entry.IsSeparable() && entry.AudioStatus == AudioSeparated && entry.InstrumentalPath != "" && entry.VocalPath != "" {
		if fileExists(entry.InstrumentalPath) && fileExists(entry.VocalPath) {
			return Playback{Instrumental: entry.InstrumentalPath, Vocal: entry.VocalPath}, nil
		}
	}
	original := s.AudioPath(*entry)
	if !fileExists(original) {
		return Playback{}, fmt.Errorf("%w: audio file missing at %s", ErrNotFound, original)
	}
	return Playback{Instrumental: original}, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
