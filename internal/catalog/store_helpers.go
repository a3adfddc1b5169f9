package catalog

import (
	"database/sql"
	"strings"
	"time"
)

const entryColumns = "id, title, artist, type, audio_status, lyrics_status, lyrics_raw_path, source_kind, source_remote_id, source_original_path, stored_filename, instrumental_path, vocal_path, separation_quality, last_separation_error, duration_seconds, created_at, updated_at"

// updateAssignments covers every column after id, in entryColumns order.
var updateAssignments = func() string {
	cols := strings.Split(entryColumns, ", ")[1:]
	parts := make([]string, len(cols))
	for i, col := range cols {
		parts[i] = col + " = ?"
	}
	return strings.Join(parts, ", ")
}()

func entryArgs(e Entry) []any {
	return []any{
		e.ID,
		e.Title,
		nullableString(e.Artist),
		e.Type,
		e.AudioStatus,
		e.LyricsStatus,
		nullableString(e.LyricsRawPath),
		e.Source.Kind,
		nullableString(e.Source.RemoteID),
		nullableString(e.Source.OriginalPath),
		e.StoredFilename,
		nullableString(e.InstrumentalPath),
		nullableString(e.VocalPath),
		nullableString(e.SeparationQuality),
		nullableString(e.LastSeparationError),
		nullableFloat(e.DurationSeconds),
		formatTime(e.CreatedAt),
		formatTime(e.UpdatedAt),
	}
}

func scanEntry(scanner interface{ Scan(dest ...any) error }) (*Entry, error) {
	var (
		entry         Entry
		artist        sql.NullString
		lyricsRawPath sql.NullString
		remoteID      sql.NullString
		originalPath  sql.NullString
		instrumental  sql.NullString
		vocal         sql.NullString
		quality       sql.NullString
		separationErr sql.NullString
		duration      sql.NullFloat64
		createdRaw    string
		updatedRaw    string
	)
	if err := scanner.Scan(
		&entry.ID,
		&entry.Title,
		&artist,
		&entry.Type,
		&entry.AudioStatus,
		&entry.LyricsStatus,
		&lyricsRawPath,
		&entry.Source.Kind,
		&remoteID,
		&originalPath,
		&entry.StoredFilename,
		&instrumental,
		&vocal,
		&quality,
		&separationErr,
		&duration,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	entry.Artist = artist.String
	entry.LyricsRawPath = lyricsRawPath.String
	entry.Source.RemoteID = remoteID.String
	entry.Source.OriginalPath = originalPath.String
	entry.InstrumentalPath = instrumental.String
	entry.VocalPath = vocal.String
	entry.SeparationQuality = quality.String
	entry.LastSeparationError = separationErr.String
	entry.DurationSeconds = duration.Float64
	entry.CreatedAt = parseTime(createdRaw)
	entry.UpdatedAt = parseTime(updatedRaw)
	return &entry, nil
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func nullableFloat(value float64) any {
	if value <= 0 {
		return nil
	}
	return value
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(raw string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}
