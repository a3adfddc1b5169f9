package api

import (
	"strings"

	"singalong/internal/acquisition"
	"singalong/internal/catalog"
	"singalong/internal/models"
	"singalong/internal/separation"
	"singalong/internal/services/ytdlp"
	"singalong/internal/settings"
)

// FromDownloadJob converts an acquisition job into its API representation.
func FromDownloadJob(job acquisition.Job) DownloadJob {
	return DownloadJob{
		ID:         job.ID,
		RemoteID:   job.RemoteID,
		Title:      job.Title,
		Artist:     job.Artist,
		Quality:    string(job.Quality),
		Kind:       job.Kind,
		Status:     string(job.Status),
		Progress:   job.Progress,
		Error:      job.Error,
		CatalogID:  job.CatalogID,
		CreatedAt:  formatTime(job.CreatedAt),
		UpdatedAt:  formatTime(job.UpdatedAt),
		HasLyrics:  strings.TrimSpace(job.LyricsText) != "",
		IsTerminal: job.IsTerminal(),
	}
}

// FromDownloadJobs converts a job list, preserving order.
func FromDownloadJobs(jobs []acquisition.Job) []DownloadJob {
	out := make([]DownloadJob, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, FromDownloadJob(job))
	}
	return out
}

// FromSeparationJob converts a separation job into its API representation.
func FromSeparationJob(job separation.Job) SeparationJob {
	return SeparationJob{
		ID:           job.ID,
		CatalogID:    job.CatalogID,
		Quality:      string(job.Quality),
		Status:       string(job.Status),
		Progress:     job.Progress,
		ErrorMessage: job.ErrorMessage,
		CreatedAt:    formatTime(job.CreatedAt),
		UpdatedAt:    formatTime(job.UpdatedAt),
	}
}

// FromSeparationJobs converts a job list, preserving order.
func FromSeparationJobs(jobs []separation.Job) []SeparationJob {
	out := make([]SeparationJob, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, FromSeparationJob(job))
	}
	return out
}

// FromEntry converts a catalog entry. Filesystem paths stay internal.
func FromEntry(entry catalog.Entry) LibraryEntry {
	return LibraryEntry{
		ID:                  entry.ID,
		Title:               entry.Title,
		Artist:              entry.Artist,
		Type:                entry.Type,
		AudioStatus:         entry.AudioStatus,
		LyricsStatus:        entry.LyricsStatus,
		SourceKind:          entry.Source.Kind,
		RemoteID:            entry.Source.RemoteID,
		SeparationQuality:   entry.SeparationQuality,
		LastSeparationError: entry.LastSeparationError,
		DurationSeconds:     entry.DurationSeconds,
		Separable:           entry.IsSeparable(),
		CreatedAt:           formatTime(entry.CreatedAt),
		UpdatedAt:           formatTime(entry.UpdatedAt),
	}
}

// FromEntries converts catalog entries, preserving order.
func FromEntries(entries []catalog.Entry) []LibraryEntry {
	out := make([]LibraryEntry, 0, len(entries))
	for _, entry := range entries {
		out = append(out, FromEntry(entry))
	}
	return out
}

// FromModelStatus converts a cache status.
func FromModelStatus(status models.Status) ModelStatus {
	return ModelStatus{
		Tier:        string(status.Preset.Tier),
		DisplayName: status.Preset.DisplayName,
		Filename:    status.Preset.Filename,
		Available:   status.Available,
		SizeBytes:   status.SizeBytes,
	}
}

// FromModelStatuses converts the cache listing in tier order.
func FromModelStatuses(statuses []models.Status) []ModelStatus {
	out := make([]ModelStatus, 0, len(statuses))
	for _, status := range statuses {
		out = append(out, FromModelStatus(status))
	}
	return out
}

// FromSettings converts persisted preferences.
func FromSettings(value settings.Settings) SettingsResponse {
	return SettingsResponse{
		SeparationQuality: string(value.SeparationQuality),
		IgnoredVersion:    value.IgnoredVersion,
	}
}

// FromMetadata converts a probe result; nil means the reference is unusable.
func FromMetadata(meta *ytdlp.Metadata) ValidateResponse {
	if meta == nil {
		return ValidateResponse{Valid: false}
	}
	return ValidateResponse{
		Valid:    true,
		RemoteID: meta.RemoteID,
		Title:    meta.Title,
		Uploader: meta.Uploader,
		Duration: meta.Duration,
	}
}

// SummarizeDownloads counts acquisition jobs by status.
func SummarizeDownloads(jobs []acquisition.Job) QueueSummary {
	summary := QueueSummary{Counts: make(map[string]int)}
	for _, job := range jobs {
		summary.Counts[string(job.Status)]++
		if job.IsActive() {
			summary.ActiveID = job.ID
		}
	}
	return summary
}

// SummarizeSeparations counts separation jobs by status.
func SummarizeSeparations(jobs []separation.Job) QueueSummary {
	summary := QueueSummary{Counts: make(map[string]int)}
	for _, job := range jobs {
		summary.Counts[string(job.Status)]++
		if job.IsActive() {
			summary.ActiveID = job.ID
		}
	}
	return summary
}
