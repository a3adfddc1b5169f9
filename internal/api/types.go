package api

import (
	"context"
	"time"

	"singalong/internal/acquisition"
	"singalong/internal/catalog"
	"singalong/internal/deps"
	"singalong/internal/models"
	"singalong/internal/preflight"
	"singalong/internal/separation"
	"singalong/internal/services/ytdlp"
	"singalong/internal/settings"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Service is the daemon surface exposed over HTTP.
type Service interface {
	Status(ctx context.Context) DaemonStatus

	ValidateDownload(ctx context.Context, ref string) (*ytdlp.Metadata, error)
	QueueDownload(ctx context.Context, req acquisition.Request) (acquisition.Job, error)
	Downloads() []acquisition.Job
	Download(id string) (acquisition.Job, bool)

	QueueSeparation(ctx context.Context, catalogID, quality string) (separation.Job, error)
	Separations() []separation.Job
	Separation(id string) (separation.Job, bool)

	Library(ctx context.Context) ([]catalog.Entry, error)
	Entry(ctx context.Context, id string) (*catalog.Entry, error)
	Playback(ctx context.Context, id string) (catalog.Playback, error)
	RemoveEntry(ctx context.Context, id string) error
	ImportLocal(ctx context.Context, req catalog.LocalRequest) (*catalog.Entry, error)

	Models() []models.Status
	DownloadModel(ctx context.Context, tier models.Tier) (models.Status, error)

	Settings() settings.Settings
	SetSeparationQuality(tier models.Tier) (settings.Settings, error)

	SubscribeDownloads(fn func([]acquisition.Job)) func()
	SubscribeSeparations(fn func([]separation.Job)) func()
	SubscribeCatalog(fn func()) func()
}

// DownloadJob describes an acquisition job.
type DownloadJob struct {
	ID         string  `json:"id"`
	RemoteID   string  `json:"remoteId"`
	Title      string  `json:"title"`
	Artist     string  `json:"artist,omitempty"`
	Quality    string  `json:"quality"`
	Kind       string  `json:"kind"`
	Status     string  `json:"status"`
	Progress   float64 `json:"progress"`
	Error      string  `json:"error,omitempty"`
	CatalogID  string  `json:"catalogId,omitempty"`
	CreatedAt  string  `json:"createdAt,omitempty"`
	UpdatedAt  string  `json:"updatedAt,omitempty"`
	HasLyrics  bool    `json:"hasLyrics"`
	IsTerminal bool    `json:"isTerminal"`
}

// SeparationJob describes a stem separation job.
type SeparationJob struct {
	ID           string  `json:"id"`
	CatalogID    string  `json:"catalogId"`
	Quality      string  `json:"quality"`
	Status       string  `json:"status"`
	Progress     float64 `json:"progress"`
	ErrorMessage string  `json:"errorMessage,omitempty"`
	CreatedAt    string  `json:"createdAt,omitempty"`
	UpdatedAt    string  `json:"updatedAt,omitempty"`
}

// LibraryEntry describes one catalog song.
type LibraryEntry struct {
	ID                  string  `json:"id"`
	Title               string  `json:"title"`
	Artist              string  `json:"artist,omitempty"`
	Type                string  `json:"type"`
	AudioStatus         string  `json:"audioStatus"`
	LyricsStatus        string  `json:"lyricsStatus"`
	SourceKind          string  `json:"sourceKind"`
	RemoteID            string  `json:"remoteId,omitempty"`
	SeparationQuality   string  `json:"separationQuality,omitempty"`
	LastSeparationError string  `json:"lastSeparationError,omitempty"`
	DurationSeconds     float64 `json:"durationSeconds,omitempty"`
	Separable           bool    `json:"separable"`
	CreatedAt           string  `json:"createdAt,omitempty"`
	UpdatedAt           string  `json:"updatedAt,omitempty"`
}

// ModelStatus describes a cached separation model tier.
type ModelStatus struct {
	Tier        string `json:"tier"`
	DisplayName string `json:"displayName"`
	Filename    string `json:"filename"`
	Available   bool   `json:"available"`
	SizeBytes   int64  `json:"sizeBytes"`
}

// QueueSummary counts one family's jobs by status.
type QueueSummary struct {
	Counts   map[string]int `json:"counts"`
	ActiveID string         `json:"activeId,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	LockFilePath string             `json:"lockFilePath"`
	DataDir      string             `json:"dataDir"`
	CatalogPath  string             `json:"catalogPath"`
	Downloads    QueueSummary       `json:"downloads"`
	Separations  QueueSummary       `json:"separations"`
	Models       []ModelStatus      `json:"models"`
	Dependencies []deps.Status      `json:"dependencies"`
	Checks       []preflight.Result `json:"checks"`
}

// ValidateRequest asks whether a reference can be downloaded.
type ValidateRequest struct {
	URL string `json:"url" validate:"required,max=2048"`
}

// ValidateResponse reports probe metadata, or Valid=false.
type ValidateResponse struct {
	Valid    bool    `json:"valid"`
	RemoteID string  `json:"remoteId,omitempty"`
	Title    string  `json:"title,omitempty"`
	Uploader string  `json:"uploader,omitempty"`
	Duration float64 `json:"duration,omitempty"`
}

// DownloadRequest queues an acquisition job.
type DownloadRequest struct {
	URL        string `json:"url" validate:"required,max=2048"`
	Quality    string `json:"quality" validate:"omitempty,oneof=best high normal"`
	Title      string `json:"title" validate:"max=200"`
	Artist     string `json:"artist" validate:"max=200"`
	Kind       string `json:"kind" validate:"omitempty,oneof=原曲 伴奏"`
	LyricsText string `json:"lyricsText" validate:"max=65536"`
}

// SeparationRequest queues a separation job.
type SeparationRequest struct {
	CatalogID string `json:"catalogId" validate:"required"`
	Quality   string `json:"quality" validate:"omitempty,oneof=high normal fast"`
}

// ImportRequest registers a local audio file.
type ImportRequest struct {
	SourcePath string `json:"sourcePath" validate:"required"`
	Title      string `json:"title" validate:"required,max=200"`
	Artist     string `json:"artist" validate:"max=200"`
	Type       string `json:"type" validate:"omitempty,oneof=原曲 伴奏"`
	LyricsText string `json:"lyricsText" validate:"max=65536"`
}

// QualityRequest changes the default separation tier.
type QualityRequest struct {
	Quality string `json:"quality" validate:"required,oneof=high normal fast"`
}

// SettingsResponse mirrors persisted preferences.
type SettingsResponse struct {
	SeparationQuality string `json:"separationQuality"`
	IgnoredVersion    string `json:"ignoredVersion,omitempty"`
}

// PlaybackResponse names the files a player should load.
type PlaybackResponse struct {
	Instrumental string `json:"instrumental"`
	Vocal        string `json:"vocal,omitempty"`
}

// DownloadListResponse wraps acquisition jobs.
type DownloadListResponse struct {
	Jobs []DownloadJob `json:"jobs"`
}

// SeparationListResponse wraps separation jobs.
type SeparationListResponse struct {
	Jobs []SeparationJob `json:"jobs"`
}

// LibraryResponse wraps catalog entries.
type LibraryResponse struct {
	Entries []LibraryEntry `json:"entries"`
}

// ModelListResponse wraps model tiers.
type ModelListResponse struct {
	Models []ModelStatus `json:"models"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
