package acquisition

import (
	"time"

	"singalong/internal/services/ytdlp"
)

// Status is the lifecycle state of an acquisition job.
type Status string

const (
	StatusQueued      Status = "queued"
	StatusDownloading Status = "downloading"
	StatusProcessing  Status = "processing"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
)

// Job is one persisted acquisition request.
type Job struct {
	ID         string        `json:"id"`
	RemoteID   string        `json:"remoteId"`
	Title      string        `json:"title"`
	Artist     string        `json:"artist,omitempty"`
	Quality    ytdlp.Quality `json:"quality"`
	Kind       string        `json:"kind"`
	LyricsText string        `json:"lyricsText,omitempty"`
	Status     Status        `json:"status"`
	Progress   float64       `json:"progress"`
	Error      string        `json:"error,omitempty"`
	CreatedAt  time.Time     `json:"createdAt"`
	UpdatedAt  time.Time     `json:"updatedAt"`
	CatalogID  string        `json:"catalogId,omitempty"`
}

func (j Job) JobID() string          { return j.ID }
func (j Job) IsQueued() bool         { return j.Status == StatusQueued }
func (j Job) CreatedTime() time.Time { return j.CreatedAt }

// IsActive reports a download or post-processing in progress.
func (j Job) IsActive() bool {
	return j.Status == StatusDownloading || j.Status == StatusProcessing
}

// IsTerminal reports completed or failed jobs.
func (j Job) IsTerminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

func (j Job) Touched(now time.Time) Job {
	j.UpdatedAt = now
	return j
}

func (j Job) Interrupted(reason string) Job {
	j.Status = StatusFailed
	j.Error = reason
	return j
}
