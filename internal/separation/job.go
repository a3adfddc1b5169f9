package separation

import (
	"time"

	"singalong/internal/models"
)

// Status is the lifecycle state of a separation job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Job is one persisted separation request.
type Job struct {
	ID           string      `json:"id"`
	CatalogID    string      `json:"catalogId"`
	Quality      models.Tier `json:"quality"`
	Status       Status      `json:"status"`
	Progress     float64     `json:"progress"`
	ErrorMessage string      `json:"errorMessage,omitempty"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

func (j Job) JobID() string          { return j.ID }
func (j Job) IsQueued() bool         { return j.Status == StatusQueued }
func (j Job) IsActive() bool         { return j.Status == StatusRunning }
func (j Job) CreatedTime() time.Time { return j.CreatedAt }

func (j Job) Touched(now time.Time) Job {
	j.UpdatedAt = now
	return j
}

func (j Job) Interrupted(reason string) Job {
	j.Status = StatusFailed
	j.ErrorMessage = reason
	return j
}
