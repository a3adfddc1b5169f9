package ipc

import "singalong/internal/api"

// Wire types are shared with the HTTP API so both surfaces stay in step.
type (
	DownloadJob   = api.DownloadJob
	SeparationJob = api.SeparationJob
	LibraryEntry  = api.LibraryEntry
	ModelStatus   = api.ModelStatus
)

// StopRequest stops the daemon.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse represents combined daemon, queue and dependency status.
type StatusResponse = api.DaemonStatus

// DownloadValidateRequest probes a reference without queueing it.
type DownloadValidateRequest = api.ValidateRequest

// DownloadValidateResponse reports probe metadata.
type DownloadValidateResponse = api.ValidateResponse

// DownloadAddRequest queues an acquisition job.
type DownloadAddRequest = api.DownloadRequest

// DownloadAddResponse returns the created or existing job.
type DownloadAddResponse struct {
	Job DownloadJob `json:"job"`
}

// DownloadListRequest lists acquisition jobs.
type DownloadListRequest struct{}

// DownloadListResponse contains acquisition jobs, newest first.
type DownloadListResponse = api.DownloadListResponse

// SeparateAddRequest queues a separation job.
type SeparateAddRequest = api.SeparationRequest

// SeparateAddResponse returns the created or existing job.
type SeparateAddResponse struct {
	Job SeparationJob `json:"job"`
}

// SeparateListRequest lists separation jobs.
type SeparateListRequest struct{}

// SeparateListResponse contains separation jobs, newest first.
type SeparateListResponse = api.SeparationListResponse

// LibraryListRequest lists catalog entries.
type LibraryListRequest struct{}

// LibraryListResponse contains catalog entries.
type LibraryListResponse = api.LibraryResponse

// LibraryRemoveRequest deletes one entry.
type LibraryRemoveRequest struct {
	ID string `json:"id" validate:"required"`
}

// LibraryRemoveResponse confirms a deletion.
type LibraryRemoveResponse struct {
	Removed bool `json:"removed"`
}

// LibraryImportRequest registers a local audio file.
type LibraryImportRequest = api.ImportRequest

// LibraryImportResponse returns the new entry.
type LibraryImportResponse struct {
	Entry LibraryEntry `json:"entry"`
}

// ModelListRequest lists model tiers.
type ModelListRequest struct{}

// ModelListResponse contains every tier.
type ModelListResponse = api.ModelListResponse

// ModelDownloadRequest fetches one tier.
type ModelDownloadRequest struct {
	Tier string `json:"tier" validate:"required,oneof=high normal fast"`
}

// ModelDownloadResponse reports the cached model.
type ModelDownloadResponse struct {
	Model ModelStatus `json:"model"`
}

// SettingsShowRequest reads preferences.
type SettingsShowRequest struct{}

// SettingsResponse mirrors persisted preferences.
type SettingsResponse = api.SettingsResponse

// SettingsSetQualityRequest changes the default separation tier.
type SettingsSetQualityRequest = api.QualityRequest
