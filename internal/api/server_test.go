package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"singalong/internal/acquisition"
	"singalong/internal/catalog"
	"singalong/internal/models"
	"singalong/internal/separation"
	"singalong/internal/services"
	"singalong/internal/services/ytdlp"
	"singalong/internal/settings"
)

type fakeService struct {
	downloads   []acquisition.Job
	separations []separation.Job
	entries     []catalog.Entry
	queueErr    error
	removeErr   error
	lastRequest acquisition.Request
	lastSep     [2]string
	removed     string
	quality     models.Tier
}

func (f *fakeService) Status(context.Context) DaemonStatus {
	return DaemonStatus{Running: true, PID: 42, Downloads: SummarizeDownloads(f.downloads)}
}

func (f *fakeService) ValidateDownload(_ context.Context, ref string) (*ytdlp.Metadata, error) {
	if strings.Contains(ref, "bad") {
		return nil, nil
	}
	return &ytdlp.Metadata{RemoteID: "abc123", Title: "Song"}, nil
}

func (f *fakeService) QueueDownload(_ context.Context, req acquisition.Request) (acquisition.Job, error) {
	f.lastRequest = req
	if f.queueErr != nil {
		return acquisition.Job{}, f.queueErr
	}
	return acquisition.Job{ID: "job-1", RemoteID: "abc123", Title: "Song", Status: acquisition.StatusQueued}, nil
}

func (f *fakeService) Downloads() []acquisition.Job { return f.downloads }

func (f *fakeService) Download(id string) (acquisition.Job, bool) {
	for _, job := range f.downloads {
		if job.ID == id {
			return job, true
		}
	}
	return acquisition.Job{}, false
}

func (f *fakeService) QueueSeparation(_ context.Context, catalogID, quality string) (separation.Job, error) {
	f.lastSep = [2]string{catalogID, quality}
	if f.queueErr != nil {
		return separation.Job{}, f.queueErr
	}
	return separation.Job{ID: "sep-1", CatalogID: catalogID, Quality: models.TierNormal, Status: separation.StatusQueued}, nil
}

func (f *fakeService) Separations() []separation.Job { return f.separations }

func (f *fakeService) Separation(id string) (separation.Job, bool) {
	for _, job := range f.separations {
		if job.ID == id {
			return job, true
		}
	}
	return separation.Job{}, false
}

func (f *fakeService) Library(context.Context) ([]catalog.Entry, error) { return f.entries, nil }

func (f *fakeService) Entry(_ context.Context, id string) (*catalog.Entry, error) {
	for _, entry := range f.entries {
		if entry.ID == id {
			return &entry, nil
		}
	}
	return nil, nil
}

func (f *fakeService) Playback(_ context.Context, id string) (catalog.Playback, error) {
	return catalog.Playback{}, fmt.Errorf("%w: %s", catalog.ErrNotFound, id)
}

func (f *fakeService) RemoveEntry(_ context.Context, id string) error {
	f.removed = id
	return f.removeErr
}

func (f *fakeService) ImportLocal(_ context.Context, req catalog.LocalRequest) (*catalog.Entry, error) {
	return &catalog.Entry{ID: "new", Title: req.Title, Type: catalog.TypeOriginal}, nil
}

func (f *fakeService) Models() []models.Status { return nil }

func (f *fakeService) DownloadModel(_ context.Context, tier models.Tier) (models.Status, error) {
	preset, _ := models.Lookup(tier)
	return models.Status{Preset: preset, Available: true}, nil
}

func (f *fakeService) Settings() settings.Settings { return settings.Defaults() }

func (f *fakeService) SetSeparationQuality(tier models.Tier) (settings.Settings, error) {
	f.quality = tier
	return settings.Settings{SeparationQuality: tier}, nil
}

func (f *fakeService) SubscribeDownloads(fn func([]acquisition.Job)) func() {
	fn(f.downloads)
	return func() {}
}

func (f *fakeService) SubscribeSeparations(fn func([]separation.Job)) func() {
	fn(f.separations)
	return func() {}
}

func (f *fakeService) SubscribeCatalog(func()) func() { return func() {} }

func doRequest(t *testing.T, srv *Server, method, target, body string, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := srv.App().Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, target, err)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	_ = resp.Body.Close()
	return resp, data
}

func decodeError(t *testing.T, data []byte) ErrorDetail {
	t.Helper()
	var payload ErrorResponse
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("decode error body %q: %v", data, err)
	}
	return payload.Error
}

func TestBearerAuth(t *testing.T) {
	srv := New(&fakeService{}, Options{Token: "secret"})

	resp, data := doRequest(t, srv, http.MethodGet, "/api/status", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	if detail := decodeError(t, data); detail.Code != CodeUnauthorized {
		t.Fatalf("unexpected error code %q", detail.Code)
	}

	resp, _ = doRequest(t, srv, http.MethodGet, "/api/status", "", map[string]string{"Authorization": "Bearer wrong"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong token, got %d", resp.StatusCode)
	}

	resp, data = doRequest(t, srv, http.MethodGet, "/api/status", "", map[string]string{"Authorization": "Bearer secret"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var status DaemonStatus
	if err := json.Unmarshal(data, &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !status.Running || status.PID != 42 {
		t.Fatalf("unexpected status payload: %+v", status)
	}

	resp, _ = doRequest(t, srv, http.MethodGet, "/health", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health should not require auth, got %d", resp.StatusCode)
	}
}

func TestEmptyTokenDisablesAuth(t *testing.T) {
	srv := New(&fakeService{}, Options{})
	resp, _ := doRequest(t, srv, http.MethodGet, "/api/status", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 without token, got %d", resp.StatusCode)
	}
}

func TestQueueDownloadValidation(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
		tag   string
	}{
		{"missing url", `{"quality":"best"}`, "URL", "required"},
		{"bad quality", `{"url":"https://youtu.be/abc","quality":"ultra"}`, "Quality", "oneof"},
		{"bad kind", `{"url":"https://youtu.be/abc","kind":"remix"}`, "Kind", "oneof"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{}
			srv := New(svc, Options{})
			resp, data := doRequest(t, srv, http.MethodPost, "/api/downloads", tt.body, nil)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", resp.StatusCode)
			}
			detail := decodeError(t, data)
			if detail.Code != CodeValidationError {
				t.Fatalf("unexpected code %q", detail.Code)
			}
			if detail.Details[tt.field] != tt.tag {
				t.Fatalf("expected %s=%s in details, got %v", tt.field, tt.tag, detail.Details)
			}
			if svc.lastRequest.SourceRef != "" {
				t.Fatal("service must not be called for invalid requests")
			}
		})
	}

	srv := New(&fakeService{}, Options{})
	resp, _ := doRequest(t, srv, http.MethodPost, "/api/downloads", `{not json`, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", resp.StatusCode)
	}
}

func TestQueueDownloadAccepted(t *testing.T) {
	svc := &fakeService{}
	srv := New(svc, Options{})
	body := `{"url":"https://youtu.be/abc123","quality":"high","title":"Custom","kind":"伴奏","lyricsText":"la la"}`
	resp, data := doRequest(t, srv, http.MethodPost, "/api/downloads", body, nil)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", resp.StatusCode, data)
	}
	var job DownloadJob
	if err := json.Unmarshal(data, &job); err != nil {
		t.Fatalf("decode job: %v", err)
	}
	if job.ID != "job-1" || job.Status != string(acquisition.StatusQueued) {
		t.Fatalf("unexpected job: %+v", job)
	}
	want := acquisition.Request{SourceRef: "https://youtu.be/abc123", Quality: "high", Title: "Custom", Kind: catalog.TypeAccompaniment, LyricsText: "la la"}
	if svc.lastRequest != want {
		t.Fatalf("unexpected request forwarded: %+v", svc.lastRequest)
	}
}

func TestServiceErrorsMapToStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
		code string
	}{
		{"duplicate", acquisition.ErrDuplicateJob, http.StatusConflict, CodeConflict},
		{"validation", acquisition.ErrInvalidReference, http.StatusBadRequest, CodeValidationError},
		{"missing binary", ytdlp.ErrBinaryMissing, http.StatusServiceUnavailable, CodeUnavailable},
		{"timeout", &services.ToolTimeoutError{Tool: "yt-dlp", After: time.Minute}, http.StatusGatewayTimeout, CodeTimeout},
		{"not found", fmt.Errorf("%w: x", catalog.ErrNotFound), http.StatusNotFound, CodeNotFound},
		{"unclassified", errors.New("boom"), http.StatusInternalServerError, CodeServiceError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := New(&fakeService{queueErr: tt.err}, Options{})
			resp, data := doRequest(t, srv, http.MethodPost, "/api/downloads", `{"url":"https://youtu.be/abc"}`, nil)
			if resp.StatusCode != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, resp.StatusCode)
			}
			if detail := decodeError(t, data); detail.Code != tt.code {
				t.Fatalf("expected code %s, got %s", tt.code, detail.Code)
			}
		})
	}
}

func TestValidateDownload(t *testing.T) {
	srv := New(&fakeService{}, Options{})
	resp, data := doRequest(t, srv, http.MethodPost, "/api/downloads/validate", `{"url":"https://youtu.be/abc123"}`, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var out ValidateResponse
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !out.Valid || out.RemoteID != "abc123" {
		t.Fatalf("unexpected validate response: %+v", out)
	}

	_, data = doRequest(t, srv, http.MethodPost, "/api/downloads/validate", `{"url":"https://example.com/bad"}`, nil)
	out = ValidateResponse{}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Valid {
		t.Fatal("expected unusable reference to report valid=false")
	}
}

func TestJobLookups(t *testing.T) {
	svc := &fakeService{
		downloads:   []acquisition.Job{{ID: "d1", Status: acquisition.StatusDownloading, Progress: 40}},
		separations: []separation.Job{{ID: "s1", CatalogID: "c1", Status: separation.StatusRunning}},
	}
	srv := New(svc, Options{})

	resp, data := doRequest(t, srv, http.MethodGet, "/api/downloads", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list downloads: %d", resp.StatusCode)
	}
	var list DownloadListResponse
	if err := json.Unmarshal(data, &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Jobs) != 1 || list.Jobs[0].Progress != 40 {
		t.Fatalf("unexpected list: %+v", list)
	}

	if resp, _ := doRequest(t, srv, http.MethodGet, "/api/downloads/d1", "", nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("get download: %d", resp.StatusCode)
	}
	if resp, _ := doRequest(t, srv, http.MethodGet, "/api/downloads/missing", "", nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown download, got %d", resp.StatusCode)
	}
	if resp, _ := doRequest(t, srv, http.MethodGet, "/api/separations/s1", "", nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("get separation: %d", resp.StatusCode)
	}
	if resp, _ := doRequest(t, srv, http.MethodGet, "/api/separations/nope", "", nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown separation, got %d", resp.StatusCode)
	}
}

func TestQueueSeparation(t *testing.T) {
	svc := &fakeService{}
	srv := New(svc, Options{})
	resp, _ := doRequest(t, srv, http.MethodPost, "/api/separations", `{"catalogId":"c1","quality":"fast"}`, nil)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	if svc.lastSep != [2]string{"c1", "fast"} {
		t.Fatalf("unexpected forwarded args: %v", svc.lastSep)
	}

	resp, _ = doRequest(t, srv, http.MethodPost, "/api/separations", `{"catalogId":"c1","quality":"ultra"}`, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown tier, got %d", resp.StatusCode)
	}
}

func TestLibraryRoutes(t *testing.T) {
	svc := &fakeService{entries: []catalog.Entry{{ID: "e1", Title: "Song", Type: catalog.TypeOriginal, AudioStatus: catalog.AudioOriginalOnly}}}
	srv := New(svc, Options{})

	resp, data := doRequest(t, srv, http.MethodGet, "/api/library", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list library: %d", resp.StatusCode)
	}
	var lib LibraryResponse
	if err := json.Unmarshal(data, &lib); err != nil {
		t.Fatalf("decode library: %v", err)
	}
	if len(lib.Entries) != 1 || !lib.Entries[0].Separable {
		t.Fatalf("unexpected library: %+v", lib)
	}

	if resp, _ := doRequest(t, srv, http.MethodGet, "/api/library/zzz", "", nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown entry, got %d", resp.StatusCode)
	}
	if resp, _ := doRequest(t, srv, http.MethodGet, "/api/library/e1/playback", "", nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected playback not found to map to 404, got %d", resp.StatusCode)
	}

	resp, _ = doRequest(t, srv, http.MethodDelete, "/api/library/e1", "", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	if svc.removed != "e1" {
		t.Fatalf("expected e1 removed, got %q", svc.removed)
	}

	resp, _ = doRequest(t, srv, http.MethodPost, "/api/library/import", `{"sourcePath":"/tmp/a.mp3"}`, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for import without title, got %d", resp.StatusCode)
	}
	resp, _ = doRequest(t, srv, http.MethodPost, "/api/library/import", `{"sourcePath":"/tmp/a.mp3","title":"A"}`, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
}

func TestModelsAndSettings(t *testing.T) {
	svc := &fakeService{}
	srv := New(svc, Options{})

	if resp, _ := doRequest(t, srv, http.MethodPost, "/api/models/ultra/download", "", nil); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown tier, got %d", resp.StatusCode)
	}
	resp, data := doRequest(t, srv, http.MethodPost, "/api/models/fast/download", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var model ModelStatus
	if err := json.Unmarshal(data, &model); err != nil {
		t.Fatalf("decode model: %v", err)
	}
	if model.Tier != string(models.TierFast) || !model.Available {
		t.Fatalf("unexpected model status: %+v", model)
	}

	resp, data = doRequest(t, srv, http.MethodPut, "/api/settings/quality", `{"quality":"high"}`, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var out SettingsResponse
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("decode settings: %v", err)
	}
	if out.SeparationQuality != "high" || svc.quality != models.TierHigh {
		t.Fatalf("unexpected settings update: %+v (svc %q)", out, svc.quality)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := New(&fakeService{}, Options{Token: "secret"})
	resp, data := doRequest(t, srv, http.MethodGet, "/metrics", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(string(data), "go_goroutines") {
		t.Fatalf("expected prometheus exposition, got %q", data)
	}
}

func TestWebsocketRouteRequiresUpgrade(t *testing.T) {
	srv := New(&fakeService{}, Options{})
	resp, _ := doRequest(t, srv, http.MethodGet, "/ws/events", "", nil)
	if resp.StatusCode != http.StatusUpgradeRequired {
		t.Fatalf("expected 426, got %d", resp.StatusCode)
	}
}
