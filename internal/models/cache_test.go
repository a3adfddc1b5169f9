package models_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"singalong/internal/models"
)

func TestDownloadStreamsAndReportsProgress(t *testing.T) {
	payload := bytes.Repeat([]byte("m"), 256*1024)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, "model.onnx", time.Time{}, bytes.NewReader(payload))
	}))
	defer srv.Close()

	dir := filepath.Join(t.TempDir(), "models", "mdx")
	cache := models.NewCache(dir, models.WithURL(models.TierNormal, srv.URL))
	if cache.IsAvailable(models.TierNormal) {
		t.Fatal("model should not be available before download")
	}

	var last float64
	var calls int
	path, err := cache.Download(context.Background(), models.TierNormal, func(p float64) {
		calls++
		last = p
	})
	if err != nil {
		t.Fatalf("Download returned error: %v", err)
	}
	if path != filepath.Join(dir, "UVR-MDX-NET-Inst_HQ_3.onnx") {
		t.Fatalf("unexpected path %q", path)
	}
	if calls == 0 || last != 100 {
		t.Fatalf("expected progress to reach 100, got %v after %d calls", last, calls)
	}
	data, err := os.ReadFile(path)
	if err != nil || !bytes.Equal(data, payload) {
		t.Fatalf("downloaded file mismatch: err=%v len=%d", err, len(data))
	}
	if _, err := os.Stat(path + ".tmp"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("temp file should be gone, stat err=%v", err)
	}
	if !cache.IsAvailable(models.TierNormal) {
		t.Fatal("model should be available after download")
	}
}

func TestDownloadWithoutContentLengthSkipsProgress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		flusher := w.(http.Flusher)
		_, _ = w.Write([]byte("part-one"))
		flusher.Flush()
		_, _ = w.Write([]byte("part-two"))
	}))
	defer srv.Close()

	cache := models.NewCache(t.TempDir(), models.WithURL(models.TierFast, srv.URL))
	called := false
	if _, err := cache.Download(context.Background(), models.TierFast, func(float64) { called = true }); err != nil {
		t.Fatalf("Download returned error: %v", err)
	}
	if called {
		t.Fatal("progress must not be reported without Content-Length")
	}
}

func TestDownloadFailureLeavesNoFiles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	dir := t.TempDir()
	cache := models.NewCache(dir, models.WithURL(models.TierHigh, srv.URL))
	_, err := cache.Download(context.Background(), models.TierHigh, nil)
	if !errors.Is(err, models.ErrUnexpectedStatus) {
		t.Fatalf("expected ErrUnexpectedStatus, got %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("expected empty cache dir, found %d entries", len(entries))
	}
	if cache.IsAvailable(models.TierHigh) {
		t.Fatal("failed download must not be available")
	}
}

func TestTruncatedBodyRemovesTempFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1000")
		_, _ = w.Write([]byte("short"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	cache := models.NewCache(dir, models.WithURL(models.TierFast, srv.URL))
	if _, err := cache.Download(context.Background(), models.TierFast, nil); err == nil {
		t.Fatal("expected error for truncated body")
	}
	if _, err := os.Stat(cache.Path(models.TierFast) + ".tmp"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("temp file should be removed, stat err=%v", err)
	}
}

func TestConcurrentDownloadsAreCoalesced(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		time.Sleep(50 * time.Millisecond)
		_, _ = w.Write([]byte("model-bytes"))
	}))
	defer srv.Close()

	cache := models.NewCache(t.TempDir(), models.WithURL(models.TierNormal, srv.URL))
	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cache.Ensure(context.Background(), models.TierNormal, nil)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("Ensure returned error: %v", err)
		}
	}
	if hits.Load() != 1 {
		t.Fatalf("expected a single download, got %d", hits.Load())
	}
}

func TestEnsureAndListUseExistingFile(t *testing.T) {
	dir := t.TempDir()
	cache := models.NewCache(dir, models.WithURL(models.TierHigh, "http://127.0.0.1:1/unreachable"))
	existing := cache.Path(models.TierHigh)
	if err := os.WriteFile(existing, []byte("ckpt"), 0o644); err != nil {
		t.Fatalf("seed model: %v", err)
	}

	path, err := cache.Ensure(context.Background(), models.TierHigh, nil)
	if err != nil || path != existing {
		t.Fatalf("Ensure = %q, %v; want existing file", path, err)
	}

	statuses := cache.List()
	if len(statuses) != 3 {
		t.Fatalf("expected three tiers, got %d", len(statuses))
	}
	if !statuses[0].Available || statuses[0].SizeBytes != 4 || statuses[0].Preset.Tier != models.TierHigh {
		t.Fatalf("unexpected high tier status: %+v", statuses[0])
	}
	if statuses[1].Available || statuses[2].Available {
		t.Fatalf("other tiers should be absent: %+v", statuses[1:])
	}
}

func TestMirrorServesPresetFilenames(t *testing.T) {
	var requested atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested.Store(r.URL.Path)
		_, _ = w.Write([]byte("model"))
	}))
	defer srv.Close()

	cache := models.NewCache(t.TempDir(), models.WithMirror(srv.URL+"/mdx/"))
	if _, err := cache.Download(context.Background(), models.TierFast, nil); err != nil {
		t.Fatalf("Download returned error: %v", err)
	}
	if got, _ := requested.Load().(string); got != "/mdx/UVR-MDX-NET-Inst_1.onnx" {
		t.Fatalf("unexpected request path %q", got)
	}
}
