package daemon_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"singalong/internal/acquisition"
	"singalong/internal/catalog"
	"singalong/internal/daemon"
	"singalong/internal/models"
	"singalong/internal/testsupport"
)

func startDaemon(t *testing.T) *daemon.Daemon {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	d, err := daemon.New(cfg, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		_ = d.Close()
	})
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	return d
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	d, err := daemon.New(cfg, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		_ = d.Close()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status := d.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.LockFilePath != cfg.LockPath() {
		t.Fatalf("unexpected lock path %q", status.LockFilePath)
	}
	if len(status.Models) != len(models.Tiers()) {
		t.Fatalf("expected %d model tiers, got %d", len(models.Tiers()), len(status.Models))
	}

	// Second start should fail
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	other, err := daemon.New(cfg, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	defer other.Close()
	if err := other.Start(ctx); err == nil || !strings.Contains(err.Error(), "already running") {
		t.Fatalf("expected lock contention error, got %v", err)
	}

	done := d.Done()
	d.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Done not closed after Stop")
	}
	if d.Status(ctx).Running {
		t.Fatal("expected daemon to be stopped")
	}

	if err := other.Start(ctx); err != nil {
		t.Fatalf("expected lock to be free after Stop: %v", err)
	}
	other.Stop()
}

func TestDaemonRequiresRunning(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, err := daemon.New(cfg, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	ctx := context.Background()

	if _, err := d.QueueDownload(ctx, acquisition.Request{SourceRef: "https://youtu.be/abc"}); !errors.Is(err, daemon.ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}
	if _, err := d.QueueSeparation(ctx, "x", ""); !errors.Is(err, daemon.ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}
	if jobs := d.Downloads(); len(jobs) != 0 {
		t.Fatalf("expected no jobs, got %d", len(jobs))
	}
	if got := d.Settings().SeparationQuality; got != models.DefaultTier {
		t.Fatalf("expected default tier, got %q", got)
	}
	if d.APIAddress() != "" {
		t.Fatal("api should not listen before Start")
	}
}

func TestDaemonImportAndRemove(t *testing.T) {
	d := startDaemon(t)
	ctx := context.Background()

	var changes atomic.Int32
	unsubscribe := d.SubscribeCatalog(func() { changes.Add(1) })
	defer unsubscribe()

	source := filepath.Join(t.TempDir(), "song.mp3")
	testsupport.WriteFile(t, source, 512)
	entry, err := d.ImportLocal(ctx, catalog.LocalRequest{SourcePath: source, Title: "Imported", LyricsText: "line one"})
	if err != nil {
		t.Fatalf("ImportLocal: %v", err)
	}
	if entry.Type != catalog.TypeOriginal || entry.LyricsStatus != catalog.LyricsTextOnly {
		t.Fatalf("unexpected entry: %+v", entry)
	}

	entries, err := d.Library(ctx)
	if err != nil {
		t.Fatalf("Library: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	playback, err := d.Playback(ctx, entry.ID)
	if err != nil {
		t.Fatalf("Playback: %v", err)
	}
	if filepath.Base(playback.Instrumental) != "Original.mp3" {
		t.Fatalf("expected original audio for unseparated entry, got %q", playback.Instrumental)
	}

	if err := d.RemoveEntry(ctx, entry.ID); err != nil {
		t.Fatalf("RemoveEntry: %v", err)
	}
	if got, _ := d.Entry(ctx, entry.ID); got != nil {
		t.Fatal("entry should be gone")
	}
	if changes.Load() < 2 {
		t.Fatalf("expected catalog notifications for import and removal, got %d", changes.Load())
	}
	if err := d.RemoveEntry(ctx, entry.ID); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDaemonSettings(t *testing.T) {
	d := startDaemon(t)
	updated, err := d.SetSeparationQuality(models.TierHigh)
	if err != nil {
		t.Fatalf("SetSeparationQuality: %v", err)
	}
	if updated.SeparationQuality != models.TierHigh {
		t.Fatalf("unexpected settings %+v", updated)
	}
	if got := d.Settings().SeparationQuality; got != models.TierHigh {
		t.Fatalf("expected persisted tier, got %q", got)
	}
}

func TestDaemonDownloadModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("weights"))
	}))
	defer srv.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	cfg.Tools.ModelMirrorURL = srv.URL
	d, err := daemon.New(cfg, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		_ = d.Close()
	})
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status, err := d.DownloadModel(context.Background(), models.TierFast)
	if err != nil {
		t.Fatalf("DownloadModel: %v", err)
	}
	if status.Preset.Tier != models.TierFast || !status.Available || status.SizeBytes != int64(len("weights")) {
		t.Fatalf("unexpected model status %+v", status)
	}
}

func TestDaemonServesHTTPAPI(t *testing.T) {
	d := startDaemon(t)
	addr := d.APIAddress()
	if addr == "" {
		t.Fatal("expected api listener")
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get("http://" + addr + "/api/status")
	if err != nil {
		t.Fatalf("GET status: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
	if !strings.Contains(string(body), `"running":true`) {
		t.Fatalf("expected running status, got %s", body)
	}

	d.Stop()
	if _, err := client.Get("http://" + addr + "/health"); err == nil {
		t.Fatal("expected api to stop with the daemon")
	}
}
