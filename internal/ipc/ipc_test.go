package ipc_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"singalong/internal/daemon"
	"singalong/internal/ipc"
	"singalong/internal/logging"
	"singalong/internal/models"
	"singalong/internal/testsupport"
)

func TestIPCServerClient(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	cfg.Paths.APIBind = ""
	logger := logging.NewNop()
	d, err := daemon.New(cfg, logger)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		d.Close()
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	if err := d.Start(ctx); err != nil {
		t.Fatalf("daemon start: %v", err)
	}

	socket := cfg.SocketPath()
	srv, err := ipc.NewServer(ctx, socket, d, logger)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC server test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(func() {
		srv.Close()
	})

	client, err := ipc.Dial(socket)
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() {
		client.Close()
	})

	status, err := client.Status()
	if err != nil {
		t.Fatalf("Status RPC failed: %v", err)
	}
	if !status.Running {
		t.Fatal("expected daemon to be running")
	}
	if status.LockFilePath != cfg.LockPath() {
		t.Fatalf("unexpected lock path %q", status.LockFilePath)
	}

	source := filepath.Join(t.TempDir(), "track.m4a")
	testsupport.WriteFile(t, source, 128)
	imported, err := client.LibraryImport(ipc.LibraryImportRequest{SourcePath: source, Title: "Local Track", Type: "伴奏"})
	if err != nil {
		t.Fatalf("LibraryImport failed: %v", err)
	}
	if imported.Entry.ID == "" || imported.Entry.Separable {
		t.Fatalf("unexpected imported entry: %+v", imported.Entry)
	}

	list, err := client.LibraryList()
	if err != nil {
		t.Fatalf("LibraryList failed: %v", err)
	}
	if len(list.Entries) != 1 || list.Entries[0].Title != "Local Track" {
		t.Fatalf("unexpected library: %+v", list.Entries)
	}

	if _, err := client.SeparateAdd(imported.Entry.ID, ""); err == nil {
		t.Fatal("expected accompaniment entry to be rejected for separation")
	}

	if _, err := client.DownloadAdd(ipc.DownloadAddRequest{URL: "https://youtu.be/x", Quality: "ultra"}); err == nil || !strings.Contains(err.Error(), "quality failed oneof") {
		t.Fatalf("expected validation error, got %v", err)
	}

	settings, err := client.SettingsSetQuality("fast")
	if err != nil {
		t.Fatalf("SettingsSetQuality failed: %v", err)
	}
	if settings.SeparationQuality != string(models.TierFast) {
		t.Fatalf("unexpected settings %+v", settings)
	}
	shown, err := client.SettingsShow()
	if err != nil {
		t.Fatalf("SettingsShow failed: %v", err)
	}
	if shown.SeparationQuality != string(models.TierFast) {
		t.Fatalf("expected persisted tier, got %+v", shown)
	}

	modelsResp, err := client.ModelList()
	if err != nil {
		t.Fatalf("ModelList failed: %v", err)
	}
	if len(modelsResp.Models) != len(models.Tiers()) {
		t.Fatalf("expected %d tiers, got %d", len(models.Tiers()), len(modelsResp.Models))
	}

	jobs, err := client.DownloadList()
	if err != nil {
		t.Fatalf("DownloadList failed: %v", err)
	}
	if len(jobs.Jobs) != 0 {
		t.Fatalf("expected no download jobs, got %d", len(jobs.Jobs))
	}

	removed, err := client.LibraryRemove(imported.Entry.ID)
	if err != nil {
		t.Fatalf("LibraryRemove failed: %v", err)
	}
	if !removed.Removed {
		t.Fatal("expected removal to be confirmed")
	}

	done := d.Done()
	stopResp, err := client.Stop()
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if !stopResp.Stopped {
		t.Fatalf("expected Stop to report stopped, got: %#v", stopResp)
	}
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop")
	}
}
