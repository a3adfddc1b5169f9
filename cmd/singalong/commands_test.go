package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"singalong/internal/catalog"
	"singalong/internal/testsupport"
)

func TestLibraryImportListRemove(t *testing.T) {
	env := setupCLITestEnv(t)

	source := filepath.Join(t.TempDir(), "song.mp3")
	testsupport.WriteFile(t, source, 256)
	lyrics := filepath.Join(t.TempDir(), "song.lrc")
	if err := os.WriteFile(lyrics, []byte("[00:01.00]hello\n"), 0o644); err != nil {
		t.Fatalf("write lyrics: %v", err)
	}

	out, _, err := runCLI(t, []string{"library", "import", source, "--title", "Local Song", "--artist", "Someone", "--lyrics-file", lyrics}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("library import: %v", err)
	}
	requireContains(t, out, `Imported "Local Song"`)
	requireContains(t, out, "separable: yes")

	out, _, err = runCLI(t, []string{"library", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("library list: %v", err)
	}
	requireContains(t, out, "Local Song")
	requireContains(t, out, "Someone")

	entries, err := env.daemon.Library(context.Background())
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected one entry, got %d (%v)", len(entries), err)
	}
	if entries[0].LyricsStatus != catalog.LyricsTextOnly {
		t.Fatalf("expected text_only lyrics, got %q", entries[0].LyricsStatus)
	}

	out, _, err = runCLI(t, []string{"library", "list", "--json"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("library list --json: %v", err)
	}
	requireContains(t, out, `"entries"`)
	requireContains(t, out, entries[0].ID)

	out, _, err = runCLI(t, []string{"library", "remove", entries[0].ID}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("library remove: %v", err)
	}
	requireContains(t, out, "Removed "+entries[0].ID)

	out, _, err = runCLI(t, []string{"library", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("library list after remove: %v", err)
	}
	requireContains(t, out, "Library is empty")
}

func TestLibraryImportRequiresTitle(t *testing.T) {
	env := setupCLITestEnv(t)

	source := filepath.Join(t.TempDir(), "song.mp3")
	testsupport.WriteFile(t, source, 64)
	_, _, err := runCLI(t, []string{"library", "import", source}, env.socketPath, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "title failed required") {
		t.Fatalf("expected title validation error, got %v", err)
	}
}

func TestSeparateRejectsAccompaniment(t *testing.T) {
	env := setupCLITestEnv(t)

	source := filepath.Join(t.TempDir(), "karaoke.m4a")
	testsupport.WriteFile(t, source, 64)
	if _, _, err := runCLI(t, []string{"library", "import", source, "--title", "Backing", "--kind", "伴奏"}, env.socketPath, env.configPath); err != nil {
		t.Fatalf("library import: %v", err)
	}
	entries, err := env.daemon.Library(context.Background())
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected one entry, got %d (%v)", len(entries), err)
	}

	if _, _, err := runCLI(t, []string{"separate", "add", entries[0].ID}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected accompaniment entry to be rejected")
	}
	if _, _, err := runCLI(t, []string{"separate", "add", entries[0].ID, "--quality", "ultra"}, env.socketPath, env.configPath); err == nil || !strings.Contains(err.Error(), "quality failed oneof") {
		t.Fatalf("expected quality validation error, got %v", err)
	}

	out, _, err := runCLI(t, []string{"separate", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("separate list: %v", err)
	}
	requireContains(t, out, "No separation jobs")
}

func TestDownloadCommands(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"download", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("download list: %v", err)
	}
	requireContains(t, out, "No download jobs")

	_, _, err = runCLI(t, []string{"download", "add", "https://youtu.be/abc", "--quality", "ultra"}, env.socketPath, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "quality failed oneof") {
		t.Fatalf("expected quality validation error, got %v", err)
	}

	_, _, err = runCLI(t, []string{"download", "add", "https://youtu.be/abc", "--lyrics-file", filepath.Join(t.TempDir(), "missing.lrc")}, env.socketPath, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "read lyrics file") {
		t.Fatalf("expected lyrics file error, got %v", err)
	}
}

func TestSettingsCommands(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"settings", "set-quality", "FAST"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("settings set-quality: %v", err)
	}
	requireContains(t, out, "Separation quality set to fast")

	out, _, err = runCLI(t, []string{"settings", "show"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("settings show: %v", err)
	}
	requireContains(t, out, "Separation quality: fast")

	if _, _, err := runCLI(t, []string{"settings", "set-quality", "ultra"}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected unknown tier to be rejected")
	}
}

func TestModelsList(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"models", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("models list: %v", err)
	}
	for _, tier := range []string{"high", "normal", "fast"} {
		requireContains(t, out, tier)
	}
}

func TestStatusCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "System Status")
	requireContains(t, out, "Running (pid")
	requireContains(t, out, "Dependencies")
	requireContains(t, out, "Queue Status")

	out, _, err = runCLI(t, []string{"status", "--json"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("status --json: %v", err)
	}
	requireContains(t, out, `"running": true`)
}

func TestCommandsRequireDaemon(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg := testsupport.NewConfig(t)
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	_, _, err := runCLI(t, []string{"library", "list"}, cfg.SocketPath(), configPath)
	if err == nil || !strings.Contains(err.Error(), "singalong start") {
		t.Fatalf("expected start hint, got %v", err)
	}

	out, _, err := runCLI(t, []string{"status"}, cfg.SocketPath(), configPath)
	if err != nil {
		t.Fatalf("offline status: %v", err)
	}
	requireContains(t, out, "Not running")
	requireContains(t, out, "No jobs recorded")

	out, _, err = runCLI(t, []string{"stop"}, cfg.SocketPath(), configPath)
	if err != nil {
		t.Fatalf("stop without daemon: %v", err)
	}
	requireContains(t, out, "Daemon is not running")
}
