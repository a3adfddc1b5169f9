package main

import (
	"fmt"
	"io"
	"strings"
	"testing"

	"singalong/internal/api"
	"singalong/internal/daemonctl"
	"singalong/internal/deps"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Singalong", statusError, "Not running", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Singalong:", "[ERROR] Not running")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Singalong", statusOK, "Running", true)
	if !strings.HasPrefix(got, ansiGreen) || !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected green wrapped line, got %q", got)
	}
}

func TestStatusKindFromSeverity(t *testing.T) {
	tests := map[string]statusKind{
		"ok":      statusOK,
		" WARN ":  statusWarn,
		"error":   statusError,
		"info":    statusInfo,
		"unknown": statusInfo,
	}
	for input, want := range tests {
		if got := statusKindFromSeverity(input); got != want {
			t.Fatalf("statusKindFromSeverity(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestDependencyLines(t *testing.T) {
	statuses := []deps.Status{
		{Name: "yt-dlp", Available: false},
		{Name: "ffprobe", Available: true, Path: "/usr/bin/ffprobe"},
		{Name: "python3", Available: false, Optional: true, Detail: "not on PATH"},
	}
	lines := dependencyLines(statuses, daemonctl.BuildDependencySummary(statuses), false)
	if len(lines) != 5 {
		t.Fatalf("expected 5 lines, got %d: %v", len(lines), lines)
	}
	if !strings.Contains(lines[0], "[ERROR]") || !strings.Contains(lines[0], "Summary") {
		t.Fatalf("expected summary line first, got %q", lines[0])
	}
	if !strings.Contains(lines[1], "[ERROR] not available") {
		t.Fatalf("expected error detail, got %q", lines[1])
	}
	if !strings.Contains(lines[2], "[OK] Ready (/usr/bin/ffprobe)") {
		t.Fatalf("expected ready detail, got %q", lines[2])
	}
	if !strings.Contains(lines[3], "[WARN] not on PATH") {
		t.Fatalf("expected warn detail, got %q", lines[3])
	}
	if !strings.Contains(lines[4], "yt-dlp, python3") {
		t.Fatalf("expected missing list, got %q", lines[4])
	}
}

func TestQueueStatusRows(t *testing.T) {
	downloads := api.QueueSummary{Counts: map[string]int{"queued": 2, "failed": 1, "completed": 0}}
	separations := api.QueueSummary{Counts: map[string]int{"processing": 1}}
	rows := queueStatusRows(downloads, separations)
	want := [][]string{
		{"download", "failed", "1"},
		{"download", "queued", "2"},
		{"separation", "processing", "1"},
	}
	if len(rows) != len(want) {
		t.Fatalf("expected %d rows, got %v", len(want), rows)
	}
	for i := range want {
		if strings.Join(rows[i], "|") != strings.Join(want[i], "|") {
			t.Fatalf("row %d = %v, want %v", i, rows[i], want[i])
		}
	}
}

func TestFormatters(t *testing.T) {
	if got := formatSize(512); got != "512 B" {
		t.Fatalf("formatSize(512) = %q", got)
	}
	if got := formatSize(3 * 1024 * 1024); got != "3.0 MiB" {
		t.Fatalf("formatSize(3MiB) = %q", got)
	}
	if got := formatDuration(185.4); got != "3:05" {
		t.Fatalf("formatDuration = %q", got)
	}
	if got := formatDuration(0); got != "-" {
		t.Fatalf("formatDuration(0) = %q", got)
	}
	if got := formatPercent(42.6); got != "43%" {
		t.Fatalf("formatPercent = %q", got)
	}
}

func TestRenderTablePadsShortRows(t *testing.T) {
	out := renderTable([]string{"A", "B"}, [][]string{{"only"}}, []columnAlignment{alignLeft, alignRight})
	if !strings.Contains(out, "only") || !strings.HasSuffix(out, "\n") {
		t.Fatalf("unexpected table output %q", out)
	}
	if renderTable(nil, nil, nil) != "" {
		t.Fatal("expected empty output without headers")
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatalf("expected non-file writer to disable color")
	}
}
