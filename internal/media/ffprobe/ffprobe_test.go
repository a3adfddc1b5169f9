package ffprobe

import (
	"context"
	"math"
	"testing"

	"singalong/internal/testsupport"
)

func TestResultHelpers(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{CodecType: "audio", SampleRate: "44100", Duration: "10.5"},
			{CodecType: "audio"},
		},
		Format: Format{Duration: "123.45"},
	}
	if result.AudioStreamCount() != 2 {
		t.Fatalf("expected 2 audio streams, got %d", result.AudioStreamCount())
	}
	if result.DurationSeconds() != 123.45 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
	if result.SampleRate() != 44100 {
		t.Fatalf("unexpected sample rate: %d", result.SampleRate())
	}

	result.Format.Duration = ""
	if result.DurationSeconds() != 10.5 {
		t.Fatalf("expected stream duration fallback, got %v", result.DurationSeconds())
	}
}

func TestResultHelpersHandleInvalidNumbers(t *testing.T) {
	result := Result{
		Streams: []Stream{{CodecType: "audio", SampleRate: "nope"}},
		Format:  Format{Duration: "bad"},
	}
	if !math.IsNaN(result.DurationSeconds()) {
		t.Fatalf("expected duration NaN, got %v", result.DurationSeconds())
	}
	if result.SampleRate() != 0 {
		t.Fatalf("expected sample rate 0, got %d", result.SampleRate())
	}
}

func TestDurationRunsBinary(t *testing.T) {
	dir := t.TempDir()
	ok := testsupport.WriteScript(t, dir, "ffprobe-ok", `echo '{"streams":[{"codec_type":"audio"}],"format":{"duration":"215.3"}}'`+"\n")
	seconds, err := Duration(context.Background(), ok, "/tmp/song.wav")
	if err != nil || seconds != 215.3 {
		t.Fatalf("Duration = %v, %v", seconds, err)
	}

	failing := testsupport.WriteScript(t, dir, "ffprobe-bad", "echo 'bad input' >&2\nexit 1\n")
	if _, err := Duration(context.Background(), failing, "/tmp/song.wav"); err == nil {
		t.Fatal("expected error from failing ffprobe")
	}

	empty := testsupport.WriteScript(t, dir, "ffprobe-empty", `echo '{"streams":[],"format":{}}'`+"\n")
	if _, err := Duration(context.Background(), empty, "/tmp/song.wav"); err == nil {
		t.Fatal("expected error when no duration is reported")
	}
}
