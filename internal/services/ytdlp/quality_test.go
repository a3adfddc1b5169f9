package ytdlp

import (
	"errors"
	"testing"

	"singalong/internal/services"
)

func TestParseQuality(t *testing.T) {
	tests := []struct {
		in      string
		want    Quality
		wantErr bool
	}{
		{"", QualityBest, false},
		{"HIGH", QualityHigh, false},
		{" normal ", QualityNormal, false},
		{"ultra", "", true},
	}
	for _, tt := range tests {
		got, err := ParseQuality(tt.in)
		if tt.wantErr {
			if !errors.Is(err, services.ErrValidation) {
				t.Fatalf("ParseQuality(%q) expected validation error, got %v", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Fatalf("ParseQuality(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestFormatSelector(t *testing.T) {
	cases := map[Quality]string{
		QualityBest:   "bestaudio/best",
		QualityHigh:   "bestaudio[abr<=192]/bestaudio",
		QualityNormal: "bestaudio[abr<=128]/bestaudio",
		"":            "bestaudio/best",
	}
	for q, want := range cases {
		if got := FormatSelector(q); got != want {
			t.Fatalf("FormatSelector(%q) = %q, want %q", q, got, want)
		}
	}
}

func TestParseProgress(t *testing.T) {
	tests := []struct {
		line string
		want float64
		ok   bool
	}{
		{"[download]  42.3% of 3.10MiB at 1.2MiB/s ETA 00:02", 42.3, true},
		{"[download] 100% of 3.10MiB", 100, true},
		{"[download] Destination: /tmp/Original.webm", 0, false},
		{"[ExtractAudio] Destination: Original.wav", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseProgress(tt.line)
		if ok != tt.ok || got != tt.want {
			t.Fatalf("ParseProgress(%q) = %v, %v; want %v, %v", tt.line, got, ok, tt.want, tt.ok)
		}
	}
}
