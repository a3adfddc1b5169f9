package ytdlp

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"singalong/internal/services"
)

// Quality selects the audio format yt-dlp downloads.
type Quality string

const (
	QualityBest   Quality = "best"
	QualityHigh   Quality = "high"
	QualityNormal Quality = "normal"
)

// DefaultQuality applies when a request leaves quality empty.
const DefaultQuality = QualityBest

var formatSelectors = map[Quality]string{
	QualityBest:   "bestaudio/best",
	QualityHigh:   "bestaudio[abr<=192]/bestaudio",
	QualityNormal: "bestaudio[abr<=128]/bestaudio",
}

// ParseQuality maps user input to a Quality. Empty input yields DefaultQuality.
func ParseQuality(value string) (Quality, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return DefaultQuality, nil
	}
	q := Quality(value)
	if _, ok := formatSelectors[q]; !ok {
		return "", services.Wrap(services.ErrValidation, "ytdlp", "quality", fmt.Sprintf("unknown download quality %q", value), nil)
	}
	return q, nil
}

// FormatSelector returns the -f argument for q.
func FormatSelector(q Quality) string {
	if sel, ok := formatSelectors[q]; ok {
		return sel
	}
	return formatSelectors[DefaultQuality]
}

var progressPattern = regexp.MustCompile(`\[download\]\s+(\d+(?:\.\d+)?)%`)

// ParseProgress extracts the percentage from a "[download]  42.3% of ..." line.
func ParseProgress(line string) (float64, bool) {
	match := progressPattern.FindStringSubmatch(line)
	if match == nil {
		return 0, false
	}
	value, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, false
	}
	if value > 100 {
		value = 100
	}
	return value, true
}

// CanonicalURL is the watch URL handed to the downloader for remoteID.
func CanonicalURL(remoteID string) string {
	return "https://www.youtube.com/watch?v=" + remoteID
}
