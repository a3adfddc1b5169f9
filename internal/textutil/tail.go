package textutil

import (
	"strings"
	"sync"
)

// TailBuffer keeps the last lines written to it, bounded by both line count
// and total bytes. It is safe for concurrent use.
type TailBuffer struct {
	mu       sync.Mutex
	maxLines int
	maxBytes int
	lines    []string
	size     int
}

// NewTailBuffer returns a buffer retaining at most maxLines lines and maxBytes
// bytes. Non-positive limits fall back to 20 lines and 4 KiB.
func NewTailBuffer(maxLines, maxBytes int) *TailBuffer {
	if maxLines <= 0 {
		maxLines = 20
	}
	if maxBytes <= 0 {
		maxBytes = 4096
	}
	return &TailBuffer{maxLines: maxLines, maxBytes: maxBytes}
}

// Add records one line, evicting the oldest lines once a bound is exceeded.
func (t *TailBuffer) Add(line string) {
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return
	}
	if len(line) > t.maxBytes {
		line = line[len(line)-t.maxBytes:]
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = append(t.lines, line)
	t.size += len(line)
	for len(t.lines) > t.maxLines || t.size > t.maxBytes {
		t.size -= len(t.lines[0])
		t.lines = t.lines[1:]
	}
}

// String joins the retained lines with newlines.
func (t *TailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.Join(t.lines, "\n")
}
