package jobqueue

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Job is implemented by each family's job struct. Methods use value receivers
// and return modified copies so the queue never shares memory with callers.
type Job[T any] interface {
	JobID() string
	IsQueued() bool
	// IsActive reports a non-terminal, non-queued state.
	IsActive() bool
	CreatedTime() time.Time
	Touched(now time.Time) T
	// Interrupted transitions the job to the family's failed state.
	Interrupted(reason string) T
}

// Reasons recorded on jobs the queue fails on the runner's behalf.
const (
	ReasonRestart  = "interrupted by restart"
	ReasonShutdown = "interrupted by shutdown"
	reasonAbandon  = "job runner exited without finishing"
)

// NewID returns "<unix-millis>-<6 hex chars>".
func NewID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return fmt.Sprintf("%d-%s", now.UnixMilli(), suffix)
}
