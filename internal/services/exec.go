package services

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os/exec"
	"sync"
	"time"
)

const (
	// maxLineBytes bounds a single output line; yt-dlp --dump-json emits one
	// large JSON object per line.
	maxLineBytes = 16 << 20
	waitDelay    = 5 * time.Second
)

// Command describes one external process invocation.
type Command struct {
	Binary   string
	Args     []string
	Dir      string
	OnStdout func(line string)
	OnStderr func(line string)
}

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, cmd Command) error
}

// CommandExecutor runs commands with os/exec, forwarding each output line to
// the command's callbacks. Cancelling ctx kills the process.
type CommandExecutor struct{}

func (CommandExecutor) Run(ctx context.Context, c Command) error {
	cmd := exec.CommandContext(ctx, c.Binary, c.Args...) //nolint:gosec
	cmd.Dir = c.Dir
	cmd.WaitDelay = waitDelay
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start command: %w", err)
	}

	var wg sync.WaitGroup
	var scanErr error
	var once sync.Once

	scan := func(r io.Reader, forward func(string)) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
		for scanner.Scan() {
			if forward != nil {
				forward(scanner.Text())
			}
		}
		if err := scanner.Err(); err != nil {
			once.Do(func() {
				scanErr = err
			})
			_, _ = io.Copy(io.Discard, r)
		}
	}

	wg.Add(2)
	go scan(stdout, c.OnStdout)
	go scan(stderr, c.OnStderr)
	wg.Wait()

	waitErr := cmd.Wait()
	if scanErr != nil && waitErr == nil {
		return fmt.Errorf("scan output: %w", scanErr)
	}
	if waitErr != nil {
		return fmt.Errorf("wait command: %w", waitErr)
	}
	return nil
}

// ExitCode extracts the process exit status from an Executor error.
func ExitCode(err error) (int, bool) {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), true
	}
	return 0, false
}

// IsMissingBinary reports whether err means the executable could not be found.
func IsMissingBinary(err error) bool {
	return errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist)
}

// WithTimeout bounds ctx by timeout. A zero timeout leaves ctx unbounded.
func WithTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// ClassifyRunError turns an Executor error into a typed error. Cancellation
// of parent wins over everything else, then the run deadline, then the exit
// status. tail is attached to exit errors.
func ClassifyRunError(parent, runCtx context.Context, tool string, timeout time.Duration, err error, tail string) error {
	if err == nil {
		return nil
	}
	if parent.Err() != nil {
		return fmt.Errorf("%s: %w", tool, parent.Err())
	}
	if timeout > 0 && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return &ToolTimeoutError{Tool: tool, After: timeout}
	}
	if code, ok := ExitCode(err); ok {
		return &ToolExitError{Tool: tool, Code: code, Tail: tail}
	}
	return Wrap(ErrExternalTool, tool, "run", "", err)
}
