package separator

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"singalong/internal/config"
	"singalong/internal/logging"
	"singalong/internal/models"
	"singalong/internal/services"
	"singalong/internal/textutil"
)

const toolName = "separator"

// Request describes one separation run.
type Request struct {
	Input     string
	OutputDir string
	Quality   models.Tier
	ModelFile string
	CacheDir  string
}

// Result names the stems produced by a successful run.
type Result struct {
	Instrumental string
	Vocal        string
}

// ReportedError is an error the separator printed on stdout.
type ReportedError struct {
	Message string
	Tail    string
}

func (e *ReportedError) Error() string {
	if e.Tail == "" {
		return e.Message
	}
	return e.Message + "\n" + e.Tail
}

// Is classifies the error as services.ErrExternalTool.
func (e *ReportedError) Is(target error) bool {
	return target == services.ErrExternalTool
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec services.Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTimeout bounds each run. Zero disables the limit.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// Client spawns the separator program through the configured interpreter.
type Client struct {
	python  string
	script  string
	timeout time.Duration
	exec    services.Executor
	logger  *slog.Logger
}

// New constructs a separator client.
func New(python, script string, opts ...Option) *Client {
	c := &Client{
		python: strings.TrimSpace(python),
		script: strings.TrimSpace(script),
		exec:   services.CommandExecutor{},
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.NewComponentLogger(c.logger, "separator")
	return c
}

// NewFromConfig wires interpreter, script and timeout from cfg.
func NewFromConfig(cfg *config.Config, opts ...Option) *Client {
	base := []Option{WithTimeout(cfg.SeparationTimeout())}
	return New(cfg.Tools.PythonBinary, cfg.Tools.SeparatorScript, append(base, opts...)...)
}

// Args builds the separator command line, excluding the interpreter.
func (c *Client) Args(req Request) []string {
	return []string{
		c.script,
		"--input", req.Input,
		"--output-dir", req.OutputDir,
		"--quality", string(req.Quality),
		"--model", req.ModelFile,
		"--cache-dir", req.CacheDir,
	}
}

// Run executes one separation. Success requires a zero exit and a success
// message naming both stems. The first reported error stops the process and
// wins over the exit status when describing a failure.
func (c *Client) Run(ctx context.Context, req Request, onProgress func(percent float64)) (*Result, error) {
	if c.python == "" || c.script == "" {
		return nil, services.Wrap(services.ErrConfiguration, toolName, "run", "python binary and separator script are required", nil)
	}
	logger := logging.WithContext(ctx, c.logger)

	runCtx, cancel := services.WithTimeout(ctx, c.timeout)
	defer cancel()

	var (
		mu       sync.Mutex
		result   *Result
		reported string
	)
	tail := textutil.NewTailBuffer(0, 0)
	runErr := c.exec.Run(runCtx, services.Command{
		Binary: c.python,
		Args:   c.Args(req),
		OnStdout: func(line string) {
			msg, ok := ParseLine(line)
			if !ok {
				return
			}
			switch {
			case msg.IsError():
				mu.Lock()
				first := reported == ""
				if first {
					reported = msg.ErrorText()
				}
				mu.Unlock()
				if first {
					// The script is done once it reports an error; stop it.
					cancel()
				}
			case msg.Status == StatusProgress && msg.Progress != nil:
				if onProgress != nil {
					onProgress(clampPercent(*msg.Progress))
				}
			case msg.Status == StatusStarting:
				logger.Info("separator started",
					logging.String(logging.FieldEventType, "separator_starting"),
					logging.String("detail", msg.Message),
				)
			case msg.Status == StatusSuccess:
				if msg.Instrumental == "" || msg.Vocal == "" {
					return
				}
				mu.Lock()
				result = &Result{Instrumental: msg.Instrumental, Vocal: msg.Vocal}
				mu.Unlock()
			}
		},
		OnStderr: tail.Add,
	})

	mu.Lock()
	defer mu.Unlock()
	if runErr == nil && result != nil {
		return result, nil
	}
	if runErr != nil {
		if services.IsMissingBinary(runErr) {
			return nil, services.Wrap(services.ErrConfiguration, toolName, "run", "python binary not found: "+c.python, runErr)
		}
		if ctx.Err() != nil || (c.timeout > 0 && errors.Is(runCtx.Err(), context.DeadlineExceeded)) {
			return nil, services.ClassifyRunError(ctx, runCtx, toolName, c.timeout, runErr, "")
		}
	}
	if reported != "" {
		return nil, &ReportedError{Message: reported, Tail: tail.String()}
	}
	if code, ok := services.ExitCode(runErr); ok {
		return nil, &services.ToolExitError{Tool: toolName, Code: code, Tail: tail.String()}
	}
	if runErr != nil {
		return nil, services.Wrap(services.ErrExternalTool, toolName, "run", "", runErr)
	}
	return nil, &ReportedError{Message: "separator finished without reporting output", Tail: tail.String()}
}

func clampPercent(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}
