package parserunner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"capaudit/internal/audit"
	"capaudit/internal/logging"
)

// WorkerCommand is the hidden subcommand the runner invokes on its own
// binary to perform one parse in isolation.
const WorkerCommand = "parse-worker"

// Executor abstracts command execution for the runner.
type Executor interface {
	Run(ctx context.Context, binary string, args []string) ([]byte, error)
}

// commandExecutor executes commands using os/exec.
type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	return cmd.Output()
}

// Runner parses documents via short-lived child processes.
type Runner struct {
	binary  string
	timeout time.Duration
	exec    Executor
	logger  *slog.Logger
}

// New constructs a Runner that re-executes the current binary. The binary
// path is resolved once at construction.
func New(timeoutSeconds int, logger *slog.Logger) (*Runner, error) {
	binary, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolve executable: %w", err)
	}
	return newRunner(binary, timeoutSeconds, commandExecutor{}, logger), nil
}

// NewWithExecutor allows injecting a custom executor for testing.
func NewWithExecutor(binary string, timeoutSeconds int, exec Executor, logger *slog.Logger) *Runner {
	if exec == nil {
		exec = commandExecutor{}
	}
	return newRunner(binary, timeoutSeconds, exec, logger)
}

func newRunner(binary string, timeoutSeconds int, exec Executor, logger *slog.Logger) *Runner {
	if timeoutSeconds <= 0 {
		timeoutSeconds = 45
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runner{
		binary:  binary,
		timeout: time.Duration(timeoutSeconds) * time.Second,
		exec:    exec,
		logger:  logger,
	}
}

// Parse extracts text from one document. It never returns an error: crashes,
// timeouts, and malformed worker output all degrade to a ParseResult with
// ParseStatus set to error so the pipeline can continue with the remaining
// documents.
func (r *Runner) Parse(ctx context.Context, path string) audit.ParseResult {
	parseCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	output, err := r.exec.Run(parseCtx, r.binary, []string{WorkerCommand, "--file", path})
	if err != nil {
		return r.degrade(parseCtx, path, output, err)
	}

	var result audit.ParseResult
	if err := json.Unmarshal(output, &result); err != nil {
		r.logger.Warn("parse worker emitted malformed output",
			logging.String("file", path),
			logging.Error(err))
		return audit.ParseResult{
			ParseStatus: audit.ParseError,
			ParseError:  "failed to parse: worker output malformed",
		}
	}
	if result.ParseStatus == "" {
		result.ParseStatus = audit.ParseSuccess
	}
	return result
}

func (r *Runner) degrade(ctx context.Context, path string, output []byte, err error) audit.ParseResult {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		r.logger.Warn("parse worker timed out",
			logging.String("file", path),
			logging.Duration("timeout", r.timeout))
		return audit.ParseResult{
			ParseStatus: audit.ParseError,
			ParseError:  fmt.Sprintf("failed to parse: timed out after %s", r.timeout),
		}
	}

	// A worker that exits non-zero may still have written a structured
	// result before dying.
	var result audit.ParseResult
	if len(output) > 0 && json.Unmarshal(output, &result) == nil && result.ParseError != "" {
		return result
	}

	detail := err.Error()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
		detail = strings.TrimSpace(string(exitErr.Stderr))
	}
	r.logger.Warn("parse worker failed",
		logging.String("file", path),
		logging.String("detail", detail))
	return audit.ParseResult{
		ParseStatus: audit.ParseError,
		ParseError:  "failed to parse: " + detail,
	}
}
