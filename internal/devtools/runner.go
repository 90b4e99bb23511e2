package devtools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"time"

	"github.com/kalambet/agenttwo/internal/memory"
)

// DefaultCommandTimeout bounds a command when the Runner is given none.
const DefaultCommandTimeout = 30 * time.Second

// Permissions exposes the preferences that gate dev actions.
type Permissions interface {
	Preferences() memory.Preferences
}

// CommandResult is the outcome of a finished command.
type CommandResult struct {
	Command  string        `json:"command"`
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	ExitCode int           `json:"exitCode"`
	Duration time.Duration `json:"-"`
}

// Runner executes allow-listed commands in the workspace directory.
type Runner struct {
	dir     string
	timeout time.Duration
	perms   Permissions
}

// NewRunner creates a Runner rooted at dir.
func NewRunner(dir string, timeout time.Duration, perms Permissions) *Runner {
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	return &Runner{dir: dir, timeout: timeout, perms: perms}
}

// Run executes cmd through the platform shell. A non-zero exit is reported
// in the result and as an error.
func (r *Runner) Run(ctx context.Context, cmd string) (CommandResult, error) {
	if !r.perms.Preferences().CanExecute() {
		return CommandResult{}, ErrExecutionDisabled
	}
	if !IsCommandAllowed(cmd) {
		return CommandResult{}, fmt.Errorf("%q: %w", cmd, ErrCommandNotAllowed)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	c := shellCommand(ctx, cmd)
	c.Dir = r.dir
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	start := time.Now()
	err := c.Run()
	res := CommandResult{
		Command:  cmd,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}
	slog.Info("dev command", "command", cmd, "duration", res.Duration, "error", err)

	if ctx.Err() == context.DeadlineExceeded {
		res.ExitCode = -1
		return res, fmt.Errorf("command timed out after %s", r.timeout)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, fmt.Errorf("command failed: exit status %d", res.ExitCode)
	}
	if err != nil {
		return res, fmt.Errorf("command failed: %w", err)
	}
	return res, nil
}

func shellCommand(ctx context.Context, cmd string) *exec.Cmd {
	if runtime.GOOS == "windows" {
		return exec.CommandContext(ctx, "cmd", "/C", cmd)
	}
	return exec.CommandContext(ctx, "sh", "-c", cmd)
}
