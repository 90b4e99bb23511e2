package action

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// Command is one external program invocation.
type Command struct {
	Name string
	Args []string
}

func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Launcher starts external applications.
type Launcher interface {
	// OpenPath opens path with the platform's default handler.
	OpenPath(ctx context.Context, path string) error
	// Exec runs c and reports whether it started successfully.
	Exec(ctx context.Context, c Command) error
	// WordCommands returns the escalating attempts used to start a word
	// processor. docPath names a fresh document for launchers that need one.
	WordCommands(docPath string) []Command
}

// SystemLauncher runs real processes.
type SystemLauncher struct{}

// OpenPath opens path with the platform's default handler.
func (SystemLauncher) OpenPath(ctx context.Context, path string) error {
	return SystemLauncher{}.Exec(ctx, openCommand(path))
}

// Exec runs c. Commands that hand off to a desktop launcher return quickly,
// so their exit status is waited for; direct application starts are detached.
func (SystemLauncher) Exec(ctx context.Context, c Command) error {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	if !detached(c) {
		out, err := cmd.CombinedOutput()
		if err != nil {
			return fmt.Errorf("%s: %w: %s", c, err, strings.TrimSpace(string(out)))
		}
		return nil
	}

	// A detached child must outlive the request context.
	cmd = exec.Command(c.Name, c.Args...)
	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return fmt.Errorf("%s: not installed", c.Name)
		}
		return fmt.Errorf("%s: %w", c, err)
	}
	go func() {
		if err := cmd.Wait(); err != nil {
			slog.Debug("launched application exited", "command", c.String(), "error", err)
		}
	}()
	return nil
}

// WordCommands returns the platform's word processor escalation.
func (SystemLauncher) WordCommands(docPath string) []Command {
	return wordCommands(docPath)
}
