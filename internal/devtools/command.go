package devtools

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	createFileRe = regexp.MustCompile(`(?i)^\s*(?:please\s+)?create\s+(?:a\s+)?file\s+(?:named\s+|called\s+)?(\S+)(?:\s+(?:with the text|containing|saying)\s+(.+))?\s*$`)
	runCommandRe = regexp.MustCompile(`(?i)^\s*(?:please\s+)?(?:run|execute)\s+(?:the\s+)?(?:command\s+)?(.+?)\s*$`)
)

const defaultFileContent = "Created by agenttwo.\n"

// Outcome is the result of a recognized dev command.
type Outcome struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Command *CommandResult `json:"command,omitempty"`
	File    *WriteResult   `json:"file,omitempty"`
}

// Tools bundles the runner and file access for chat-driven dev commands.
type Tools struct {
	Runner *Runner
	Files  *Files
}

// HandleDevCommand recognizes "create file <name> [with the text|containing|
// saying <content>]" and "run|execute <command>". ok is false when the
// message is neither or dev mode is off, so the caller can treat it as
// ordinary chat.
func (t *Tools) HandleDevCommand(ctx context.Context, message string) (Outcome, bool) {
	if !t.Runner.perms.Preferences().DevMode {
		return Outcome{}, false
	}
	if m := createFileRe.FindStringSubmatch(message); m != nil {
		content := m[2]
		if content == "" {
			content = defaultFileContent
		}
		res, err := t.Files.WriteFile(m[1], content)
		if err != nil {
			return Outcome{Message: Describe(err)}, true
		}
		return Outcome{Success: true, Message: fmt.Sprintf("Created %s", m[1]), File: &res}, true
	}

	if m := runCommandRe.FindStringSubmatch(message); m != nil {
		res, err := t.Runner.Run(ctx, m[1])
		if err != nil {
			out := Outcome{Message: Describe(err)}
			if res.Command != "" {
				out.Command = &res
			}
			return out, true
		}
		return Outcome{Success: true, Message: strings.TrimRight(res.Stdout, "\n"), Command: &res}, true
	}
	return Outcome{}, false
}

// Describe turns a guard or preference error into the message shown to the user.
func Describe(err error) string {
	switch {
	case errors.Is(err, ErrCommandNotAllowed):
		return "Security: command not allowed"
	case errors.Is(err, ErrPathNotAllowed):
		return "Security: path not allowed"
	case errors.Is(err, ErrExecutionDisabled):
		return "Code execution is disabled. Enable dev mode and code execution in preferences"
	case errors.Is(err, ErrEditingDisabled):
		return "File editing is disabled. Enable dev mode and file editing in preferences"
	}
	return err.Error()
}
