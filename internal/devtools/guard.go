// Package devtools runs allow-listed shell commands and reads and writes
// files inside the developer workspace when the user has enabled dev mode.
package devtools

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	// ErrNotAllowed matches every guard rejection.
	ErrNotAllowed        = errors.New("not allowed")
	ErrCommandNotAllowed = fmt.Errorf("command %w", ErrNotAllowed)
	ErrPathNotAllowed    = fmt.Errorf("path %w", ErrNotAllowed)

	// ErrDisabled matches every action refused by the preferences.
	ErrDisabled          = errors.New("is disabled")
	ErrExecutionDisabled = fmt.Errorf("code execution %w", ErrDisabled)
	ErrEditingDisabled   = fmt.Errorf("file editing %w", ErrDisabled)
)

var allowedCommands = []string{
	"npm", "node", "git", "echo", "dir", "ls", "cat", "type",
	"python", "python3", "pip", "pip3",
	"cd", "pwd", "whoami", "date", "time",
}

var chainTokens = []string{";", "&&", "||", "|", "`", "$(", "\n", "\r"}

var editableExtensions = map[string]bool{
	".js": true, ".ts": true, ".html": true, ".css": true, ".json": true,
	".txt": true, ".md": true, ".py": true, ".java": true, ".cpp": true,
	".c": true, ".h": true, ".xml": true, ".yaml": true, ".yml": true,
}

// normalizeCommand folds compatibility forms (full-width letters and the
// like) so look-alike characters cannot slip past the prefix check.
func normalizeCommand(cmd string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFKC.String(cmd)))
}

// IsCommandAllowed reports whether cmd starts with an allowed program name
// and contains no shell chaining.
func IsCommandAllowed(cmd string) bool {
	c := normalizeCommand(cmd)
	if c == "" {
		return false
	}
	for _, t := range chainTokens {
		if strings.Contains(c, t) {
			return false
		}
	}
	program := strings.Fields(c)[0]
	for _, a := range allowedCommands {
		if program == a {
			return true
		}
	}
	return false
}

// IsPathSafe reports whether p is a relative workspace path with an editable
// extension. PDFs are accepted when forRead is set.
func IsPathSafe(p string, forRead bool) bool {
	if p == "" || strings.Contains(p, "..") || strings.Contains(p, `\`) {
		return false
	}
	if !(strings.HasPrefix(p, "./") || strings.HasPrefix(p, "src/") || !strings.Contains(p, "/")) {
		return false
	}
	ext := strings.ToLower(filepath.Ext(p))
	if forRead && ext == ".pdf" {
		return true
	}
	return editableExtensions[ext]
}
