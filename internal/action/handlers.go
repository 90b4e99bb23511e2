package action

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/kalambet/agenttwo/internal/attempt"
)

var contentRe = regexp.MustCompile(`(?i)(?:with the text|containing|saying)\s+(.+)`)

func (d *Dispatcher) createTextFile(message string) (string, string, error) {
	if !d.perms.Preferences().CanEditFiles() {
		return "", "", errors.New("file editing is disabled, enable dev mode and file editing in preferences")
	}
	if err := d.ensureFilesDir(); err != nil {
		return "", "", err
	}

	now := d.now()
	name := fmt.Sprintf("textfile_%d.txt", now.UnixMilli())
	content := fmt.Sprintf("# Text File Created by agenttwo\nCreated on: %s\nThis file was created automatically based on your request.",
		now.Format("2006-01-02 15:04:05"))
	if m := contentRe.FindStringSubmatch(message); m != nil {
		content = strings.TrimSpace(m[1])
	}

	path := filepath.Join(d.filesDir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", "", fmt.Errorf("failed to create text file: %w", err)
	}
	d.addCreated(path)

	msg := fmt.Sprintf("Text file created.\nFile: %s\nLocation: %s\nContent:\n```\n%s\n```\nYou can now edit this file or ask me to open it.", name, path, content)
	return msg, path, nil
}

// launchWord tries each word processor command in turn and succeeds with the
// first one that starts.
func (d *Dispatcher) launchWord(ctx context.Context, okMsg string) (string, string, error) {
	docPath := filepath.Join(d.filesDir, fmt.Sprintf("document_%d.docx", d.now().UnixMilli()))
	cmds := d.launcher.WordCommands(docPath)

	attempts := make([]attempt.Attempt[struct{}], len(cmds))
	for i, c := range cmds {
		attempts[i] = attempt.Attempt[struct{}]{
			Name: c.String(),
			Run: func(ctx context.Context) (struct{}, error) {
				if usesPath(c, docPath) {
					if err := d.touch(docPath); err != nil {
						return struct{}{}, err
					}
				}
				return struct{}{}, d.launcher.Exec(ctx, c)
			},
		}
	}

	_, used, err := attempt.First(ctx, attempts)
	if err != nil {
		return "", "", fmt.Errorf("could not open a word processor, make sure one is installed: %w", err)
	}
	if cmds[0].String() != used {
		okMsg += " (fallback: " + used + ")"
	}
	return okMsg, "", nil
}

func usesPath(c Command, path string) bool {
	for _, a := range c.Args {
		if a == path {
			return true
		}
	}
	return false
}

func (d *Dispatcher) touch(path string) error {
	if err := d.ensureFilesDir(); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	return f.Close()
}

func (d *Dispatcher) openLast(ctx context.Context, verb string) (string, string, error) {
	path, err := d.lastCreated()
	if err != nil {
		return "", "", err
	}
	return d.open(ctx, path, verb)
}

func (d *Dispatcher) open(ctx context.Context, path, verb string) (string, string, error) {
	if err := d.launcher.OpenPath(ctx, path); err != nil {
		return "", "", fmt.Errorf("failed to %s file: %w", verb, err)
	}
	d.addOpened(path)
	return fmt.Sprintf("File opened for %s.\nFile: %s", verb, filepath.Base(path)), path, nil
}

func (d *Dispatcher) appendToLast(text, what string) (string, string, error) {
	path, err := d.lastCreated()
	if err != nil {
		return "", "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, append(data, text...), 0o644); err != nil {
		return "", "", fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return fmt.Sprintf("%s %s", what, filepath.Base(path)), path, nil
}

// openNamed opens the file named by the word after "file" in message.
func (d *Dispatcher) openNamed(ctx context.Context, message, verb string) (string, string, error) {
	name := fileNameArg(message)
	if name == "" {
		return "", "", fmt.Errorf("please specify which file you want to %s", verb)
	}
	// Only plain names inside the files directory are accepted.
	if name != filepath.Base(name) || name == "." || name == ".." {
		return "", "", fmt.Errorf("File %s not found", name)
	}

	path := filepath.Join(d.filesDir, name)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return "", "", fmt.Errorf("File %s not found", name)
	} else if err != nil {
		return "", "", err
	}
	return d.open(ctx, path, verb)
}

// fileNameArg returns the word following the token "file", in its original
// case since file names are case-sensitive on most systems.
func fileNameArg(message string) string {
	words := strings.Fields(message)
	for i, w := range words {
		if strings.EqualFold(w, "file") && i+1 < len(words) {
			return words[i+1]
		}
	}
	return ""
}
