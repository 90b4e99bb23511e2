//go:build darwin

package config

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

const defaultsDomain = "com.agenttwo.app"

func defaultDataDir() string {
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, "Library", "Application Support", "agenttwo")
	}
	return "agenttwo-data"
}

// configDir holds the optional config.toml; UserDefaults holds the rest.
func configDir() string {
	return defaultDataDir()
}

// errNoDefault is what defaults(1) reports, through exit status 1, for a
// key that was never written.
var errNoDefault = errors.New("no such default")

// defaultsBackend keeps overrides in the com.agenttwo.app UserDefaults
// domain so they can also be edited with `defaults write`.
type defaultsBackend struct {
	domain string
	run    func(args ...string) (string, error)
}

func newPlatformBackend() ConfigBackend {
	return &defaultsBackend{domain: defaultsDomain, run: runDefaults}
}

func runDefaults(args ...string) (string, error) {
	out, err := exec.Command("defaults", args...).CombinedOutput()
	s := strings.TrimSpace(string(out))
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		return s, errNoDefault
	}
	if err != nil {
		return s, fmt.Errorf("defaults %s: %w: %s", args[0], err, s)
	}
	return s, nil
}

func (b *defaultsBackend) GetString(key string) (string, bool, error) {
	s, err := b.run("read", b.domain, key)
	if errors.Is(err, errNoDefault) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return s, true, nil
}

func (b *defaultsBackend) GetInt(key string) (int, bool, error) {
	s, ok, err := b.GetString(key)
	if !ok || err != nil {
		return 0, ok, err
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, true, fmt.Errorf("invalid integer for %s: %w", key, err)
	}
	return i, true, nil
}

func (b *defaultsBackend) SetString(key, val string) error {
	_, err := b.run("write", b.domain, key, "-string", val)
	return err
}

func (b *defaultsBackend) SetInt(key string, val int) error {
	_, err := b.run("write", b.domain, key, "-int", strconv.Itoa(val))
	return err
}

// Delete of a key that was never set succeeds.
func (b *defaultsBackend) Delete(key string) error {
	if _, err := b.run("delete", b.domain, key); err != nil && !errors.Is(err, errNoDefault) {
		return err
	}
	return nil
}
