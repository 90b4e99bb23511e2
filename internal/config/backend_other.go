//go:build !darwin

package config

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/kalambet/agenttwo/internal/storage"
)

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "agenttwo-data"
		}
	}
	return filepath.Join(dir, "agenttwo")
}

func configDir() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".config")
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, "agenttwo")
}

func configFilePath() string {
	return filepath.Join(configDir(), "config.json")
}

// fileBackend stores config as a flat JSON object in an XDG-compatible path.
// This is the default for Linux and other non-macOS platforms.
type fileBackend struct {
	mapBackend
	path string
}

func newPlatformBackend() ConfigBackend {
	return newFileBackend(configFilePath())
}

func newFileBackend(path string) *fileBackend {
	b := &fileBackend{mapBackend: mapBackend{data: make(map[string]any)}, path: path}
	b.load()
	return b
}

func (b *fileBackend) load() {
	if _, err := storage.ReadJSON(b.path, &b.data); err != nil {
		slog.Warn("could not read config file, using defaults", "path", b.path, "error", err)
	}
}

func (b *fileBackend) save() error {
	return storage.WriteJSON(b.path, b.data)
}

func (b *fileBackend) SetString(key, val string) error {
	b.data[key] = val
	return b.save()
}

func (b *fileBackend) SetInt(key string, val int) error {
	b.data[key] = val
	return b.save()
}

func (b *fileBackend) Delete(key string) error {
	delete(b.data, key)
	return b.save()
}
