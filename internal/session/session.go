// Package session owns the application state for one user: the two JSON
// documents, the SQLite archive and the services built on top of them.
// Nothing here is global, so tests open a fresh Session per case.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/kalambet/agenttwo/internal/action"
	"github.com/kalambet/agenttwo/internal/chat"
	"github.com/kalambet/agenttwo/internal/config"
	"github.com/kalambet/agenttwo/internal/devtools"
	"github.com/kalambet/agenttwo/internal/intent"
	"github.com/kalambet/agenttwo/internal/memory"
	"github.com/kalambet/agenttwo/internal/ollama"
	"github.com/kalambet/agenttwo/internal/profile"
	"github.com/kalambet/agenttwo/internal/storage"
)

const (
	memoryFile  = "memory.json"
	profileFile = "userProfile.json"
	filesDir    = "files"
)

// Options overrides collaborators, mainly for tests.
type Options struct {
	Launcher action.Launcher
	Ollama   *ollama.Client
}

// Session wires every component for one data directory.
type Session struct {
	Config     config.Config
	Store      *storage.Store
	Profile    *profile.Manager
	Memory     *memory.Manager
	Ollama     *ollama.Client
	Classifier *intent.Classifier
	Dispatcher *action.Dispatcher
	Chat       *chat.Service
	Dev        *devtools.Tools
}

// Open loads or creates the state under cfg.Storage.DataDir.
func Open(ctx context.Context, cfg config.Config, opts Options) (*Session, error) {
	dataDir := cfg.Storage.DataDir
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}
	workspace := cfg.WorkspaceDir()
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		return nil, fmt.Errorf("creating workspace: %w", err)
	}

	store, err := storage.Open(dataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	prof, err := profile.Load(filepath.Join(dataDir, profileFile), profile.Options{
		Archive:       store,
		MaxLogEntries: cfg.Learning.MaxLogEntries,
	})
	if err != nil {
		store.Close()
		return nil, err
	}
	mem, err := memory.Load(filepath.Join(dataDir, memoryFile), memory.Options{
		HistoryLimit: cfg.Chat.HistoryLimit,
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	client := opts.Ollama
	if client == nil {
		client = ollama.New(cfg.Ollama.BaseURL)
	}

	var extra []intent.Rule
	if cfg.Intent.ModelFallback {
		extra = append(extra, intent.NewModelRule(client, cfg.Ollama.FastModel))
	}
	classifier := intent.New(prof, extra...)

	s := &Session{
		Config:     cfg,
		Store:      store,
		Profile:    prof,
		Memory:     mem,
		Ollama:     client,
		Classifier: classifier,
		Dispatcher: action.New(classifier, prof, mem, opts.Launcher, filepath.Join(dataDir, filesDir)),
		Chat: chat.New(client, mem, store, chat.Config{
			FastModel: cfg.Ollama.FastModel,
			Timeout:   cfg.Chat.Timeout,
		}),
		Dev: &devtools.Tools{
			Runner: devtools.NewRunner(workspace, cfg.Dev.CommandTimeout, mem),
			Files:  devtools.NewFiles(workspace, mem),
		},
	}
	slog.Debug("session opened", "data_dir", dataDir, "workspace", workspace, "model_fallback", cfg.Intent.ModelFallback)
	return s, nil
}

// Cleared reports what ClearMemory removed.
type Cleared struct {
	ChatTurns int64 `json:"chatTurns"`
}

// ClearMemory resets preferences, behavior and history and deletes the
// stored chat transcript. The learned profile is kept.
func (s *Session) ClearMemory() (Cleared, error) {
	if err := s.Memory.Clear(); err != nil {
		return Cleared{}, err
	}
	n, err := s.Store.DeleteChatTurns()
	if err != nil {
		return Cleared{}, fmt.Errorf("deleting chat transcript: %w", err)
	}
	slog.Info("memory cleared", "chat_turns", n)
	return Cleared{ChatTurns: n}, nil
}

// Close flushes both documents and closes the database.
func (s *Session) Close() error {
	return errors.Join(
		s.Profile.Save(),
		s.Memory.Save(),
		s.Store.Close(),
	)
}
