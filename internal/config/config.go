package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Server   ServerConfig
	Ollama   OllamaConfig
	Storage  StorageConfig
	Chat     ChatConfig
	Learning LearningConfig
	Intent   IntentConfig
	Dev      DevConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port     int
	MaxConns int
}

type OllamaConfig struct {
	BaseURL   string
	FastModel string
}

type StorageConfig struct {
	DataDir string
}

type ChatConfig struct {
	Timeout      time.Duration
	HistoryLimit int
}

type LearningConfig struct {
	MaxLogEntries int
}

type IntentConfig struct {
	ModelFallback bool
}

type DevConfig struct {
	// Workspace is where dev commands run and dev file reads and writes
	// resolve. Empty means <data_dir>/workspace.
	Workspace      string
	CommandTimeout time.Duration
	ExecRate       float64
	ExecBurst      int
}

type LogConfig struct {
	Level string
}

// WorkspaceDir returns the dev workspace, defaulting under the data dir.
func (c Config) WorkspaceDir() string {
	if c.Dev.Workspace != "" {
		return c.Dev.Workspace
	}
	return filepath.Join(c.Storage.DataDir, "workspace")
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:     4100,
			MaxConns: 64,
		},
		Ollama: OllamaConfig{
			BaseURL:   "http://localhost:11434",
			FastModel: "qwen2.5:0.5b",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Chat: ChatConfig{
			Timeout:      30 * time.Second,
			HistoryLimit: 50,
		},
		Learning: LearningConfig{
			MaxLogEntries: 500,
		},
		Dev: DevConfig{
			CommandTimeout: 30 * time.Second,
			ExecRate:       1,
			ExecBurst:      3,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration in layers, each overriding the previous one:
// built-in defaults, an optional config.toml next to the native config,
// the platform-native backend and finally environment variables.
//
// On macOS the backend is UserDefaults (domain: com.agenttwo.app).
// On Linux the backend is a JSON file at $XDG_CONFIG_HOME/agenttwo/config.json.
//
// Environment variables (AGENTTWO_*) override backend values on all platforms.
func Load() (Config, error) {
	return loadWith(tomlFilePath(), newPlatformBackend())
}

// loadFromPath loads defaults, the TOML file at path and the environment,
// skipping the platform backend.
func loadFromPath(path string) (Config, error) {
	return loadWith(path, nil)
}

func loadWith(tomlPath string, b ConfigBackend) (Config, error) {
	cfg := defaults()

	if tomlPath != "" {
		tb, err := readTOML(tomlPath)
		if err != nil {
			return Config{}, err
		}
		if tb != nil {
			if err := applyBackend(&cfg, tb); err != nil {
				return Config{}, fmt.Errorf("%s: %w", tomlPath, err)
			}
		}
	}

	if b != nil {
		if err := applyBackend(&cfg, b); err != nil {
			return Config{}, err
		}
	}

	applyEnvOverrides(&cfg)

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid config: server.port %d out of range", cfg.Server.Port)
	}
	if cfg.Ollama.BaseURL == "" {
		return errors.New("invalid config: ollama.base_url is empty")
	}
	if cfg.Chat.Timeout <= 0 {
		return fmt.Errorf("invalid config: chat.timeout must be positive, got %s", cfg.Chat.Timeout)
	}
	return nil
}

// readTOML decodes path into a flat "section.key" map. A missing file
// returns nil without error.
func readTOML(path string) (*mapBackend, error) {
	var raw map[string]any
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	mb := &mapBackend{data: make(map[string]any)}
	flatten("", raw, mb.data)
	return mb, nil
}

func flatten(prefix string, in map[string]any, out map[string]any) {
	for k, v := range in {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := v.(map[string]any); ok {
			flatten(key, sub, out)
			continue
		}
		out[key] = v
	}
}

func tomlFilePath() string {
	return filepath.Join(configDir(), "config.toml")
}
