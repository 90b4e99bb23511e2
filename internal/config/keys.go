package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kFloat
	kDuration
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "AGENTTWO_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.max_conns", typ: kInt, env: "AGENTTWO_SERVER_MAX_CONNS",
		apply:   func(cfg *Config, v any) { cfg.Server.MaxConns = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.MaxConns },
	},
	{
		key: "ollama.base_url", typ: kString, env: "AGENTTWO_OLLAMA_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.BaseURL },
	},
	{
		key: "ollama.fast_model", typ: kString, env: "AGENTTWO_OLLAMA_FAST_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.FastModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.FastModel },
	},
	{
		key: "storage.data_dir", typ: kString, env: "AGENTTWO_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "chat.timeout", typ: kDuration, env: "AGENTTWO_CHAT_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Chat.Timeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Chat.Timeout },
	},
	{
		key: "chat.history_limit", typ: kInt, env: "AGENTTWO_CHAT_HISTORY_LIMIT",
		apply:   func(cfg *Config, v any) { cfg.Chat.HistoryLimit = v.(int) },
		extract: func(cfg Config) any { return cfg.Chat.HistoryLimit },
	},
	{
		key: "learning.max_log_entries", typ: kInt, env: "AGENTTWO_LEARNING_MAX_LOG_ENTRIES",
		apply:   func(cfg *Config, v any) { cfg.Learning.MaxLogEntries = v.(int) },
		extract: func(cfg Config) any { return cfg.Learning.MaxLogEntries },
	},
	{
		key: "intent.model_fallback", typ: kBool, env: "AGENTTWO_INTENT_MODEL_FALLBACK",
		apply:   func(cfg *Config, v any) { cfg.Intent.ModelFallback = v.(bool) },
		extract: func(cfg Config) any { return cfg.Intent.ModelFallback },
	},
	{
		key: "dev.workspace", typ: kString, env: "AGENTTWO_DEV_WORKSPACE",
		apply:   func(cfg *Config, v any) { cfg.Dev.Workspace = v.(string) },
		extract: func(cfg Config) any { return cfg.Dev.Workspace },
	},
	{
		key: "dev.command_timeout", typ: kDuration, env: "AGENTTWO_DEV_COMMAND_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Dev.CommandTimeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Dev.CommandTimeout },
	},
	{
		key: "dev.exec_rate", typ: kFloat, env: "AGENTTWO_DEV_EXEC_RATE",
		apply:   func(cfg *Config, v any) { cfg.Dev.ExecRate = v.(float64) },
		extract: func(cfg Config) any { return cfg.Dev.ExecRate },
	},
	{
		key: "dev.exec_burst", typ: kInt, env: "AGENTTWO_DEV_EXEC_BURST",
		apply:   func(cfg *Config, v any) { cfg.Dev.ExecBurst = v.(int) },
		extract: func(cfg Config) any { return cfg.Dev.ExecBurst },
	},
	{
		key: "log.level", typ: kString, env: "AGENTTWO_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

// parse converts raw text to the Go type of the key.
func (s keySpec) parse(raw string) (any, error) {
	switch s.typ {
	case kInt:
		return strconv.Atoi(raw)
	case kBool:
		return strconv.ParseBool(raw)
	case kFloat:
		return strconv.ParseFloat(raw, 64)
	case kDuration:
		return time.ParseDuration(raw)
	}
	return raw, nil
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		default:
			raw, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if !ok || raw == "" {
				continue
			}
			v, err := s.parse(raw)
			if err != nil {
				slog.Warn("could not parse config value, using default", "key", s.key, "value", raw, "error", err)
				continue
			}
			s.apply(cfg, v)
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		v, err := s.parse(raw)
		if err != nil {
			slog.Warn("could not parse env var, using default", "env", s.env, "value", raw, "error", err)
			continue
		}
		s.apply(cfg, v)
	}
}
