package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// mockKeychain is a test double for the Keychain interface.
type mockKeychain struct {
	values map[string]string
	setErr error
}

func (m *mockKeychain) Get(service, account string) (string, error) {
	v, ok := m.values[service+"/"+account]
	if !ok {
		return "", errors.New("not found")
	}
	return v, nil
}

func (m *mockKeychain) Set(service, account, value string) error {
	if m.setErr != nil {
		return m.setErr
	}
	if m.values == nil {
		m.values = make(map[string]string)
	}
	m.values[service+"/"+account] = value
	return nil
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// TestDefaults verifies all default values are applied when loading an empty config file.
func TestDefaults(t *testing.T) {
	path := writeTempConfig(t, `# empty config`)

	cfg, err := loadFromPath(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 4100 {
		t.Errorf("Server.Port = %d, want 4100", cfg.Server.Port)
	}
	if cfg.Server.MaxConns != 64 {
		t.Errorf("Server.MaxConns = %d, want 64", cfg.Server.MaxConns)
	}
	if cfg.Ollama.BaseURL != "http://localhost:11434" {
		t.Errorf("Ollama.BaseURL = %q", cfg.Ollama.BaseURL)
	}
	if cfg.Ollama.FastModel != "qwen2.5:0.5b" {
		t.Errorf("Ollama.FastModel = %q", cfg.Ollama.FastModel)
	}
	if cfg.Chat.Timeout != 30*time.Second || cfg.Chat.HistoryLimit != 50 {
		t.Errorf("Chat = %+v", cfg.Chat)
	}
	if cfg.Learning.MaxLogEntries != 500 {
		t.Errorf("Learning.MaxLogEntries = %d", cfg.Learning.MaxLogEntries)
	}
	if cfg.Intent.ModelFallback {
		t.Error("Intent.ModelFallback should default to false")
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
	if cfg.WorkspaceDir() != filepath.Join(cfg.Storage.DataDir, "workspace") {
		t.Errorf("WorkspaceDir = %q", cfg.WorkspaceDir())
	}
}

// TestMissingFileUsesDefaults verifies an absent config.toml is not an error.
func TestMissingFileUsesDefaults(t *testing.T) {
	cfg, err := loadFromPath(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 4100 {
		t.Errorf("Server.Port = %d", cfg.Server.Port)
	}
}

// TestTOMLParsing verifies that all sections are read from a TOML file.
func TestTOMLParsing(t *testing.T) {
	content := `
[server]
port = 5000
max_conns = 8

[ollama]
base_url = "http://custom:11434"
fast_model = "tinyllama:latest"

[storage]
data_dir = "/tmp/agenttwo-test"

[chat]
timeout = "45s"
history_limit = 20

[learning]
max_log_entries = 100

[intent]
model_fallback = true

[dev]
workspace = "/tmp/ws"
exec_rate = 2.5
exec_burst = 5
`
	cfg, err := loadFromPath(writeTempConfig(t, content))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 5000 || cfg.Server.MaxConns != 8 {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if cfg.Ollama.BaseURL != "http://custom:11434" || cfg.Ollama.FastModel != "tinyllama:latest" {
		t.Errorf("Ollama = %+v", cfg.Ollama)
	}
	if cfg.Storage.DataDir != "/tmp/agenttwo-test" {
		t.Errorf("Storage.DataDir = %q", cfg.Storage.DataDir)
	}
	if cfg.Chat.Timeout != 45*time.Second || cfg.Chat.HistoryLimit != 20 {
		t.Errorf("Chat = %+v", cfg.Chat)
	}
	if cfg.Learning.MaxLogEntries != 100 {
		t.Errorf("Learning = %+v", cfg.Learning)
	}
	if !cfg.Intent.ModelFallback {
		t.Error("Intent.ModelFallback = false")
	}
	if cfg.Dev.ExecRate != 2.5 || cfg.Dev.ExecBurst != 5 || cfg.WorkspaceDir() != "/tmp/ws" {
		t.Errorf("Dev = %+v", cfg.Dev)
	}
}

// TestEnvOverride verifies that environment variables override config file values.
func TestEnvOverride(t *testing.T) {
	path := writeTempConfig(t, `[server]
port = 5000
`)
	t.Setenv("AGENTTWO_SERVER_PORT", "6000")
	t.Setenv("AGENTTWO_CHAT_TIMEOUT", "5s")
	t.Setenv("AGENTTWO_INTENT_MODEL_FALLBACK", "not-a-bool")

	cfg, err := loadFromPath(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 6000 {
		t.Errorf("Server.Port = %d, want 6000", cfg.Server.Port)
	}
	if cfg.Chat.Timeout != 5*time.Second {
		t.Errorf("Chat.Timeout = %s", cfg.Chat.Timeout)
	}
	if cfg.Intent.ModelFallback {
		t.Error("unparseable env value should leave the default")
	}
}

// TestBackendLayer verifies the native backend overrides the TOML file.
func TestBackendLayer(t *testing.T) {
	path := writeTempConfig(t, `[ollama]
fast_model = "from-toml"
`)
	b := &mapBackend{data: map[string]any{
		"ollama.fast_model":     "from-backend",
		"intent.model_fallback": true,
		"chat.history_limit":    float64(10),
	}}

	cfg, err := loadWith(path, b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Ollama.FastModel != "from-backend" {
		t.Errorf("FastModel = %q", cfg.Ollama.FastModel)
	}
	if !cfg.Intent.ModelFallback || cfg.Chat.HistoryLimit != 10 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestInvalidValues(t *testing.T) {
	if _, err := loadFromPath(writeTempConfig(t, "[server]\nport = 70000\n")); err == nil {
		t.Error("expected error for out of range port")
	}
	if _, err := loadFromPath(writeTempConfig(t, "not = [valid")); err == nil {
		t.Error("expected error for malformed TOML")
	}
}

func TestSetKey(t *testing.T) {
	b := &mapBackend{data: map[string]any{}}

	if err := setKey(b, "server.port", "4200"); err != nil {
		t.Fatal(err)
	}
	if v, _, _ := b.GetInt("server.port"); v != 4200 {
		t.Errorf("server.port = %d", v)
	}
	if err := setKey(b, "chat.timeout", "1m"); err != nil {
		t.Fatal(err)
	}
	if err := setKey(b, "chat.timeout", "soon"); err == nil {
		t.Error("expected error for invalid duration")
	}
	if err := setKey(b, "nope", "1"); err == nil || !strings.Contains(err.Error(), "unknown config key") {
		t.Errorf("err = %v", err)
	}
}

func TestShowAllCoversValidKeys(t *testing.T) {
	keys := ValidKeys()
	shown := ShowAll(defaults())
	if len(shown) != len(keys) {
		t.Fatalf("ShowAll has %d keys, ValidKeys %d", len(shown), len(keys))
	}
	for i, k := range shown {
		if k.Key != keys[i] || !strings.HasPrefix(k.EnvVar, "AGENTTWO_") {
			t.Errorf("key %d = %+v", i, k)
		}
	}
}

func TestGetAPIToken(t *testing.T) {
	t.Setenv("AGENTTWO_API_TOKEN", "")
	kc := &mockKeychain{}

	first, err := GetAPIToken(kc)
	if err != nil {
		t.Fatalf("GetAPIToken: %v", err)
	}
	if len(first) != 64 {
		t.Errorf("token length = %d, want 64", len(first))
	}
	second, err := GetAPIToken(kc)
	if err != nil {
		t.Fatal(err)
	}
	if second != first {
		t.Error("token not reused on second call")
	}

	t.Setenv("AGENTTWO_API_TOKEN", "env-token")
	if got, _ := GetAPIToken(kc); got != "env-token" {
		t.Errorf("env override = %q", got)
	}
}

func TestGetAPIToken_StoreFails(t *testing.T) {
	t.Setenv("AGENTTWO_API_TOKEN", "")
	if _, err := GetAPIToken(&mockKeychain{setErr: errors.New("locked")}); err == nil {
		t.Error("expected error when the token cannot be stored")
	}
}
