package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
)

const (
	keychainService = "agenttwo"
	tokenAccount    = "api_token"
	tokenEnv        = "AGENTTWO_API_TOKEN"
)

// Keychain stores secrets outside the plain config.
type Keychain interface {
	Get(service, account string) (string, error)
	Set(service, account, value string) error
}

// NewKeychain returns the platform secret store: the login keychain on
// macOS, a 0600 secrets.json under the data dir elsewhere.
func NewKeychain() Keychain { return newPlatformKeychain() }

// GetAPIToken returns the bearer token protecting the local HTTP API.
// AGENTTWO_API_TOKEN wins; otherwise the stored token is used, and one is
// generated and stored on first use.
func GetAPIToken(kc Keychain) (string, error) {
	if t := os.Getenv(tokenEnv); t != "" {
		return t, nil
	}
	if t, err := kc.Get(keychainService, tokenAccount); err == nil && t != "" {
		return t, nil
	}

	token := strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
	if err := kc.Set(keychainService, tokenAccount, token); err != nil {
		return "", fmt.Errorf("storing API token: %w", err)
	}
	slog.Info("generated API token", "service", keychainService, "account", tokenAccount)
	return token, nil
}
