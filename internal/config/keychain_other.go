//go:build !darwin

package config

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/kalambet/agenttwo/internal/storage"
)

// errSecretNotFound is returned by fileKeychain.Get for a missing entry.
var errSecretNotFound = errors.New("secret not found")

// fileKeychain keeps secrets in one JSON document, keyed by service and
// then account. The file is replaced atomically with mode 0600.
type fileKeychain struct {
	path string
}

func newPlatformKeychain() Keychain {
	return fileKeychain{path: filepath.Join(defaultDataDir(), "secrets.json")}
}

type secretsDoc map[string]map[string]string

func (k fileKeychain) load() (secretsDoc, error) {
	doc := secretsDoc{}
	if _, err := storage.ReadJSON(k.path, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (k fileKeychain) Get(service, account string) (string, error) {
	doc, err := k.load()
	if err != nil {
		return "", err
	}
	v, ok := doc[service][account]
	if !ok {
		return "", fmt.Errorf("%s/%s: %w", service, account, errSecretNotFound)
	}
	return v, nil
}

// Set refuses to overwrite an unreadable secrets file so other entries are
// never dropped.
func (k fileKeychain) Set(service, account, value string) error {
	doc, err := k.load()
	if err != nil {
		return err
	}
	if doc[service] == nil {
		doc[service] = map[string]string{}
	}
	doc[service][account] = value
	return storage.WriteJSON(k.path, doc)
}
