//go:build !darwin

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFileKeychain(t *testing.T) {
	k := fileKeychain{path: filepath.Join(t.TempDir(), "secrets.json")}

	if _, err := k.Get(keychainService, tokenAccount); !errors.Is(err, errSecretNotFound) {
		t.Fatalf("Get on empty store: err = %v, want errSecretNotFound", err)
	}
	if err := k.Set(keychainService, tokenAccount, "abc"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := k.Set("other", "acct", "xyz"); err != nil {
		t.Fatalf("Set other: %v", err)
	}

	got, err := k.Get(keychainService, tokenAccount)
	if err != nil || got != "abc" {
		t.Errorf("Get = %q, %v; want abc", got, err)
	}
	if got, _ := k.Get("other", "acct"); got != "xyz" {
		t.Errorf("other entry = %q, want xyz", got)
	}

	info, err := os.Stat(k.path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("mode = %o, want 600", perm)
	}
}

func TestFileKeychain_CorruptFileKept(t *testing.T) {
	k := fileKeychain{path: filepath.Join(t.TempDir(), "secrets.json")}
	if err := os.WriteFile(k.path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := k.Set(keychainService, tokenAccount, "abc"); err == nil {
		t.Fatal("Set over a corrupt file should fail")
	}
	data, _ := os.ReadFile(k.path)
	if string(data) != "{not json" {
		t.Errorf("corrupt file was overwritten: %q", data)
	}
}

func TestGetAPIToken_FileKeychainPersists(t *testing.T) {
	t.Setenv(tokenEnv, "")
	k := fileKeychain{path: filepath.Join(t.TempDir(), "secrets.json")}

	first, err := GetAPIToken(k)
	if err != nil {
		t.Fatalf("GetAPIToken: %v", err)
	}
	second, err := GetAPIToken(k)
	if err != nil {
		t.Fatalf("GetAPIToken again: %v", err)
	}
	if first == "" || first != second {
		t.Errorf("tokens = %q, %q; want the same non-empty token", first, second)
	}
}
