//go:build darwin

package config

import (
	"fmt"
	"os/exec"
	"strings"
)

// securityKeychain keeps secrets in the login keychain through the
// security(1) tool.
type securityKeychain struct {
	run func(args ...string) ([]byte, error)
}

func newPlatformKeychain() Keychain {
	return securityKeychain{run: func(args ...string) ([]byte, error) {
		return exec.Command("security", args...).Output()
	}}
}

func (k securityKeychain) Get(service, account string) (string, error) {
	out, err := k.run("find-generic-password", "-s", service, "-a", account, "-w")
	if err != nil {
		return "", fmt.Errorf("reading %s/%s from keychain: %w", service, account, err)
	}
	return strings.TrimSpace(string(out)), nil
}

// Set replaces any existing item (-U).
func (k securityKeychain) Set(service, account, value string) error {
	if _, err := k.run("add-generic-password", "-U", "-s", service, "-a", account, "-w", value); err != nil {
		return fmt.Errorf("storing %s/%s in keychain: %w", service, account, err)
	}
	return nil
}
