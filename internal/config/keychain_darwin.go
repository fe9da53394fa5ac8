//go:build darwin

package config

import (
	"bytes"
	"os/exec"
)

// keychainGet reads a generic password from the login keychain.
func keychainGet(service, account string) ([]byte, error) {
	out, err := exec.Command("security", "find-generic-password", "-s", service, "-a", account, "-w").Output()
	if err != nil {
		return nil, err
	}
	return bytes.TrimSpace(out), nil
}

// keychainSet creates or updates (-U) a generic password.
func keychainSet(service, account, value string) error {
	return exec.Command("security", "add-generic-password", "-U", "-s", service, "-a", account, "-w", value).Run()
}
