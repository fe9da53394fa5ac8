//go:build darwin

package config

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

const defaultsDomain = "com.miniseller.app"

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mini-seller"
	}
	return filepath.Join(home, "Library", "Application Support", "mini-seller")
}

type darwinBackend struct {
	domain string
}

func newPlatformBackend() ConfigBackend {
	return &darwinBackend{domain: defaultsDomain}
}

// defaults runs the macOS defaults tool against the app domain.
func (b *darwinBackend) defaults(verb, key string, args ...string) ([]byte, error) {
	argv := append([]string{verb, b.domain, key}, args...)
	return exec.Command("defaults", argv...).CombinedOutput()
}

func (b *darwinBackend) GetString(key string) (string, bool, error) {
	out, err := b.defaults("read", key)
	val := strings.TrimSpace(string(out))
	var exitErr *exec.ExitError
	switch {
	case errors.As(err, &exitErr) && exitErr.ExitCode() == 1:
		return "", false, nil
	case err != nil:
		return "", false, fmt.Errorf("defaults read %s: %w: %s", key, err, val)
	}
	return val, true, nil
}

func (b *darwinBackend) GetInt(key string) (int, bool, error) {
	raw, ok, err := b.GetString(key)
	if !ok || err != nil {
		return 0, ok, err
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, true, fmt.Errorf("%s: %w", key, err)
	}
	return n, true, nil
}

func (b *darwinBackend) SetString(key, val string) error {
	_, err := b.defaults("write", key, "-string", val)
	return err
}

func (b *darwinBackend) SetInt(key string, val int) error {
	_, err := b.defaults("write", key, "-int", strconv.Itoa(val))
	return err
}

func (b *darwinBackend) Delete(key string) error {
	_, err := b.defaults("delete", key)
	return err
}
