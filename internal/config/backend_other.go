//go:build !darwin

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
)

const appDir = "mini-seller"

// xdgPath resolves name under $envVar/mini-seller, falling back to
// ~/<homeRel>/mini-seller when the variable is unset.
func xdgPath(envVar, homeRel string, name ...string) string {
	base := os.Getenv(envVar)
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(append([]string{"." + appDir}, name...)...)
		}
		base = filepath.Join(home, homeRel)
	}
	return filepath.Join(append([]string{base, appDir}, name...)...)
}

func defaultDataDir() string {
	return xdgPath("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

// fileBackend keeps settings in a flat JSON object at
// $XDG_CONFIG_HOME/mini-seller/config.json.
type fileBackend struct {
	path string
	data map[string]any
}

func newPlatformBackend() ConfigBackend {
	b := &fileBackend{path: xdgPath("XDG_CONFIG_HOME", ".config", "config.json"), data: map[string]any{}}
	b.load()
	return b
}

func (b *fileBackend) load() {
	raw, err := os.ReadFile(b.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return
	case err != nil:
		warnf("could not read config file %s: %v. Using default values.", b.path, err)
		return
	}
	if err := json.Unmarshal(raw, &b.data); err != nil {
		warnf("could not parse config file %s: %v. Using default values.", b.path, err)
	}
}

func (b *fileBackend) save() error {
	return writeJSONFile(b.path, b.data)
}

// writeJSONFile writes v as indented JSON, readable only by the owner.
func writeJSONFile(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0o600)
}

func (b *fileBackend) GetString(key string) (string, bool, error) {
	v, ok := b.data[key]
	if !ok {
		return "", false, nil
	}
	if s, isStr := v.(string); isStr {
		return s, true, nil
	}
	return fmt.Sprint(v), true, nil
}

func (b *fileBackend) GetInt(key string) (int, bool, error) {
	v, ok := b.data[key]
	if !ok {
		return 0, false, nil
	}
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) || n < math.MinInt || n > math.MaxInt {
			return 0, true, fmt.Errorf("%s: %v is not an integer", key, n)
		}
		return int(n), true, nil
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return 0, true, fmt.Errorf("%s: %w", key, err)
		}
		return i, true, nil
	}
	return 0, true, fmt.Errorf("%s: unexpected type %T", key, v)
}

func (b *fileBackend) SetString(key, val string) error {
	b.data[key] = val
	return b.save()
}

func (b *fileBackend) SetInt(key string, val int) error {
	b.data[key] = val
	return b.save()
}

func (b *fileBackend) Delete(key string) error {
	delete(b.data, key)
	return b.save()
}
