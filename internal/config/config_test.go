package config

import (
	"errors"
	"strings"
	"testing"
	"time"
)

// mapBackend is an in-memory ConfigBackend.
type mapBackend map[string]any

func (m mapBackend) GetString(key string) (string, bool, error) {
	v, ok := m[key]
	if !ok {
		return "", false, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", true, errors.New("not a string")
	}
	return s, true, nil
}

func (m mapBackend) GetInt(key string) (int, bool, error) {
	v, ok := m[key]
	if !ok {
		return 0, false, nil
	}
	i, ok := v.(int)
	if !ok {
		return 0, true, errors.New("not an int")
	}
	return i, true, nil
}

func (m mapBackend) SetString(key, val string) error { m[key] = val; return nil }
func (m mapBackend) SetInt(key string, val int) error { m[key] = val; return nil }
func (m mapBackend) Delete(key string) error         { delete(m, key); return nil }

// mockSecrets is a test double for the secretStore interface.
type mockSecrets struct {
	value  string
	getErr error
	setErr error
	set    string
}

func (m *mockSecrets) Get(service, account string) (string, error) {
	return m.value, m.getErr
}

func (m *mockSecrets) Set(service, account, value string) error {
	m.set = value
	return m.setErr
}

// TestDefaults verifies all default values are applied when the backend is empty.
func TestDefaults(t *testing.T) {
	cfg, err := loadWith(mapBackend{}, &mockSecrets{value: "tok"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 4100 {
		t.Errorf("Server.Port = %d, want 4100", cfg.Server.Port)
	}
	if cfg.Storage.Backend != BackendSQLite {
		t.Errorf("Storage.Backend = %q, want sqlite", cfg.Storage.Backend)
	}
	if cfg.Storage.RedisAddr != "localhost:6379" {
		t.Errorf("Storage.RedisAddr = %q", cfg.Storage.RedisAddr)
	}
	if cfg.QueryLatency() != 500*time.Millisecond {
		t.Errorf("QueryLatency() = %v, want 500ms", cfg.QueryLatency())
	}
	if cfg.Query.FailureRate != 0.05 {
		t.Errorf("Query.FailureRate = %v, want 0.05", cfg.Query.FailureRate)
	}
	if cfg.Query.RollbackOnTransient || cfg.Conversion.LegacyPartialSuccess {
		t.Error("optional behaviors should default to off")
	}
	if got := cfg.CollationTag().String(); got != "en" {
		t.Errorf("CollationTag() = %v, want en", got)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}
	if cfg.API.Token != "tok" {
		t.Errorf("API.Token = %q, want tok", cfg.API.Token)
	}
}

// TestBackendValues verifies that every kind of key is read from the backend.
func TestBackendValues(t *testing.T) {
	b := mapBackend{
		"server.port":                       5000,
		"storage.backend":                   "redis",
		"storage.redis_db":                  3,
		"storage.redis_prefix":              "test:",
		"query.latency":                     "0s",
		"query.failure_rate":                "0.5",
		"query.rollback_on_transient":       "true",
		"query.collation":                   "sv",
		"conversion.legacy_partial_success": "true",
		"seed.path":                         "/tmp/leads.json",
	}

	cfg, err := loadWith(b, &mockSecrets{value: "tok"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 5000 {
		t.Errorf("Server.Port = %d", cfg.Server.Port)
	}
	if cfg.Storage.Backend != BackendRedis || cfg.Storage.RedisDB != 3 || cfg.Storage.RedisPrefix != "test:" {
		t.Errorf("Storage = %+v", cfg.Storage)
	}
	if cfg.QueryLatency() != 0 || cfg.Query.FailureRate != 0.5 || !cfg.Query.RollbackOnTransient {
		t.Errorf("Query = %+v", cfg.Query)
	}
	if got := cfg.CollationTag().String(); got != "sv" {
		t.Errorf("CollationTag() = %v, want sv", got)
	}
	if !cfg.Conversion.LegacyPartialSuccess {
		t.Error("Conversion.LegacyPartialSuccess = false")
	}
	if cfg.Seed.Path != "/tmp/leads.json" {
		t.Errorf("Seed.Path = %q", cfg.Seed.Path)
	}
}

// TestEnvOverride verifies that environment variables override backend values.
func TestEnvOverride(t *testing.T) {
	t.Setenv("MINISELLER_SERVER_PORT", "6000")
	t.Setenv("MINISELLER_STORAGE_BACKEND", "memory")
	t.Setenv("MINISELLER_QUERY_FAILURE_RATE", "0")
	t.Setenv("MINISELLER_API_TOKEN", "env-token")

	secrets := &mockSecrets{value: "stored-token"}
	cfg, err := loadWith(mapBackend{"server.port": 5000}, secrets)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 6000 {
		t.Errorf("Server.Port = %d, want 6000", cfg.Server.Port)
	}
	if cfg.Storage.Backend != BackendMemory {
		t.Errorf("Storage.Backend = %q, want memory", cfg.Storage.Backend)
	}
	if cfg.Query.FailureRate != 0 {
		t.Errorf("Query.FailureRate = %v, want 0", cfg.Query.FailureRate)
	}
	if cfg.API.Token != "env-token" {
		t.Errorf("API.Token = %q, want env-token", cfg.API.Token)
	}
}

// accountSecrets answers per account, unlike mockSecrets.
type accountSecrets map[string]string

func (a accountSecrets) Get(service, account string) (string, error) {
	if v, ok := a[account]; ok {
		return v, nil
	}
	return "", errors.New("not found")
}

func (a accountSecrets) Set(service, account, value string) error {
	a[account] = value
	return nil
}

func TestRedisPassword(t *testing.T) {
	stored := accountSecrets{secretAPIAccount: "tok", secretRedisAcct: "from-store"}
	cfg, err := loadWith(mapBackend{"storage.redis_password": "from-file"}, stored)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Storage.RedisPassword != "from-store" {
		t.Errorf("RedisPassword = %q, want the secret store value", cfg.Storage.RedisPassword)
	}

	t.Setenv("MINISELLER_STORAGE_REDIS_PASSWORD", "from-env")
	cfg, err = loadWith(mapBackend{}, stored)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Storage.RedisPassword != "from-env" {
		t.Errorf("RedisPassword = %q, want from-env", cfg.Storage.RedisPassword)
	}

	if err := setKeyWith(mapBackend{}, "storage.redis_password", "x"); err == nil {
		t.Error("expected error setting a secret through config")
	}
}

// TestInvalidEnvIgnored verifies that unparsable env values keep the default.
func TestInvalidEnvIgnored(t *testing.T) {
	t.Setenv("MINISELLER_SERVER_PORT", "not-a-number")

	cfg, err := loadWith(mapBackend{}, &mockSecrets{value: "tok"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 4100 {
		t.Errorf("Server.Port = %d, want 4100", cfg.Server.Port)
	}
}

// TestTokenGenerated verifies a token is created and persisted when none exists.
func TestTokenGenerated(t *testing.T) {
	secrets := &mockSecrets{getErr: errors.New("no secrets file")}

	cfg, err := loadWith(mapBackend{}, secrets)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.API.Token) != 36 {
		t.Errorf("API.Token = %q, want a uuid", cfg.API.Token)
	}
	if secrets.set != cfg.API.Token {
		t.Errorf("stored token = %q, want %q", secrets.set, cfg.API.Token)
	}
}

func TestTokenStoreFailure(t *testing.T) {
	secrets := &mockSecrets{getErr: errors.New("missing"), setErr: errors.New("read-only")}

	if _, err := loadWith(mapBackend{}, secrets); err == nil {
		t.Fatal("expected error when the generated token cannot be stored")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*Config)
		want string
	}{
		{"backend", func(c *Config) { c.Storage.Backend = "postgres" }, "storage.backend"},
		{"failure rate", func(c *Config) { c.Query.FailureRate = 1.5 }, "query.failure_rate"},
		{"latency", func(c *Config) { c.Query.Latency = "soon" }, "query.latency"},
		{"negative latency", func(c *Config) { c.Query.Latency = "-1s" }, "query.latency"},
		{"port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"collation", func(c *Config) { c.Query.Collation = "!!" }, "query.collation"},
		{"log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"data dir", func(c *Config) { c.Storage.DataDir = "" }, "storage.data_dir"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaults()
			tt.mod(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to mention %q", err, tt.want)
			}
		})
	}

	if err := defaults().Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestSetKey(t *testing.T) {
	b := mapBackend{}

	if err := setKeyWith(b, "server.port", "4200"); err != nil {
		t.Fatal(err)
	}
	if err := setKeyWith(b, "query.rollback_on_transient", "true"); err != nil {
		t.Fatal(err)
	}
	if b["server.port"] != 4200 || b["query.rollback_on_transient"] != "true" {
		t.Errorf("backend = %v", b)
	}

	if err := setKeyWith(b, "server.port", "abc"); err == nil {
		t.Error("expected error for non-integer port")
	}
	if err := setKeyWith(b, "query.failure_rate", "lots"); err == nil {
		t.Error("expected error for non-float rate")
	}
	if err := setKeyWith(b, "api.token", "x"); err == nil {
		t.Error("expected error setting a secret")
	}
	if err := setKeyWith(b, "no.such.key", "x"); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestShowAllHidesSecrets(t *testing.T) {
	cfg := defaults()
	cfg.API.Token = "hidden"

	for _, ki := range ShowAll(cfg) {
		if ki.Key == "api.token" || ki.Value == "hidden" {
			t.Errorf("secret exposed: %+v", ki)
		}
	}
	if len(ShowAll(cfg)) != len(ValidKeys()) {
		t.Error("ShowAll and ValidKeys disagree")
	}
}
