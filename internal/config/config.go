package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/language"
)

const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

const (
	secretService    = "miniseller"
	secretAPIAccount = "api_token"
	secretRedisAcct  = "redis_password"
)

type Config struct {
	Server     ServerConfig
	Storage    StorageConfig
	Query      QueryConfig
	Conversion ConversionConfig
	Seed       SeedConfig
	Log        LogConfig
	API        APIConfig
}

type ServerConfig struct {
	Port int
}

type StorageConfig struct {
	Backend     string
	DataDir     string
	RedisAddr   string
	RedisDB     int
	RedisPrefix string

	// RedisPassword comes from the env or the secret store, never the config file.
	RedisPassword string
}

type QueryConfig struct {
	Latency             string
	FailureRate         float64
	RollbackOnTransient bool
	Collation           string
}

type ConversionConfig struct {
	LegacyPartialSuccess bool
}

type SeedConfig struct {
	// Path to a JSON lead array. Empty uses the embedded dataset.
	Path string
}

type LogConfig struct {
	Level string
}

type APIConfig struct {
	Token string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4100,
		},
		Storage: StorageConfig{
			Backend:   BackendSQLite,
			DataDir:   defaultDataDir(),
			RedisAddr: "localhost:6379",
		},
		Query: QueryConfig{
			Latency:     "500ms",
			FailureRate: 0.05,
			Collation:   "en",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the platform-native backend, environment
// variables, and platform secret store.
//
// On macOS the backend is UserDefaults (domain: com.miniseller.app) and the
// API token lives in the Keychain.
// On Linux the backend is a JSON file at $XDG_CONFIG_HOME/mini-seller/config.json
// and the token is kept in $XDG_DATA_HOME/mini-seller/secrets.json.
//
// Environment variables (MINISELLER_*) override backend values on all platforms.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), platformSecrets{})
}

// secretStore abstracts Keychain access for testing.
type secretStore interface {
	Get(service, account string) (string, error)
	Set(service, account, value string) error
}

func loadWith(b ConfigBackend, ss secretStore) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if cfg.API.Token == "" {
		if tok, err := ss.Get(secretService, secretAPIAccount); err == nil && tok != "" {
			cfg.API.Token = tok
		}
	}
	if cfg.Storage.RedisPassword == "" {
		if pw, err := ss.Get(secretService, secretRedisAcct); err == nil {
			cfg.Storage.RedisPassword = pw
		}
	}
	if cfg.API.Token == "" {
		tok := uuid.New().String()
		if err := ss.Set(secretService, secretAPIAccount, tok); err != nil {
			return Config{}, fmt.Errorf("storing generated API token: %w", err)
		}
		cfg.API.Token = tok
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid value in cfg.
func (cfg Config) Validate() error {
	var errs []error

	switch cfg.Storage.Backend {
	case BackendSQLite, BackendMemory, BackendRedis:
	default:
		errs = append(errs, fmt.Errorf("storage.backend: unknown backend %q (want sqlite, memory or redis)", cfg.Storage.Backend))
	}
	if cfg.Storage.Backend == BackendSQLite && cfg.Storage.DataDir == "" {
		errs = append(errs, errors.New("storage.data_dir: required for the sqlite backend"))
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port: %d is out of range", cfg.Server.Port))
	}
	if d, err := time.ParseDuration(cfg.Query.Latency); err != nil {
		errs = append(errs, fmt.Errorf("query.latency: %w", err))
	} else if d < 0 {
		errs = append(errs, fmt.Errorf("query.latency: %s is negative", cfg.Query.Latency))
	}
	if cfg.Query.FailureRate < 0 || cfg.Query.FailureRate > 1 {
		errs = append(errs, fmt.Errorf("query.failure_rate: %v is outside [0, 1]", cfg.Query.FailureRate))
	}
	if _, err := language.Parse(cfg.Query.Collation); err != nil {
		errs = append(errs, fmt.Errorf("query.collation: %w", err))
	}
	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level: unknown level %q", cfg.Log.Level))
	}

	return errors.Join(errs...)
}

// QueryLatency returns the parsed query.latency. Call after Validate.
func (cfg Config) QueryLatency() time.Duration {
	d, _ := time.ParseDuration(cfg.Query.Latency)
	return d
}

// CollationTag returns the parsed query.collation, or English when it does
// not parse.
func (cfg Config) CollationTag() language.Tag {
	tag, err := language.Parse(cfg.Query.Collation)
	if err != nil {
		return language.English
	}
	return tag
}

// platformSecrets reads and writes the platform secret store.
type platformSecrets struct{}

func (platformSecrets) Get(service, account string) (string, error) {
	out, err := keychainGet(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func (platformSecrets) Set(service, account, value string) error {
	return keychainSet(service, account, value)
}
