package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kFloat
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "MINISELLER_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "storage.backend", typ: kString, env: "MINISELLER_STORAGE_BACKEND",
		apply:   func(cfg *Config, v any) { cfg.Storage.Backend = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.Backend },
	},
	{
		key: "storage.data_dir", typ: kString, env: "MINISELLER_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "storage.redis_addr", typ: kString, env: "MINISELLER_STORAGE_REDIS_ADDR",
		apply:   func(cfg *Config, v any) { cfg.Storage.RedisAddr = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.RedisAddr },
	},
	{
		key: "storage.redis_db", typ: kInt, env: "MINISELLER_STORAGE_REDIS_DB",
		apply:   func(cfg *Config, v any) { cfg.Storage.RedisDB = v.(int) },
		extract: func(cfg Config) any { return cfg.Storage.RedisDB },
	},
	{
		key: "storage.redis_prefix", typ: kString, env: "MINISELLER_STORAGE_REDIS_PREFIX",
		apply:   func(cfg *Config, v any) { cfg.Storage.RedisPrefix = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.RedisPrefix },
	},
	{
		key: "storage.redis_password", typ: kString, env: "MINISELLER_STORAGE_REDIS_PASSWORD",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Storage.RedisPassword = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.RedisPassword },
	},
	{
		key: "query.latency", typ: kString, env: "MINISELLER_QUERY_LATENCY",
		apply:   func(cfg *Config, v any) { cfg.Query.Latency = v.(string) },
		extract: func(cfg Config) any { return cfg.Query.Latency },
	},
	{
		key: "query.failure_rate", typ: kFloat, env: "MINISELLER_QUERY_FAILURE_RATE",
		apply:   func(cfg *Config, v any) { cfg.Query.FailureRate = v.(float64) },
		extract: func(cfg Config) any { return cfg.Query.FailureRate },
	},
	{
		key: "query.rollback_on_transient", typ: kBool, env: "MINISELLER_QUERY_ROLLBACK_ON_TRANSIENT",
		apply:   func(cfg *Config, v any) { cfg.Query.RollbackOnTransient = v.(bool) },
		extract: func(cfg Config) any { return cfg.Query.RollbackOnTransient },
	},
	{
		key: "query.collation", typ: kString, env: "MINISELLER_QUERY_COLLATION",
		apply:   func(cfg *Config, v any) { cfg.Query.Collation = v.(string) },
		extract: func(cfg Config) any { return cfg.Query.Collation },
	},
	{
		key: "conversion.legacy_partial_success", typ: kBool, env: "MINISELLER_CONVERSION_LEGACY_PARTIAL_SUCCESS",
		apply:   func(cfg *Config, v any) { cfg.Conversion.LegacyPartialSuccess = v.(bool) },
		extract: func(cfg Config) any { return cfg.Conversion.LegacyPartialSuccess },
	},
	{
		key: "seed.path", typ: kString, env: "MINISELLER_SEED_PATH",
		apply:   func(cfg *Config, v any) { cfg.Seed.Path = v.(string) },
		extract: func(cfg Config) any { return cfg.Seed.Path },
	},
	{
		key: "log.level", typ: kString, env: "MINISELLER_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "api.token", typ: kString, env: "MINISELLER_API_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.API.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.API.Token },
	},
}

// parse converts a raw string into the Go type the key expects.
func (s keySpec) parse(raw string) (any, error) {
	switch s.typ {
	case kInt:
		return strconv.Atoi(raw)
	case kBool:
		return strconv.ParseBool(raw)
	case kFloat:
		return strconv.ParseFloat(raw, 64)
	default:
		return raw, nil
	}
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		if s.typ == kInt {
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
			continue
		}

		raw, ok, err := b.GetString(s.key)
		if err != nil {
			return fmt.Errorf("reading %s: %w", s.key, err)
		}
		if !ok || (raw == "" && s.typ != kString) {
			continue
		}
		v, err := s.parse(raw)
		if err != nil {
			warnf("could not parse config key %s=%q: %v. Using default value.", s.key, raw, err)
			continue
		}
		s.apply(cfg, v)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		raw := os.Getenv(s.env)
		if s.env == "" || raw == "" {
			continue
		}
		v, err := s.parse(raw)
		if err != nil {
			warnf("could not parse env var %s=%q: %v. Using default value.", s.env, raw, err)
			continue
		}
		s.apply(cfg, v)
	}
}

func warnf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "[WARN] "+format+"\n", args...)
}
