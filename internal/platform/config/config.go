// Package config loads service configuration. Defaults come first, an
// optional YAML file (BREACHSCAN_CONFIG) overrides them via koanf, and
// environment variables win over both so deployments stay twelve-factor.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// StoreBackend selects which key-value adapter backs the registry.
type StoreBackend string

const (
	BackendMemory   StoreBackend = "memory"
	BackendRedis    StoreBackend = "redis"
	BackendPostgres StoreBackend = "postgres"
)

// Config holds all configuration values for the scan registry service.
type Config struct {
	Addr          string       `koanf:"addr"`
	StoreBackend  StoreBackend `koanf:"store_backend"`
	JWTSigningKey string       `koanf:"jwt_signing_key"`
	SealKey       string       `koanf:"seal_key"`

	// External store behaviour
	StoreOpTimeout  time.Duration `koanf:"store_op_timeout"`
	ResolutionDelay time.Duration `koanf:"resolution_delay"`
	StatusWindow    time.Duration `koanf:"status_window"`

	// Breach corpus seeded into the matcher at startup.
	CorpusPath string `koanf:"corpus_path"`

	Redis    RedisConfig `koanf:"redis"`
	Postgres PGConfig    `koanf:"postgres"`
}

// RedisConfig captures go-redis connection settings.
type RedisConfig struct {
	URL          string        `koanf:"url"`
	PoolSize     int           `koanf:"pool_size"`
	MinIdleConns int           `koanf:"min_idle_conns"`
	DialTimeout  time.Duration `koanf:"dial_timeout"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

// PGConfig captures the Postgres DSN for the SQL-backed adapter.
type PGConfig struct {
	URL string `koanf:"url"`
}

func defaults() Config {
	return Config{
		Addr:            ":8080",
		StoreBackend:    BackendMemory,
		JWTSigningKey:   "dev-secret-key-change-in-production",
		SealKey:         "dev-seal-key-change-in-production",
		StoreOpTimeout:  5 * time.Second,
		ResolutionDelay: 3 * time.Second,
		StatusWindow:    3 * time.Second,
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
	}
}

// Load builds the effective configuration. The file path argument is optional;
// when empty, BREACHSCAN_CONFIG is consulted.
func Load(path string) (Config, error) {
	cfg := defaults()

	if path == "" {
		path = os.Getenv("BREACHSCAN_CONFIG")
	}
	if path != "" {
		k := koanf.New(".")
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
		if err := k.Unmarshal("", &cfg); err != nil {
			return Config{}, fmt.Errorf("unmarshal config file %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv lets individual environment variables override file values so
// secrets never need to live in the YAML.
func applyEnv(cfg *Config) {
	if v := os.Getenv("BREACHSCAN_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("BREACHSCAN_STORE_BACKEND"); v != "" {
		cfg.StoreBackend = StoreBackend(v)
	}
	if v := os.Getenv("JWT_SIGNING_KEY"); v != "" {
		cfg.JWTSigningKey = v
	}
	if v := os.Getenv("BREACHSCAN_SEAL_KEY"); v != "" {
		cfg.SealKey = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("REDIS_POOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Redis.PoolSize = n
		}
	}
	if v := os.Getenv("POSTGRES_URL"); v != "" {
		cfg.Postgres.URL = v
	}
	if v := os.Getenv("BREACHSCAN_RESOLUTION_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.ResolutionDelay = d
		}
	}
	if v := os.Getenv("BREACHSCAN_STORE_OP_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.StoreOpTimeout = d
		}
	}
	if v := os.Getenv("BREACHSCAN_CORPUS_PATH"); v != "" {
		cfg.CorpusPath = v
	}
}

// Validate rejects configurations that would fail at first use.
func (c Config) Validate() error {
	switch c.StoreBackend {
	case BackendMemory:
	case BackendRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("store_backend=redis requires REDIS_URL")
		}
	case BackendPostgres:
		if c.Postgres.URL == "" {
			return fmt.Errorf("store_backend=postgres requires POSTGRES_URL")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.StoreBackend)
	}
	if c.ResolutionDelay <= 0 {
		return fmt.Errorf("resolution_delay must be positive")
	}
	if c.StoreOpTimeout <= 0 {
		return fmt.Errorf("store_op_timeout must be positive")
	}
	return nil
}
