package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("BREACHSCAN_CONFIG", "")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, BackendMemory, cfg.StoreBackend)
	assert.Equal(t, 3*time.Second, cfg.ResolutionDelay)
	assert.Equal(t, 5*time.Second, cfg.StoreOpTimeout)
	assert.Equal(t, 10, cfg.Redis.PoolSize)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
addr: ":9090"
resolution_delay: 500ms
redis:
  pool_size: 42
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, 500*time.Millisecond, cfg.ResolutionDelay)
	assert.Equal(t, 42, cfg.Redis.PoolSize)
	// Untouched keys keep their defaults.
	assert.Equal(t, BackendMemory, cfg.StoreBackend)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("addr: \":9090\"\n"), 0o600))

	t.Setenv("BREACHSCAN_ADDR", ":7070")
	t.Setenv("BREACHSCAN_RESOLUTION_DELAY", "250ms")
	t.Setenv("REDIS_POOL_SIZE", "7")
	t.Setenv("BREACHSCAN_SEAL_KEY", "env-seal")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Addr)
	assert.Equal(t, 250*time.Millisecond, cfg.ResolutionDelay)
	assert.Equal(t, 7, cfg.Redis.PoolSize)
	assert.Equal(t, "env-seal", cfg.SealKey)
}

func TestLoad_MissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_IgnoresInvalidEnvDurations(t *testing.T) {
	t.Setenv("BREACHSCAN_CONFIG", "")
	t.Setenv("BREACHSCAN_RESOLUTION_DELAY", "not-a-duration")
	t.Setenv("REDIS_POOL_SIZE", "-3")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, cfg.ResolutionDelay)
	assert.Equal(t, 10, cfg.Redis.PoolSize)
}

func TestValidate(t *testing.T) {
	base := defaults()

	t.Run("redis needs url", func(t *testing.T) {
		cfg := base
		cfg.StoreBackend = BackendRedis
		assert.Error(t, cfg.Validate())
		cfg.Redis.URL = "redis://localhost:6379"
		assert.NoError(t, cfg.Validate())
	})

	t.Run("postgres needs url", func(t *testing.T) {
		cfg := base
		cfg.StoreBackend = BackendPostgres
		assert.Error(t, cfg.Validate())
		cfg.Postgres.URL = "postgres://localhost/breachscan"
		assert.NoError(t, cfg.Validate())
	})

	t.Run("unknown backend", func(t *testing.T) {
		cfg := base
		cfg.StoreBackend = "etcd"
		assert.Error(t, cfg.Validate())
	})

	t.Run("non-positive durations", func(t *testing.T) {
		cfg := base
		cfg.ResolutionDelay = 0
		assert.Error(t, cfg.Validate())

		cfg = base
		cfg.StoreOpTimeout = -time.Second
		assert.Error(t, cfg.Validate())
	})
}
