package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Empty(t, cfg.Store.DatabaseURL)
	assert.Equal(t, int32(10), cfg.Store.MaxConns)
	assert.Equal(t, int32(2), cfg.Store.MinConns)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Empty(t, cfg.Server.CORSOrigins)
	assert.Equal(t, 120, cfg.Server.RateLimitRPM)
	assert.Equal(t, 5000, cfg.Reconcile.MaxBatchSize)
	assert.InDelta(t, 2, cfg.Reconcile.ChunksPerSecond, 0.001)
	assert.Equal(t, "ctr", cfg.Experiment.PrimaryMetric)
	assert.InDelta(t, 0.05, cfg.Experiment.Alpha, 0.0001)
	assert.InDelta(t, 0.1, cfg.Experiment.MDE, 0.0001)
	assert.InDelta(t, 1000, cfg.Experiment.MinExposure, 0.0001)
	assert.Equal(t, "auto", cfg.Experiment.Method)
	assert.Equal(t, 3000, cfg.Experiment.MonteCarloDraws)
	assert.Equal(t, "videos", cfg.Volume.Unit)
	assert.Zero(t, cfg.Volume.Minimum)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
  database_url: /tmp/hypolab.db
log:
  level: debug
  format: console
server:
  port: 9090
  cors_origins:
    - https://app.example.com
experiment:
  method: bayesian
  alpha: 0.01
volume:
  unit: sessions
  minimum: 50
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "/tmp/hypolab.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "bayesian", cfg.Experiment.Method)
	assert.InDelta(t, 0.01, cfg.Experiment.Alpha, 0.0001)
	assert.Equal(t, "sessions", cfg.Volume.Unit)
	assert.InDelta(t, 50, cfg.Volume.Minimum, 0.0001)
	// Defaults still apply for unset values
	assert.Equal(t, 5000, cfg.Reconcile.MaxBatchSize)
	assert.Equal(t, 3000, cfg.Experiment.MonteCarloDraws)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [unterminated"), 0644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("HYPOLAB_STORE_DRIVER", "postgres")
	t.Setenv("HYPOLAB_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("HYPOLAB_SERVER_PORT", "3000")
	t.Setenv("HYPOLAB_RECONCILE_MAX_BATCH_SIZE", "250")
	t.Setenv("HYPOLAB_EXPERIMENT_MDE", "0.2")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 250, cfg.Reconcile.MaxBatchSize)
	assert.InDelta(t, 0.2, cfg.Experiment.MDE, 0.0001)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "postgres"
	cfg.Store.DatabaseURL = "postgres://localhost/hypolab"
	cfg.Store.MaxConns = 10
	cfg.Store.MinConns = 2
	cfg.Server.Port = 8080
	cfg.Server.RateLimitRPM = 120
	cfg.Reconcile.MaxBatchSize = 5000
	cfg.Experiment.Alpha = 0.05
	cfg.Experiment.MonteCarloDraws = 3000
	return cfg
}

func TestValidate_AllModes(t *testing.T) {
	cfg := validDefaults()
	for _, mode := range []string{"serve", "store", "reconcile", "experiment"} {
		assert.NoError(t, cfg.Validate(mode), mode)
	}
}

func TestValidateStore_MissingURL(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.DatabaseURL = ""

	err := cfg.Validate("store")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")
}

func TestValidateStore_UnknownDriver(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "mysql"

	err := cfg.Validate("store")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver must be postgres or sqlite")
}

func TestValidateStore_ConnBounds(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.MinConns = 20

	err := cfg.Validate("store")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.min_conns must be <= store.max_conns")
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateReconcile_BatchSize(t *testing.T) {
	cfg := validDefaults()
	cfg.Reconcile.MaxBatchSize = 0
	cfg.Reconcile.ChunksPerSecond = -1

	err := cfg.Validate("reconcile")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "reconcile.max_batch_size must be > 0")
	assert.Contains(t, err.Error(), "reconcile.chunks_per_second must be >= 0")
}

func TestValidateExperiment_Bounds(t *testing.T) {
	cfg := validDefaults()
	cfg.Experiment.Alpha = 1
	cfg.Experiment.MonteCarloDraws = 0

	err := cfg.Validate("experiment")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "experiment.alpha must be in (0, 1)")
	assert.Contains(t, err.Error(), "experiment.monte_carlo_draws must be > 0")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
