package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Reconcile  ReconcileConfig  `yaml:"reconcile" mapstructure:"reconcile"`
	Experiment ExperimentConfig `yaml:"experiment" mapstructure:"experiment"`
	Volume     VolumeConfig     `yaml:"volume" mapstructure:"volume"`
}

// StoreConfig configures the row store.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port         int      `yaml:"port" mapstructure:"port"`
	CORSOrigins  []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	RateLimitRPM int      `yaml:"rate_limit_rpm" mapstructure:"rate_limit_rpm"`
}

// ReconcileConfig bounds bulk updates.
type ReconcileConfig struct {
	MaxBatchSize int `yaml:"max_batch_size" mapstructure:"max_batch_size"`
	// ChunksPerSecond paces chunked file imports from the CLI. Zero disables pacing.
	ChunksPerSecond float64 `yaml:"chunks_per_second" mapstructure:"chunks_per_second"`
}

// ExperimentConfig holds the default comparison settings.
type ExperimentConfig struct {
	PrimaryMetric   string  `yaml:"primary_metric" mapstructure:"primary_metric"`
	Alpha           float64 `yaml:"alpha" mapstructure:"alpha"`
	MDE             float64 `yaml:"mde" mapstructure:"mde"`
	MinExposure     float64 `yaml:"min_exposure" mapstructure:"min_exposure"`
	Method          string  `yaml:"method" mapstructure:"method"`
	MonteCarloDraws int     `yaml:"monte_carlo_draws" mapstructure:"monte_carlo_draws"`
}

// VolumeConfig holds the default volume gate.
type VolumeConfig struct {
	Unit    string  `yaml:"unit" mapstructure:"unit"`
	Minimum float64 `yaml:"minimum" mapstructure:"minimum"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("HYPOLAB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{})
	v.SetDefault("server.rate_limit_rpm", 120)
	v.SetDefault("reconcile.max_batch_size", 5000)
	v.SetDefault("reconcile.chunks_per_second", 2)
	v.SetDefault("experiment.primary_metric", "ctr")
	v.SetDefault("experiment.alpha", 0.05)
	v.SetDefault("experiment.mde", 0.1)
	v.SetDefault("experiment.min_exposure", 1000)
	v.SetDefault("experiment.method", "auto")
	v.SetDefault("experiment.monte_carlo_draws", 3000)
	v.SetDefault("volume.unit", "videos")
	v.SetDefault("volume.minimum", 0)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the fields a command needs are present.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "serve":
		errs = append(errs, c.storeErrors()...)
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if c.Server.RateLimitRPM < 0 {
			errs = append(errs, "server.rate_limit_rpm must be >= 0")
		}
	case "store":
		errs = append(errs, c.storeErrors()...)
	case "reconcile":
		errs = append(errs, c.storeErrors()...)
		if c.Reconcile.MaxBatchSize <= 0 {
			errs = append(errs, "reconcile.max_batch_size must be > 0")
		}
		if c.Reconcile.ChunksPerSecond < 0 {
			errs = append(errs, "reconcile.chunks_per_second must be >= 0")
		}
	case "experiment":
		errs = append(errs, c.storeErrors()...)
		if c.Experiment.Alpha <= 0 || c.Experiment.Alpha >= 1 {
			errs = append(errs, "experiment.alpha must be in (0, 1)")
		}
		if c.Experiment.MonteCarloDraws <= 0 {
			errs = append(errs, "experiment.monte_carlo_draws must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.New("config: " + strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) storeErrors() []string {
	var errs []string
	switch c.Store.Driver {
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
	case "sqlite":
	default:
		errs = append(errs, "store.driver must be postgres or sqlite")
	}
	if c.Store.MinConns > c.Store.MaxConns && c.Store.MaxConns > 0 {
		errs = append(errs, "store.min_conns must be <= store.max_conns")
	}
	return errs
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
