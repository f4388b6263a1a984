package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/xraph/anvil/internal/errors"
	"github.com/xraph/anvil/internal/logger"
)

// Config is the runtime configuration for a container and its transaction
// manager.
type Config struct {
	Logging      logger.LoggingConfig `yaml:"logging"`
	DataSource   DataSourceConfig     `yaml:"datasource"`
	Container    ContainerConfig      `yaml:"container"`
	Transactions TransactionConfig    `yaml:"transactions"`
	Metrics      MetricsConfig        `yaml:"metrics"`
	Tracing      TracingConfig        `yaml:"tracing"`
	Server       ServerConfig         `yaml:"server"`
}

// DataSourceConfig describes the single relational connection source.
type DataSourceConfig struct {
	Driver          string        `yaml:"driver"`
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	// AcquireTimeout bounds how long Begin waits for a connection. Zero
	// means wait for as long as the caller's context allows.
	AcquireTimeout time.Duration `yaml:"acquire_timeout"`
}

// ContainerConfig controls container bring-up.
type ContainerConfig struct {
	// ValidateGraph runs the static dependency graph check before eager
	// instantiation.
	ValidateGraph bool `yaml:"validate_graph"`
	// StartTimeout bounds Start of the whole container. Zero disables it.
	StartTimeout time.Duration `yaml:"start_timeout"`
}

// TransactionConfig holds transaction defaults.
type TransactionConfig struct {
	// DefaultTimeout applies to transactional methods that declare none.
	DefaultTimeout time.Duration `yaml:"default_timeout"`
	// ValidateArguments checks the struct arguments of intercepted calls
	// against their validate tags before a transaction begins.
	ValidateArguments bool `yaml:"validate_arguments"`
}

// MetricsConfig controls prometheus collectors.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
	Path      string `yaml:"path"`
}

// TracingConfig controls span export for transactional invocations.
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
	Environment string `yaml:"environment"`
	// Exporter is "otlp" (OTLP over HTTP) or "jaeger".
	Exporter string            `yaml:"exporter"`
	Endpoint string            `yaml:"endpoint"`
	Insecure bool              `yaml:"insecure"`
	Headers  map[string]string `yaml:"headers"`
	// SampleRatio is the fraction of root spans kept, from 0 to 1.
	SampleRatio float64 `yaml:"sample_ratio"`
}

// ServerConfig is only used by the demo binary.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// DefaultConfig returns the configuration used when no file overrides it.
func DefaultConfig() *Config {
	return &Config{
		Logging: logger.LoggingConfig{
			Level:       "info",
			Format:      "console",
			Environment: "development",
		},
		DataSource: DataSourceConfig{
			Driver:          "postgres",
			MaxOpenConns:    20,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			ConnMaxIdleTime: 10 * time.Minute,
			AcquireTimeout:  30 * time.Second,
		},
		Container: ContainerConfig{
			ValidateGraph: true,
		},
		Transactions: TransactionConfig{
			ValidateArguments: true,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "anvil",
			Path:      "/metrics",
		},
		Tracing: TracingConfig{
			ServiceName: "anvil",
			Environment: "development",
			Exporter:    "otlp",
			SampleRatio: 1,
		},
		Server: ServerConfig{
			Address: ":8080",
		},
	}
}

// LoadEnvFiles loads .env style files into the process environment. Missing
// files are skipped; variables already set are not overridden.
func LoadEnvFiles(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return errors.ErrConfigError("failed to load env file "+f, err)
		}
	}
	return nil
}

// Load reads a YAML file on top of DefaultConfig. ${VAR} references are
// expanded from the environment. A sibling "<name>.local.yaml" is applied
// afterwards when present.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if err := mergeFile(cfg, path, true); err != nil {
		return nil, err
	}
	if err := mergeFile(cfg, localPath(path), false); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML bytes on top of DefaultConfig without touching the
// filesystem.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
		return nil, errors.ErrConfigError("failed to parse config", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func mergeFile(cfg *Config, path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if !required && os.IsNotExist(err) {
			return nil
		}
		return errors.ErrConfigError("failed to read config file "+path, err)
	}

	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
		return errors.ErrConfigError("failed to parse config file "+path, err)
	}
	return nil
}

func localPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".local" + ext
}

// Validate checks the configuration for values the runtime cannot work with.
func (c *Config) Validate() error {
	if c.DataSource.MaxOpenConns < 0 || c.DataSource.MaxIdleConns < 0 {
		return errors.ErrConfigError("datasource pool sizes must not be negative", nil)
	}
	if c.DataSource.MaxOpenConns > 0 && c.DataSource.MaxIdleConns > c.DataSource.MaxOpenConns {
		return errors.ErrConfigError(
			fmt.Sprintf("datasource.max_idle_conns (%d) exceeds max_open_conns (%d)",
				c.DataSource.MaxIdleConns, c.DataSource.MaxOpenConns), nil)
	}
	if c.DataSource.AcquireTimeout < 0 || c.Transactions.DefaultTimeout < 0 || c.Container.StartTimeout < 0 {
		return errors.ErrConfigError("timeouts must not be negative", nil)
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return errors.ErrConfigError("tracing.sample_ratio must be between 0 and 1", nil)
	}
	if c.Tracing.Enabled {
		switch c.Tracing.Exporter {
		case "otlp", "jaeger":
		default:
			return errors.ErrConfigError(fmt.Sprintf("unsupported tracing exporter %q", c.Tracing.Exporter), nil)
		}
		if c.Tracing.Endpoint == "" {
			return errors.ErrConfigError("tracing.endpoint is required when tracing is enabled", nil)
		}
	}
	if c.Metrics.Enabled && c.Metrics.Path != "" && !strings.HasPrefix(c.Metrics.Path, "/") {
		return errors.ErrConfigError("metrics.path must start with '/'", nil)
	}
	return nil
}
