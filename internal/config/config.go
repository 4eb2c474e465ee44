// Package config loads the tool configuration: logging, metrics listener,
// run ledger and report options. Test parameters live in package params.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the environment variable consulted when no path is given.
const EnvConfigPath = "HLASERVICES_CONFIG"

// Config is the hlaservices tool configuration.
type Config struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Store   StoreConfig   `yaml:"store"`
	Report  ReportConfig  `yaml:"report"`
	Monitor MonitorConfig `yaml:"monitor"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// MetricsConfig controls the Prometheus listener. An empty address disables it.
type MetricsConfig struct {
	Address string `yaml:"address"`
}

// StoreConfig controls the SQLite run ledger. An empty path disables it.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// ReportConfig controls report output.
type ReportConfig struct {
	// Summary also writes the JSON summary next to the text reports.
	Summary bool `yaml:"summary"`
}

// MonitorConfig tunes the event loop.
type MonitorConfig struct {
	QueueCapacityHint int `yaml:"queueCapacityHint"`
}

// Load reads the configuration at path, or at $HLASERVICES_CONFIG when path
// is empty. With neither set the defaults apply. Environment overrides are
// applied last. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := decode(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Logging: LoggingConfig{Level: "info"},
		Report:  ReportConfig{Summary: true},
		Monitor: MonitorConfig{QueueCapacityHint: 64},
	}
}

// Validate rejects values no component can use.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid logging.level %q", c.Logging.Level)
	}
	if c.Monitor.QueueCapacityHint < 0 {
		return fmt.Errorf("monitor.queueCapacityHint must not be negative")
	}
	return nil
}

func decode(data []byte, cfg *Config) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HLASERVICES_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("HLASERVICES_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("HLASERVICES_METRICS_ADDRESS"); v != "" {
		cfg.Metrics.Address = v
	}
	if v := os.Getenv("HLASERVICES_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("HLASERVICES_REPORT_SUMMARY"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Report.Summary = b
		}
	}
}
