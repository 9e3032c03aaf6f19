// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/sebinsphilip/LowPowerWN-IOT/pkg/types"
)

// Config holds the settings of one analysis run
type Config struct {
	Mode     string `yaml:"mode"`      // simulation or testbed
	LogLevel string `yaml:"log_level"` // logrus level name
	Timezone string `yaml:"timezone"`  // IANA zone of testbed timestamps, "Local" by default

	Output  OutputConfig  `yaml:"output"`
	Archive ArchiveConfig `yaml:"archive"`

	// Addresses extends the built-in Firefly address table
	Addresses map[string]int `yaml:"addresses,omitempty"`
}

// OutputConfig selects the optional outputs written next to the log
type OutputConfig struct {
	Parquet bool `yaml:"parquet"`
	Summary bool `yaml:"summary"`
}

// ArchiveConfig describes the optional SQL archive of a run
type ArchiveConfig struct {
	Driver string `yaml:"driver"` // duckdb or sqlite3
	DSN    string `yaml:"dsn"`    // empty disables archiving
}

// Enabled reports whether runs should be archived
func (a ArchiveConfig) Enabled() bool {
	return a.DSN != ""
}

// DefaultConfig returns the configuration used without a config file
func DefaultConfig() *Config {
	return &Config{
		Mode:     types.ModeSimulation.String(),
		LogLevel: "info",
		Timezone: "Local",
		Archive: ArchiveConfig{
			Driver: "duckdb",
		},
	}
}

// Load reads a YAML file on top of DefaultConfig
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks every field that is parsed later on
func (c *Config) Validate() error {
	if _, err := c.ParsedMode(); err != nil {
		return err
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level: %w", err)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	switch c.Archive.Driver {
	case "duckdb", "sqlite3":
	default:
		return fmt.Errorf("unsupported archive driver %q", c.Archive.Driver)
	}
	for addr, id := range c.Addresses {
		if id <= 0 {
			return fmt.Errorf("address %s: node id must be positive, got %d", addr, id)
		}
	}
	return nil
}

// ParsedMode returns Mode as a types.Mode
func (c *Config) ParsedMode() (types.Mode, error) {
	return types.ParseMode(c.Mode)
}

// Location resolves Timezone
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone: %w", err)
	}
	return loc, nil
}
