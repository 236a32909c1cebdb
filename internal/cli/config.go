package cli

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the optional YAML configuration file. Every field has a flag
// counterpart; flags win when both are set.
type Config struct {
	// Database is the SQLite database path.
	Database string `yaml:"database"`

	// Types is the directory holding CUE document type definitions.
	Types string `yaml:"types"`

	// Tenant scopes every command. Empty selects the default tenant.
	Tenant string `yaml:"tenant,omitempty"`

	// BatchSize bounds commands per commit batch. Zero selects the
	// engine default.
	BatchSize int `yaml:"batch_size,omitempty"`
}

// LoadConfig reads and validates a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.BatchSize < 0 {
		return nil, fmt.Errorf("config %s: batch_size must not be negative", path)
	}
	return &cfg, nil
}

// ResolveConfig merges the config file (if any) with flag values. Flag
// values take precedence over file values.
func ResolveConfig(path, database, types, tenant string, batchSize int) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		loaded, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if database != "" {
		cfg.Database = database
	}
	if types != "" {
		cfg.Types = types
	}
	if tenant != "" {
		cfg.Tenant = tenant
	}
	if batchSize > 0 {
		cfg.BatchSize = batchSize
	}
	if cfg.Database == "" {
		return nil, NewExitError(ExitCommandError, "no database configured: pass --db or set database in the config file")
	}
	if cfg.Types == "" {
		return nil, NewExitError(ExitCommandError, "no type definitions configured: pass --types or set types in the config file")
	}
	return cfg, nil
}
