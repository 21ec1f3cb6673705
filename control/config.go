// control/config.go
// Author: momentics <momentics@gmail.com>
//
// Process configuration for the module host, read from the environment.

package control

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds the runtime parameters of the module host.
type Config struct {
	// ModuleDir is the flat directory scanned for handler modules.
	ModuleDir string `env:"MODHOST_MODULE_DIR" envDefault:"./modules"`
	// Workers is the per-module worker pool size.
	Workers int `env:"MODHOST_WORKERS" envDefault:"4"`
	// DebugSignal enables the SIGUSR1 state dump.
	DebugSignal bool `env:"MODHOST_DEBUG_SIGNAL" envDefault:"true"`
}

// DefaultConfig returns the baseline configuration without consulting the environment.
func DefaultConfig() *Config {
	return &Config{
		ModuleDir:   "./modules",
		Workers:     4,
		DebugSignal: true,
	}
}

// LoadConfig parses the configuration from environment variables.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.ModuleDir == "" {
		return fmt.Errorf("module directory is empty")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	return nil
}
