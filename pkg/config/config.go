// Package config loads and validates runtime configuration for the
// monitoring daemon.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults.
const (
	DefaultPollInterval   = 10 * time.Second
	DefaultRequestTimeout = 2 * time.Second
	DefaultInterface      = ""
)

// ErrNoPath indicates Load was called with an empty path.
var ErrNoPath = errors.New("config: no path given")

// Config is the daemon's runtime configuration.
type Config struct {
	// PollInterval is the per-terminus sensor polling cadence.
	PollInterval time.Duration `yaml:"poll_interval"`

	// RequestTimeout bounds each outstanding request.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// LogPath is the CBOR event log file. Empty disables file logging.
	LogPath string `yaml:"log_path"`

	// Interface restricts mDNS discovery to one network interface.
	// Empty browses all interfaces.
	Interface string `yaml:"interface"`

	// Simulator configures the in-process simulated termini used when
	// the daemon runs without real endpoints.
	Simulator SimulatorConfig `yaml:"simulator"`
}

// SimulatorConfig configures simulated termini.
type SimulatorConfig struct {
	// Enabled turns the simulator on.
	Enabled bool `yaml:"enabled"`

	// Termini is the number of simulated termini to create.
	Termini int `yaml:"termini"`

	// SensorsPerTerminus is the sensor count per simulated terminus.
	SensorsPerTerminus int `yaml:"sensors_per_terminus"`
}

// Default returns a configuration with all defaults applied.
func Default() Config {
	return Config{
		PollInterval:   DefaultPollInterval,
		RequestTimeout: DefaultRequestTimeout,
		Interface:      DefaultInterface,
		Simulator: SimulatorConfig{
			Termini:            1,
			SensorsPerTerminus: 4,
		},
	}
}

// Load reads a YAML config file, applies defaults for absent fields, and
// validates the result.
func Load(path string) (Config, error) {
	if path == "" {
		return Config{}, ErrNoPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks field ranges.
func (c Config) Validate() error {
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %v", c.PollInterval)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %v", c.RequestTimeout)
	}
	if c.Simulator.Enabled {
		if c.Simulator.Termini < 1 {
			return fmt.Errorf("simulator.termini must be at least 1, got %d", c.Simulator.Termini)
		}
		if c.Simulator.SensorsPerTerminus < 1 {
			return fmt.Errorf("simulator.sensors_per_terminus must be at least 1, got %d", c.Simulator.SensorsPerTerminus)
		}
	}
	return nil
}
