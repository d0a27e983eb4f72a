// Package config loads optdemo settings from TOML or YAML files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config holds the complete CLI configuration.
type Config struct {
	General GeneralConfig `toml:"general" yaml:"general"`
	Run     RunConfig     `toml:"run" yaml:"run"`
	Mayfly  MayflyConfig  `toml:"mayfly" yaml:"mayfly"`
}

// GeneralConfig holds process-wide settings.
type GeneralConfig struct {
	DataDir  string `toml:"data_dir" yaml:"data_dir"`
	LogLevel string `toml:"log_level" yaml:"log_level"`
}

// RunConfig holds the options every solver recognises. Unused options are
// ignored by solvers they do not apply to.
type RunConfig struct {
	Method        string    `toml:"method" yaml:"method"`
	MaxIterations int       `toml:"max_iterations" yaml:"max_iterations"`
	Tau           float64   `toml:"tau" yaml:"tau"`
	Eps           float64   `toml:"eps" yaml:"eps"`
	Beta          float64   `toml:"beta" yaml:"beta"`
	MaxShrink     int       `toml:"max_shrink" yaml:"max_shrink"`
	Tol           float64   `toml:"tol" yaml:"tol"`
	GradTol       float64   `toml:"grad_tol" yaml:"grad_tol"`
	Start         []float64 `toml:"start" yaml:"start"`
	Plot          bool      `toml:"plot" yaml:"plot"`
	Seed          int64     `toml:"seed" yaml:"seed"`
	Noise         float64   `toml:"noise" yaml:"noise"`
	WarmStart     bool      `toml:"warm_start" yaml:"warm_start"`

	// Patience > 0 stops descent after that many iterations whose relative
	// decrease of f stays below StallThreshold.
	Patience       int     `toml:"patience" yaml:"patience"`
	StallThreshold float64 `toml:"stall_threshold" yaml:"stall_threshold"`
}

// MayflyConfig configures the derivative-free baseline.
type MayflyConfig struct {
	Iterations int     `toml:"iterations" yaml:"iterations"`
	Population int     `toml:"population" yaml:"population"`
	Radius     float64 `toml:"radius" yaml:"radius"`
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads a configuration file. The format follows the extension:
// .toml, or .yaml/.yml.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}

	cfg.expandEnvVars()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.General.DataDir == "" {
		c.General.DataDir = "./data"
	}
	if c.General.LogLevel == "" {
		c.General.LogLevel = "info"
	}

	if c.Run.Method == "" {
		c.Run.Method = "gd"
	}
	if c.Run.MaxIterations == 0 {
		c.Run.MaxIterations = 100
	}
	if c.Run.Tau == 0 {
		c.Run.Tau = 0.1
	}
	if c.Run.Eps == 0 {
		c.Run.Eps = 1e-4
	}
	if c.Run.Beta == 0 {
		c.Run.Beta = 0.8
	}
	if c.Run.Tol == 0 {
		c.Run.Tol = 1e-5
	}
	if c.Run.StallThreshold == 0 {
		c.Run.StallThreshold = 1e-9
	}
	if c.Run.Seed == 0 {
		c.Run.Seed = 42
	}

	if c.Mayfly.Iterations == 0 {
		c.Mayfly.Iterations = 200
	}
	if c.Mayfly.Population == 0 {
		c.Mayfly.Population = 20
	}
	if c.Mayfly.Radius == 0 {
		c.Mayfly.Radius = 5
	}
}

func (c *Config) expandEnvVars() {
	c.General.DataDir = os.ExpandEnv(c.General.DataDir)
}

// Validate rejects values no solver can work with.
func (c *Config) Validate() error {
	switch {
	case c.Run.MaxIterations < 0:
		return &ValidationError{Field: "run.max_iterations", Reason: "cannot be negative"}
	case c.Run.Beta <= 0 || c.Run.Beta >= 1:
		return &ValidationError{Field: "run.beta", Reason: "must be in (0, 1)"}
	case c.Run.Eps <= 0:
		return &ValidationError{Field: "run.eps", Reason: "must be positive"}
	case c.Run.Tol < 0 || c.Run.GradTol < 0:
		return &ValidationError{Field: "run.tol", Reason: "cannot be negative"}
	case c.Run.Patience < 0:
		return &ValidationError{Field: "run.patience", Reason: "cannot be negative"}
	case c.Run.StallThreshold < 0:
		return &ValidationError{Field: "run.stall_threshold", Reason: "cannot be negative"}
	case c.Run.MaxShrink < 0:
		return &ValidationError{Field: "run.max_shrink", Reason: "cannot be negative"}
	case c.Mayfly.Population < 20:
		return &ValidationError{Field: "mayfly.population", Reason: "must be at least 20"}
	}
	return nil
}

// ValidationError reports an invalid configuration value.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid config: " + e.Field + " " + e.Reason
}
