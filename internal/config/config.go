// Package config provides configuration management for the simulator.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"

	"github.com/tylerautera/LEAPSfrog/internal/strategy"
)

const (
	// defaultMaxIterations bounds the simulation loop when unset.
	defaultMaxIterations = 120
	// defaultRequestTimeout is used when provider.timeout is unset.
	defaultRequestTimeout = 10 * time.Second

	dateLayout = "2006-01-02"
)

// Config represents the complete application configuration.
type Config struct {
	Environment EnvironmentConfig `yaml:"environment"`
	Provider    ProviderConfig    `yaml:"provider"`
	Simulation  SimulationConfig  `yaml:"simulation"`
	Leap        LeapConfig        `yaml:"leap"`
	CoveredCall CoveredCallConfig `yaml:"covered_call"`
	Output      OutputConfig      `yaml:"output"`
}

// EnvironmentConfig defines the runtime environment settings.
type EnvironmentConfig struct {
	LogLevel string `yaml:"log_level"` // debug | info | warn | error
}

// ProviderConfig defines market-data API settings.
type ProviderConfig struct {
	Token   string `yaml:"token"`
	BaseURL string `yaml:"base_url"`
	Timeout string `yaml:"timeout"`
}

// SimulationConfig defines which tickers to simulate and from when.
type SimulationConfig struct {
	Tickers       []string `yaml:"tickers"`
	StartDate     string   `yaml:"start_date"` // YYYY-MM-DD
	MaxIterations int      `yaml:"max_iterations"`
}

// LeapConfig defines the long-dated call entry criteria.
type LeapConfig struct {
	MinDaysToExpire       int     `yaml:"min_days_to_expire"`
	MinDelta              float64 `yaml:"min_delta"`
	MaxPercentToBreakEven float64 `yaml:"max_percent_to_break_even"`
}

// CoveredCallConfig defines the short call selling criteria.
type CoveredCallConfig struct {
	MinDaysToExpire          int     `yaml:"min_days_to_expire"`
	MinDelta                 float64 `yaml:"min_delta"`
	MaxDelta                 float64 `yaml:"max_delta"`
	MinPercentAboveBreakEven float64 `yaml:"min_percent_above_break_even"`
}

// OutputConfig defines where the finalized positions report is written.
type OutputConfig struct {
	Path string `yaml:"path"`
}

// Load reads and parses the configuration file from the specified path.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- configPath is a user-provided config file path
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables so the API token can stay out of the file
	expanded := os.ExpandEnv(string(data))

	var config Config
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(&config); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// Validate checks that all configuration values are valid and consistent.
func (c *Config) Validate() error {
	// Environment validation
	switch c.Environment.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("environment.log_level must be debug, info, warn or error")
	}

	// Provider validation
	if c.Provider.Token == "" {
		return fmt.Errorf("provider.token is required")
	}
	if c.Provider.Timeout != "" {
		if _, err := time.ParseDuration(c.Provider.Timeout); err != nil {
			return fmt.Errorf("provider.timeout invalid: %w", err)
		}
	}

	// Simulation validation
	if len(c.Simulation.Tickers) == 0 {
		return fmt.Errorf("simulation.tickers must list at least one symbol")
	}
	for _, ticker := range c.Simulation.Tickers {
		if ticker == "" {
			return fmt.Errorf("simulation.tickers must not contain empty symbols")
		}
	}
	if _, err := time.Parse(dateLayout, c.Simulation.StartDate); err != nil {
		return fmt.Errorf("simulation.start_date must be YYYY-MM-DD: %w", err)
	}
	if c.Simulation.MaxIterations < 0 {
		return fmt.Errorf("simulation.max_iterations must be >= 0")
	}

	// Selection criteria reuse the strategy-level validation
	if err := c.LeapStrategyConfig().Validate(); err != nil {
		return fmt.Errorf("leap: %w", err)
	}
	if err := c.CoveredCallStrategyConfig().Validate(); err != nil {
		return fmt.Errorf("covered_call: %w", err)
	}

	if c.Output.Path == "" {
		return fmt.Errorf("output.path is required")
	}

	return nil
}

// StartDate returns the parsed simulation start date. Validate must have
// passed.
func (c *Config) StartDate() time.Time {
	t, _ := time.Parse(dateLayout, c.Simulation.StartDate)
	return t
}

// MaxIterations returns the simulation loop bound, defaulted when unset.
func (c *Config) MaxIterations() int {
	if c.Simulation.MaxIterations > 0 {
		return c.Simulation.MaxIterations
	}
	return defaultMaxIterations
}

// RequestTimeout returns the provider HTTP timeout, defaulted when unset.
func (c *Config) RequestTimeout() time.Duration {
	if c.Provider.Timeout == "" {
		return defaultRequestTimeout
	}
	d, err := time.ParseDuration(c.Provider.Timeout)
	if err != nil {
		return defaultRequestTimeout
	}
	return d
}

// LeapStrategyConfig converts the yaml section into the selector's config.
func (c *Config) LeapStrategyConfig() strategy.LeapConfig {
	return strategy.LeapConfig{
		MinDaysToExpire:       c.Leap.MinDaysToExpire,
		MinDelta:              c.Leap.MinDelta,
		MaxPercentToBreakEven: c.Leap.MaxPercentToBreakEven,
	}
}

// CoveredCallStrategyConfig converts the yaml section into the engine's
// config.
func (c *Config) CoveredCallStrategyConfig() strategy.CoveredCallConfig {
	return strategy.CoveredCallConfig{
		MinDaysToExpire:          c.CoveredCall.MinDaysToExpire,
		MinDelta:                 c.CoveredCall.MinDelta,
		MaxDelta:                 c.CoveredCall.MaxDelta,
		MinPercentAboveBreakEven: c.CoveredCall.MinPercentAboveBreakEven,
	}
}
