// Package config loads a YAML simulation-run configuration, grounded on
// brianmickel-battery-backtest/internal/config's Load/LoadUnchecked/Validate
// shape: battery parameter validation there maps to car-following dynamics
// and signal-timeout validation here.
package config

import (
	"errors"
	"fmt"
	"os"

	"netrailsim/internal/model"

	"gopkg.in/yaml.v3"
)

// DynamicsConfig overrides model.DynamicsParams from file; its field names
// and types mirror DynamicsParams exactly so the two convert directly.
type DynamicsConfig struct {
	PerceptionReactionS float64 `yaml:"perception_reaction_s"`
	DesiredDecelMS2     float64 `yaml:"desired_decel_ms2"`
	MinGapM             float64 `yaml:"min_gap_m"`
	MinGapLeadingM      float64 `yaml:"min_gap_leading_m"`
	InitialGapM         float64 `yaml:"initial_gap_m"`
	MaxJerkMS3          float64 `yaml:"max_jerk_ms3"`
}

// Config is the on-disk configuration shape for one simulation run.
type Config struct {
	Dynamics                DynamicsConfig `yaml:"dynamics"`
	SignalTimeoutMultiplier float64        `yaml:"signal_timeout_multiplier"` // loaded and validated only; sim.NewSimulator always uses a 5Δt FIFO timeout and does not read it
	TimestepS               float64        `yaml:"timestep_s"`
}

// Default returns the NeTrainSim-calibrated defaults (model.DefaultDynamicsParams
// plus a 5Δt signal timeout and a 1s tick), used as the base a loaded file is
// unmarshalled on top of.
func Default() Config {
	return Config{
		Dynamics:                DynamicsConfig(model.DefaultDynamicsParams()),
		SignalTimeoutMultiplier: 5.0,
		TimestepS:               1.0,
	}
}

// Load reads, merges, and validates the configuration at path.
func Load(path string) (*Config, error) {
	c, err := LoadUnchecked(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadUnchecked reads and merges the configuration at path without
// validating it; useful for debugging/printing partial configs.
func LoadUnchecked(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	c := Default()
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &c, nil
}

// ToDynamicsParams converts the loaded dynamics overrides into the form
// internal/model.Train consumes.
func (c *Config) ToDynamicsParams() model.DynamicsParams {
	return model.DynamicsParams(c.Dynamics)
}

// Validate rejects non-positive calibration constants, the same role
// battery-backtest's Validate plays for battery parameters.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.TimestepS <= 0 {
		return errors.New("timestep_s must be positive")
	}
	if c.SignalTimeoutMultiplier <= 0 {
		return errors.New("signal_timeout_multiplier must be positive")
	}
	d := c.Dynamics
	if d.PerceptionReactionS <= 0 || d.DesiredDecelMS2 <= 0 || d.MinGapM <= 0 ||
		d.MinGapLeadingM <= 0 || d.InitialGapM <= 0 || d.MaxJerkMS3 <= 0 {
		return fmt.Errorf("dynamics: all calibration constants must be positive: %+v", d)
	}
	return nil
}
