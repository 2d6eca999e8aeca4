package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Dispatch is the [dispatch] table: defaults for the command verbs. It is
// the part of the configuration that can change while running.
type Dispatch struct {
	ForwardSpeed   float64       `toml:"dispatch.forward_speed" env:"DISPATCH_FORWARD_SPEED"`
	DemoPower      float64       `toml:"dispatch.demo_power" env:"DISPATCH_DEMO_POWER"`
	DemoDuration   time.Duration `toml:"dispatch.demo_duration" env:"DISPATCH_DEMO_DURATION"`
	StrobeDuration time.Duration `toml:"dispatch.strobe_duration" env:"DISPATCH_STROBE_DURATION"`
	MaxDuration    time.Duration `toml:"dispatch.max_duration" env:"DISPATCH_MAX_DURATION"`
}

// DefaultDispatch returns the values used when nothing is configured.
func DefaultDispatch() Dispatch {
	return Dispatch{
		ForwardSpeed:   0.5,
		DemoPower:      0.5,
		DemoDuration:   10 * time.Second,
		StrobeDuration: 2 * time.Second,
		MaxDuration:    30 * time.Second,
	}
}

// Validate rejects speeds outside [0, 1] and non-positive durations.
func (d Dispatch) Validate() error {
	for name, v := range map[string]float64{"forward_speed": d.ForwardSpeed, "demo_power": d.DemoPower} {
		if v < 0 || v > 1 {
			return fmt.Errorf("dispatch.%s must be between 0 and 1, got %g", name, v)
		}
	}
	for name, v := range map[string]time.Duration{
		"demo_duration":   d.DemoDuration,
		"strobe_duration": d.StrobeDuration,
		"max_duration":    d.MaxDuration,
	} {
		if v <= 0 {
			return fmt.Errorf("dispatch.%s must be positive, got %s", name, v)
		}
	}
	return nil
}

// LoadDispatch reads the [dispatch] table from path on top of the defaults,
// then applies MARVIN_DISPATCH_* overrides. A missing file is not an error.
func LoadDispatch(path string) (Dispatch, error) {
	d := DefaultDispatch()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return d, err
	default:
		var raw map[string]any
		if err := toml.Unmarshal(data, &raw); err != nil {
			return d, fmt.Errorf("failed to parse TOML config: %w", err)
		}
		if err := applyTOML(&d, raw, nil); err != nil {
			return d, err
		}
	}

	if err := applyEnv(&d, nil); err != nil {
		return d, err
	}
	return d, d.Validate()
}
