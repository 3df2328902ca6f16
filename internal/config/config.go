// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads sbusctl settings from defaults, an optional YAML
// file and SBUSCTL_* environment variables, in that order.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

// Config represents the complete sbusctl configuration
type Config struct {
	Serial    SerialConfig    `yaml:"serial"`
	Bridge    BridgeConfig    `yaml:"bridge"`
	Sequence  SequenceConfig  `yaml:"sequence"`
	Indicator IndicatorConfig `yaml:"indicator"`
}

// SerialConfig holds the direct UART settings. Line parameters are fixed
// by SBUS and are not configurable.
type SerialConfig struct {
	Port string `yaml:"port"`
}

// BridgeConfig holds WebSocket serial bridge settings
type BridgeConfig struct {
	URL         string `yaml:"url"`
	Username    string `yaml:"username"`
	NoSSLVerify bool   `yaml:"noSslVerify"`
}

// SequenceConfig holds maneuver timing
type SequenceConfig struct {
	TickIntervalMs int `yaml:"tickIntervalMs"`
	StartDelaySec  int `yaml:"startDelaySec"`
}

// IndicatorConfig holds the status LED settings
type IndicatorConfig struct {
	LEDPath string `yaml:"ledPath"`
}

// TickInterval returns the frame interval as a duration
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Sequence.TickIntervalMs) * time.Millisecond
}

// StartDelay returns the pause before the first frame
func (c *Config) StartDelay() time.Duration {
	return time.Duration(c.Sequence.StartDelaySec) * time.Second
}

// Load loads configuration from filename (may be empty) and the environment.
// SBUSCTL_CONFIG names the file when filename is empty.
func Load(filename string) (*Config, error) {
	cfg := Default()

	if filename == "" {
		filename = os.Getenv("SBUSCTL_CONFIG")
	}
	if filename != "" {
		if err := loadFromFile(cfg, filename); err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", filename, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	// Port and URL exclusivity is left to Validate, after command line
	// flags had a chance to pick one
	if err := validateTiming(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Sequence: SequenceConfig{
			TickIntervalMs: 14, // nominal SBUS inter-frame spacing
			StartDelaySec:  3,
		},
	}
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(cfg *Config, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}

	return yaml.UnmarshalStrict(data, cfg)
}

// applyEnvOverrides applies SBUSCTL_* environment variables
func applyEnvOverrides(cfg *Config) error {
	// Either target replaces the other one from the file. Setting both is
	// left for Validate to reject.
	port := os.Getenv("SBUSCTL_PORT")
	url := os.Getenv("SBUSCTL_URL")
	if port != "" {
		cfg.Serial.Port = port
		if url == "" {
			cfg.Bridge.URL = ""
		}
	}
	if url != "" {
		cfg.Bridge.URL = url
		if port == "" {
			cfg.Serial.Port = ""
		}
	}

	if tick := os.Getenv("SBUSCTL_TICK_MS"); tick != "" {
		ms, err := strconv.Atoi(tick)
		if err != nil {
			return fmt.Errorf("invalid SBUSCTL_TICK_MS %q: %w", tick, err)
		}
		cfg.Sequence.TickIntervalMs = ms
	}

	if delay := os.Getenv("SBUSCTL_START_DELAY"); delay != "" {
		sec, err := strconv.Atoi(delay)
		if err != nil {
			return fmt.Errorf("invalid SBUSCTL_START_DELAY %q: %w", delay, err)
		}
		cfg.Sequence.StartDelaySec = sec
	}

	if led := os.Getenv("SBUSCTL_LED"); led != "" {
		cfg.Indicator.LEDPath = led
	}

	return nil
}

// Validate checks the configuration for values the sequencer cannot use
// and for conflicting connection targets
func Validate(cfg *Config) error {
	if err := validateTiming(cfg); err != nil {
		return err
	}
	if cfg.Serial.Port != "" && cfg.Bridge.URL != "" {
		return fmt.Errorf("serial port and bridge URL are mutually exclusive")
	}
	return nil
}

func validateTiming(cfg *Config) error {
	if cfg.Sequence.TickIntervalMs < 1 || cfg.Sequence.TickIntervalMs > 1000 {
		return fmt.Errorf("tick interval %d ms out of range (1-1000)", cfg.Sequence.TickIntervalMs)
	}
	if cfg.Sequence.StartDelaySec < 0 {
		return fmt.Errorf("start delay %d s must not be negative", cfg.Sequence.StartDelaySec)
	}
	return nil
}
