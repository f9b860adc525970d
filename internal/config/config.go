// Package config loads the daemon configuration file. Options that used
// to live in process-wide mutable flags (LED flicker, report rate) are
// carried here and passed explicitly into the devices that need them.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the daemon configuration. The zero value is usable.
type Config struct {
	LogLevel string `yaml:"log_level"`

	Rift RiftConfig `yaml:"rift"`

	// Serials restricts bring-up to the listed device serial numbers.
	// Empty means every recognized device.
	Serials []string `yaml:"serials"`
}

// RiftConfig holds Rift-specific tuning.
type RiftConfig struct {
	// Flicker enables the auto-incrementing LED blink pattern used for
	// optical identification. Off means all LEDs stay lit.
	Flicker bool `yaml:"flicker"`

	// ReportRate is the requested sensor report rate in Hz. The device
	// clamps it to [5, sample_rate]. Zero means the default.
	ReportRate int `yaml:"report_rate"`
}

// DefaultReportRate is requested when the config leaves it unset.
const DefaultReportRate = 500

// Load reads a YAML config file. A missing path yields defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// ReportRateOrDefault returns the configured rate or the default.
func (c *RiftConfig) ReportRateOrDefault() int {
	if c.ReportRate > 0 {
		return c.ReportRate
	}
	return DefaultReportRate
}

// WantsSerial reports whether the device serial passes the allowlist.
func (c *Config) WantsSerial(serial string) bool {
	if len(c.Serials) == 0 {
		return true
	}
	for _, s := range c.Serials {
		if s == serial {
			return true
		}
	}
	return false
}
