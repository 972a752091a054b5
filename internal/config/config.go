// Package config handles converter configuration loading and management.
package config

import (
	"errors"
	"fmt"
)

// Configuration errors.
var (
	ErrMissingInput  = errors.New("no input file given (--input)")
	ErrMissingOutput = errors.New("no output file given (--output)")
)

// Config holds all converter settings.
type Config struct {
	Convert  ConvertConfig  `yaml:"convert"`
	Optimize OptimizeConfig `yaml:"optimize"`
	Logging  LoggingConfig  `yaml:"logging"`
	Report   ReportConfig   `yaml:"report"`
}

// ConvertConfig selects the input, the output and the optional outputs.
type ConvertConfig struct {
	Input       string `yaml:"input"`
	Output      string `yaml:"output"`
	Interleaved bool   `yaml:"interleaved"`
	Meshlets    bool   `yaml:"meshlets"`
	Tangents    bool   `yaml:"tangents"`
}

// OptimizeConfig holds mesh optimization settings.
type OptimizeConfig struct {
	OverdrawThreshold float32 `yaml:"overdraw_threshold"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	Format  string `yaml:"format"`
	LogFile string `yaml:"log_file"`
}

// ReportConfig holds build report settings.
type ReportConfig struct {
	Path string `yaml:"path"` // Empty disables the report
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Optimize: OptimizeConfig{
			OverdrawThreshold: 1.05,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// normalize forces interleaved output when no output layout was selected.
func (c *Config) normalize() {
	if !c.Convert.Interleaved && !c.Convert.Meshlets {
		c.Convert.Interleaved = true
	}
}

// Validate checks the settings a conversion needs.
func (c *Config) Validate() error {
	if c.Convert.Input == "" {
		return ErrMissingInput
	}
	if c.Convert.Output == "" {
		return ErrMissingOutput
	}
	if c.Optimize.OverdrawThreshold <= 0 {
		return fmt.Errorf("overdraw threshold must be positive, got %g", c.Optimize.OverdrawThreshold)
	}
	return nil
}
