// Package config loads and validates the tracker's tuning parameters.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for tuning parameters.
// Fields are pointers so that a partial JSON file leaves the omitted values
// at their defaults; the Get* methods apply those defaults.
type TuningConfig struct {
	// Classification params
	MovementThreshold  *float64 `json:"movement_threshold,omitempty"`  // units of acceleration
	SedentaryThreshold *string  `json:"sedentary_threshold,omitempty"` // duration string like "20s"
	TransitionWindow   *string  `json:"transition_window,omitempty"`   // duration string like "5s"
	SmoothingWindow    *int     `json:"smoothing_window,omitempty"`    // samples in the moving average
	TickInterval       *string  `json:"tick_interval,omitempty"`       // duration string like "100ms"

	// Serial port params
	SerialPort *string `json:"serial_port,omitempty"`
	BaudRate   *int    `json:"baud_rate,omitempty"`

	// Service params
	Listen *string `json:"listen,omitempty"`
	DBPath *string `json:"db_path,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from a file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. The file must have
// a .json extension and stay under the max file size. Fields omitted from the
// JSON retain their defaults, so partial configs are safe. An invalid
// configuration is rejected here, before the tick loop ever starts.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.MovementThreshold != nil && *c.MovementThreshold <= 0 {
		return fmt.Errorf("movement_threshold must be positive, got %f", *c.MovementThreshold)
	}

	if c.SedentaryThreshold != nil && *c.SedentaryThreshold != "" {
		d, err := time.ParseDuration(*c.SedentaryThreshold)
		if err != nil {
			return fmt.Errorf("invalid sedentary_threshold '%s': %w", *c.SedentaryThreshold, err)
		}
		if d <= 0 {
			return fmt.Errorf("sedentary_threshold must be positive, got %s", d)
		}
	}

	if c.TransitionWindow != nil && *c.TransitionWindow != "" {
		d, err := time.ParseDuration(*c.TransitionWindow)
		if err != nil {
			return fmt.Errorf("invalid transition_window '%s': %w", *c.TransitionWindow, err)
		}
		if d <= 0 {
			return fmt.Errorf("transition_window must be positive, got %s", d)
		}
	}

	if c.TickInterval != nil && *c.TickInterval != "" {
		d, err := time.ParseDuration(*c.TickInterval)
		if err != nil {
			return fmt.Errorf("invalid tick_interval '%s': %w", *c.TickInterval, err)
		}
		if d <= 0 {
			return fmt.Errorf("tick_interval must be positive, got %s", d)
		}
	}

	if c.SmoothingWindow != nil && *c.SmoothingWindow < 1 {
		return fmt.Errorf("smoothing_window must be at least 1, got %d", *c.SmoothingWindow)
	}

	if c.BaudRate != nil && *c.BaudRate <= 0 {
		return fmt.Errorf("baud_rate must be positive, got %d", *c.BaudRate)
	}

	return nil
}

// GetMovementThreshold returns the inertial trigger threshold or the default.
func (c *TuningConfig) GetMovementThreshold() float64 {
	if c.MovementThreshold == nil {
		return 0.5 // matches the firmware setting
	}
	return *c.MovementThreshold
}

// GetSedentaryThreshold parses and returns the alert threshold as a duration.
func (c *TuningConfig) GetSedentaryThreshold() time.Duration {
	return c.duration(c.SedentaryThreshold, 20*time.Second)
}

// GetTransitionWindow parses and returns the grace window as a duration.
func (c *TuningConfig) GetTransitionWindow() time.Duration {
	return c.duration(c.TransitionWindow, 5*time.Second)
}

// GetTickInterval parses and returns the sampling cadence as a duration.
func (c *TuningConfig) GetTickInterval() time.Duration {
	return c.duration(c.TickInterval, 100*time.Millisecond)
}

// GetSmoothingWindow returns the moving-average window size or the default.
func (c *TuningConfig) GetSmoothingWindow() int {
	if c.SmoothingWindow == nil {
		return 5
	}
	return *c.SmoothingWindow
}

// GetSerialPort returns the serial device path or the default.
func (c *TuningConfig) GetSerialPort() string {
	if c.SerialPort == nil || *c.SerialPort == "" {
		return "/dev/ttyACM0"
	}
	return *c.SerialPort
}

// GetBaudRate returns the serial baud rate or the default.
func (c *TuningConfig) GetBaudRate() int {
	if c.BaudRate == nil {
		return 9600
	}
	return *c.BaudRate
}

// GetListen returns the HTTP listen address or the default.
func (c *TuningConfig) GetListen() string {
	if c.Listen == nil || *c.Listen == "" {
		return ":8080"
	}
	return *c.Listen
}

// GetDBPath returns the sqlite database path or the default.
func (c *TuningConfig) GetDBPath() string {
	if c.DBPath == nil || *c.DBPath == "" {
		return "sedentary_tracker.db"
	}
	return *c.DBPath
}

func (c *TuningConfig) duration(field *string, fallback time.Duration) time.Duration {
	if field == nil || *field == "" {
		return fallback
	}
	d, err := time.ParseDuration(*field)
	if err != nil {
		return fallback
	}
	return d
}
