// Package camera opens the capture device and hands out frames to the
// stream loop.
package camera

import (
	"strconv"
	"strings"
)

// Config holds capture settings. They are applied once when the device is
// opened; the driver may pick the nearest mode it supports.
type Config struct {
	// Device is a camera index ("0") or a file path / stream URL.
	Device string `json:"device"`

	// === Resolution ===
	Width     int `json:"width"`     // Requested frame width in pixels (0 = driver default)
	Height    int `json:"height"`    // Requested frame height in pixels (0 = driver default)
	Framerate int `json:"framerate"` // Requested FPS (0 = driver default)

	// Quality is the JPEG quality used for the stream, 1-100.
	Quality int `json:"quality"`
}

// Limits for requested capture modes.
const (
	MaxWidth     = 4096
	MaxHeight    = 2160
	MaxFramerate = 120
)

// DefaultConfig returns the configuration used when nothing is specified:
// the first camera at 640x480.
func DefaultConfig() Config {
	return Config{
		Device:    "0",
		Width:     640,
		Height:    480,
		Framerate: 30,
		Quality:   80,
	}
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if strings.TrimSpace(c.Device) == "" {
		errors = append(errors, "device must not be empty")
	}

	// Resolution
	if c.Width != 0 && (c.Width < 160 || c.Width > MaxWidth) {
		errors = append(errors, "width must be 0 (driver default) or between 160 and 4096")
	}
	if c.Height != 0 && (c.Height < 120 || c.Height > MaxHeight) {
		errors = append(errors, "height must be 0 (driver default) or between 120 and 2160")
	}
	if c.Framerate < 0 || c.Framerate > MaxFramerate {
		errors = append(errors, "framerate must be between 0 and 120")
	}
	if c.Quality < 1 || c.Quality > 100 {
		errors = append(errors, "quality must be between 1 and 100")
	}

	return errors
}

// DeviceIndex reports whether Device names a camera index.
func (c *Config) DeviceIndex() (int, bool) {
	id, err := strconv.Atoi(strings.TrimSpace(c.Device))
	if err != nil || id < 0 {
		return 0, false
	}
	return id, true
}
