package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/lensmap/internal/lens"
	"github.com/MeKo-Tech/lensmap/internal/mesh"
)

// Config is the complete configuration for the lensmap tool, shared by the
// generate, apply and serve commands. It loads from configuration files,
// environment variables and command-line flags.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// Lens calibration (coefficients + the two camera matrices)
	Calibration CalibrationConfig `mapstructure:"calibration" yaml:"calibration" json:"calibration"`

	// Bake pass settings
	Bake BakeConfig `mapstructure:"bake" yaml:"bake" json:"bake"`

	// Output settings
	Output OutputConfig `mapstructure:"output" yaml:"output" json:"output"`

	// Server settings (serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`
}

// CalibrationConfig carries the distortion coefficients and the intrinsics
// of the distorted and undistorted cameras. It is supplied externally by a
// calibration pipeline and validated here, never inside the numeric kernel.
type CalibrationConfig struct {
	Coefficients lens.Coefficients `mapstructure:"coefficients" yaml:"coefficients" json:"coefficients"`
	Distorted    lens.Intrinsics   `mapstructure:"distorted_camera" yaml:"distorted_camera" json:"distorted_camera"`
	Undistorted  lens.Intrinsics   `mapstructure:"undistorted_camera" yaml:"undistorted_camera" json:"undistorted_camera"`
}

// BakeConfig contains bake pass settings.
type BakeConfig struct {
	Width        int  `mapstructure:"width" yaml:"width" json:"width"`
	Height       int  `mapstructure:"height" yaml:"height" json:"height"`
	GridX        int  `mapstructure:"grid_x" yaml:"grid_x" json:"grid_x"`
	GridY        int  `mapstructure:"grid_y" yaml:"grid_y" json:"grid_y"`
	Workers      int  `mapstructure:"workers" yaml:"workers" json:"workers"`
	ExactInverse bool `mapstructure:"exact_inverse" yaml:"exact_inverse" json:"exact_inverse"`
}

// OutputConfig contains output settings, including the transform that packs
// signed displacements into the storage format's numeric range.
type OutputConfig struct {
	File     string  `mapstructure:"file" yaml:"file" json:"file"`
	Multiply float64 `mapstructure:"multiply" yaml:"multiply" json:"multiply"`
	Add      float64 `mapstructure:"add" yaml:"add" json:"add"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host" json:"host"`
	Port            int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxBodyMB       int64  `mapstructure:"max_body_mb" yaml:"max_body_mb" json:"max_body_mb"`
	TimeoutSec      int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// DefaultConfig returns the built-in defaults: a 512x512 bake over a 32x32
// grid with an untouched (multiply=1, add=0) output range.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Calibration: CalibrationConfig{
			Distorted:   lens.IdentityIntrinsics(),
			Undistorted: lens.IdentityIntrinsics(),
		},
		Bake: BakeConfig{
			Width:  512,
			Height: 512,
			GridX:  mesh.DefaultSubdivision,
			GridY:  mesh.DefaultSubdivision,
		},
		Output: OutputConfig{
			File:     "displacement.f32",
			Multiply: 1,
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxBodyMB:       10,
			TimeoutSec:      60,
			ShutdownTimeout: 10,
		},
	}
}

// Validate enforces the calibration/configuration boundary checks.
func (c *Config) Validate() error {
	if c.Bake.Width <= 0 || c.Bake.Height <= 0 {
		return fmt.Errorf("bake size must be positive, got %dx%d", c.Bake.Width, c.Bake.Height)
	}
	if c.Bake.GridX <= 0 || c.Bake.GridY <= 0 {
		return fmt.Errorf("grid subdivision must be positive, got %dx%d", c.Bake.GridX, c.Bake.GridY)
	}
	if err := c.Calibration.Distorted.CheckValid(); err != nil {
		return fmt.Errorf("distorted camera: %w", err)
	}
	if err := c.Calibration.Undistorted.CheckValid(); err != nil {
		return fmt.Errorf("undistorted camera: %w", err)
	}
	if c.Output.Multiply == 0 {
		return fmt.Errorf("output multiply must be nonzero")
	}
	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	return nil
}

// LoadCalibration reads a standalone calibration file (JSON or YAML by
// extension) into the config, overriding whatever the config sources set.
func (c *Config) LoadCalibration(path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: user-provided calibration path is expected
	if err != nil {
		return fmt.Errorf("reading calibration: %w", err)
	}

	var calib CalibrationConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, &calib); err != nil {
			return fmt.Errorf("parsing calibration JSON: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &calib); err != nil {
			return fmt.Errorf("parsing calibration YAML: %w", err)
		}
	default:
		return fmt.Errorf("unsupported calibration format %q (use .json or .yaml)", filepath.Ext(path))
	}

	c.Calibration = calib
	return nil
}

// RenderYAML renders the resolved configuration, for --print-config.
func (c *Config) RenderYAML() (string, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("rendering config: %w", err)
	}
	return string(out), nil
}
