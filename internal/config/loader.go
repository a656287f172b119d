package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "lensmap"

	// EnvPrefix is the prefix for environment variables (LENSMAP_BAKE_WIDTH etc.).
	EnvPrefix = "LENSMAP"
)

// Loader handles loading configuration from files, environment variables and
// bound command-line flags, in the usual viper precedence order.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader on the global viper instance so that cobra flag
// bindings keep working.
func NewLoader() *Loader {
	return &Loader{v: viper.GetViper()}
}

// GetViper exposes the underlying viper, mainly for tests.
func (l *Loader) GetViper() *viper.Viper {
	return l.v
}

// Load reads configuration from all sources and validates the result.
func (l *Loader) Load() (*Config, error) {
	return l.load(true)
}

// LoadWithoutValidation reads configuration but skips validation; used where
// a later step (flag overrides, calibration file) completes the picture.
func (l *Loader) LoadWithoutValidation() (*Config, error) {
	return l.load(false)
}

func (l *Loader) load(validate bool) (*Config, error) {
	l.v.SetConfigName(ConfigFileName)
	l.v.SetConfigType("yaml")

	l.addConfigPaths()
	l.setupEnvironment()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults and env vars carry it.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	cfg := DefaultConfig()
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if validate {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("configuration validation failed: %w", err)
		}
	}
	return cfg, nil
}

// SetConfigFile points the loader at an explicit config file path.
func (l *Loader) SetConfigFile(path string) {
	l.v.SetConfigFile(path)
}

func (l *Loader) addConfigPaths() {
	l.v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		l.v.AddConfigPath(home)
		l.v.AddConfigPath(filepath.Join(home, ".config", "lensmap"))
	}
	l.v.AddConfigPath("/etc/lensmap")
}

func (l *Loader) setupEnvironment() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()
}

func (l *Loader) setDefaults() {
	def := DefaultConfig()

	l.v.SetDefault("log_level", def.LogLevel)
	l.v.SetDefault("verbose", def.Verbose)

	l.v.SetDefault("calibration.distorted_camera.fx", def.Calibration.Distorted.Fx)
	l.v.SetDefault("calibration.distorted_camera.fy", def.Calibration.Distorted.Fy)
	l.v.SetDefault("calibration.undistorted_camera.fx", def.Calibration.Undistorted.Fx)
	l.v.SetDefault("calibration.undistorted_camera.fy", def.Calibration.Undistorted.Fy)

	l.v.SetDefault("bake.width", def.Bake.Width)
	l.v.SetDefault("bake.height", def.Bake.Height)
	l.v.SetDefault("bake.grid_x", def.Bake.GridX)
	l.v.SetDefault("bake.grid_y", def.Bake.GridY)
	l.v.SetDefault("bake.workers", def.Bake.Workers)
	l.v.SetDefault("bake.exact_inverse", def.Bake.ExactInverse)

	l.v.SetDefault("output.file", def.Output.File)
	l.v.SetDefault("output.multiply", def.Output.Multiply)
	l.v.SetDefault("output.add", def.Output.Add)

	l.v.SetDefault("server.host", def.Server.Host)
	l.v.SetDefault("server.port", def.Server.Port)
	l.v.SetDefault("server.cors_origin", def.Server.CORSOrigin)
	l.v.SetDefault("server.max_body_mb", def.Server.MaxBodyMB)
	l.v.SetDefault("server.timeout_sec", def.Server.TimeoutSec)
	l.v.SetDefault("server.shutdown_timeout", def.Server.ShutdownTimeout)
}
