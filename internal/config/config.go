// Package config handles editor configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Config errors.
var (
	ErrInvalidTickRate  = errors.New("tick rate must be positive")
	ErrInvalidTolerance = errors.New("animation tolerance must be positive")
	ErrInvalidDelay     = errors.New("schematic block spawn delay must be finite")
	ErrMissingAddr      = errors.New("server address is required")
	ErrMissingAppName   = errors.New("storage app name is required")
	ErrInvalidLogLevel  = errors.New("unknown log level")
	ErrInvalidLogFormat = errors.New("log format must be console or json")
)

// Config holds all editor settings.
type Config struct {
	Editor  EditorConfig  `yaml:"editor"`
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Logging LoggingConfig `yaml:"logging"`
}

// EditorConfig holds map and schematic settings.
type EditorConfig struct {
	// Seconds between block updates of a schematic. 0 updates one block per
	// tick, a negative value updates all blocks at once.
	SchematicBlockSpawnDelay float64  `yaml:"schematic_block_spawn_delay"`
	AnimationTolerance       float32  `yaml:"animation_tolerance"` // Squared distance at which a frame counts as reached
	SchematicsDir            string   `yaml:"schematics_dir"`
	AutoLoadMaps             []string `yaml:"auto_load_maps"` // Maps loaded on startup
}

// ServerConfig holds replication server settings.
type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	TickRate       int      `yaml:"tick_rate"` // Ticks per second
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// StorageConfig holds map store settings.
type StorageConfig struct {
	AppName string `yaml:"app_name"`
}

// LoggingConfig holds logging settings. Rotation settings apply only when
// LogFile is set.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"` // console or json
	LogFile    string `yaml:"log_file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Editor: EditorConfig{
			SchematicBlockSpawnDelay: 0,
			AnimationTolerance:       1,
			SchematicsDir:            "schematics",
		},
		Server: ServerConfig{
			Addr:     ":7777",
			TickRate: 50,
		},
		Storage: StorageConfig{
			AppName: "mapeditor",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 7,
			Compress:   true,
		},
	}
}

// Validate checks that the settings can be used.
func (c *Config) Validate() error {
	if c.Server.TickRate <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidTickRate, c.Server.TickRate)
	}
	if c.Server.Addr == "" {
		return ErrMissingAddr
	}
	if c.Editor.AnimationTolerance <= 0 {
		return fmt.Errorf("%w: %g", ErrInvalidTolerance, c.Editor.AnimationTolerance)
	}
	d := c.Editor.SchematicBlockSpawnDelay
	if math.IsNaN(d) || math.IsInf(d, 0) {
		return ErrInvalidDelay
	}
	if c.Storage.AppName == "" {
		return ErrMissingAppName
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Logging.Level)
	}
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, c.Logging.Format)
	}
	return nil
}

// TickInterval returns the time between server ticks.
func (c *Config) TickInterval() time.Duration {
	return time.Second / time.Duration(c.Server.TickRate)
}
