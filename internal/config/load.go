package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment variables read by Load.
const (
	EnvConfig = "MAPEDITOR_CONFIG"
	EnvAddr   = "MAPEDITOR_ADDR"
	EnvLevel  = "MAPEDITOR_LOG_LEVEL"
	EnvMaps   = "MAPEDITOR_MAPS"
)

// Load builds the configuration from defaults, then the config file, then
// the environment, then flags, and validates the result.
func Load() (*Config, error) {
	cfg := Default()

	path := ConfigPath()
	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	if err := applyFlags(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// findConfigFile returns the first existing candidate, or "".
func findConfigFile() string {
	for _, path := range []string{"./config.yaml", DefaultPath()} {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ConfigDir returns the OS-appropriate config directory.
func ConfigDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "MapEditor")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "MapEditor")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "mapeditor")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "mapeditor")
	}
}

// loadFromFile merges a YAML file into cfg. Unknown keys are an error so
// that a misspelled setting does not silently keep its default.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvAddr); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv(EnvLevel); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv(EnvMaps); v != "" {
		cfg.Editor.AutoLoadMaps = splitList(v)
	}
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseDelay(s string) (float64, error) {
	d, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid spawn delay %q: %w", s, err)
	}
	return d, nil
}
