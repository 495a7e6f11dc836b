// Package config loads and persists the server's configuration file.
// A missing file is not an error: Load writes the defaults to disk and
// returns them (spec.md §7's ConfigMissing policy — "handled by
// writing defaults; never surfaced").
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// DefaultPort is the port used when config.toml doesn't specify one or
// doesn't exist yet.
const DefaultPort = 5072

// Dir is the directory the config file lives under.
const Dir = ".config"

// FileName is the config file's name within Dir.
const FileName = "config.toml"

// Config is the full set of settings read from config.toml.
type Config struct {
	Port uint16 `toml:"port"`
}

func defaultConfig() Config {
	return Config{Port: DefaultPort}
}

// Load reads Dir/FileName relative to the current directory. If it
// doesn't exist, Load writes defaultConfig() to disk (creating Dir if
// needed) and returns it.
func Load() (Config, error) {
	path := filepath.Join(Dir, FileName)
	contents, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		cfg := defaultConfig()
		if err := Save(cfg); err != nil {
			return Config{}, fmt.Errorf("config: write default config: %w", err)
		}
		return cfg, nil
	}

	var cfg Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	return cfg, nil
}

// Save writes cfg to Dir/FileName, creating Dir if it doesn't exist.
func Save(cfg Config) error {
	if err := os.MkdirAll(Dir, 0o755); err != nil {
		return fmt.Errorf("config: create %s: %w", Dir, err)
	}
	out, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: encode config: %w", err)
	}
	path := filepath.Join(Dir, FileName)
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}
