package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the optional snapshift configuration file.
type Config struct {
	Defaults DefaultsConfig `toml:"defaults"`
}

// DefaultsConfig holds persistent flag defaults. Nil means "not set";
// CLI flags that were given explicitly always win.
type DefaultsConfig struct {
	Verbose  *bool `toml:"verbose"`
	NoChown  *bool `toml:"nochown"`
	DirLinks *bool `toml:"dirlinks"`
	IOURing  *bool `toml:"iouring"`
}

// Path returns the resolved path to the config file.
func Path() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "snapshift", "config.toml")
}

// Load reads the config file from the XDG path. Returns a zero Config
// (no error) if the file does not exist. Config is always optional.
func Load() (Config, error) {
	path := Path()
	if path == "" {
		return Config{}, nil
	}

	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, nil
		}
		return Config{}, err
	}
	return cfg, nil
}
