// Package config holds spine's explicit configuration. Values are resolved
// once (defaults, then an optional config.toml, then env overrides applied by
// the caller) and passed into constructors; nothing reads the environment at
// use time.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// FileName is the optional config file inside the spine home directory.
const FileName = "config.toml"

// Config is the resolved spine configuration.
type Config struct {
	SpineDir  string `toml:"spine_dir"`  // ledger directory
	NotesDir  string `toml:"notes_dir"`  // calibration note output
	IndexPath string `toml:"index_path"` // secondary index database
	Agent     string `toml:"agent"`      // default proposing agent identity

	Oracle Oracle `toml:"oracle"`
}

// Oracle configures the external resolution source.
type Oracle struct {
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Timeout returns the oracle call timeout, defaulting to 10s.
func (o Oracle) Timeout() time.Duration {
	if o.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(o.TimeoutSeconds) * time.Second
}

// Default returns the configuration rooted at home.
func Default(home string) Config {
	return Config{
		SpineDir:  filepath.Join(home, "events"),
		NotesDir:  filepath.Join(home, "notes"),
		IndexPath: filepath.Join(home, "index.db"),
		Agent:     "angus",
		Oracle: Oracle{
			BaseURL:        "https://gamma-api.polymarket.com",
			TimeoutSeconds: 10,
		},
	}
}

// Load returns Default(home) overlaid with home/config.toml when it exists.
// A missing file is not an error; a malformed one is.
func Load(home string) (Config, error) {
	cfg := Default(home)

	data, err := os.ReadFile(filepath.Join(home, FileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", FileName, err)
	}
	return cfg, nil
}
