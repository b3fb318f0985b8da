package main

import (
	"fmt"
	"os"
	"path/filepath"

	"spine/pkg/config"
)

// SpineHomeDir is the default spine home under the user's home directory.
const SpineHomeDir = ".spine"

// resolveConfig loads the effective configuration. Resolution order:
// defaults under the spine home, then $SPINE_HOME/config.toml, then env
// overrides. Environment variables:
//   - SPINE_HOME: base directory for all spine state (default: ~/.spine)
//   - SPINE_DIR: ledger directory (default: $SPINE_HOME/events)
//
// The resulting Config is passed explicitly into constructors; nothing else
// in the program reads the environment.
func resolveConfig() (config.Config, error) {
	home, err := resolveSpineHome()
	if err != nil {
		return config.Config{}, err
	}

	cfg, err := config.Load(home)
	if err != nil {
		return config.Config{}, err
	}

	if v := os.Getenv("SPINE_DIR"); v != "" {
		cfg.SpineDir = v
	}
	return cfg, nil
}

// resolveSpineHome returns the spine home from SPINE_HOME or ~/.spine.
func resolveSpineHome() (string, error) {
	if v := os.Getenv("SPINE_HOME"); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, SpineHomeDir), nil
}
