package main

import (
	"fmt"
	"os"
	"path/filepath"

	"spine/pkg/config"
)

// resolveConfig mirrors the spine CLI's resolution: defaults under the spine
// home, optional config.toml, then SPINE_HOME / SPINE_DIR env overrides.
func resolveConfig() (config.Config, error) {
	home := os.Getenv("SPINE_HOME")
	if home == "" {
		userHome, err := os.UserHomeDir()
		if err != nil {
			return config.Config{}, fmt.Errorf("get home dir: %w", err)
		}
		home = filepath.Join(userHome, ".spine")
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
