package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tailscale/hujson"
)

// Config holds default geometry for new and reopened images.
type Config struct {
	PageSize       uint32 `json:"page_size,omitempty"`       //nolint:tagliatelle // snake_case for config file
	PagesPerSector int    `json:"pages_per_sector,omitempty"` //nolint:tagliatelle // snake_case for config file
	Sectors        int    `json:"sectors,omitempty"`
}

// ConfigFileName is the project config file name.
const ConfigFileName = ".eep.json"

// Config errors.
var (
	errConfigInvalid = errors.New("invalid config file")
)

// getGlobalConfigPath returns the path to the global config file.
// Uses $XDG_CONFIG_HOME/eep/config.json if set, otherwise
// ~/.config/eep/config.json. Empty string if neither resolves.
func getGlobalConfigPath(env []string) string {
	for _, e := range env {
		if after, ok := strings.CutPrefix(e, "XDG_CONFIG_HOME="); ok {
			return filepath.Join(after, "eep", "config.json")
		}
	}

	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "eep", "config.json")
	}

	home, err := os.UserHomeDir()
	if err == nil {
		return filepath.Join(home, ".config", "eep", "config.json")
	}

	return ""
}

// LoadConfig loads configuration with the following precedence
// (highest wins): defaults, global user config, project config.
// CLI flags are applied by the caller on top.
func LoadConfig(workDir string, env []string) (Config, error) {
	var cfg Config

	globalCfg, err := loadConfigFile(getGlobalConfigPath(env))
	if err != nil {
		return Config{}, err
	}

	cfg = mergeConfig(cfg, globalCfg)

	projectCfg, err := loadConfigFile(filepath.Join(workDir, ConfigFileName))
	if err != nil {
		return Config{}, err
	}

	cfg = mergeConfig(cfg, projectCfg)

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// loadConfigFile loads an optional config file; missing files yield a
// zero config.
func loadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, nil
	}

	data, err := os.ReadFile(path) //nolint:gosec // path is intentionally user-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, nil
		}

		return Config{}, fmt.Errorf("%w %s: %w", errConfigInvalid, path, err)
	}

	cfg, parseErr := parseConfig(data)
	if parseErr != nil {
		return Config{}, fmt.Errorf("%w %s: %w", errConfigInvalid, path, parseErr)
	}

	return cfg, nil
}

func parseConfig(data []byte) (Config, error) {
	// Standardize JSONC to JSON.
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	var cfg Config

	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return Config{}, fmt.Errorf("invalid JSON: %w", err)
	}

	return cfg, nil
}

func mergeConfig(base, overlay Config) Config {
	if overlay.PageSize != 0 {
		base.PageSize = overlay.PageSize
	}

	if overlay.PagesPerSector != 0 {
		base.PagesPerSector = overlay.PagesPerSector
	}

	if overlay.Sectors != 0 {
		base.Sectors = overlay.Sectors
	}

	return base
}

func validateConfig(cfg Config) error {
	if cfg.PageSize != 0 && cfg.PageSize%4 != 0 {
		return fmt.Errorf("%w: page_size must be a multiple of 4", errConfigInvalid)
	}

	if cfg.PagesPerSector < 0 || cfg.Sectors < 0 {
		return fmt.Errorf("%w: negative geometry", errConfigInvalid)
	}

	return nil
}
