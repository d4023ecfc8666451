// Package daemon assembles and runs the Strollr backend: configuration,
// storage, the tracking pipeline, the discovery flows and the HTTP API.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
)

// Config is the daemon configuration, loaded from a TOML file with
// environment overrides.
type Config struct {
	API       APIConfig       `toml:"api"`
	Storage   StorageConfig   `toml:"storage"`
	Places    PlacesConfig    `toml:"places"`
	Discovery DiscoveryConfig `toml:"discovery"`
	Log       LogConfig       `toml:"log"`
}

// APIConfig configures the HTTP listener.
type APIConfig struct {
	Host           string `toml:"host"`
	Port           int    `toml:"port"`
	MetricsEnabled bool   `toml:"metrics_enabled"`
}

// StorageConfig configures the embedded database.
type StorageConfig struct {
	Path string `toml:"path"`
}

// PlacesConfig configures the point-of-interest provider.
type PlacesConfig struct {
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
}

// DiscoveryConfig configures periodic maintenance.
type DiscoveryConfig struct {
	// LedgerSweepSchedule is a cron expression for the credit ledger
	// maintenance sweep.
	LedgerSweepSchedule string `toml:"ledger_sweep_schedule"`
}

// LogConfig configures logging output.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			Host:           "127.0.0.1",
			Port:           8470,
			MetricsEnabled: true,
		},
		Storage: StorageConfig{
			Path: defaultDBPath(),
		},
		Places: PlacesConfig{
			BaseURL: "https://places.strollr.app",
		},
		Discovery: DiscoveryConfig{
			// Hourly: period rollovers happen within the hour they are due.
			LedgerSweepSchedule: "0 * * * *",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "strollr.db"
	}
	return filepath.Join(home, ".strollr", "strollr.db")
}

// LoadConfig reads the config file at path (defaults applied first), then
// applies environment overrides. A missing file is not an error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

// applyEnvOverrides lets deployment environments override file settings
// without editing the file. Secrets in particular arrive this way.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("STROLLR_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("STROLLR_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}
	if v := os.Getenv("STROLLR_DB_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("STROLLR_PLACES_URL"); v != "" {
		cfg.Places.BaseURL = v
	}
	if v := os.Getenv("STROLLR_PLACES_API_KEY"); v != "" {
		cfg.Places.APIKey = v
	}
	if v := os.Getenv("STROLLR_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("STROLLR_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// Addr returns the API listen address.
func (c APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
