// Package daemon manages the Cuentas daemon lifecycle and configuration.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config holds all daemon configuration.
type Config struct {
	API      APIConfig      `toml:"api"`
	Drivers  DriversConfig  `toml:"drivers"`
	Security SecurityConfig `toml:"security"`
	Logging  LoggingConfig  `toml:"logging"`
}

// APIConfig controls the HTTP API server.
type APIConfig struct {
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
	Metrics bool   `toml:"metrics"`
}

// DriversConfig controls driver resolution and execution.
type DriversConfig struct {
	Dir            string `toml:"dir"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	MaxConcurrent  int    `toml:"max_concurrent"`
}

// SecurityConfig holds the card encryption key. The env variable
// CUENTAS_CARD_KEY takes precedence so the key can stay out of the
// config file entirely.
type SecurityConfig struct {
	CardKey string `toml:"card_key"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	homeDir := cuentasHome()
	return Config{
		API: APIConfig{
			Host:    "127.0.0.1",
			Port:    8321,
			Metrics: true,
		},
		Drivers: DriversConfig{
			Dir:            filepath.Join(homeDir, "drivers"),
			TimeoutSeconds: 120,
			MaxConcurrent:  4,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  filepath.Join(homeDir, "cuentas.log"),
		},
	}
}

// LoadConfig reads config from $CUENTAS_HOME/config.toml, falling back
// to defaults when the file does not exist.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	path := filepath.Join(cuentasHome(), "config.toml")

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes the config to $CUENTAS_HOME/config.toml.
func SaveConfig(cfg Config) error {
	path := filepath.Join(cuentasHome(), "config.toml")
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(cfg)
}

// CardKey resolves the effective encryption key: environment first,
// then the config file. Empty means no key is configured — card
// operations will fail until one is set.
func (c Config) CardKey() string {
	if env := os.Getenv("CUENTAS_CARD_KEY"); env != "" {
		return env
	}
	return c.Security.CardKey
}

// cuentasHome returns the Cuentas data directory.
func cuentasHome() string {
	if env := os.Getenv("CUENTAS_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".cuentas")
}

// CuentasHome is exported for use by other packages.
func CuentasHome() string {
	return cuentasHome()
}
