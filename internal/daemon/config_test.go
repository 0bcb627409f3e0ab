package daemon

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "127.0.0.1")
	}
	if cfg.API.Port != 8321 {
		t.Errorf("API.Port = %d, want %d", cfg.API.Port, 8321)
	}
	if cfg.Drivers.TimeoutSeconds != 120 {
		t.Errorf("Drivers.TimeoutSeconds = %d, want 120", cfg.Drivers.TimeoutSeconds)
	}
	if cfg.Drivers.MaxConcurrent != 4 {
		t.Errorf("Drivers.MaxConcurrent = %d, want 4", cfg.Drivers.MaxConcurrent)
	}
}

func TestLoadConfig_NoFileUsesDefaults(t *testing.T) {
	t.Setenv("CUENTAS_HOME", t.TempDir())

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.API.Port != DefaultConfig().API.Port {
		t.Errorf("Port = %d, want default", cfg.API.Port)
	}
}

func TestLoadConfig_RoundTrip(t *testing.T) {
	t.Setenv("CUENTAS_HOME", t.TempDir())

	cfg := DefaultConfig()
	cfg.API.Port = 9000
	cfg.Drivers.MaxConcurrent = 2
	cfg.Security.CardKey = "aabb"
	if err := SaveConfig(cfg); err != nil {
		t.Fatalf("SaveConfig() error: %v", err)
	}

	loaded, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if loaded.API.Port != 9000 || loaded.Drivers.MaxConcurrent != 2 {
		t.Errorf("loaded = %+v", loaded)
	}
	if loaded.Security.CardKey != "aabb" {
		t.Errorf("CardKey = %q", loaded.Security.CardKey)
	}
}

func TestLoadConfig_PartialFileKeepsDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("CUENTAS_HOME", home)

	err := os.WriteFile(filepath.Join(home, "config.toml"),
		[]byte("[api]\nport = 9999\n"), 0644)
	if err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.API.Port != 9999 {
		t.Errorf("Port = %d, want 9999", cfg.API.Port)
	}
	if cfg.Drivers.TimeoutSeconds != 120 {
		t.Errorf("unset fields must keep defaults, TimeoutSeconds = %d", cfg.Drivers.TimeoutSeconds)
	}
}

func TestCardKey_EnvTakesPrecedence(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Security.CardKey = "from-file"

	t.Setenv("CUENTAS_CARD_KEY", "from-env")
	if got := cfg.CardKey(); got != "from-env" {
		t.Errorf("CardKey() = %q, want env value", got)
	}

	t.Setenv("CUENTAS_CARD_KEY", "")
	if got := cfg.CardKey(); got != "from-file" {
		t.Errorf("CardKey() = %q, want file value", got)
	}
}

func TestCuentasHome_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CUENTAS_HOME", dir)
	if got := CuentasHome(); got != dir {
		t.Errorf("CuentasHome() = %q, want %q", got, dir)
	}
}
