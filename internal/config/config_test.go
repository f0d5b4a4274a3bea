package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

func TestLoad_DefaultsAndLists(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("ADMIN_IDS", "42,7")
	t.Setenv("SCAN_INTERVAL", "5m")
	for _, k := range []string{"TIMEZONE", "STORE_BACKEND", "PURGE_SPEC", "SEND_ATTEMPTS"} {
		t.Setenv(k, "")
		_ = os.Unsetenv(k)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StoreBackend != "sqlite" || cfg.TZ != "Europe/Moscow" || cfg.PurgeSpec != "@daily" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.ScanInterval != 5*time.Minute || cfg.SendAttempts != 3 {
		t.Fatalf("unexpected durations: %+v", cfg)
	}
	if !cfg.IsAdmin(42) || !cfg.IsAdmin(7) || cfg.IsAdmin(1) {
		t.Fatalf("unexpected admins: %v", cfg.AdminIDs)
	}
}

func TestLoad_RequiresToken(t *testing.T) {
	t.Setenv("BOT_TOKEN", "")
	_ = os.Unsetenv("BOT_TOKEN") // t.Setenv restores it after the test
	if _, err := Load(); err == nil {
		t.Fatal("want error without BOT_TOKEN")
	}
}

func TestValidate(t *testing.T) {
	base := Config{
		StoreBackend: "memory",
		TZ:           "UTC",
		ScanInterval: 10 * time.Minute,
		SendAttempts: 1,
		SendTimeout:  time.Second,
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := map[string]func(c *Config){
		"STORE_BACKEND": func(c *Config) { c.StoreBackend = "s3" },
		"TIMEZONE":      func(c *Config) { c.TZ = "Mars/Olympus" },
		"SCAN_INTERVAL": func(c *Config) { c.ScanInterval = time.Hour },
		"SEND_ATTEMPTS": func(c *Config) { c.SendAttempts = 0 },
	}
	for field, mutate := range cases {
		c := base
		mutate(&c)
		err := c.Validate()
		if err == nil || !strings.Contains(err.Error(), field) {
			t.Fatalf("%s: want validation error, got %v", field, err)
		}
	}
}
