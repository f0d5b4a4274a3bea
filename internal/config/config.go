package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	BotToken     string `envconfig:"BOT_TOKEN" required:"true"`
	StoreBackend string `envconfig:"STORE_BACKEND" default:"sqlite"` // sqlite|memory
	DBPath       string `envconfig:"DB_PATH" default:"./data/lessons.db"`
	TZ           string `envconfig:"TIMEZONE" default:"Europe/Moscow"`
	LogLevel     string `envconfig:"LOG_LEVEL" default:"info"`  // debug|info|warn|error
	HTTPAddr     string `envconfig:"HTTP_ADDR" default:":8080"` // healthz

	ScanInterval time.Duration `envconfig:"SCAN_INTERVAL" default:"10m"`
	PurgeSpec    string        `envconfig:"PURGE_SPEC" default:"@daily"`

	SendTimeout    time.Duration `envconfig:"SEND_TIMEOUT" default:"10s"`
	SendAttempts   int           `envconfig:"SEND_ATTEMPTS" default:"3"`
	SendBackoff    time.Duration `envconfig:"SEND_BACKOFF" default:"1s"`
	SendBackoffMax time.Duration `envconfig:"SEND_BACKOFF_MAX" default:"10s"`
	SendRate       float64       `envconfig:"SEND_RATE" default:"20"` // messages per second

	AdminIDs []int64 `envconfig:"ADMIN_IDS"`

	ScheduleFile      string `envconfig:"SCHEDULE_FILE"`
	WatchScheduleFile bool   `envconfig:"WATCH_SCHEDULE_FILE" default:"false"`
}

// Load reads environment variables into Config and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Validate checks values envconfig cannot express.
func (c Config) Validate() error {
	var errs []error
	switch c.StoreBackend {
	case "sqlite", "memory":
	default:
		errs = append(errs, fmt.Errorf("STORE_BACKEND: unknown backend %q", c.StoreBackend))
	}
	if _, err := time.LoadLocation(c.TZ); err != nil {
		errs = append(errs, fmt.Errorf("TIMEZONE: %w", err))
	}
	// Each dispatch window is as wide as the scan interval; keeping it under
	// an hour keeps the 1h window strictly before the lesson.
	if c.ScanInterval < time.Second || c.ScanInterval >= time.Hour {
		errs = append(errs, fmt.Errorf("SCAN_INTERVAL: %s not in [1s, 1h)", c.ScanInterval))
	}
	if c.SendAttempts < 1 {
		errs = append(errs, errors.New("SEND_ATTEMPTS: must be at least 1"))
	}
	if c.SendTimeout <= 0 {
		errs = append(errs, errors.New("SEND_TIMEOUT: must be positive"))
	}
	if c.SendRate < 0 {
		errs = append(errs, errors.New("SEND_RATE: must not be negative"))
	}
	return errors.Join(errs...)
}

// IsAdmin reports whether the user may use admin commands.
func (c Config) IsAdmin(userID int64) bool {
	for _, id := range c.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}
