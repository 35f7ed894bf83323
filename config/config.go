/*
config.go - Environment configuration

PURPOSE:
  Loads server settings from TALLY_* environment variables and builds the
  process logger from them.

VARIABLES:
  TALLY_HTTP_PORT     HTTP port (default: 8080)
  TALLY_DB_PATH       SQLite path, ":memory:" for a throwaway log (default: tally.db)
  TALLY_TIMEZONE      IANA zone that defines the user's calendar day (default: Local)
  TALLY_LOG_LEVEL     zerolog level name (default: info)
  TALLY_LOG_FORMAT    "json" or "console" (default: json)
  TALLY_CORS_ORIGINS  Comma-separated allowed origins
  TALLY_SEED_DEMO     Load the demo scenarios on startup (default: false)
  TALLY_DUE_CHECK     Interval of the overdue-bill check, 0 disables (default: 1h)

SEE ALSO:
  - cmd/server/main.go: Consumer
*/
package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
)

// Prefix of every environment variable read by Load.
const Prefix = "TALLY"

type Config struct {
	HTTPPort    int           `envconfig:"HTTP_PORT" default:"8080"`
	DBPath      string        `envconfig:"DB_PATH" default:"tally.db"`
	Timezone    string        `envconfig:"TIMEZONE" default:"Local"`
	LogLevel    string        `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat   string        `envconfig:"LOG_FORMAT" default:"json"`
	CORSOrigins []string      `envconfig:"CORS_ORIGINS" default:"http://localhost:5173,http://localhost:8080"`
	SeedDemo    bool          `envconfig:"SEED_DEMO" default:"false"`
	DueCheck    time.Duration `envconfig:"DUE_CHECK" default:"1h"`

	location *time.Location
	level    zerolog.Level
}

// Load reads and validates the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values envconfig cannot and resolves the derived fields.
func (c *Config) Validate() error {
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP_PORT %d", c.HTTPPort)
	}
	if strings.TrimSpace(c.DBPath) == "" {
		return fmt.Errorf("DB_PATH must not be empty")
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	c.location = loc

	level, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		return fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err)
	}
	c.level = level

	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("unsupported LOG_FORMAT %q", c.LogFormat)
	}
	if c.DueCheck < 0 {
		return fmt.Errorf("DUE_CHECK must not be negative")
	}
	return nil
}

// Location is the zone that defines day keys. Valid after Validate.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.Local
	}
	return c.location
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// Logger builds the process logger writing to w (stdout when nil).
func (c *Config) Logger(w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stdout
	}
	if c.LogFormat == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(c.level).With().
		Timestamp().
		Str("service", "tally").
		Logger()
}
