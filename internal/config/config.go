// Package config loads the server configuration from YAML with
// environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/talgya/hexwatt/internal/engine"
	"github.com/talgya/hexwatt/internal/world"
)

// Config is the full process configuration.
type Config struct {
	Server      ServerConfig  `yaml:"server"`
	Session     SessionConfig `yaml:"session"`
	Tick        TickConfig    `yaml:"tick"`
	Storage     StorageConfig `yaml:"storage"`
	CatalogPath string        `yaml:"catalog_path,omitempty"`
}

// ServerConfig controls the HTTP listener and its middleware.
type ServerConfig struct {
	Port        int             `yaml:"port"`
	AdminKey    string          `yaml:"admin_key,omitempty"` // Bearer token for operator endpoints. Empty = disabled.
	CORSOrigins []string        `yaml:"cors_origins,omitempty"`
	RateLimit   RateLimitConfig `yaml:"rate_limit"`
	StaticDir   string          `yaml:"static_dir,omitempty"`
}

// RateLimitConfig is the per-client token bucket. PerSecond 0 disables it.
type RateLimitConfig struct {
	PerSecond float64 `yaml:"per_second"`
	Burst     int     `yaml:"burst"`
}

// SessionConfig sets the opening state of new sessions and their lifetime.
type SessionConfig struct {
	engine.Params `yaml:",inline"`

	Seed        int64         `yaml:"seed"`        // 0 = random per session
	TilePicker  string        `yaml:"tile_picker"` // "uniform" or "noise"
	IdleTimeout time.Duration `yaml:"idle_timeout"`
	SweepEvery  time.Duration `yaml:"sweep_every"`
	MaxSessions int           `yaml:"max_sessions"` // 0 = unlimited
}

// TickConfig sets the economy tick cadence.
type TickConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// StorageConfig locates the SQLite ledger.
type StorageConfig struct {
	Path string `yaml:"path"` // Empty disables the ledger
}

// Load reads path over the defaults, applies environment overrides, and
// validates. An empty path yields the defaults.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("%s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return cfg, err
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Defaults returns the stock configuration.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 8080,
			CORSOrigins: []string{
				"http://localhost:5173",
				"http://localhost:3000",
			},
			RateLimit: RateLimitConfig{PerSecond: 10, Burst: 20},
		},
		Session: SessionConfig{
			Params:      engine.DefaultParams(),
			TilePicker:  world.PickerUniform,
			IdleTimeout: 30 * time.Minute,
			SweepEvery:  time.Minute,
		},
		Tick:    TickConfig{Interval: engine.DefaultTickInterval},
		Storage: StorageConfig{Path: "data/hexwatt.db"},
	}
}

// ApplyEnv overrides fields from PORT, HEXWATT_ADMIN_KEY, CORS_ORIGINS
// (comma-separated, appended), and HEXWATT_DB.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v := getenv("HEXWATT_ADMIN_KEY"); v != "" {
		c.Server.AdminKey = v
	}
	if v := getenv("CORS_ORIGINS"); v != "" {
		for _, origin := range strings.Split(v, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				c.Server.CORSOrigins = append(c.Server.CORSOrigins, origin)
			}
		}
	}
	if v, ok := lookup(getenv, "HEXWATT_DB"); ok {
		c.Storage.Path = v
	}
	return nil
}

func lookup(getenv func(string) string, key string) (string, bool) {
	v := getenv(key)
	return strings.TrimSpace(v), v != ""
}

// Normalize fills zero values with their defaults.
func (c *Config) Normalize() {
	d := Defaults()
	if c.Tick.Interval <= 0 {
		c.Tick.Interval = d.Tick.Interval
	}
	if c.Session.SweepEvery <= 0 {
		c.Session.SweepEvery = d.Session.SweepEvery
	}
	if strings.TrimSpace(c.Session.TilePicker) == "" {
		c.Session.TilePicker = d.Session.TilePicker
	}
	c.Session.TilePicker = strings.ToLower(strings.TrimSpace(c.Session.TilePicker))
	if c.Server.RateLimit.Burst <= 0 && c.Server.RateLimit.PerSecond > 0 {
		c.Server.RateLimit.Burst = int(c.Server.RateLimit.PerSecond) + 1
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Server.RateLimit.PerSecond < 0 {
		return fmt.Errorf("server.rate_limit.per_second must be >= 0")
	}
	p := c.Session.Params
	if p.Rings < 0 {
		return fmt.Errorf("session.rings must be >= 0")
	}
	if p.BaseTilePrice < 0 {
		return fmt.Errorf("session.base_tile_price must be >= 0")
	}
	if c.Session.IdleTimeout <= 0 {
		return fmt.Errorf("session.idle_timeout must be > 0")
	}
	if c.Session.MaxSessions < 0 {
		return fmt.Errorf("session.max_sessions must be >= 0")
	}
	if _, err := world.NewPicker(c.Session.TilePicker, 1); err != nil {
		return fmt.Errorf("session.tile_picker: %w", err)
	}
	return nil
}
