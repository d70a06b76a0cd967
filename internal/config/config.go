// Package config loads the level engine configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/tradequest/level-engine/internal/level"
	"github.com/tradequest/level-engine/internal/store"
)

// Store drivers.
const (
	DriverMemory   = store.DriverMemory
	DriverPostgres = store.DriverPostgres
	DriverSQLite   = store.DriverSQLite
)

// Quote providers.
const (
	ProviderSynthetic = "synthetic"
	ProviderYahoo     = "yahoo"
)

// Config holds all application configuration.
type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Store struct {
		Driver      string        `yaml:"driver"`
		DatabaseURL string        `yaml:"database_url"`
		SQLitePath  string        `yaml:"sqlite_path"`
		RedisURL    string        `yaml:"redis_url"`
		CacheTTL    time.Duration `yaml:"cache_ttl"`
	} `yaml:"store"`
	Quotes struct {
		Provider string `yaml:"provider"`
		Proxy    string `yaml:"proxy"`
		Seed     uint64 `yaml:"seed"`
	} `yaml:"quotes"`
	Simulation struct {
		Enabled bool   `yaml:"enabled"`
		Tick    string `yaml:"tick"`
	} `yaml:"simulation"`
	Game struct {
		LevelsFile string `yaml:"levels_file"`
	} `yaml:"game"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Load reads .env (if present), then the YAML file at path (if present),
// then applies environment variable overrides and defaults.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("could not load .env", "err", err)
	}

	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	// Environment variable overrides
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("STORE_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Store.DatabaseURL = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Store.SQLitePath = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Store.RedisURL = v
	}
	if v := os.Getenv("QUOTE_PROVIDER"); v != "" {
		cfg.Quotes.Provider = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Quotes.Proxy = v
	}
	if v := os.Getenv("QUOTE_SEED"); v != "" {
		if seed, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Quotes.Seed = seed
		}
	}
	if v := os.Getenv("SIM_ENABLED"); v != "" {
		if on, err := strconv.ParseBool(v); err == nil {
			cfg.Simulation.Enabled = on
		}
	}
	if v := os.Getenv("SIM_TICK"); v != "" {
		cfg.Simulation.Tick = v
	}
	if v := os.Getenv("LEVELS_FILE"); v != "" {
		cfg.Game.LevelsFile = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}

	// Defaults
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = DriverMemory
	}
	if cfg.Store.SQLitePath == "" {
		cfg.Store.SQLitePath = "data/tradequest.db"
	}
	if cfg.Store.CacheTTL == 0 {
		cfg.Store.CacheTTL = 30 * time.Second
	}
	if cfg.Quotes.Provider == "" {
		cfg.Quotes.Provider = ProviderSynthetic
	}
	if cfg.Quotes.Seed == 0 {
		cfg.Quotes.Seed = 42
	}
	if cfg.Simulation.Tick == "" {
		cfg.Simulation.Tick = "@every 10s"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverMemory, DriverSQLite:
	case DriverPostgres:
		if c.Store.DatabaseURL == "" {
			return fmt.Errorf("store.database_url is required for the postgres driver")
		}
	default:
		return fmt.Errorf("store.driver %q is not one of memory, postgres, sqlite", c.Store.Driver)
	}
	switch c.Quotes.Provider {
	case ProviderSynthetic, ProviderYahoo:
	default:
		return fmt.Errorf("quotes.provider %q is not one of synthetic, yahoo", c.Quotes.Provider)
	}
	if c.Store.CacheTTL < 0 {
		return fmt.Errorf("store.cache_ttl must not be negative")
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// StoreOptions returns the store selection for store.Open.
func (c *Config) StoreOptions() store.Options {
	return store.Options{
		Driver:      c.Store.Driver,
		DatabaseURL: c.Store.DatabaseURL,
		SQLitePath:  c.Store.SQLitePath,
		RedisURL:    c.Store.RedisURL,
		CacheTTL:    c.Store.CacheTTL,
	}
}

// Levels returns the level table, loading game.levels_file when set.
func (c *Config) Levels() (level.Table, error) {
	if c.Game.LevelsFile == "" {
		return level.Default(), nil
	}
	return level.Load(c.Game.LevelsFile)
}

// SlogLevel parses log.level.
func (c *Config) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(c.Log.Level))); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level %q: %w", c.Log.Level, err)
	}
	return lvl, nil
}
