// Package config loads runtime settings from defaults, an optional YAML
// file and environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"vessel-cbm-monitor/internal/parser"
)

// Processing selects which columns become readings.
type Processing struct {
	AllNumeric     bool `yaml:"all_numeric"`
	RespectToggles bool `yaml:"respect_toggles"`
	Vibration      bool `yaml:"vibration"`
	RPM            bool `yaml:"rpm"`
	Ampere         bool `yaml:"ampere"`
}

// Query holds query defaults.
type Query struct {
	PageSize      int `yaml:"page_size"`
	StalenessDays int `yaml:"staleness_days"`
}

// Server holds the HTTP listener settings.
type Server struct {
	Addr string `yaml:"addr"`
}

// Log holds logger settings.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the full runtime configuration.
type Config struct {
	Database   string     `yaml:"database"`
	Timezone   string     `yaml:"timezone"`
	AutoSave   bool       `yaml:"auto_save"`
	Processing Processing `yaml:"processing"`
	Query      Query      `yaml:"query"`
	Server     Server     `yaml:"server"`
	Log        Log        `yaml:"log"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Database: "cbm.db",
		Timezone: "UTC",
		AutoSave: true,
		Processing: Processing{
			AllNumeric: true,
			Vibration:  true,
			RPM:        true,
			Ampere:     true,
		},
		Query: Query{
			PageSize:      20,
			StalenessDays: 30,
		},
		Server: Server{Addr: ":8080"},
		Log:    Log{Level: "info", Format: "json"},
	}
}

// Load builds the configuration. path, when empty, falls back to
// $CBM_CONFIG; a missing path means defaults plus environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("CBM_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.Database = getenvDefault("CBM_DB_PATH", cfg.Database)
	cfg.Log.Level = getenvDefault("CBM_LOG_LEVEL", cfg.Log.Level)
	cfg.Timezone = getenvDefault("CBM_TIMEZONE", cfg.Timezone)
	cfg.Server.Addr = getenvDefault("CBM_ADDR", cfg.Server.Addr)
	pageSize, err := getenvIntDefault("CBM_PAGE_SIZE", cfg.Query.PageSize)
	if err != nil {
		return cfg, err
	}
	cfg.Query.PageSize = pageSize

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail later.
func (c Config) Validate() error {
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Query.PageSize <= 0 {
		return errors.New("config: query.page_size must be positive")
	}
	if c.Query.StalenessDays < 0 {
		return errors.New("config: query.staleness_days must not be negative")
	}
	return nil
}

// Location resolves Timezone; empty means UTC.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// NormalizerOptions maps Processing onto parser options.
func (c Config) NormalizerOptions() parser.Options {
	return parser.Options{
		AllNumeric:       c.Processing.AllNumeric,
		RespectToggles:   c.Processing.RespectToggles,
		ProcessVibration: c.Processing.Vibration,
		ProcessRPM:       c.Processing.RPM,
		ProcessAmpere:    c.Processing.Ampere,
	}
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback, fmt.Errorf("config: invalid %s %q", key, value)
	}
	return parsed, nil
}
