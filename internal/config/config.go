package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// BackupConfig controls periodic copies of the SQLite store file.
type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	IntervalHours int    `yaml:"interval_hours"`
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
}

type Config struct {
	Engine struct {
		TickIntervalSeconds int `yaml:"tick_interval_seconds"`
	} `yaml:"engine"`

	Store struct {
		// Backend is one of "sqlite", "redis", "failover" (Redis primary
		// with SQLite fallback).
		Backend string `yaml:"backend"`
	} `yaml:"store"`

	Redis struct {
		Address   string `yaml:"address"`
		Password  string `yaml:"password"`
		DB        int    `yaml:"db"`
		KeyPrefix string `yaml:"key_prefix"`
	} `yaml:"redis"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Backup BackupConfig `yaml:"backup"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Audit struct {
		Enabled       bool `yaml:"enabled"`
		MaxEntries    int  `yaml:"max_entries"`
		RetentionDays int  `yaml:"retention_days"`
	} `yaml:"audit"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.Store.Backend == "" {
		cfg.Store.Backend = "sqlite"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/tollgate.db"
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// TickInterval returns the status recompute interval, default 60s.
func (c *Config) TickInterval() time.Duration {
	if c.Engine.TickIntervalSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.Engine.TickIntervalSeconds) * time.Second
}

// BackupInterval returns the store backup interval, default 24h.
func (c *Config) BackupInterval() time.Duration {
	if c.Backup.IntervalHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Backup.IntervalHours) * time.Hour
}
