// Package config handles configuration file parsing and hot-reloading.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Name string `yaml:"name"`

	// Root of the organized tree (categories become subdirectories).
	BaseDir string `yaml:"base_dir"`

	// Directory for the history database and session summaries.
	DataDir string `yaml:"data_dir"`

	// Categorization rules (extension map, filename patterns, fallback).
	Rules RulesConfig `yaml:"rules"`

	// Watcher behaviour for auto-sorted directories.
	Watch WatchConfig `yaml:"watch"`

	// Scheduled sorting jobs.
	Schedules []ScheduleConfig `yaml:"schedules"`

	// History rows older than this many days are eligible for purge.
	RetentionDays int `yaml:"retention_days"`

	// Safety gate and backup behaviour.
	Safety SafetyConfig `yaml:"safety"`

	// Internal: path to the config file
	path string

	// Internal: last modified time
	modTime time.Time

	mu sync.RWMutex
}

// RulesConfig holds the categorization rule tables. The tables are data,
// not code: resolution is a pure lookup plus pattern heuristics.
type RulesConfig struct {
	// Extensions maps a bare extension ("pdf") to a category path
	// ("documents/pdf"). Merged over the built-in defaults.
	Extensions map[string]string `yaml:"extensions"`

	// Fallback is used when no rule matches. Defaults to "misc/other".
	Fallback string `yaml:"fallback"`
}

// WatchConfig contains watcher configuration.
type WatchConfig struct {
	Enabled bool `yaml:"enabled"`

	// Glob patterns for files the watcher must never touch
	// (temp files, partial downloads).
	Ignore []string `yaml:"ignore"`

	// MinFileAge is how old a file must be before it is considered.
	MinFileAge string `yaml:"min_file_age"`

	// StableFor is how long the file size must hold steady.
	StableFor string `yaml:"stable_for"`

	// MaxWait bounds the stability wait.
	MaxWait string `yaml:"max_wait"`
}

// ScheduleConfig describes one scheduled sorting job.
type ScheduleConfig struct {
	Name      string `yaml:"name"`
	Dir       string `yaml:"dir"`
	Every     string `yaml:"every"`    // interval trigger, e.g. "30m"
	DailyAt   string `yaml:"daily_at"` // daily trigger, "HH:MM"
	Recursive bool   `yaml:"recursive"`
}

// SafetyConfig contains confirmation and backup settings.
type SafetyConfig struct {
	Confirmations       bool   `yaml:"confirmations"`
	Backups             bool   `yaml:"backups"`
	BackupDir           string `yaml:"backup_dir"`
	BackupRetentionDays int    `yaml:"backup_retention_days"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Name:    "sortify",
		BaseDir: filepath.Join(home, "Organized Files"),
		DataDir: filepath.Join(home, ".sortify"),
		Rules: RulesConfig{
			Extensions: map[string]string{},
			Fallback:   "misc/other",
		},
		Watch: WatchConfig{
			Enabled: false,
			Ignore: []string{
				"*.tmp", "*.crdownload", "*.part", "*.partial", "*.download", "~$*",
			},
			MinFileAge: "1s",
			StableFor:  "500ms",
			MaxWait:    "10s",
		},
		Schedules:     []ScheduleConfig{},
		RetentionDays: 30,
		Safety: SafetyConfig{
			Confirmations:       false,
			Backups:             false,
			BackupRetentionDays: 7,
		},
	}
}

// Load reads and parses a configuration file.
func Load(path string) (*Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.path = absPath

	// Get file modification time
	info, err := os.Stat(absPath)
	if err == nil {
		cfg.modTime = info.ModTime()
	}

	return cfg, nil
}

// Path returns the path to the config file.
func (c *Config) Path() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.path
}

// Reload reloads the configuration from disk.
func (c *Config) Reload() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	newCfg := DefaultConfig()
	if err := yaml.Unmarshal(data, newCfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	// Update fields
	c.Name = newCfg.Name
	c.BaseDir = newCfg.BaseDir
	c.DataDir = newCfg.DataDir
	c.Rules = newCfg.Rules
	c.Watch = newCfg.Watch
	c.Schedules = newCfg.Schedules
	c.RetentionDays = newCfg.RetentionDays
	c.Safety = newCfg.Safety

	// Update mod time
	info, err := os.Stat(c.path)
	if err == nil {
		c.modTime = info.ModTime()
	}

	return nil
}

// HasChanged checks if the config file has been modified.
func (c *Config) HasChanged() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	info, err := os.Stat(c.path)
	if err != nil {
		return false
	}
	return info.ModTime().After(c.modTime)
}

// HistoryPath returns the path of the history database file.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.DataDir, "history.db")
}

// BackupDir returns the backup directory, defaulting to a subdirectory
// of the data directory.
func (c *Config) BackupDir() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.Safety.BackupDir != "" {
		return c.Safety.BackupDir
	}
	return filepath.Join(c.DataDir, "backups")
}

// WatchDurations parses the watcher timing settings, substituting
// defaults for missing or malformed values.
func (c *Config) WatchDurations() (minAge, stableFor, maxWait time.Duration) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	minAge = parseDurationOr(c.Watch.MinFileAge, time.Second)
	stableFor = parseDurationOr(c.Watch.StableFor, 500*time.Millisecond)
	maxWait = parseDurationOr(c.Watch.MaxWait, 10*time.Second)
	return minAge, stableFor, maxWait
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
