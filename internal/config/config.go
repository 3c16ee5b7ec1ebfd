// Package config resolves the engine's paths and tuning knobs.
package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the resolved engine configuration.
type Config struct {
	DatabasePath     string
	CandidateDir     string // empty disables the directory-backed provider
	TickInterval     time.Duration
	CacheTTL         time.Duration
	AdvanceTolerance time.Duration
	DefaultPlayCount int // -1 repeats forever
}

// fileConfig is the on-disk YAML shape. Durations are plain numbers so
// hand-edited files stay simple.
type fileConfig struct {
	DatabasePath       string `yaml:"database_path"`
	CandidateDir       string `yaml:"candidate_dir"`
	TickIntervalMS     int    `yaml:"tick_interval_ms"`
	CacheTTLSeconds    int    `yaml:"cache_ttl_seconds"`
	AdvanceToleranceMS int    `yaml:"advance_tolerance_ms"`
	DefaultPlayCount   *int   `yaml:"default_play_count"`
}

// Default returns a Config rooted under ~/.ccanvas with the engine's
// standard timings.
func Default() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	baseDir := filepath.Join(home, ".ccanvas")
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, err
	}

	return &Config{
		DatabasePath:     filepath.Join(baseDir, "sequences.db"),
		TickInterval:     8 * time.Millisecond,
		CacheTTL:         3 * time.Second,
		AdvanceTolerance: 50 * time.Millisecond,
		DefaultPlayCount: -1,
	}, nil
}

// Load reads a YAML config file over the defaults. Missing fields keep
// their default values.
func Load(path string) (*Config, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, err
	}

	if fc.DatabasePath != "" {
		cfg.DatabasePath = fc.DatabasePath
	}
	if fc.CandidateDir != "" {
		cfg.CandidateDir = fc.CandidateDir
	}
	if fc.TickIntervalMS > 0 {
		cfg.TickInterval = time.Duration(fc.TickIntervalMS) * time.Millisecond
	}
	if fc.CacheTTLSeconds > 0 {
		cfg.CacheTTL = time.Duration(fc.CacheTTLSeconds) * time.Second
	}
	if fc.AdvanceToleranceMS > 0 {
		cfg.AdvanceTolerance = time.Duration(fc.AdvanceToleranceMS) * time.Millisecond
	}
	if fc.DefaultPlayCount != nil {
		cfg.DefaultPlayCount = *fc.DefaultPlayCount
	}

	return cfg, nil
}
