package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/rendis/opfilter/internal/predicate"
	"github.com/rendis/opfilter/pkg/schema"
)

// Config holds opfilter CLI configuration.
// Priority: env vars > settings.yaml > settings.json > defaults.
type Config struct {
	DBPath        string `json:"db_path" yaml:"db_path"`
	LogLevel      string `json:"log_level" yaml:"log_level"`
	MaxParallel   int    `json:"max_parallel" yaml:"max_parallel"`
	SnapshotLimit int    `json:"snapshot_limit" yaml:"snapshot_limit"`
}

func defaultConfig() Config {
	return Config{
		LogLevel:      "warn",
		MaxParallel:   predicate.DefaultMaxParallel,
		SnapshotLimit: schema.DefaultSnapshotLimit,
	}
}

func opfilterDir() string {
	if v := os.Getenv("OPFILTER_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".opfilter"
	}
	return filepath.Join(home, ".opfilter")
}

func loadConfig() (Config, error) {
	return loadConfigFrom(opfilterDir(), os.Getenv)
}

// loadConfigFrom layers settings files found in dir and env vars read
// through getenv over the defaults. Missing settings files are skipped.
func loadConfigFrom(dir string, getenv func(string) string) (Config, error) {
	cfg := defaultConfig()

	// Layer 2: settings files.
	files := []struct {
		name      string
		unmarshal func([]byte, any) error
	}{
		{"settings.json", json.Unmarshal},
		{"settings.yaml", yaml.Unmarshal},
	}
	for _, f := range files {
		path := filepath.Join(dir, f.name)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if err := f.unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	// Layer 3: env vars override.
	if v := getenv("OPFILTER_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := getenv("OPFILTER_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := getenv("OPFILTER_MAX_PARALLEL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("OPFILTER_MAX_PARALLEL: %w", err)
		}
		cfg.MaxParallel = n
	}
	if v := getenv("OPFILTER_SNAPSHOT_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("OPFILTER_SNAPSHOT_LIMIT: %w", err)
		}
		cfg.SnapshotLimit = n
	}

	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = predicate.DefaultMaxParallel
	}
	if cfg.SnapshotLimit <= 0 {
		cfg.SnapshotLimit = schema.DefaultSnapshotLimit
	}
	return cfg, nil
}

// apply installs process-wide settings.
func (c Config) apply() {
	schema.SnapshotLimit = c.SnapshotLimit
}
