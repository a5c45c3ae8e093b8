// Package config holds the settings shared by the wolf commands and server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds configuration for the wolf CLI and plan server.
type Config struct {
	Addr      string `yaml:"addr"`       // Listen address (default ":8080")
	LogLevel  string `yaml:"log_level"`  // Log level: debug, info, warn, error
	LogFormat string `yaml:"log_format"` // Log format: text, json
	DBPath    string `yaml:"db_path"`    // SQLite plan store (":memory:" for testing, "" disables)
	RefsPath  string `yaml:"refs_path"`  // Reference table YAML ("" uses the embedded table)

	// PlanRateLimit caps plan builds per second on the server. Zero disables it.
	PlanRateLimit float64 `yaml:"plan_rate_limit"`
	PlanRateBurst int     `yaml:"plan_rate_burst"`

	Defaults WorkflowDefaults `yaml:"defaults"`
}

// WorkflowDefaults fill unset workflow arguments.
type WorkflowDefaults struct {
	RefBuild       string `yaml:"ref_build"`
	SequencingType string `yaml:"sequencing_type"`
	ScatterCount   int    `yaml:"scatter_count"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:      ":8080",
		LogLevel:  "info",
		LogFormat: "text",
		DBPath:    DefaultDBPath(),
		Defaults: WorkflowDefaults{
			RefBuild:       "hg38",
			SequencingType: "WGS",
			ScatterCount:   10,
		},
	}
}

// DefaultDBPath returns ~/.wolf/plans.db, or plans.db when the home
// directory is unknown.
func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "plans.db"
	}
	return filepath.Join(home, ".wolf", "plans.db")
}

// Load reads a YAML config file over the defaults and then applies WOLF_*
// environment variables. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	strs := []struct {
		key string
		dst *string
	}{
		{"WOLF_ADDR", &c.Addr},
		{"WOLF_LOG_LEVEL", &c.LogLevel},
		{"WOLF_LOG_FORMAT", &c.LogFormat},
		{"WOLF_DB", &c.DBPath},
		{"WOLF_REFS", &c.RefsPath},
		{"WOLF_REF_BUILD", &c.Defaults.RefBuild},
		{"WOLF_SEQUENCING_TYPE", &c.Defaults.SequencingType},
	}
	for _, s := range strs {
		if v, ok := lookup(s.key); ok {
			*s.dst = v
		}
	}
	if v, ok := lookup("WOLF_PLAN_RATE_LIMIT"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("WOLF_PLAN_RATE_LIMIT: %w", err)
		}
		c.PlanRateLimit = f
	}
	if v, ok := lookup("WOLF_SCATTER_COUNT"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("WOLF_SCATTER_COUNT: %w", err)
		}
		c.Defaults.ScatterCount = n
	}
	return nil
}
