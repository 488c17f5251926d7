package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config contains runtime configuration for memoryd.
type Config struct {
	ServerName                   string  `yaml:"server_name"`
	DBPath                       string  `yaml:"db_path"`
	LogLevel                     string  `yaml:"log_level"`
	OllamaHost                   string  `yaml:"ollama_host"`
	EmbedModel                   string  `yaml:"embed_model"`
	ChatModel                    string  `yaml:"chat_model"`
	RelevanceThreshold           float64 `yaml:"relevance_threshold"`
	ConsolidationThreshold       float64 `yaml:"consolidation_threshold"`
	ConsolidationIntervalMinutes int     `yaml:"consolidation_interval_minutes"`
	MaintenanceIntervalMinutes   int     `yaml:"maintenance_interval_minutes"`
	DefaultListLimit             int     `yaml:"default_list_limit"`
	DefaultRelevantLimit         int     `yaml:"default_relevant_limit"`
}

// Default returns a Config populated with safe defaults.
func Default() Config {
	return Config{
		ServerName:                   "memoryd",
		DBPath:                       filepath.Join(userHomeDir(), ".memoryd", "memories.db"),
		LogLevel:                     "info",
		OllamaHost:                   "http://127.0.0.1:11434",
		EmbedModel:                   "nomic-embed-text",
		ChatModel:                    "phi",
		RelevanceThreshold:           0.6,
		ConsolidationThreshold:       0.85,
		ConsolidationIntervalMinutes: 60,
		MaintenanceIntervalMinutes:   60,
		DefaultListLimit:             100,
		DefaultRelevantLimit:         5,
	}
}

// Load loads config from disk; if path does not exist, default config is returned.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config yaml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Validate checks configuration sanity.
func (c *Config) Validate() error {
	if c.ServerName == "" {
		return errors.New("server_name must not be empty")
	}
	if c.DBPath == "" {
		return errors.New("db_path must not be empty")
	}
	if c.OllamaHost == "" {
		return errors.New("ollama_host must not be empty")
	}
	if c.EmbedModel == "" {
		return errors.New("embed_model must not be empty")
	}
	if c.RelevanceThreshold < 0 || c.RelevanceThreshold > 1 {
		return errors.New("relevance_threshold must be in [0, 1]")
	}
	if c.ConsolidationThreshold < 0 || c.ConsolidationThreshold > 1 {
		return errors.New("consolidation_threshold must be in [0, 1]")
	}
	if c.ConsolidationIntervalMinutes <= 0 {
		return errors.New("consolidation_interval_minutes must be > 0")
	}
	if c.MaintenanceIntervalMinutes <= 0 {
		return errors.New("maintenance_interval_minutes must be > 0")
	}
	if c.DefaultListLimit <= 0 {
		return errors.New("default_list_limit must be > 0")
	}
	if c.DefaultRelevantLimit <= 0 {
		return errors.New("default_relevant_limit must be > 0")
	}
	return nil
}

// EnsurePaths creates parent directories for config-managed paths.
func (c *Config) EnsurePaths() error {
	c.DBPath = ExpandPath(c.DBPath)
	parent := filepath.Dir(c.DBPath)
	if parent == "." {
		return nil
	}
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("create db parent dir: %w", err)
	}
	return nil
}

// ExpandPath expands "~/" to the current user's home directory.
func ExpandPath(p string) string {
	if p == "" {
		return p
	}
	if p == "~" {
		return userHomeDir()
	}
	if strings.HasPrefix(p, "~/") {
		return filepath.Join(userHomeDir(), p[2:])
	}
	return p
}

func userHomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
