// Package config provides configuration loading for growthsim. Settings come
// from an optional YAML file with environment-variable overrides on top.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config contains all growthsim settings.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Scenario ScenarioConfig `yaml:"scenario"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	// Port the API listens on.
	Port int `yaml:"port"`

	// CORSOrigins lists frontend origins allowed beyond localhost dev servers.
	CORSOrigins []string `yaml:"cors_origins"`

	// MaxSessions caps concurrently live simulation runs.
	MaxSessions int `yaml:"max_sessions"`
}

// ScenarioConfig configures scenario ingestion.
type ScenarioConfig struct {
	// Path to the scenario CSV. Empty means the embedded dataset.
	Path string `yaml:"path"`

	// Seed drives variation selection and choice shuffling. 0 = random.
	Seed int64 `yaml:"seed"`
}

// DatabaseConfig configures run storage.
type DatabaseConfig struct {
	// Path to the SQLite file. Empty disables run archival.
	Path string `yaml:"path"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	// Level is "debug", "info", "warn" or "error".
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:        8085,
			MaxSessions: 10000,
		},
		Scenario: ScenarioConfig{},
		Database: DatabaseConfig{Path: "data/growthsim.db"},
		Logging:  LoggingConfig{Level: "info"},
	}
}

// Load reads configuration from path, layering defaults, file values, and
// environment overrides. A missing file is not an error; a malformed one is.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Defaults plus env only.
		case err != nil:
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg)

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return Config{}, fmt.Errorf("invalid server port %d", cfg.Server.Port)
	}
	return cfg, nil
}

// applyEnv layers GROWTHSIM_* environment variables over the file values.
func applyEnv(cfg *Config) {
	if v := os.Getenv("GROWTHSIM_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("GROWTHSIM_SCENARIO"); v != "" {
		cfg.Scenario.Path = v
	}
	if v := os.Getenv("GROWTHSIM_SEED"); v != "" {
		if seed, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Scenario.Seed = seed
		}
	}
	if v := os.Getenv("GROWTHSIM_DB"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("GROWTHSIM_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
