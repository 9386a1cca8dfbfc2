package main

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rendis/relay/pkg/schema"
)

// ConnectorConfig declares one data connector to open at startup.
type ConnectorConfig struct {
	Name   string `yaml:"name"`
	Driver string `yaml:"driver"` // "sqlite" or "postgres"
	DSN    string `yaml:"dsn"`
}

// UserConfig declares one audience member.
type UserConfig struct {
	ID         string         `yaml:"id"`
	ChatID     string         `yaml:"chat_id"`
	Username   string         `yaml:"username"`
	Name       string         `yaml:"name"`
	Attributes map[string]any `yaml:"attributes"`
}

// EngineConfig tunes the invocation engine.
type EngineConfig struct {
	InactivityTimeout time.Duration `yaml:"inactivity_timeout"`
	MaxRetries        int           `yaml:"max_retries"`
	PageSize          int           `yaml:"page_size"`
	RejectAmbiguous   bool          `yaml:"reject_ambiguous_replies"`
}

// Config is the top-level configuration file.
type Config struct {
	LogLevel   string            `yaml:"log_level"`
	Connectors []ConnectorConfig `yaml:"connectors"`
	Users      []UserConfig      `yaml:"users"`
	JobsFile   string            `yaml:"jobs_file"`
	SendRate   float64           `yaml:"send_rate"`
	Engine     EngineConfig      `yaml:"engine"`
}

// LoadConfig reads the YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeRegistration,
			"read config %q: %s", path, err.Error()).WithCause(err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeRegistration,
			"parse config %q: %s", path, err.Error()).WithCause(err)
	}
	return &cfg, nil
}
