package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/agentic-research/hl7find/api"
	"github.com/agentic-research/hl7find/internal/hl7"
	"gopkg.in/yaml.v3"
)

// ErrUnknownQuery is returned when a named query is not configured.
var ErrUnknownQuery = errors.New("unknown query")

// Config is the content of the YAML configuration file.
type Config struct {
	// LogLevel is a zap level name: debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
	// Profiles extend or override the built-in message profiles.
	Profiles []api.Profile `yaml:"profiles"`
	// Queries are named searches used by scan and --query.
	Queries []api.Query `yaml:"queries"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{LogLevel: "info"}
}

// Load reads the YAML file at path. An empty path yields Default().
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	seen := make(map[string]bool, len(c.Queries))
	for i, q := range c.Queries {
		if q.Name == "" {
			return fmt.Errorf("query %d has no name", i)
		}
		if seen[q.Name] {
			return fmt.Errorf("duplicate query %q", q.Name)
		}
		seen[q.Name] = true
	}
	for i, p := range c.Profiles {
		if p.Name == "" {
			return fmt.Errorf("profile %d has no name", i)
		}
	}
	return nil
}

// Query returns the named query.
func (c *Config) Query(name string) (api.Query, error) {
	for _, q := range c.Queries {
		if q.Name == name {
			return q, nil
		}
	}
	return api.Query{}, fmt.Errorf("%w: %s", ErrUnknownQuery, name)
}

// ProfileRegistry returns the built-in profiles overlaid with configured ones.
func (c *Config) ProfileRegistry() hl7.Profiles {
	reg := hl7.DefaultProfiles()
	for i := range c.Profiles {
		reg.Register(&c.Profiles[i])
	}
	return reg
}
