// Package config handles loading and validating the index job configuration.
package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// API holds the platform search parameters for an index job.
type API struct {
	Subreddit string   `yaml:"subreddit"`
	Queries   []string `yaml:"queries"`
	Sort      string   `yaml:"sort"`
	Time      string   `yaml:"time"`
	Ignore    []string `yaml:"ignore"`

	ignore []*regexp.Regexp
}

// IgnorePatterns returns the compiled ignore patterns.
func (a *API) IgnorePatterns() []*regexp.Regexp {
	return a.ignore
}

// Embeddings holds the embedding model parameters.
type Embeddings struct {
	URL   string `yaml:"url"`
	Model string `yaml:"model"`
}

// Classifier holds the label classifier parameters. When empty, the
// classifier shares the embeddings endpoint.
type Classifier struct {
	URL   string `yaml:"url"`
	Model string `yaml:"model"`
}

// LabelSet defines the candidate values for one classification category.
type LabelSet struct {
	Values []string `yaml:"values"`
}

// Config describes a single index job.
type Config struct {
	Name       string              `yaml:"name"`
	API        *API                `yaml:"api"`
	Embeddings Embeddings          `yaml:"embeddings"`
	Classifier Classifier          `yaml:"classifier"`
	Path       string              `yaml:"path"`
	Labels     map[string]LabelSet `yaml:"labels"`
	Schedule   string              `yaml:"schedule"`
	LogLevel   string              `yaml:"-"`
}

// Load reads and validates the YAML configuration at path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg, err := Parse(raw)
	if err != nil {
		return nil, err
	}

	cfg.LogLevel = os.Getenv("LOG_LEVEL")
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	return cfg, nil
}

// Parse decodes and validates a YAML configuration document.
func Parse(raw []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.Name == "" || cfg.API == nil {
		return nil, fmt.Errorf("config fields name and api are required")
	}

	if cfg.Path == "" {
		cfg.Path = "./data/" + cfg.Name
	}
	if cfg.Classifier.URL == "" {
		cfg.Classifier.URL = cfg.Embeddings.URL
	}

	for _, pattern := range cfg.API.Ignore {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid ignore pattern %q: %w", pattern, err)
		}
		cfg.API.ignore = append(cfg.API.ignore, re)
	}

	return &cfg, nil
}
