package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pressbus/pressbus/pkg/types"
)

// Defaults applied for any field left at its zero value
const (
	DefaultHost         = "127.0.0.1"
	DefaultPort         = 5555
	DefaultBufferSize   = 4096
	DefaultEncoding     = "utf-8"
	DefaultWildcard     = "*"
	DefaultHistoryFile  = "data/news.json"
	DefaultHistoryLimit = 10
	DefaultMaxHistory   = 100
)

// DefaultCategories is the category set used when none is configured
var DefaultCategories = []string{
	"tech",
	"sports",
	"culture",
	"politics",
	"economy",
	"entertainment",
}

// Config is the full pressbus server configuration. Every field can come
// from a YAML file, and the serve command exposes a flag override for each.
type Config struct {
	Host         string   `yaml:"host"`
	Port         int      `yaml:"port"`
	BufferSize   int      `yaml:"buffer_size"`
	Encoding     string   `yaml:"encoding"`
	Categories   []string `yaml:"categories"`
	Wildcard     string   `yaml:"wildcard"`
	HistoryFile  string   `yaml:"history_file"`
	HistoryLimit int      `yaml:"history_limit"`
	MaxHistory   int      `yaml:"max_history"`
	MetricsAddr  string   `yaml:"metrics_addr"`
	LogLevel     string   `yaml:"log_level"`
	LogJSON      bool     `yaml:"log_json"`
}

// Default returns a configuration with all defaults applied
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// Load reads a YAML configuration file, applies defaults for absent fields,
// and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills every zero-value field with its compiled default
func (c *Config) ApplyDefaults() {
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.BufferSize == 0 {
		c.BufferSize = DefaultBufferSize
	}
	if c.Encoding == "" {
		c.Encoding = DefaultEncoding
	}
	if len(c.Categories) == 0 {
		c.Categories = append([]string(nil), DefaultCategories...)
	}
	if c.Wildcard == "" {
		c.Wildcard = DefaultWildcard
	}
	if c.HistoryFile == "" {
		c.HistoryFile = DefaultHistoryFile
	}
	if c.HistoryLimit == 0 {
		c.HistoryLimit = DefaultHistoryLimit
	}
	if c.MaxHistory == 0 {
		c.MaxHistory = DefaultMaxHistory
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate checks the configuration for values the server cannot run with
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.BufferSize < 1 {
		return fmt.Errorf("invalid buffer size: %d", c.BufferSize)
	}
	if !strings.EqualFold(c.Encoding, "utf-8") && !strings.EqualFold(c.Encoding, "utf8") {
		return fmt.Errorf("unsupported encoding: %q", c.Encoding)
	}
	if c.MaxHistory < 1 {
		return fmt.Errorf("invalid max history: %d", c.MaxHistory)
	}
	if c.HistoryLimit < 1 {
		return fmt.Errorf("invalid history limit: %d", c.HistoryLimit)
	}

	wildcard := types.Normalize(c.Wildcard)
	if wildcard == "" {
		return fmt.Errorf("wildcard keyword must not be empty")
	}

	seen := make(map[string]struct{}, len(c.Categories))
	for _, category := range c.Categories {
		normalized := types.Normalize(category)
		if normalized == "" {
			return fmt.Errorf("category names must not be empty")
		}
		if normalized == wildcard {
			return fmt.Errorf("category %q collides with the wildcard keyword", category)
		}
		seen[normalized] = struct{}{}
	}
	if len(seen) == 0 {
		return fmt.Errorf("at least one category must be configured")
	}
	return nil
}

// ListenAddr returns the host:port the server binds
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// CategorySet builds the category set this configuration describes
func (c *Config) CategorySet() *types.CategorySet {
	return types.NewCategorySet(c.Categories, c.Wildcard)
}
