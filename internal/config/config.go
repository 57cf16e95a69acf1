package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the main configuration structure
type Config struct {
	API      APIConfig      `yaml:"api"`
	Logging  LoggingConfig  `yaml:"logging"`
	Journal  JournalConfig  `yaml:"journal"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Exporter ExporterConfig `yaml:"exporter"`
	Fake     FakeConfig     `yaml:"fake"`
}

// APIConfig contains the remote API connection settings
type APIConfig struct {
	BaseURL   string        `yaml:"base_url"`
	APIKey    string        `yaml:"api_key"`
	UserKey   string        `yaml:"user_key"`
	ClientID  *int64        `yaml:"client_id,omitempty"` // Sent only when set
	Timeout   time.Duration `yaml:"timeout"`             // HTTP client timeout (default: 30s)
	UserAgent string        `yaml:"user_agent,omitempty"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// JournalConfig contains call journal settings
type JournalConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Path            string        `yaml:"path"`
	MaxAge          time.Duration `yaml:"max_age"`          // Delete records older than this (0 = keep forever)
	MaxCount        int           `yaml:"max_count"`        // Keep at most this many records (0 = unlimited)
	CleanupInterval time.Duration `yaml:"cleanup_interval"` // How often long-running commands clean up
}

// MetricsConfig contains Prometheus metrics settings
type MetricsConfig struct {
	Enabled    bool     `yaml:"enabled"`
	ListenAddr string   `yaml:"listen_addr"` // Default: :9090
	Path       string   `yaml:"path"`        // Default: /metrics
	AllowedIPs []string `yaml:"allowed_ips"` // IP addresses/CIDRs allowed to access metrics
}

// ExporterConfig contains settings of the segment count exporter
type ExporterConfig struct {
	Interval time.Duration `yaml:"interval"` // Default: 5m
	Lists    []int64       `yaml:"lists"`    // Lists whose segments are exported
	Details  bool          `yaml:"details"`  // Ask for detailed segment data
}

// FakeConfig contains settings of the local fake API server
type FakeConfig struct {
	ListenAddr  string     `yaml:"listen_addr"`  // Default: :8089
	APIKey      string     `yaml:"api_key"`      // Empty = accept any key
	StoragePath string     `yaml:"storage_path"` // Empty = temporary file
	AllowedIPs  []string   `yaml:"allowed_ips"`
	Lists       []FakeList `yaml:"lists"` // Lists seeded at startup
}

// FakeList is a mailing list seeded into the fake API
type FakeList struct {
	ID       int64         `yaml:"id"`
	Name     string        `yaml:"name"`
	Count    int64         `yaml:"count"`
	Segments []FakeSegment `yaml:"segments"`
}

// FakeSegment is a segment seeded into a fake list
type FakeSegment struct {
	ID         int64    `yaml:"id"`
	Name       string   `yaml:"name"`
	Query      string   `yaml:"query"`
	Count      int64    `yaml:"count"`
	Engagement *float64 `yaml:"engagement,omitempty"`
}

// Load loads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Default returns a configuration with every default applied
func Default() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

// setDefaults sets default values for configuration
func (c *Config) setDefaults() {
	if c.API.Timeout == 0 {
		c.API.Timeout = 30 * time.Second
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}

	if c.Journal.Path == "" {
		c.Journal.Path = defaultJournalPath()
	}
	if c.Journal.CleanupInterval == 0 {
		c.Journal.CleanupInterval = time.Hour
	}

	if c.Metrics.ListenAddr == "" {
		c.Metrics.ListenAddr = ":9090"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}

	if c.Exporter.Interval == 0 {
		c.Exporter.Interval = 5 * time.Minute
	}

	if c.Fake.ListenAddr == "" {
		c.Fake.ListenAddr = ":8089"
	}
}

func defaultJournalPath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "listctl", "journal.db")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid logging.level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid logging.format: %s (must be json or text)", c.Logging.Format)
	}

	if c.API.BaseURL != "" {
		u, err := url.Parse(c.API.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid api.base_url: %q", c.API.BaseURL)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("api.base_url must use http or https")
		}
	}
	if c.API.Timeout < 0 {
		return fmt.Errorf("api.timeout must not be negative")
	}
	if c.API.ClientID != nil && *c.API.ClientID <= 0 {
		return fmt.Errorf("api.client_id must be positive when set")
	}

	if c.Journal.MaxAge < 0 || c.Journal.MaxCount < 0 {
		return fmt.Errorf("journal.max_age and journal.max_count must not be negative")
	}

	if c.Exporter.Interval < time.Second {
		return fmt.Errorf("exporter.interval must be at least 1s")
	}
	for _, id := range c.Exporter.Lists {
		if id <= 0 {
			return fmt.Errorf("exporter.lists: list id must be positive, got %d", id)
		}
	}

	seen := make(map[int64]bool)
	for _, l := range c.Fake.Lists {
		if l.ID <= 0 {
			return fmt.Errorf("fake.lists: list id must be positive, got %d", l.ID)
		}
		if seen[l.ID] {
			return fmt.Errorf("fake.lists: duplicate list id %d", l.ID)
		}
		seen[l.ID] = true
		if l.Count < 0 {
			return fmt.Errorf("fake.lists.%d.count must not be negative", l.ID)
		}
		for _, seg := range l.Segments {
			if seg.ID < 0 || seg.Count < 0 {
				return fmt.Errorf("fake.lists.%d.segments: id and count must not be negative", l.ID)
			}
			if seg.Name == "" {
				return fmt.Errorf("fake.lists.%d.segments: name is required", l.ID)
			}
		}
	}

	return nil
}

// ValidateClient checks the settings needed to call the remote API
func (c *Config) ValidateClient() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if c.API.APIKey == "" {
		return fmt.Errorf("api.api_key is required")
	}
	return nil
}

// Save writes the configuration to path with owner-only permissions
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Redacted returns a copy with secrets masked, for display
func (c *Config) Redacted() *Config {
	out := *c
	if out.API.APIKey != "" {
		out.API.APIKey = "***"
	}
	if out.API.UserKey != "" {
		out.API.UserKey = "***"
	}
	if out.Fake.APIKey != "" {
		out.Fake.APIKey = "***"
	}
	return &out
}
