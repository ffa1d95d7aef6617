package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults written on first sentari init.
const (
	DefaultStore             = "jsonl"
	DefaultUser              = "default"
	DefaultRecentWindow      = 5
	DefaultCarryInThreshold  = 0.86
	DefaultProfileReplyAfter = 99
	DefaultReplyMaxChars     = 55
	DefaultTimeout           = 30 * time.Second
	DefaultLogLevel          = "warn"
)

// Config is the in-memory representation of ~/.sentari/sentari.yaml.
type Config struct {
	DataDir           string        `yaml:"data_dir"`
	Store             string        `yaml:"store"`
	User              string        `yaml:"user,omitempty"`
	RecentWindow      int           `yaml:"recent_window"`
	CarryInThreshold  float64       `yaml:"carry_in_threshold"`
	ProfileReplyAfter int           `yaml:"profile_reply_after"`
	ReplyMaxChars     int           `yaml:"reply_max_chars"`
	Timeout           time.Duration `yaml:"timeout"`
	RulesFile         string        `yaml:"rules_file,omitempty"`
	LogLevel          string        `yaml:"log_level,omitempty"`
	MetricsFile       string        `yaml:"metrics_file,omitempty"`
}

// SentariDir returns the absolute path to ~/.sentari/.
func SentariDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".sentari"), nil
}

// ConfigPath returns the absolute path to ~/.sentari/sentari.yaml.
func ConfigPath() (string, error) {
	dir, err := SentariDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "sentari.yaml"), nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(p string) (string, error) {
	if !strings.HasPrefix(p, "~") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot expand ~: %w", err)
	}
	return filepath.Join(home, p[1:]), nil
}

// DefaultConfig returns the default Config written on first sentari init.
func DefaultConfig() (*Config, error) {
	dir, err := SentariDir()
	if err != nil {
		return nil, err
	}
	return &Config{
		DataDir:           filepath.Join(dir, "data"),
		Store:             DefaultStore,
		User:              DefaultUser,
		RecentWindow:      DefaultRecentWindow,
		CarryInThreshold:  DefaultCarryInThreshold,
		ProfileReplyAfter: DefaultProfileReplyAfter,
		ReplyMaxChars:     DefaultReplyMaxChars,
		Timeout:           DefaultTimeout,
		LogLevel:          DefaultLogLevel,
	}, nil
}

// Validate checks that every tunable is in range.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must be set")
	}
	switch c.Store {
	case "jsonl", "sqlite", "memory":
	default:
		return fmt.Errorf("unsupported store %q (want jsonl, sqlite or memory)", c.Store)
	}
	if c.RecentWindow < 1 {
		return fmt.Errorf("recent_window must be at least 1, got %d", c.RecentWindow)
	}
	if c.CarryInThreshold <= 0 || c.CarryInThreshold > 1 {
		return fmt.Errorf("carry_in_threshold must be within (0, 1], got %v", c.CarryInThreshold)
	}
	if c.ProfileReplyAfter < 0 {
		return fmt.Errorf("profile_reply_after must not be negative, got %d", c.ProfileReplyAfter)
	}
	if c.ReplyMaxChars < 4 || c.ReplyMaxChars > DefaultReplyMaxChars {
		return fmt.Errorf("reply_max_chars must be within [4, %d], got %d", DefaultReplyMaxChars, c.ReplyMaxChars)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %s", c.Timeout)
	}
	return nil
}

// Load reads and parses ~/.sentari/sentari.yaml. Keys missing from the file
// keep their default values.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config %s: %w", path, err)
	}
	cfg, err := DefaultConfig()
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid YAML in %s: %w", path, err)
	}
	// Expand ~ in paths at load time.
	for _, p := range []*string{&cfg.DataDir, &cfg.RulesFile, &cfg.MetricsFile} {
		if *p, err = ExpandPath(*p); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault is Load, except that a missing config file yields
// DefaultConfig so commands work before sentari init has run.
func LoadOrDefault() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig()
	}
	return Load()
}

// Save marshals cfg and writes it to ~/.sentari/sentari.yaml.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cannot create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("cannot write config %s: %w", path, err)
	}
	return nil
}
