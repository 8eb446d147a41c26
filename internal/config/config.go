package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultRefreshIntervalSeconds is used when refresh_interval_seconds is unset.
	DefaultRefreshIntervalSeconds = 600
	// DefaultCacheCapacity is used when cache_capacity is unset.
	DefaultCacheCapacity = 10
)

// Config is the in-memory representation of ~/.valcache/valcache.yaml.
type Config struct {
	Roots                  []string `yaml:"roots"`
	RefreshIntervalSeconds int      `yaml:"refresh_interval_seconds"`
	CacheCapacity          int      `yaml:"cache_capacity"`
	Watch                  bool     `yaml:"watch,omitempty"`
	LogLevel               string   `yaml:"log_level,omitempty"`
	Pinned                 []string `yaml:"pinned,omitempty"`
}

// HomeDir returns the absolute path to ~/.valcache/, or $VALCACHE_HOME when set.
func HomeDir() (string, error) {
	if d := os.Getenv("VALCACHE_HOME"); d != "" {
		return ExpandPath(d)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".valcache"), nil
}

// ConfigPath returns the absolute path to the config file.
func ConfigPath() (string, error) {
	dir, err := HomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "valcache.yaml"), nil
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

// DefaultConfig returns the Config written by valcache init.
func DefaultConfig() *Config {
	return &Config{
		Roots:                  []string{},
		RefreshIntervalSeconds: DefaultRefreshIntervalSeconds,
		CacheCapacity:          DefaultCacheCapacity,
		LogLevel:               "info",
	}
}

// Load reads the config file, applies environment overrides and validates
// the result.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile is Load for an explicit path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid YAML in %s: %w", path, err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.expand(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from VALCACHE_* variables, looked up in the
// process environment first and ~/.valcache/.env second.
func (c *Config) ApplyEnv() error {
	roots, err := GetConfigValue("VALCACHE_ROOTS")
	if err != nil {
		return err
	}
	if roots != "" {
		c.Roots = filepath.SplitList(roots)
	}
	for key, dst := range map[string]*int{
		"VALCACHE_REFRESH_INTERVAL": &c.RefreshIntervalSeconds,
		"VALCACHE_CACHE_CAPACITY":   &c.CacheCapacity,
	} {
		v, err := GetConfigValue(key)
		if err != nil {
			return err
		}
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s=%q: %w", key, v, err)
		}
		*dst = n
	}
	level, err := GetConfigValue("VALCACHE_LOG_LEVEL")
	if err != nil {
		return err
	}
	if level != "" {
		c.LogLevel = level
	}
	return nil
}

func (c *Config) expand() error {
	for _, list := range [][]string{c.Roots, c.Pinned} {
		for i, p := range list {
			e, err := ExpandPath(p)
			if err != nil {
				return err
			}
			list[i] = e
		}
	}
	return nil
}

// Validate checks the recognized options.
func (c *Config) Validate() error {
	var errs []error
	if len(c.Roots) == 0 {
		errs = append(errs, errors.New("no roots configured"))
	}
	if c.RefreshIntervalSeconds < 0 {
		errs = append(errs, fmt.Errorf("refresh_interval_seconds must be >= 0, got %d", c.RefreshIntervalSeconds))
	}
	if c.CacheCapacity < 0 {
		errs = append(errs, fmt.Errorf("cache_capacity must be >= 0, got %d", c.CacheCapacity))
	}
	return errors.Join(errs...)
}

// RefreshInterval returns the configured interval as a Duration.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalSeconds) * time.Second
}

// Save marshals cfg and writes it to the config file.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cannot create %s: %w", filepath.Dir(path), err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("cannot write config %s: %w", path, err)
	}
	return nil
}
