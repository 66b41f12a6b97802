// Package config loads varsub settings from YAML. Loading starts from
// Default and overlays whatever the file sets, so absent fields keep their
// defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-varsub/pkg/cache"
	"github.com/goliatone/go-varsub/pkg/resolver"
	"github.com/goliatone/go-varsub/pkg/variable"
)

// EnvConfig names the environment variable consulted by Load.
const EnvConfig = "VARSUB_CONFIG"

type Config struct {
	Resolve ResolveConfig `yaml:"resolve"`
	Cache   CacheConfig   `yaml:"cache"`
	Host    HostConfig    `yaml:"host"`
	Store   StoreConfig   `yaml:"store"`
	Log     LogConfig     `yaml:"log"`
	// Sink is the default output sink name.
	Sink string `yaml:"sink"`
}

type ResolveConfig struct {
	Wrap bool `yaml:"wrap"`
	// MaxFileSize accepts humanized sizes such as "10 MiB" or "512KB".
	MaxFileSize string          `yaml:"max_file_size"`
	UseCache    bool            `yaml:"use_cache"`
	Sequential  bool            `yaml:"sequential"`
	Concurrency int             `yaml:"concurrency"`
	Recursive   RecursiveConfig `yaml:"recursive"`
}

type RecursiveConfig struct {
	Enabled  bool     `yaml:"enabled"`
	MaxDepth int      `yaml:"max_depth"`
	Include  []string `yaml:"include"`
	Exclude  []string `yaml:"exclude"`
}

type CacheConfig struct {
	MaxEntries int    `yaml:"max_entries"`
	TTL        string `yaml:"ttl"`
}

type HostConfig struct {
	AllowedRoots []string `yaml:"allowed_roots"`
}

type StoreConfig struct {
	// Path is a file path or afs URL; .json selects JSON, anything else YAML.
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	storePath := "varsub.yaml"
	if dir, err := os.UserConfigDir(); err == nil {
		storePath = filepath.Join(dir, "varsub", "store.yaml")
	}
	return &Config{
		Resolve: ResolveConfig{
			Wrap:        true,
			MaxFileSize: humanize.IBytes(uint64(resolver.DefaultMaxFileSize)),
			UseCache:    true,
			Concurrency: resolver.DefaultConcurrency,
			Recursive:   RecursiveConfig{MaxDepth: resolver.DefaultMaxDepth},
		},
		Cache: CacheConfig{
			MaxEntries: cache.DefaultMaxEntries,
			TTL:        cache.DefaultTTL.String(),
		},
		Store: StoreConfig{Path: storePath},
		Log:   LogConfig{Level: "info"},
		Sink:  "stdout",
	}
}

// Load reads the file named by VARSUB_CONFIG, or returns Default when unset.
func Load() (*Config, error) {
	path := os.Getenv(EnvConfig)
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile overlays the YAML file at path onto Default.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Parse overlays YAML data onto Default and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	cfg.expandVariables()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) expandVariables() {
	c.Store.Path = expandPath(c.Store.Path)
	for i, root := range c.Host.AllowedRoots {
		c.Host.AllowedRoots[i] = expandPath(root)
	}
}

func expandPath(p string) string {
	p = os.ExpandEnv(p)
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}

// Validate checks every field that needs parsing.
func (c *Config) Validate() error {
	var errs []error
	if _, err := c.MaxFileSize(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.CacheTTL(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, err)
	}
	if c.Resolve.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("resolve.concurrency must not be negative"))
	}
	if c.Resolve.Recursive.MaxDepth < 0 {
		errs = append(errs, fmt.Errorf("resolve.recursive.max_depth must not be negative"))
	}
	if c.Cache.MaxEntries < 0 {
		errs = append(errs, fmt.Errorf("cache.max_entries must not be negative"))
	}
	return errors.Join(errs...)
}

// MaxFileSize returns resolve.max_file_size in bytes.
func (c *Config) MaxFileSize() (int64, error) {
	raw := strings.TrimSpace(c.Resolve.MaxFileSize)
	if raw == "" {
		return resolver.DefaultMaxFileSize, nil
	}
	n, err := humanize.ParseBytes(raw)
	if err != nil {
		return 0, fmt.Errorf("resolve.max_file_size %q: %w", raw, err)
	}
	if n == 0 {
		return 0, fmt.Errorf("resolve.max_file_size must be positive")
	}
	return int64(n), nil
}

// CacheTTL returns cache.ttl as a duration.
func (c *Config) CacheTTL() (time.Duration, error) {
	raw := strings.TrimSpace(c.Cache.TTL)
	if raw == "" {
		return cache.DefaultTTL, nil
	}
	ttl, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("cache.ttl %q: %w", raw, err)
	}
	if ttl <= 0 {
		return 0, fmt.Errorf("cache.ttl must be positive")
	}
	return ttl, nil
}

// LogLevel returns log.level as a zap level.
func (c *Config) LogLevel() (zapcore.Level, error) {
	raw := strings.TrimSpace(c.Log.Level)
	if raw == "" {
		return zapcore.InfoLevel, nil
	}
	level, err := zapcore.ParseLevel(raw)
	if err != nil {
		return zapcore.InfoLevel, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// ResolveOptions converts the resolve and cache sections into batch options.
func (c *Config) ResolveOptions() (resolver.Options, error) {
	size, err := c.MaxFileSize()
	if err != nil {
		return resolver.Options{}, err
	}
	ttl, err := c.CacheTTL()
	if err != nil {
		return resolver.Options{}, err
	}
	rec := c.Resolve.Recursive
	return resolver.Options{
		WrapInTags:  c.Resolve.Wrap,
		MaxFileSize: size,
		UseCache:    c.Resolve.UseCache,
		CacheTTL:    ttl,
		Recursive: variable.RecursiveOptions{
			Enabled:  rec.Enabled,
			MaxDepth: rec.MaxDepth,
			Include:  append([]string(nil), rec.Include...),
			Exclude:  append([]string(nil), rec.Exclude...),
		},
		Sequential:  c.Resolve.Sequential,
		Concurrency: c.Resolve.Concurrency,
	}, nil
}

// CacheOptions converts the cache section into cache options.
func (c *Config) CacheOptions() ([]cache.Option, error) {
	ttl, err := c.CacheTTL()
	if err != nil {
		return nil, err
	}
	return []cache.Option{cache.WithTTL(ttl), cache.WithMaxEntries(c.Cache.MaxEntries)}, nil
}
