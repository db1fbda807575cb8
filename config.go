package gridstore

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/tailscale/hujson"

	"github.com/hupe1980/gridstore/codec"
	"github.com/hupe1980/gridstore/resource"
)

// Config is the file form of the dataset options. Zero fields keep their
// defaults. Config files are JSON with comments and trailing commas:
//
//	{
//		// 256 MiB of decoded fragments
//		"cache": {"max_bytes": 268435456, "max_nodes": 500},
//		"prefetch_limit": 4096,
//		"log_level": "debug",
//	}
type Config struct {
	Cache          CacheConfig    `json:"cache"`
	PrefetchLimit  int64          `json:"prefetch_limit,omitempty"`
	PrefetchOnOpen bool           `json:"prefetch_on_open,omitempty"`
	NameIndexHint  int            `json:"name_index_hint,omitempty"`
	LogLevel       string         `json:"log_level,omitempty"`
	Resources      ResourceConfig `json:"resources"`
}

// CacheConfig configures the chunk cache.
type CacheConfig struct {
	MaxBytes int64 `json:"max_bytes,omitempty"`
	MaxNodes int   `json:"max_nodes,omitempty"`
	MinBytes int64 `json:"min_bytes,omitempty"`
}

// ResourceConfig configures a resource.Controller. When every field is zero
// no controller is created.
type ResourceConfig struct {
	MemoryLimitBytes   int64 `json:"memory_limit_bytes,omitempty"`
	MaxConcurrentFetch int64 `json:"max_concurrent_fetch,omitempty"`
	IOLimitBytesPerSec int64 `json:"io_limit_bytes_per_sec,omitempty"`
}

// ParseConfig parses a JSON config that may contain comments and trailing
// commas.
func ParseConfig(data []byte) (Config, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("%w: invalid JSONC: %w", ErrInvalidArgument, err)
	}

	var cfg Config
	if err := codec.Default.Unmarshal(standardized, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: invalid JSON: %w", ErrInvalidArgument, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads and parses a config file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		return Config{}, err
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the config for values Open would reject.
func (c Config) Validate() error {
	if c.PrefetchLimit < 0 || c.NameIndexHint < 0 || c.Cache.MinBytes < 0 {
		return fmt.Errorf("%w: negative limit in config", ErrInvalidArgument)
	}
	if _, err := c.level(); err != nil {
		return err
	}
	return nil
}

func (c Config) level() (slog.Level, error) {
	var lvl slog.Level
	if c.LogLevel == "" {
		return lvl, nil
	}
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return lvl, fmt.Errorf("%w: log_level: %w", ErrInvalidArgument, err)
	}
	return lvl, nil
}

// Options converts the config to options.
func (c Config) Options() []Option {
	var opts []Option
	if c.Cache.MaxBytes != 0 {
		opts = append(opts, WithCacheLimit(c.Cache.MaxBytes))
	}
	if c.Cache.MaxNodes != 0 {
		opts = append(opts, WithCacheCount(c.Cache.MaxNodes))
	}
	if c.Cache.MinBytes != 0 {
		opts = append(opts, WithMinCacheBytes(c.Cache.MinBytes))
	}
	if c.PrefetchLimit != 0 {
		opts = append(opts, WithPrefetchLimit(c.PrefetchLimit))
	}
	if c.PrefetchOnOpen {
		opts = append(opts, WithPrefetchOnOpen())
	}
	if c.NameIndexHint != 0 {
		opts = append(opts, WithNameIndexHint(c.NameIndexHint))
	}
	if lvl, err := c.level(); err == nil && c.LogLevel != "" {
		opts = append(opts, WithLogLevel(lvl))
	}
	if c.Resources != (ResourceConfig{}) {
		opts = append(opts, WithResourceController(resource.NewController(resource.Config{
			MemoryLimitBytes:   c.Resources.MemoryLimitBytes,
			MaxConcurrentFetch: c.Resources.MaxConcurrentFetch,
			IOLimitBytesPerSec: c.Resources.IOLimitBytesPerSec,
		})))
	}
	return opts
}
