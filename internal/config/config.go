// Package config loads reelfeed configuration in three layers: struct
// defaults, an optional YAML file, then REELFEED_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar overrides the config file search path.
const ConfigPathEnvVar = "REELFEED_CONFIG"

// envPrefix scopes environment overrides: REELFEED_STORAGE_BACKEND,
// REELFEED_RECOMMEND_FRESHNESS_WINDOW, and so on.
const envPrefix = "REELFEED_"

// DefaultConfigPaths are searched in order; the first file found wins.
var DefaultConfigPaths = []string{
	"reelfeed.yaml",
	"reelfeed.yml",
}

// Config is the full runtime configuration.
type Config struct {
	DataDir   string          `koanf:"data_dir"`
	Storage   StorageConfig   `koanf:"storage"`
	Cache     CacheConfig     `koanf:"cache"`
	Vector    VectorConfig    `koanf:"vector"`
	Recommend RecommendConfig `koanf:"recommend"`
}

// StorageConfig selects and bounds the KV backend.
type StorageConfig struct {
	// Backend is "sqlite" or "badger".
	Backend  string `koanf:"backend"`
	MaxBytes int64  `koanf:"max_bytes"`
}

// CacheConfig holds per-source default TTLs and the maintenance bound.
type CacheConfig struct {
	TTLs       map[string]time.Duration `koanf:"ttls"`
	MaxEntries int                      `koanf:"max_entries"`
}

// VectorConfig bounds the similarity index.
type VectorConfig struct {
	MaxEntries int `koanf:"max_entries"`
	Dims       int `koanf:"dims"`
}

// RecommendConfig holds the engine's time windows.
type RecommendConfig struct {
	FreshnessWindow time.Duration `koanf:"freshness_window"`
	DismissedTTL    time.Duration `koanf:"dismissed_ttl"`
}

// Default returns the configuration with all default values.
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		DataDir: filepath.Join(home, ".reelfeed"),
		Storage: StorageConfig{
			Backend:  "sqlite",
			MaxBytes: 64 << 20, // 64MB soft quota
		},
		Cache: CacheConfig{
			TTLs: map[string]time.Duration{
				"tmdb":         6 * time.Hour,
				"availability": 12 * time.Hour,
				"search":       1 * time.Hour,
				"similar":      24 * time.Hour,
			},
			MaxEntries: 2000,
		},
		Vector: VectorConfig{
			MaxEntries: 500,
			Dims:       64,
		},
		Recommend: RecommendConfig{
			FreshnessWindow: 24 * time.Hour,
			DismissedTTL:    30 * 24 * time.Hour,
		},
	}
}

// envKeys maps REELFEED_-suffixed environment names to config paths.
// Unlisted variables are ignored.
var envKeys = map[string]string{
	"DATA_DIR":                   "data_dir",
	"STORAGE_BACKEND":            "storage.backend",
	"STORAGE_MAX_BYTES":          "storage.max_bytes",
	"CACHE_MAX_ENTRIES":          "cache.max_entries",
	"VECTOR_MAX_ENTRIES":         "vector.max_entries",
	"VECTOR_DIMS":                "vector.dims",
	"RECOMMEND_FRESHNESS_WINDOW": "recommend.freshness_window",
	"RECOMMEND_DISMISSED_TTL":    "recommend.dismissed_ttl",
}

// Load builds the layered configuration.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// REELFEED_STORAGE_BACKEND -> storage.backend. Only known keys map; the
	// underscore-inside-field-names ambiguity rules out a generic transform.
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return envKeys[strings.TrimPrefix(s, envPrefix)]
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "sqlite", "badger":
	default:
		return fmt.Errorf("unknown storage backend %q (use sqlite or badger)", c.Storage.Backend)
	}
	if c.Vector.Dims < 8 {
		return fmt.Errorf("vector dims must be at least 8, got %d", c.Vector.Dims)
	}
	return nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
