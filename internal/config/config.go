// Package config provides configuration loading and structs for the ruiji server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// APIKeyEnv overrides poster.api_key when set.
const APIKeyEnv = "TMDB_API_KEY"

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Corpus    CorpusConfig    `yaml:"corpus"`
	Storage   StorageConfig   `yaml:"storage"`
	Recommend RecommendConfig `yaml:"recommend"`
	Poster    PosterConfig    `yaml:"poster"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// CorpusConfig locates the precomputed corpus: a metadata CSV and an aligned vector file.
type CorpusConfig struct {
	MetadataPath string `yaml:"metadata_path"`
	VectorsPath  string `yaml:"vectors_path"`
	Watch        *bool  `yaml:"watch"`
}

// WatchOrDefault returns whether to reload the corpus on file changes; defaults to true when unset.
func (c *CorpusConfig) WatchOrDefault() bool {
	if c.Watch != nil {
		return *c.Watch
	}
	return true
}

// StorageConfig holds the SQLite path for the persistent poster cache. Empty disables persistence.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// RecommendConfig holds top-N bounds and result cache settings.
type RecommendConfig struct {
	DefaultTopN int           `yaml:"default_top_n"`
	MinTopN     int           `yaml:"min_top_n"`
	MaxTopN     int           `yaml:"max_top_n"`
	CacheSize   int           `yaml:"cache_size"`
	CacheTTL    time.Duration `yaml:"cache_ttl"`
}

// PosterConfig holds poster lookup settings.
type PosterConfig struct {
	BaseURL           string        `yaml:"base_url"`
	ImageBaseURL      string        `yaml:"image_base_url"`
	APIKey            string        `yaml:"api_key"`
	Timeout           time.Duration `yaml:"timeout"`
	CacheSize         int           `yaml:"cache_size"`
	CacheTTL          time.Duration `yaml:"cache_ttl"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	MaxPosters        int           `yaml:"max_posters"`
}

// Enabled reports whether poster lookups can be made at all.
func (p *PosterConfig) Enabled() bool {
	return p.APIKey != ""
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	if key := os.Getenv(APIKeyEnv); key != "" {
		cfg.Poster.APIKey = key
	}

	configDir := filepath.Dir(path)
	cfg.Corpus.MetadataPath = expandPath(cfg.Corpus.MetadataPath, configDir)
	cfg.Corpus.VectorsPath = expandPath(cfg.Corpus.VectorsPath, configDir)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that defaults cannot repair.
func (c *Config) Validate() error {
	r := c.Recommend
	if r.MinTopN > r.MaxTopN {
		return fmt.Errorf("invalid recommend config: min_top_n %d > max_top_n %d", r.MinTopN, r.MaxTopN)
	}
	if r.DefaultTopN < r.MinTopN || r.DefaultTopN > r.MaxTopN {
		return fmt.Errorf("invalid recommend config: default_top_n %d outside [%d, %d]", r.DefaultTopN, r.MinTopN, r.MaxTopN)
	}
	return nil
}

// Save writes the config to path. The API key is never written.
func Save(path string, cfg *Config) error {
	out := *cfg
	out.Poster.APIKey = ""
	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory. Empty paths stay empty.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
