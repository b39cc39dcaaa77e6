// Package config loads and validates application configuration from YAML
// files with environment-variable overrides. It provides typed structs for
// every subsystem (Server, Index, Redis, Search, Retrieval, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Index     IndexConfig     `yaml:"index"`
	Redis     RedisConfig     `yaml:"redis"`
	Search    SearchConfig    `yaml:"search"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// IndexConfig controls where the index is persisted and how folder builds
// discover files.
type IndexConfig struct {
	Path         string   `yaml:"path"`
	IncludeGlobs []string `yaml:"includeGlobs"`
	ExcludeGlobs []string `yaml:"excludeGlobs"`
	BuildWorkers int      `yaml:"buildWorkers"`
	MaxFileSize  int64    `yaml:"maxFileSize"`
}

// RedisConfig holds connection and TTL parameters for the optional
// retrieve-result cache.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// SearchConfig controls result limits and the candidate overshoot used by
// the passage retriever.
type SearchConfig struct {
	DefaultLimit    int `yaml:"defaultLimit"`
	MaxResults      int `yaml:"maxResults"`
	OvershootFactor int `yaml:"overshootFactor"`
}

// RetrievalConfig holds passage extraction and rerank tuning. The rerank
// constants are heuristic; they are configurable rather than re-derived
// because changing them alters ranking behaviour.
type RetrievalConfig struct {
	PassageWindowChars  int     `yaml:"passageWindowChars"`
	PassageOverlapChars int     `yaml:"passageOverlapChars"`
	SnippetMaxChars     int     `yaml:"snippetMaxChars"`
	EnableRerank        bool    `yaml:"enableRerank"`
	RerankMaxBonus      float64 `yaml:"rerankMaxBonus"`
	RerankDistanceCap   float64 `yaml:"rerankDistanceCap"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment
// variable overrides. It returns a Config populated with sensible defaults
// for any missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// defaultConfig returns a Config with defaults suitable for local
// development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Index: IndexConfig{
			Path:         "data/index.json",
			IncludeGlobs: []string{"*.txt", "*.md"},
			ExcludeGlobs: []string{".git/**"},
			BuildWorkers: 4,
			MaxFileSize:  1 << 20,
		},
		Redis: RedisConfig{
			Enabled:  false,
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Search: SearchConfig{
			DefaultLimit:    5,
			MaxResults:      100,
			OvershootFactor: 3,
		},
		Retrieval: RetrievalConfig{
			PassageWindowChars:  350,
			PassageOverlapChars: 60,
			SnippetMaxChars:     220,
			EnableRerank:        true,
			RerankMaxBonus:      0.25,
			RerankDistanceCap:   10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides lets RETRIEVAL_* environment variables take precedence
// over file values for deployment-sensitive settings.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RETRIEVAL_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("RETRIEVAL_INDEX_PATH"); v != "" {
		cfg.Index.Path = v
	}
	if v := os.Getenv("RETRIEVAL_INDEX_INCLUDE"); v != "" {
		cfg.Index.IncludeGlobs = strings.Split(v, ",")
	}
	if v := os.Getenv("RETRIEVAL_INDEX_EXCLUDE"); v != "" {
		cfg.Index.ExcludeGlobs = strings.Split(v, ",")
	}
	if v := os.Getenv("RETRIEVAL_REDIS_ENABLED"); v != "" {
		cfg.Redis.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("RETRIEVAL_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("RETRIEVAL_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("RETRIEVAL_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("RETRIEVAL_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("RETRIEVAL_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = port
		}
	}
}
