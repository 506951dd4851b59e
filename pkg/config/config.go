// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Search, Generate, Postgres, Kafka, Redis, etc.).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// SearchPathEnv names the environment variable holding the map file search
// path, joined with the platform list separator.
const SearchPathEnv = "CONDA_SUGGEST_PATH"

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Search   SearchConfig   `yaml:"search"`
	Generate GenerateConfig `yaml:"generate"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings for the lookup service.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// SearchConfig controls where map files are looked up and how many are
// loaded in parallel. An empty Path means the locator default.
type SearchConfig struct {
	Path        []string `yaml:"path"`
	LoadWorkers int      `yaml:"loadWorkers"`
	MaxResults  int      `yaml:"maxResults"`
}

// GenerateConfig controls the map file generation pipeline.
type GenerateConfig struct {
	Subdirs     []string      `yaml:"subdirs"`
	RemoveExprs []string      `yaml:"removeExprs"`
	OutputDir   string        `yaml:"outputDir"`
	CacheDir    string        `yaml:"cacheDir"`
	Store       string        `yaml:"store"`
	Workers     int           `yaml:"workers"`
	HTTPTimeout time.Duration `yaml:"httpTimeout"`
}

// PostgresConfig holds PostgreSQL connection parameters for the artifact
// cache store.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings. An empty broker list
// disables index events.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	IndexUpdated string `yaml:"indexUpdated"`
}

// RedisConfig holds Redis connection and caching parameters. An empty Addr
// disables the result cache.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
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

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with defaults for any missing
// values.
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
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration with environment overrides
// applied, for callers that run without a config file.
func Default() *Config {
	cfg := defaultConfig()
	applyEnvOverrides(cfg)
	return cfg
}

// Validate rejects settings that cannot work at all.
func (c *Config) Validate() error {
	if c.Search.LoadWorkers < 0 {
		return fmt.Errorf("search.loadWorkers must not be negative, got %d", c.Search.LoadWorkers)
	}
	if c.Generate.Workers < 0 {
		return fmt.Errorf("generate.workers must not be negative, got %d", c.Generate.Workers)
	}
	switch c.Generate.Store {
	case "json", "postgres":
	default:
		return fmt.Errorf("generate.store must be json or postgres, got %q", c.Generate.Store)
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Search: SearchConfig{
			LoadWorkers: 4,
			MaxResults:  1000,
		},
		Generate: GenerateConfig{
			Subdirs: []string{
				"noarch",
				"linux-64",
				"osx-64",
				"win-64",
				"linux-ppc64le",
				"linux-aarch64",
			},
			RemoveExprs: []string{"__pycache__"},
			OutputDir:   ".",
			CacheDir:    ".",
			Store:       "json",
			Workers:     4,
			HTTPTimeout: 60 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "condasuggest",
			User:            "condasuggest",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			ConsumerGroup: "conda-suggest",
			Topics: KafkaTopics{
				IndexUpdated: "index.updated",
			},
		},
		Redis: RedisConfig{
			PoolSize: 10,
			CacheTTL: 10 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads SUGGEST_* environment variables (and the search
// path variable) and overrides the corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(SearchPathEnv); v != "" {
		cfg.Search.Path = filepath.SplitList(v)
	}
	if v := os.Getenv("SUGGEST_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SUGGEST_OUTPUT_DIR"); v != "" {
		cfg.Generate.OutputDir = v
	}
	if v := os.Getenv("SUGGEST_CACHE_DIR"); v != "" {
		cfg.Generate.CacheDir = v
	}
	if v := os.Getenv("SUGGEST_STORE"); v != "" {
		cfg.Generate.Store = v
	}
	if v := os.Getenv("SUGGEST_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("SUGGEST_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("SUGGEST_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("SUGGEST_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("SUGGEST_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("SUGGEST_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("SUGGEST_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("SUGGEST_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("SUGGEST_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SUGGEST_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
