// Package config loads and validates the vigil configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	defaults "github.com/xtxerr/vigil/config"
)

// Config represents the complete vigil configuration.
type Config struct {
	// Server configures the HTTP listener.
	Server ServerConfig `yaml:"server"`

	// Log configures logging.
	Log LogConfig `yaml:"log"`

	// Source configures the external reading endpoint.
	Source SourceConfig `yaml:"source"`

	// Ingestion configures when ingestion cycles run.
	Ingestion IngestionConfig `yaml:"ingestion"`

	// Query configures the query service.
	Query QueryConfig `yaml:"query"`

	// Auth maps API keys to roles.
	Auth AuthConfig `yaml:"auth"`

	// Storage selects and configures the storage backend.
	Storage StorageConfig `yaml:"storage"`

	// Notify configures invalidation event publishing.
	Notify NotifyConfig `yaml:"notify"`

	// Archive configures Parquet snapshots.
	Archive ArchiveConfig `yaml:"archive"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Listen          string        `yaml:"listen"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// TLS is enabled when both files are set.
	TLSCertFile string `yaml:"tls_cert_file"`
	TLSKeyFile  string `yaml:"tls_key_file"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// Format is one of text, json, auto.
	Format string `yaml:"format"`
}

// SourceConfig configures the external reading endpoint.
type SourceConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// IngestionConfig configures when ingestion cycles run.
type IngestionConfig struct {
	// Mode is one of on_request, interval, both.
	Mode string `yaml:"mode"`

	// Interval is the background worker period.
	Interval time.Duration `yaml:"interval"`

	// Coalesce shares one in-flight cycle between concurrent requests.
	Coalesce bool `yaml:"coalesce"`
}

// QueryConfig configures the query service.
type QueryConfig struct {
	// Timezone is an IANA zone for output timestamps. Empty or "Local"
	// uses the process zone.
	Timezone string `yaml:"timezone"`

	// Pushdown filters by time inside the backend when supported.
	Pushdown bool `yaml:"pushdown"`
}

// AuthConfig maps API keys to roles.
type AuthConfig struct {
	// Keys maps an API key to a role name (admin or user).
	Keys map[string]string `yaml:"keys"`

	// MaxFailuresPerMinute blocks a client IP after this many failed
	// attempts within a minute. Zero disables blocking.
	MaxFailuresPerMinute int `yaml:"max_failures_per_minute"`
}

// StorageConfig selects and configures the storage backend.
type StorageConfig struct {
	// Backend is one of memory, redis, mongo, postgres, duckdb.
	Backend string `yaml:"backend"`

	Redis RedisConfig `yaml:"redis"`
	Mongo MongoConfig `yaml:"mongo"`
	SQL   SQLConfig   `yaml:"sql"`
}

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	Addr             string        `yaml:"addr"`
	Password         string        `yaml:"password"`
	DB               int           `yaml:"db"`
	KeyPrefix        string        `yaml:"key_prefix"`
	ReadingsKey      string        `yaml:"readings_key"`
	InvalidationsKey string        `yaml:"invalidations_key"`
	Timeout          time.Duration `yaml:"timeout"`
}

// MongoConfig configures the MongoDB backend.
type MongoConfig struct {
	URI                     string        `yaml:"uri"`
	Database                string        `yaml:"database"`
	ReadingsCollection      string        `yaml:"readings_collection"`
	InvalidationsCollection string        `yaml:"invalidations_collection"`
	Timeout                 time.Duration `yaml:"timeout"`
}

// SQLConfig configures the postgres and duckdb backends.
type SQLConfig struct {
	// DSN is the driver connection string. For duckdb an empty DSN opens
	// an in-memory database.
	DSN                string `yaml:"dsn"`
	ReadingsTable      string `yaml:"readings_table"`
	InvalidationsTable string `yaml:"invalidations_table"`
}

// NotifyConfig configures invalidation event publishing.
type NotifyConfig struct {
	Kafka KafkaConfig `yaml:"kafka"`
}

// KafkaConfig configures the Kafka publisher.
type KafkaConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic"`
	FlushTimeout time.Duration `yaml:"flush_timeout"`
}

// ArchiveConfig configures Parquet snapshots.
type ArchiveConfig struct {
	// Dir is the output directory.
	Dir string `yaml:"dir"`

	// Compression is one of snappy, zstd, lz4, gzip, none.
	Compression string `yaml:"compression"`
}

// Load loads configuration from a YAML file. Environment variables in the
// file are expanded before parsing. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		log.Info("config file not found, using defaults", "path", path)
	} else if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// applyEnv fills MongoDB settings from the MONGODB_* variables when the
// file leaves them at their defaults.
func (c *Config) applyEnv() {
	env := func(key string, dst *string, def string) {
		if v := os.Getenv(key); v != "" && *dst == def {
			*dst = v
		}
	}
	env("MONGODB_CONNECTION_STRING", &c.Storage.Mongo.URI, defaults.DefaultMongoURI)
	env("MONGODB_DATABASE_NAME", &c.Storage.Mongo.Database, defaults.DefaultMongoDatabase)
	env("MONGODB_DATA_COLLECTION_NAME", &c.Storage.Mongo.ReadingsCollection, defaults.DefaultMongoReadingsCollection)
	env("MONGODB_DISCARD_COLLECTION_NAME", &c.Storage.Mongo.InvalidationsCollection, defaults.DefaultMongoInvalidationsCollection)
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Listen:          defaults.DefaultListenAddress,
			ReadTimeout:     defaults.DefaultReadTimeout,
			WriteTimeout:    defaults.DefaultWriteTimeout,
			ShutdownTimeout: defaults.DefaultShutdownTimeout,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
		Source: SourceConfig{
			URL:     defaults.DefaultSourceURL,
			Timeout: defaults.DefaultSourceTimeout,
		},
		Ingestion: IngestionConfig{
			Mode:     defaults.DefaultIngestionMode,
			Interval: defaults.DefaultIngestionInterval,
			Coalesce: true,
		},
		Query: QueryConfig{
			Timezone: "Local",
		},
		Auth: AuthConfig{
			Keys: map[string]string{
				defaults.DefaultAdminAPIKey: "admin",
				defaults.DefaultUserAPIKey:  "user",
			},
			MaxFailuresPerMinute: defaults.DefaultAuthRateLimitPerMinute,
		},
		Storage: StorageConfig{
			Backend: defaults.DefaultBackend,
			Redis: RedisConfig{
				Addr:             defaults.DefaultRedisAddr,
				ReadingsKey:      defaults.DefaultRedisReadingsKey,
				InvalidationsKey: defaults.DefaultRedisInvalidationsKey,
				Timeout:          defaults.DefaultStorageTimeout,
			},
			Mongo: MongoConfig{
				URI:                     defaults.DefaultMongoURI,
				Database:                defaults.DefaultMongoDatabase,
				ReadingsCollection:      defaults.DefaultMongoReadingsCollection,
				InvalidationsCollection: defaults.DefaultMongoInvalidationsCollection,
				Timeout:                 defaults.DefaultStorageTimeout,
			},
			SQL: SQLConfig{
				ReadingsTable:      defaults.DefaultSQLReadingsTable,
				InvalidationsTable: defaults.DefaultSQLInvalidationsTable,
			},
		},
		Notify: NotifyConfig{
			Kafka: KafkaConfig{
				Topic:        defaults.DefaultKafkaTopic,
				FlushTimeout: defaults.DefaultKafkaFlushTimeout,
			},
		},
		Archive: ArchiveConfig{
			Dir:         "archive",
			Compression: "zstd",
		},
	}
}
