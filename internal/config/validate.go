package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/xtxerr/vigil/internal/logging"
)

var log = logging.Component("config")

var (
	validBackends     = map[string]bool{"memory": true, "redis": true, "mongo": true, "postgres": true, "duckdb": true}
	validModes        = map[string]bool{"on_request": true, "interval": true, "both": true}
	validRoles        = map[string]bool{"admin": true, "user": true}
	validFormats      = map[string]bool{"": true, "auto": true, "text": true, "json": true}
	validCompressions = map[string]bool{"": true, "none": true, "snappy": true, "zstd": true, "lz4": true, "gzip": true}
)

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("server: %w", err))
	}
	if err := c.Log.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("log: %w", err))
	}
	if err := c.Source.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("source: %w", err))
	}
	if err := c.Ingestion.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("ingestion: %w", err))
	}
	if err := c.Query.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("query: %w", err))
	}
	if err := c.Auth.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("auth: %w", err))
	}
	if err := c.Storage.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("storage: %w", err))
	}
	if err := c.Notify.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("notify: %w", err))
	}
	if !validCompressions[c.Archive.Compression] {
		errs = append(errs, fmt.Errorf("archive: unknown compression %q", c.Archive.Compression))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks the server configuration.
func (c *ServerConfig) Validate() error {
	var errs []error

	if c.Listen == "" {
		errs = append(errs, errors.New("listen is required"))
	}
	for name, d := range map[string]time.Duration{
		"read_timeout":     c.ReadTimeout,
		"write_timeout":    c.WriteTimeout,
		"shutdown_timeout": c.ShutdownTimeout,
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("%s cannot be negative", name))
		}
	}
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		errs = append(errs, errors.New("tls_cert_file and tls_key_file must be set together"))
	}

	return errors.Join(errs...)
}

// Validate checks the log configuration.
func (c *LogConfig) Validate() error {
	if _, err := logging.ParseLevel(c.Level); err != nil {
		return err
	}
	if !validFormats[c.Format] {
		return fmt.Errorf("unknown format %q", c.Format)
	}
	return nil
}

// Validate checks the source configuration.
func (c *SourceConfig) Validate() error {
	var errs []error

	if c.URL == "" {
		errs = append(errs, errors.New("url is required"))
	} else if u, err := url.Parse(c.URL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("url %q is not an absolute URL", c.URL))
	}
	if c.Timeout < 0 {
		errs = append(errs, errors.New("timeout cannot be negative"))
	}

	return errors.Join(errs...)
}

// Validate checks the ingestion configuration.
func (c *IngestionConfig) Validate() error {
	if !validModes[c.Mode] {
		return fmt.Errorf("mode must be one of: on_request, interval, both")
	}
	if c.Mode != "on_request" && c.Interval <= 0 {
		return errors.New("interval must be positive when mode is interval or both")
	}
	return nil
}

// Validate checks the query configuration.
func (c *QueryConfig) Validate() error {
	switch c.Timezone {
	case "", "Local":
		return nil
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("timezone: %w", err)
	}
	return nil
}

// Validate checks the auth configuration.
func (c *AuthConfig) Validate() error {
	var errs []error

	if len(c.Keys) == 0 {
		errs = append(errs, errors.New("at least one key is required"))
	}
	if c.MaxFailuresPerMinute < 0 {
		errs = append(errs, errors.New("max_failures_per_minute cannot be negative"))
	}
	for key, role := range c.Keys {
		if key == "" {
			errs = append(errs, errors.New("keys: empty key"))
		}
		if !validRoles[role] {
			errs = append(errs, fmt.Errorf("keys: unknown role %q", role))
		}
	}

	return errors.Join(errs...)
}

// Validate checks the storage configuration.
func (c *StorageConfig) Validate() error {
	var errs []error

	if !validBackends[c.Backend] {
		return fmt.Errorf("backend must be one of: memory, redis, mongo, postgres, duckdb")
	}

	switch c.Backend {
	case "redis":
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("redis.addr is required"))
		}
		if c.Redis.DB < 0 {
			errs = append(errs, errors.New("redis.db cannot be negative"))
		}
		if c.Redis.ReadingsKey != "" && c.Redis.ReadingsKey == c.Redis.InvalidationsKey {
			errs = append(errs, errors.New("redis readings_key and invalidations_key must differ"))
		}
	case "mongo":
		if c.Mongo.URI == "" {
			errs = append(errs, errors.New("mongo.uri is required"))
		}
		if c.Mongo.Database == "" {
			errs = append(errs, errors.New("mongo.database is required"))
		}
	case "postgres":
		if c.SQL.DSN == "" {
			errs = append(errs, errors.New("sql.dsn is required for postgres"))
		}
	}

	return errors.Join(errs...)
}

// Validate checks the notify configuration.
func (c *NotifyConfig) Validate() error {
	if !c.Kafka.Enabled {
		return nil
	}
	var errs []error
	if len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("kafka.brokers is required when enabled"))
	}
	if c.Kafka.Topic == "" {
		errs = append(errs, errors.New("kafka.topic is required when enabled"))
	}
	return errors.Join(errs...)
}
