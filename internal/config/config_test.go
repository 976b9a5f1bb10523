package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
	if cfg.Storage.Backend != "memory" {
		t.Errorf("expected memory backend by default, got %s", cfg.Storage.Backend)
	}
	if cfg.Ingestion.Mode != "on_request" {
		t.Errorf("expected on_request mode by default, got %s", cfg.Ingestion.Mode)
	}
	if cfg.Auth.Keys["admin_api_key"] != "admin" || cfg.Auth.Keys["user_api_key"] != "user" {
		t.Errorf("unexpected default keys %v", cfg.Auth.Keys)
	}
	if cfg.Storage.Redis.ReadingsKey != "data" || cfg.Storage.Redis.InvalidationsKey != "discard_reasons" {
		t.Errorf("unexpected redis keys %+v", cfg.Storage.Redis)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty listen", func(c *Config) { c.Server.Listen = "" }, "listen is required"},
		{"tls cert without key", func(c *Config) { c.Server.TLSCertFile = "cert.pem" }, "must be set together"},
		{"negative auth limit", func(c *Config) { c.Auth.MaxFailuresPerMinute = -1 }, "max_failures_per_minute"},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, "unknown log level"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "unknown format"},
		{"relative source url", func(c *Config) { c.Source.URL = "localhost" }, "not an absolute URL"},
		{"bad mode", func(c *Config) { c.Ingestion.Mode = "never" }, "mode must be one of"},
		{"interval without period", func(c *Config) {
			c.Ingestion.Mode = "interval"
			c.Ingestion.Interval = 0
		}, "interval must be positive"},
		{"bad timezone", func(c *Config) { c.Query.Timezone = "Mars/Olympus" }, "timezone"},
		{"no keys", func(c *Config) { c.Auth.Keys = nil }, "at least one key"},
		{"bad role", func(c *Config) { c.Auth.Keys = map[string]string{"k": "root"} }, "unknown role"},
		{"bad backend", func(c *Config) { c.Storage.Backend = "cassandra" }, "backend must be one of"},
		{"postgres without dsn", func(c *Config) { c.Storage.Backend = "postgres" }, "sql.dsn is required"},
		{"redis same keys", func(c *Config) {
			c.Storage.Backend = "redis"
			c.Storage.Redis.InvalidationsKey = c.Storage.Redis.ReadingsKey
		}, "must differ"},
		{"kafka without brokers", func(c *Config) { c.Notify.Kafka.Enabled = true }, "kafka.brokers"},
		{"bad compression", func(c *Config) { c.Archive.Compression = "brotli" }, "unknown compression"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestConfigValidate_CollectsAll(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Listen = ""
	cfg.Storage.Backend = "cassandra"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "server:") || !strings.Contains(msg, "storage:") {
		t.Errorf("expected both sections reported, got %q", msg)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vigil.yaml")

	t.Setenv("VIGIL_TEST_ADMIN_KEY", "s3cret")

	yaml := `
server:
  listen: "127.0.0.1:9000"
  write_timeout: 1m
source:
  url: http://sensor.local:28462
  timeout: 2s
ingestion:
  mode: both
  interval: 30s
query:
  timezone: UTC
  pushdown: true
auth:
  keys:
    ${VIGIL_TEST_ADMIN_KEY}: admin
storage:
  backend: redis
  redis:
    addr: redis:6379
    key_prefix: "vigil:"
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Listen != "127.0.0.1:9000" {
		t.Errorf("listen = %s", cfg.Server.Listen)
	}
	if cfg.Server.WriteTimeout != time.Minute {
		t.Errorf("write_timeout = %v", cfg.Server.WriteTimeout)
	}
	if cfg.Server.ReadTimeout != DefaultConfig().Server.ReadTimeout {
		t.Errorf("unset read_timeout should keep default, got %v", cfg.Server.ReadTimeout)
	}
	if cfg.Source.Timeout != 2*time.Second {
		t.Errorf("source timeout = %v", cfg.Source.Timeout)
	}
	if cfg.Ingestion.Mode != "both" || cfg.Ingestion.Interval != 30*time.Second {
		t.Errorf("ingestion = %+v", cfg.Ingestion)
	}
	if !cfg.Query.Pushdown || cfg.Query.Timezone != "UTC" {
		t.Errorf("query = %+v", cfg.Query)
	}
	if cfg.Auth.Keys["s3cret"] != "admin" {
		t.Errorf("env expansion failed, keys = %v", cfg.Auth.Keys)
	}
	if cfg.Storage.Redis.Addr != "redis:6379" || cfg.Storage.Redis.KeyPrefix != "vigil:" {
		t.Errorf("redis = %+v", cfg.Storage.Redis)
	}
	if cfg.Storage.Redis.ReadingsKey != "data" {
		t.Errorf("unset readings_key should keep default, got %s", cfg.Storage.Redis.ReadingsKey)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("missing file should fall back to defaults: %v", err)
	}
	if cfg.Server.Listen != DefaultConfig().Server.Listen {
		t.Errorf("expected default listen, got %s", cfg.Server.Listen)
	}
}

func TestLoad_Invalid(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.yaml")
	os.WriteFile(bad, []byte("server: [unclosed"), 0o644)
	if _, err := Load(bad); err == nil || !strings.Contains(err.Error(), "parse config file") {
		t.Errorf("expected parse error, got %v", err)
	}

	invalid := filepath.Join(dir, "invalid.yaml")
	os.WriteFile(invalid, []byte("storage:\n  backend: cassandra\n"), 0o644)
	if _, err := Load(invalid); err == nil || !strings.Contains(err.Error(), "validate config") {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestLoad_MongoEnv(t *testing.T) {
	t.Setenv("MONGODB_CONNECTION_STRING", "mongodb://db:27017")
	t.Setenv("MONGODB_DATABASE_NAME", "telemetry")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Storage.Mongo.URI != "mongodb://db:27017" {
		t.Errorf("uri = %s", cfg.Storage.Mongo.URI)
	}
	if cfg.Storage.Mongo.Database != "telemetry" {
		t.Errorf("database = %s", cfg.Storage.Mongo.Database)
	}
	if cfg.Storage.Mongo.ReadingsCollection != "data_collection" {
		t.Errorf("collection = %s", cfg.Storage.Mongo.ReadingsCollection)
	}
}
