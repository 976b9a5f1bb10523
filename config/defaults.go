// Package config provides configuration defaults and utilities
// for the vigil application.
//
// This package defines all configurable constants with documented defaults.
// Users can override these values via config.yaml or environment variables.
package config

import "time"

// =============================================================================
// Network Defaults
// =============================================================================

const (
	// DefaultListenAddress is the default HTTP listen address.
	// Override via config: server.listen
	DefaultListenAddress = "0.0.0.0:8000"

	// DefaultReadTimeout bounds reading a full request.
	// Override via config: server.read_timeout
	DefaultReadTimeout = 15 * time.Second

	// DefaultWriteTimeout bounds writing a response. It must cover one
	// ingestion cycle plus the query, since data requests trigger both.
	// Override via config: server.write_timeout
	DefaultWriteTimeout = 30 * time.Second

	// DefaultShutdownTimeout is how long in-flight requests may run after
	// a shutdown signal.
	// Override via config: server.shutdown_timeout
	DefaultShutdownTimeout = 10 * time.Second
)

// =============================================================================
// External Source Defaults
// =============================================================================

const (
	// DefaultSourceURL is the endpoint serving the latest reading.
	// Override via config: source.url
	DefaultSourceURL = "http://localhost:28462"

	// DefaultSourceTimeout bounds a single fetch. Fetches are never retried.
	// Override via config: source.timeout
	DefaultSourceTimeout = 5 * time.Second
)

// =============================================================================
// Ingestion Defaults
// =============================================================================

const (
	// DefaultIngestionMode triggers one ingestion cycle per data request.
	// Override via config: ingestion.mode (on_request, interval, both)
	DefaultIngestionMode = "on_request"

	// DefaultIngestionInterval is the period of the background worker in
	// interval mode.
	// Override via config: ingestion.interval
	DefaultIngestionInterval = 10 * time.Second

	// DefaultMaxReadingAge is the age past which a reading is DATA_TOO_OLD.
	// Not configurable.
	DefaultMaxReadingAge = time.Hour

	// DefaultSketchAccuracy is the relative accuracy of the fetch latency
	// sketch (0.01 = 1% error).
	DefaultSketchAccuracy = 0.01
)

// =============================================================================
// Storage Defaults
// =============================================================================

const (
	// DefaultBackend is the storage backend used when none is configured.
	// Override via config: storage.backend
	DefaultBackend = "memory"

	// DefaultRedisAddr is the Redis server address.
	// Override via config: storage.redis.addr
	DefaultRedisAddr = "localhost:6379"

	// DefaultRedisReadingsKey is the hash holding readings by time.
	DefaultRedisReadingsKey = "data"

	// DefaultRedisInvalidationsKey is the hash holding invalidation records.
	DefaultRedisInvalidationsKey = "discard_reasons"

	// DefaultMongoURI is the MongoDB connection string.
	// Override via config: storage.mongo.uri or MONGODB_CONNECTION_STRING
	DefaultMongoURI = "mongodb://localhost:27017"

	// DefaultMongoDatabase is the MongoDB database name.
	DefaultMongoDatabase = "open-cosmos"

	// DefaultMongoReadingsCollection holds one document per reading.
	DefaultMongoReadingsCollection = "data_collection"

	// DefaultMongoInvalidationsCollection holds one document per
	// invalidation record.
	DefaultMongoInvalidationsCollection = "data_invalidation_reasons"

	// DefaultSQLReadingsTable and DefaultSQLInvalidationsTable name the
	// tables of the SQL backend.
	DefaultSQLReadingsTable      = "readings"
	DefaultSQLInvalidationsTable = "invalidations"

	// DefaultStorageTimeout bounds a single backend operation.
	DefaultStorageTimeout = 5 * time.Second
)

// =============================================================================
// Auth Defaults
// =============================================================================

const (
	// DefaultAdminAPIKey and DefaultUserAPIKey are development keys.
	// Production deployments replace them via config: auth.keys
	DefaultAdminAPIKey = "admin_api_key"
	DefaultUserAPIKey  = "user_api_key"

	// DefaultAuthRateLimitPerMinute is the number of failed API key
	// attempts per client IP per minute before requests are rejected
	// with 429. Zero disables the limit.
	// Override via config: auth.max_failures_per_minute
	DefaultAuthRateLimitPerMinute = 10
)

// =============================================================================
// Notify Defaults
// =============================================================================

const (
	// DefaultKafkaTopic receives one message per invalidation record.
	// Override via config: notify.kafka.topic
	DefaultKafkaTopic = "vigil.invalidations"

	// DefaultKafkaFlushTimeout bounds the producer flush on shutdown.
	DefaultKafkaFlushTimeout = 5 * time.Second
)
