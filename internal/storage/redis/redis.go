// Package redis implements the hash-map backend on Redis.
//
// Layout: one hash per collection, field = unix timestamp (decimal),
// value = the record as JSON. Invalidation reasons are stored as a JSON
// array of reason codes and parsed, never evaluated.
package redis

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xtxerr/vigil/internal/errors"
	"github.com/xtxerr/vigil/internal/logging"
	"github.com/xtxerr/vigil/internal/storage/timerange"
	"github.com/xtxerr/vigil/internal/storage/types"
)

// Name is the backend name used in configuration.
const Name = "redis"

var log = logging.Component("storage.redis")

// Options configures the Redis backend.
type Options struct {
	Addr     string
	Password string
	DB       int

	// KeyPrefix is prepended to both hash keys.
	KeyPrefix string

	ReadingsKey      string
	InvalidationsKey string

	// Timeout bounds each command. Zero means no extra bound.
	Timeout time.Duration
}

// Store is a Redis-backed storage backend.
type Store struct {
	client           goredis.UniversalClient
	readingsKey      string
	invalidationsKey string
	timeout          time.Duration
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, opts Options) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	s := NewWithClient(client, opts)
	if err := s.Ping(ctx); err != nil {
		client.Close()
		return nil, err
	}

	log.Info("connected", "addr", opts.Addr, "db", opts.DB,
		"readings_key", s.readingsKey, "invalidations_key", s.invalidationsKey)
	return s, nil
}

// NewWithClient wraps an existing client. The store takes ownership and
// closes it on Close.
func NewWithClient(client goredis.UniversalClient, opts Options) *Store {
	readingsKey := opts.ReadingsKey
	if readingsKey == "" {
		readingsKey = "data"
	}
	invalidationsKey := opts.InvalidationsKey
	if invalidationsKey == "" {
		invalidationsKey = "discard_reasons"
	}

	return &Store{
		client:           client,
		readingsKey:      opts.KeyPrefix + readingsKey,
		invalidationsKey: opts.KeyPrefix + invalidationsKey,
		timeout:          opts.Timeout,
	}
}

// Name returns the backend name.
func (s *Store) Name() string {
	return Name
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.client.Ping(ctx).Err(); err != nil {
		return errors.NewStorage(Name, "ping", err)
	}
	return nil
}

// SaveReading upserts r into the readings hash.
func (s *Store) SaveReading(ctx context.Context, r types.Reading) error {
	return s.hset(ctx, s.readingsKey, r.Time, r)
}

// Readings returns all readings ordered by time.
func (s *Store) Readings(ctx context.Context) ([]types.Reading, error) {
	return s.readings(ctx, timerange.Bounds{})
}

// ReadingsInRange returns readings whose time lies within b. Fields are
// filtered on their timestamp key, so records outside b are never decoded.
func (s *Store) ReadingsInRange(ctx context.Context, b timerange.Bounds) ([]types.Reading, error) {
	return s.readings(ctx, b)
}

func (s *Store) readings(ctx context.Context, b timerange.Bounds) ([]types.Reading, error) {
	fields, err := s.hgetall(ctx, s.readingsKey, b)
	if err != nil {
		return nil, err
	}

	out := make([]types.Reading, 0, len(fields))
	for _, f := range fields {
		var r types.Reading
		if err := json.Unmarshal([]byte(f.value), &r); err != nil {
			return nil, errors.NewStorage(Name, "decode reading "+f.key, err)
		}
		out = append(out, r)
	}
	return out, nil
}

// SaveInvalidation upserts rec into the invalidations hash.
func (s *Store) SaveInvalidation(ctx context.Context, rec types.InvalidationRecord) error {
	return s.hset(ctx, s.invalidationsKey, rec.Time, rec)
}

// Invalidations returns all invalidation records ordered by time.
func (s *Store) Invalidations(ctx context.Context) ([]types.InvalidationRecord, error) {
	return s.invalidations(ctx, timerange.Bounds{})
}

// InvalidationsInRange returns invalidation records whose time lies within b.
func (s *Store) InvalidationsInRange(ctx context.Context, b timerange.Bounds) ([]types.InvalidationRecord, error) {
	return s.invalidations(ctx, b)
}

func (s *Store) invalidations(ctx context.Context, b timerange.Bounds) ([]types.InvalidationRecord, error) {
	fields, err := s.hgetall(ctx, s.invalidationsKey, b)
	if err != nil {
		return nil, err
	}

	out := make([]types.InvalidationRecord, 0, len(fields))
	for _, f := range fields {
		var rec types.InvalidationRecord
		if err := json.Unmarshal([]byte(f.value), &rec); err != nil {
			return nil, errors.NewStorage(Name, "decode invalidation "+f.key, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

// =============================================================================
// Hash helpers
// =============================================================================

type field struct {
	key   string
	ts    int64
	value string
}

func (s *Store) hset(ctx context.Context, key string, ts int64, record any) error {
	data, err := json.Marshal(record)
	if err != nil {
		return errors.NewStorage(Name, "encode "+key, err)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.client.HSet(ctx, key, strconv.FormatInt(ts, 10), data).Err(); err != nil {
		return errors.NewStorage(Name, "hset "+key, err)
	}
	return nil
}

// hgetall returns the hash fields within b sorted by timestamp. Redis
// hashes are unordered, so sorting gives callers a stable snapshot.
func (s *Store) hgetall(ctx context.Context, key string, b timerange.Bounds) ([]field, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	m, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, errors.NewStorage(Name, "hgetall "+key, err)
	}

	fields := make([]field, 0, len(m))
	for k, v := range m {
		ts, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			return nil, errors.NewStorage(Name, "parse field "+key+"/"+k, err)
		}
		if !b.Contains(ts) {
			continue
		}
		fields = append(fields, field{key: k, ts: ts, value: v})
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].ts < fields[j].ts })
	return fields, nil
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}
