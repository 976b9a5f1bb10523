// Package mongo implements the document backend on MongoDB.
//
// Each reading and each invalidation record is one document in its own
// collection, keyed by a unique index on time. Saves are upserts; range
// reads filter on the server with $gte/$lte.
package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/xtxerr/vigil/internal/errors"
	"github.com/xtxerr/vigil/internal/logging"
	"github.com/xtxerr/vigil/internal/storage/timerange"
	"github.com/xtxerr/vigil/internal/storage/types"
)

// Name is the backend name used in configuration.
const Name = "mongo"

var log = logging.Component("storage.mongo")

// Options configures the MongoDB backend.
type Options struct {
	URI                     string
	Database                string
	ReadingsCollection      string
	InvalidationsCollection string

	// Timeout bounds connect, ping and each operation. Zero means no
	// extra bound.
	Timeout time.Duration
}

// Store is a MongoDB-backed storage backend.
type Store struct {
	client        *mongo.Client
	readings      *mongo.Collection
	invalidations *mongo.Collection
	timeout       time.Duration
}

// New connects to MongoDB, verifies the connection and ensures the unique
// time indexes exist.
func New(ctx context.Context, opts Options) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(opts.URI))
	if err != nil {
		return nil, errors.NewStorage(Name, "connect", err)
	}

	s := &Store{client: client, timeout: opts.Timeout}

	pingCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		client.Disconnect(context.Background())
		return nil, errors.NewStorage(Name, "ping", err)
	}

	db := client.Database(opts.Database)
	s.readings = db.Collection(opts.ReadingsCollection)
	s.invalidations = db.Collection(opts.InvalidationsCollection)

	if err := s.ensureIndexes(ctx); err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}

	log.Info("connected", "database", opts.Database,
		"readings", opts.ReadingsCollection, "invalidations", opts.InvalidationsCollection)
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	model := mongo.IndexModel{
		Keys:    bson.D{{Key: "time", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("time_unique"),
	}
	for _, c := range []*mongo.Collection{s.readings, s.invalidations} {
		if _, err := c.Indexes().CreateOne(ctx, model); err != nil {
			return errors.NewStorage(Name, "create index on "+c.Name(), err)
		}
	}
	return nil
}

// Name returns the backend name.
func (s *Store) Name() string {
	return Name
}

// Ping checks connectivity to the primary.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return errors.NewStorage(Name, "ping", err)
	}
	return nil
}

// SaveReading upserts r keyed by time.
func (s *Store) SaveReading(ctx context.Context, r types.Reading) error {
	return s.upsert(ctx, s.readings, r.Time, toReadingDoc(r))
}

// Readings returns all readings.
func (s *Store) Readings(ctx context.Context) ([]types.Reading, error) {
	return s.ReadingsInRange(ctx, timerange.Bounds{})
}

// ReadingsInRange returns readings whose time lies within b.
func (s *Store) ReadingsInRange(ctx context.Context, b timerange.Bounds) ([]types.Reading, error) {
	var docs []readingDoc
	if err := s.find(ctx, s.readings, b, &docs); err != nil {
		return nil, err
	}

	out := make([]types.Reading, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toReading())
	}
	return out, nil
}

// SaveInvalidation upserts rec keyed by time.
func (s *Store) SaveInvalidation(ctx context.Context, rec types.InvalidationRecord) error {
	return s.upsert(ctx, s.invalidations, rec.Time, toInvalidationDoc(rec))
}

// Invalidations returns all invalidation records.
func (s *Store) Invalidations(ctx context.Context) ([]types.InvalidationRecord, error) {
	return s.InvalidationsInRange(ctx, timerange.Bounds{})
}

// InvalidationsInRange returns invalidation records whose time lies within b.
func (s *Store) InvalidationsInRange(ctx context.Context, b timerange.Bounds) ([]types.InvalidationRecord, error) {
	var docs []invalidationDoc
	if err := s.find(ctx, s.invalidations, b, &docs); err != nil {
		return nil, err
	}

	out := make([]types.InvalidationRecord, 0, len(docs))
	for _, d := range docs {
		rec, err := d.toRecord()
		if err != nil {
			return nil, errors.NewStorage(Name, fmt.Sprintf("decode invalidation %d", d.Time), err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// Close disconnects the client.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// =============================================================================
// Query helpers
// =============================================================================

func (s *Store) upsert(ctx context.Context, c *mongo.Collection, ts int64, doc any) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	opts := options.Replace().SetUpsert(true)
	if _, err := c.ReplaceOne(ctx, bson.D{{Key: "time", Value: ts}}, doc, opts); err != nil {
		return errors.NewStorage(Name, "upsert into "+c.Name(), err)
	}
	return nil
}

func (s *Store) find(ctx context.Context, c *mongo.Collection, b timerange.Bounds, results any) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	cursor, err := c.Find(ctx, rangeFilter(b))
	if err != nil {
		return errors.NewStorage(Name, "find in "+c.Name(), err)
	}
	defer cursor.Close(ctx)

	if err := cursor.All(ctx, results); err != nil {
		return errors.NewStorage(Name, "decode "+c.Name(), err)
	}
	return nil
}

// rangeFilter builds the server-side filter matching timerange.Bounds.
func rangeFilter(b timerange.Bounds) bson.M {
	if b.IsUnbounded() {
		return bson.M{}
	}

	cond := bson.M{}
	if b.Start != nil {
		cond["$gte"] = *b.Start
	}
	if b.End != nil {
		cond["$lte"] = *b.End
	}
	return bson.M{"time": cond}
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}
