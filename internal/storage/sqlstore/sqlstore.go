// Package sqlstore implements a relational backend on database/sql.
//
// Supported engines are PostgreSQL (lib/pq) and DuckDB (go-duckdb). Each
// collection is a table with time as primary key; saves use
// INSERT ... ON CONFLICT (time) DO UPDATE. Tags and reasons are stored as
// JSON text.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/marcboeker/go-duckdb"

	"github.com/xtxerr/vigil/internal/errors"
	"github.com/xtxerr/vigil/internal/logging"
	"github.com/xtxerr/vigil/internal/storage/timerange"
	"github.com/xtxerr/vigil/internal/storage/types"
)

var log = logging.Component("storage.sql")

// Options configures table names.
type Options struct {
	ReadingsTable      string
	InvalidationsTable string
}

// Store is a SQL-backed storage backend.
type Store struct {
	db                 *sql.DB
	dialect            Dialect
	readingsTable      string
	invalidationsTable string
}

// Open opens a connection pool for dialect, verifies it and creates the
// tables if they do not exist.
func Open(ctx context.Context, dialect Dialect, dsn string, opts Options) (*Store, error) {
	db, err := sql.Open(dialect.Driver(), dsn)
	if err != nil {
		return nil, errors.NewStorage(string(dialect), "open", err)
	}

	s, err := New(db, dialect, opts)
	if err != nil {
		db.Close()
		return nil, err
	}

	// DuckDB is embedded; a single connection serializes writers.
	if dialect == DuckDB {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.NewStorage(s.Name(), "ping", err)
	}

	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	log.Info("opened", "dialect", dialect,
		"readings_table", s.readingsTable, "invalidations_table", s.invalidationsTable)
	return s, nil
}

// New wraps an open pool. The store takes ownership and closes it on Close.
func New(db *sql.DB, dialect Dialect, opts Options) (*Store, error) {
	if opts.ReadingsTable == "" {
		opts.ReadingsTable = "readings"
	}
	if opts.InvalidationsTable == "" {
		opts.InvalidationsTable = "invalidations"
	}
	for _, name := range []string{opts.ReadingsTable, opts.InvalidationsTable} {
		if !validIdentifier(name) {
			return nil, errors.NewValidation("table name", fmt.Sprintf("%q is not a plain identifier", name))
		}
	}

	return &Store{
		db:                 db,
		dialect:            dialect,
		readingsTable:      opts.ReadingsTable,
		invalidationsTable: opts.InvalidationsTable,
	}, nil
}

// Name returns the dialect name.
func (s *Store) Name() string {
	return string(s.dialect)
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.schema(s.readingsTable, s.invalidationsTable) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errors.NewStorage(s.Name(), "migrate", err)
		}
	}
	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return errors.NewStorage(s.Name(), "ping", err)
	}
	return nil
}

// SaveReading upserts r keyed by time.
func (s *Store) SaveReading(ctx context.Context, r types.Reading) error {
	tags, err := json.Marshal(nonNil(r.Tags))
	if err != nil {
		return errors.NewStorage(s.Name(), "encode tags", err)
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (time, value, tags) VALUES ($1, $2, $3) "+
			"ON CONFLICT (time) DO UPDATE SET value = excluded.value, tags = excluded.tags",
		s.readingsTable)

	if _, err := s.db.ExecContext(ctx, query, r.Time, []byte(r.Value), string(tags)); err != nil {
		return errors.NewStorage(s.Name(), "save reading", err)
	}
	return nil
}

// Readings returns all readings ordered by time.
func (s *Store) Readings(ctx context.Context) ([]types.Reading, error) {
	return s.ReadingsInRange(ctx, timerange.Bounds{})
}

// ReadingsInRange returns readings whose time lies within b.
func (s *Store) ReadingsInRange(ctx context.Context, b timerange.Bounds) ([]types.Reading, error) {
	where, args := rangeClause(b)
	query := fmt.Sprintf("SELECT time, value, tags FROM %s%s ORDER BY time", s.readingsTable, where)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewStorage(s.Name(), "query readings", err)
	}
	defer rows.Close()

	out := make([]types.Reading, 0)
	for rows.Next() {
		var (
			r    types.Reading
			raw  []byte
			tags string
		)
		if err := rows.Scan(&r.Time, &raw, &tags); err != nil {
			return nil, errors.NewStorage(s.Name(), "scan reading", err)
		}
		r.Value = types.RawValue(raw)
		if err := json.Unmarshal([]byte(tags), &r.Tags); err != nil {
			return nil, errors.NewStorage(s.Name(), fmt.Sprintf("decode tags of %d", r.Time), err)
		}
		r.Tags = nonNil(r.Tags)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorage(s.Name(), "iterate readings", err)
	}
	return out, nil
}

// SaveInvalidation upserts rec keyed by time.
func (s *Store) SaveInvalidation(ctx context.Context, rec types.InvalidationRecord) error {
	tags, err := json.Marshal(nonNil(rec.Tags))
	if err != nil {
		return errors.NewStorage(s.Name(), "encode tags", err)
	}
	reasons, err := json.Marshal(types.ReasonStrings(rec.Reasons))
	if err != nil {
		return errors.NewStorage(s.Name(), "encode reasons", err)
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (time, value, tags, reasons) VALUES ($1, $2, $3, $4) "+
			"ON CONFLICT (time) DO UPDATE SET value = excluded.value, tags = excluded.tags, reasons = excluded.reasons",
		s.invalidationsTable)

	if _, err := s.db.ExecContext(ctx, query, rec.Time, float64(rec.Value), string(tags), string(reasons)); err != nil {
		return errors.NewStorage(s.Name(), "save invalidation", err)
	}
	return nil
}

// Invalidations returns all invalidation records ordered by time.
func (s *Store) Invalidations(ctx context.Context) ([]types.InvalidationRecord, error) {
	return s.InvalidationsInRange(ctx, timerange.Bounds{})
}

// InvalidationsInRange returns invalidation records whose time lies within b.
func (s *Store) InvalidationsInRange(ctx context.Context, b timerange.Bounds) ([]types.InvalidationRecord, error) {
	where, args := rangeClause(b)
	query := fmt.Sprintf("SELECT time, value, tags, reasons FROM %s%s ORDER BY time", s.invalidationsTable, where)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewStorage(s.Name(), "query invalidations", err)
	}
	defer rows.Close()

	out := make([]types.InvalidationRecord, 0)
	for rows.Next() {
		var (
			rec     types.InvalidationRecord
			value   float64
			tags    string
			reasons string
		)
		if err := rows.Scan(&rec.Time, &value, &tags, &reasons); err != nil {
			return nil, errors.NewStorage(s.Name(), "scan invalidation", err)
		}
		rec.Value = float32(value)
		if err := json.Unmarshal([]byte(tags), &rec.Tags); err != nil {
			return nil, errors.NewStorage(s.Name(), fmt.Sprintf("decode tags of %d", rec.Time), err)
		}
		rec.Tags = nonNil(rec.Tags)
		if err := json.Unmarshal([]byte(reasons), &rec.Reasons); err != nil {
			return nil, errors.NewStorage(s.Name(), fmt.Sprintf("decode reasons of %d", rec.Time), err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorage(s.Name(), "iterate invalidations", err)
	}
	return out, nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// rangeClause builds a WHERE clause matching timerange.Bounds.
func rangeClause(b timerange.Bounds) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if b.Start != nil {
		args = append(args, *b.Start)
		conds = append(conds, fmt.Sprintf("time >= $%d", len(args)))
	}
	if b.End != nil {
		args = append(args, *b.End)
		conds = append(conds, fmt.Sprintf("time <= $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func nonNil(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
