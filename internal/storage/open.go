package storage

import (
	"context"
	"fmt"

	"github.com/xtxerr/vigil/internal/config"
	"github.com/xtxerr/vigil/internal/storage/backend"
	"github.com/xtxerr/vigil/internal/storage/memory"
	"github.com/xtxerr/vigil/internal/storage/mongo"
	"github.com/xtxerr/vigil/internal/storage/redis"
	"github.com/xtxerr/vigil/internal/storage/sqlstore"
)

// Open connects the backend selected by cfg.Backend. The caller owns the
// result and must Close it.
func Open(ctx context.Context, cfg config.StorageConfig) (backend.Backend, error) {
	switch cfg.Backend {
	case "", "memory":
		return memory.New(), nil

	case "redis":
		s, err := redis.New(ctx, redis.Options{
			Addr:             cfg.Redis.Addr,
			Password:         cfg.Redis.Password,
			DB:               cfg.Redis.DB,
			KeyPrefix:        cfg.Redis.KeyPrefix,
			ReadingsKey:      cfg.Redis.ReadingsKey,
			InvalidationsKey: cfg.Redis.InvalidationsKey,
			Timeout:          cfg.Redis.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return s, nil

	case "mongo":
		s, err := mongo.New(ctx, mongo.Options{
			URI:                     cfg.Mongo.URI,
			Database:                cfg.Mongo.Database,
			ReadingsCollection:      cfg.Mongo.ReadingsCollection,
			InvalidationsCollection: cfg.Mongo.InvalidationsCollection,
			Timeout:                 cfg.Mongo.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return s, nil

	case "postgres", "duckdb":
		dialect, err := sqlstore.ParseDialect(cfg.Backend)
		if err != nil {
			return nil, err
		}
		s, err := sqlstore.Open(ctx, dialect, cfg.SQL.DSN, sqlstore.Options{
			ReadingsTable:      cfg.SQL.ReadingsTable,
			InvalidationsTable: cfg.SQL.InvalidationsTable,
		})
		if err != nil {
			return nil, err
		}
		return s, nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
