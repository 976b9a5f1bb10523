// Package backend defines the contract every storage backend satisfies.
//
// A backend holds two logical collections, readings and invalidation
// records, each keyed by unix timestamp. Saving is an upsert keyed by time
// (last write wins). Reads return a snapshot; callers must not assume any
// particular order. All failures match errors.ErrStorage, and an empty
// collection is an empty slice, never an error.
package backend

import (
	"context"

	"github.com/xtxerr/vigil/internal/storage/timerange"
	"github.com/xtxerr/vigil/internal/storage/types"
)

// Backend persists readings and invalidation records.
type Backend interface {
	// Name identifies the backend in logs and metrics.
	Name() string

	SaveReading(ctx context.Context, r types.Reading) error
	Readings(ctx context.Context) ([]types.Reading, error)

	SaveInvalidation(ctx context.Context, rec types.InvalidationRecord) error
	Invalidations(ctx context.Context) ([]types.InvalidationRecord, error)

	Close() error
}

// RangeReader is implemented by backends that can filter by time on the
// server. Inclusion semantics are identical to timerange.Bounds.Contains.
type RangeReader interface {
	ReadingsInRange(ctx context.Context, b timerange.Bounds) ([]types.Reading, error)
	InvalidationsInRange(ctx context.Context, b timerange.Bounds) ([]types.InvalidationRecord, error)
}

// Pinger is implemented by backends that can check connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping checks b if it implements Pinger and succeeds otherwise.
func Ping(ctx context.Context, b Backend) error {
	if p, ok := b.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
