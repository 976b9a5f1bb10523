package query

import (
	"context"
	"sync/atomic"

	"github.com/xtxerr/vigil/internal/errors"
	"github.com/xtxerr/vigil/internal/logging"
	"github.com/xtxerr/vigil/internal/storage/backend"
	"github.com/xtxerr/vigil/internal/storage/codec"
	"github.com/xtxerr/vigil/internal/storage/timerange"
	"github.com/xtxerr/vigil/internal/storage/types"
)

var log = logging.Component("query")

// Dataset names used in errors, logs and metrics.
const (
	DatasetReadings      = "readings"
	DatasetInvalidations = "invalidations"
)

// Observer receives one event per finished query.
type Observer interface {
	QueryCompleted(dataset string, rows int, err error)
}

// Config configures the query service.
type Config struct {
	// Formatter renders output timestamps.
	Formatter timerange.Formatter

	// Pushdown lets backends implementing backend.RangeReader filter on
	// the server. Results are identical either way.
	Pushdown bool
}

// Option configures a Service.
type Option func(*Service)

// WithObserver registers an observer.
func WithObserver(o Observer) Option {
	return func(s *Service) {
		s.observer = o
	}
}

// Service answers time-range queries over stored readings and
// invalidation records.
type Service struct {
	backend  backend.Backend
	config   Config
	observer Observer

	// Statistics
	stats Stats
}

// Stats holds query statistics.
type Stats struct {
	QueriesExecuted atomic.Int64
	RowsReturned    atomic.Int64
	Pushdowns       atomic.Int64
	Errors          atomic.Int64
}

// New creates a query service over b.
func New(b backend.Backend, cfg Config, opts ...Option) (*Service, error) {
	if b == nil {
		return nil, errors.NewMissingField("backend")
	}
	s := &Service{backend: b, config: cfg}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Readings returns the readings inside bounds with decoded values, in
// backend order. An empty store yields an empty slice. Any failure wraps
// ErrRetrieval and no partial result is returned.
func (s *Service) Readings(ctx context.Context, bounds timerange.Bounds) ([]types.ReadingView, error) {
	views, err := s.readings(ctx, bounds)
	s.finish(ctx, DatasetReadings, len(views), err)
	if err != nil {
		return nil, err
	}
	return views, nil
}

func (s *Service) readings(ctx context.Context, bounds timerange.Bounds) ([]types.ReadingView, error) {
	var (
		records []types.Reading
		err     error
	)
	if rr, ok := s.rangeReader(bounds); ok {
		records, err = rr.ReadingsInRange(ctx, bounds)
	} else {
		records, err = s.backend.Readings(ctx)
	}
	if err != nil {
		return nil, errors.NewRetrieval(DatasetReadings, err)
	}

	type pending struct {
		reading types.Reading
		time    string
	}
	kept := timerange.FilterAndFormat(records, bounds, s.config.Formatter,
		func(r types.Reading, ts string) pending { return pending{r, ts} })

	views := make([]types.ReadingView, 0, len(kept))
	for _, p := range kept {
		v, err := codec.Decode(p.reading.Value)
		if err != nil {
			return nil, errors.NewRetrieval(DatasetReadings,
				errors.Wrapf(err, "reading at %d", p.reading.Time))
		}
		views = append(views, types.ReadingView{
			Time:  p.time,
			Value: v,
			Tags:  nonNil(p.reading.Tags),
		})
	}
	return views, nil
}

// Invalidations returns the invalidation records inside bounds, in
// backend order. Failure semantics match Readings.
func (s *Service) Invalidations(ctx context.Context, bounds timerange.Bounds) ([]types.InvalidationView, error) {
	views, err := s.invalidations(ctx, bounds)
	s.finish(ctx, DatasetInvalidations, len(views), err)
	if err != nil {
		return nil, err
	}
	return views, nil
}

func (s *Service) invalidations(ctx context.Context, bounds timerange.Bounds) ([]types.InvalidationView, error) {
	var (
		records []types.InvalidationRecord
		err     error
	)
	if rr, ok := s.rangeReader(bounds); ok {
		records, err = rr.InvalidationsInRange(ctx, bounds)
	} else {
		records, err = s.backend.Invalidations(ctx)
	}
	if err != nil {
		return nil, errors.NewRetrieval(DatasetInvalidations, err)
	}

	return timerange.FilterAndFormat(records, bounds, s.config.Formatter,
		func(r types.InvalidationRecord, ts string) types.InvalidationView {
			return types.InvalidationView{
				Time:    ts,
				Value:   r.Value,
				Tags:    nonNil(r.Tags),
				Reasons: types.ReasonStrings(r.Reasons),
			}
		}), nil
}

func (s *Service) rangeReader(bounds timerange.Bounds) (backend.RangeReader, bool) {
	if !s.config.Pushdown || bounds.IsUnbounded() {
		return nil, false
	}
	rr, ok := s.backend.(backend.RangeReader)
	if ok {
		s.stats.Pushdowns.Add(1)
	}
	return rr, ok
}

func (s *Service) finish(ctx context.Context, dataset string, rows int, err error) {
	s.stats.QueriesExecuted.Add(1)
	if err != nil {
		s.stats.Errors.Add(1)
		logging.WithContext(ctx).Error("query failed",
			"component", "query",
			"dataset", dataset,
			"backend", s.backend.Name(),
			"error", err)
	} else {
		s.stats.RowsReturned.Add(int64(rows))
		log.Debug("query complete", "dataset", dataset, "rows", rows)
	}
	if s.observer != nil {
		s.observer.QueryCompleted(dataset, rows, err)
	}
}

func nonNil(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

// ServiceStats is a snapshot of Stats.
type ServiceStats struct {
	QueriesExecuted int64
	RowsReturned    int64
	Pushdowns       int64
	Errors          int64
}

// Stats returns current statistics.
func (s *Service) Stats() ServiceStats {
	return ServiceStats{
		QueriesExecuted: s.stats.QueriesExecuted.Load(),
		RowsReturned:    s.stats.RowsReturned.Load(),
		Pushdowns:       s.stats.Pushdowns.Load(),
		Errors:          s.stats.Errors.Load(),
	}
}
