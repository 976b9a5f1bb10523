package storage

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xtxerr/vigil/internal/config"
	"github.com/xtxerr/vigil/internal/errors"
	"github.com/xtxerr/vigil/internal/logging"
	"github.com/xtxerr/vigil/internal/source"
	"github.com/xtxerr/vigil/internal/storage/backend"
	"github.com/xtxerr/vigil/internal/storage/ingestion"
	"github.com/xtxerr/vigil/internal/storage/query"
	"github.com/xtxerr/vigil/internal/storage/timerange"
	"github.com/xtxerr/vigil/internal/storage/types"
)

var log = logging.Component("storage")

// Observer receives both ingestion and query events.
type Observer interface {
	ingestion.Observer
	query.Observer
}

// Option configures a Service.
type Option func(*options)

type options struct {
	observer Observer
	notifier ingestion.Notifier
	clock    func() time.Time
}

// WithObserver registers an observer for ingestion and query events.
func WithObserver(o Observer) Option {
	return func(opts *options) { opts.observer = o }
}

// WithNotifier registers a notifier for saved invalidation records.
func WithNotifier(n ingestion.Notifier) Option {
	return func(opts *options) { opts.notifier = n }
}

// WithClock replaces time.Now for classification.
func WithClock(now func() time.Time) Option {
	return func(opts *options) { opts.clock = now }
}

// Service wires one backend to the ingestion and query services.
type Service struct {
	mu sync.RWMutex

	backend   backend.Backend
	ingestion *ingestion.Service
	query     *query.Service

	// State
	running   atomic.Bool
	startTime time.Time
}

// New creates a storage service over b. The service takes ownership of b
// and closes it on Stop.
func New(b backend.Backend, src source.Source, cfg *config.Config, opts ...Option) (*Service, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if b == nil {
		return nil, errors.NewMissingField("backend")
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	formatter, err := timerange.NewFormatter(cfg.Query.Timezone)
	if err != nil {
		return nil, err
	}

	ingOpts := []ingestion.Option{ingestion.WithClock(o.clock)}
	qryOpts := []query.Option{}
	if o.observer != nil {
		ingOpts = append(ingOpts, ingestion.WithObserver(o.observer))
		qryOpts = append(qryOpts, query.WithObserver(o.observer))
	}
	if o.notifier != nil {
		ingOpts = append(ingOpts, ingestion.WithNotifier(o.notifier))
	}

	ingCfg := ingestion.DefaultConfig()
	ingCfg.Mode = ingestion.Mode(cfg.Ingestion.Mode)
	ingCfg.Interval = cfg.Ingestion.Interval
	ingCfg.Coalesce = cfg.Ingestion.Coalesce

	ing, err := ingestion.New(b, src, ingCfg, ingOpts...)
	if err != nil {
		return nil, fmt.Errorf("create ingestion: %w", err)
	}

	qry, err := query.New(b, query.Config{
		Formatter: formatter,
		Pushdown:  cfg.Query.Pushdown,
	}, qryOpts...)
	if err != nil {
		return nil, fmt.Errorf("create query: %w", err)
	}

	return &Service{
		backend:   b,
		ingestion: ing,
		query:     qry,
	}, nil
}

// Start starts all components.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		return errors.ErrAlreadyRunning
	}

	if err := s.ingestion.Start(); err != nil {
		return fmt.Errorf("start ingestion: %w", err)
	}

	s.startTime = time.Now()
	s.running.Store(true)

	log.Info("storage service started",
		"backend", s.backend.Name(),
		"ingestion_mode", s.ingestion.Mode())
	return nil
}

// Stop stops ingestion and closes the backend.
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running.Load() {
		return nil
	}
	s.running.Store(false)

	var errs []error
	if err := s.ingestion.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stop ingestion: %w", err))
	}
	if err := s.backend.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close backend: %w", err))
	}

	log.Info("storage service stopped")
	return errors.Join(errs...)
}

// TriggerIngestion runs one cycle when the ingestion mode reacts to
// requests. Failures are logged and swallowed; a data request never fails
// because ingestion did.
func (s *Service) TriggerIngestion(ctx context.Context) {
	if !s.running.Load() || !s.ingestion.Mode().OnRequest() {
		return
	}
	res, err := s.ingestion.Ingest(ctx)
	if err != nil {
		logging.WithContext(ctx).Warn("ingestion failed",
			"component", "storage",
			"outcome", res.Outcome,
			"error", err)
	}
}

// Ingest runs one ingestion cycle regardless of mode.
func (s *Service) Ingest(ctx context.Context) (ingestion.Result, error) {
	if !s.running.Load() {
		return ingestion.Result{}, errors.ErrNotRunning
	}
	return s.ingestion.Ingest(ctx)
}

// Readings returns readings inside bounds.
func (s *Service) Readings(ctx context.Context, b timerange.Bounds) ([]types.ReadingView, error) {
	if !s.running.Load() {
		return nil, errors.ErrNotRunning
	}
	return s.query.Readings(ctx, b)
}

// Invalidations returns invalidation records inside bounds.
func (s *Service) Invalidations(ctx context.Context, b timerange.Bounds) ([]types.InvalidationView, error) {
	if !s.running.Load() {
		return nil, errors.ErrNotRunning
	}
	return s.query.Invalidations(ctx, b)
}

// Ping checks backend connectivity.
func (s *Service) Ping(ctx context.Context) error {
	if !s.running.Load() {
		return errors.ErrNotRunning
	}
	return backend.Ping(ctx, s.backend)
}

// Backend returns the underlying backend.
func (s *Service) Backend() backend.Backend {
	return s.backend
}

// IsRunning returns whether the service is running.
func (s *Service) IsRunning() bool {
	return s.running.Load()
}

// Stats returns combined statistics.
func (s *Service) Stats() ServiceStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var uptime time.Duration
	if !s.startTime.IsZero() && s.running.Load() {
		uptime = time.Since(s.startTime)
	}

	return ServiceStats{
		Running:   s.running.Load(),
		Backend:   s.backend.Name(),
		Uptime:    uptime,
		Ingestion: s.ingestion.Stats(),
		Query:     s.query.Stats(),
	}
}

// ServiceStats holds combined statistics.
type ServiceStats struct {
	Running   bool                   `json:"running"`
	Backend   string                 `json:"backend"`
	Uptime    time.Duration          `json:"uptime"`
	Ingestion ingestion.ServiceStats `json:"ingestion"`
	Query     query.ServiceStats     `json:"query"`
}
