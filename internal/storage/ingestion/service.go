package ingestion

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/DataDog/sketches-go/ddsketch"
	"golang.org/x/sync/singleflight"

	"github.com/xtxerr/vigil/config"
	"github.com/xtxerr/vigil/internal/errors"
	"github.com/xtxerr/vigil/internal/logging"
	"github.com/xtxerr/vigil/internal/source"
	"github.com/xtxerr/vigil/internal/storage/backend"
	"github.com/xtxerr/vigil/internal/storage/types"
	"github.com/xtxerr/vigil/internal/validation"
)

var log = logging.Component("ingestion")

// singleflight key; there is only ever one cycle to share.
const cycleKey = "cycle"

// =============================================================================
// Configuration
// =============================================================================

// Mode selects what triggers an ingestion cycle.
type Mode string

const (
	// ModeOnRequest runs one cycle per data request.
	ModeOnRequest Mode = "on_request"
	// ModeInterval runs cycles from a background worker only.
	ModeInterval Mode = "interval"
	// ModeBoth runs the background worker and per-request cycles.
	ModeBoth Mode = "both"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeOnRequest, ModeInterval, ModeBoth:
		return true
	}
	return false
}

// OnRequest reports whether data requests should trigger a cycle.
func (m Mode) OnRequest() bool {
	return m == ModeOnRequest || m == ModeBoth
}

// Periodic reports whether the background worker should run.
func (m Mode) Periodic() bool {
	return m == ModeInterval || m == ModeBoth
}

// Config configures the ingestion service.
type Config struct {
	Mode     Mode
	Interval time.Duration

	// Coalesce lets concurrent Ingest calls share one in-flight cycle.
	Coalesce bool

	// SketchAccuracy is the relative accuracy of the fetch latency sketch.
	SketchAccuracy float64
}

// DefaultConfig returns the default ingestion configuration.
func DefaultConfig() Config {
	return Config{
		Mode:           config.DefaultIngestionMode,
		Interval:       config.DefaultIngestionInterval,
		Coalesce:       true,
		SketchAccuracy: config.DefaultSketchAccuracy,
	}
}

// =============================================================================
// Hooks
// =============================================================================

// Observer receives ingestion events, typically to export metrics.
type Observer interface {
	FetchCompleted(took time.Duration, err error)
	ReadingSaved(r types.Reading)
	Invalidated(reasons []types.ReasonCode)
	CycleCompleted(outcome string, took time.Duration)
}

// Notifier is told about every saved invalidation record.
type Notifier interface {
	Notify(ctx context.Context, rec types.InvalidationRecord) error
}

type nopObserver struct{}

func (nopObserver) FetchCompleted(time.Duration, error)  {}
func (nopObserver) ReadingSaved(types.Reading)           {}
func (nopObserver) Invalidated([]types.ReasonCode)       {}
func (nopObserver) CycleCompleted(string, time.Duration) {}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now as the source of "now" for classification.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithObserver registers an observer.
func WithObserver(o Observer) Option {
	return func(s *Service) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithNotifier registers a notifier for saved invalidation records.
func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

// =============================================================================
// Result
// =============================================================================

// Outcome classifies a finished cycle.
type Outcome string

const (
	OutcomeAbsent       Outcome = "absent"
	OutcomeValid        Outcome = "valid"
	OutcomeInvalidated  Outcome = "invalidated"
	OutcomeDegraded     Outcome = "degraded"
	OutcomeFetchError   Outcome = "fetch_error"
	OutcomeStorageError Outcome = "storage_error"
)

// Result describes one ingestion cycle.
type Result struct {
	Outcome Outcome

	// Absent is set when the source had nothing to report.
	Absent bool

	// Reading is the saved reading, nil when absent or on fetch failure.
	Reading *types.Reading

	// Reasons are the classifier's verdict for Reading.
	Reasons []types.ReasonCode

	// Invalidation is the saved record, nil when Reasons is empty.
	Invalidation *types.InvalidationRecord

	// Err is a failure after the reading was saved. The reading stays.
	Err error

	// Shared is set when the caller joined a cycle started by another call.
	Shared bool
}

// =============================================================================
// Service
// =============================================================================

// Service runs ingestion cycles: fetch, save the reading, classify it and
// save an invalidation record when any reason applies.
type Service struct {
	backend  backend.Backend
	source   source.Source
	config   Config
	now      func() time.Time
	observer Observer
	notifier Notifier

	group singleflight.Group

	// State
	mu      sync.Mutex
	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	// Statistics
	stats Stats

	sketchMu sync.Mutex
	sketch   *ddsketch.DDSketch
}

// Stats holds ingestion statistics.
type Stats struct {
	Cycles        atomic.Int64
	Coalesced     atomic.Int64
	Absent        atomic.Int64
	Fetched       atomic.Int64
	Saved         atomic.Int64
	Invalidated   atomic.Int64
	Degraded      atomic.Int64
	FetchErrors   atomic.Int64
	StorageErrors atomic.Int64
	NotifyErrors  atomic.Int64
}

// New creates an ingestion service reading from src and writing to b.
func New(b backend.Backend, src source.Source, cfg Config, opts ...Option) (*Service, error) {
	if b == nil {
		return nil, errors.NewMissingField("backend")
	}
	if src == nil {
		return nil, errors.NewMissingField("source")
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeOnRequest
	}
	if !cfg.Mode.Valid() {
		return nil, errors.NewValidation("ingestion.mode", string(cfg.Mode))
	}
	if cfg.Mode.Periodic() && cfg.Interval <= 0 {
		return nil, errors.NewValidation("ingestion.interval", "must be positive")
	}
	if cfg.SketchAccuracy <= 0 || cfg.SketchAccuracy >= 1 {
		cfg.SketchAccuracy = config.DefaultSketchAccuracy
	}

	sketch, err := ddsketch.NewDefaultDDSketch(cfg.SketchAccuracy)
	if err != nil {
		return nil, errors.Wrap(err, "create latency sketch")
	}

	s := &Service{
		backend:  b,
		source:   src,
		config:   cfg,
		now:      time.Now,
		observer: nopObserver{},
		sketch:   sketch,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Mode returns the configured trigger mode.
func (s *Service) Mode() Mode {
	return s.config.Mode
}

// Start starts the background worker when the mode is periodic.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		return errors.ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.running.Store(true)

	if s.config.Mode.Periodic() {
		s.wg.Add(1)
		go s.intervalWorker(ctx)
	}

	log.Info("ingestion started", "mode", s.config.Mode, "interval", s.config.Interval)
	return nil
}

// Stop stops the background worker and waits for it to exit.
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running.Load() {
		return nil
	}

	s.running.Store(false)
	s.cancel()
	s.wg.Wait()

	log.Info("ingestion stopped")
	return nil
}

// IsRunning returns whether the service is running.
func (s *Service) IsRunning() bool {
	return s.running.Load()
}

func (s *Service) intervalWorker(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Ingest(ctx); err != nil && ctx.Err() == nil {
				log.Warn("scheduled ingestion failed", "error", err)
			}
		}
	}
}

// Ingest runs one ingestion cycle. When coalescing is enabled, a call
// arriving while a cycle is in flight waits for it and shares its result.
//
// A source with nothing to report is not an error. Fetch failures wrap
// ErrFetch and storage failures wrap ErrStorage; either aborts the cycle.
// Problems after the reading was saved are reported in Result.Err.
func (s *Service) Ingest(ctx context.Context) (Result, error) {
	if !s.config.Coalesce {
		return s.cycle(ctx)
	}

	v, err, shared := s.group.Do(cycleKey, func() (interface{}, error) {
		return s.cycle(ctx)
	})
	res, _ := v.(Result)
	if shared {
		s.stats.Coalesced.Add(1)
		res.Shared = true
	}
	return res, err
}

func (s *Service) cycle(ctx context.Context) (res Result, err error) {
	start := time.Now()
	s.stats.Cycles.Add(1)
	defer func() {
		s.observer.CycleCompleted(string(res.Outcome), time.Since(start))
	}()

	fetchStart := time.Now()
	reading, err := s.source.Fetch(ctx)
	took := time.Since(fetchStart)
	s.recordFetch(took)
	s.observer.FetchCompleted(took, err)

	if err != nil {
		s.stats.FetchErrors.Add(1)
		res.Outcome = OutcomeFetchError
		if !errors.Is(err, errors.ErrFetch) {
			err = fmt.Errorf("%w: %w", errors.ErrFetch, err)
		}
		return res, err
	}
	if reading == nil {
		s.stats.Absent.Add(1)
		log.Info("source has no reading")
		return Result{Outcome: OutcomeAbsent, Absent: true}, nil
	}
	s.stats.Fetched.Add(1)

	if err := s.backend.SaveReading(ctx, *reading); err != nil {
		s.stats.StorageErrors.Add(1)
		return Result{Outcome: OutcomeStorageError}, err
	}
	s.stats.Saved.Add(1)
	s.observer.ReadingSaved(*reading)
	res = Result{Outcome: OutcomeValid, Reading: reading}

	reasons, err := validation.Classify(*reading, s.now())
	if err != nil {
		return s.degraded(res, err), nil
	}
	if len(reasons) == 0 {
		log.Debug("reading valid", "time", reading.Time)
		return res, nil
	}
	res.Reasons = reasons

	rec, err := validation.NewInvalidationRecord(*reading, reasons)
	if err != nil {
		return s.degraded(res, err), nil
	}

	if err := s.backend.SaveInvalidation(ctx, rec); err != nil {
		s.stats.StorageErrors.Add(1)
		res.Outcome = OutcomeStorageError
		return res, err
	}
	s.stats.Invalidated.Add(1)
	s.observer.Invalidated(reasons)
	res.Outcome = OutcomeInvalidated
	res.Invalidation = &rec

	log.Info("reading invalidated",
		"time", rec.Time,
		"reasons", types.ReasonStrings(reasons))

	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, rec); err != nil {
			s.stats.NotifyErrors.Add(1)
			log.Warn("notify invalidation failed", "time", rec.Time, "error", err)
		}
	}

	return res, nil
}

func (s *Service) degraded(res Result, err error) Result {
	s.stats.Degraded.Add(1)
	log.Warn("reading saved but not classified", "time", res.Reading.Time, "error", err)
	res.Outcome = OutcomeDegraded
	res.Err = err
	return res
}

func (s *Service) recordFetch(took time.Duration) {
	s.sketchMu.Lock()
	defer s.sketchMu.Unlock()
	_ = s.sketch.Add(float64(took) / float64(time.Millisecond))
}

// =============================================================================
// Statistics
// =============================================================================

// ServiceStats is a snapshot of Stats plus fetch latency percentiles.
type ServiceStats struct {
	Running       bool
	Mode          Mode
	Cycles        int64
	Coalesced     int64
	Absent        int64
	Fetched       int64
	Saved         int64
	Invalidated   int64
	Degraded      int64
	FetchErrors   int64
	StorageErrors int64
	NotifyErrors  int64

	// Fetch latency in milliseconds. Zero until the first fetch.
	FetchP50 float64
	FetchP90 float64
	FetchP99 float64
}

// Stats returns current statistics.
func (s *Service) Stats() ServiceStats {
	st := ServiceStats{
		Running:       s.running.Load(),
		Mode:          s.config.Mode,
		Cycles:        s.stats.Cycles.Load(),
		Coalesced:     s.stats.Coalesced.Load(),
		Absent:        s.stats.Absent.Load(),
		Fetched:       s.stats.Fetched.Load(),
		Saved:         s.stats.Saved.Load(),
		Invalidated:   s.stats.Invalidated.Load(),
		Degraded:      s.stats.Degraded.Load(),
		FetchErrors:   s.stats.FetchErrors.Load(),
		StorageErrors: s.stats.StorageErrors.Load(),
		NotifyErrors:  s.stats.NotifyErrors.Load(),
	}

	s.sketchMu.Lock()
	defer s.sketchMu.Unlock()
	if s.sketch.GetCount() > 0 {
		if qs, err := s.sketch.GetValuesAtQuantiles([]float64{0.5, 0.9, 0.99}); err == nil {
			st.FetchP50, st.FetchP90, st.FetchP99 = qs[0], qs[1], qs[2]
		}
	}
	return st
}
