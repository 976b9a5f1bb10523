// Package memory implements an in-process hash-map backend.
//
// Each collection is a map from timestamp to a JSON-encoded record, the
// same layout the Redis backend uses, plus the order in which keys were
// first written. Reads return records in that order.
package memory

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/xtxerr/vigil/internal/errors"
	"github.com/xtxerr/vigil/internal/storage/types"
)

// Name is the backend name used in configuration.
const Name = "memory"

// hash is a keyed collection that remembers first-insertion order.
type hash struct {
	entries map[int64][]byte
	order   []int64
}

func newHash() *hash {
	return &hash{entries: make(map[int64][]byte)}
}

func (h *hash) set(key int64, value []byte) {
	if _, ok := h.entries[key]; !ok {
		h.order = append(h.order, key)
	}
	h.entries[key] = value
}

func (h *hash) values() [][]byte {
	out := make([][]byte, 0, len(h.order))
	for _, k := range h.order {
		out = append(out, h.entries[k])
	}
	return out
}

// Store is a thread-safe in-memory backend.
type Store struct {
	mu            sync.RWMutex
	readings      *hash
	invalidations *hash
	closed        bool
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		readings:      newHash(),
		invalidations: newHash(),
	}
}

// Name returns the backend name.
func (s *Store) Name() string {
	return Name
}

// SaveReading upserts r keyed by its time.
func (s *Store) SaveReading(ctx context.Context, r types.Reading) error {
	data, err := json.Marshal(r)
	if err != nil {
		return errors.NewStorage(Name, "encode reading", err)
	}
	return s.put(ctx, s.readings, r.Time, data)
}

// Readings returns a snapshot of all readings.
func (s *Store) Readings(ctx context.Context) ([]types.Reading, error) {
	raw, err := s.snapshot(ctx, s.readings)
	if err != nil {
		return nil, err
	}

	out := make([]types.Reading, 0, len(raw))
	for _, data := range raw {
		var r types.Reading
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, errors.NewStorage(Name, "decode reading", err)
		}
		out = append(out, r)
	}
	return out, nil
}

// SaveInvalidation upserts rec keyed by its time.
func (s *Store) SaveInvalidation(ctx context.Context, rec types.InvalidationRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return errors.NewStorage(Name, "encode invalidation", err)
	}
	return s.put(ctx, s.invalidations, rec.Time, data)
}

// Invalidations returns a snapshot of all invalidation records.
func (s *Store) Invalidations(ctx context.Context) ([]types.InvalidationRecord, error) {
	raw, err := s.snapshot(ctx, s.invalidations)
	if err != nil {
		return nil, err
	}

	out := make([]types.InvalidationRecord, 0, len(raw))
	for _, data := range raw {
		var rec types.InvalidationRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, errors.NewStorage(Name, "decode invalidation", err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// Len returns the number of readings and invalidation records held.
func (s *Store) Len() (readings, invalidations int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.readings.entries), len(s.invalidations.entries)
}

// Close marks the store closed. Further calls fail.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Store) put(ctx context.Context, h *hash, key int64, value []byte) error {
	if err := ctx.Err(); err != nil {
		return errors.NewStorage(Name, "save", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.NewStorage(Name, "save", errors.ErrClosed)
	}
	h.set(key, value)
	return nil
}

func (s *Store) snapshot(ctx context.Context, h *hash) ([][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.NewStorage(Name, "read", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, errors.NewStorage(Name, "read", errors.ErrClosed)
	}
	return h.values(), nil
}
