package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/xtxerr/vigil/internal/storage/memory"
	"github.com/xtxerr/vigil/internal/storage/parquet"
	"github.com/xtxerr/vigil/internal/storage/storagetest"
	"github.com/xtxerr/vigil/internal/storage/timerange"
	"github.com/xtxerr/vigil/internal/storage/types"
)

func seeded(t *testing.T) *memory.Store {
	t.Helper()
	ctx := context.Background()
	s := memory.New()
	t.Cleanup(func() { s.Close() })

	for _, ts := range []int64{100, 200, 300} {
		if err := s.SaveReading(ctx, storagetest.Reading(ts, float32(ts)/10)); err != nil {
			t.Fatalf("SaveReading: %v", err)
		}
	}
	rec := types.InvalidationRecord{
		Time:    200,
		Value:   20,
		Tags:    []string{"system"},
		Reasons: []types.ReasonCode{types.ReasonSystemOrSuspect},
	}
	if err := s.SaveInvalidation(ctx, rec); err != nil {
		t.Fatalf("SaveInvalidation: %v", err)
	}
	return s
}

func TestSnapshot_RoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "snap")

	sum, err := Snapshot(context.Background(), seeded(t), dir, timerange.Bounds{}, parquet.DefaultOptions())
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if sum.Readings != 3 || sum.Invalidations != 1 {
		t.Errorf("summary = %+v, want 3 readings and 1 invalidation", sum)
	}

	readings, recs, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(readings) != 3 {
		t.Fatalf("loaded %d readings, want 3", len(readings))
	}
	if len(recs) != 1 || recs[0].Time != 200 || recs[0].Reasons[0] != types.ReasonSystemOrSuspect {
		t.Errorf("invalidations = %+v", recs)
	}

	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Errorf("temporary file left behind: %s", e.Name())
		}
	}
}

func TestSnapshot_Bounds(t *testing.T) {
	dir := t.TempDir()

	sum, err := Snapshot(context.Background(), seeded(t), dir, timerange.Between(150, 300), parquet.DefaultOptions())
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if sum.Readings != 2 {
		t.Errorf("readings = %d, want 2 (inclusive end)", sum.Readings)
	}

	readings, _, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	for _, r := range readings {
		if r.Time < 150 {
			t.Errorf("reading %d outside bounds", r.Time)
		}
	}
}

func TestSnapshot_Empty(t *testing.T) {
	s := memory.New()
	defer s.Close()
	dir := t.TempDir()

	sum, err := Snapshot(context.Background(), s, dir, timerange.Bounds{}, parquet.DefaultOptions())
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if sum.Readings != 0 || sum.Invalidations != 0 {
		t.Errorf("summary = %+v, want empty", sum)
	}
	if _, _, err := Load(dir); err != nil {
		t.Errorf("Load() of empty snapshot error = %v", err)
	}
}

func TestSnapshot_ClosedBackend(t *testing.T) {
	s := memory.New()
	s.Close()

	if _, err := Snapshot(context.Background(), s, t.TempDir(), timerange.Bounds{}, parquet.DefaultOptions()); err == nil {
		t.Error("Snapshot() of closed backend should fail")
	}
}
