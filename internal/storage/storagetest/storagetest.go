// Package storagetest provides a conformance suite for storage backends.
//
// Every backend test calls Run with a constructor returning a fresh, empty
// backend. The suite checks upsert-by-time semantics, empty reads,
// reason ordering, concurrent saves and, when the backend implements
// backend.RangeReader, inclusive range filtering.
package storagetest

import (
	"context"
	"fmt"
	"math"
	"sort"
	"testing"

	"github.com/xtxerr/vigil/internal/storage/backend"
	"github.com/xtxerr/vigil/internal/storage/codec"
	"github.com/xtxerr/vigil/internal/storage/timerange"
	"github.com/xtxerr/vigil/internal/storage/types"
	testutil "github.com/xtxerr/vigil/internal/testing"
)

// Factory returns a fresh, empty backend. Cleanup is registered on t.
type Factory func(t *testing.T) backend.Backend

// Run executes the conformance suite against backends built by newBackend.
func Run(t *testing.T, newBackend Factory) {
	t.Run("EmptyCollections", func(t *testing.T) { testEmpty(t, newBackend(t)) })
	t.Run("SaveAndReadReading", func(t *testing.T) { testSaveReading(t, newBackend(t)) })
	t.Run("ReadingUpsertByTime", func(t *testing.T) { testReadingUpsert(t, newBackend(t)) })
	t.Run("SaveAndReadInvalidation", func(t *testing.T) { testSaveInvalidation(t, newBackend(t)) })
	t.Run("InvalidationUpsertByTime", func(t *testing.T) { testInvalidationUpsert(t, newBackend(t)) })
	t.Run("NonFiniteValues", func(t *testing.T) { testNonFinite(t, newBackend(t)) })
	t.Run("ConcurrentSaves", func(t *testing.T) { testConcurrent(t, newBackend(t)) })
	t.Run("RangeReader", func(t *testing.T) { testRange(t, newBackend(t)) })
}

// Reading builds a reading at ts with value v.
func Reading(ts int64, v float32, tags ...string) types.Reading {
	if tags == nil {
		tags = []string{}
	}
	return types.Reading{Time: ts, Value: codec.Encode(v), Tags: tags}
}

func testEmpty(t *testing.T, b backend.Backend) {
	ctx := context.Background()

	readings, err := b.Readings(ctx)
	if err != nil {
		t.Fatalf("Readings: %v", err)
	}
	if readings == nil || len(readings) != 0 {
		t.Errorf("expected empty non-nil readings, got %#v", readings)
	}

	invalidations, err := b.Invalidations(ctx)
	if err != nil {
		t.Fatalf("Invalidations: %v", err)
	}
	if invalidations == nil || len(invalidations) != 0 {
		t.Errorf("expected empty non-nil invalidations, got %#v", invalidations)
	}
}

func testSaveReading(t *testing.T, b backend.Backend) {
	ctx := context.Background()

	want := Reading(1700000000, -0.0041, "suspect", "calibrated")
	if err := b.SaveReading(ctx, want); err != nil {
		t.Fatalf("SaveReading: %v", err)
	}

	got, err := b.Readings(ctx)
	if err != nil {
		t.Fatalf("Readings: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 reading, got %d", len(got))
	}
	assertReading(t, got[0], want)
}

func testReadingUpsert(t *testing.T, b backend.Backend) {
	ctx := context.Background()

	first := Reading(1700000000, 1, "a")
	second := Reading(1700000000, 2, "b")
	other := Reading(1700000001, 3)

	for _, r := range []types.Reading{first, other, second} {
		if err := b.SaveReading(ctx, r); err != nil {
			t.Fatalf("SaveReading(%d): %v", r.Time, err)
		}
	}

	got, err := b.Readings(ctx)
	if err != nil {
		t.Fatalf("Readings: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 readings after upsert, got %d", len(got))
	}

	byTime := make(map[int64]types.Reading, len(got))
	for _, r := range got {
		byTime[r.Time] = r
	}
	assertReading(t, byTime[1700000000], second)
	assertReading(t, byTime[1700000001], other)
}

func testSaveInvalidation(t *testing.T, b backend.Backend) {
	ctx := context.Background()

	want := types.InvalidationRecord{
		Time:    1700000000,
		Value:   -0.0041,
		Tags:    []string{"system"},
		Reasons: []types.ReasonCode{types.ReasonTooOld, types.ReasonSystemOrSuspect},
	}
	if err := b.SaveInvalidation(ctx, want); err != nil {
		t.Fatalf("SaveInvalidation: %v", err)
	}

	got, err := b.Invalidations(ctx)
	if err != nil {
		t.Fatalf("Invalidations: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 invalidation, got %d", len(got))
	}
	assertInvalidation(t, got[0], want)

	readings, err := b.Readings(ctx)
	if err != nil {
		t.Fatalf("Readings: %v", err)
	}
	if len(readings) != 0 {
		t.Errorf("invalidation leaked into readings: %v", readings)
	}
}

func testInvalidationUpsert(t *testing.T, b backend.Backend) {
	ctx := context.Background()

	first := types.InvalidationRecord{Time: 10, Value: 1, Tags: []string{}, Reasons: []types.ReasonCode{types.ReasonTooOld}}
	second := types.InvalidationRecord{Time: 10, Value: 2, Tags: []string{"suspect"}, Reasons: []types.ReasonCode{types.ReasonSystemOrSuspect}}

	if err := b.SaveInvalidation(ctx, first); err != nil {
		t.Fatalf("SaveInvalidation: %v", err)
	}
	if err := b.SaveInvalidation(ctx, second); err != nil {
		t.Fatalf("SaveInvalidation: %v", err)
	}

	got, err := b.Invalidations(ctx)
	if err != nil {
		t.Fatalf("Invalidations: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 invalidation after upsert, got %d", len(got))
	}
	assertInvalidation(t, got[0], second)
}

func testNonFinite(t *testing.T, b backend.Backend) {
	ctx := context.Background()

	values := map[int64]float32{
		100: float32(math.NaN()),
		200: float32(math.Inf(1)),
		300: float32(math.Inf(-1)),
	}
	for ts, v := range values {
		if err := b.SaveReading(ctx, Reading(ts, v, "suspect")); err != nil {
			t.Fatalf("SaveReading(%d): %v", ts, err)
		}
		rec := types.InvalidationRecord{
			Time:    ts,
			Value:   v,
			Tags:    []string{"suspect"},
			Reasons: []types.ReasonCode{types.ReasonTooOld, types.ReasonSystemOrSuspect},
		}
		if err := b.SaveInvalidation(ctx, rec); err != nil {
			t.Fatalf("SaveInvalidation(%d): %v", ts, err)
		}
	}

	readings, err := b.Readings(ctx)
	if err != nil {
		t.Fatalf("Readings: %v", err)
	}
	if len(readings) != len(values) {
		t.Fatalf("expected %d readings, got %d", len(values), len(readings))
	}
	for _, r := range readings {
		assertReading(t, r, Reading(r.Time, values[r.Time], "suspect"))
	}

	recs, err := b.Invalidations(ctx)
	if err != nil {
		t.Fatalf("Invalidations: %v", err)
	}
	if len(recs) != len(values) {
		t.Fatalf("expected %d invalidations, got %d", len(values), len(recs))
	}
	for _, rec := range recs {
		assertInvalidation(t, rec, types.InvalidationRecord{
			Time:    rec.Time,
			Value:   values[rec.Time],
			Tags:    []string{"suspect"},
			Reasons: []types.ReasonCode{types.ReasonTooOld, types.ReasonSystemOrSuspect},
		})
	}
}

func testConcurrent(t *testing.T, b backend.Backend) {
	ctx := context.Background()
	const writers = 8
	const perWriter = 25

	h := testutil.NewTestHelper(t)
	for w := 0; w < writers; w++ {
		h.Add(1)
		go func(id int) {
			defer h.Done()
			for i := 0; i < perWriter; i++ {
				ts := int64(1700000000 + id*perWriter + i)
				if err := b.SaveReading(ctx, Reading(ts, float32(i))); err != nil {
					h.Errorf("writer %d: SaveReading(%d): %v", id, ts, err)
					return
				}
			}
		}(w)
	}
	h.Wait()

	got, err := b.Readings(ctx)
	if err != nil {
		t.Fatalf("Readings: %v", err)
	}
	if len(got) != writers*perWriter {
		t.Errorf("expected %d readings, got %d", writers*perWriter, len(got))
	}
}

func testRange(t *testing.T, b backend.Backend) {
	rr, ok := b.(backend.RangeReader)
	if !ok {
		t.Skipf("%s does not filter on the server", b.Name())
	}
	ctx := context.Background()

	for ts := int64(100); ts <= 105; ts++ {
		if err := b.SaveReading(ctx, Reading(ts, float32(ts))); err != nil {
			t.Fatalf("SaveReading: %v", err)
		}
		rec := types.InvalidationRecord{Time: ts, Value: float32(ts), Tags: []string{}, Reasons: []types.ReasonCode{types.ReasonTooOld}}
		if err := b.SaveInvalidation(ctx, rec); err != nil {
			t.Fatalf("SaveInvalidation: %v", err)
		}
	}

	tests := []struct {
		name   string
		bounds timerange.Bounds
		want   []int64
	}{
		{"unbounded", timerange.Bounds{}, []int64{100, 101, 102, 103, 104, 105}},
		{"inclusive both", timerange.Between(101, 103), []int64{101, 102, 103}},
		{"since", timerange.Since(104), []int64{104, 105}},
		{"until", timerange.Until(100), []int64{100}},
		{"outside", timerange.Between(200, 300), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			readings, err := rr.ReadingsInRange(ctx, tt.bounds)
			if err != nil {
				t.Fatalf("ReadingsInRange: %v", err)
			}
			got := make([]int64, 0, len(readings))
			for _, r := range readings {
				got = append(got, r.Time)
			}
			assertTimes(t, "readings", got, tt.want)

			recs, err := rr.InvalidationsInRange(ctx, tt.bounds)
			if err != nil {
				t.Fatalf("InvalidationsInRange: %v", err)
			}
			got = got[:0]
			for _, r := range recs {
				got = append(got, r.Time)
			}
			assertTimes(t, "invalidations", got, tt.want)
		})
	}
}

func assertTimes(t *testing.T, what string, got, want []int64) {
	t.Helper()
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	if fmt.Sprint(got) != fmt.Sprint(append([]int64{}, want...)) {
		t.Errorf("%s: got times %v, want %v", what, got, want)
	}
}

func assertReading(t *testing.T, got, want types.Reading) {
	t.Helper()
	if got.Time != want.Time {
		t.Errorf("time = %d, want %d", got.Time, want.Time)
	}
	if string(got.Value) != string(want.Value) {
		t.Errorf("value = %v, want %v", got.Value, want.Value)
	}
	if fmt.Sprint(got.Tags) != fmt.Sprint(want.Tags) {
		t.Errorf("tags = %v, want %v", got.Tags, want.Tags)
	}
}

func assertInvalidation(t *testing.T, got, want types.InvalidationRecord) {
	t.Helper()
	if got.Time != want.Time {
		t.Errorf("time = %d, want %d", got.Time, want.Time)
	}
	if !sameFloat(got.Value, want.Value) {
		t.Errorf("value = %v, want %v", got.Value, want.Value)
	}
	if fmt.Sprint(got.Tags) != fmt.Sprint(want.Tags) {
		t.Errorf("tags = %v, want %v", got.Tags, want.Tags)
	}
	if fmt.Sprint(got.Reasons) != fmt.Sprint(want.Reasons) {
		t.Errorf("reasons = %v, want %v", got.Reasons, want.Reasons)
	}
}

// sameFloat treats any two NaNs as equal.
func sameFloat(a, b float32) bool {
	if math.IsNaN(float64(a)) || math.IsNaN(float64(b)) {
		return math.IsNaN(float64(a)) && math.IsNaN(float64(b))
	}
	return a == b
}
