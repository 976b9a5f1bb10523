package parquet

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/xtxerr/vigil/internal/storage/codec"
	"github.com/xtxerr/vigil/internal/storage/types"
)

func sampleReadings() []types.Reading {
	return []types.Reading{
		{Time: 1714564800, Value: codec.Encode(-0.0041), Tags: []string{"nominal"}},
		{Time: 1714564860, Value: codec.Encode(42), Tags: []string{"system", "suspect"}},
		{Time: 1714564920, Value: codec.Encode(1.5), Tags: []string{}},
	}
}

func TestReadingWriteAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "readings.parquet")

	w, err := NewReadingWriter(path, DefaultOptions())
	if err != nil {
		t.Fatalf("NewReadingWriter: %v", err)
	}
	if err := w.Write(sampleReadings()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if w.RowCount() != 3 {
		t.Errorf("expected 3 rows, got %d", w.RowCount())
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got, err := ReadReadings(path)
	if err != nil {
		t.Fatalf("ReadReadings: %v", err)
	}
	want := sampleReadings()
	if len(got) != len(want) {
		t.Fatalf("expected %d readings, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].Time != want[i].Time {
			t.Errorf("[%d] time = %d, want %d", i, got[i].Time, want[i].Time)
		}
		if string(got[i].Value) != string(want[i].Value) {
			t.Errorf("[%d] value bytes = %v, want %v", i, got[i].Value, want[i].Value)
		}
		if got[i].Tags == nil || len(got[i].Tags) != len(want[i].Tags) {
			t.Errorf("[%d] tags = %v, want %v", i, got[i].Tags, want[i].Tags)
		}
	}
}

func TestInvalidationWriteAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "invalidations.parquet")
	recs := []types.InvalidationRecord{
		{Time: 1714564800, Value: -0.0041, Tags: []string{}, Reasons: []types.ReasonCode{types.ReasonTooOld}},
		{Time: 1714564860, Value: 42, Tags: []string{"suspect"}, Reasons: []types.ReasonCode{types.ReasonTooOld, types.ReasonSystemOrSuspect}},
	}

	w, err := NewInvalidationWriter(path, Options{Compression: CompressionSnappy})
	if err != nil {
		t.Fatalf("NewInvalidationWriter: %v", err)
	}
	if err := w.Write(recs); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got, err := ReadInvalidations(path)
	if err != nil {
		t.Fatalf("ReadInvalidations: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if got[1].Value != 42 || len(got[1].Reasons) != 2 || got[1].Reasons[1] != types.ReasonSystemOrSuspect {
		t.Errorf("unexpected record %+v", got[1])
	}
}

func TestWriterClosed(t *testing.T) {
	w, err := NewReadingWriter(filepath.Join(t.TempDir(), "r.parquet"), DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("double close should be a no-op: %v", err)
	}
	if err := w.Write(sampleReadings()); err != ErrWriterClosed {
		t.Errorf("expected ErrWriterClosed, got %v", err)
	}
}

func TestEmptySnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.parquet")
	w, err := NewReadingWriter(path, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Write(nil); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	got, err := ReadReadings(path)
	if err != nil {
		t.Fatalf("ReadReadings: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no readings, got %d", len(got))
	}
}

func TestCompressionTypes(t *testing.T) {
	for _, name := range []string{"none", "snappy", "zstd", "lz4", "gzip"} {
		t.Run(name, func(t *testing.T) {
			ct, err := ParseCompressionType(name)
			if err != nil {
				t.Fatal(err)
			}
			path := filepath.Join(t.TempDir(), name+".parquet")
			w, err := NewReadingWriter(path, Options{Compression: ct})
			if err != nil {
				t.Fatal(err)
			}
			if err := w.Write(sampleReadings()); err != nil {
				t.Fatal(err)
			}
			if err := w.Close(); err != nil {
				t.Fatal(err)
			}
			got, err := ReadReadings(path)
			if err != nil || len(got) != 3 {
				t.Errorf("read back %d rows, err %v", len(got), err)
			}
		})
	}

	if _, err := ParseCompressionType("brotli"); err == nil {
		t.Error("expected error for unknown compression")
	}
}

func TestGetFileInfo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "readings.parquet")
	w, _ := NewReadingWriter(path, DefaultOptions())
	w.Write(sampleReadings())
	w.Close()

	info, err := GetFileInfo(path)
	if err != nil {
		t.Fatalf("GetFileInfo: %v", err)
	}
	if info.NumRows != 3 {
		t.Errorf("expected 3 rows, got %d", info.NumRows)
	}
	stat, _ := os.Stat(path)
	if info.Size != stat.Size() {
		t.Errorf("size = %d, want %d", info.Size, stat.Size())
	}
	if len(info.Columns) != 3 {
		t.Errorf("expected 3 columns, got %v", info.Columns)
	}
}
