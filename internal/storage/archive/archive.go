// Package archive exports backend contents to Parquet snapshots.
//
// A snapshot is a directory holding readings.parquet and
// invalidations.parquet. Both files are written concurrently, each to a
// temporary name first and renamed into place once complete, so a
// partially written snapshot never carries the final file names.
package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xtxerr/vigil/internal/logging"
	"github.com/xtxerr/vigil/internal/storage/backend"
	"github.com/xtxerr/vigil/internal/storage/parquet"
	"github.com/xtxerr/vigil/internal/storage/timerange"
	"github.com/xtxerr/vigil/internal/storage/types"
)

var log = logging.Component("archive")

const (
	// ReadingsFile and InvalidationsFile are the snapshot file names.
	ReadingsFile      = "readings.parquet"
	InvalidationsFile = "invalidations.parquet"
)

// Summary describes a written snapshot.
type Summary struct {
	Dir           string        `json:"dir"`
	Readings      int64         `json:"readings"`
	Invalidations int64         `json:"invalidations"`
	Duration      time.Duration `json:"duration"`
}

// Snapshot writes every record of b inside bounds to dir.
func Snapshot(ctx context.Context, b backend.Backend, dir string, bounds timerange.Bounds, opts parquet.Options) (Summary, error) {
	start := time.Now()
	sum := Summary{Dir: dir}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return sum, fmt.Errorf("create dir: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		readings, err := loadReadings(gctx, b, bounds)
		if err != nil {
			return fmt.Errorf("load readings: %w", err)
		}
		n, err := writeAtomic(filepath.Join(dir, ReadingsFile), func(path string) (int64, error) {
			w, err := parquet.NewReadingWriter(path, opts)
			if err != nil {
				return 0, err
			}
			if err := w.Write(readings); err != nil {
				w.Close()
				return 0, err
			}
			return w.RowCount(), w.Close()
		})
		sum.Readings = n
		return err
	})

	g.Go(func() error {
		recs, err := loadInvalidations(gctx, b, bounds)
		if err != nil {
			return fmt.Errorf("load invalidations: %w", err)
		}
		n, err := writeAtomic(filepath.Join(dir, InvalidationsFile), func(path string) (int64, error) {
			w, err := parquet.NewInvalidationWriter(path, opts)
			if err != nil {
				return 0, err
			}
			if err := w.Write(recs); err != nil {
				w.Close()
				return 0, err
			}
			return w.RowCount(), w.Close()
		})
		sum.Invalidations = n
		return err
	})

	if err := g.Wait(); err != nil {
		return sum, err
	}

	sum.Duration = time.Since(start)
	log.Info("snapshot written",
		"dir", dir,
		"readings", sum.Readings,
		"invalidations", sum.Invalidations,
		"duration", sum.Duration)

	return sum, nil
}

func loadReadings(ctx context.Context, b backend.Backend, bounds timerange.Bounds) ([]types.Reading, error) {
	if rr, ok := b.(backend.RangeReader); ok && !bounds.IsUnbounded() {
		return rr.ReadingsInRange(ctx, bounds)
	}
	all, err := b.Readings(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, r := range all {
		if bounds.Contains(r.Time) {
			out = append(out, r)
		}
	}
	return out, nil
}

func loadInvalidations(ctx context.Context, b backend.Backend, bounds timerange.Bounds) ([]types.InvalidationRecord, error) {
	if rr, ok := b.(backend.RangeReader); ok && !bounds.IsUnbounded() {
		return rr.InvalidationsInRange(ctx, bounds)
	}
	all, err := b.Invalidations(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, rec := range all {
		if bounds.Contains(rec.Time) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// writeAtomic runs write against a temporary path and renames the result
// to path on success.
func writeAtomic(path string, write func(tmp string) (int64, error)) (int64, error) {
	tmp := path + ".tmp"
	n, err := write(tmp)
	if err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return n, nil
}

// Load reads a snapshot directory back.
func Load(dir string) ([]types.Reading, []types.InvalidationRecord, error) {
	readings, err := parquet.ReadReadings(filepath.Join(dir, ReadingsFile))
	if err != nil {
		return nil, nil, err
	}
	recs, err := parquet.ReadInvalidations(filepath.Join(dir, InvalidationsFile))
	if err != nil {
		return nil, nil, err
	}
	return readings, recs, nil
}
