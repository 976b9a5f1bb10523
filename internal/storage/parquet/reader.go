package parquet

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/parquet-go/parquet-go"

	"github.com/xtxerr/vigil/internal/storage/types"
)

// readAll loads every row of a file written with row type R.
func readAll[R any](path string) ([]R, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	reader := parquet.NewGenericReader[R](f, parquet.ReadBufferSize(1024*1024))
	defer reader.Close()

	rows := make([]R, reader.NumRows())
	n, err := reader.Read(rows)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return rows[:n], nil
}

// ReadReadings loads a reading snapshot.
func ReadReadings(path string) ([]types.Reading, error) {
	rows, err := readAll[ReadingRow](path)
	if err != nil {
		return nil, err
	}
	out := make([]types.Reading, len(rows))
	for i := range rows {
		out[i] = RowToReading(&rows[i])
	}
	return out, nil
}

// ReadInvalidations loads an invalidation snapshot.
func ReadInvalidations(path string) ([]types.InvalidationRecord, error) {
	rows, err := readAll[InvalidationRow](path)
	if err != nil {
		return nil, err
	}
	out := make([]types.InvalidationRecord, len(rows))
	for i := range rows {
		rec, err := RowToInvalidation(&rows[i])
		if err != nil {
			return nil, err
		}
		out[i] = rec
	}
	return out, nil
}

// FileInfo holds information about a Parquet file.
type FileInfo struct {
	Path    string
	Size    int64
	NumRows int64
	Columns []string
}

// GetFileInfo returns information about a Parquet file.
func GetFileInfo(path string) (*FileInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}

	pf, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("open parquet file: %w", err)
	}

	info := &FileInfo{
		Path:    path,
		Size:    stat.Size(),
		NumRows: pf.NumRows(),
	}
	for _, field := range pf.Schema().Fields() {
		info.Columns = append(info.Columns, field.Name())
	}
	return info, nil
}
