package parquet

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"

	"github.com/xtxerr/vigil/internal/storage/types"
)

// Options configures the Parquet writers.
type Options struct {
	// Compression algorithm
	Compression CompressionType

	// PageBufferSize is the target page buffer size in bytes
	PageBufferSize int
}

// CompressionType represents a Parquet compression algorithm.
type CompressionType int

const (
	CompressionNone CompressionType = iota
	CompressionSnappy
	CompressionZstd
	CompressionLZ4
	CompressionGzip
)

// DefaultOptions returns default Parquet options.
func DefaultOptions() Options {
	return Options{
		Compression:    CompressionZstd,
		PageBufferSize: 256 * 1024,
	}
}

// ParseCompressionType parses a compression name. An empty name selects
// zstd.
func ParseCompressionType(s string) (CompressionType, error) {
	switch s {
	case "zstd", "":
		return CompressionZstd, nil
	case "snappy":
		return CompressionSnappy, nil
	case "lz4":
		return CompressionLZ4, nil
	case "gzip":
		return CompressionGzip, nil
	case "none":
		return CompressionNone, nil
	default:
		return CompressionNone, fmt.Errorf("unknown compression %q", s)
	}
}

// getCompression returns the parquet-go compression codec.
func getCompression(ct CompressionType) compress.Codec {
	switch ct {
	case CompressionSnappy:
		return &parquet.Snappy
	case CompressionZstd:
		return &parquet.Zstd
	case CompressionLZ4:
		return &parquet.Lz4Raw
	case CompressionGzip:
		return &parquet.Gzip
	default:
		return &parquet.Uncompressed
	}
}

// =============================================================================
// Rows
// =============================================================================

// ReadingRow represents a reading in Parquet format. The value keeps its
// raw wire bytes.
type ReadingRow struct {
	Time  int64    `parquet:"time"`
	Value []byte   `parquet:"value"`
	Tags  []string `parquet:"tags"`
}

// InvalidationRow represents an invalidation record in Parquet format.
type InvalidationRow struct {
	Time    int64    `parquet:"time"`
	Value   float32  `parquet:"value"`
	Tags    []string `parquet:"tags"`
	Reasons []string `parquet:"reasons"`
}

// ReadingToRow converts a Reading to a ReadingRow.
func ReadingToRow(r *types.Reading) ReadingRow {
	return ReadingRow{
		Time:  r.Time,
		Value: []byte(r.Value),
		Tags:  r.Tags,
	}
}

// RowToReading converts a ReadingRow to a Reading.
func RowToReading(r *ReadingRow) types.Reading {
	return types.Reading{
		Time:  r.Time,
		Value: types.RawValue(r.Value),
		Tags:  nonNil(r.Tags),
	}
}

// InvalidationToRow converts an InvalidationRecord to an InvalidationRow.
func InvalidationToRow(rec *types.InvalidationRecord) InvalidationRow {
	return InvalidationRow{
		Time:    rec.Time,
		Value:   rec.Value,
		Tags:    rec.Tags,
		Reasons: types.ReasonStrings(rec.Reasons),
	}
}

// RowToInvalidation converts an InvalidationRow to an InvalidationRecord.
// Unknown reason codes are rejected.
func RowToInvalidation(r *InvalidationRow) (types.InvalidationRecord, error) {
	reasons, err := types.ParseReasonCodes(r.Reasons)
	if err != nil {
		return types.InvalidationRecord{}, fmt.Errorf("row at %d: %w", r.Time, err)
	}
	return types.InvalidationRecord{
		Time:    r.Time,
		Value:   r.Value,
		Tags:    nonNil(r.Tags),
		Reasons: reasons,
	}, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// =============================================================================
// Writers
// =============================================================================

// fileWriter streams rows of type R to a single file.
type fileWriter[R any] struct {
	mu       sync.Mutex
	path     string
	file     *os.File
	writer   *parquet.GenericWriter[R]
	rowCount int64
	closed   bool
}

func newFileWriter[R any](path string, opts Options) (*fileWriter[R], error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create file: %w", err)
	}

	writerOpts := []parquet.WriterOption{
		parquet.Compression(getCompression(opts.Compression)),
	}
	if opts.PageBufferSize > 0 {
		writerOpts = append(writerOpts, parquet.PageBufferSize(opts.PageBufferSize))
	}

	return &fileWriter[R]{
		path:   path,
		file:   f,
		writer: parquet.NewGenericWriter[R](f, writerOpts...),
	}, nil
}

func (w *fileWriter[R]) writeRows(rows []R) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWriterClosed
	}

	n, err := w.writer.Write(rows)
	if err != nil {
		return fmt.Errorf("write rows: %w", err)
	}

	w.rowCount += int64(n)
	return nil
}

// Close flushes the footer and closes the file.
func (w *fileWriter[R]) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.writer.Close(); err != nil {
		w.file.Close()
		return fmt.Errorf("close writer: %w", err)
	}

	return w.file.Close()
}

// RowCount returns the number of rows written.
func (w *fileWriter[R]) RowCount() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rowCount
}

// Path returns the file path.
func (w *fileWriter[R]) Path() string {
	return w.path
}

// ReadingWriter writes readings to a Parquet file.
type ReadingWriter struct {
	*fileWriter[ReadingRow]
}

// NewReadingWriter creates a new reading Parquet writer.
func NewReadingWriter(path string, opts Options) (*ReadingWriter, error) {
	fw, err := newFileWriter[ReadingRow](path, opts)
	if err != nil {
		return nil, err
	}
	return &ReadingWriter{fw}, nil
}

// Write writes readings to the Parquet file.
func (w *ReadingWriter) Write(readings []types.Reading) error {
	if len(readings) == 0 {
		return nil
	}
	rows := make([]ReadingRow, len(readings))
	for i := range readings {
		rows[i] = ReadingToRow(&readings[i])
	}
	return w.writeRows(rows)
}

// InvalidationWriter writes invalidation records to a Parquet file.
type InvalidationWriter struct {
	*fileWriter[InvalidationRow]
}

// NewInvalidationWriter creates a new invalidation Parquet writer.
func NewInvalidationWriter(path string, opts Options) (*InvalidationWriter, error) {
	fw, err := newFileWriter[InvalidationRow](path, opts)
	if err != nil {
		return nil, err
	}
	return &InvalidationWriter{fw}, nil
}

// Write writes invalidation records to the Parquet file.
func (w *InvalidationWriter) Write(recs []types.InvalidationRecord) error {
	if len(recs) == 0 {
		return nil
	}
	rows := make([]InvalidationRow, len(recs))
	for i := range recs {
		rows[i] = InvalidationToRow(&recs[i])
	}
	return w.writeRows(rows)
}

// ErrWriterClosed is returned when writing to a closed writer.
var ErrWriterClosed = fmt.Errorf("parquet writer is closed")
