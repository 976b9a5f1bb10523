// Package parquet writes and reads Parquet snapshots of the readings and
// invalidation collections.
//
// The package provides:
//   - ReadingWriter and InvalidationWriter for streaming rows to a file
//   - ReadReadings and ReadInvalidations for loading a snapshot back
//   - Support for multiple compression algorithms (snappy, zstd, lz4, gzip)
//   - Type conversion between storage types and Parquet rows
package parquet
