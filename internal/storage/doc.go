// Package storage ties a storage backend to the ingestion and query
// services.
//
// Architecture:
//
//	┌─────────────┐     ┌─────────────┐     ┌─────────────┐
//	│   Source    │────▶│  Ingestion  │────▶│   Backend   │
//	│   (HTTP)    │     │   Service   │     │ (memory,    │
//	└─────────────┘     └─────────────┘     │  redis,     │
//	                           │            │  mongo,     │
//	                           ▼            │  sql)       │
//	                    ┌─────────────┐     └─────────────┘
//	                    │  Classifier │            │
//	                    └─────────────┘            ▼
//	                                        ┌─────────────┐
//	                                        │    Query    │
//	                                        │   Service   │
//	                                        └─────────────┘
//
// Every ingestion cycle fetches at most one reading, saves it, classifies
// it, and saves an invalidation record when any reason applies. Queries
// decode stored values, filter by an inclusive time range and format
// timestamps.
//
// Subpackages:
//   - backend: the Backend contract
//   - memory, redis, mongo, sqlstore: Backend implementations
//   - storagetest: the shared backend conformance suite
//   - codec: float32 value decoding
//   - timerange: bounds, filtering and timestamp formatting
//   - parquet: Parquet row codecs and files
//   - archive: Parquet snapshots of a whole backend
package storage
