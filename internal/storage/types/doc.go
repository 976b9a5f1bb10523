// Package types defines the core data types used throughout the storage system.
//
// Key types:
//   - Reading: A single measurement fetched from the external source
//   - InvalidationRecord: A reading marked discardable, with reason codes
//   - ReasonCode: Why a reading was invalidated
//   - ReadingView, InvalidationView: Query output with a formatted time
package types
