// Package validation provides reading validation and classification for vigil.
package validation

import (
	"fmt"
	"time"

	"github.com/xtxerr/vigil/internal/errors"
	"github.com/xtxerr/vigil/internal/storage/codec"
	"github.com/xtxerr/vigil/internal/storage/types"
)

// =============================================================================
// Classification Rules
// =============================================================================

const (
	// MaxAge is the age past which a reading is DATA_TOO_OLD.
	MaxAge = time.Hour

	// SystemTag and SuspectTag mark readings as DATA_SYSTEM_OR_SUSPECT.
	SystemTag  = "system"
	SuspectTag = "suspect"
)

// Classify returns the reasons r should be invalidated, in evaluation
// order: age first, tags second. A nil result means the reading is valid.
//
// The age rule fires when r.Time < now - MaxAge, so a reading exactly
// MaxAge old is still accepted. Classify is pure: now is always supplied
// by the caller.
func Classify(r types.Reading, now time.Time) ([]types.ReasonCode, error) {
	if r.Tags == nil {
		return nil, errors.NewInvalidReading("tags missing")
	}

	var reasons []types.ReasonCode

	if IsTooOld(r.Time, now) {
		reasons = append(reasons, types.ReasonTooOld)
	}

	if IsSystemOrSuspect(r.Tags) {
		reasons = append(reasons, types.ReasonSystemOrSuspect)
	}

	return reasons, nil
}

// IsTooOld reports whether unix is strictly older than now - MaxAge.
func IsTooOld(unix int64, now time.Time) bool {
	return unix < now.Add(-MaxAge).Unix()
}

// IsSystemOrSuspect reports whether tags contain SystemTag or SuspectTag.
func IsSystemOrSuspect(tags []string) bool {
	for _, tag := range tags {
		if tag == SystemTag || tag == SuspectTag {
			return true
		}
	}
	return false
}

// =============================================================================
// Reading Shape Validation
// =============================================================================

// ValidateReading checks that a reading fetched from the external source
// has the fields the pipeline relies on. It does not decode the value:
// a malformed value is a decode concern and does not reject the reading.
// Any integer time is accepted, including zero and negative epochs.
func ValidateReading(r *types.Reading) error {
	if r == nil {
		return errors.NewInvalidReading("reading is nil")
	}

	v := errors.NewValidationErrors()

	if r.Value == nil {
		v.Add(errors.NewInvalidReading("value missing"))
	}
	if r.Tags == nil {
		v.Add(errors.NewInvalidReading("tags missing"))
	}

	return v.Err()
}

// =============================================================================
// Invalidation Records
// =============================================================================

// NewInvalidationRecord builds the record persisted for an invalidated
// reading. It decodes the value, so it may fail with errors.ErrDecode.
// Callers only invoke it when reasons is non-empty.
func NewInvalidationRecord(r types.Reading, reasons []types.ReasonCode) (types.InvalidationRecord, error) {
	if len(reasons) == 0 {
		return types.InvalidationRecord{}, errors.NewInvalidReading("invalidation without reasons")
	}

	value, err := codec.Decode(r.Value)
	if err != nil {
		return types.InvalidationRecord{}, fmt.Errorf("reading %d: %w", r.Time, err)
	}

	return types.InvalidationRecord{
		Time:    r.Time,
		Value:   value,
		Tags:    r.Tags,
		Reasons: reasons,
	}, nil
}
