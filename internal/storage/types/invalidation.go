package types

import (
	"encoding/json"
	"fmt"
)

// ReasonCode explains why a reading was invalidated.
type ReasonCode string

const (
	// ReasonTooOld marks a reading older than the maximum accepted age.
	ReasonTooOld ReasonCode = "DATA_TOO_OLD"

	// ReasonSystemOrSuspect marks a reading tagged system or suspect.
	ReasonSystemOrSuspect ReasonCode = "DATA_SYSTEM_OR_SUSPECT"
)

// String returns the wire form of the reason code.
func (c ReasonCode) String() string {
	return string(c)
}

// Valid reports whether c belongs to the closed set of reason codes.
func (c ReasonCode) Valid() bool {
	switch c {
	case ReasonTooOld, ReasonSystemOrSuspect:
		return true
	default:
		return false
	}
}

// ParseReasonCode parses a stored reason code. Unknown codes are rejected.
func ParseReasonCode(s string) (ReasonCode, error) {
	c := ReasonCode(s)
	if !c.Valid() {
		return "", fmt.Errorf("unknown reason code %q", s)
	}
	return c, nil
}

// UnmarshalJSON rejects reason codes outside the closed set.
func (c *ReasonCode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseReasonCode(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ReasonStrings converts reason codes to their wire form.
func ReasonStrings(codes []ReasonCode) []string {
	out := make([]string, len(codes))
	for i, c := range codes {
		out[i] = c.String()
	}
	return out
}

// ParseReasonCodes parses a list of stored reason codes.
func ParseReasonCodes(ss []string) ([]ReasonCode, error) {
	out := make([]ReasonCode, len(ss))
	for i, s := range ss {
		c, err := ParseReasonCode(s)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

// InvalidationRecord marks a Reading as discardable. Reasons is never
// empty and is ordered by rule evaluation (age first, tags second).
type InvalidationRecord struct {
	Time    int64        `json:"time"`
	Value   float32      `json:"value"`
	Tags    []string     `json:"tags"`
	Reasons []ReasonCode `json:"reasons"`
}

type invalidationJSON struct {
	Time    int64        `json:"time"`
	Value   Float32      `json:"value"`
	Tags    []string     `json:"tags"`
	Reasons []ReasonCode `json:"reasons"`
}

// MarshalJSON encodes the record with non-finite values as strings, so a
// NaN or infinite reading can still be invalidated and stored.
func (r InvalidationRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(invalidationJSON{
		Time:    r.Time,
		Value:   Float32(r.Value),
		Tags:    r.Tags,
		Reasons: r.Reasons,
	})
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (r *InvalidationRecord) UnmarshalJSON(data []byte) error {
	var j invalidationJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	*r = InvalidationRecord{
		Time:    j.Time,
		Value:   float32(j.Value),
		Tags:    j.Tags,
		Reasons: j.Reasons,
	}
	return nil
}

// Timestamp returns the invalidated reading's time in unix seconds.
func (r InvalidationRecord) Timestamp() int64 {
	return r.Time
}
