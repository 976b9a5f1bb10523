package types

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

// Reading is a single measurement fetched from the external source.
// Time is the identity key: storage holds at most one Reading per Time.
type Reading struct {
	// Time is the measurement time in unix seconds.
	Time int64 `json:"time"`

	// Value is the raw 4-byte little-endian IEEE-754 float32 payload.
	Value RawValue `json:"value"`

	// Tags annotate the reading. A nil slice means the field was missing
	// from the payload; an empty slice means "no tags".
	Tags []string `json:"tags"`
}

// Timestamp returns the measurement time in unix seconds.
func (r Reading) Timestamp() int64 {
	return r.Time
}

// TimeValue returns the measurement time as a time.Time.
func (r Reading) TimeValue() time.Time {
	return time.Unix(r.Time, 0)
}

// HasTag reports whether tag is present.
func (r Reading) HasTag(tag string) bool {
	return slices.Contains(r.Tags, tag)
}

// RawValue holds an undecoded sensor value. Its JSON form is an array of
// byte values (0-255), which is how the external source transmits it.
type RawValue []byte

// MarshalJSON encodes the value as an array of integers.
func (v RawValue) MarshalJSON() ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}
	ints := make([]int, len(v))
	for i, b := range v {
		ints[i] = int(b)
	}
	return json.Marshal(ints)
}

// UnmarshalJSON accepts an array of integers or a base64 string.
func (v *RawValue) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = nil
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return fmt.Errorf("value: %w", err)
		}
		*v = b
		return nil
	}

	var ints []int
	if err := json.Unmarshal(data, &ints); err != nil {
		return fmt.Errorf("value: %w", err)
	}
	out := make([]byte, len(ints))
	for i, n := range ints {
		if n < 0 || n > 255 {
			return fmt.Errorf("value: byte %d out of range: %d", i, n)
		}
		out[i] = byte(n)
	}
	*v = out
	return nil
}
