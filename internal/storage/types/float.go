package types

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Float32 is a decoded sensor value whose JSON form survives non-finite
// values. Finite values are JSON numbers; NaN, +Inf and -Inf are the
// strings "NaN", "+Inf" and "-Inf".
type Float32 float32

// IsFinite reports whether f is neither NaN nor infinite.
func (f Float32) IsFinite() bool {
	x := float64(f)
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// MarshalJSON encodes f as a number, or as a string when non-finite.
func (f Float32) MarshalJSON() ([]byte, error) {
	x := float64(f)
	switch {
	case math.IsNaN(x):
		return []byte(`"NaN"`), nil
	case math.IsInf(x, 1):
		return []byte(`"+Inf"`), nil
	case math.IsInf(x, -1):
		return []byte(`"-Inf"`), nil
	}
	return json.Marshal(float32(f))
}

// UnmarshalJSON accepts a number or one of the non-finite strings.
func (f *Float32) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		switch s {
		case "NaN", "+Inf", "-Inf":
		default:
			return fmt.Errorf("value: unexpected string %q", s)
		}
		x, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return fmt.Errorf("value: %w", err)
		}
		*f = Float32(x)
		return nil
	}

	var x float32
	if err := json.Unmarshal(data, &x); err != nil {
		return fmt.Errorf("value: %w", err)
	}
	*f = Float32(x)
	return nil
}

// finiteOrNil returns nil for non-finite values, which render as JSON null.
func finiteOrNil(v float32) *float32 {
	if !Float32(v).IsFinite() {
		return nil
	}
	return &v
}
