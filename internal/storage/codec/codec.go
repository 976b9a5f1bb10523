// Package codec decodes sensor values transmitted as raw bytes.
//
// Value encoding format (binary, little-endian):
// - Value (4 bytes, IEEE-754 float32)
//
// Decode is the only place raw values are interpreted, so ingestion and
// query observe the same float for the same bytes.
package codec

import (
	"encoding/binary"
	"math"

	"github.com/xtxerr/vigil/internal/errors"
)

// ValueSize is the encoded size of a value in bytes.
const ValueSize = 4

// Decode interprets raw as a little-endian IEEE-754 float32.
// It fails with an error matching errors.ErrDecode unless raw is exactly
// ValueSize bytes long.
func Decode(raw []byte) (float32, error) {
	if len(raw) != ValueSize {
		return 0, errors.NewDecode("value has %d bytes, want %d", len(raw), ValueSize)
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(raw)), nil
}

// Encode returns the little-endian IEEE-754 bytes of v.
func Encode(v float32) []byte {
	return binary.LittleEndian.AppendUint32(make([]byte, 0, ValueSize), math.Float32bits(v))
}
