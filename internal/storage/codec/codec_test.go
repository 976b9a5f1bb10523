package codec

import (
	"math"
	"testing"

	"github.com/xtxerr/vigil/internal/errors"
)

func TestDecode_KnownBytes(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
		want float32
	}{
		{"zero", []byte{0, 0, 0, 0}, 0},
		{"one", []byte{0x00, 0x00, 0x80, 0x3f}, 1},
		{"minus two", []byte{0x00, 0x00, 0x00, 0xc0}, -2},
		{"small negative", []byte{0x4b, 0x59, 0x86, 0xbb}, math.Float32frombits(0xbb86594b)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.raw)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if got != tt.want {
				t.Errorf("Decode(%v) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	values := []float32{
		-0.0041,
		0,
		float32(math.Copysign(0, -1)),
		3.4028235e38,
		1.4e-45,
		float32(math.Inf(1)),
		float32(math.Inf(-1)),
	}

	for _, v := range values {
		raw := Encode(v)
		if len(raw) != ValueSize {
			t.Fatalf("Encode(%v) returned %d bytes", v, len(raw))
		}
		got, err := Decode(raw)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if math.Float32bits(got) != math.Float32bits(v) {
			t.Errorf("round trip of %v gave %v", v, got)
		}
	}
}

func TestRoundTrip_NaNBits(t *testing.T) {
	nan := math.Float32frombits(0x7fc00001)
	got, err := Decode(Encode(nan))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if math.Float32bits(got) != 0x7fc00001 {
		t.Errorf("NaN payload not preserved: %#x", math.Float32bits(got))
	}
}

func TestDecode_WrongLength(t *testing.T) {
	for _, raw := range [][]byte{nil, {}, {1, 2, 3}, {1, 2, 3, 4, 5}} {
		_, err := Decode(raw)
		if err == nil {
			t.Errorf("Decode(%v) should fail", raw)
			continue
		}
		if !errors.Is(err, errors.ErrDecode) {
			t.Errorf("Decode(%v) error %v should match ErrDecode", raw, err)
		}
	}
}
