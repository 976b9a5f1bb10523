// Package timerange filters records by an inclusive time range and formats
// their timestamps for output.
//
// Filtering always compares the original unix seconds; formatting happens
// only on records that were kept. Output order is input order.
package timerange

import (
	"strconv"
	"strings"
	"time"

	"github.com/xtxerr/vigil/internal/errors"
)

// Layout is the output timestamp format (local ISO-8601, second precision).
const Layout = "2006-01-02T15:04:05"

// Stamped is a stored record carrying a unix-seconds timestamp.
type Stamped interface {
	Timestamp() int64
}

// Formatted is an output record carrying a Layout-formatted timestamp.
type Formatted interface {
	FormattedTime() string
}

// =============================================================================
// Bounds
// =============================================================================

// Bounds is an inclusive unix-seconds range. A nil side is unbounded.
type Bounds struct {
	Start *int64
	End   *int64
}

// NewBounds converts optional instants into Bounds. A start with a
// fractional second rounds up and an end rounds down, so the integer
// comparison matches comparing against the exact instant.
func NewBounds(start, end *time.Time) Bounds {
	var b Bounds
	if start != nil {
		s := start.Unix()
		if start.Nanosecond() > 0 {
			s++
		}
		b.Start = &s
	}
	if end != nil {
		e := end.Unix()
		b.End = &e
	}
	return b
}

// Between returns Bounds covering [start, end] in unix seconds.
func Between(start, end int64) Bounds {
	return Bounds{Start: &start, End: &end}
}

// Since returns Bounds covering [start, +inf).
func Since(start int64) Bounds {
	return Bounds{Start: &start}
}

// Until returns Bounds covering (-inf, end].
func Until(end int64) Bounds {
	return Bounds{End: &end}
}

// Contains reports whether unix lies within the bounds, inclusive.
func (b Bounds) Contains(unix int64) bool {
	if b.Start != nil && unix < *b.Start {
		return false
	}
	if b.End != nil && unix > *b.End {
		return false
	}
	return true
}

// IsUnbounded reports whether neither side is set.
func (b Bounds) IsUnbounded() bool {
	return b.Start == nil && b.End == nil
}

// Empty reports whether no timestamp can satisfy the bounds.
func (b Bounds) Empty() bool {
	return b.Start != nil && b.End != nil && *b.Start > *b.End
}

// =============================================================================
// Formatting
// =============================================================================

// Formatter renders unix seconds as Layout timestamps in Location.
// A nil Location means time.Local.
type Formatter struct {
	Location *time.Location
}

// NewFormatter returns a Formatter for the named IANA zone. "" and "Local"
// select the process-local zone.
func NewFormatter(zone string) (Formatter, error) {
	switch zone {
	case "", "Local":
		return Formatter{Location: time.Local}, nil
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return Formatter{}, errors.NewValidation("timezone", err.Error())
	}
	return Formatter{Location: loc}, nil
}

func (f Formatter) location() *time.Location {
	if f.Location == nil {
		return time.Local
	}
	return f.Location
}

// Format renders unix seconds as a Layout timestamp.
func (f Formatter) Format(unix int64) string {
	return time.Unix(unix, 0).In(f.location()).Format(Layout)
}

// Parse converts a Layout timestamp back to unix seconds.
func (f Formatter) Parse(s string) (int64, error) {
	t, err := time.ParseInLocation(Layout, s, f.location())
	if err != nil {
		return 0, err
	}
	return t.Unix(), nil
}

// =============================================================================
// Filtering
// =============================================================================

// FilterAndFormat keeps the records inside b, in input order, and shapes
// each kept record with its formatted timestamp. The result is never nil.
func FilterAndFormat[R Stamped, O any](records []R, b Bounds, f Formatter, shape func(R, string) O) []O {
	out := make([]O, 0, len(records))
	if b.Empty() {
		return out
	}
	for _, r := range records {
		ts := r.Timestamp()
		if !b.Contains(ts) {
			continue
		}
		out = append(out, shape(r, f.Format(ts)))
	}
	return out
}

// Refilter applies b to records that were already formatted. Timestamps
// are parsed back for the comparison and never rewritten, so running a
// filtered result through Refilter with the same bounds returns it
// unchanged.
func Refilter[O Formatted](records []O, b Bounds, f Formatter) ([]O, error) {
	out := make([]O, 0, len(records))
	for _, r := range records {
		ts, err := f.Parse(r.FormattedTime())
		if err != nil {
			return nil, errors.NewDecode("timestamp %q", r.FormattedTime())
		}
		if b.Contains(ts) {
			out = append(out, r)
		}
	}
	return out, nil
}

// =============================================================================
// Bound Parsing
// =============================================================================

var boundLayouts = []string{
	Layout,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseBound parses a query parameter into an instant. It accepts unix
// seconds, RFC 3339 (with offset), or an ISO-8601 timestamp without offset
// interpreted in loc. An empty string returns nil.
func ParseBound(param, s string, loc *time.Location) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if loc == nil {
		loc = time.Local
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		t := time.Unix(n, 0)
		return &t, nil
	}

	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return &t, nil
	}

	for _, layout := range boundLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return &t, nil
		}
	}

	return nil, errors.NewInvalidBound(param, s)
}

// ParseBounds parses start and end query parameters into Bounds.
func ParseBounds(start, end string, loc *time.Location) (Bounds, error) {
	s, err := ParseBound("start_time", start, loc)
	if err != nil {
		return Bounds{}, err
	}
	e, err := ParseBound("end_time", end, loc)
	if err != nil {
		return Bounds{}, err
	}
	return NewBounds(s, e), nil
}
