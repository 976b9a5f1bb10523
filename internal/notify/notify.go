// Package notify publishes saved invalidation records to downstream
// consumers.
package notify

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/xtxerr/vigil/internal/storage/types"
)

// Publisher delivers invalidation records. Notify must be safe for
// concurrent use.
type Publisher interface {
	Notify(ctx context.Context, rec types.InvalidationRecord) error
	Close() error
}

// Event is the message payload for one invalidation record.
type Event struct {
	Time    int64         `json:"time"`
	Value   types.Float32 `json:"value"`
	Tags    []string      `json:"tags"`
	Reasons []string      `json:"reasons"`
}

// Encode returns the message key and JSON payload for rec. The key is the
// decimal unix time, so re-ingesting the same reading lands on the same
// partition.
func Encode(rec types.InvalidationRecord) (key, value []byte, err error) {
	tags := rec.Tags
	if tags == nil {
		tags = []string{}
	}
	value, err = json.Marshal(Event{
		Time:    rec.Time,
		Value:   types.Float32(rec.Value),
		Tags:    tags,
		Reasons: types.ReasonStrings(rec.Reasons),
	})
	if err != nil {
		return nil, nil, err
	}
	return []byte(strconv.FormatInt(rec.Time, 10)), value, nil
}

// Nop discards every record.
type Nop struct{}

// Notify does nothing.
func (Nop) Notify(context.Context, types.InvalidationRecord) error { return nil }

// Close does nothing.
func (Nop) Close() error { return nil }
