package mongo

import (
	"github.com/xtxerr/vigil/internal/storage/types"
)

// readingDoc is the stored form of a reading.
type readingDoc struct {
	Time  int64    `bson:"time"`
	Value []byte   `bson:"value"`
	Tags  []string `bson:"tags"`
}

// invalidationDoc is the stored form of an invalidation record.
type invalidationDoc struct {
	Time    int64    `bson:"time"`
	Value   float64  `bson:"value"`
	Tags    []string `bson:"tags"`
	Reasons []string `bson:"reasons"`
}

func toReadingDoc(r types.Reading) readingDoc {
	return readingDoc{
		Time:  r.Time,
		Value: []byte(r.Value),
		Tags:  nonNil(r.Tags),
	}
}

func (d readingDoc) toReading() types.Reading {
	return types.Reading{
		Time:  d.Time,
		Value: types.RawValue(d.Value),
		Tags:  nonNil(d.Tags),
	}
}

func toInvalidationDoc(rec types.InvalidationRecord) invalidationDoc {
	return invalidationDoc{
		Time:    rec.Time,
		Value:   float64(rec.Value),
		Tags:    nonNil(rec.Tags),
		Reasons: types.ReasonStrings(rec.Reasons),
	}
}

func (d invalidationDoc) toRecord() (types.InvalidationRecord, error) {
	reasons, err := types.ParseReasonCodes(d.Reasons)
	if err != nil {
		return types.InvalidationRecord{}, err
	}
	return types.InvalidationRecord{
		Time:    d.Time,
		Value:   float32(d.Value),
		Tags:    nonNil(d.Tags),
		Reasons: reasons,
	}, nil
}

func nonNil(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
