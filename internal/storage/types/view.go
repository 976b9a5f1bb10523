package types

import "encoding/json"

// ReadingView is a Reading shaped for query output: the value is decoded
// and the time is a local ISO-8601 timestamp (2006-01-02T15:04:05).
type ReadingView struct {
	Time  string   `json:"time"`
	Value float32  `json:"value"`
	Tags  []string `json:"tags"`
}

// MarshalJSON renders a non-finite value as null.
func (v ReadingView) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Time  string   `json:"time"`
		Value *float32 `json:"value"`
		Tags  []string `json:"tags"`
	}{v.Time, finiteOrNil(v.Value), v.Tags})
}

// FormattedTime returns the formatted timestamp.
func (v ReadingView) FormattedTime() string {
	return v.Time
}

// InvalidationView is an InvalidationRecord shaped for query output.
type InvalidationView struct {
	Time    string   `json:"time"`
	Value   float32  `json:"value"`
	Tags    []string `json:"tags"`
	Reasons []string `json:"reasons"`
}

// MarshalJSON renders a non-finite value as null.
func (v InvalidationView) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Time    string   `json:"time"`
		Value   *float32 `json:"value"`
		Tags    []string `json:"tags"`
		Reasons []string `json:"reasons"`
	}{v.Time, finiteOrNil(v.Value), v.Tags, v.Reasons})
}

// FormattedTime returns the formatted timestamp.
func (v InvalidationView) FormattedTime() string {
	return v.Time
}
