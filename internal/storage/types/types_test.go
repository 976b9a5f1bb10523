package types

import (
	"encoding/json"
	"math"
	"testing"
	"time"
)

func TestReadingJSON_IntArrayValue(t *testing.T) {
	payload := `{"time": 1700000000, "value": [130, 90, 134, 187], "tags": ["system"]}`

	var r Reading
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if r.Time != 1700000000 {
		t.Errorf("expected time 1700000000, got %d", r.Time)
	}
	want := []byte{130, 90, 134, 187}
	if string(r.Value) != string(want) {
		t.Errorf("expected value %v, got %v", want, r.Value)
	}
	if !r.HasTag("system") || r.HasTag("suspect") {
		t.Errorf("unexpected tags %v", r.Tags)
	}

	out, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	expected := `{"time":1700000000,"value":[130,90,134,187],"tags":["system"]}`
	if string(out) != expected {
		t.Errorf("expected %s, got %s", expected, out)
	}
}

func TestReadingJSON_Base64Value(t *testing.T) {
	var r Reading
	if err := json.Unmarshal([]byte(`{"time": 1, "value": "glqGuw==", "tags": []}`), &r); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(r.Value) != 4 || r.Value[0] != 130 {
		t.Errorf("unexpected value %v", r.Value)
	}
	if r.Tags == nil {
		t.Error("empty tags should decode to a non-nil slice")
	}
}

func TestReadingJSON_MissingTags(t *testing.T) {
	var r Reading
	if err := json.Unmarshal([]byte(`{"time": 1, "value": [0,0,0,0]}`), &r); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if r.Tags != nil {
		t.Errorf("missing tags should stay nil, got %v", r.Tags)
	}
}

func TestRawValue_RejectsOutOfRange(t *testing.T) {
	var v RawValue
	if err := json.Unmarshal([]byte(`[1, 256]`), &v); err == nil {
		t.Error("expected error for byte out of range")
	}
	if err := json.Unmarshal([]byte(`[-1]`), &v); err == nil {
		t.Error("expected error for negative byte")
	}
}

func TestReadingTimeValue(t *testing.T) {
	now := time.Now().Truncate(time.Second)
	r := Reading{Time: now.Unix()}

	if !r.TimeValue().Equal(now) {
		t.Errorf("expected %v, got %v", now, r.TimeValue())
	}
}

func TestParseReasonCode(t *testing.T) {
	tests := []struct {
		in      string
		want    ReasonCode
		wantErr bool
	}{
		{"DATA_TOO_OLD", ReasonTooOld, false},
		{"DATA_SYSTEM_OR_SUSPECT", ReasonSystemOrSuspect, false},
		{"data_too_old", "", true},
		{"['DATA_TOO_OLD']", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseReasonCode(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseReasonCode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseReasonCode(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestInvalidationRecordJSON(t *testing.T) {
	rec := InvalidationRecord{
		Time:    100,
		Value:   -0.0041,
		Tags:    []string{"suspect"},
		Reasons: []ReasonCode{ReasonTooOld, ReasonSystemOrSuspect},
	}

	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var got InvalidationRecord
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(got.Reasons) != 2 || got.Reasons[0] != ReasonTooOld || got.Reasons[1] != ReasonSystemOrSuspect {
		t.Errorf("reasons not preserved in order: %v", got.Reasons)
	}

	bad := `{"time": 1, "value": 0, "tags": [], "reasons": ["EVAL_ME"]}`
	if err := json.Unmarshal([]byte(bad), &got); err == nil {
		t.Error("expected error for unknown reason code")
	}
}

func TestReasonStrings(t *testing.T) {
	got := ReasonStrings([]ReasonCode{ReasonSystemOrSuspect})
	if len(got) != 1 || got[0] != "DATA_SYSTEM_OR_SUSPECT" {
		t.Errorf("unexpected %v", got)
	}

	codes, err := ParseReasonCodes([]string{"DATA_TOO_OLD"})
	if err != nil || len(codes) != 1 || codes[0] != ReasonTooOld {
		t.Errorf("ParseReasonCodes = %v, %v", codes, err)
	}
}

func TestInvalidationRecordJSON_NonFinite(t *testing.T) {
	tests := []struct {
		name  string
		value float32
		wire  string
	}{
		{"nan", float32(math.NaN()), `"NaN"`},
		{"positive infinity", float32(math.Inf(1)), `"+Inf"`},
		{"negative infinity", float32(math.Inf(-1)), `"-Inf"`},
		{"finite", -0.0041, `-0.0041`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := InvalidationRecord{Time: 1, Value: tt.value, Tags: []string{}, Reasons: []ReasonCode{ReasonTooOld}}

			data, err := json.Marshal(rec)
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			want := `{"time":1,"value":` + tt.wire + `,"tags":[],"reasons":["DATA_TOO_OLD"]}`
			if string(data) != want {
				t.Errorf("expected %s, got %s", want, data)
			}

			var got InvalidationRecord
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if math.IsNaN(float64(tt.value)) {
				if !math.IsNaN(float64(got.Value)) {
					t.Errorf("expected NaN, got %v", got.Value)
				}
			} else if got.Value != tt.value {
				t.Errorf("expected %v, got %v", tt.value, got.Value)
			}
		})
	}
}

func TestFloat32_RejectsUnknownString(t *testing.T) {
	var f Float32
	if err := json.Unmarshal([]byte(`"twelve"`), &f); err == nil {
		t.Error("expected error for non-numeric string")
	}
}

func TestViewJSON_NonFiniteIsNull(t *testing.T) {
	rv, err := json.Marshal(ReadingView{Time: "2024-05-01T12:00:00", Value: float32(math.NaN()), Tags: []string{}})
	if err != nil {
		t.Fatalf("Marshal reading view: %v", err)
	}
	if want := `{"time":"2024-05-01T12:00:00","value":null,"tags":[]}`; string(rv) != want {
		t.Errorf("expected %s, got %s", want, rv)
	}

	iv, err := json.Marshal(InvalidationView{Time: "t", Value: float32(math.Inf(-1)), Tags: []string{}, Reasons: []string{"DATA_TOO_OLD"}})
	if err != nil {
		t.Fatalf("Marshal invalidation view: %v", err)
	}
	if want := `{"time":"t","value":null,"tags":[],"reasons":["DATA_TOO_OLD"]}`; string(iv) != want {
		t.Errorf("expected %s, got %s", want, iv)
	}

	fv, _ := json.Marshal(ReadingView{Time: "t", Value: 1.5, Tags: []string{}})
	if want := `{"time":"t","value":1.5,"tags":[]}`; string(fv) != want {
		t.Errorf("expected %s, got %s", want, fv)
	}
}
