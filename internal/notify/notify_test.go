package notify

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/xtxerr/vigil/internal/errors"
	"github.com/xtxerr/vigil/internal/storage/types"
)

func TestEncode_NonFinite(t *testing.T) {
	rec := types.InvalidationRecord{
		Time:    1714564800,
		Value:   float32(math.NaN()),
		Tags:    []string{"suspect"},
		Reasons: []types.ReasonCode{types.ReasonTooOld, types.ReasonSystemOrSuspect},
	}

	_, value, err := Encode(rec)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !strings.Contains(string(value), `"value":"NaN"`) {
		t.Errorf("payload = %s", value)
	}

	var ev Event
	if err := json.Unmarshal(value, &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.Value.IsFinite() {
		t.Errorf("value = %v, want NaN", ev.Value)
	}
}

func TestEncode(t *testing.T) {
	rec := types.InvalidationRecord{
		Time:    1714564800,
		Value:   -0.0041,
		Reasons: []types.ReasonCode{types.ReasonTooOld},
	}

	key, value, err := Encode(rec)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if string(key) != "1714564800" {
		t.Errorf("key = %q", key)
	}

	var ev Event
	if err := json.Unmarshal(value, &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.Time != rec.Time || float32(ev.Value) != rec.Value {
		t.Errorf("event = %+v", ev)
	}
	if len(ev.Reasons) != 1 || ev.Reasons[0] != "DATA_TOO_OLD" {
		t.Errorf("reasons = %v", ev.Reasons)
	}
	if !strings.Contains(string(value), `"tags":[]`) {
		t.Errorf("nil tags should encode as an empty array: %s", value)
	}
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	if err := p.Notify(context.Background(), types.InvalidationRecord{}); err != nil {
		t.Error(err)
	}
	if err := p.Close(); err != nil {
		t.Error(err)
	}
}

func TestNewKafka_NoBrokers(t *testing.T) {
	if _, err := NewKafka(KafkaOptions{}); !errors.Is(err, errors.ErrMissingField) {
		t.Errorf("expected ErrMissingField, got %v", err)
	}
}

// Needs a reachable cluster: VIGIL_KAFKA_BROKERS=localhost:9092
func TestKafka_Notify(t *testing.T) {
	brokers := os.Getenv("VIGIL_KAFKA_BROKERS")
	if brokers == "" {
		t.Skip("VIGIL_KAFKA_BROKERS not set")
	}

	k, err := NewKafka(KafkaOptions{Brokers: strings.Split(brokers, ","), Topic: "vigil.test"})
	if err != nil {
		t.Fatalf("NewKafka: %v", err)
	}
	defer k.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rec := types.InvalidationRecord{Time: time.Now().Unix(), Value: 1, Reasons: []types.ReasonCode{types.ReasonSystemOrSuspect}}
	if err := k.Notify(ctx, rec); err != nil {
		t.Fatalf("Notify: %v", err)
	}
}
