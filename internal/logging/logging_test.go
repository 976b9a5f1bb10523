package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestInitFromConfig_UnknownFormat(t *testing.T) {
	if err := InitFromConfig("info", "xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestWithContext_RequestID(t *testing.T) {
	var buf bytes.Buffer
	InitWithHandler(slog.NewJSONHandler(&buf, nil))

	ctx := ContextWithRequestID(context.Background(), "req-1")
	ctx = ContextWithRole(ctx, "admin")
	WithContext(ctx).Info("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	if entry["request_id"] != "req-1" {
		t.Errorf("request_id = %v, want req-1", entry["request_id"])
	}
	if entry["role"] != "admin" {
		t.Errorf("role = %v, want admin", entry["role"])
	}

	id, ok := RequestIDFromContext(ctx)
	if !ok || id != "req-1" {
		t.Errorf("RequestIDFromContext = %q, %v", id, ok)
	}
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	initTo(&buf, slog.LevelInfo, false)

	Component("ingestion").Info("started")

	if !strings.Contains(buf.String(), "component=ingestion") {
		t.Errorf("missing component attribute in %q", buf.String())
	}
}
