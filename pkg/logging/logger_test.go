package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func decodeEntries(t *testing.T, buf *bytes.Buffer) []LogEntry {
	t.Helper()

	var entries []LogEntry
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var e LogEntry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			t.Fatalf("log line is not valid JSON: %q: %v", line, err)
		}
		entries = append(entries, e)
	}
	return entries
}

func TestJSONLogger_Output(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, DebugLevel)

	logger.Info("request handled",
		Method("GET"),
		Path("/api/me"),
		Status(200),
	)

	entries := decodeEntries(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}

	e := entries[0]
	if e.Level != "INFO" {
		t.Errorf("level = %q, want INFO", e.Level)
	}
	if e.Message != "request handled" {
		t.Errorf("msg = %q", e.Message)
	}
	if e.Fields["method"] != "GET" {
		t.Errorf("method field = %v", e.Fields["method"])
	}
	if e.Fields["status"] != float64(200) {
		t.Errorf("status field = %v", e.Fields["status"])
	}
	if e.Time == "" {
		t.Error("time missing")
	}
}

func TestJSONLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, WarnLevel)

	logger.Debug("dropped")
	logger.Info("dropped")
	logger.Warn("kept")
	logger.Error("kept")

	entries := decodeEntries(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Level != "WARN" || entries[1].Level != "ERROR" {
		t.Errorf("levels = %s, %s", entries[0].Level, entries[1].Level)
	}
}

func TestJSONLogger_With(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, InfoLevel)

	child := logger.With(Component("csrf"))
	child.Info("token issued", SessionID("s-1"))

	entries := decodeEntries(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].Fields["component"] != "csrf" {
		t.Errorf("component = %v", entries[0].Fields["component"])
	}
	if entries[0].Fields["session_id"] != "s-1" {
		t.Errorf("session_id = %v", entries[0].Fields["session_id"])
	}

	// Parent is unaffected
	buf.Reset()
	logger.Info("plain")
	entries = decodeEntries(t, &buf)
	if _, ok := entries[0].Fields["component"]; ok {
		t.Error("With() must not mutate the parent logger")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  Level
	}{
		{"DEBUG", DebugLevel},
		{"debug", DebugLevel},
		{"INFO", InfoLevel},
		{"WARN", WarnLevel},
		{"warning", WarnLevel},
		{"ERROR", ErrorLevel},
		{"bogus", InfoLevel},
		{"", InfoLevel},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestFieldHelpers(t *testing.T) {
	if f := Error(errors.New("boom")); f.Key != "error" || f.Value != "boom" {
		t.Errorf("Error() = %+v", f)
	}
	if f := Error(nil); f.Value != nil {
		t.Errorf("Error(nil) = %+v", f)
	}
	if f := Duration("d", 1500*time.Millisecond); f.Value != "1.5s" {
		t.Errorf("Duration() = %+v", f)
	}
	if f := Reason("expired"); f.Key != "reason" || f.Value != "expired" {
		t.Errorf("Reason() = %+v", f)
	}
}

func TestNopLogger(t *testing.T) {
	logger := NewNopLogger()

	// Must be safe to call every method
	logger.Debug("x")
	logger.Info("x", String("k", "v"))
	logger.Warn("x")
	logger.Error("x")
	logger.SetLevel(DebugLevel)

	if child := logger.With(String("k", "v")); child == nil {
		t.Error("With() returned nil")
	}
	if logger.GetLevel() != InfoLevel {
		t.Errorf("GetLevel() = %v", logger.GetLevel())
	}
}
