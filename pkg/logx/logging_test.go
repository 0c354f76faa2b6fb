package logx

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestWriterLoggerFieldsAndLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, "info").With(String("comp", "router"))

	log.Debug("hidden")
	log.Warn("tampered", Int64("chat_id", 42), Err(errors.New("boom")))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("lines = %d, want 1: %q", len(lines), buf.String())
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &m); err != nil {
		t.Fatal(err)
	}
	if m["level"] != "warn" || m["message"] != "tampered" || m["comp"] != "router" || m["err"] != "boom" {
		t.Fatalf("unexpected record: %v", m)
	}
	if m["chat_id"].(float64) != 42 {
		t.Fatalf("chat_id = %v", m["chat_id"])
	}
}

func TestZeroLoggerIsSafe(t *testing.T) {
	var l Logger
	if !l.IsZero() {
		t.Fatal("zero logger not zero")
	}
	l.Info("nothing")
	Nop().With(String("a", "b")).Error("nothing")
}

func TestFormatTelegramJSON(t *testing.T) {
	got := formatTelegramJSON([]byte(`{"level":"warn","message":"tampered","update_id":7,"chat_id":1,"time":"x"}`))
	want := "[WARN] tampered\n- chat_id=1\n- update_id=7"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestParseLevel(t *testing.T) {
	if parseLevel("warning", LevelInfo) != LevelWarn {
		t.Fatal("warning")
	}
	if parseLevel("bogus", LevelInfo) != LevelInfo {
		t.Fatal("default")
	}
}
