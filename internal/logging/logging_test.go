package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Format: "json", Output: &buf})
	log.Info("session created", "id", "42")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("expected JSON line, got %q: %v", buf.String(), err)
	}
	if rec["msg"] != "session created" || rec["id"] != "42" {
		t.Errorf("unexpected record %v", rec)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Output: &buf})
	log.Info("hidden")
	log.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info must be filtered at warn level")
	}
	if !strings.Contains(out, "shown") {
		t.Error("expected warn record")
	}
}

func TestDebugLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "DEBUG", Output: &buf})
	log.Debug("phase", "phase", "COMMITTING")
	if !strings.Contains(buf.String(), "COMMITTING") {
		t.Errorf("expected debug output, got %q", buf.String())
	}
}
