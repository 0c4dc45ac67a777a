package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stageboard/stageboard/internal/config"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(config.LogConfig{Level: "info", Format: "json"}, &buf)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Info().Str("project", "p1").Msg("recomputed")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if entry["message"] != "recomputed" {
		t.Errorf("message = %v, want recomputed", entry["message"])
	}
	if entry["project"] != "p1" {
		t.Errorf("project = %v, want p1", entry["project"])
	}
	if _, ok := entry["time"]; !ok {
		t.Error("entry should carry a timestamp")
	}
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(config.LogConfig{Level: "warn", Format: "json"}, &buf)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Info().Msg("hidden")
	log.Warn().Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info entry written at warn level: %q", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("warn entry missing: %q", out)
	}
}

func TestNew_Console(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(config.LogConfig{Level: "debug", Format: "console"}, &buf)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Debug().Msg("stage recomputed")
	out := buf.String()
	if !strings.Contains(out, "stage recomputed") {
		t.Errorf("output = %q, want message", out)
	}
	if strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Errorf("console output looks like JSON: %q", out)
	}
}

func TestNew_BadLevel(t *testing.T) {
	_, err := New(config.LogConfig{Level: "loud"}, &bytes.Buffer{})
	if err == nil {
		t.Fatal("expected error for unknown level")
	}
	if !strings.Contains(err.Error(), "logging: level") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "logging: level")
	}
}
