package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Output: &buf})
	log.Infof("hidden")
	log.Warnf("shown %d", 1)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info line should be filtered: %q", out)
	}
	if !strings.Contains(out, "[WARN] shown 1") {
		t.Fatalf("missing warn line: %q", out)
	}
}

func TestWithAppendsFields(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Level: "debug", Output: &buf})
	child := base.With("run", "abc")
	child.Debugf("step")
	base.Infof("plain")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), buf.String())
	}
	if !strings.HasSuffix(lines[0], "step run=abc") {
		t.Fatalf("child line missing field: %q", lines[0])
	}
	if strings.Contains(lines[1], "run=") {
		t.Fatalf("parent should not inherit child field: %q", lines[1])
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Format: "json", Output: &buf}).With("check", "dmv")
	log.Errorf("boom")

	var payload map[string]string
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload["level"] != "ERROR" || payload["msg"] != "boom" || payload["check"] != "dmv" {
		t.Fatalf("unexpected payload: %v", payload)
	}
}
