package trace

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestRecorderAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug_log.txt")
	if err := os.WriteFile(path, []byte("previous run\n"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}

	r := New(path)
	r.Begin("run-1", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	r.Step(1, "Initial page loaded", "https://example.test/")
	r.Warn("Could not find service type")
	r.Unit(1, "Activate-Unit", "Raleigh West")
	r.Error(errors.New("boom"), "https://example.test/units")
	r.End()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	got := string(data)
	for _, want := range []string{
		"previous run\n=== Appointment Check Log - 2026-01-02 03:04:05 (run run-1) ===",
		"Step 1: Initial page loaded\nURL: https://example.test/",
		"WARNING: Could not find service type",
		"[1] Class: Activate-Unit\n    Text: Raleigh West",
		"ERROR: boom\nURL at error: https://example.test/units",
		strings.Repeat("=", 60),
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("trace missing %q:\n%s", want, got)
		}
	}
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	r.Step(1, "x", "y")
	New("").End()
}
