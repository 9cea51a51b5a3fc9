// Package trace appends a human-readable record of each probe step to a plain
// text file, for debugging a booking site whose markup changed.
package trace

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// Recorder writes to Path in append mode. A nil Recorder or an empty Path is a no-op.
type Recorder struct {
	Path string

	mu sync.Mutex
}

func New(path string) *Recorder {
	return &Recorder{Path: path}
}

func (r *Recorder) Begin(runID string, at time.Time) {
	r.write("=== Appointment Check Log - %s (run %s) ===\n\n", at.Format("2006-01-02 15:04:05"), runID)
}

func (r *Recorder) Step(n int, what string, url string) {
	r.write("Step %d: %s\nURL: %s\n\n", n, what, url)
}

func (r *Recorder) Warn(format string, args ...any) {
	r.write("WARNING: "+format+"\n\n", args...)
}

func (r *Recorder) Unit(i int, class, text string) {
	r.write("[%d] Class: %s\n    Text: %s\n\n", i, class, text)
}

func (r *Recorder) Error(err error, url string) {
	r.write("ERROR: %v\nURL at error: %s\n\n", err, url)
}

func (r *Recorder) End() {
	r.write("%s\n", strings.Repeat("=", 60))
}

func (r *Recorder) write(format string, args ...any) {
	if r == nil || r.Path == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := os.OpenFile(r.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = fmt.Fprintf(f, format, args...)
}
