package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

type Config struct {
	Level  string
	Format string
	Output io.Writer
}

type field struct {
	key   string
	value string
}

type Logger struct {
	mu     *sync.Mutex
	level  Level
	out    io.Writer
	json   bool
	fields []field
}

func New(cfg Config) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	return &Logger{
		mu:    &sync.Mutex{},
		level: parseLevel(cfg.Level),
		out:   out,
		json:  strings.EqualFold(strings.TrimSpace(cfg.Format), "json"),
	}
}

// Discard returns a logger that drops everything. Handy in tests.
func Discard() *Logger {
	return New(Config{Level: "error", Output: io.Discard})
}

// With returns a child logger that appends key=value to every line.
// The child shares the parent's writer and lock.
func (l *Logger) With(key string, value any) *Logger {
	child := *l
	child.fields = append(append([]field(nil), l.fields...), field{key: key, value: fmt.Sprint(value)})
	return &child
}

func (l *Logger) Debugf(format string, args ...any) {
	l.logf(LevelDebug, "DEBUG", format, args...)
}

func (l *Logger) Infof(format string, args ...any) {
	l.logf(LevelInfo, "INFO", format, args...)
}

func (l *Logger) Warnf(format string, args ...any) {
	l.logf(LevelWarn, "WARN", format, args...)
}

func (l *Logger) Errorf(format string, args ...any) {
	l.logf(LevelError, "ERROR", format, args...)
}

func (l *Logger) logf(level Level, label string, format string, args ...any) {
	if level < l.level {
		return
	}

	msg := fmt.Sprintf(format, args...)
	timestamp := time.Now().Format(time.RFC3339)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.json {
		payload := map[string]string{
			"time":  timestamp,
			"level": label,
			"msg":   msg,
		}
		for _, f := range l.fields {
			payload[f.key] = f.value
		}
		enc, err := json.Marshal(payload)
		if err == nil {
			fmt.Fprintf(l.out, "%s\n", enc)
			return
		}
	}
	var suffix strings.Builder
	for _, f := range l.fields {
		fmt.Fprintf(&suffix, " %s=%s", f.key, f.value)
	}
	fmt.Fprintf(l.out, "%s [%s] %s%s\n", timestamp, label, msg, suffix.String())
}

func parseLevel(raw string) Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}
