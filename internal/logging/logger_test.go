package logging

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"
)

func TestLoggerWritesToBuffer(t *testing.T) {
	buffer := NewLogBuffer(10)
	logger := NewLoggerWithOutput(buffer, LevelInfo, io.Discard)

	logger.Info("watching file", map[string]string{"path": "/var/log/app.log"})

	entries := buffer.List()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Level != LevelInfo {
		t.Fatalf("expected info level, got %q", entry.Level)
	}
	if entry.Message != "watching file" {
		t.Fatalf("expected message, got %q", entry.Message)
	}
	if entry.Context["path"] != "/var/log/app.log" {
		t.Fatalf("expected path context, got %v", entry.Context)
	}
}

func TestLoggerFiltersByLevel(t *testing.T) {
	buffer := NewLogBuffer(10)
	logger := NewLoggerWithOutput(buffer, LevelWarning, io.Discard)

	logger.Info("info", nil)
	logger.Warn("warn", nil)

	entries := buffer.List()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Level != LevelWarning {
		t.Fatalf("expected warning level, got %q", entries[0].Level)
	}
}

func TestSetLevelAppliesToDerivedLoggers(t *testing.T) {
	buffer := NewLogBuffer(10)
	root := NewLoggerWithOutput(buffer, LevelInfo, io.Discard)
	child := root.Named("filewatch")

	child.Debug("hidden", nil)
	root.SetLevel(LevelDebug)
	child.Debug("visible", nil)

	entries := buffer.List()
	if len(entries) != 1 || entries[0].Message != "visible" {
		t.Fatalf("expected only the visible entry, got %v", entries)
	}
	if entries[0].Context[FieldCategory] != "filewatch" {
		t.Fatalf("expected category field, got %v", entries[0].Context)
	}
}

func TestLoggerFormatsLogfmt(t *testing.T) {
	var out bytes.Buffer
	logger := NewLoggerWithOutput(nil, LevelInfo, &out).With(map[string]string{"b": "2"})
	logger.Error("read failed", map[string]string{"a": "1"})

	line := out.String()
	if !strings.Contains(line, `level=error msg="read failed" a="1" b="2"`) {
		t.Fatalf("unexpected output %q", line)
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	var logger *Logger
	logger.Info("ignored", nil)
	if logger.Enabled(LevelError) {
		t.Fatalf("expected nil logger disabled")
	}
	if OrDiscard(logger) == nil {
		t.Fatalf("expected discard logger")
	}
}

func TestLoggerStreamDeliversEntries(t *testing.T) {
	logger := NewLoggerWithOutput(NewLogBuffer(50), LevelInfo, io.Discard)
	output, cancel := logger.Subscribe()
	defer cancel()

	const total = 50
	for i := 0; i < total; i++ {
		logger.Info("message", nil)
	}

	received := 0
	deadline := time.After(2 * time.Second)
	for received < total {
		select {
		case <-output:
			received++
		case <-deadline:
			t.Fatalf("timed out after receiving %d entries", received)
		}
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		" INFO ":  LevelInfo,
		"warn":    LevelWarning,
		"warning": LevelWarning,
		"error":   LevelError,
	}
	for raw, expected := range cases {
		level, ok := ParseLevel(raw)
		if !ok || level != expected {
			t.Fatalf("ParseLevel(%q) = %q, %v", raw, level, ok)
		}
	}
	if _, ok := ParseLevel("verbose"); ok {
		t.Fatalf("expected unknown level to fail")
	}
}
