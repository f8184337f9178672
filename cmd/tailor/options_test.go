package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/adevaykin/tailor/internal/config"
	"github.com/adevaykin/tailor/internal/logging"
)

func TestLoadSettingsPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tailor.toml")
	payload := "log_level = \"warning\"\n\n[poll]\nactive_interval = \"250ms\"\n\n[serve]\naddr = \"127.0.0.1:9000\"\n"
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	env := map[string]string{
		"TAILOR_CONFIG":     path,
		"TAILOR_SERVE_ADDR": "127.0.0.1:9100",
	}
	deps := newTestDeps(env)
	options, err := parseServeFlags([]string{"-log-level", "debug"}, deps.commandDeps)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	settings, err := loadSettings(options, deps.LookupEnv)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if settings.LogLevel != "debug" {
		t.Fatalf("expected flag to win, got %q", settings.LogLevel)
	}
	if settings.Serve.Addr != "127.0.0.1:9100" {
		t.Fatalf("expected env to override file, got %q", settings.Serve.Addr)
	}
	if settings.Poll.ActiveInterval != 250*time.Millisecond {
		t.Fatalf("expected file interval, got %s", settings.Poll.ActiveInterval)
	}
}

func TestNewLoggerWritesLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tailor.log")
	settings := config.Defaults()
	settings.LogFile = path
	settings.LogLevel = "debug"

	logger, closeLog, err := newLogger(settings, nil)
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	if logger.Level() != logging.LevelDebug {
		t.Fatalf("expected debug level, got %q", logger.Level())
	}
	logger.Info("file logger ready", nil)
	closeLog()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), `msg="file logger ready"`) {
		t.Fatalf("expected entry in log file, got %q", data)
	}
}

func TestWatcherOptionsFromSettings(t *testing.T) {
	settings := config.Defaults()
	settings.Poll.ActiveInterval = 20 * time.Millisecond
	options := watcherOptions(settings, nil)
	if options.ActiveInterval != 20*time.Millisecond || options.DirInterval != settings.Poll.DirInterval {
		t.Fatalf("unexpected options %+v", options)
	}
}
