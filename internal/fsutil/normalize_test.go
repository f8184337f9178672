package fsutil

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestCleanWatchPathRelative(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	for _, input := range []string{"logs/app.log", "./logs//app.log", " logs/../logs/app.log "} {
		got, err := CleanWatchPath(input)
		if err != nil {
			t.Fatalf("clean %q: %v", input, err)
		}
		if want := filepath.Join(wd, "logs", "app.log"); got != want {
			t.Fatalf("clean %q: expected %q, got %q", input, want, got)
		}
	}
}

func TestCleanWatchPathHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := CleanWatchPath("~/logs")
	if err != nil {
		t.Fatalf("clean: %v", err)
	}
	if want := filepath.Join(home, "logs"); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestCleanWatchPathEmpty(t *testing.T) {
	if _, err := CleanWatchPath("  "); !errors.Is(err, ErrEmptyPath) {
		t.Fatalf("expected ErrEmptyPath, got %v", err)
	}
}
