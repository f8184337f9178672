package client

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/adevaykin/tailor/internal/watcher"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func fastOptions() watcher.Options {
	return watcher.Options{
		ActiveInterval:  10 * time.Millisecond,
		StandbyInterval: 50 * time.Millisecond,
		DirInterval:     50 * time.Millisecond,
	}
}

func waitForMessage(t *testing.T, messages <-chan watcher.Message) watcher.Message {
	t.Helper()
	select {
	case message := <-messages:
		return message
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for message")
	}
	return watcher.Message{}
}

func expectNewFile(t *testing.T, message watcher.Message, path string) {
	t.Helper()
	if message.Kind != watcher.MessageNewFile || message.Path != path {
		t.Fatalf("expected new_file %s, got %+v", path, message)
	}
}

func expectLines(t *testing.T, message watcher.Message, want ...string) {
	t.Helper()
	if message.Kind != watcher.MessageNewLines || !reflect.DeepEqual(message.Lines, want) {
		t.Fatalf("expected new_lines %q, got %+v", want, message)
	}
}

func writeFile(t *testing.T, path, content string, modTime time.Time) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	if !modTime.IsZero() {
		if err := os.Chtimes(path, modTime, modTime); err != nil {
			t.Fatalf("chtimes %s: %v", path, err)
		}
	}
}

func waitForState(t *testing.T, c *DirWatchClient, want State) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if c.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected state %v, got %v", want, c.State())
}

func TestFileClientForwardsLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	writeFile(t, path, "Line1\nLine2\n", time.Time{})

	messages := make(chan watcher.Message, 4)
	c := StartFile(path, messages, fastOptions())
	expectLines(t, waitForMessage(t, messages), "Line1", "Line2")

	if err := c.Shutdown(); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if err := c.Err(); err != nil {
		t.Fatalf("expected nil err after stop, got %v", err)
	}
}

func TestFileClientReportsSetupFailure(t *testing.T) {
	messages := make(chan watcher.Message, 1)
	c := StartFile(filepath.Join(t.TempDir(), "missing.log"), messages, fastOptions())
	if err := c.Wait(); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
	if len(messages) != 0 {
		t.Fatalf("expected silent stream, got %d messages", len(messages))
	}
}

func TestDirClientSwitchesFiles(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "a.log")
	writeFile(t, first, "Line1\n", time.Now().Add(-time.Hour))

	messages := make(chan watcher.Message, 8)
	c := StartDir(dir, messages, fastOptions())
	defer c.Shutdown()

	expectNewFile(t, waitForMessage(t, messages), first)
	expectLines(t, waitForMessage(t, messages), "Line1")
	if state, path := c.File(); state != FileActive || path != first {
		t.Fatalf("expected active %s, got %v %s", first, state, path)
	}

	second := filepath.Join(dir, "b.log")
	writeFile(t, second, "Line2\n", time.Time{})
	expectNewFile(t, waitForMessage(t, messages), second)
	expectLines(t, waitForMessage(t, messages), "Line2")
	waitForState(t, c, StateRunning)
}

func TestDirClientStop(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.log"), "Line1\n", time.Time{})

	messages := make(chan watcher.Message, 8)
	c := StartDir(dir, messages, fastOptions())
	waitForMessage(t, messages)
	waitForMessage(t, messages)

	if err := c.Shutdown(); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if c.State() != StateTerminated {
		t.Fatalf("expected terminated, got %v", c.State())
	}
	if state, _ := c.File(); state != FileNone {
		t.Fatalf("expected no active file, got %v", state)
	}

	writeFile(t, filepath.Join(dir, "b.log"), "Line2\n", time.Time{})
	select {
	case message := <-messages:
		t.Fatalf("unexpected message after stop %+v", message)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestDirClientEndsWhenActiveFileRemoved(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.log")
	writeFile(t, path, "Line1\n", time.Time{})

	messages := make(chan watcher.Message, 8)
	c := StartDir(dir, messages, fastOptions())
	waitForMessage(t, messages)
	waitForMessage(t, messages)

	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}
	select {
	case <-c.Dead():
	case <-time.After(3 * time.Second):
		t.Fatal("client did not end after its file was removed")
	}
	if err := c.Err(); err != nil {
		t.Fatalf("expected clean end, got %v", err)
	}
	if c.State() != StateTerminated {
		t.Fatalf("expected terminated, got %v", c.State())
	}
}

func TestStateStrings(t *testing.T) {
	if StateStopRequested.String() != "stop_requested" || FileSwitching.String() != "switching" {
		t.Fatalf("unexpected state names %s %s", StateStopRequested, FileSwitching)
	}
}
