package bridge

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/adevaykin/tailor/internal/tailor"
	"github.com/adevaykin/tailor/internal/watcher"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type call struct {
	id    int32
	kind  Kind
	lines []string
}

type recorder struct {
	mu    sync.Mutex
	calls []call
	added chan struct{}
}

func newRecorder() *recorder {
	return &recorder{added: make(chan struct{}, 64)}
}

func (r *recorder) callback(id int32, kind Kind, lines []string) {
	r.mu.Lock()
	r.calls = append(r.calls, call{id: id, kind: kind, lines: lines})
	r.mu.Unlock()
	r.added <- struct{}{}
}

func (r *recorder) waitFor(t *testing.T, count int) []call {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		r.mu.Lock()
		if len(r.calls) >= count {
			out := append([]call(nil), r.calls...)
			r.mu.Unlock()
			return out
		}
		r.mu.Unlock()
		select {
		case <-r.added:
		case <-deadline:
			t.Fatalf("timed out waiting for %d callbacks", count)
		}
	}
}

func testOptions() tailor.Options {
	return tailor.Options{Watcher: watcher.Options{
		ActiveInterval:  10 * time.Millisecond,
		StandbyInterval: 50 * time.Millisecond,
		DirInterval:     50 * time.Millisecond,
	}}
}

func TestDirectorySessionMapsKinds(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	if err := os.WriteFile(path, []byte("Line1\nLine2\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	b := Init(testOptions())
	rec := newRecorder()
	b.SetCallback(rec.callback)

	id := b.WatchPath(dir)
	if id == InvalidSessionID {
		t.Fatal("expected a valid session id")
	}

	calls := rec.waitFor(t, 2)
	want := []call{
		{id: id, kind: NewFileStarted, lines: []string{path}},
		{id: id, kind: NewLinesAdded, lines: []string{"Line1", "Line2"}},
	}
	if !reflect.DeepEqual(calls[:2], want) {
		t.Fatalf("expected %+v, got %+v", want, calls[:2])
	}

	if err := b.Destroy(); err != nil {
		t.Fatalf("destroy: %v", err)
	}
}

func TestStopWatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	if err := os.WriteFile(path, []byte("x\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	b := Init(testOptions())
	defer b.Destroy()

	id := b.WatchPath(path)
	if !b.StopWatch(id) {
		t.Fatal("expected stop to succeed")
	}
	if b.StopWatch(id) {
		t.Fatal("expected second stop to report unknown id")
	}
	if b.StopWatch(12345) {
		t.Fatal("expected unknown id to report false")
	}
}

func TestWatchPathRejectsEmptyPath(t *testing.T) {
	b := Init(testOptions())
	defer b.Destroy()
	if id := b.WatchPath(""); id != InvalidSessionID {
		t.Fatalf("expected invalid id, got %d", id)
	}
}

func TestDestroy(t *testing.T) {
	b := Init(testOptions())
	if err := b.Destroy(); err != nil {
		t.Fatalf("destroy: %v", err)
	}
	if err := b.Destroy(); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
	if id := b.WatchPath("/tmp"); id != InvalidSessionID {
		t.Fatalf("expected invalid id after destroy, got %d", id)
	}
}

func TestDestroyFromCallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	if err := os.WriteFile(path, []byte("Line1\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	b := Init(testOptions())
	destroyed := make(chan error, 1)
	var once sync.Once
	b.SetCallback(func(int32, Kind, []string) {
		once.Do(func() { destroyed <- b.Destroy() })
	})
	if id := b.WatchPath(path); id == InvalidSessionID {
		t.Fatal("expected a session id")
	}

	select {
	case err := <-destroyed:
		if err != nil {
			t.Fatalf("destroy: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("destroy from inside a callback did not return")
	}
	if err := b.Destroy(); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
}
