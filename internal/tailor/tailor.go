// Package tailor keeps a registry of independent watch sessions. Each session
// follows a file or a directory and writes its Message stream to the sink the
// caller passed to Watch.
package tailor

import (
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/adevaykin/tailor/internal/client"
	"github.com/adevaykin/tailor/internal/logging"
	"github.com/adevaykin/tailor/internal/metrics"
	"github.com/adevaykin/tailor/internal/watcher"
	"github.com/puzpuzpuz/xsync/v4"
	"github.com/spf13/afero"
)

// SessionID identifies a session. Ids start at 1 and are never reused.
type SessionID int64

// NoSession is what Watch returns once the Tailor is closed.
const NoSession SessionID = 0

// Kind is the resolved target of a session, fixed for its lifetime.
type Kind int

const (
	KindFile Kind = iota
	KindDirectory
)

func (kind Kind) String() string {
	if kind == KindDirectory {
		return "directory"
	}
	return "file"
}

// Options configures a Tailor. Watcher options apply to every session; their
// Logger and Metrics default to the ones given here.
type Options struct {
	Logger  *logging.Logger
	Metrics *metrics.Registry
	Watcher watcher.Options
}

// session is what both client types provide.
type session interface {
	Path() string
	Stop()
	Shutdown() error
	Dead() <-chan struct{}
	Err() error
}

type entry struct {
	kind   Kind
	client session
}

// SessionInfo describes a registered session.
type SessionInfo struct {
	ID   SessionID
	Path string
	Kind Kind
}

// Tailor is safe for concurrent use.
type Tailor struct {
	logger   *logging.Logger
	metrics  *metrics.Registry
	options  watcher.Options
	fs       afero.Fs
	nextID   atomic.Int64
	sessions *xsync.Map[SessionID, entry]
	// stopping holds sessions removed by Stop until Close has seen them exit.
	stopping *xsync.Map[SessionID, session]

	// mu orders registration against Close so no session escapes it.
	mu     sync.Mutex
	closed bool
}

func New(options Options) *Tailor {
	logger := logging.OrDiscard(options.Logger)
	watcherOptions := options.Watcher
	if watcherOptions.Logger == nil {
		watcherOptions.Logger = logger
	}
	registry := options.Metrics
	if registry == nil {
		registry = metrics.Default
	}
	if watcherOptions.Metrics == nil {
		watcherOptions.Metrics = registry
	}
	fs := watcherOptions.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Tailor{
		logger:   logger.Named("tailor"),
		metrics:  registry,
		options:  watcherOptions,
		fs:       fs,
		sessions: xsync.NewMap[SessionID, entry](),
		stopping: xsync.NewMap[SessionID, session](),
	}
}

// Watch starts a session for path. A directory is followed through its newest
// file; anything else, including a path that does not exist yet, is tailed as
// a file. Setup failures end the session silently; see Err. After Close it
// starts nothing and returns NoSession.
func (t *Tailor) Watch(path string, sink chan<- watcher.Message) SessionID {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		t.logger.Warn("watch refused after close", map[string]string{logging.FieldPath: path})
		return NoSession
	}

	kind := KindFile
	if info, err := t.fs.Stat(path); err == nil && info.IsDir() {
		kind = KindDirectory
	}

	var c session
	if kind == KindDirectory {
		c = client.StartDir(path, sink, t.options)
	} else {
		c = client.StartFile(path, sink, t.options)
	}

	id := SessionID(t.nextID.Add(1))
	t.sessions.Store(id, entry{kind: kind, client: c})
	t.metrics.IncSessionStarted()
	t.logger.Info("session started", map[string]string{
		"session":         strconv.FormatInt(int64(id), 10),
		logging.FieldPath: path,
		"kind":            kind.String(),
	})
	return id
}

// Stop removes the session and signals it without waiting. Unknown or
// already stopped ids are ignored.
func (t *Tailor) Stop(id SessionID) {
	removed, ok := t.sessions.LoadAndDelete(id)
	if !ok {
		return
	}
	removed.client.Stop()
	t.metrics.IncSessionStopped()
	t.stopping.Store(id, removed.client)
	t.pruneStopping()
	t.logger.Info("session stopped", map[string]string{
		"session": strconv.FormatInt(int64(id), 10),
	})
}

// Done is closed when the session has ended, whether stopped or on its own.
// It returns nil for unknown ids.
func (t *Tailor) Done(id SessionID) <-chan struct{} {
	found, ok := t.sessions.Load(id)
	if !ok {
		return nil
	}
	return found.client.Dead()
}

// Err reports why a registered session ended, worker.ErrStillAlive while it
// runs, or os.ErrNotExist for unknown ids.
func (t *Tailor) Err(id SessionID) error {
	found, ok := t.sessions.Load(id)
	if !ok {
		return os.ErrNotExist
	}
	return found.client.Err()
}

// Sessions lists registered sessions ordered by id.
func (t *Tailor) Sessions() []SessionInfo {
	infos := make([]SessionInfo, 0, t.sessions.Size())
	t.sessions.Range(func(id SessionID, e entry) bool {
		infos = append(infos, SessionInfo{ID: id, Path: e.client.Path(), Kind: e.kind})
		return true
	})
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

func (t *Tailor) Len() int {
	return t.sessions.Size()
}

func (t *Tailor) pruneStopping() {
	t.stopping.Range(func(id SessionID, c session) bool {
		select {
		case <-c.Dead():
			t.stopping.Delete(id)
		default:
		}
		return true
	})
}

// Close stops every remaining session and waits for each to exit, including
// sessions already passed to Stop.
func (t *Tailor) Close() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()

	var stopped []session
	t.stopping.Range(func(id SessionID, _ session) bool {
		if c, ok := t.stopping.LoadAndDelete(id); ok {
			stopped = append(stopped, c)
		}
		return true
	})
	t.sessions.Range(func(id SessionID, _ entry) bool {
		if removed, ok := t.sessions.LoadAndDelete(id); ok {
			removed.client.Stop()
			t.metrics.IncSessionStopped()
			stopped = append(stopped, removed.client)
		}
		return true
	})
	for _, c := range stopped {
		if err := c.Shutdown(); err != nil {
			t.logger.Warn("session ended with error", map[string]string{
				logging.FieldPath:  c.Path(),
				logging.FieldError: err.Error(),
			})
		}
	}
}
