// Package bridge exposes the tailor engine through a flat, handle-based API
// suited to embedding: integer session ids, numeric message kinds and a single
// callback per instance.
package bridge

import (
	"errors"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/adevaykin/tailor/internal/logging"
	"github.com/adevaykin/tailor/internal/tailor"
	"github.com/adevaykin/tailor/internal/watcher"
	"github.com/adevaykin/tailor/internal/worker"
)

type Kind uint32

const (
	NewFileStarted Kind = 0
	NewLinesAdded  Kind = 1
)

const InvalidSessionID int32 = -1

var ErrNotInitialized = errors.New("bridge: not initialized")

// Callback receives every message of every session. For NewFileStarted the
// single element of lines is the new file's path. Calls for different
// sessions may run concurrently.
type Callback func(sessionID int32, kind Kind, lines []string)

// Bridge owns a Tailor and one dispatch worker per session.
type Bridge struct {
	mu       sync.RWMutex
	tailor   *tailor.Tailor
	callback Callback
	pumps    map[int32]*pump
	logger   *logging.Logger
}

// pump dispatches one session's messages. busy is set while it runs the
// callback.
type pump struct {
	worker *worker.Worker
	busy   atomic.Bool
}

// Init creates an instance. Release it with Destroy.
func Init(options tailor.Options) *Bridge {
	logger := logging.OrDiscard(options.Logger).Named("bridge")
	logger.Info("initializing", nil)
	return &Bridge{
		tailor: tailor.New(options),
		pumps:  make(map[int32]*pump),
		logger: logger,
	}
}

// SetCallback replaces the callback. Messages arriving while none is set are
// dropped.
func (b *Bridge) SetCallback(callback Callback) {
	b.mu.Lock()
	b.callback = callback
	b.mu.Unlock()
}

// WatchPath starts a session and returns its id, or InvalidSessionID when the
// path is empty or the instance was destroyed.
func (b *Bridge) WatchPath(path string) int32 {
	if path == "" {
		b.logger.Warn("watch requested for empty path", nil)
		return InvalidSessionID
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.tailor == nil {
		return InvalidSessionID
	}

	messages := make(chan watcher.Message)
	sessionID := b.tailor.Watch(path, messages)
	if sessionID == tailor.NoSession {
		return InvalidSessionID
	}
	id := int32(sessionID)
	done := b.tailor.Done(sessionID)
	p := &pump{}
	p.worker = worker.Start("bridge:"+strconv.Itoa(int(id)), func(dying <-chan struct{}) error {
		for {
			select {
			case <-dying:
				return worker.ErrStopped
			case <-done:
				return nil
			case message := <-messages:
				b.dispatch(p, id, message)
			}
		}
	})
	b.pumps[id] = p
	return id
}

// StopWatch stops a session. It reports false for unknown ids.
func (b *Bridge) StopWatch(id int32) bool {
	b.mu.Lock()
	p, ok := b.pumps[id]
	delete(b.pumps, id)
	t := b.tailor
	b.mu.Unlock()
	if !ok || t == nil {
		return false
	}

	t.Stop(tailor.SessionID(id))
	p.worker.Stop()
	return true
}

// Destroy stops every session and waits for them and their dispatch workers
// to exit. No callback starts after it returns. A callback that is running
// when Destroy is called, including the one calling it, is not waited for;
// its worker exits as soon as it returns.
func (b *Bridge) Destroy() error {
	b.mu.Lock()
	t := b.tailor
	pumps := b.pumps
	b.tailor = nil
	b.pumps = nil
	b.callback = nil
	b.mu.Unlock()
	if t == nil {
		return ErrNotInitialized
	}

	b.logger.Info("destroying", map[string]string{"sessions": strconv.Itoa(len(pumps))})
	t.Close()
	var errs []error
	for _, p := range pumps {
		if p.busy.Load() {
			p.worker.Stop()
			continue
		}
		errs = append(errs, p.worker.Shutdown())
	}
	return errors.Join(errs...)
}

func (b *Bridge) dispatch(p *pump, id int32, message watcher.Message) {
	b.mu.RLock()
	callback := b.callback
	if callback != nil {
		p.busy.Store(true)
	}
	b.mu.RUnlock()
	if callback == nil {
		return
	}
	defer p.busy.Store(false)

	switch message.Kind {
	case watcher.MessageNewFile:
		callback(id, NewFileStarted, []string{message.Path})
	case watcher.MessageNewLines:
		callback(id, NewLinesAdded, message.Lines)
	}
}
