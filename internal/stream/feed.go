// Package stream shares one watch session per path between any number of
// subscribers. Each feed keeps a replay window of recent lines so late
// subscribers start with context instead of an empty view.
package stream

import (
	"errors"
	"sort"
	"strconv"
	"sync"

	"github.com/adevaykin/tailor/internal/buffer"
	"github.com/adevaykin/tailor/internal/fanout"
	"github.com/adevaykin/tailor/internal/fsutil"
	"github.com/adevaykin/tailor/internal/logging"
	"github.com/adevaykin/tailor/internal/metrics"
	"github.com/adevaykin/tailor/internal/tailor"
	"github.com/adevaykin/tailor/internal/watcher"
	"github.com/adevaykin/tailor/internal/worker"
)

const (
	DefaultReplayLines      = 1000
	defaultSubscriberBuffer = 64
)

var ErrClosed = errors.New("stream: feeds closed")

// Snapshot is the replay window handed to a new subscriber: the file the
// session currently follows (empty for single-file sessions before any switch)
// and its most recent lines, oldest first.
type Snapshot struct {
	File  string
	Lines []string
}

type Options struct {
	Logger      *logging.Logger
	Metrics     *metrics.Registry
	ReplayLines int
	// SubscriberBuffer bounds each subscriber channel. A subscriber that falls
	// this far behind misses messages.
	SubscriberBuffer int
}

// Feeds starts sessions on demand and stops them when the last subscriber
// leaves. Safe for concurrent use.
type Feeds struct {
	tailor           *tailor.Tailor
	logger           *logging.Logger
	metrics          *metrics.Registry
	replayLines      int
	subscriberBuffer int

	mu     sync.Mutex
	feeds  map[string]*feed
	closed bool
}

type feed struct {
	path string
	id   tailor.SessionID
	pump *worker.Worker

	// mu orders replay updates against joins so a subscriber sees each
	// message either in its snapshot or on its channel, never both.
	mu     sync.Mutex
	replay *buffer.Ring[string]
	file   string
	hub    *fanout.Hub[watcher.Message]
	ended  bool
}

func NewFeeds(t *tailor.Tailor, options Options) *Feeds {
	replayLines := options.ReplayLines
	if replayLines <= 0 {
		replayLines = DefaultReplayLines
	}
	subscriberBuffer := options.SubscriberBuffer
	if subscriberBuffer <= 0 {
		subscriberBuffer = defaultSubscriberBuffer
	}
	registry := options.Metrics
	if registry == nil {
		registry = metrics.Default
	}
	return &Feeds{
		tailor:           t,
		logger:           logging.OrDiscard(options.Logger).Named("stream"),
		metrics:          registry,
		replayLines:      replayLines,
		subscriberBuffer: subscriberBuffer,
		feeds:            make(map[string]*feed),
	}
}

// Subscribe joins the feed for path, starting a session if none is running.
// Paths are made absolute first, so different spellings share one feed.
// Messages after the snapshot arrive on the returned channel, which is closed
// when the session ends or cancel is called.
func (f *Feeds) Subscribe(path string) (Snapshot, <-chan watcher.Message, func(), error) {
	path, err := fsutil.CleanWatchPath(path)
	if err != nil {
		return Snapshot{}, nil, func() {}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return Snapshot{}, nil, func() {}, ErrClosed
	}

	current, ok := f.feeds[path]
	if !ok {
		current = f.start(path)
		f.feeds[path] = current
	}

	current.mu.Lock()
	snapshot := Snapshot{File: current.file, Lines: current.replay.List()}
	sub := current.hub.Subscribe()
	if !current.ended {
		f.metrics.AddSubscribers(1)
	}
	current.mu.Unlock()

	cancel := func() { f.unsubscribe(current, sub) }
	return snapshot, sub.C, cancel, nil
}

// Paths lists paths with a running feed.
func (f *Feeds) Paths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	paths := make([]string, 0, len(f.feeds))
	for path := range f.feeds {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// Close ends every feed and waits for the dispatch workers. Sessions are
// stopped through the Tailor; the caller still owns Tailor.Close.
func (f *Feeds) Close() {
	f.mu.Lock()
	f.closed = true
	feeds := f.feeds
	f.feeds = make(map[string]*feed)
	f.mu.Unlock()

	for _, current := range feeds {
		f.tailor.Stop(current.id)
		_ = current.pump.Shutdown()
	}
}

// start must be called with f.mu held.
func (f *Feeds) start(path string) *feed {
	messages := make(chan watcher.Message)
	current := &feed{
		path:   path,
		replay: buffer.NewRing[string](f.replayLines),
		hub:    fanout.NewHub[watcher.Message](f.subscriberBuffer),
	}
	current.id = f.tailor.Watch(path, messages)
	done := f.tailor.Done(current.id)
	if done == nil {
		// Tailor already closed; the feed ends right away.
		ended := make(chan struct{})
		close(ended)
		done = ended
	}
	current.pump = worker.Start("feed:"+path, func(dying <-chan struct{}) error {
		defer f.end(current)
		for {
			select {
			case <-dying:
				return worker.ErrStopped
			case <-done:
				return nil
			case message := <-messages:
				current.publish(message)
			}
		}
	})
	f.logger.Info("feed started", map[string]string{
		logging.FieldPath: path,
		"session":         strconv.FormatInt(int64(current.id), 10),
	})
	return current
}

func (current *feed) publish(message watcher.Message) {
	current.mu.Lock()
	defer current.mu.Unlock()

	switch message.Kind {
	case watcher.MessageNewFile:
		current.replay.Reset()
		current.file = message.Path
	case watcher.MessageNewLines:
		current.replay.AddAll(message.Lines)
	}
	current.hub.Publish(message)
}

// end closes every subscriber and forgets the feed so the next subscriber
// starts a fresh session.
func (f *Feeds) end(current *feed) {
	current.mu.Lock()
	current.ended = true
	f.metrics.AddSubscribers(-int64(current.hub.Close()))
	current.mu.Unlock()

	f.mu.Lock()
	if f.feeds[current.path] == current {
		delete(f.feeds, current.path)
	}
	f.mu.Unlock()
	f.tailor.Stop(current.id)
}

func (f *Feeds) unsubscribe(current *feed, sub *fanout.Subscription[watcher.Message]) {
	if !sub.Cancel() {
		return
	}
	f.metrics.AddSubscribers(-1)
	if current.hub.Len() > 0 {
		return
	}

	f.mu.Lock()
	owned := f.feeds[current.path] == current
	if owned {
		// A subscriber may have joined since the check above.
		owned = current.hub.Len() == 0
		if owned {
			delete(f.feeds, current.path)
		}
	}
	f.mu.Unlock()
	if !owned {
		return
	}

	f.tailor.Stop(current.id)
	current.pump.Stop()
	f.logger.Info("feed stopped", map[string]string{logging.FieldPath: current.path})
}
