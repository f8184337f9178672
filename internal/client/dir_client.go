package client

import (
	"sync"
	"sync/atomic"

	"github.com/adevaykin/tailor/internal/logging"
	"github.com/adevaykin/tailor/internal/watcher"
	"github.com/adevaykin/tailor/internal/worker"
)

// DirWatchClient tails whichever file its directory watcher currently selects.
// On every switch the owner receives NewFile(path) before the first lines of
// the new file.
type DirWatchClient struct {
	path    string
	sink    chan<- watcher.Message
	options watcher.Options
	logger  *logging.Logger
	worker  *worker.Worker

	state atomic.Int32

	fileMu    sync.Mutex
	fileState FileState
	filePath  string
}

func StartDir(path string, sink chan<- watcher.Message, options watcher.Options) *DirWatchClient {
	c := &DirWatchClient{
		path:    path,
		sink:    sink,
		options: options,
		logger:  logging.OrDiscard(options.Logger).Named("dirclient").With(map[string]string{logging.FieldPath: path}),
	}
	c.state.Store(int32(StateIdle))
	c.worker = worker.Start("dir:"+path, c.run)
	return c
}

func (c *DirWatchClient) Path() string { return c.path }

func (c *DirWatchClient) State() State {
	return State(c.state.Load())
}

// File returns the nested watcher state and the file it follows.
func (c *DirWatchClient) File() (FileState, string) {
	c.fileMu.Lock()
	defer c.fileMu.Unlock()
	return c.fileState, c.filePath
}

// Stop signals the client without waiting.
func (c *DirWatchClient) Stop() {
	c.state.CompareAndSwap(int32(StateRunning), int32(StateStopRequested))
	c.worker.Stop()
}

// Shutdown signals the client and waits until it and both nested watchers
// have exited.
func (c *DirWatchClient) Shutdown() error {
	c.Stop()
	return c.worker.Wait()
}

func (c *DirWatchClient) Wait() error { return c.worker.Wait() }

func (c *DirWatchClient) Dead() <-chan struct{} { return c.worker.Dead() }

func (c *DirWatchClient) Err() error { return c.worker.Err() }

func (c *DirWatchClient) setFile(state FileState, path string) {
	c.fileMu.Lock()
	c.fileState = state
	c.filePath = path
	c.fileMu.Unlock()
}

func (c *DirWatchClient) run(dying <-chan struct{}) error {
	c.state.CompareAndSwap(int32(StateIdle), int32(StateRunning))
	defer c.state.Store(int32(StateTerminated))

	paths := make(chan string)
	messages := make(chan watcher.Message)
	dir := worker.Start("dirwatch:"+c.path, watcher.NewDirWatch(c.path, paths, c.options).Run)

	var nested *worker.Worker
	defer func() {
		if err := nested.Shutdown(); err != nil {
			c.logger.Warn("file watcher ended with error", map[string]string{logging.FieldError: err.Error()})
		}
		if err := dir.Shutdown(); err != nil {
			c.logger.Warn("directory watcher ended with error", map[string]string{logging.FieldError: err.Error()})
		}
		c.setFile(FileNone, "")
	}()

	for {
		var nestedDead <-chan struct{}
		if nested != nil {
			nestedDead = nested.Dead()
		}

		select {
		case <-dying:
			c.state.Store(int32(StateStopRequested))
			return worker.ErrStopped

		case path := <-paths:
			_, previous := c.File()
			c.setFile(FileSwitching, previous)
			if err := nested.Shutdown(); err != nil {
				c.logger.Warn("file watcher ended with error", map[string]string{logging.FieldError: err.Error()})
			}
			nested = nil
			c.logger.Info("switching file", map[string]string{"from": previous, "to": path})

			if err := worker.Send(dying, c.sink, watcher.NewFile(path)); err != nil {
				c.state.Store(int32(StateStopRequested))
				return err
			}
			nested = worker.Start("file:"+path, watcher.NewFileWatch(path, messages, c.options).Run)
			c.setFile(FileActive, path)

		case message := <-messages:
			if err := worker.Send(dying, c.sink, message); err != nil {
				c.state.Store(int32(StateStopRequested))
				return err
			}

		case <-nestedDead:
			err := nested.Err()
			_, current := c.File()
			fields := map[string]string{"file": current}
			if err != nil {
				fields[logging.FieldError] = err.Error()
			}
			c.logger.Info("file watcher ended, closing session", fields)
			return err

		case <-dir.Dead():
			err := dir.Err()
			fields := map[string]string{}
			if err != nil {
				fields[logging.FieldError] = err.Error()
			}
			c.logger.Info("directory watcher ended, closing session", fields)
			return err
		}
	}
}
