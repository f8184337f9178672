package client

import (
	"github.com/adevaykin/tailor/internal/watcher"
	"github.com/adevaykin/tailor/internal/worker"
)

// FileWatchClient runs a FileWatch whose messages go straight to the owner's
// sink, so forwarding is verbatim and ordered.
type FileWatchClient struct {
	path   string
	worker *worker.Worker
}

func StartFile(path string, sink chan<- watcher.Message, options watcher.Options) *FileWatchClient {
	fw := watcher.NewFileWatch(path, sink, options)
	return &FileWatchClient{
		path:   path,
		worker: worker.Start("file:"+path, fw.Run),
	}
}

func (c *FileWatchClient) Path() string { return c.path }

// Stop signals the watcher without waiting.
func (c *FileWatchClient) Stop() { c.worker.Stop() }

// Shutdown signals the watcher and waits for it to exit.
func (c *FileWatchClient) Shutdown() error { return c.worker.Shutdown() }

func (c *FileWatchClient) Wait() error { return c.worker.Wait() }

func (c *FileWatchClient) Dead() <-chan struct{} { return c.worker.Dead() }

// Err reports why the session ended, nil for a clean end, or
// worker.ErrStillAlive while it runs.
func (c *FileWatchClient) Err() error { return c.worker.Err() }
