// Package worker runs long-lived background loops with an owned cancellation
// token and a shutdown that waits for the loop to confirm its exit.
package worker

import (
	"errors"

	"gopkg.in/tomb.v1"
)

// ErrStopped is returned by loops that end because they were asked to.
// Worker.Err reports it as nil.
var ErrStopped = errors.New("worker stopped")

// ErrStillAlive is what Err reports for a running worker.
var ErrStillAlive = tomb.ErrStillAlive

// Func is the body of a worker. It must return once dying is closed.
type Func func(dying <-chan struct{}) error

// Worker owns one goroutine. The zero value is not usable; call Start.
type Worker struct {
	name string
	tomb tomb.Tomb
}

// Start runs fn in a new goroutine.
func Start(name string, fn Func) *Worker {
	w := &Worker{name: name}
	dying := w.tomb.Dying()
	go func() {
		defer w.tomb.Done()
		err := fn(dying)
		if errors.Is(err, ErrStopped) {
			err = nil
		}
		w.tomb.Kill(err)
	}()
	return w
}

func (w *Worker) Name() string {
	if w == nil {
		return ""
	}
	return w.name
}

// Stop signals the worker without waiting. Safe to call more than once.
func (w *Worker) Stop() {
	if w == nil {
		return
	}
	w.tomb.Kill(nil)
}

// Shutdown signals the worker and blocks until it has exited.
func (w *Worker) Shutdown() error {
	if w == nil {
		return nil
	}
	w.tomb.Kill(nil)
	return w.tomb.Wait()
}

// Wait blocks until the worker exits on its own or after Stop.
func (w *Worker) Wait() error {
	if w == nil {
		return nil
	}
	return w.tomb.Wait()
}

// Dying is closed once Stop was called or the loop returned.
func (w *Worker) Dying() <-chan struct{} {
	return w.tomb.Dying()
}

// Dead is closed once the loop has returned.
func (w *Worker) Dead() <-chan struct{} {
	return w.tomb.Dead()
}

// Err returns the reason the worker died, nil for a clean exit, or
// ErrStillAlive while it is running.
func (w *Worker) Err() error {
	if w == nil {
		return nil
	}
	return w.tomb.Err()
}

// Alive reports whether the loop is still running.
func (w *Worker) Alive() bool {
	if w == nil {
		return false
	}
	select {
	case <-w.tomb.Dead():
		return false
	default:
		return true
	}
}
