package watcher

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/adevaykin/tailor/internal/logging"
	"github.com/adevaykin/tailor/internal/metrics"
	"github.com/adevaykin/tailor/internal/worker"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
)

// DirWatch reports the full path of the newest eligible file in a directory
// each time the selection changes. It never reads file content.
type DirWatch struct {
	path    string
	sink    chan<- string
	fs      afero.Fs
	logger  *logging.Logger
	metrics *metrics.Registry
	cadence *Cadence

	lastReported string
}

// NewDirWatch reports each newly selected file of path on sink. Start it
// with worker.Start(name, dw.Run).
func NewDirWatch(path string, sink chan<- string, options Options) *DirWatch {
	options = options.withDefaults()
	return &DirWatch{
		path:    filepath.Clean(path),
		sink:    sink,
		fs:      options.Fs,
		logger:  options.Logger.Named("dirwatch").With(map[string]string{logging.FieldPath: path}),
		metrics: options.Metrics,
		cadence: NewCadence(options.DirInterval, options.DirInterval),
	}
}

func (dw *DirWatch) Path() string {
	return dw.path
}

// Run is a worker.Func. It returns nil when the directory itself is removed
// or renamed, worker.ErrStopped when dying closes or a send is interrupted,
// and the setup error when the directory cannot be subscribed to.
func (dw *DirWatch) Run(dying <-chan struct{}) error {
	if dw.sink == nil {
		return ErrNilSink
	}
	dw.logger.Info("watching directory", nil)

	if err := dw.rescan(dying); err != nil {
		return err
	}

	notifier, err := newNotifier(dw.path)
	if err != nil {
		dw.logger.Error("cannot subscribe to directory changes", map[string]string{logging.FieldError: err.Error()})
		return fmt.Errorf("watch %s: %w", dw.path, err)
	}
	defer notifier.Close()

	ticker := time.NewTicker(dw.cadence.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-dying:
			return worker.ErrStopped
		case event, ok := <-notifier.Events:
			if !ok {
				return worker.ErrStopped
			}
			if filepath.Clean(event.Name) == dw.path && (event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)) {
				dw.logger.Info("directory went away", nil)
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
		case err, ok := <-notifier.Errors:
			if !ok {
				return worker.ErrStopped
			}
			dw.logger.Warn("directory notification error", map[string]string{logging.FieldError: err.Error()})
			continue
		case <-ticker.C:
		}

		if err := dw.rescan(dying); err != nil {
			return err
		}
	}
}

// rescan forwards the current selection when its name differs from the last
// one reported.
func (dw *DirWatch) rescan(dying <-chan struct{}) error {
	path, ok, err := LatestFile(dw.fs, dw.path)
	if err != nil {
		dw.logger.Warn("cannot list directory", map[string]string{logging.FieldError: err.Error()})
		return nil
	}
	if !ok {
		return nil
	}
	name := filepath.Base(path)
	if name == dw.lastReported {
		return nil
	}
	dw.logger.Debug("selected file", map[string]string{"file": name})
	if err := worker.Send(dying, dw.sink, path); err != nil {
		return err
	}
	dw.lastReported = name
	dw.metrics.IncFileSwitch()
	return nil
}
