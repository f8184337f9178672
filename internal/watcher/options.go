package watcher

import (
	"errors"
	"time"

	"github.com/adevaykin/tailor/internal/logging"
	"github.com/adevaykin/tailor/internal/metrics"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
)

// Polling defaults.
const (
	// DefaultActiveInterval is the file poll interval right after new lines.
	DefaultActiveInterval = 100 * time.Millisecond
	// DefaultStandbyInterval caps the file poll interval while idle.
	DefaultStandbyInterval = 2 * time.Second
	// DefaultDirInterval is the fixed directory rescan interval.
	DefaultDirInterval = time.Second
)

// ErrNilSink is returned by Run when the watcher has nowhere to send.
var ErrNilSink = errors.New("watcher: nil sink")

// Options controls both watchers. Zero values fall back to the defaults above,
// the OS filesystem, a discard logger and metrics.Default.
type Options struct {
	Logger  *logging.Logger
	Fs      afero.Fs
	Metrics *metrics.Registry

	ActiveInterval  time.Duration
	StandbyInterval time.Duration
	DirInterval     time.Duration
}

func (options Options) withDefaults() Options {
	options.Logger = logging.OrDiscard(options.Logger)
	if options.Fs == nil {
		options.Fs = afero.NewOsFs()
	}
	if options.Metrics == nil {
		options.Metrics = metrics.Default
	}
	if options.ActiveInterval <= 0 {
		options.ActiveInterval = DefaultActiveInterval
	}
	if options.StandbyInterval <= 0 {
		options.StandbyInterval = DefaultStandbyInterval
	}
	if options.DirInterval <= 0 {
		options.DirInterval = DefaultDirInterval
	}
	return options
}

// newNotifier returns an fsnotify watcher already subscribed to path.
func newNotifier(path string) (*fsnotify.Watcher, error) {
	notifier, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := notifier.Add(path); err != nil {
		_ = notifier.Close()
		return nil, err
	}
	return notifier, nil
}
