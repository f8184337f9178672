package watcher

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/adevaykin/tailor/internal/logging"
	"github.com/adevaykin/tailor/internal/metrics"
	"github.com/adevaykin/tailor/internal/worker"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
)

// FileWatch tails one file. Each read cycle emits everything between the
// cursor and the size observed at its start, including an unterminated last
// line.
type FileWatch struct {
	path    string
	sink    chan<- Message
	fs      afero.Fs
	logger  *logging.Logger
	metrics *metrics.Registry
	cadence *Cadence

	fileSize   int64
	readOffset int64
	// restarted is set when the cursor was lost mid-file; the next poll
	// announces the file again before re-reading it from the start.
	restarted bool
}

// NewFileWatch prepares a watch on path; nothing is opened until Run.
func NewFileWatch(path string, sink chan<- Message, options Options) *FileWatch {
	options = options.withDefaults()
	return &FileWatch{
		path:    path,
		sink:    sink,
		fs:      options.Fs,
		logger:  options.Logger.Named("filewatch").With(map[string]string{logging.FieldPath: path}),
		metrics: options.Metrics,
		cadence: NewCadence(options.ActiveInterval, options.StandbyInterval),
	}
}

func (fw *FileWatch) Path() string {
	return fw.path
}

// Run is a worker.Func. It returns nil when the file is removed or renamed,
// worker.ErrStopped when dying closes, and the setup error when the file
// cannot be opened or subscribed to.
func (fw *FileWatch) Run(dying <-chan struct{}) error {
	if fw.sink == nil {
		return ErrNilSink
	}
	fw.logger.Info("watching file", nil)

	if err := fw.inspect(); err != nil {
		fw.logger.Error("cannot open file", map[string]string{logging.FieldError: err.Error()})
		return err
	}
	if err := fw.poll(dying); err != nil {
		return err
	}

	notifier, err := newNotifier(fw.path)
	if err != nil {
		fw.logger.Error("cannot subscribe to file changes", map[string]string{logging.FieldError: err.Error()})
		return fmt.Errorf("watch %s: %w", fw.path, err)
	}
	defer notifier.Close()

	timer := time.NewTimer(fw.cadence.Interval())
	defer timer.Stop()

	for {
		select {
		case <-dying:
			return worker.ErrStopped
		case event, ok := <-notifier.Events:
			if !ok {
				return worker.ErrStopped
			}
			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				fw.logger.Info("file went away", map[string]string{"op": event.Op.String()})
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
		case err, ok := <-notifier.Errors:
			if !ok {
				return worker.ErrStopped
			}
			fw.logger.Warn("file notification error", map[string]string{logging.FieldError: err.Error()})
			continue
		case <-timer.C:
		}

		if err := fw.poll(dying); err != nil {
			return err
		}
		timer.Reset(fw.cadence.Interval())
	}
}

// inspect checks that the file can be opened and records its size.
func (fw *FileWatch) inspect() error {
	file, err := fw.fs.Open(fw.path)
	if err != nil {
		return fmt.Errorf("open %s: %w", fw.path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", fw.path, err)
	}
	fw.fileSize = info.Size()
	return nil
}

// poll runs one read cycle and forwards any lines. The only error it returns
// is worker.ErrStopped from an interrupted send.
func (fw *FileWatch) poll(dying <-chan struct{}) error {
	lines, err := fw.readNew()
	if fw.restarted {
		fw.restarted = false
		if err := worker.Send(dying, fw.sink, NewFile(fw.path)); err != nil {
			return err
		}
	}
	if err != nil {
		fw.logger.Warn("read cycle failed", map[string]string{logging.FieldError: err.Error()})
		fw.metrics.RecordReadError(fw.path)
		fw.cadence.Idle()
		return nil
	}
	if len(lines) == 0 {
		fw.cadence.Idle()
		return nil
	}
	fw.cadence.Active()
	if err := worker.Send(dying, fw.sink, NewLines(lines)); err != nil {
		return err
	}
	fw.metrics.RecordBatch(fw.path, len(lines))
	return nil
}

// readNew returns the lines appended since the last cycle and moves the cursor
// past them. A last line without '\n' is returned as is and the cursor moves
// by its length only.
func (fw *FileWatch) readNew() ([]string, error) {
	file, err := fw.fs.Open(fw.path)
	if err != nil {
		fw.resetCursor()
		return nil, fmt.Errorf("open %s: %w", fw.path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		fw.resetCursor()
		return nil, fmt.Errorf("stat %s: %w", fw.path, err)
	}
	fw.fileSize = info.Size()
	if fw.fileSize < fw.readOffset {
		fw.logger.Info("file truncated, reading from start", map[string]string{
			"offset": fmt.Sprint(fw.readOffset),
			"size":   fmt.Sprint(fw.fileSize),
		})
		fw.metrics.RecordTruncation(fw.path)
		fw.readOffset = 0
	}
	if fw.fileSize == fw.readOffset {
		return nil, nil
	}

	if _, err := file.Seek(fw.readOffset, io.SeekStart); err != nil {
		fw.resetCursor()
		fw.restarted = true
		return nil, fmt.Errorf("seek %s: %w", fw.path, err)
	}

	// Never read past the size observed above so the cursor cannot overtake it.
	reader := bufio.NewReader(io.LimitReader(file, fw.fileSize-fw.readOffset))
	offset := fw.readOffset
	var lines []string
	for {
		raw, err := reader.ReadString('\n')
		if errors.Is(err, io.EOF) {
			if raw != "" {
				offset += int64(len(raw))
				lines = append(lines, trimLineEnding(raw))
			}
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", fw.path, err)
		}
		offset += int64(len(raw))
		lines = append(lines, trimLineEnding(raw))
	}
	fw.readOffset = offset
	return lines, nil
}

func (fw *FileWatch) resetCursor() {
	fw.fileSize = 0
	fw.readOffset = 0
}

func trimLineEnding(raw string) string {
	raw = strings.TrimSuffix(raw, "\n")
	return strings.TrimSuffix(raw, "\r")
}
