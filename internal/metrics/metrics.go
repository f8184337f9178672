// Package metrics keeps process-wide tailing counters and renders them in the
// Prometheus text format.
package metrics

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

type Registry struct {
	sessionsStarted atomic.Int64
	sessionsStopped atomic.Int64
	subscribers     atomic.Int64
	fileSwitches    atomic.Int64
	files           sync.Map
}

type fileStats struct {
	lines       atomic.Int64
	batches     atomic.Int64
	truncations atomic.Int64
	readErrors  atomic.Int64
}

var Default = &Registry{}

func (r *Registry) IncSessionStarted() {
	if r == nil {
		return
	}
	r.sessionsStarted.Add(1)
}

func (r *Registry) IncSessionStopped() {
	if r == nil {
		return
	}
	r.sessionsStopped.Add(1)
}

func (r *Registry) IncFileSwitch() {
	if r == nil {
		return
	}
	r.fileSwitches.Add(1)
}

// AddSubscribers adjusts the live stream subscriber gauge by delta.
func (r *Registry) AddSubscribers(delta int64) {
	if r == nil {
		return
	}
	r.subscribers.Add(delta)
}

// RecordBatch counts one delivered batch of lines for path.
func (r *Registry) RecordBatch(path string, lines int) {
	if r == nil {
		return
	}
	stats := r.fileStats(path)
	stats.batches.Add(1)
	stats.lines.Add(int64(lines))
}

func (r *Registry) RecordTruncation(path string) {
	if r == nil {
		return
	}
	r.fileStats(path).truncations.Add(1)
}

func (r *Registry) RecordReadError(path string) {
	if r == nil {
		return
	}
	r.fileStats(path).readErrors.Add(1)
}

// Snapshot is a point-in-time copy used by status endpoints and tests.
type Snapshot struct {
	SessionsStarted int64 `json:"sessions_started"`
	SessionsStopped int64 `json:"sessions_stopped"`
	Subscribers     int64 `json:"subscribers"`
	FileSwitches    int64 `json:"file_switches"`
	Lines           int64 `json:"lines"`
}

func (r *Registry) Snapshot() Snapshot {
	if r == nil {
		return Snapshot{}
	}
	snapshot := Snapshot{
		SessionsStarted: r.sessionsStarted.Load(),
		SessionsStopped: r.sessionsStopped.Load(),
		Subscribers:     r.subscribers.Load(),
		FileSwitches:    r.fileSwitches.Load(),
	}
	for _, path := range r.paths() {
		snapshot.Lines += r.fileStats(path).lines.Load()
	}
	return snapshot
}

// Lines returns the number of lines delivered for path.
func (r *Registry) Lines(path string) int64 {
	if r == nil {
		return 0
	}
	value, ok := r.files.Load(path)
	if !ok {
		return 0
	}
	return value.(*fileStats).lines.Load()
}

func (r *Registry) WritePrometheus(writer io.Writer) error {
	if r == nil {
		return nil
	}

	writeCounter(writer, "tailor_sessions_started_total", "Total watch sessions started", r.sessionsStarted.Load())
	writeCounter(writer, "tailor_sessions_stopped_total", "Total watch sessions stopped", r.sessionsStopped.Load())
	writeCounter(writer, "tailor_file_switches_total", "Total directory selection changes", r.fileSwitches.Load())
	writeHelp(writer, "tailor_stream_subscribers", "Live stream subscribers")
	fmt.Fprintln(writer, "# TYPE tailor_stream_subscribers gauge")
	fmt.Fprintf(writer, "tailor_stream_subscribers %d\n", r.subscribers.Load())

	paths := r.paths()
	sort.Strings(paths)

	writeHelp(writer, "tailor_lines_total", "Lines delivered per file")
	fmt.Fprintln(writer, "# TYPE tailor_lines_total counter")
	writeHelp(writer, "tailor_batches_total", "Line batches delivered per file")
	fmt.Fprintln(writer, "# TYPE tailor_batches_total counter")
	writeHelp(writer, "tailor_truncations_total", "Detected truncations per file")
	fmt.Fprintln(writer, "# TYPE tailor_truncations_total counter")
	writeHelp(writer, "tailor_read_errors_total", "Failed read cycles per file")
	fmt.Fprintln(writer, "# TYPE tailor_read_errors_total counter")

	for _, path := range paths {
		stats := r.fileStats(path)
		label := formatLabel(path)
		fmt.Fprintf(writer, "tailor_lines_total{file=%s} %d\n", label, stats.lines.Load())
		fmt.Fprintf(writer, "tailor_batches_total{file=%s} %d\n", label, stats.batches.Load())
		fmt.Fprintf(writer, "tailor_truncations_total{file=%s} %d\n", label, stats.truncations.Load())
		fmt.Fprintf(writer, "tailor_read_errors_total{file=%s} %d\n", label, stats.readErrors.Load())
	}
	return nil
}

func (r *Registry) fileStats(path string) *fileStats {
	value, _ := r.files.LoadOrStore(path, &fileStats{})
	return value.(*fileStats)
}

func (r *Registry) paths() []string {
	var paths []string
	r.files.Range(func(key, _ any) bool {
		if path, ok := key.(string); ok {
			paths = append(paths, path)
		}
		return true
	})
	return paths
}

func writeHelp(writer io.Writer, metric, help string) {
	fmt.Fprintf(writer, "# HELP %s %s\n", metric, help)
}

func writeCounter(writer io.Writer, metric, help string, value int64) {
	writeHelp(writer, metric, help)
	fmt.Fprintf(writer, "# TYPE %s counter\n", metric)
	fmt.Fprintf(writer, "%s %d\n", metric, value)
}

func formatLabel(value string) string {
	escaped := strings.ReplaceAll(value, "\\", "\\\\")
	escaped = strings.ReplaceAll(escaped, "\"", "\\\"")
	return fmt.Sprintf("\"%s\"", escaped)
}
