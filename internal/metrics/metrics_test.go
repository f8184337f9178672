package metrics

import (
	"bytes"
	"strings"
	"testing"
)

func TestWritePrometheus(t *testing.T) {
	registry := &Registry{}
	registry.IncSessionStarted()
	registry.RecordBatch("/var/log/app.log", 3)
	registry.RecordBatch("/var/log/app.log", 2)
	registry.RecordTruncation("/var/log/app.log")
	registry.AddSubscribers(2)
	registry.AddSubscribers(-1)

	var out bytes.Buffer
	if err := registry.WritePrometheus(&out); err != nil {
		t.Fatalf("write: %v", err)
	}
	text := out.String()
	for _, want := range []string{
		"tailor_sessions_started_total 1",
		`tailor_lines_total{file="/var/log/app.log"} 5`,
		`tailor_batches_total{file="/var/log/app.log"} 2`,
		`tailor_truncations_total{file="/var/log/app.log"} 1`,
		"tailor_stream_subscribers 1",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %q in output:\n%s", want, text)
		}
	}
}

func TestSnapshot(t *testing.T) {
	registry := &Registry{}
	registry.RecordBatch("a", 1)
	registry.RecordBatch("b", 4)
	registry.IncFileSwitch()

	snapshot := registry.Snapshot()
	if snapshot.Lines != 5 || snapshot.FileSwitches != 1 {
		t.Fatalf("unexpected snapshot %+v", snapshot)
	}
	if registry.Lines("b") != 4 || registry.Lines("missing") != 0 {
		t.Fatalf("unexpected per-file lines")
	}
}

func TestNilRegistry(t *testing.T) {
	var registry *Registry
	registry.IncSessionStarted()
	registry.RecordBatch("a", 1)
	if registry.Snapshot() != (Snapshot{}) {
		t.Fatal("expected empty snapshot")
	}
}

func TestFormatLabelEscapes(t *testing.T) {
	if got := formatLabel(`C:\logs\"x".log`); got != `"C:\\logs\\\"x\".log"` {
		t.Fatalf("unexpected label %s", got)
	}
}
