package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/adevaykin/tailor/internal/config"
	"github.com/adevaykin/tailor/internal/metrics"

	"github.com/gorilla/websocket"
)

func TestServeAppStreamsTail(t *testing.T) {
	settings := config.Defaults()
	settings.Poll.ActiveInterval = 10 * time.Millisecond
	settings.Poll.StandbyInterval = 50 * time.Millisecond
	app := newServeApp(settings, nil, &metrics.Registry{})
	t.Cleanup(app.Close)

	srv := httptest.NewServer(app.handler)
	t.Cleanup(srv.Close)

	path := filepath.Join(t.TempDir(), "app.log")
	if err := os.WriteFile(path, []byte("ERROR boom\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/tail?path=" + url.QueryEscape(path)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var frame map[string]any
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read websocket: %v", err)
	}
	lines, _ := frame["lines"].([]any)
	if frame["type"] != "new_lines" || len(lines) != 1 || lines[0] != "ERROR boom" {
		t.Fatalf("unexpected frame %v", frame)
	}
}

func TestServeAppStatus(t *testing.T) {
	app := newServeApp(config.Defaults(), nil, &metrics.Registry{})
	t.Cleanup(app.Close)

	recorder := httptest.NewRecorder()
	app.handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := payload["sessions"]; !ok {
		t.Fatalf("expected sessions in status, got %v", payload)
	}
}

func TestRunServeStopsOnSignal(t *testing.T) {
	env := map[string]string{
		"TAILOR_SERVE_ADDR": "127.0.0.1:0",
		"TAILOR_LOG_LEVEL":  "error",
	}
	deps := newTestDeps(env)
	deps.signals <- os.Interrupt

	done := make(chan int, 1)
	go func() {
		done <- runServe(nil, deps.commandDeps)
	}()
	select {
	case code := <-done:
		if code != 0 {
			t.Fatalf("expected exit 0, got %d (stderr %q)", code, deps.stderr.String())
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("serve did not stop after signal")
	}
}

func TestRunServeRejectsArgs(t *testing.T) {
	deps := newTestDeps(nil)
	if code := runServe([]string{"extra"}, deps.commandDeps); code != 2 {
		t.Fatalf("expected exit 2, got %d", code)
	}
}

func TestServerRunnerStopsOnSignal(t *testing.T) {
	runner := &ServerRunner{ShutdownTimeout: 50 * time.Millisecond}
	stopCtx, stopCancel := context.WithCancel(context.Background())
	stopCancel()

	serveDone := make(chan struct{})
	var shutdownCalls int32
	server := ManagedServer{
		Name: "http",
		Serve: func() error {
			<-serveDone
			return http.ErrServerClosed
		},
		Shutdown: func(ctx context.Context) error {
			atomic.AddInt32(&shutdownCalls, 1)
			close(serveDone)
			return nil
		},
	}

	if err := runner.Run(stopCtx, server); err != nil {
		t.Fatalf("expected no server error, got %v", err)
	}
	if atomic.LoadInt32(&shutdownCalls) != 1 {
		t.Fatalf("expected shutdown to be called once")
	}
}

func TestServerRunnerReturnsServerError(t *testing.T) {
	runner := &ServerRunner{ShutdownTimeout: 50 * time.Millisecond}
	var shutdownCalls int32
	server := ManagedServer{
		Name:  "http",
		Serve: func() error { return errors.New("boom") },
		Shutdown: func(ctx context.Context) error {
			atomic.AddInt32(&shutdownCalls, 1)
			return nil
		},
	}

	serverErr := runner.Run(context.Background(), server)
	if serverErr == nil || serverErr.err == nil || serverErr.err.Error() != "boom" {
		t.Fatalf("expected boom error, got %v", serverErr)
	}
	if serverErr.name != "http" {
		t.Fatalf("expected server name http, got %q", serverErr.name)
	}
	if atomic.LoadInt32(&shutdownCalls) != 1 {
		t.Fatalf("expected shutdown to be called once")
	}
}

func TestShutdownCoordinatorRunsInOrderOnce(t *testing.T) {
	coordinator := newShutdownCoordinator(nil)
	order := []string{}
	coordinator.Add("feeds", func(context.Context) error {
		order = append(order, "feeds")
		return nil
	})
	coordinator.Add("sessions", func(context.Context) error {
		order = append(order, "sessions")
		return errors.New("fail")
	})
	coordinator.Add("log", func(context.Context) error {
		order = append(order, "log")
		return nil
	})

	if err := coordinator.Run(context.Background()); err == nil {
		t.Fatalf("expected shutdown error")
	}
	if err := coordinator.Run(context.Background()); err != nil {
		t.Fatalf("expected second run to be a no-op, got %v", err)
	}
	expected := []string{"feeds", "sessions", "log"}
	if !reflect.DeepEqual(order, expected) {
		t.Fatalf("expected order %v, got %v", expected, order)
	}
}

func TestWatchShutdownSignalsCancelsOnce(t *testing.T) {
	signals := make(chan os.Signal, 2)
	var cancels int32
	stop := watchShutdownSignals(nil, func() { atomic.AddInt32(&cancels, 1) }, signals)

	signals <- os.Interrupt
	signals <- os.Interrupt
	waitFor(t, func() bool { return len(signals) == 0 }, time.Second)
	stop()
	stop()

	if got := atomic.LoadInt32(&cancels); got != 1 {
		t.Fatalf("expected a single cancel, got %d", got)
	}
}
