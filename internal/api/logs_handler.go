package api

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/adevaykin/tailor/internal/logging"

	"github.com/gorilla/websocket"
)

// LogsHandler streams the process's own log entries: GET /ws/logs?level=...
// Clients may send {"level":"warning"} to change the filter mid-stream.
type LogsHandler struct {
	Logger         *logging.Logger
	AuthToken      string
	AllowedOrigins []string
}

type logFilterMessage struct {
	Level string `json:"level"`
}

type levelFilter struct {
	mu    sync.RWMutex
	level logging.Level
}

func (f *levelFilter) Get() logging.Level {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.level
}

func (f *levelFilter) Set(level logging.Level) {
	f.mu.Lock()
	f.level = level
	f.mu.Unlock()
}

func (h *LogsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !requireWSToken(w, r, h.AuthToken, h.Logger) {
		return
	}

	filter := &levelFilter{}
	if rawLevel := r.URL.Query().Get("level"); rawLevel != "" {
		if level, ok := logging.ParseLevel(rawLevel); ok {
			filter.Set(level)
		}
	}

	output, cancel := h.Logger.Subscribe()
	if output == nil {
		failWS(w, r, nil, h.Logger, wsFailure{
			Status: http.StatusServiceUnavailable,
			Reason: "log stream unavailable",
		})
		return
	}
	defer cancel()

	conn, err := upgradeWebSocket(w, r, h.AllowedOrigins)
	if err != nil {
		logWSFailure(h.Logger, r, wsFailure{
			Status: http.StatusBadRequest,
			Reason: "websocket upgrade failed",
			Err:    err,
		})
		return
	}
	defer conn.Close()

	snapshot := h.Logger.Buffer().List()
	writer, err := startWSWriteLoop(wsStreamConfig[logging.LogEntry]{
		Conn:   conn,
		Output: output,
		PreWrite: func(conn *websocket.Conn) error {
			return writeLogSnapshot(conn, snapshot, filter.Get())
		},
		BuildPayload: func(entry logging.LogEntry) (any, bool) {
			minLevel := filter.Get()
			if minLevel != "" && !logging.LevelAtLeast(entry.Level, minLevel) {
				return nil, false
			}
			return entry, true
		},
	})
	if err != nil {
		failWS(w, r, conn, h.Logger, wsFailure{
			Status: http.StatusInternalServerError,
			Reason: "log stream unavailable",
			Err:    err,
			Notify: true,
		})
		return
	}
	defer writer.Stop()

	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		var payload logFilterMessage
		if err := json.Unmarshal(msg, &payload); err != nil {
			continue
		}
		level, ok := logging.ParseLevel(payload.Level)
		if !ok {
			filter.Set("")
			continue
		}
		filter.Set(level)
	}
}

func writeLogSnapshot(conn *websocket.Conn, entries []logging.LogEntry, minLevel logging.Level) error {
	for _, entry := range entries {
		if minLevel != "" && !logging.LevelAtLeast(entry.Level, minLevel) {
			continue
		}
		if err := writeJSONFrame(conn, entry, wsWriteTimeout); err != nil {
			return err
		}
	}
	return nil
}
