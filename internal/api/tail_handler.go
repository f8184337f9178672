package api

import (
	"net/http"
	"strings"

	"github.com/adevaykin/tailor/internal/logging"
	"github.com/adevaykin/tailor/internal/stream"
	"github.com/adevaykin/tailor/internal/watcher"

	"github.com/gorilla/websocket"
)

// TailFrame is one JSON message on /ws/tail. Type is "new_file" or
// "new_lines"; Replay marks frames rebuilt from the replay window.
type TailFrame struct {
	Type   string   `json:"type"`
	Path   string   `json:"path,omitempty"`
	Lines  []string `json:"lines,omitempty"`
	Replay bool     `json:"replay,omitempty"`
}

// TailHandler streams a path over a websocket: GET /ws/tail?path=...
type TailHandler struct {
	Feeds          *stream.Feeds
	Logger         *logging.Logger
	AuthToken      string
	AllowedOrigins []string
}

func (h *TailHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !requireWSToken(w, r, h.AuthToken, h.Logger) {
		return
	}
	path := strings.TrimSpace(r.URL.Query().Get("path"))
	if path == "" {
		failWS(w, r, nil, h.Logger, wsFailure{
			Status: http.StatusBadRequest,
			Reason: "path is required",
		})
		return
	}
	if h.Feeds == nil {
		failWS(w, r, nil, h.Logger, wsFailure{
			Status: http.StatusServiceUnavailable,
			Reason: "tail stream unavailable",
		})
		return
	}

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

	snapshot, output, cancel, err := h.Feeds.Subscribe(path)
	if err != nil {
		failWS(w, r, conn, h.Logger, wsFailure{
			Status: http.StatusServiceUnavailable,
			Reason: "tail stream unavailable",
			Err:    err,
			Notify: true,
		})
		return
	}
	defer cancel()

	writer, err := startWSWriteLoop(wsStreamConfig[watcher.Message]{
		Conn:   conn,
		Output: output,
		PreWrite: func(conn *websocket.Conn) error {
			return writeTailSnapshot(conn, snapshot)
		},
		BuildPayload: func(message watcher.Message) (any, bool) {
			return frameFor(message, false), true
		},
		OnClosed: func(conn *websocket.Conn) {
			closeNormally(conn, "session ended")
		},
	})
	if err != nil {
		return
	}
	defer writer.Stop()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func frameFor(message watcher.Message, replay bool) TailFrame {
	return TailFrame{
		Type:   message.Kind.String(),
		Path:   message.Path,
		Lines:  message.Lines,
		Replay: replay,
	}
}

func writeTailSnapshot(conn *websocket.Conn, snapshot stream.Snapshot) error {
	if snapshot.File != "" {
		if err := writeJSONFrame(conn, frameFor(watcher.NewFile(snapshot.File), true), wsWriteTimeout); err != nil {
			return err
		}
	}
	if len(snapshot.Lines) == 0 {
		return nil
	}
	return writeJSONFrame(conn, frameFor(watcher.NewLines(snapshot.Lines), true), wsWriteTimeout)
}
