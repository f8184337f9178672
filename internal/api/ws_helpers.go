package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/adevaykin/tailor/internal/logging"

	"github.com/gorilla/websocket"
)

const wsReadBufferSize = 1024
const wsWriteBufferSize = 4096
const wsWriteTimeout = 10 * time.Second

type wsStreamConfig[T any] struct {
	Conn         *websocket.Conn
	Output       <-chan T
	BuildPayload func(T) (any, bool)
	WriteTimeout time.Duration
	// PreWrite runs before the loop starts, e.g. to send a replay window.
	PreWrite func(*websocket.Conn) error
	// OnClosed runs when Output is closed by its producer.
	OnClosed func(*websocket.Conn)
}

// wsFailure describes why a stream was refused or aborted.
type wsFailure struct {
	Status    int
	CloseCode int
	Reason    string
	Err       error
	// Notify sends an error frame ahead of the close frame so browser clients,
	// which cannot read close reasons reliably, see the cause.
	Notify bool
}

type errorFrame struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Status    int    `json:"status"`
	CloseCode int    `json:"close_code,omitempty"`
}

func (f wsFailure) normalized() wsFailure {
	if f.Status == 0 {
		f.Status = http.StatusInternalServerError
	}
	f.Reason = strings.TrimSpace(f.Reason)
	if f.Reason == "" {
		f.Reason = http.StatusText(f.Status)
	}
	if f.CloseCode == 0 {
		f.CloseCode = closeCodeForStatus(f.Status)
	}
	return f
}

var errWSNilOutput = errors.New("websocket output channel is nil")

type wsWriteLoop struct {
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func (loop *wsWriteLoop) Stop() {
	if loop == nil {
		return
	}
	loop.stopOnce.Do(func() {
		close(loop.stop)
	})
}

// Done is closed once the loop goroutine has returned.
func (loop *wsWriteLoop) Done() <-chan struct{} {
	return loop.done
}

func requireWSToken(w http.ResponseWriter, r *http.Request, token string, logger *logging.Logger) bool {
	if validateToken(r, token) {
		return true
	}
	failWS(w, r, nil, logger, wsFailure{Status: http.StatusUnauthorized, Reason: "unauthorized"})
	return false
}

func upgradeWebSocket(w http.ResponseWriter, r *http.Request, allowedOrigins []string) (*websocket.Conn, error) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  wsReadBufferSize,
		WriteBufferSize: wsWriteBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			return isOriginAllowed(r, allowedOrigins)
		},
	}
	return upgrader.Upgrade(w, r, nil)
}

// startWSWriteLoop owns all data writes on conn until stopped. Control frames
// may still be written concurrently.
func startWSWriteLoop[T any](config wsStreamConfig[T]) (*wsWriteLoop, error) {
	if config.Output == nil {
		return nil, errWSNilOutput
	}
	conn := config.Conn

	if config.PreWrite != nil {
		if err := config.PreWrite(conn); err != nil {
			return nil, err
		}
	}

	writeTimeout := config.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = wsWriteTimeout
	}
	buildPayload := config.BuildPayload
	if buildPayload == nil {
		buildPayload = func(value T) (any, bool) {
			return value, true
		}
	}

	loop := &wsWriteLoop{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go func() {
		defer close(loop.done)
		for {
			select {
			case value, ok := <-config.Output:
				if !ok {
					if config.OnClosed != nil {
						config.OnClosed(conn)
					}
					return
				}
				payload, ok := buildPayload(value)
				if !ok {
					continue
				}
				if err := writeJSONFrame(conn, payload, writeTimeout); err != nil {
					return
				}
			case <-loop.stop:
				return
			}
		}
	}()
	return loop, nil
}

func writeJSONFrame(conn *websocket.Conn, payload any, timeout time.Duration) error {
	if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	return conn.WriteJSON(payload)
}

// closeNormally sends a normal-closure frame; the peer's reply ends the read
// loop.
func closeNormally(conn *websocket.Conn, reason string) {
	deadline := time.Now().Add(wsWriteTimeout)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, truncateCloseReason(reason)), deadline)
}

// failWS logs f and reports it to the peer: as a plain HTTP error before the
// upgrade, as a close frame after it.
func failWS(w http.ResponseWriter, r *http.Request, conn *websocket.Conn, logger *logging.Logger, f wsFailure) {
	f = f.normalized()
	logWSFailure(logger, r, f)

	if conn == nil {
		http.Error(w, f.Reason, f.Status)
		return
	}
	deadline := time.Now().Add(wsWriteTimeout)
	if f.Notify {
		_ = conn.SetWriteDeadline(deadline)
		_ = conn.WriteJSON(errorFrame{Type: "error", Message: f.Reason, Status: f.Status, CloseCode: f.CloseCode})
	}
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(f.CloseCode, truncateCloseReason(f.Reason)), deadline)
	_ = conn.Close()
}

func logWSFailure(logger *logging.Logger, r *http.Request, f wsFailure) {
	if r == nil {
		return
	}
	f = f.normalized()
	fields := map[string]string{
		"http.route":  r.URL.Path,
		"status":      strconv.Itoa(f.Status),
		"close_code":  strconv.Itoa(f.CloseCode),
		"reason":      f.Reason,
		"remote_addr": r.RemoteAddr,
	}
	if f.Err != nil {
		fields[logging.FieldError] = f.Err.Error()
	}
	if f.Status >= http.StatusInternalServerError {
		logger.Error("websocket stream failed", fields)
		return
	}
	logger.Warn("websocket stream refused", fields)
}

func closeCodeForStatus(status int) int {
	switch status {
	case http.StatusBadRequest:
		return websocket.CloseProtocolError
	case http.StatusServiceUnavailable:
		return websocket.CloseTryAgainLater
	}
	if status >= http.StatusInternalServerError {
		return websocket.CloseInternalServerErr
	}
	return websocket.ClosePolicyViolation
}

// truncateCloseReason keeps a close payload within the 125-byte control frame
// limit, two bytes of which hold the code.
func truncateCloseReason(reason string) string {
	const limit = 123
	if len(reason) > limit {
		return reason[:limit]
	}
	return reason
}
