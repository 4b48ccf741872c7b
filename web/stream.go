package web

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"github.com/ysay/zari-vision/logging"
	"github.com/ysay/zari-vision/services/seatmonitor"
)

const (
	writeWait = 10 * time.Second
	// control frame payloads are limited to 125 bytes, two of which hold the close code
	maxCloseReason = 123
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1 << 16,
	// any origin may open a stream
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsEmitter writes session payloads as JSON text messages. Writes are serialized since the close
// frame may be sent from another goroutine than the session loop.
type wsEmitter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (e *wsEmitter) Emit(ctx context.Context, payload interface{}) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return e.conn.WriteJSON(payload)
}

func (e *wsEmitter) close(code int, reason string) error {
	if len(reason) > maxCloseReason {
		reason = reason[:maxCloseReason]
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason),
		time.Now().Add(writeWait))
}

// closeCode maps the end of a session to a websocket close code and reason.
func closeCode(err error) (int, string) {
	if err == nil {
		return websocket.CloseNormalClosure, ""
	}
	switch kind := seatmonitor.Kind(err); kind {
	case seatmonitor.ErrClientGone:
		return websocket.CloseGoingAway, ""
	case nil:
		return websocket.CloseInternalServerErr, "internal error"
	default:
		return websocket.CloseInternalServerErr, kind.Error()
	}
}

// handleStream upgrades the request and runs one streaming session on the connection. The
// session ends when the client disconnects, which a reader goroutine notices by its read
// failing.
func (app *webApp) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client
		app.logger.Debugw("websocket upgrade failed", "error", err)
		return
	}
	logger := app.logger.Sublogger("ws").WithFields("remote_addr", r.RemoteAddr)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	readerDone := make(chan struct{})
	utils.PanicCapturingGo(func() {
		defer close(readerDone)
		readUntilClosed(conn, cancel)
	})

	em := &wsEmitter{conn: conn}
	err = app.monitor.Stream(ctx, em)
	code, reason := closeCode(err)
	if code != websocket.CloseGoingAway {
		logClose(logger, em.close(code, reason))
	}
	utils.UncheckedError(conn.Close())
	<-readerDone
}

// readUntilClosed discards client messages until the connection fails or is closed, then calls
// cancel.
func readUntilClosed(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}

func logClose(logger logging.Logger, err error) {
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		logger.Debugw("error sending close frame", "error", err)
	}
}
