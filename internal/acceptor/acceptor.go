// Package acceptor holds the per-route behaviour of accepted WebSocket
// connections. Each Serve call owns its connection until it returns.
package acceptor

import (
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"wssmoke/internal/logging"
)

const defaultWriteTimeout = 5 * time.Second

// Acceptor governs one upgraded connection. Serve blocks until the
// connection is closed and must release everything it acquired.
type Acceptor interface {
	Serve(conn *websocket.Conn)
}

// Options are shared by all acceptors.
type Options struct {
	WriteTimeout time.Duration
	Logger       *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = defaultWriteTimeout
	}
	if o.Logger == nil {
		o.Logger = logging.Nop()
	}
	return o
}

func write(conn *websocket.Conn, timeout time.Duration, messageType int, data []byte) error {
	_ = conn.SetWriteDeadline(time.Now().Add(timeout))
	return conn.WriteMessage(messageType, data)
}

// drain discards inbound frames until the peer goes away. Reading is what
// lets gorilla answer close and ping control frames.
func drain(conn *websocket.Conn) error {
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return err
		}
	}
}

func logReadEnd(logger *slog.Logger, route string, conn *websocket.Conn, err error) {
	if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		logger.Warn("connection_dropped", "route", route, "remote", conn.RemoteAddr().String(), "error", err)
		return
	}
	logger.Debug("connection_read_end", "route", route, "remote", conn.RemoteAddr().String(), "error", err)
}
