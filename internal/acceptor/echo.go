package acceptor

import (
	"github.com/gorilla/websocket"
)

// Echo writes every inbound message back with the same opcode and payload.
type Echo struct {
	opts Options
}

// NewEcho creates an echo acceptor.
func NewEcho(opts Options) *Echo {
	return &Echo{opts: opts.withDefaults()}
}

// Serve echoes until the peer closes.
func (e *Echo) Serve(conn *websocket.Conn) {
	defer conn.Close()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			logReadEnd(e.opts.Logger, "echo", conn, err)
			return
		}
		if err := write(conn, e.opts.WriteTimeout, messageType, data); err != nil {
			e.opts.Logger.Debug("echo_write_failed", "remote", conn.RemoteAddr().String(), "error", err)
			return
		}
	}
}
