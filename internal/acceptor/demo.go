package acceptor

import (
	"github.com/gorilla/websocket"
)

// DemoPayload confirms the handshake on the demo route.
const DemoPayload = "demo: handshake ok"

// Demo sends DemoPayload once on accept and nothing afterwards.
type Demo struct {
	opts Options
}

// NewDemo creates a demo acceptor.
func NewDemo(opts Options) *Demo {
	return &Demo{opts: opts.withDefaults()}
}

// Serve writes the handshake confirmation, then waits for the peer to leave.
func (d *Demo) Serve(conn *websocket.Conn) {
	defer conn.Close()

	if err := write(conn, d.opts.WriteTimeout, websocket.TextMessage, []byte(DemoPayload)); err != nil {
		d.opts.Logger.Debug("demo_send_failed", "remote", conn.RemoteAddr().String(), "error", err)
		return
	}
	logReadEnd(d.opts.Logger, "demo", conn, drain(conn))
}
