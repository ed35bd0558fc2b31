package acceptor

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	// PingPayload is the text sent on every tick.
	PingPayload = "pong"
	// DefaultPingInterval is the tick period when none is configured.
	DefaultPingInterval = 2 * time.Second
)

// Ping sends PingPayload on a fixed interval for as long as the connection
// stays open.
type Ping struct {
	opts     Options
	interval time.Duration
}

// NewPing creates a ping acceptor. Non-positive intervals use DefaultPingInterval.
func NewPing(interval time.Duration, opts Options) *Ping {
	if interval <= 0 {
		interval = DefaultPingInterval
	}
	return &Ping{opts: opts.withDefaults(), interval: interval}
}

// Serve ticks until either side closes. The ticker is owned by this call
// and stopped before it returns, so no send can happen after close.
func (p *Ping) Serve(conn *websocket.Conn) {
	defer conn.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		logReadEnd(p.opts.Logger, "ping", conn, drain(conn))
	}()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case <-ticker.C:
			select {
			case <-closed:
				return
			default:
			}
			// A failed send is not fatal; the reader notices the close.
			if err := write(conn, p.opts.WriteTimeout, websocket.TextMessage, []byte(PingPayload)); err != nil {
				p.opts.Logger.Debug("ping_send_skipped", "remote", conn.RemoteAddr().String(), "error", err)
			}
		}
	}
}
