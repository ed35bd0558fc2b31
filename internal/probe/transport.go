package probe

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/coder/websocket"
)

const readLimit = 16 << 20

// WSDialer dials real WebSocket connections.
type WSDialer struct {
	// HTTPClient is used for the handshake; nil means http.DefaultClient.
	HTTPClient *http.Client
	Header     http.Header
}

// Dial opens a connection to url. Handshake rejections include the HTTP status.
func (d WSDialer) Dial(ctx context.Context, url string) (Conn, error) {
	conn, resp, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPClient: d.HTTPClient,
		HTTPHeader: d.Header,
	})
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
			return nil, fmt.Errorf("dial %s: HTTP %d: %w", url, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	conn.SetReadLimit(readLimit)
	return &wsConn{conn: conn}, nil
}

type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) Send(ctx context.Context, msg Message) error {
	typ := websocket.MessageBinary
	if msg.Kind == KindText {
		typ = websocket.MessageText
	}
	return c.conn.Write(ctx, typ, msg.Data)
}

func (c *wsConn) Read(ctx context.Context) (Message, error) {
	typ, data, err := c.conn.Read(ctx)
	if err != nil {
		var ce websocket.CloseError
		if errors.As(err, &ce) {
			return Message{}, &CloseError{Code: int(ce.Code), Reason: ce.Reason}
		}
		return Message{}, err
	}
	if typ == websocket.MessageText {
		return TextMessage(string(data)), nil
	}
	return BinaryMessage(data), nil
}

func (c *wsConn) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "")
}
