package acceptor

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serveOne exposes a over httptest and reports when its Serve call returns.
func serveOne(t *testing.T, a Acceptor) (string, <-chan struct{}) {
	t.Helper()
	returned := make(chan struct{}, 1)
	upgrader := websocket.Upgrader{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		a.Serve(conn)
		returned <- struct{}{}
	}))
	t.Cleanup(ts.Close)
	return "ws" + strings.TrimPrefix(ts.URL, "http"), returned
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func closeGracefully(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	require.NoError(t, conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)))
}

func waitReturned(t *testing.T, returned <-chan struct{}) {
	t.Helper()
	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("acceptor did not return after close")
	}
}

func TestEchoPreservesPayloadTypeAndOrder(t *testing.T) {
	url, returned := serveOne(t, NewEcho(Options{}))
	conn := dial(t, url)

	sent := []struct {
		typ  int
		data []byte
	}{
		{websocket.TextMessage, []byte("hello")},
		{websocket.BinaryMessage, []byte{1, 2, 3, 4}},
		{websocket.TextMessage, []byte("")},
		{websocket.BinaryMessage, []byte(strings.Repeat("x", 64<<10))},
		{websocket.TextMessage, []byte("héllo wörld")},
	}
	for _, m := range sent {
		require.NoError(t, conn.WriteMessage(m.typ, m.data))
	}

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for i, m := range sent {
		typ, data, err := conn.ReadMessage()
		require.NoError(t, err, "message %d", i)
		assert.Equal(t, m.typ, typ, "message %d", i)
		assert.Equal(t, m.data, data, "message %d", i)
	}

	closeGracefully(t, conn)
	waitReturned(t, returned)
}

func TestPingSendsPayloadEveryInterval(t *testing.T) {
	url, returned := serveOne(t, NewPing(30*time.Millisecond, Options{}))
	conn := dial(t, url)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	for i := 0; i < 3; i++ {
		typ, data, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, websocket.TextMessage, typ)
		assert.Equal(t, PingPayload, string(data))
	}

	closeGracefully(t, conn)
	waitReturned(t, returned)
}

func TestPingStopsWhenClientDisappears(t *testing.T) {
	url, returned := serveOne(t, NewPing(10*time.Millisecond, Options{}))
	conn := dial(t, url)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, _, err := conn.ReadMessage()
	require.NoError(t, err)

	// Abrupt close without a close frame must release the ticker too.
	require.NoError(t, conn.UnderlyingConn().Close())
	waitReturned(t, returned)
}

func TestNewPingDefaultsInterval(t *testing.T) {
	p := NewPing(0, Options{})
	assert.Equal(t, DefaultPingInterval, p.interval)
	assert.Equal(t, defaultWriteTimeout, p.opts.WriteTimeout)
}

func TestDemoSendsExactlyOneMessage(t *testing.T) {
	url, returned := serveOne(t, NewDemo(Options{}))
	conn := dial(t, url)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	typ, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, typ)
	assert.Equal(t, DemoPayload, string(data))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(150*time.Millisecond)))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	var netErr interface{ Timeout() bool }
	require.ErrorAs(t, err, &netErr)
	assert.True(t, netErr.Timeout())

	conn.Close()
	waitReturned(t, returned)
}
