package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wssmoke/internal/acceptor"
)

func newTestServer(t *testing.T, opts Options) (*Server, *httptest.Server, string) {
	t.Helper()
	if opts.PingInterval == 0 {
		opts.PingInterval = 50 * time.Millisecond
	}
	srv := New(opts)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return srv, ts, "ws" + strings.TrimPrefix(ts.URL, "http")
}

func dialWS(t *testing.T, url string, header http.Header) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	dialer := websocket.Dialer{HandshakeTimeout: 2 * time.Second}
	conn, resp, err := dialer.Dial(url, header)
	if conn != nil {
		t.Cleanup(func() { conn.Close() })
	}
	return conn, resp, err
}

func TestRouterMatch(t *testing.T) {
	rt := NewRouter([]Route{
		{Name: "echo", Path: PathEcho},
		{Name: "ping", Path: PathPing},
		{Name: "demo", Path: PathDemo, Prefix: true},
	}, nil, nil, nil)

	tests := []struct {
		target string
		route  string
		ok     bool
	}{
		{"/ws-echo", "echo", true},
		{"/ws-ping", "ping", true},
		{"/web-demo/ws", "demo", true},
		{"/web-demo/ws?session=abc", "demo", true},
		{"/web-demo/ws/audio", "demo", true},
		{"/ws-echo/", "", false},
		{"/ws-echo?x=1", "", false},
		{"/ws-pingx", "", false},
		{"/web-demo", "", false},
		{"/", "", false},
	}
	for _, tt := range tests {
		route, ok := rt.Match(tt.target)
		assert.Equal(t, tt.ok, ok, tt.target)
		assert.Equal(t, tt.route, route.Name, tt.target)
	}
}

func TestUnmatchedUpgradeIsRejected(t *testing.T) {
	srv, _, base := newTestServer(t, Options{})

	conn, resp, err := dialWS(t, base+"/ws-unknown", nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Nil(t, conn)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Empty(t, srv.Tracker().Snapshot())
}

func TestRoutesDispatchToAcceptors(t *testing.T) {
	srv, _, base := newTestServer(t, Options{})

	echo, _, err := dialWS(t, base+PathEcho, nil)
	require.NoError(t, err)
	require.NoError(t, echo.WriteMessage(websocket.BinaryMessage, []byte{1, 2, 3, 4}))
	require.NoError(t, echo.SetReadDeadline(time.Now().Add(time.Second)))
	typ, data, err := echo.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, typ)
	assert.Equal(t, []byte{1, 2, 3, 4}, data)

	ping, _, err := dialWS(t, base+PathPing, nil)
	require.NoError(t, err)
	require.NoError(t, ping.SetReadDeadline(time.Now().Add(time.Second)))
	_, data, err = ping.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, acceptor.PingPayload, string(data))

	demo, _, err := dialWS(t, base+PathDemo+"?session=1", nil)
	require.NoError(t, err)
	require.NoError(t, demo.SetReadDeadline(time.Now().Add(time.Second)))
	_, data, err = demo.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, acceptor.DemoPayload, string(data))

	require.Eventually(t, func() bool { return srv.Tracker().Active() == 3 }, time.Second, 5*time.Millisecond)

	for _, c := range []*websocket.Conn{echo, ping, demo} {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		require.NoError(t, c.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)))
	}
	require.Eventually(t, func() bool { return srv.Tracker().Active() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestOriginPolicy(t *testing.T) {
	_, _, base := newTestServer(t, Options{AllowedOrigins: []string{"https://app.example.com/"}})

	_, _, err := dialWS(t, base+PathDemo, http.Header{"Origin": {"https://app.example.com"}})
	assert.NoError(t, err)

	_, resp, err := dialWS(t, base+PathDemo, http.Header{"Origin": {"https://evil.example.com"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	_, _, err = dialWS(t, base+PathDemo, nil)
	assert.NoError(t, err)
}

func TestOriginCheckerSameHost(t *testing.T) {
	check := originChecker([]string{"https://other.example.com"})
	r := httptest.NewRequest(http.MethodGet, "http://svc.local:10000/ws-echo", nil)
	r.Host = "svc.local:10000"

	r.Header.Set("Origin", "http://svc.local:10000")
	assert.True(t, check(r))
	r.Header.Set("Origin", "::not a url")
	assert.False(t, check(r))

	open := originChecker(nil)
	r.Header.Set("Origin", "https://anyone.example.com")
	assert.True(t, open(r))
}

func TestHTTPSurface(t *testing.T) {
	_, ts, _ := newTestServer(t, Options{})

	get := func(path string) (*http.Response, string) {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp, string(body)
	}

	resp, body := get("/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body)

	for _, path := range []string{"/", "/smoke"} {
		resp, body = get(path)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
		assert.Contains(t, body, "WebSocket smoke test")
	}

	resp, _ = get("/missing")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// A plain GET to a WebSocket path is not an upgrade and falls through.
	resp, _ = get(PathEcho)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = get("/api/connections")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var stats struct {
		Active int          `json:"active"`
		Routes []RouteStats `json:"routes"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &stats))
	assert.Equal(t, 0, stats.Active)
}

func TestTracker(t *testing.T) {
	tr := NewTracker()
	releaseA := tr.Acquire("echo")
	releaseB := tr.Acquire("echo")
	releaseC := tr.Acquire("ping")
	assert.Equal(t, 3, tr.Active())

	releaseA()
	releaseA()
	releaseC()
	assert.Equal(t, 1, tr.Active())
	assert.Equal(t, []RouteStats{
		{Route: "echo", Active: 1, Accepted: 2},
		{Route: "ping", Active: 0, Accepted: 1},
	}, tr.Snapshot())

	releaseB()
	assert.Equal(t, 0, tr.Active())
}
