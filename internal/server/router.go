package server

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"wssmoke/internal/acceptor"
	"wssmoke/internal/logging"
)

// Route binds an upgrade target to an acceptor.
type Route struct {
	Name string
	// Path is compared against the request target (path plus query).
	Path string
	// Prefix selects prefix matching instead of exact matching.
	Prefix   bool
	Acceptor acceptor.Acceptor
}

func (r Route) matches(target string) bool {
	if r.Prefix {
		return strings.HasPrefix(target, r.Path)
	}
	return target == r.Path
}

// Router dispatches WebSocket upgrade requests to the first matching route.
// Unmatched targets are answered with 404 and never upgraded.
type Router struct {
	routes   []Route
	upgrader websocket.Upgrader
	tracker  *Tracker
	logger   *slog.Logger
}

// NewRouter creates a router. A nil tracker or logger gets a private default.
func NewRouter(routes []Route, allowedOrigins []string, tracker *Tracker, logger *slog.Logger) *Router {
	if tracker == nil {
		tracker = NewTracker()
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Router{
		routes:   routes,
		upgrader: websocket.Upgrader{CheckOrigin: originChecker(allowedOrigins)},
		tracker:  tracker,
		logger:   logger,
	}
}

// Match returns the route for an upgrade target such as "/ws-echo".
func (rt *Router) Match(target string) (Route, bool) {
	for _, route := range rt.routes {
		if route.matches(target) {
			return route, true
		}
	}
	return Route{}, false
}

// ServeHTTP upgrades r when its target matches and hands the connection to
// the route's acceptor for the rest of its life.
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	target := r.URL.RequestURI()
	route, ok := rt.Match(target)
	if !ok {
		rt.logger.Warn("upgrade_rejected", "target", target, "remote", r.RemoteAddr)
		w.Header().Set("Connection", "close")
		http.NotFound(w, r)
		return
	}

	conn, err := rt.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		rt.logger.Warn("upgrade_failed", "route", route.Name, "remote", r.RemoteAddr, "error", err)
		return
	}

	release := rt.tracker.Acquire(route.Name)
	defer release()

	rt.logger.Info("connection_accepted", "route", route.Name, "target", target, "remote", r.RemoteAddr)
	route.Acceptor.Serve(conn)
	rt.logger.Info("connection_closed", "route", route.Name, "remote", r.RemoteAddr)
}

// originChecker accepts requests without Origin and same-host origins. Other
// origins pass when allowed is empty or lists them.
func originChecker(allowed []string) func(*http.Request) bool {
	allow := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		allow[strings.ToLower(strings.TrimRight(strings.TrimSpace(o), "/"))] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allow) == 0 {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		host := strings.ToLower(strings.TrimSpace(r.Host))
		originHost := strings.ToLower(strings.TrimSpace(u.Host))
		if host == originHost {
			return true
		}
		_, ok := allow[strings.ToLower(strings.TrimRight(origin, "/"))]
		return ok
	}
}
