package server

import (
	"context"
	"embed"
	"encoding/json"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"wssmoke/internal/acceptor"
	"wssmoke/internal/logging"
)

//go:embed static/*
var embeddedStatic embed.FS

// Upgrade targets served by the router.
const (
	PathEcho = "/ws-echo"
	PathPing = "/ws-ping"
	PathDemo = "/web-demo/ws"
)

// Options configures a Server.
type Options struct {
	Addr           string
	PingInterval   time.Duration
	WriteTimeout   time.Duration
	AllowedOrigins []string
	Logger         *slog.Logger
}

// Server owns the single HTTP listener. Upgrade requests go to the router,
// everything else to the static page, health and stats handlers.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	router     *Router
	tracker    *Tracker
	staticFS   fs.FS
	logger     *slog.Logger
}

// New creates a configured HTTP server with the echo, ping and demo routes.
func New(opts Options) *Server {
	staticFS, err := fs.Sub(embeddedStatic, "static")
	if err != nil {
		panic("static assets missing: " + err.Error())
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}

	acceptOpts := acceptor.Options{WriteTimeout: opts.WriteTimeout, Logger: opts.Logger}
	routes := []Route{
		{Name: "echo", Path: PathEcho, Acceptor: acceptor.NewEcho(acceptOpts)},
		{Name: "ping", Path: PathPing, Acceptor: acceptor.NewPing(opts.PingInterval, acceptOpts)},
		{Name: "demo", Path: PathDemo, Prefix: true, Acceptor: acceptor.NewDemo(acceptOpts)},
	}

	tracker := NewTracker()
	s := &Server{
		mux:      http.NewServeMux(),
		router:   NewRouter(routes, opts.AllowedOrigins, tracker, opts.Logger),
		tracker:  tracker,
		staticFS: staticFS,
		logger:   opts.Logger,
	}
	s.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.registerRoutes()
	return s
}

// ServeHTTP intercepts upgrade requests before the regular mux sees them.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if websocket.IsWebSocketUpgrade(r) {
		s.router.ServeHTTP(w, r)
		return
	}
	s.mux.ServeHTTP(w, r)
}

// Tracker exposes live connection counters.
func (s *Server) Tracker() *Tracker {
	return s.tracker
}

// Run blocks and serves HTTP traffic.
func (s *Server) Run() error {
	s.logger.Info("server_listen", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown stops accepting requests. Upgraded connections end when their
// peers leave.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) registerRoutes() {
	fileServer := http.FileServer(http.FS(s.staticFS))

	page := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := fs.ReadFile(s.staticFS, "index.html")
		if err != nil {
			http.Error(w, "index missing", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(data)
	})

	s.mux.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		page(w, r)
	}))
	s.mux.Handle("/smoke", page)
	s.mux.Handle("/static/", http.StripPrefix("/static/", fileServer))
	s.mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	s.mux.HandleFunc("/api/connections", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"active": s.tracker.Active(),
			"routes": s.tracker.Snapshot(),
		})
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}
