// Package status serves the daemon's metrics, health probes and a small
// control surface over HTTP on a local address.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"snipd/internal/engine"
	"snipd/internal/health"
)

// Controller is the engine surface the server exposes.
type Controller interface {
	Stats() engine.Stats
	Pause()
	Resume()
	Paused() bool
}

// Server is the status HTTP server.
type Server struct {
	httpServer *http.Server
	listener   net.Listener
	logger     *slog.Logger
}

// Options configures a Server.
type Options struct {
	Addr       string
	Metrics    http.Handler
	Health     *health.Checker
	Controller Controller
	Logger     *slog.Logger
}

// New creates a server. Routes whose dependency is nil are not mounted.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		httpServer: &http.Server{
			Addr:              opts.Addr,
			Handler:           NewHandler(opts),
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger.With("component", "status"),
	}
}

// NewHandler builds the route table.
func NewHandler(opts Options) http.Handler {
	mux := http.NewServeMux()
	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics)
	}
	mux.HandleFunc("GET /livez", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "alive", "timestamp": time.Now()})
	})
	if opts.Health != nil {
		mux.Handle("GET /healthz", opts.Health.HealthHandler())
		mux.Handle("GET /readyz", opts.Health.ReadinessHandler())
	}
	if c := opts.Controller; c != nil {
		mux.HandleFunc("GET /stats", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, c.Stats())
		})
		mux.HandleFunc("POST /pause", func(w http.ResponseWriter, r *http.Request) {
			c.Pause()
			writeJSON(w, http.StatusOK, map[string]bool{"paused": c.Paused()})
		})
		mux.HandleFunc("POST /resume", func(w http.ResponseWriter, r *http.Request) {
			c.Resume()
			writeJSON(w, http.StatusOK, map[string]bool{"paused": c.Paused()})
		})
	}
	return mux
}

// Start binds the address and serves in the background. The bound
// address is available from Addr once Start returns.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.httpServer.Addr, err)
	}
	s.listener = ln
	s.logger.Info("status server listening", "addr", ln.Addr().String())

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("status server stopped", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.httpServer.Addr
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
