// Package server exposes the match coordinator over WebSockets.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/lox/mineduel/internal/history"
	"github.com/lox/mineduel/internal/session"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

// Server accepts player connections and serves health and stats endpoints.
type Server struct {
	upgrader    websocket.Upgrader
	coordinator *session.Coordinator
	history     *history.Recorder
	logger      *log.Logger

	nextID      atomic.Uint64
	mu          sync.Mutex
	connections map[*Connection]struct{}
}

// NewServer creates a server in front of coordinator. recorder may be nil.
func NewServer(coordinator *session.Coordinator, recorder *history.Recorder, logger *log.Logger) *Server {
	return &Server{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Terminal clients send no Origin; browsers are not a target.
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		coordinator: coordinator,
		history:     recorder,
		logger:      logger.WithPrefix("server"),
		connections: make(map[*Connection]struct{}),
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/stats", s.handleStats)
	return mux
}

// Run listens on addr and serves until ctx is cancelled. It also runs the
// coordinator.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := s.coordinator.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("coordinator: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		s.logger.Info("Starting WebSocket server", "addr", ln.Addr().String())
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		// Hijacked WebSocket connections are not tracked by http.Server.
		s.closeConnections()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// ConnectionCount returns the number of open WebSocket connections.
func (s *Server) ConnectionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.connections)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection", "error", err)
		return
	}

	id := fmt.Sprintf("conn-%d", s.nextID.Add(1))
	conn := NewConnection(id, ws, s.coordinator, s.logger)

	s.mu.Lock()
	s.connections[conn] = struct{}{}
	total := len(s.connections)
	s.mu.Unlock()
	s.logger.Info("Client connected", "conn", id, "remote", r.RemoteAddr, "total", total)

	go func() {
		<-conn.Done()
		s.mu.Lock()
		delete(s.connections, conn)
		total := len(s.connections)
		s.mu.Unlock()
		s.logger.Info("Client disconnected", "conn", id, "total", total)
	}()

	conn.Start()
}

func (s *Server) closeConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.connections {
		_ = conn.Close() // Ignore close errors during shutdown
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "OK") // Ignore write errors for health check
}

// Stats is the body of GET /stats.
type Stats struct {
	Connections int              `json:"connections"`
	Session     session.Snapshot `json:"session"`
	History     *history.Summary `json:"history,omitempty"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	snap, err := s.coordinator.Snapshot(r.Context())
	if err != nil {
		s.logger.Warn("Failed to snapshot session", "error", err)
		http.Error(w, "session unavailable", http.StatusServiceUnavailable)
		return
	}

	stats := Stats{
		Connections: s.ConnectionCount(),
		Session:     snap,
	}
	if s.history != nil {
		summary := s.history.Summary()
		stats.History = &summary
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(stats); err != nil {
		s.logger.Error("Failed to write stats", "error", err)
	}
}
