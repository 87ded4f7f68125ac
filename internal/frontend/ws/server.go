// Package ws serves the websocket upgrade endpoint and runs one
// session per connection.
package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/africauniverse/gameserver/internal/config"
	"github.com/africauniverse/gameserver/internal/dispatcher"
	"github.com/africauniverse/gameserver/internal/game/registry"
	"github.com/africauniverse/gameserver/internal/observability"
)

// Server accepts websocket connections on /ws and dispatches each one
// to its own Session. It also exposes /healthz and /metrics.
type Server struct {
	cfg        config.Config
	registry   *registry.Registry
	dispatcher *dispatcher.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics

	upgrader websocket.Upgrader

	httpServer *http.Server
	wg         sync.WaitGroup
	mu         sync.Mutex
	sessions   map[*Session]bool
	stopping   bool
}

// NewServer creates a websocket server.
//
// Precondition: reg, disp, logger, and metrics must be non-nil; cfg
// must have been validated.
func NewServer(cfg config.Config, reg *registry.Registry, disp *dispatcher.Dispatcher, logger *zap.Logger, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:        cfg,
		registry:   reg,
		dispatcher: disp,
		logger:     logger,
		metrics:    metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The game client is served from a separate origin (CDN),
			// so cross-origin upgrades are expected.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		sessions: make(map[*Session]bool),
	}
}

// Handler returns the HTTP routing table. Exposed separately so tests
// can mount it on an httptest server.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/ws", s.handleUpgrade).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{})).Methods(http.MethodGet)
	return r
}

// ListenAndServe starts the HTTP listener and blocks until Stop is
// called or the listener fails.
func (s *Server) ListenAndServe() error {
	start := time.Now()

	s.mu.Lock()
	s.httpServer = &http.Server{
		Addr:    s.cfg.Server.Addr(),
		Handler: s.Handler(),
	}
	srv := s.httpServer
	s.mu.Unlock()

	s.logger.Info("websocket server listening",
		zap.String("addr", s.cfg.Server.Addr()),
		zap.Duration("startup", time.Since(start)),
	)

	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving on %s: %w", s.cfg.Server.Addr(), err)
	}
	return nil
}

// Stop gracefully stops the server: the listener closes, live sessions
// are closed, and all session goroutines are waited for.
//
// Postcondition: All connections are closed and the registry holds no
// entries for this server's sessions.
func (s *Server) Stop() {
	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		return
	}
	s.stopping = true
	srv := s.httpServer
	live := make([]*Session, 0, len(s.sessions))
	for sess := range s.sessions {
		live = append(live, sess)
	}
	s.mu.Unlock()

	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			s.logger.Warn("http shutdown", zap.Error(err))
		}
	}

	for _, sess := range live {
		sess.close()
	}
	s.wg.Wait()
}

// handleUpgrade promotes the HTTP request to a websocket connection and
// starts the session goroutines. Each connection gets a fresh identity
// that is never reused.
func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error response.
		s.logger.Warn("websocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	sess := newSession(conn, s.cfg.Websocket, s.registry, s.dispatcher, s.logger, s.metrics)

	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.sessions[sess] = true
	s.mu.Unlock()

	s.metrics.ConnectedPlayers.Inc()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		sess.run()

		s.mu.Lock()
		delete(s.sessions, sess)
		s.mu.Unlock()
	}()
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "ok, %d players connected\n", s.registry.Count())
}
