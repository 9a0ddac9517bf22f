// Package gateway serves the dispatcher to many concurrent clients over HTTP
// and websockets.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/harun/apibridge/internal/audit"
	"github.com/harun/apibridge/internal/metrics"
	"github.com/rs/zerolog"
)

// DefaultMaxBodyBytes bounds one inbound request body or websocket message.
const DefaultMaxBodyBytes = 4 << 20

// Config holds server configuration
type Config struct {
	Host              string
	Port              int
	InboundToken      string
	Handler           Handler
	Metrics           *metrics.Metrics
	Audit             *audit.Logger
	Logger            zerolog.Logger
	RequestsPerMinute int
	MaxConcurrent     int
	MaxBodyBytes      int64
}

// Server is the concurrent transport. Every inbound message is handled on its
// own goroutine; sessions share nothing but the dispatcher.
type Server struct {
	addr        string
	handler     Handler
	metrics     *metrics.Metrics
	logger      zerolog.Logger
	auth        *TokenAuth
	sessions    *SessionRegistry
	broadcaster *Broadcaster
	upgrader    websocket.Upgrader
	rpm         int
	concurrent  int
	maxBody     int64

	server   *http.Server
	listener net.Listener

	shutdownMu     sync.RWMutex
	isShuttingDown bool
	inFlight       sync.WaitGroup
}

// NewServer creates a Server. Port 0 picks a free port on Start.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Handler == nil {
		return nil, fmt.Errorf("handler is required")
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port: %d", cfg.Port)
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}

	sessions := NewSessionRegistry()
	s := &Server{
		addr:        net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		handler:     cfg.Handler,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
		auth:        NewTokenAuth(cfg.InboundToken).WithAudit(cfg.Audit),
		sessions:    sessions,
		broadcaster: NewBroadcaster(sessions, cfg.Logger),
		rpm:         cfg.RequestsPerMinute,
		concurrent:  cfg.MaxConcurrent,
		maxBody:     cfg.MaxBodyBytes,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // the bearer token, not the origin, gates access
			},
		},
	}
	return s, nil
}

// Routes returns the router with all middleware and endpoints.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	// Unauthenticated
	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(s.auth.Middleware(s.logger))

		r.Post("/mcp", s.handlePost)
		r.Delete("/mcp", s.handleDelete)
		r.Get("/ws", s.handleWebSocket)
		r.Get("/sessions", s.handleSessions)
	})

	return r
}

// Start binds the listen address and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln
	s.server = &http.Server{
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info().Str("addr", ln.Addr().String()).Bool("auth", s.auth.Enabled()).Msg("Starting gateway server")

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("Gateway server error")
		}
	}()
	return nil
}

// Addr returns the bound address once started, or the configured one.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Shutdown stops accepting work, closes websocket sessions and waits for
// in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownMu.Lock()
	if s.isShuttingDown {
		s.shutdownMu.Unlock()
		return nil
	}
	s.isShuttingDown = true
	s.shutdownMu.Unlock()

	s.logger.Info().Int("sessions", s.sessions.Count()).Msg("Shutting down gateway server")

	for _, session := range s.sessions.Streaming() {
		session.close()
	}

	var shutdownErr error
	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("failed to shutdown server: %w", err)
		}
	}

	done := make(chan struct{})
	go func() {
		s.inFlight.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.logger.Info().Msg("All in-flight requests completed")
	case <-ctx.Done():
		s.logger.Warn().Msg("Shutdown deadline reached, abandoning in-flight requests")
	}

	for _, session := range s.sessions.All() {
		if s.sessions.Remove(session.ID) {
			s.metrics.SessionClosed()
		}
	}

	s.logger.Info().Msg("Gateway server stopped")
	return shutdownErr
}

// NotifyToolsChanged tells streaming sessions to refresh their tool list.
func (s *Server) NotifyToolsChanged() {
	s.broadcaster.Notify(ToolsListChanged, nil)
}

// Sessions returns information about all live sessions.
func (s *Server) Sessions() []SessionInfo {
	return s.sessions.Infos()
}

// begin registers an in-flight request unless the server is shutting down.
func (s *Server) begin() bool {
	s.shutdownMu.RLock()
	defer s.shutdownMu.RUnlock()

	if s.isShuttingDown {
		return false
	}
	s.inFlight.Add(1)
	return true
}

func (s *Server) openSession(kind SessionKind, remoteAddr string, conn *websocket.Conn) (*Session, error) {
	session, err := s.sessions.Open(kind, remoteAddr, conn, NewSessionLimiter(s.rpm, s.concurrent))
	if err != nil {
		return nil, fmt.Errorf("failed to open session: %w", err)
	}
	s.metrics.SessionOpened(string(kind))
	s.logger.Info().
		Str("session_id", session.ID).
		Str("kind", string(kind)).
		Str("ip", remoteAddr).
		Msg("Session opened")
	return session, nil
}

func (s *Server) closeSession(id string) bool {
	if !s.sessions.Remove(id) {
		return false
	}
	s.metrics.SessionClosed()
	s.logger.Info().Str("session_id", id).Msg("Session closed")
	return true
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.shutdownMu.RLock()
	shuttingDown := s.isShuttingDown
	s.shutdownMu.RUnlock()

	if shuttingDown {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{"status": "shutting_down"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"sessions": s.sessions.Count(),
	})
}

func (s *Server) handleSessions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": s.sessions.Infos()})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
