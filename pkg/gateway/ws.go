package gateway

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/harun/apibridge/internal/tracing"
)

// handleWebSocket upgrades the connection and runs one session over it.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.shutdownMu.RLock()
	if s.isShuttingDown {
		s.shutdownMu.RUnlock()
		http.Error(w, "Server is shutting down", http.StatusServiceUnavailable)
		return
	}
	s.shutdownMu.RUnlock()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to upgrade connection")
		return
	}
	conn.SetReadLimit(s.maxBody)

	session, err := s.openSession(SessionWebSocket, r.RemoteAddr, conn)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to open session")
		conn.Close()
		return
	}

	// The request context ends when this handler returns; the session
	// outlives it.
	ctx, cancel := context.WithCancel(tracing.Detach(r.Context()))
	ctx = tracing.WithSessionID(tracing.WithTransport(ctx, string(SessionWebSocket)), session.ID)

	go s.readLoop(ctx, cancel, session)
}

// readLoop reads messages until the connection closes. Each message is
// dispatched on its own goroutine; replies are written in completion order.
func (s *Server) readLoop(ctx context.Context, cancel context.CancelFunc, session *Session) {
	logger := tracing.PropagateToLogger(ctx, s.logger)
	defer func() {
		cancel()
		session.conn.Close()
		s.closeSession(session.ID)
	}()

	for {
		_, message, err := session.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logger.Warn().Err(err).Msg("WebSocket error")
			}
			return
		}
		s.sessions.Touch(session.ID)

		ok, code, reason := session.Limiter.Acquire()
		if !ok {
			if err := session.Write(encodeRPCError(requestID(message), code, reason)); err != nil {
				logger.Warn().Err(err).Msg("Failed to send rate limit error")
			}
			continue
		}

		if !s.begin() {
			session.Limiter.Release()
			return
		}

		go func(message []byte) {
			defer s.inFlight.Done()
			defer session.Limiter.Release()

			msgCtx := tracing.WithTraceID(ctx, tracing.NewTraceID())
			resp := s.handler.HandleMessage(msgCtx, message)
			if resp == nil {
				return
			}
			if err := session.Write(resp); err != nil {
				msgLogger := tracing.PropagateToLogger(msgCtx, s.logger)
				msgLogger.Warn().Err(err).Msg("Failed to send response")
			}
		}(message)
	}
}
