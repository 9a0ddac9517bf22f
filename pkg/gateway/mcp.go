package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/harun/apibridge/internal/tracing"
	"github.com/harun/apibridge/pkg/dispatch"
)

const traceHeader = "X-Trace-Id"

type rpcErrorResponse struct {
	JSONRPC string             `json:"jsonrpc"`
	ID      json.RawMessage    `json:"id"`
	Error   *dispatch.RPCError `json:"error"`
}

func encodeRPCError(id json.RawMessage, code int, message string) []byte {
	if len(id) == 0 {
		id = json.RawMessage("null")
	}
	data, _ := json.Marshal(rpcErrorResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &dispatch.RPCError{Code: code, Message: message},
	})
	return data
}

// requestID returns the id of a single request frame, if any.
func requestID(data []byte) json.RawMessage {
	var frame struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil
	}
	return frame.ID
}

// isInitialize reports whether the frame contains an initialize request.
func isInitialize(data []byte) bool {
	frames, _, perr := dispatch.ParseMessage(data)
	if perr != nil {
		return false
	}
	for _, frame := range frames {
		req, perr := dispatch.ParseRequest(frame)
		if perr == nil && req.Method == "initialize" && !req.IsNotification() {
			return true
		}
	}
	return false
}

func (s *Server) requestContext(parent context.Context, r *http.Request, kind SessionKind, session *Session) context.Context {
	ctx := tracing.WithTransport(parent, string(kind))
	if session != nil {
		ctx = tracing.WithSessionID(ctx, session.ID)
	}
	traceID := r.Header.Get(traceHeader)
	if traceID == "" {
		traceID = tracing.NewTraceID()
	}
	return tracing.WithTraceID(ctx, traceID)
}

// handlePost serves one JSON-RPC message or batch. An initialize request
// without a session header opens a session whose id is returned in
// Mcp-Session-Id.
func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "request body too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to read request body"})
		return
	}

	var session *Session
	if id := r.Header.Get(SessionHeader); id != "" {
		var ok bool
		session, ok = s.sessions.Get(id)
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown session"})
			return
		}
		s.sessions.Touch(id)
	} else if isInitialize(body) {
		session, err = s.openSession(SessionHTTP, r.RemoteAddr, nil)
		if err != nil {
			s.logger.Error().Err(err).Msg("Failed to open session")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to open session"})
			return
		}
	}
	if session != nil {
		w.Header().Set(SessionHeader, session.ID)
	}

	if !s.begin() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "server is shutting down"})
		return
	}
	defer s.inFlight.Done()

	if session != nil {
		ok, code, reason := session.Limiter.Acquire()
		if !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write(encodeRPCError(requestID(body), code, reason))
			return
		}
		defer session.Limiter.Release()
	}

	ctx := s.requestContext(r.Context(), r, SessionHTTP, session)
	resp := s.handler.HandleMessage(ctx, body)
	if resp == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(resp); err != nil {
		logger := tracing.PropagateToLogger(ctx, s.logger)
		logger.Warn().Err(err).Msg("Failed to write response")
	}
}

// handleDelete ends the session named by Mcp-Session-Id.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.Header.Get(SessionHeader)
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": SessionHeader + " header is required"})
		return
	}

	session, ok := s.sessions.Get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown session"})
		return
	}
	if session.Kind != SessionHTTP {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "websocket sessions end when the connection closes"})
		return
	}

	s.closeSession(id)
	w.WriteHeader(http.StatusNoContent)
}
