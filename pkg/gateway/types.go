package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Handler processes one raw JSON-RPC frame and returns the encoded reply, or
// nil when nothing is to be sent back. *dispatch.Dispatcher satisfies it.
type Handler interface {
	HandleMessage(ctx context.Context, data []byte) []byte
}

// SessionKind says how a session is attached.
type SessionKind string

const (
	// SessionHTTP is created by an initialize POST and named by Mcp-Session-Id.
	SessionHTTP SessionKind = "http"
	// SessionWebSocket lives as long as its connection.
	SessionWebSocket SessionKind = "ws"
)

// SessionHeader carries the session id on the HTTP transport.
const SessionHeader = "Mcp-Session-Id"

// Gateway-specific JSON-RPC error codes
const (
	RateLimitExceeded = -32005
	TooManyConcurrent = -32006
)

// Session is one connected client. Websocket writes go through Write so that
// concurrently completing requests never interleave frames.
type Session struct {
	ID           string
	Kind         SessionKind
	RemoteAddr   string
	ConnectedAt  time.Time
	LastActivity time.Time
	Limiter      *SessionLimiter

	conn    *websocket.Conn
	writeMu sync.Mutex
}

// Write sends one text frame to a websocket session.
func (s *Session) Write(data []byte) error {
	if s.conn == nil {
		return errNotStreaming
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *Session) close() {
	if s.conn == nil {
		return
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
		time.Now().Add(time.Second))
	s.conn.Close()
}

// SessionInfo is the public view of a session.
type SessionInfo struct {
	ID           string      `json:"id"`
	Kind         SessionKind `json:"kind"`
	RemoteAddr   string      `json:"remote_addr"`
	ConnectedAt  time.Time   `json:"connected_at"`
	LastActivity time.Time   `json:"last_activity"`
	Idle         bool        `json:"idle"`
}

// notification is a server-initiated JSON-RPC message.
type notification struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}
