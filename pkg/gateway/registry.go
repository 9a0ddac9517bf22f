package gateway

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

var errNotStreaming = errors.New("session has no streaming connection")

// idleAfter marks a session idle in SessionInfo.
const idleAfter = 5 * time.Minute

// SessionRegistry tracks live sessions by id.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionRegistry creates an empty registry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[string]*Session),
	}
}

// Open creates and registers a session with a fresh id. conn is nil for
// sessions without a streaming connection.
func (r *SessionRegistry) Open(kind SessionKind, remoteAddr string, conn *websocket.Conn, limiter *SessionLimiter) (*Session, error) {
	id, err := gonanoid.New()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	session := &Session{
		ID:           id,
		Kind:         kind,
		RemoteAddr:   remoteAddr,
		ConnectedAt:  now,
		LastActivity: now,
		Limiter:      limiter,
		conn:         conn,
	}
	r.Add(session)
	return session, nil
}

// Add registers a session under its id.
func (r *SessionRegistry) Add(session *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[session.ID] = session
}

// Remove drops a session and reports whether it was present.
func (r *SessionRegistry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return false
	}
	delete(r.sessions, id)
	return true
}

// Get retrieves a session by id.
func (r *SessionRegistry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[id]
	return session, ok
}

// All returns every session.
func (r *SessionRegistry) All() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make([]*Session, 0, len(r.sessions))
	for _, session := range r.sessions {
		sessions = append(sessions, session)
	}
	return sessions
}

// Streaming returns the sessions that can receive server-initiated messages.
func (r *SessionRegistry) Streaming() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make([]*Session, 0)
	for _, session := range r.sessions {
		if session.conn != nil {
			sessions = append(sessions, session)
		}
	}
	return sessions
}

// Count returns the number of sessions.
func (r *SessionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.sessions)
}

// Touch records activity on a session.
func (r *SessionRegistry) Touch(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if session, ok := r.sessions[id]; ok {
		session.LastActivity = time.Now()
	}
}

// Infos returns a snapshot of every session ordered by connect time.
func (r *SessionRegistry) Infos() []SessionInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := time.Now()
	infos := make([]SessionInfo, 0, len(r.sessions))
	for _, session := range r.sessions {
		infos = append(infos, SessionInfo{
			ID:           session.ID,
			Kind:         session.Kind,
			RemoteAddr:   session.RemoteAddr,
			ConnectedAt:  session.ConnectedAt,
			LastActivity: session.LastActivity,
			Idle:         now.Sub(session.LastActivity) > idleAfter,
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].ConnectedAt.Before(infos[j].ConnectedAt)
	})
	return infos
}
