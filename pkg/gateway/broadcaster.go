package gateway

import (
	"encoding/json"

	"github.com/rs/zerolog"
)

// ToolsListChanged is sent to streaming sessions after the tool set changes.
const ToolsListChanged = "notifications/tools/list_changed"

// Broadcaster pushes JSON-RPC notifications to every streaming session.
type Broadcaster struct {
	sessions *SessionRegistry
	logger   zerolog.Logger
}

// NewBroadcaster creates a Broadcaster over sessions.
func NewBroadcaster(sessions *SessionRegistry, logger zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		sessions: sessions,
		logger:   logger,
	}
}

// Notify sends a notification to all streaming sessions and returns how many
// received it.
func (b *Broadcaster) Notify(method string, params interface{}) int {
	data, err := json.Marshal(notification{JSONRPC: "2.0", Method: method, Params: params})
	if err != nil {
		b.logger.Error().Err(err).Str("method", method).Msg("Failed to marshal notification")
		return 0
	}

	sessions := b.sessions.Streaming()
	if len(sessions) == 0 {
		b.logger.Debug().Str("method", method).Msg("No streaming sessions to notify")
		return 0
	}

	delivered := 0
	for _, session := range sessions {
		if err := session.Write(data); err != nil {
			b.logger.Warn().
				Err(err).
				Str("session_id", session.ID).
				Str("method", method).
				Msg("Failed to notify session")
			continue
		}
		delivered++
	}

	b.logger.Debug().
		Str("method", method).
		Int("delivered", delivered).
		Int("failed", len(sessions)-delivered).
		Msg("Notification broadcast complete")
	return delivered
}
