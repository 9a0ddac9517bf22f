package tracing

import (
	"context"

	"github.com/rs/zerolog"
)

// PropagateToLogger adds tracing context to a zerolog logger
func PropagateToLogger(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	tc := FromContext(ctx)

	fields := logger.With()
	if tc.TraceID != "" {
		fields = fields.Str("trace_id", tc.TraceID)
	}
	if tc.SessionID != "" {
		fields = fields.Str("session_id", tc.SessionID)
	}
	if tc.Transport != "" {
		fields = fields.Str("transport", tc.Transport)
	}
	if tc.Tool != "" {
		fields = fields.Str("tool", tc.Tool)
	}
	return fields.Logger()
}

// Detach returns a context carrying ctx's tracing values and span but none of
// its cancellation. Websocket handlers use it so a dispatched call is not
// torn down with the upgrade request.
func Detach(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}
