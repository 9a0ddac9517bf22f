// Package audit records who changed the API registry and who was turned away
// at the gateway. Events are JSON lines, one per change, separate from the
// diagnostic log.
package audit

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/harun/apibridge/internal/tracing"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Event types
const (
	TypeRegistry = "registry"
	TypeSecurity = "security"
)

// Event statuses
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Event is one audit record.
type Event struct {
	Type      string                 `json:"event_type"`
	Timestamp time.Time              `json:"timestamp"`
	Actor     string                 `json:"actor,omitempty"` // session id
	Transport string                 `json:"transport,omitempty"`
	Action    string                 `json:"action"`
	Status    string                 `json:"status"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	TraceID   string                 `json:"trace_id,omitempty"`
}

// Logger writes audit events. A nil *Logger discards everything.
type Logger struct {
	logger zerolog.Logger
	mu     sync.Mutex
	file   *os.File
	now    func() time.Time
}

// New creates a Logger writing to w.
func New(w io.Writer) *Logger {
	return &Logger{
		logger: zerolog.New(w),
		now:    time.Now,
	}
}

// Open creates a Logger appending to path. The file is private to the
// process owner since events name the APIs and sessions involved.
func Open(path string) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit file: %w", err)
	}

	l := New(file)
	l.file = file
	return l, nil
}

// Record fills in time, session and trace from ctx and writes the event.
func (a *Logger) Record(ctx context.Context, event Event) {
	if a == nil {
		return
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = a.now().UTC()
	}
	if event.Actor == "" {
		event.Actor = tracing.GetSessionID(ctx)
	}
	if event.Transport == "" {
		event.Transport = tracing.GetTransport(ctx)
	}
	if event.TraceID == "" {
		event.TraceID = tracing.GetTraceID(ctx)
	}

	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		span.AddEvent(event.Action, trace.WithAttributes(
			attribute.String("audit.type", event.Type),
			attribute.String("audit.status", event.Status),
			attribute.String("audit.actor", event.Actor),
		))
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	entry := a.logger.Log().
		Str("event_type", event.Type).
		Time("timestamp", event.Timestamp).
		Str("action", event.Action).
		Str("status", event.Status)
	if event.Actor != "" {
		entry.Str("actor", event.Actor)
	}
	if event.Transport != "" {
		entry.Str("transport", event.Transport)
	}
	if event.TraceID != "" {
		entry.Str("trace_id", event.TraceID)
	}
	if len(event.Metadata) > 0 {
		entry.Interface("metadata", event.Metadata)
	}
	entry.Send()
}

// Close closes the audit file, if any.
func (a *Logger) Close() error {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file != nil {
		err := a.file.Close()
		a.file = nil
		return err
	}
	return nil
}

// Mutation records a call to a built-in tool that changes the registry.
// Only selector fields of args are kept; credentials never reach the trail.
func (a *Logger) Mutation(ctx context.Context, tool string, args map[string]interface{}, err error) {
	if a == nil {
		return
	}

	metadata := map[string]interface{}{}
	for _, key := range []string{"id", "name", "new_name", "tag", "key"} {
		if v, ok := args[key]; ok {
			metadata[key] = v
		}
	}

	status := StatusSuccess
	if err != nil {
		status = StatusFailure
		metadata["error"] = err.Error()
	}

	a.Record(ctx, Event{
		Type:     TypeRegistry,
		Action:   tool,
		Status:   status,
		Metadata: metadata,
	})
}

// AuthRejected records a gateway request turned away for a missing or wrong
// inbound token.
func (a *Logger) AuthRejected(ctx context.Context, path, remoteAddr string) {
	a.Record(ctx, Event{
		Type:   TypeSecurity,
		Action: "inbound_token_rejected",
		Status: StatusFailure,
		Metadata: map[string]interface{}{
			"path":        path,
			"remote_addr": remoteAddr,
		},
	})
}
