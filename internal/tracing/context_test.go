package tracing

import (
	"context"
	"testing"
)

func TestNewTraceID(t *testing.T) {
	id1 := NewTraceID()
	id2 := NewTraceID()

	if id1 == "" {
		t.Error("NewTraceID returned empty string")
	}

	if id1 == id2 {
		t.Error("NewTraceID returned duplicate IDs")
	}
}

func TestContextValues(t *testing.T) {
	ctx := context.Background()
	ctx = WithTraceID(ctx, "trace-1")
	ctx = WithSessionID(ctx, "session-1")
	ctx = WithTransport(ctx, "websocket")
	ctx = WithTool(ctx, "get_weather")

	if got := GetTraceID(ctx); got != "trace-1" {
		t.Errorf("Expected trace-1, got %s", got)
	}
	if got := GetSessionID(ctx); got != "session-1" {
		t.Errorf("Expected session-1, got %s", got)
	}
	if got := GetTransport(ctx); got != "websocket" {
		t.Errorf("Expected websocket, got %s", got)
	}
	if got := GetTool(ctx); got != "get_weather" {
		t.Errorf("Expected get_weather, got %s", got)
	}
}

func TestGettersOnEmptyContext(t *testing.T) {
	ctx := context.Background()

	if GetTraceID(ctx) != "" || GetSessionID(ctx) != "" || GetTransport(ctx) != "" || GetTool(ctx) != "" {
		t.Error("Expected empty values on a bare context")
	}
}

func TestNewContextPartial(t *testing.T) {
	ctx := NewContext(context.Background(), &TraceContext{SessionID: "s"})

	tc := FromContext(ctx)
	if tc.SessionID != "s" {
		t.Errorf("Expected session s, got %s", tc.SessionID)
	}
	if tc.TraceID != "" {
		t.Error("Trace ID should not be set")
	}
}

func TestNewRequestContext(t *testing.T) {
	session := WithSessionID(context.Background(), "s")

	a := NewRequestContext(session)
	b := NewRequestContext(session)

	if GetTraceID(a) == "" || GetTraceID(a) == GetTraceID(b) {
		t.Error("Each request should get its own trace ID")
	}
	if GetSessionID(a) != "s" {
		t.Error("Session ID should be kept")
	}
}
