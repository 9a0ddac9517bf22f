package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/harun/apibridge/internal/tracing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, data string) []map[string]interface{} {
	t.Helper()
	var events []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(data), "\n") {
		if line == "" {
			continue
		}
		var ev map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &ev), line)
		events = append(events, ev)
	}
	return events
}

func TestRecord(t *testing.T) {
	var buf bytes.Buffer
	trail := New(&buf)
	trail.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }

	ctx := tracing.WithSessionID(context.Background(), "sess-1")
	ctx = tracing.WithTransport(ctx, "ws")
	ctx = tracing.WithTraceID(ctx, "trace-1")

	trail.Record(ctx, Event{Type: TypeRegistry, Action: "add_api", Status: StatusSuccess})

	events := decodeLines(t, buf.String())
	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, "registry", ev["event_type"])
	assert.Equal(t, "add_api", ev["action"])
	assert.Equal(t, "success", ev["status"])
	assert.Equal(t, "sess-1", ev["actor"])
	assert.Equal(t, "ws", ev["transport"])
	assert.Equal(t, "trace-1", ev["trace_id"])
	assert.Equal(t, "2025-03-01T12:00:00Z", ev["timestamp"])
}

func TestMutation(t *testing.T) {
	t.Run("keeps only selector fields", func(t *testing.T) {
		var buf bytes.Buffer
		New(&buf).Mutation(context.Background(), "add_api", map[string]interface{}{
			"name":           "get_weather",
			"authentication": map[string]interface{}{"type": "bearer", "token": "secret-token"},
			"base_url":       "https://api.weather.com",
		}, nil)

		assert.NotContains(t, buf.String(), "secret-token")
		ev := decodeLines(t, buf.String())[0]
		assert.Equal(t, "success", ev["status"])
		assert.Equal(t, map[string]interface{}{"name": "get_weather"}, ev["metadata"])
	})

	t.Run("failure carries the error", func(t *testing.T) {
		var buf bytes.Buffer
		New(&buf).Mutation(context.Background(), "delete_api", map[string]interface{}{"id": "abc"}, errors.New("not found"))

		ev := decodeLines(t, buf.String())[0]
		assert.Equal(t, "failure", ev["status"])
		metadata := ev["metadata"].(map[string]interface{})
		assert.Equal(t, "abc", metadata["id"])
		assert.Equal(t, "not found", metadata["error"])
	})
}

func TestAuthRejected(t *testing.T) {
	var buf bytes.Buffer
	New(&buf).AuthRejected(context.Background(), "/mcp", "10.0.0.1:5000")

	ev := decodeLines(t, buf.String())[0]
	assert.Equal(t, "security", ev["event_type"])
	assert.Equal(t, "inbound_token_rejected", ev["action"])
	assert.Equal(t, "/mcp", ev["metadata"].(map[string]interface{})["path"])
}

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit", "trail.jsonl")

	trail, err := Open(path)
	require.NoError(t, err)
	trail.Record(context.Background(), Event{Type: TypeRegistry, Action: "enable_api", Status: StatusSuccess})
	require.NoError(t, trail.Close())
	require.NoError(t, trail.Close())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, decodeLines(t, string(data)), 1)
}

func TestNilLogger(t *testing.T) {
	var trail *Logger
	assert.NotPanics(t, func() {
		trail.Record(context.Background(), Event{Action: "x"})
		trail.Mutation(context.Background(), "add_api", nil, nil)
		trail.AuthRejected(context.Background(), "/mcp", "")
	})
	assert.NoError(t, trail.Close())
}
