package tracing

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestPropagateToLogger(t *testing.T) {
	ctx := context.Background()
	ctx = WithTraceID(ctx, "trace-123")
	ctx = WithSessionID(ctx, "session-abc")
	ctx = WithTool(ctx, "get_weather")

	var buf bytes.Buffer
	logger := PropagateToLogger(ctx, zerolog.New(&buf))
	logger.Info().Msg("test message")

	output := buf.String()
	for _, want := range []string{"trace-123", "session-abc", "get_weather"} {
		if !strings.Contains(output, want) {
			t.Errorf("%s not in log output: %s", want, output)
		}
	}
	if strings.Contains(output, "transport") {
		t.Error("Unset fields should not be logged")
	}
}

func TestDetach(t *testing.T) {
	parent, cancel := context.WithTimeout(WithSessionID(context.Background(), "s"), time.Millisecond)
	defer cancel()

	detached := Detach(parent)
	<-parent.Done()

	if detached.Err() != nil {
		t.Error("Detached context should not be canceled with its parent")
	}
	if GetSessionID(detached) != "s" {
		t.Error("Detached context should keep tracing values")
	}
}
