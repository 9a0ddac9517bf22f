package stdio

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/harun/apibridge/pkg/dispatch"
	"github.com/harun/apibridge/pkg/executor"
	"github.com/harun/apibridge/pkg/registry"
	"github.com/harun/apibridge/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDispatcher(t *testing.T) *dispatch.Dispatcher {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "apis.json"), store.WithReservedNames(registry.BuiltinNames()...))
	require.NoError(t, err)

	return dispatch.New(dispatch.Config{
		Store:    s,
		Registry: registry.New(s, registry.AdminGate{}),
		Executor: executor.New(executor.DefaultConfig(), executor.WithVariables(s)),
		Version:  "test",
	})
}

func toolCall(id int, name string, args map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  "tools/call",
		"params":  map[string]interface{}{"name": name, "arguments": args},
	}
}

func TestServeBatchMembersRunInOrder(t *testing.T) {
	var inFlight, maxSeen atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			seen := maxSeen.Load()
			if n <= seen || maxSeen.CompareAndSwap(seen, n) {
				break
			}
		}
		time.Sleep(30 * time.Millisecond)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer upstream.Close()

	// The tool is registered and called within the same batch.
	batch := []interface{}{
		toolCall(1, registry.AddAPI, map[string]interface{}{
			"name":        "slow",
			"description": "Slow endpoint",
			"base_url":    upstream.URL,
			"path":        "/slow",
			"method":      "GET",
		}),
	}
	for id := 2; id <= 5; id++ {
		batch = append(batch, toolCall(id, "slow", map[string]interface{}{}))
	}
	frame, err := json.Marshal(batch)
	require.NoError(t, err)

	var out bytes.Buffer
	in := strings.NewReader(string(frame) + "\n")
	require.NoError(t, NewServer(newDispatcher(t)).Serve(context.Background(), in, &out))

	var resps []struct {
		ID     int `json:"id"`
		Result struct {
			IsError bool `json:"isError"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(out.Bytes()), &resps))
	require.Len(t, resps, 5)
	for i, resp := range resps {
		assert.Equal(t, i+1, resp.ID)
		assert.False(t, resp.Result.IsError, "member %d failed", resp.ID)
	}
	assert.Equal(t, int32(1), maxSeen.Load(), "batch members overlapped")
}
