package gateway

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcaster_NotifyStreamingSessions(t *testing.T) {
	serverConn, clientConn, cleanup := websocketConnPair(t)
	defer cleanup()

	registry := NewSessionRegistry()
	_, err := registry.Open(SessionWebSocket, "127.0.0.1", serverConn, nil)
	require.NoError(t, err)
	_, err = registry.Open(SessionHTTP, "127.0.0.1", nil, nil)
	require.NoError(t, err)

	broadcaster := NewBroadcaster(registry, zerolog.Nop())
	delivered := broadcaster.Notify(ToolsListChanged, nil)
	assert.Equal(t, 1, delivered, "only streaming sessions are notified")

	var msg map[string]interface{}
	require.NoError(t, clientConn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, clientConn.ReadJSON(&msg))

	assert.Equal(t, "2.0", msg["jsonrpc"])
	assert.Equal(t, ToolsListChanged, msg["method"])
	assert.NotContains(t, msg, "id")
	assert.NotContains(t, msg, "params")
}

func TestBroadcaster_NoSessions(t *testing.T) {
	broadcaster := NewBroadcaster(NewSessionRegistry(), zerolog.Nop())
	assert.Equal(t, 0, broadcaster.Notify(ToolsListChanged, nil))
}

func TestSessionRegistry(t *testing.T) {
	registry := NewSessionRegistry()

	first, err := registry.Open(SessionHTTP, "10.0.0.1:1234", nil, nil)
	require.NoError(t, err)
	second, err := registry.Open(SessionHTTP, "10.0.0.2:1234", nil, nil)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 2, registry.Count())

	got, ok := registry.Get(first.ID)
	require.True(t, ok)
	assert.Same(t, first, got)

	first.ConnectedAt = first.ConnectedAt.Add(-time.Second)
	infos := registry.Infos()
	require.Len(t, infos, 2)
	assert.Equal(t, first.ID, infos[0].ID)
	assert.False(t, infos[0].Idle)

	assert.Error(t, first.Write([]byte("{}")), "http sessions cannot stream")

	assert.True(t, registry.Remove(first.ID))
	assert.False(t, registry.Remove(first.ID))
	assert.Equal(t, 1, registry.Count())
	assert.Empty(t, registry.Streaming())
}

func websocketConnPair(t *testing.T) (*websocket.Conn, *websocket.Conn, func()) {
	t.Helper()

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	serverConnCh := make(chan *websocket.Conn, 1)
	errCh := make(chan error, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			errCh <- err
			return
		}
		serverConnCh <- conn
	}))

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	clientConn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	var serverConn *websocket.Conn
	select {
	case serverConn = <-serverConnCh:
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server websocket connection")
	}

	cleanup := func() {
		_ = clientConn.Close()
		_ = serverConn.Close()
		srv.Close()
	}

	return serverConn, clientConn, cleanup
}
