package ws

import (
	"context"
	"errors"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTypes(t *testing.T) {
	assert.Nil(t, ParseTypes(""))
	assert.Nil(t, ParseTypes(" , ,"))
	assert.Equal(t, map[string]struct{}{"state": {}, "progress": {}}, ParseTypes("State, progress,,"))
}

type event struct {
	Type string `json:"type"`
	N    int    `json:"n"`
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestHubFiltersByType(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()

	all := dial(t, srv, "")
	onlyState := dial(t, srv, "?types=state")
	require.Eventually(t, func() bool { return hub.Clients() == 2 }, 2*time.Second, 10*time.Millisecond)

	hub.BroadcastJSON(event{Type: "progress", N: 1})
	hub.BroadcastJSON(event{Type: "state", N: 2})

	var got event
	require.NoError(t, all.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, all.ReadJSON(&got))
	assert.Equal(t, event{Type: "progress", N: 1}, got)
	require.NoError(t, all.ReadJSON(&got))
	assert.Equal(t, event{Type: "state", N: 2}, got)

	require.NoError(t, onlyState.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, onlyState.ReadJSON(&got))
	assert.Equal(t, event{Type: "state", N: 2}, got)

	_ = all.Close()
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestHandlerAfterHubStopped(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	exited := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(exited)
	}()
	cancel()
	<-exited

	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()

	// More connections than the registration buffer holds.
	for i := 0; i < 40; i++ {
		conn := dial(t, srv, "")
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, _, err := conn.ReadMessage()
		require.Error(t, err)
		var ne net.Error
		assert.False(t, errors.As(err, &ne) && ne.Timeout(), "connection %d left open", i)
	}
	assert.Equal(t, 0, hub.Clients())
}
