package streaming

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhinpan/cc-boss/internal/bus"
	"github.com/jhinpan/cc-boss/internal/logging"
)

var testUpgrader = websocket.Upgrader{}

func newTestServer(t *testing.T, hub *Hub, taskID int64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		client := hub.Register(conn)
		hub.Subscribe(client, taskID)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHubRelaysBusEventsToWebSocketClient(t *testing.T) {
	b := bus.New()
	hub := NewHub(b, logging.Default())
	srv := newTestServer(t, hub, 1)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Give the server goroutine a moment to register and subscribe before
	// publishing, since the subscription happens asynchronously relative
	// to the client's dial returning.
	time.Sleep(50 * time.Millisecond)

	b.Publish(1, "assistant", "hello from the agent")

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello from the agent")
}

func TestHubDoesNotRelayEventsForOtherTasks(t *testing.T) {
	b := bus.New()
	hub := NewHub(b, logging.Default())
	srv := newTestServer(t, hub, 1)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	time.Sleep(50 * time.Millisecond)
	b.Publish(2, "assistant", "not for you")
	b.Publish(1, "assistant", "for you")

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(data), "for you")
	assert.NotContains(t, string(data), "not for you")
}
