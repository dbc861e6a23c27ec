package realtime

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dial(t *testing.T, hub *Hub, userID string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.ServeWS(w, r, userID)
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.Eventually(t, func() bool { return hub.Connected(userID) > 0 }, time.Second, 10*time.Millisecond)
	return conn
}

func TestSendToUserReachesOnlyThatUser(t *testing.T) {
	hub := NewHub([]string{"*"})
	defer hub.Close()

	alice := dial(t, hub, "alice")
	_ = dial(t, hub, "bob")

	n := hub.SendToUser("alice", Event{Type: "receive_message", Data: map[string]string{"text": "hi"}})
	assert.Equal(t, 1, n)

	_ = alice.SetReadDeadline(time.Now().Add(time.Second))
	var got map[string]interface{}
	require.NoError(t, alice.ReadJSON(&got))
	assert.Equal(t, "receive_message", got["type"])
	assert.Equal(t, "hi", got["data"].(map[string]interface{})["text"])

	assert.Zero(t, hub.SendToUser("carol", Event{Type: "x"}))
}

func TestDisconnectUnregisters(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Close()

	conn := dial(t, hub, "dave")
	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool { return hub.Connected("dave") == 0 }, 2*time.Second, 10*time.Millisecond)
}
