package status

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func dial(t *testing.T, h *Hub) *websocket.Conn {
	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) Status {
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var s Status
	require.NoError(t, json.Unmarshal(data, &s))
	return s
}

func TestHubBroadcast(t *testing.T) {
	h := NewHub(nil)
	defer h.Close()
	conn := dial(t, h)

	h.Progress("Exporting Meshes...", 50)
	s := read(t, conn)
	assert.Equal(t, "Exporting Meshes...", s.Message)
	assert.Equal(t, PROGRESS, s.Type)
	assert.InDelta(t, 0.5, s.Progress, 1e-6)

	h.Notify(true, "/tmp/out.dae")
	s = read(t, conn)
	assert.Equal(t, DONE, s.Type)
	assert.Equal(t, "/tmp/out.dae", s.Path)
}

func TestHubReplaysLastMessage(t *testing.T) {
	h := NewHub(nil)
	defer h.Close()

	h.Notify(false, "broken.dae")
	// wait for the broadcaster to pick it up
	require.Eventually(t, func() bool {
		h.lock.Lock()
		defer h.lock.Unlock()
		return h.last != nil
	}, 5*time.Second, 10*time.Millisecond)

	s := read(t, dial(t, h))
	assert.Equal(t, ERROR, s.Type)
	assert.Equal(t, "broken.dae", s.Path)
}

func TestHubDropsDisconnectedClient(t *testing.T) {
	h := NewHub(nil)
	defer h.Close()

	conn := dial(t, h)
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	// well before the next ping tick
	require.Eventually(t, func() bool { return h.ClientCount() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestReporter(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := Reporter{Log: zap.New(core)}

	r.Progress("Saving File...", 80)
	r.Notify(false, "a.obj")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "Saving File...", entries[0].Message)
	assert.Equal(t, int64(80), entries[0].ContextMap()["percent"])
	assert.Equal(t, zap.ErrorLevel, entries[1].Level)
}
