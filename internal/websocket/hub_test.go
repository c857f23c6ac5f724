package websocket

import (
	"path/filepath"
	"testing"
	"time"

	"collab-notes-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	log := logger.NewZapLogger(filepath.Join(t.TempDir(), "hub.log"), false)
	h := NewHub(nil, log)
	go h.Run()
	return h
}

func (h *Hub) clientCount(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestBroadcastReachesRegisteredClients(t *testing.T) {
	h := newTestHub(t)
	userID := uuid.New()

	client := &Client{Hub: h, UserID: userID, Send: make(chan []byte, 4)}
	h.register <- client
	waitFor(t, func() bool { return h.clientCount(userID) == 1 })

	h.Broadcast([]byte(`{"type":"NOTE_CREATED"}`))

	select {
	case msg := <-client.Send:
		assert.Equal(t, `{"type":"NOTE_CREATED"}`, string(msg))
	case <-time.After(time.Second):
		t.Fatal("no message delivered")
	}
}

func TestSlowClientIsDroppedWithoutPanic(t *testing.T) {
	h := newTestHub(t)
	userID := uuid.New()

	// A client whose buffer is already full cannot take more messages.
	slow := &Client{Hub: h, UserID: userID, Send: make(chan []byte, 1)}
	slow.Send <- []byte("backlog")
	h.register <- slow
	waitFor(t, func() bool { return h.clientCount(userID) == 1 })

	// Repeated broadcasts must drop the client exactly once; a second
	// drop attempt for the same client must be a no-op.
	h.Broadcast([]byte("one"))
	h.Broadcast([]byte("two"))

	waitFor(t, func() bool { return h.clientCount(userID) == 0 })

	// The channel was closed by the unregister path, once.
	<-slow.Send // drain the backlog entry
	_, open := <-slow.Send
	assert.False(t, open)

	// The hub is still alive and serving other clients.
	other := &Client{Hub: h, UserID: uuid.New(), Send: make(chan []byte, 4)}
	h.register <- other
	waitFor(t, func() bool { return h.clientCount(other.UserID) == 1 })
	h.Broadcast([]byte("three"))
	select {
	case msg := <-other.Send:
		require.Equal(t, "three", string(msg))
	case <-time.After(time.Second):
		t.Fatal("hub stopped delivering after dropping a slow client")
	}
}
