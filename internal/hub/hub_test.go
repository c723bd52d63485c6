package hub

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatmesh/server/internal/config"
)

func testClient(h *Hub, id string) *Client {
	return NewClient(id, h, nil, config.WebSocketConfig{
		PingInterval:   25 * time.Second,
		PongWait:       60 * time.Second,
		WriteWait:      10 * time.Second,
		MaxMessageSize: 65536,
	})
}

func waitRegistered(t *testing.T, h *Hub, id string) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		h.mu.RLock()
		_, ok := h.clients[id]
		h.mu.RUnlock()
		if ok {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("client %s never registered", id)
}

func recvData(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case data := <-c.Send:
		return data
	case <-time.After(time.Second):
		t.Fatal("no message delivered")
		return nil
	}
}

func TestJoinRoomFirstAndLast(t *testing.T) {
	h := NewHub()
	a := testClient(h, "a")
	b := testClient(h, "b")

	assert.True(t, h.JoinRoom(a, "conversation:1"), "first member should activate the room")
	assert.False(t, h.JoinRoom(b, "conversation:1"), "second member should not re-activate")
	assert.Equal(t, 2, h.RoomSize("conversation:1"))

	assert.False(t, h.LeaveRoom(a, "conversation:1"))
	assert.True(t, h.LeaveRoom(b, "conversation:1"), "last member leaving should idle the room")
	assert.Equal(t, 0, h.RoomSize("conversation:1"))
}

func TestJoinRoomIdempotent(t *testing.T) {
	h := NewHub()
	a := testClient(h, "a")

	assert.True(t, h.JoinRoom(a, "conversation:1"))
	assert.False(t, h.JoinRoom(a, "conversation:1"), "rejoining must not fire activation again")
	assert.Equal(t, 1, h.RoomSize("conversation:1"))

	assert.True(t, h.LeaveRoom(a, "conversation:1"))
	assert.False(t, h.LeaveRoom(a, "conversation:1"), "leaving twice must be a no-op")
}

func TestRoomCallbacks(t *testing.T) {
	h := NewHub()
	var active, idle []string
	h.OnRoomActive = func(room string) { active = append(active, room) }
	h.OnRoomIdle = func(room string) { idle = append(idle, room) }

	a := testClient(h, "a")
	b := testClient(h, "b")

	h.JoinRoom(a, "conversation:1")
	h.JoinRoom(b, "conversation:1")
	require.Equal(t, []string{"conversation:1"}, active)

	h.LeaveRoom(a, "conversation:1")
	require.Empty(t, idle)
	h.LeaveRoom(b, "conversation:1")
	require.Equal(t, []string{"conversation:1"}, idle)
}

func TestBroadcastDeliversToRoomMembers(t *testing.T) {
	h := NewHub()
	go h.Run()

	a := testClient(h, "a")
	b := testClient(h, "b")
	c := testClient(h, "c")

	h.Register(a)
	h.Register(b)
	h.Register(c)
	waitRegistered(t, h, "c")

	h.JoinRoom(a, "conversation:1")
	h.JoinRoom(b, "conversation:1")
	h.JoinRoom(c, "conversation:2")

	h.Broadcast("conversation:1", []byte("hello"), "")

	assert.Equal(t, "hello", string(recvData(t, a)))
	assert.Equal(t, "hello", string(recvData(t, b)))

	select {
	case data := <-c.Send:
		t.Fatalf("client outside room received %q", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroadcastExcludesSender(t *testing.T) {
	h := NewHub()
	go h.Run()

	a := testClient(h, "a")
	b := testClient(h, "b")

	h.Register(a)
	h.Register(b)
	waitRegistered(t, h, "b")

	h.JoinRoom(a, "conversation:1")
	h.JoinRoom(b, "conversation:1")

	h.Broadcast("conversation:1", []byte("typing"), "a")

	assert.Equal(t, "typing", string(recvData(t, b)))
	select {
	case data := <-a.Send:
		t.Fatalf("excluded client received %q", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnregisterIdlesRooms(t *testing.T) {
	h := NewHub()
	go h.Run()

	idle := make(chan string, 4)
	h.OnRoomIdle = func(room string) { idle <- room }

	a := testClient(h, "a")
	h.Register(a)
	waitRegistered(t, h, "a")

	h.JoinRoom(a, "conversation:1")
	h.JoinRoom(a, "user:u1")

	h.Unregister(a)

	got := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case room := <-idle:
			got[room] = true
		case <-time.After(time.Second):
			t.Fatal("room never went idle")
		}
	}
	assert.True(t, got["conversation:1"])
	assert.True(t, got["user:u1"])

	// Send channel is closed as part of removal.
	_, open := <-a.Send
	assert.False(t, open)
	assert.False(t, h.InRoom("a", "conversation:1"))
}

func TestSendEventAfterUnregisterIsDropped(t *testing.T) {
	h := NewHub()
	go h.Run()

	a := testClient(h, "a")
	h.Register(a)
	waitRegistered(t, h, "a")

	h.Unregister(a)
	_, open := <-a.Send
	require.False(t, open)

	// A presence watch can still hold this client; the late send must
	// be dropped, not panic on the closed channel.
	require.NoError(t, a.SendEvent(map[string]string{"type": "presence_update"}))
	require.NoError(t, a.SendEvent(map[string]string{"type": "presence_update"}))
}

func TestInRoom(t *testing.T) {
	h := NewHub()
	a := testClient(h, "a")

	assert.False(t, h.InRoom("a", "conversation:1"))
	h.JoinRoom(a, "conversation:1")
	assert.True(t, h.InRoom("a", "conversation:1"))
	assert.False(t, h.InRoom("a", "conversation:2"))
}
