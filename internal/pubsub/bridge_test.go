package pubsub

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatmesh/server/internal/config"
	"github.com/chatmesh/server/internal/hub"
)

func bridgeClient(h *hub.Hub, id string) *hub.Client {
	return hub.NewClient(id, h, nil, config.WebSocketConfig{
		PingInterval:   25 * time.Second,
		PongWait:       60 * time.Second,
		WriteWait:      10 * time.Second,
		MaxMessageSize: 65536,
	})
}

func recv(t *testing.T, c *hub.Client) []byte {
	t.Helper()
	select {
	case data := <-c.Send:
		return data
	case <-time.After(time.Second):
		t.Fatal("no delivery")
		return nil
	}
}

func TestBroadcastLoopsBackThroughBroker(t *testing.T) {
	broker := NewMemoryBroker()
	h := hub.NewHub()
	b := NewBridge(broker, h)
	b.Start(context.Background())
	go h.Run()

	a := bridgeClient(h, "a")
	h.JoinRoom(a, "conversation:1")

	err := b.Broadcast(context.Background(), "conversation:1", "message_received", "", map[string]string{"content": "hi"})
	require.NoError(t, err)

	assert.Contains(t, string(recv(t, a)), `"content":"hi"`)
}

func TestBroadcastHonorsExclude(t *testing.T) {
	broker := NewMemoryBroker()
	h := hub.NewHub()
	b := NewBridge(broker, h)
	go h.Run()

	a := bridgeClient(h, "a")
	c := bridgeClient(h, "c")
	h.JoinRoom(a, "conversation:1")
	h.JoinRoom(c, "conversation:1")

	require.NoError(t, b.Broadcast(context.Background(), "conversation:1", "user_typing", "a", map[string]string{"userId": "u1"}))

	recv(t, c)
	select {
	case data := <-a.Send:
		t.Fatalf("excluded client received %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRoomIdleReleasesSubscription(t *testing.T) {
	broker := NewMemoryBroker()
	h := hub.NewHub()
	b := NewBridge(broker, h)
	go h.Run()

	a := bridgeClient(h, "a")
	h.JoinRoom(a, "conversation:1")
	h.LeaveRoom(a, "conversation:1")

	// Channel released: publishing finds no subscriber and a rejoin
	// re-opens the mirror.
	require.NoError(t, broker.Publish(context.Background(), RoomChannel("conversation:1"), &Event{Type: "x"}))

	h.JoinRoom(a, "conversation:1")
	require.NoError(t, b.Broadcast(context.Background(), "conversation:1", "message_received", "", map[string]string{"content": "back"}))
	assert.Contains(t, string(recv(t, a)), "back")
}

type failingBroker struct {
	*MemoryBroker
}

func (f *failingBroker) Publish(ctx context.Context, channel string, event *Event) error {
	return errors.New("broker down")
}

func TestBroadcastDegradesToLocalOnBrokerFailure(t *testing.T) {
	broker := &failingBroker{MemoryBroker: NewMemoryBroker()}
	h := hub.NewHub()
	b := NewBridge(broker, h)
	go h.Run()

	a := bridgeClient(h, "a")
	h.JoinRoom(a, "conversation:1")

	err := b.Broadcast(context.Background(), "conversation:1", "message_received", "", map[string]string{"content": "local"})
	require.NoError(t, err, "broker failure must not fail the operation")

	assert.Contains(t, string(recv(t, a)), "local")
}

func TestMemoryBrokerOrderedDelivery(t *testing.T) {
	broker := NewMemoryBroker()
	ctx := context.Background()

	events, err := broker.Subscribe(ctx, "ch")
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		ev, err := NewEvent("n", "", map[string]int{"seq": i})
		require.NoError(t, err)
		require.NoError(t, broker.Publish(ctx, "ch", ev))
	}

	for i := 0; i < 10; i++ {
		ev := <-events
		var payload map[string]int
		require.NoError(t, ev.UnmarshalPayload(&payload))
		assert.Equal(t, i, payload["seq"])
	}
}

func TestMemoryBrokerUnsubscribeClosesChannel(t *testing.T) {
	broker := NewMemoryBroker()
	ctx := context.Background()

	events, err := broker.Subscribe(ctx, "ch")
	require.NoError(t, err)
	require.NoError(t, broker.Unsubscribe(ctx, "ch"))

	_, open := <-events
	assert.False(t, open)

	// Publishing after unsubscribe is a silent no-op.
	require.NoError(t, broker.Publish(ctx, "ch", &Event{Type: "x"}))
}
