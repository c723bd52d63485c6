package pubsub

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/chatmesh/server/internal/hub"
	"github.com/chatmesh/server/pkg/log"
)

// Bridge mirrors hub rooms onto broker channels. A room with local
// members holds one channel subscription; events published anywhere in
// the cluster come back through that subscription and are fanned out to
// the local members. The publishing process receives its own events the
// same way, which keeps per-room delivery in broker order everywhere.
type Bridge struct {
	broker Broker
	hub    *hub.Hub

	ctx     context.Context
	cancels map[string]context.CancelFunc // room -> subscription cancel
	mu      sync.Mutex
}

func NewBridge(broker Broker, h *hub.Hub) *Bridge {
	b := &Bridge{
		broker:  broker,
		hub:     h,
		ctx:     context.Background(),
		cancels: make(map[string]context.CancelFunc),
	}
	h.OnRoomActive = b.roomActive
	h.OnRoomIdle = b.roomIdle
	return b
}

// Start sets the context under which room subscriptions run. Call
// before the hub starts accepting clients.
func (b *Bridge) Start(ctx context.Context) {
	b.mu.Lock()
	b.ctx = ctx
	b.mu.Unlock()
}

// Broadcast publishes an event to a room across all processes. When the
// broker is unreachable, delivery degrades to the local process only:
// the operation itself must not fail on broker trouble.
func (b *Bridge) Broadcast(ctx context.Context, room, eventType string, exclude string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	event := &Event{Type: eventType, Room: room, Exclude: exclude, Payload: data}
	if err := b.broker.Publish(ctx, RoomChannel(room), event); err != nil {
		log.L().Warn().Err(err).
			Str(log.FieldRoom, room).
			Str(log.FieldEvent, eventType).
			Msg("broker unavailable, degrading to local fan-out")
		b.hub.Broadcast(room, data, exclude)
	}
	return nil
}

func (b *Bridge) roomActive(room string) {
	b.mu.Lock()
	if _, ok := b.cancels[room]; ok {
		b.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(b.ctx)
	b.cancels[room] = cancel
	b.mu.Unlock()

	events, err := b.broker.Subscribe(ctx, RoomChannel(room))
	if err != nil {
		log.L().Warn().Err(err).Str(log.FieldRoom, room).
			Msg("broker unavailable, room limited to local fan-out")
		b.dropSubscription(room)
		return
	}

	go func() {
		for event := range events {
			b.hub.Broadcast(event.Room, event.Payload, event.Exclude)
		}
	}()
}

func (b *Bridge) roomIdle(room string) {
	b.dropSubscription(room)
	if err := b.broker.Unsubscribe(b.ctx, RoomChannel(room)); err != nil {
		log.L().Warn().Err(err).Str(log.FieldRoom, room).Msg("failed to unsubscribe room channel")
	}
}

func (b *Bridge) dropSubscription(room string) {
	b.mu.Lock()
	if cancel, ok := b.cancels[room]; ok {
		delete(b.cancels, room)
		cancel()
	}
	b.mu.Unlock()
}
