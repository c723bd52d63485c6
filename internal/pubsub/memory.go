package pubsub

import (
	"context"
	"sync"
)

// MemoryBroker is a process-local Broker with per-channel ordered
// delivery. It backs single-process deployments and tests; production
// multi-process deployments use RedisBroker.
type MemoryBroker struct {
	subscribers map[string]chan *Event
	mu          sync.Mutex
	closed      bool
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{
		subscribers: make(map[string]chan *Event),
	}
}

func (m *MemoryBroker) Publish(ctx context.Context, channel string, event *Event) error {
	m.mu.Lock()
	ch, ok := m.subscribers[channel]
	m.mu.Unlock()

	if !ok {
		return nil
	}

	select {
	case ch <- event:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (m *MemoryBroker) Subscribe(ctx context.Context, channel string) (<-chan *Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ch, ok := m.subscribers[channel]; ok {
		return ch, nil
	}

	ch := make(chan *Event, 100)
	m.subscribers[channel] = ch
	return ch, nil
}

func (m *MemoryBroker) Unsubscribe(ctx context.Context, channel string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ch, ok := m.subscribers[channel]; ok {
		delete(m.subscribers, channel)
		close(ch)
	}
	return nil
}

func (m *MemoryBroker) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	for channel, ch := range m.subscribers {
		delete(m.subscribers, channel)
		close(ch)
	}
	return nil
}
