package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/chatmesh/server/internal/config"
	"github.com/chatmesh/server/pkg/log"
)

// RedisBroker implements Broker on Redis pub/sub. Redis preserves
// publish order per channel, which is the only ordering the engine
// relies on.
type RedisBroker struct {
	client        *redis.Client
	subscriptions map[string]*redis.PubSub
	mu            sync.Mutex
}

func NewRedisBroker(cfg config.RedisConfig) (*RedisBroker, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisBroker{
		client:        client,
		subscriptions: make(map[string]*redis.PubSub),
	}, nil
}

func (r *RedisBroker) Publish(ctx context.Context, channel string, event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return r.client.Publish(ctx, channel, data).Err()
}

func (r *RedisBroker) Subscribe(ctx context.Context, channel string) (<-chan *Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.subscriptions[channel]; ok {
		return nil, fmt.Errorf("already subscribed to %s", channel)
	}

	pubsub := r.client.Subscribe(ctx, channel)

	// Wait for the subscription to be active so no published event
	// races ahead of it.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	r.subscriptions[channel] = pubsub

	eventCh := make(chan *Event, 100)
	go r.pump(ctx, channel, pubsub, eventCh)

	return eventCh, nil
}

// Unsubscribe is idempotent; unsubscribing a channel that was never
// subscribed is a no-op.
func (r *RedisBroker) Unsubscribe(ctx context.Context, channel string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if pubsub, ok := r.subscriptions[channel]; ok {
		delete(r.subscriptions, channel)
		return pubsub.Close()
	}
	return nil
}

func (r *RedisBroker) Close() error {
	r.mu.Lock()
	for channel, pubsub := range r.subscriptions {
		pubsub.Close()
		delete(r.subscriptions, channel)
	}
	r.mu.Unlock()

	return r.client.Close()
}

func (r *RedisBroker) pump(ctx context.Context, channel string, pubsub *redis.PubSub, eventCh chan<- *Event) {
	defer close(eventCh)

	ch := pubsub.Channel()
	l := log.L()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}

			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				l.Warn().Err(err).Str(log.FieldChannel, channel).Msg("broker: invalid event payload")
				continue
			}

			select {
			case eventCh <- &event:
			case <-ctx.Done():
				return
			default:
				l.Warn().Str(log.FieldChannel, channel).Msg("broker: subscriber channel full, dropping event")
			}
		}
	}
}
