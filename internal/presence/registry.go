package presence

import (
	"context"
	"sync"
	"time"

	"github.com/chatmesh/server/internal/cache"
	"github.com/chatmesh/server/internal/domain"
	"github.com/chatmesh/server/internal/hub"
	"github.com/chatmesh/server/internal/pubsub"
	"github.com/chatmesh/server/internal/repository"
	"github.com/chatmesh/server/pkg/log"
)

// Registry tracks which principals have live connections on this
// process and propagates online/offline transitions across the cluster.
//
// Only the first local connection of a principal publishes an online
// transition and only the close of the last one publishes offline; the
// broker carries the transition to every other process. A principal
// holds at most one connection per process, so "my last local
// connection closed" is the accepted approximation of "went offline".
type Registry struct {
	broker        pubsub.Broker
	bridge        *pubsub.Bridge
	users         repository.UserRepository
	conversations repository.ConversationRepository
	cache         cache.UserCache // may be nil

	ctx      context.Context
	local    map[string]map[string]struct{} // principal -> local connection ids
	watchers map[string]*watch              // target principal -> presence watch
	mu       sync.Mutex
}

// watch is one broker subscription on a target's presence channel plus
// the local observer connections it feeds.
type watch struct {
	cancel    context.CancelFunc
	observers map[string]*hub.Client
}

func NewRegistry(broker pubsub.Broker, bridge *pubsub.Bridge, users repository.UserRepository, conversations repository.ConversationRepository, userCache cache.UserCache) *Registry {
	return &Registry{
		broker:        broker,
		bridge:        bridge,
		users:         users,
		conversations: conversations,
		cache:         userCache,
		ctx:           context.Background(),
		local:         make(map[string]map[string]struct{}),
		watchers:      make(map[string]*watch),
	}
}

// Start sets the context presence watches run under.
func (r *Registry) Start(ctx context.Context) {
	r.mu.Lock()
	r.ctx = ctx
	r.mu.Unlock()
}

// MarkOnline registers a local connection for the principal. The first
// local connection publishes the online transition, persists it, and
// notifies the principal's contacts.
func (r *Registry) MarkOnline(ctx context.Context, userID, connID string) error {
	r.mu.Lock()
	conns, ok := r.local[userID]
	if !ok {
		conns = make(map[string]struct{})
		r.local[userID] = conns
	}
	conns[connID] = struct{}{}
	first := len(conns) == 1
	r.mu.Unlock()

	if !first {
		return nil
	}

	now := time.Now().UTC()
	if err := r.users.SetPresence(ctx, userID, true, &now); err != nil {
		return err
	}
	r.invalidate(ctx, userID)

	update := &domain.PresenceUpdateEvent{
		Type:     domain.EvPresenceUpdate,
		UserID:   userID,
		IsOnline: true,
		LastSeen: nil,
	}
	r.publish(ctx, userID, update)
	r.notifyContacts(ctx, userID, update)
	return nil
}

// MarkOffline removes a local connection. Closing the principal's last
// local connection publishes the offline transition exactly once, with
// a non-nil lastSeen.
func (r *Registry) MarkOffline(ctx context.Context, userID, connID string) error {
	r.mu.Lock()
	conns, ok := r.local[userID]
	if ok {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(r.local, userID)
		}
	}
	last := ok && len(conns) == 0
	r.mu.Unlock()

	if !last {
		return nil
	}

	now := time.Now().UTC()
	if err := r.users.SetPresence(ctx, userID, false, &now); err != nil {
		return err
	}
	r.invalidate(ctx, userID)

	update := &domain.PresenceUpdateEvent{
		Type:     domain.EvPresenceUpdate,
		UserID:   userID,
		IsOnline: false,
		LastSeen: &now,
	}
	r.publish(ctx, userID, update)
	r.notifyContacts(ctx, userID, update)
	return nil
}

// IsOnlineLocally reports whether the principal has a live connection
// on this process.
func (r *Registry) IsOnlineLocally(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.local[userID]) > 0
}

// Subscribe attaches an observer connection to the target's presence
// channel. The first observer on this process opens the broker
// subscription.
func (r *Registry) Subscribe(observer *hub.Client, targetID string) error {
	r.mu.Lock()
	w, ok := r.watchers[targetID]
	if ok {
		w.observers[observer.ID] = observer
		r.mu.Unlock()
		return nil
	}

	ctx, cancel := context.WithCancel(r.ctx)
	w = &watch{
		cancel:    cancel,
		observers: map[string]*hub.Client{observer.ID: observer},
	}
	r.watchers[targetID] = w
	r.mu.Unlock()

	events, err := r.broker.Subscribe(ctx, pubsub.PresenceChannel(targetID))
	if err != nil {
		r.mu.Lock()
		delete(r.watchers, targetID)
		r.mu.Unlock()
		cancel()
		return domain.ErrBrokerUnavailable
	}

	go r.fanOut(targetID, events)
	return nil
}

// Unsubscribe detaches an observer. Idempotent and safe when the
// observer never subscribed.
func (r *Registry) Unsubscribe(observer *hub.Client, targetID string) {
	r.mu.Lock()
	w, ok := r.watchers[targetID]
	if ok {
		delete(w.observers, observer.ID)
		if len(w.observers) == 0 {
			delete(r.watchers, targetID)
		}
	}
	lastObserver := ok && len(w.observers) == 0
	r.mu.Unlock()

	if lastObserver {
		w.cancel()
		if err := r.broker.Unsubscribe(context.Background(), pubsub.PresenceChannel(targetID)); err != nil {
			log.L().Warn().Err(err).Str(log.FieldUserID, targetID).Msg("failed to unsubscribe presence channel")
		}
	}
}

// DropObserver removes a closed connection from every presence watch.
func (r *Registry) DropObserver(observer *hub.Client) {
	r.mu.Lock()
	var targets []string
	for targetID, w := range r.watchers {
		if _, ok := w.observers[observer.ID]; ok {
			targets = append(targets, targetID)
		}
	}
	r.mu.Unlock()

	for _, targetID := range targets {
		r.Unsubscribe(observer, targetID)
	}
}

func (r *Registry) fanOut(targetID string, events <-chan *pubsub.Event) {
	for event := range events {
		var update domain.PresenceUpdateEvent
		if err := event.UnmarshalPayload(&update); err != nil {
			log.L().Warn().Err(err).Str(log.FieldUserID, targetID).Msg("invalid presence payload")
			continue
		}

		r.mu.Lock()
		w, ok := r.watchers[targetID]
		var observers []*hub.Client
		if ok {
			observers = make([]*hub.Client, 0, len(w.observers))
			for _, c := range w.observers {
				observers = append(observers, c)
			}
		}
		r.mu.Unlock()

		for _, c := range observers {
			c.SendEvent(&update)
		}
	}
}

func (r *Registry) publish(ctx context.Context, userID string, update *domain.PresenceUpdateEvent) {
	event, err := pubsub.NewEvent(domain.EvPresenceUpdate, "", update)
	if err != nil {
		return
	}
	if err := r.broker.Publish(ctx, pubsub.PresenceChannel(userID), event); err != nil {
		log.L().Warn().Err(err).Str(log.FieldUserID, userID).Msg("broker unavailable, presence update not propagated")
	}
}

// notifyContacts pushes the transition to each private-conversation
// partner's personal room, independent of explicit subscriptions.
func (r *Registry) notifyContacts(ctx context.Context, userID string, update *domain.PresenceUpdateEvent) {
	partners, err := r.conversations.PrivatePartners(ctx, userID)
	if err != nil {
		log.L().Warn().Err(err).Str(log.FieldUserID, userID).Msg("failed to resolve presence contacts")
		return
	}

	for _, partnerID := range partners {
		if err := r.bridge.Broadcast(ctx, pubsub.UserRoom(partnerID), domain.EvPresenceUpdate, "", update); err != nil {
			log.L().Warn().Err(err).Str(log.FieldUserID, partnerID).Msg("failed to notify contact")
		}
	}
}

func (r *Registry) invalidate(ctx context.Context, userID string) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Invalidate(ctx, userID); err != nil {
		log.L().Warn().Err(err).Str(log.FieldUserID, userID).Msg("failed to invalidate profile cache")
	}
}
