package notify

import (
	"context"
	"encoding/json"
	"fmt"

	webpush "github.com/SherClockHolmes/webpush-go"
	"golang.org/x/sync/errgroup"

	"github.com/chatmesh/server/internal/config"
	"github.com/chatmesh/server/pkg/log"
)

// Push services throttle aggressively; keep concurrent deliveries low.
const maxConcurrentPushes = 4

// WebPushGateway sends Web Push notifications to registered device
// subscriptions using VAPID keys.
type WebPushGateway struct {
	cfg config.PushConfig
}

func NewWebPushGateway(cfg config.PushConfig) (*WebPushGateway, error) {
	if cfg.VAPIDPublicKey == "" || cfg.VAPIDPrivateKey == "" {
		return nil, fmt.Errorf("push enabled but VAPID keys are not configured")
	}
	return &WebPushGateway{cfg: cfg}, nil
}

func (g *WebPushGateway) Send(ctx context.Context, targets []Target, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(maxConcurrentPushes)

	for _, target := range targets {
		for _, sub := range target.Subscriptions {
			userID := target.UserID
			s := &webpush.Subscription{
				Endpoint: sub.Endpoint,
				Keys: webpush.Keys{
					P256dh: sub.P256dh,
					Auth:   sub.Auth,
				},
			}

			group.Go(func() error {
				resp, err := webpush.SendNotificationWithContext(ctx, payload, s, &webpush.Options{
					Subscriber:      g.cfg.Subscriber,
					VAPIDPublicKey:  g.cfg.VAPIDPublicKey,
					VAPIDPrivateKey: g.cfg.VAPIDPrivateKey,
					TTL:             g.cfg.TTL,
				})
				if err != nil {
					// One dead endpoint must not abort the rest.
					log.L().Warn().Err(err).Str(log.FieldUserID, userID).Msg("push delivery failed")
					return nil
				}
				resp.Body.Close()
				return nil
			})
		}
	}
	return group.Wait()
}
