package redis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-redis/redis/v8"
	"github.com/goccy/go-json"

	"promohub/internal/models"
)

// Subscription is a confirmed listener on EventsChannel.
type Subscription struct {
	pubsub *redis.PubSub
	logger *slog.Logger
}

// Subscribe joins EventsChannel and waits for the server to confirm it, so
// that a publish made after it returns is received.
func (c *Client) Subscribe(ctx context.Context) (*Subscription, error) {
	c.logger.Info("[REDIS] Starting Redis pub/sub subscription...")

	pubsub := c.rdb.Subscribe(ctx, EventsChannel)

	// Wait for subscription confirmation
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis: confirming subscription: %w", err)
	}

	c.logger.Info("[REDIS] Subscription confirmed, listening for messages...", "channel", EventsChannel)
	return &Subscription{pubsub: pubsub, logger: c.logger}, nil
}

// Forward hands every decoded envelope to deliver until ctx is cancelled or
// the subscription closes, then closes the subscription.
func (s *Subscription) Forward(ctx context.Context, deliver func(models.Envelope)) {
	defer s.pubsub.Close()

	ch := s.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("[REDIS] Subscription stopped")
			return
		case msg, ok := <-ch:
			if !ok {
				s.logger.Info("[REDIS] Redis pub/sub channel closed")
				return
			}

			var env models.Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				s.logger.Error("[REDIS] Error unmarshaling envelope", "channel", msg.Channel, "error", err)
				continue
			}
			if len(env.Payload) == 0 {
				s.logger.Warn("[REDIS] Envelope without payload", "channel", msg.Channel)
				continue
			}

			deliver(env)
		}
	}
}
