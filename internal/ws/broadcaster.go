package ws

import (
	"context"
	"log/slog"

	"promohub/internal/models"
)

// Relay carries envelopes to every process, which feed them back into their
// hub through Hub.Deliver.
type Relay interface {
	Publish(ctx context.Context, env models.Envelope) error
}

// Broadcaster publishes state changes made outside the socket layer. Delivery
// is at most once: nothing is retried, offline users miss the event.
type Broadcaster struct {
	hub    *Hub
	relay  Relay
	logger *slog.Logger
}

// NewBroadcaster returns a broadcaster delivering straight to hub, or through
// relay when it is non-nil.
func NewBroadcaster(hub *Hub, relay Relay, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{hub: hub, relay: relay, logger: logger}
}

// Publish sends e to every connection.
func (b *Broadcaster) Publish(ctx context.Context, e models.Event) {
	b.dispatch(ctx, models.Envelope{}, e)
}

// SendTo sends e to every connection of userID.
func (b *Broadcaster) SendTo(ctx context.Context, userID string, e models.Event) {
	if userID == "" {
		return
	}
	b.dispatch(ctx, models.Envelope{Recipient: userID}, e)
}

// Disconnect sends e to every connection of userID and then closes them, on
// whichever process holds them.
func (b *Broadcaster) Disconnect(ctx context.Context, userID string, e models.Event) {
	if userID == "" {
		return
	}
	b.dispatch(ctx, models.Envelope{Recipient: userID, Disconnect: true}, e)
}

func (b *Broadcaster) dispatch(ctx context.Context, env models.Envelope, e models.Event) {
	payload, err := models.Encode(e)
	if err != nil {
		b.logger.Error("[BROADCAST] Failed to encode event", "type", e.Kind(), "error", err)
		return
	}
	env.Payload = payload

	if b.relay != nil {
		err := b.relay.Publish(ctx, env)
		if err == nil {
			return
		}
		b.logger.Warn("[BROADCAST] Relay publish failed, delivering locally", "type", e.Kind(), "error", err)
	}
	b.hub.Deliver(env)
}
