package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-redis/redis/v8"
	"github.com/goccy/go-json"

	"promohub/internal/models"
)

// EventsChannel is the pub/sub channel every process publishes state changes
// on.
const EventsChannel = "promohub:events"

// ErrNoSubscribers is returned by Publish when no process, this one included,
// is listening on EventsChannel.
var ErrNoSubscribers = errors.New("redis: no subscribers on events channel")

type Client struct {
	rdb    *redis.Client
	logger *slog.Logger
}

func NewClient(ctx context.Context, redisURL string, logger *slog.Logger) (*Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: parsing url: %w", err)
	}

	rdb := redis.NewClient(opt)

	// Test connection
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: connecting: %w", err)
	}

	logger.Info("[REDIS] Connected to Redis", "addr", opt.Addr)
	return newClient(rdb, logger), nil
}

func newClient(rdb *redis.Client, logger *slog.Logger) *Client {
	return &Client{rdb: rdb, logger: logger}
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// Publish sends one envelope to every subscribed process, this one included.
// A publish nobody received returns ErrNoSubscribers.
func (c *Client) Publish(ctx context.Context, env models.Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		c.logger.Error("[REDIS] Failed to marshal envelope", "recipient", env.Recipient, "error", err)
		return err
	}

	receivers, err := c.rdb.Publish(ctx, EventsChannel, payload).Result()
	if err != nil {
		c.logger.Error("[REDIS] Failed to publish event", "channel", EventsChannel, "error", err)
		return err
	}
	if receivers == 0 {
		c.logger.Warn("[REDIS] Event published with no subscribers", "channel", EventsChannel, "recipient", env.Recipient)
		return ErrNoSubscribers
	}

	return nil
}
