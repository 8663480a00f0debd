package ws

import (
	"context"
	"log/slog"
	"time"

	"promohub/internal/metrics"
	"promohub/internal/models"
)

// outbound is one delivery request for the hub loop.
type outbound struct {
	to     *Client // a single connection
	userID string  // every connection of a user
	except *Client // broadcast skips this connection
	// origin, when set, cancels the delivery if that connection has already
	// been removed.
	origin *Client
	// roster replaces payload with the presence snapshot taken at delivery.
	roster bool
	// kick closes every connection of userID after payload is queued.
	kick    bool
	payload []byte
}

// Hub owns the set of live connections. Only the Run goroutine touches that
// set and writes into client send buffers; everything else enqueues.
type Hub struct {
	presence *Presence
	logger   *slog.Logger

	clients map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	outbound   chan outbound
	done       chan struct{}

	rosterInterval time.Duration
}

// NewHub creates a hub. A positive rosterInterval broadcasts online_users on
// that period while anyone is connected.
func NewHub(presence *Presence, rosterInterval time.Duration, logger *slog.Logger) *Hub {
	return &Hub{
		presence:       presence,
		logger:         logger,
		clients:        make(map[*Client]struct{}),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		outbound:       make(chan outbound, 1024),
		done:           make(chan struct{}),
		rosterInterval: rosterInterval,
	}
}

// Run processes hub requests until ctx is cancelled. On exit every send
// buffer is closed, which makes the write pumps close their sockets.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("[HUB] Starting hub event loop")

	var tick <-chan time.Time
	if h.rosterInterval > 0 {
		ticker := time.NewTicker(h.rosterInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	defer func() {
		close(h.done)
		for c := range h.clients {
			c.markClosed()
			close(c.send)
			h.presence.Unregister(c)
			delete(h.clients, c)
		}
		metrics.Connections.Set(0)
		metrics.OnlineUsers.Set(0)
		h.logger.Info("[HUB] Hub event loop stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case c := <-h.register:
			h.clients[c] = struct{}{}
			metrics.Connections.Inc()
			h.logger.Debug("[HUB] Client registered", "clients", len(h.clients))

		case c := <-h.unregister:
			h.remove([]*Client{c})

		case o := <-h.outbound:
			h.deliver(o)

		case <-tick:
			if len(h.clients) > 0 {
				h.deliver(outbound{roster: true})
			}
		}
	}
}

// Register adds c to the live set. It returns false once the hub has stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) enqueue(o outbound) {
	select {
	case h.outbound <- o:
	case <-h.done:
	}
}

// Broadcast delivers payload to every live connection, joined or not.
func (h *Hub) Broadcast(payload []byte) {
	h.enqueue(outbound{payload: payload})
}

func (h *Hub) BroadcastExcept(c *Client, payload []byte) {
	h.enqueue(outbound{except: c, payload: payload})
}

// SendToUser delivers payload to every connection bound to userID. Nothing
// happens when the user is offline.
func (h *Hub) SendToUser(userID string, payload []byte) {
	h.enqueue(outbound{userID: userID, payload: payload})
}

// Kick queues payload to every connection of userID and then closes them.
// Frames already in their buffers are still written before the close.
func (h *Hub) Kick(userID string, payload []byte) {
	h.enqueue(outbound{userID: userID, payload: payload, kick: true})
}

func (h *Hub) SendToClient(c *Client, payload []byte) {
	h.enqueue(outbound{to: c, payload: payload})
}

// SendRoster delivers the current online_users snapshot to c.
func (h *Hub) SendRoster(c *Client) {
	h.enqueue(outbound{to: c, roster: true})
}

// announce broadcasts payload, unless origin is gone by the time the hub
// gets to it.
func (h *Hub) announce(origin *Client, payload []byte) {
	h.enqueue(outbound{origin: origin, payload: payload})
}

func (h *Hub) announceRoster(origin *Client) {
	h.enqueue(outbound{origin: origin, roster: true})
}

// Deliver injects an envelope received from the relay.
func (h *Hub) Deliver(env models.Envelope) {
	switch {
	case env.Recipient == "":
		h.Broadcast(env.Payload)
	case env.Disconnect:
		h.Kick(env.Recipient, env.Payload)
	default:
		h.SendToUser(env.Recipient, env.Payload)
	}
}

func (h *Hub) deliver(o outbound) {
	if o.origin != nil {
		if _, live := h.clients[o.origin]; !live {
			return
		}
	}

	payload := o.payload
	if o.roster {
		payload = h.rosterPayload()
		if payload == nil {
			return
		}
	}

	var dead []*Client
	switch {
	case o.to != nil:
		if _, live := h.clients[o.to]; live && !h.trySend(o.to, payload) {
			dead = append(dead, o.to)
		}
	case o.userID != "":
		for _, c := range h.presence.Connections(o.userID) {
			if _, live := h.clients[c]; live && (!h.trySend(c, payload) || o.kick) {
				dead = append(dead, c)
			}
		}
		if o.kick && len(dead) > 0 {
			h.logger.Info("[HUB] Disconnecting user", "user", o.userID, "connections", len(dead))
		}
	default:
		dead = h.fanout(payload, o.except)
	}

	h.remove(dead)
}

// fanout sends to every live connection but except and returns the ones
// whose buffer was full.
func (h *Hub) fanout(payload []byte, except *Client) []*Client {
	var dead []*Client
	for c := range h.clients {
		if c == except {
			continue
		}
		if !h.trySend(c, payload) {
			dead = append(dead, c)
		}
	}
	return dead
}

func (h *Hub) trySend(c *Client, payload []byte) bool {
	select {
	case c.send <- payload:
		return true
	default:
		metrics.FramesDropped.WithLabelValues("slow_consumer").Inc()
		h.logger.Warn("[HUB] Client buffer full, disconnecting", "user", c.UserID())
		return false
	}
}

// remove closes and forgets connections. When one was the last connection of
// its user, everyone left hears user_left and then the new roster; those
// sends can in turn find more stalled connections, which join the queue.
func (h *Hub) remove(queue []*Client) {
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]

		if _, live := h.clients[c]; !live {
			continue
		}
		delete(h.clients, c)
		c.markClosed()
		close(c.send)
		metrics.Connections.Dec()

		userID, departed := h.presence.Unregister(c)
		h.logger.Debug("[HUB] Client unregistered", "user", userID, "clients", len(h.clients))
		if !departed {
			continue
		}

		h.logger.Info("[HUB] User went offline", "user", userID)
		if left, err := models.Encode(models.NewUserLeft(userID)); err == nil {
			queue = append(queue, h.fanout(left, nil)...)
		}
		if roster := h.rosterPayload(); roster != nil {
			queue = append(queue, h.fanout(roster, nil)...)
		}
	}
}

func (h *Hub) rosterPayload() []byte {
	users := h.presence.Snapshot()
	metrics.OnlineUsers.Set(float64(len(users)))

	payload, err := models.Encode(models.NewOnlineUsers(users))
	if err != nil {
		h.logger.Error("[HUB] Failed to encode roster", "error", err)
		return nil
	}
	return payload
}
