package ws

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"promohub/internal/metrics"
	"promohub/internal/models"
)

const (
	// Time allowed to write a message
	writeWait = 10 * time.Second

	// Time allowed to read next pong message
	pongWait = 60 * time.Second

	// Send pings with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Max inbound frame size
	maxMessageSize = 64 * 1024

	// Outbound frames buffered per connection before it counts as stalled
	sendBuffer = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is one websocket connection. It starts anonymous; a join binds an
// identity, and a later join replaces it. The hub marks it closed when the
// transport goes away or its buffer overflows.
type Client struct {
	hub     *Hub
	chat    *Chat
	conn    *websocket.Conn
	send    chan []byte
	limiter *rate.Limiter
	logger  *slog.Logger

	// verifiedID is the token subject, if the connection presented one.
	verifiedID string

	identity atomic.Pointer[models.PresenceEntry]
	closed   atomic.Bool
}

func newClient(hub *Hub, chat *Chat, conn *websocket.Conn, limiter *rate.Limiter, verifiedID string) *Client {
	c := &Client{
		hub:        hub,
		chat:       chat,
		conn:       conn,
		send:       make(chan []byte, sendBuffer),
		limiter:    limiter,
		verifiedID: verifiedID,
	}
	addr := ""
	if conn != nil {
		addr = conn.RemoteAddr().String()
	}
	c.logger = hub.logger.With("remote", addr)
	return c
}

// Identity returns the bound profile; ok is false while anonymous.
func (c *Client) Identity() (models.PresenceEntry, bool) {
	p := c.identity.Load()
	if p == nil {
		return models.PresenceEntry{}, false
	}
	return *p, true
}

func (c *Client) UserID() string {
	if p := c.identity.Load(); p != nil {
		return p.ID
	}
	return ""
}

func (c *Client) bind(entry models.PresenceEntry) {
	c.identity.Store(&entry)
}

func (c *Client) isClosed() bool { return c.closed.Load() }

func (c *Client) markClosed() { c.closed.Store(true) }

// ReadPump pumps frames from the websocket to the chat handlers. Handling
// errors never close the connection; only a read failure does.
func (c *Client) ReadPump() {
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Warn("[CLIENT] Unexpected close", "user", c.UserID(), "error", err)
			}
			break
		}

		if c.limiter != nil && !c.limiter.Allow() {
			metrics.FramesDropped.WithLabelValues("rate_limited").Inc()
			c.logger.Debug("[CLIENT] Frame dropped, rate limited", "user", c.UserID())
			continue
		}

		cmd, err := models.DecodeCommand(message)
		if err != nil {
			reason := "malformed"
			if errors.Is(err, models.ErrUnknownCommand) {
				reason = "unknown_type"
			}
			metrics.FramesDropped.WithLabelValues(reason).Inc()
			c.logger.Warn("[CLIENT] Dropping frame", "user", c.UserID(), "error", err)
			continue
		}

		c.chat.Handle(ctx, c, cmd)
	}
}

// WritePump pumps messages from the hub to the websocket
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				c.logger.Error("[CLIENT] Failed to get writer", "user", c.UserID(), "error", err)
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				c.logger.Error("[CLIENT] Failed to close writer", "user", c.UserID(), "error", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Error("[CLIENT] Failed to send ping", "user", c.UserID(), "error", err)
				return
			}
		}
	}
}
