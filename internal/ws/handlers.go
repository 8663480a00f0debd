package ws

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"promohub/internal/apperror"
	"promohub/internal/config"
	"promohub/internal/keylock"
	"promohub/internal/metrics"
	"promohub/internal/models"
	"promohub/internal/store"
)

// welcomeItems is how many projects and posts a join replays.
const welcomeItems = 20

const bannedNotice = "Your account has been suspended."

// TokenVerifier resolves a session token to the user id it was issued for.
type TokenVerifier interface {
	Validate(token string) (string, error)
}

type Options struct {
	Durability     config.Durability
	PersistTimeout time.Duration
	// RateLimit is the sustained inbound frames per second per connection;
	// zero disables limiting.
	RateLimit float64
	RateBurst int
}

// Chat handles inbound frames. Messages of one channel (the public room or
// one DM thread) are persisted, buffered and enqueued on the hub while that
// channel's lock is held, so every connection sees them in the same order.
type Chat struct {
	hub     *Hub
	store   store.Store
	history *History
	locks   *keylock.Map
	tokens  TokenVerifier
	opts    Options
	logger  *slog.Logger
}

func NewChat(hub *Hub, st store.Store, history *History, tokens TokenVerifier, opts Options, logger *slog.Logger) *Chat {
	if opts.PersistTimeout <= 0 {
		opts.PersistTimeout = 5 * time.Second
	}
	return &Chat{
		hub:     hub,
		store:   st,
		history: history,
		locks:   keylock.New(),
		tokens:  tokens,
		opts:    opts,
		logger:  logger,
	}
}

func dmChannel(key string) string { return "dm:" + key }

// Handle dispatches one decoded frame. Frames that are invalid for the
// connection's state are dropped.
func (ch *Chat) Handle(ctx context.Context, c *Client, cmd models.Command) {
	switch cmd := cmd.(type) {
	case models.JoinCommand:
		ch.join(ctx, c, cmd)
	case models.SendMessageCommand:
		ch.message(ctx, c, cmd)
	case models.DirectMessageCommand:
		ch.directMessage(ctx, c, cmd)
	case models.DMHistoryCommand:
		ch.dmHistory(ctx, c, cmd)
	case models.TypingCommand:
		ch.typing(c, cmd)
	case models.DMTypingCommand:
		ch.dmTyping(c, cmd)
	case models.OnlineUsersCommand:
		ch.hub.SendRoster(c)
	case models.MarkDMReadCommand:
		ch.markRead(ctx, c, cmd)
	default:
		c.logger.Warn("[CLIENT] Unhandled command", "type", models.CommandType(cmd))
	}
}

func (ch *Chat) send(c *Client, e models.Event) {
	payload, err := models.Encode(e)
	if err != nil {
		ch.logger.Error("[CHAT] Failed to encode event", "type", e.Kind(), "error", err)
		return
	}
	ch.hub.SendToClient(c, payload)
}

func (ch *Chat) encode(e models.Event) []byte {
	payload, err := models.Encode(e)
	if err != nil {
		ch.logger.Error("[CHAT] Failed to encode event", "type", e.Kind(), "error", err)
		return nil
	}
	return payload
}

func (ch *Chat) drop(c *Client, cmd models.EventType, reason string) {
	metrics.FramesDropped.WithLabelValues(reason).Inc()
	c.logger.Debug("[CHAT] Dropping frame", "type", cmd, "user", c.UserID(), "reason", reason)
}

// persist runs a chat write under the persist timeout. A failure is counted
// and logged; the returned bool says whether the message should still go out.
func (ch *Chat) persist(ctx context.Context, collection string, write func(ctx context.Context) error) bool {
	ctx, cancel := context.WithTimeout(ctx, ch.opts.PersistTimeout)
	defer cancel()

	if err := write(ctx); err != nil {
		metrics.PersistFailures.WithLabelValues(collection).Inc()
		ch.logger.Error("[CHAT] Persist failed", "collection", collection, "durability", ch.opts.Durability, "error", err)
		return ch.opts.Durability != config.DurabilityStrict
	}
	return true
}

func (ch *Chat) isBanned(ctx context.Context, userID string) bool {
	ctx, cancel := context.WithTimeout(ctx, ch.opts.PersistTimeout)
	defer cancel()

	u, err := ch.store.Users().Get(ctx, userID)
	if err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			ch.logger.Error("[CHAT] Ban lookup failed", "user", userID, "error", err)
		}
		return false
	}
	return u.Banned
}

// ejectBanned closes every connection of a joined user whose ban landed after
// the join; a ban pushed by another process can trail its writes.
func (ch *Chat) ejectBanned(ctx context.Context, c *Client, userID string) bool {
	if !ch.isBanned(ctx, userID) {
		return false
	}
	c.logger.Info("[CHAT] Dropping frame from banned user", "user", userID)
	if p := ch.encode(models.NewBanned(bannedNotice)); p != nil {
		ch.hub.Kick(userID, p)
	}
	return true
}

func (ch *Chat) join(ctx context.Context, c *Client, cmd models.JoinCommand) {
	userID := strings.TrimSpace(cmd.UserID)
	if c.verifiedID != "" {
		if userID == "" {
			userID = c.verifiedID
		} else if userID != c.verifiedID {
			c.logger.Warn("[CHAT] Join does not match token", "token_user", c.verifiedID, "join_user", userID)
			ch.drop(c, models.CmdJoin, "identity_mismatch")
			return
		}
	}
	if userID == "" {
		ch.drop(c, models.CmdJoin, "invalid")
		return
	}

	if ch.isBanned(ctx, userID) {
		c.logger.Info("[CHAT] Banned user tried to join", "user", userID)
		ch.send(c, models.NewBanned(bannedNotice))
		return
	}

	plan := cmd.Plan
	if !plan.Valid() {
		plan = models.PlanFree
	}
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		name = userID
	}
	entry := models.PresenceEntry{ID: userID, Name: name, Plan: plan, Avatar: cmd.Avatar}

	projects, posts := ch.welcomeItems(ctx)

	unlock := ch.locks.Lock(store.PublicChannel)
	defer unlock()

	first, departed, ok := ch.hub.presence.Register(userID, c)
	if !ok {
		return
	}
	c.bind(entry)
	ch.hub.presence.SetProfile(userID, entry)

	ch.send(c, models.NewHistory(ch.history.Recent(models.ReplayWindow)))
	ch.send(c, models.NewProjectsHistory(projects))
	ch.send(c, models.NewPostsHistory(posts))

	if departed != "" {
		if p := ch.encode(models.NewUserLeft(departed)); p != nil {
			ch.hub.announce(c, p)
		}
	}
	if first {
		if p := ch.encode(models.NewUserJoined(entry)); p != nil {
			ch.hub.announce(c, p)
		}
	}
	ch.hub.announceRoster(c)

	c.logger.Info("[CHAT] User joined", "user", userID, "first_connection", first)
}

func (ch *Chat) welcomeItems(ctx context.Context) ([]models.Project, []models.Post) {
	ctx, cancel := context.WithTimeout(ctx, ch.opts.PersistTimeout)
	defer cancel()

	projects, err := ch.store.Projects().List(ctx, welcomeItems)
	if err != nil {
		ch.logger.Error("[CHAT] Failed to load projects for join", "error", err)
	}
	posts, err := ch.store.Posts().List(ctx, welcomeItems)
	if err != nil {
		ch.logger.Error("[CHAT] Failed to load posts for join", "error", err)
	}
	return projects, posts
}

func (ch *Chat) message(ctx context.Context, c *Client, cmd models.SendMessageCommand) {
	sender, ok := c.Identity()
	if !ok {
		ch.drop(c, models.CmdMessage, "not_joined")
		return
	}
	text := models.Truncate(strings.TrimSpace(cmd.Text), models.MaxMessageLength)
	if text == "" {
		ch.drop(c, models.CmdMessage, "empty")
		return
	}

	msg := models.PublicMessage{
		ID:         uuid.NewString(),
		SenderID:   sender.ID,
		SenderName: sender.Name,
		SenderPlan: sender.Plan,
		Text:       text,
		Timestamp:  time.Now().UTC(),
		Avatar:     sender.Avatar,
	}
	payload := ch.encode(models.NewPublicMessage(msg))
	if payload == nil {
		return
	}
	if ch.ejectBanned(ctx, c, sender.ID) {
		return
	}

	unlock := ch.locks.Lock(store.PublicChannel)
	defer unlock()

	if c.isClosed() {
		return
	}
	if !ch.persist(ctx, "chat_messages", func(ctx context.Context) error {
		return ch.store.PublicChat().Append(ctx, store.PublicChannel, msg)
	}) {
		return
	}
	ch.history.AppendPublic(msg)
	ch.hub.Broadcast(payload)
	metrics.ChatMessages.WithLabelValues("public").Inc()
}

func (ch *Chat) directMessage(ctx context.Context, c *Client, cmd models.DirectMessageCommand) {
	sender, ok := c.Identity()
	if !ok {
		ch.drop(c, models.CmdDirectMessage, "not_joined")
		return
	}
	toID := strings.TrimSpace(cmd.ToID)
	if toID == "" || toID == sender.ID {
		ch.drop(c, models.CmdDirectMessage, "invalid")
		return
	}
	text := models.Truncate(strings.TrimSpace(cmd.Text), models.MaxMessageLength)
	if text == "" {
		ch.drop(c, models.CmdDirectMessage, "empty")
		return
	}

	fromName := strings.TrimSpace(cmd.FromName)
	if fromName == "" {
		fromName = sender.Name
	}
	fromPlan := cmd.FromPlan
	if !fromPlan.Valid() {
		fromPlan = sender.Plan
	}

	msg := models.DirectMessage{
		ID:        uuid.NewString(),
		FromID:    sender.ID,
		FromName:  fromName,
		FromPlan:  fromPlan,
		ToID:      toID,
		Text:      text,
		Timestamp: time.Now().UTC(),
	}
	key := models.PairKey(sender.ID, toID)

	delivered := ch.encode(models.NewDirectMessage(msg))
	echoed := ch.encode(models.NewDMSent(msg))
	if delivered == nil || echoed == nil {
		return
	}
	if ch.ejectBanned(ctx, c, sender.ID) {
		return
	}

	unlock := ch.locks.Lock(dmChannel(key))
	defer unlock()

	if c.isClosed() {
		return
	}
	if !ch.persist(ctx, "direct_messages", func(ctx context.Context) error {
		return ch.store.DirectMessages().Append(ctx, key, msg)
	}) {
		return
	}
	ch.history.AppendDM(ctx, key, msg)
	ch.hub.SendToUser(toID, delivered)
	ch.hub.SendToUser(sender.ID, echoed)
	metrics.ChatMessages.WithLabelValues("dm").Inc()
}

func (ch *Chat) dmHistory(ctx context.Context, c *Client, cmd models.DMHistoryCommand) {
	self, ok := c.Identity()
	if !ok {
		ch.drop(c, models.CmdDMHistory, "not_joined")
		return
	}
	withID := strings.TrimSpace(cmd.WithID)
	if withID == "" {
		ch.drop(c, models.CmdDMHistory, "invalid")
		return
	}
	key := models.PairKey(self.ID, withID)

	unlock := ch.locks.Lock(dmChannel(key))
	defer unlock()

	ctx, cancel := context.WithTimeout(ctx, ch.opts.PersistTimeout)
	defer cancel()

	msgs, err := ch.history.Thread(ctx, key)
	if err != nil {
		ch.logger.Error("[CHAT] Failed to load DM thread", "thread", key, "error", err)
		return
	}
	ch.send(c, models.NewDMHistory(withID, msgs))
}

func (ch *Chat) typing(c *Client, cmd models.TypingCommand) {
	self, ok := c.Identity()
	if !ok {
		ch.drop(c, models.CmdTyping, "not_joined")
		return
	}
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		name = self.Name
	}
	if p := ch.encode(models.NewTyping(self.ID, name, cmd.IsTyping)); p != nil {
		ch.hub.BroadcastExcept(c, p)
	}
}

func (ch *Chat) dmTyping(c *Client, cmd models.DMTypingCommand) {
	self, ok := c.Identity()
	if !ok {
		ch.drop(c, models.CmdDMTyping, "not_joined")
		return
	}
	toID := strings.TrimSpace(cmd.ToID)
	if toID == "" || toID == self.ID {
		ch.drop(c, models.CmdDMTyping, "invalid")
		return
	}
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		name = self.Name
	}
	if p := ch.encode(models.NewDMTyping(self.ID, name, cmd.IsTyping)); p != nil {
		ch.hub.SendToUser(toID, p)
	}
}

func (ch *Chat) markRead(ctx context.Context, c *Client, cmd models.MarkDMReadCommand) {
	self, ok := c.Identity()
	if !ok {
		ch.drop(c, models.CmdMarkDMRead, "not_joined")
		return
	}
	withID := strings.TrimSpace(cmd.WithID)
	if withID == "" || withID == self.ID {
		ch.drop(c, models.CmdMarkDMRead, "invalid")
		return
	}
	key := models.PairKey(self.ID, withID)

	unlock := ch.locks.Lock(dmChannel(key))
	defer unlock()

	ctx, cancel := context.WithTimeout(ctx, ch.opts.PersistTimeout)
	defer cancel()

	n, err := ch.store.DirectMessages().MarkRead(ctx, key, self.ID)
	if err != nil {
		metrics.PersistFailures.WithLabelValues("direct_messages").Inc()
		ch.logger.Error("[CHAT] Failed to mark thread read", "thread", key, "error", err)
		return
	}
	if cached := ch.history.MarkRead(key, self.ID); cached > n {
		n = cached
	}
	if n == 0 {
		return
	}
	if p := ch.encode(models.NewDMRead(self.ID, n)); p != nil {
		ch.hub.SendToUser(withID, p)
	}
}
