package models

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

// EventType tags every frame on the socket, in both directions.
type EventType string

// Inbound command types.
const (
	CmdJoin          EventType = "join"
	CmdMessage       EventType = "message"
	CmdDirectMessage EventType = "dm"
	CmdDMHistory     EventType = "get_dm_history"
	CmdTyping        EventType = "typing"
	CmdDMTyping      EventType = "dm_typing"
	CmdOnlineUsers   EventType = "get_online_users"
	CmdMarkDMRead    EventType = "mark_dm_read"
)

// Outbound event types.
const (
	EvtHistory         EventType = "history"
	EvtProjectsHistory EventType = "projects_history"
	EvtPostsHistory    EventType = "posts_history"
	EvtOnlineUsers     EventType = "online_users"
	EvtUserJoined      EventType = "user_joined"
	EvtUserLeft        EventType = "user_left"
	EvtMessage         EventType = "message"
	EvtDirectMessage   EventType = "dm"
	EvtDMSent          EventType = "dm_sent"
	EvtDMHistory       EventType = "dm_history"
	EvtTyping          EventType = "typing"
	EvtDMTyping        EventType = "dm_typing"
	EvtDMRead          EventType = "dm_read"
	EvtVoteUpdate      EventType = "vote_update"
	EvtNewProject      EventType = "new_project"
	EvtNewPost         EventType = "new_post"
	EvtNewGroup        EventType = "new_group"
	EvtGroupMessage    EventType = "group_message"
	EvtGroupMembers    EventType = "group_members"
	EvtLikeUpdate      EventType = "like_update"
	EvtProjectDeleted  EventType = "project_deleted"
	EvtPostDeleted     EventType = "post_deleted"
	EvtBanned          EventType = "banned"
)

var (
	ErrMalformedFrame = errors.New("malformed frame")
	ErrUnknownCommand = errors.New("unknown command")
)

// Command is an inbound frame. The set of implementations is closed.
type Command interface {
	command() EventType
}

type JoinCommand struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Plan   Plan   `json:"plan"`
	Avatar string `json:"avatar"`
}

type SendMessageCommand struct {
	Text string `json:"text"`
}

type DirectMessageCommand struct {
	ToID     string `json:"toId"`
	Text     string `json:"text"`
	FromName string `json:"fromName"`
	FromPlan Plan   `json:"fromPlan"`
}

type DMHistoryCommand struct {
	WithID string `json:"withId"`
}

type TypingCommand struct {
	Name     string `json:"name"`
	IsTyping bool   `json:"isTyping"`
}

type DMTypingCommand struct {
	ToID     string `json:"toId"`
	Name     string `json:"name"`
	IsTyping bool   `json:"isTyping"`
}

type OnlineUsersCommand struct{}

type MarkDMReadCommand struct {
	WithID string `json:"withId"`
}

func (JoinCommand) command() EventType          { return CmdJoin }
func (SendMessageCommand) command() EventType   { return CmdMessage }
func (DirectMessageCommand) command() EventType { return CmdDirectMessage }
func (DMHistoryCommand) command() EventType     { return CmdDMHistory }
func (TypingCommand) command() EventType        { return CmdTyping }
func (DMTypingCommand) command() EventType      { return CmdDMTyping }
func (OnlineUsersCommand) command() EventType   { return CmdOnlineUsers }
func (MarkDMReadCommand) command() EventType    { return CmdMarkDMRead }

// CommandType returns the wire tag of c.
func CommandType(c Command) EventType { return c.command() }

// DecodeCommand parses one inbound frame. Invalid JSON or a missing type
// yields ErrMalformedFrame, an unrecognised type ErrUnknownCommand.
func DecodeCommand(frame []byte) (Command, error) {
	var head struct {
		Type EventType `json:"type"`
	}
	if err := json.Unmarshal(frame, &head); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	var cmd Command
	switch head.Type {
	case CmdJoin:
		cmd = &JoinCommand{}
	case CmdMessage:
		cmd = &SendMessageCommand{}
	case CmdDirectMessage:
		cmd = &DirectMessageCommand{}
	case CmdDMHistory:
		cmd = &DMHistoryCommand{}
	case CmdTyping:
		cmd = &TypingCommand{}
	case CmdDMTyping:
		cmd = &DMTypingCommand{}
	case CmdOnlineUsers:
		return OnlineUsersCommand{}, nil
	case CmdMarkDMRead:
		cmd = &MarkDMReadCommand{}
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformedFrame)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, head.Type)
	}

	if err := json.Unmarshal(frame, cmd); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return deref(cmd), nil
}

func deref(c Command) Command {
	switch v := c.(type) {
	case *JoinCommand:
		return *v
	case *SendMessageCommand:
		return *v
	case *DirectMessageCommand:
		return *v
	case *DMHistoryCommand:
		return *v
	case *TypingCommand:
		return *v
	case *DMTypingCommand:
		return *v
	case *MarkDMReadCommand:
		return *v
	}
	return c
}

// Event is an outbound frame. Every implementation carries its own type tag,
// filled by the constructor below.
type Event interface {
	Kind() EventType
}

type HistoryEvent struct {
	Type     EventType       `json:"type"`
	Messages []PublicMessage `json:"messages"`
}

type ItemsEvent struct {
	Type  EventType `json:"type"`
	Items any       `json:"items"`
}

type OnlineUsersEvent struct {
	Type  EventType       `json:"type"`
	Users []PresenceEntry `json:"users"`
}

type UserJoinedEvent struct {
	Type EventType     `json:"type"`
	User PresenceEntry `json:"user"`
}

type UserLeftEvent struct {
	Type   EventType `json:"type"`
	UserID string    `json:"userId"`
}

type PublicMessageEvent struct {
	Type    EventType     `json:"type"`
	Message PublicMessage `json:"message"`
}

type DirectMessageEvent struct {
	Type    EventType     `json:"type"`
	Message DirectMessage `json:"message"`
}

type DMHistoryEvent struct {
	Type     EventType       `json:"type"`
	WithID   string          `json:"withId"`
	Messages []DirectMessage `json:"messages"`
}

type TypingEvent struct {
	Type     EventType `json:"type"`
	UserID   string    `json:"userId"`
	Name     string    `json:"name"`
	IsTyping bool      `json:"isTyping"`
}

type DMReadEvent struct {
	Type  EventType `json:"type"`
	ByID  string    `json:"byId"`
	Count int       `json:"count"`
}

type VoteUpdateEvent struct {
	Type      EventType `json:"type"`
	ProjectID string    `json:"projectId"`
	Votes     int       `json:"votes"`
}

type LikeUpdateEvent struct {
	Type   EventType `json:"type"`
	PostID string    `json:"postId"`
	Likes  int       `json:"likes"`
}

type GroupMembersEvent struct {
	Type    EventType `json:"type"`
	GroupID string    `json:"groupId"`
	Members int       `json:"members"`
}

type ProjectEvent struct {
	Type    EventType `json:"type"`
	Project Project   `json:"project"`
}

type PostEvent struct {
	Type EventType `json:"type"`
	Post Post      `json:"post"`
}

type GroupEvent struct {
	Type  EventType `json:"type"`
	Group Group     `json:"group"`
}

type GroupMessageEvent struct {
	Type    EventType    `json:"type"`
	GroupID string       `json:"groupId"`
	Message GroupMessage `json:"message"`
}

type DeletedEvent struct {
	Type EventType `json:"type"`
	ID   string    `json:"id"`
}

type BannedEvent struct {
	Type    EventType `json:"type"`
	Message string    `json:"message"`
}

func (e HistoryEvent) Kind() EventType       { return e.Type }
func (e ItemsEvent) Kind() EventType         { return e.Type }
func (e OnlineUsersEvent) Kind() EventType   { return e.Type }
func (e UserJoinedEvent) Kind() EventType    { return e.Type }
func (e UserLeftEvent) Kind() EventType      { return e.Type }
func (e PublicMessageEvent) Kind() EventType { return e.Type }
func (e DirectMessageEvent) Kind() EventType { return e.Type }
func (e DMHistoryEvent) Kind() EventType     { return e.Type }
func (e TypingEvent) Kind() EventType        { return e.Type }
func (e DMReadEvent) Kind() EventType        { return e.Type }
func (e VoteUpdateEvent) Kind() EventType    { return e.Type }
func (e LikeUpdateEvent) Kind() EventType    { return e.Type }
func (e GroupMembersEvent) Kind() EventType  { return e.Type }
func (e ProjectEvent) Kind() EventType       { return e.Type }
func (e PostEvent) Kind() EventType          { return e.Type }
func (e GroupEvent) Kind() EventType         { return e.Type }
func (e GroupMessageEvent) Kind() EventType  { return e.Type }
func (e DeletedEvent) Kind() EventType       { return e.Type }
func (e BannedEvent) Kind() EventType        { return e.Type }

func NewHistory(msgs []PublicMessage) HistoryEvent {
	if msgs == nil {
		msgs = []PublicMessage{}
	}
	return HistoryEvent{Type: EvtHistory, Messages: msgs}
}

func NewProjectsHistory(items []Project) ItemsEvent {
	if items == nil {
		items = []Project{}
	}
	return ItemsEvent{Type: EvtProjectsHistory, Items: items}
}

func NewPostsHistory(items []Post) ItemsEvent {
	if items == nil {
		items = []Post{}
	}
	return ItemsEvent{Type: EvtPostsHistory, Items: items}
}

func NewOnlineUsers(users []PresenceEntry) OnlineUsersEvent {
	if users == nil {
		users = []PresenceEntry{}
	}
	return OnlineUsersEvent{Type: EvtOnlineUsers, Users: users}
}

func NewUserJoined(u PresenceEntry) UserJoinedEvent {
	return UserJoinedEvent{Type: EvtUserJoined, User: u}
}

func NewUserLeft(userID string) UserLeftEvent {
	return UserLeftEvent{Type: EvtUserLeft, UserID: userID}
}

func NewPublicMessage(m PublicMessage) PublicMessageEvent {
	return PublicMessageEvent{Type: EvtMessage, Message: m}
}

func NewDirectMessage(m DirectMessage) DirectMessageEvent {
	return DirectMessageEvent{Type: EvtDirectMessage, Message: m}
}

func NewDMSent(m DirectMessage) DirectMessageEvent {
	return DirectMessageEvent{Type: EvtDMSent, Message: m}
}

func NewDMHistory(withID string, msgs []DirectMessage) DMHistoryEvent {
	if msgs == nil {
		msgs = []DirectMessage{}
	}
	return DMHistoryEvent{Type: EvtDMHistory, WithID: withID, Messages: msgs}
}

func NewTyping(userID, name string, isTyping bool) TypingEvent {
	return TypingEvent{Type: EvtTyping, UserID: userID, Name: name, IsTyping: isTyping}
}

func NewDMTyping(userID, name string, isTyping bool) TypingEvent {
	return TypingEvent{Type: EvtDMTyping, UserID: userID, Name: name, IsTyping: isTyping}
}

func NewDMRead(byID string, count int) DMReadEvent {
	return DMReadEvent{Type: EvtDMRead, ByID: byID, Count: count}
}

func NewVoteUpdate(projectID string, votes int) VoteUpdateEvent {
	return VoteUpdateEvent{Type: EvtVoteUpdate, ProjectID: projectID, Votes: votes}
}

func NewLikeUpdate(postID string, likes int) LikeUpdateEvent {
	return LikeUpdateEvent{Type: EvtLikeUpdate, PostID: postID, Likes: likes}
}

func NewGroupMembers(groupID string, members int) GroupMembersEvent {
	return GroupMembersEvent{Type: EvtGroupMembers, GroupID: groupID, Members: members}
}

func NewProjectCreated(p Project) ProjectEvent {
	return ProjectEvent{Type: EvtNewProject, Project: p}
}

func NewPostCreated(p Post) PostEvent {
	return PostEvent{Type: EvtNewPost, Post: p}
}

func NewGroupCreated(g Group) GroupEvent {
	return GroupEvent{Type: EvtNewGroup, Group: g}
}

func NewGroupMessage(m GroupMessage) GroupMessageEvent {
	return GroupMessageEvent{Type: EvtGroupMessage, GroupID: m.GroupID, Message: m}
}

func NewProjectDeleted(id string) DeletedEvent {
	return DeletedEvent{Type: EvtProjectDeleted, ID: id}
}

func NewPostDeleted(id string) DeletedEvent {
	return DeletedEvent{Type: EvtPostDeleted, ID: id}
}

func NewBanned(message string) BannedEvent {
	return BannedEvent{Type: EvtBanned, Message: message}
}

// Encode serializes an outbound event into one frame.
func Encode(e Event) ([]byte, error) {
	if e.Kind() == "" {
		return nil, fmt.Errorf("event %T has no type", e)
	}
	return json.Marshal(e)
}

// Envelope carries an encoded event between processes. An empty Recipient
// means every connection. Disconnect closes the recipient's connections once
// the payload is queued to them.
type Envelope struct {
	Recipient  string          `json:"recipient,omitempty"`
	Payload    json.RawMessage `json:"payload"`
	Disconnect bool            `json:"disconnect,omitempty"`
}
