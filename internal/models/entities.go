package models

import (
	"sort"
	"strings"
	"time"
)

// Plan is a subscription tier.
type Plan string

const (
	PlanFree    Plan = "free"
	PlanStarter Plan = "starter"
	PlanPro     Plan = "pro"
	PlanElite   Plan = "elite"
)

// Valid reports whether p is one of the known tiers.
func (p Plan) Valid() bool {
	switch p {
	case PlanFree, PlanStarter, PlanPro, PlanElite:
		return true
	}
	return false
}

const (
	// MaxMessageLength is the maximum length (in runes) of a chat message.
	MaxMessageLength = 500

	// ReplayWindow is the number of public messages replayed on join.
	ReplayWindow = 50

	// PublicBufferCapacity is the number of public messages kept in memory.
	PublicBufferCapacity = 100
)

type User struct {
	Email        string     `json:"email" bson:"_id"`
	Name         string     `json:"name" bson:"name"`
	Handle       string     `json:"handle,omitempty" bson:"handle,omitempty"`
	Avatar       string     `json:"avatar,omitempty" bson:"avatar,omitempty"`
	Plan         Plan       `json:"plan" bson:"plan"`
	ProjectCount int        `json:"projectCount" bson:"projectCount"`
	Banned       bool       `json:"banned" bson:"banned"`
	BannedAt     *time.Time `json:"bannedAt,omitempty" bson:"bannedAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt" bson:"updatedAt"`
}

func (u User) EntityID() string       { return u.Email }
func (u User) CreatedTime() time.Time { return u.CreatedAt }

type Project struct {
	ID          string    `json:"id" bson:"_id"`
	OwnerEmail  string    `json:"ownerEmail" bson:"ownerEmail"`
	OwnerName   string    `json:"ownerName" bson:"ownerName"`
	Title       string    `json:"title" bson:"title"`
	Description string    `json:"description,omitempty" bson:"description,omitempty"`
	URL         string    `json:"url,omitempty" bson:"url,omitempty"`
	ImageURL    string    `json:"imageUrl,omitempty" bson:"imageUrl,omitempty"`
	Votes       int       `json:"votes" bson:"votes"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
}

func (p Project) EntityID() string       { return p.ID }
func (p Project) CreatedTime() time.Time { return p.CreatedAt }

type Post struct {
	ID          string    `json:"id" bson:"_id"`
	AuthorEmail string    `json:"authorEmail" bson:"authorEmail"`
	AuthorName  string    `json:"authorName" bson:"authorName"`
	AuthorPlan  Plan      `json:"authorPlan" bson:"authorPlan"`
	Text        string    `json:"text" bson:"text"`
	ImageURL    string    `json:"imageUrl,omitempty" bson:"imageUrl,omitempty"`
	Likes       int       `json:"likes" bson:"likes"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
}

func (p Post) EntityID() string       { return p.ID }
func (p Post) CreatedTime() time.Time { return p.CreatedAt }

type Group struct {
	ID          string    `json:"id" bson:"_id"`
	Name        string    `json:"name" bson:"name"`
	Description string    `json:"description,omitempty" bson:"description,omitempty"`
	OwnerEmail  string    `json:"ownerEmail" bson:"ownerEmail"`
	Members     int       `json:"members" bson:"members"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
}

func (g Group) EntityID() string       { return g.ID }
func (g Group) CreatedTime() time.Time { return g.CreatedAt }

type GroupMessage struct {
	ID          string    `json:"id" bson:"id"`
	GroupID     string    `json:"groupId" bson:"groupId"`
	SenderEmail string    `json:"senderEmail" bson:"senderEmail"`
	SenderName  string    `json:"senderName" bson:"senderName"`
	Text        string    `json:"text" bson:"text"`
	Timestamp   time.Time `json:"timestamp" bson:"timestamp"`
}

type ReportStatus string

const (
	ReportOpen     ReportStatus = "open"
	ReportReviewed ReportStatus = "reviewed"
)

type Report struct {
	ID            string       `json:"id" bson:"_id"`
	ReporterEmail string       `json:"reporterEmail" bson:"reporterEmail"`
	TargetType    string       `json:"targetType" bson:"targetType"`
	TargetID      string       `json:"targetId" bson:"targetId"`
	Reason        string       `json:"reason" bson:"reason"`
	Status        ReportStatus `json:"status" bson:"status"`
	CreatedAt     time.Time    `json:"createdAt" bson:"createdAt"`
}

func (r Report) EntityID() string       { return r.ID }
func (r Report) CreatedTime() time.Time { return r.CreatedAt }

// AdminDM is a message a user sends to the moderators.
type AdminDM struct {
	ID        string    `json:"id" bson:"_id"`
	FromEmail string    `json:"fromEmail" bson:"fromEmail"`
	FromName  string    `json:"fromName" bson:"fromName"`
	Text      string    `json:"text" bson:"text"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

func (d AdminDM) EntityID() string       { return d.ID }
func (d AdminDM) CreatedTime() time.Time { return d.CreatedAt }

// PresenceEntry is the lightweight profile shown in the online roster.
type PresenceEntry struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Plan   Plan   `json:"plan"`
	Avatar string `json:"avatar,omitempty"`
}

type PublicMessage struct {
	ID         string    `json:"id" bson:"id"`
	SenderID   string    `json:"senderId" bson:"senderId"`
	SenderName string    `json:"senderName" bson:"senderName"`
	SenderPlan Plan      `json:"senderPlan" bson:"senderPlan"`
	Text       string    `json:"text" bson:"text"`
	Timestamp  time.Time `json:"timestamp" bson:"timestamp"`
	Avatar     string    `json:"avatar,omitempty" bson:"avatar,omitempty"`
}

type DirectMessage struct {
	ID        string    `json:"id" bson:"id"`
	FromID    string    `json:"fromId" bson:"fromId"`
	FromName  string    `json:"fromName" bson:"fromName"`
	FromPlan  Plan      `json:"fromPlan" bson:"fromPlan"`
	ToID      string    `json:"toId" bson:"toId"`
	Text      string    `json:"text" bson:"text"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
	Read      bool      `json:"read" bson:"read"`
}

// PairKey returns the canonical thread key for two user ids. The result does
// not depend on argument order.
func PairKey(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return strings.Join(ids, "__")
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
