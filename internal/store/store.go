// Package store is the persistence boundary. Callers see one Store interface
// whatever the backing medium: MongoDB, or process memory with a JSON
// snapshot file standing in for a database.
package store

import (
	"context"
	"time"

	"promohub/internal/models"
)

// PublicChannel is the log key of the public chat.
const PublicChannel = "public"

// Entity is a record with an identity and a creation time, which List uses
// for its newest-first order.
type Entity interface {
	EntityID() string
	CreatedTime() time.Time
}

// Collection is a keyed set of mutable records.
type Collection[T Entity] interface {
	// Get returns apperror.ErrNotFound when id is absent.
	Get(ctx context.Context, id string) (T, error)
	// List returns records newest first; limit <= 0 means all.
	List(ctx context.Context, limit int) ([]T, error)
	Upsert(ctx context.Context, v T) error
	// Apply runs a read-modify-write on id. fn receives the current value
	// (zero value and found=false when absent) and returns the value to
	// store; an error from fn leaves the record untouched. Calls on the same
	// collection are serialized.
	Apply(ctx context.Context, id string, fn func(cur T, found bool) (T, error)) (T, error)
	// Remove returns apperror.ErrNotFound when id is absent.
	Remove(ctx context.Context, id string) error
}

// Log is an append-only sequence per key.
type Log[T any] interface {
	Append(ctx context.Context, key string, item T) error
	// Tail returns the last n items in append order; n <= 0 means all.
	Tail(ctx context.Context, key string, n int) ([]T, error)
}

// DirectMessages is the log of DM threads, keyed by models.PairKey.
type DirectMessages interface {
	Log[models.DirectMessage]
	// MarkRead flags every unread message addressed to readerID in the
	// thread and returns how many changed.
	MarkRead(ctx context.Context, key, readerID string) (int, error)
}

// VoteSets holds, per target, the set of voter identities.
type VoteSets interface {
	// Add inserts voter and reports whether it was absent.
	Add(ctx context.Context, target, voter string) (bool, error)
	Remove(ctx context.Context, target, voter string) error
	Count(ctx context.Context, target string) (int, error)
	// Clear drops every voter of target.
	Clear(ctx context.Context, target string) error
}

type Store interface {
	Users() Collection[models.User]
	Projects() Collection[models.Project]
	Posts() Collection[models.Post]
	Groups() Collection[models.Group]
	Reports() Collection[models.Report]
	AdminDMs() Collection[models.AdminDM]

	GroupMessages() Log[models.GroupMessage]
	PublicChat() Log[models.PublicMessage]
	DirectMessages() DirectMessages
	Votes() VoteSets

	Close(ctx context.Context) error
}
