package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"promohub/internal/apperror"
	"promohub/internal/models"
)

// Mongo stores every logical collection in its own MongoDB collection.
// Logs are ordered by ObjectID, which increases monotonically within one
// process.
type Mongo struct {
	client *mongo.Client
	db     *mongo.Database
	logger *slog.Logger

	users    *mongoCollection[models.User]
	projects *mongoCollection[models.Project]
	posts    *mongoCollection[models.Post]
	groups   *mongoCollection[models.Group]
	reports  *mongoCollection[models.Report]
	adminDMs *mongoCollection[models.AdminDM]

	groupMessages *mongoLog[models.GroupMessage]
	publicChat    *mongoLog[models.PublicMessage]
	dms           *mongoDMs
	votes         *mongoVotes
}

var _ Store = (*Mongo)(nil)

func NewMongo(ctx context.Context, uri, dbName string, logger *slog.Logger) (*Mongo, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("store: connecting to mongo: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("store: pinging mongo: %w", err)
	}

	db := client.Database(dbName)
	m := &Mongo{
		client:        client,
		db:            db,
		logger:        logger,
		users:         &mongoCollection[models.User]{name: "user", coll: db.Collection("users")},
		projects:      &mongoCollection[models.Project]{name: "project", coll: db.Collection("projects")},
		posts:         &mongoCollection[models.Post]{name: "post", coll: db.Collection("posts")},
		groups:        &mongoCollection[models.Group]{name: "group", coll: db.Collection("groups")},
		reports:       &mongoCollection[models.Report]{name: "report", coll: db.Collection("reports")},
		adminDMs:      &mongoCollection[models.AdminDM]{name: "admin dm", coll: db.Collection("admin_dms")},
		groupMessages: &mongoLog[models.GroupMessage]{coll: db.Collection("group_messages")},
		publicChat:    &mongoLog[models.PublicMessage]{coll: db.Collection("chat_messages")},
		dms:           &mongoDMs{mongoLog: &mongoLog[models.DirectMessage]{coll: db.Collection("direct_messages")}},
		votes:         &mongoVotes{coll: db.Collection("votes")},
	}

	if err := m.ensureIndexes(connectCtx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	logger.Info("[STORE] Connected to MongoDB", "database", dbName)
	return m, nil
}

func (m *Mongo) ensureIndexes(ctx context.Context) error {
	byKey := mongo.IndexModel{Keys: bson.D{{Key: "key", Value: 1}, {Key: "_id", Value: 1}}}
	for _, coll := range []*mongo.Collection{m.groupMessages.coll, m.publicChat.coll, m.dms.coll} {
		if _, err := coll.Indexes().CreateOne(ctx, byKey); err != nil {
			return fmt.Errorf("store: creating index on %s: %w", coll.Name(), err)
		}
	}
	if _, err := m.votes.coll.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: "target", Value: 1}}}); err != nil {
		return fmt.Errorf("store: creating votes index: %w", err)
	}
	for _, coll := range []*mongo.Collection{m.projects.coll, m.posts.coll, m.groups.coll, m.reports.coll, m.adminDMs.coll, m.users.coll} {
		if _, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: "createdAt", Value: -1}}}); err != nil {
			return fmt.Errorf("store: creating createdAt index on %s: %w", coll.Name(), err)
		}
	}
	return nil
}

func (m *Mongo) Users() Collection[models.User]          { return m.users }
func (m *Mongo) Projects() Collection[models.Project]    { return m.projects }
func (m *Mongo) Posts() Collection[models.Post]          { return m.posts }
func (m *Mongo) Groups() Collection[models.Group]        { return m.groups }
func (m *Mongo) Reports() Collection[models.Report]      { return m.reports }
func (m *Mongo) AdminDMs() Collection[models.AdminDM]    { return m.adminDMs }
func (m *Mongo) GroupMessages() Log[models.GroupMessage] { return m.groupMessages }
func (m *Mongo) PublicChat() Log[models.PublicMessage]   { return m.publicChat }
func (m *Mongo) DirectMessages() DirectMessages          { return m.dms }
func (m *Mongo) Votes() VoteSets                         { return m.votes }

func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

type mongoCollection[T Entity] struct {
	name string
	coll *mongo.Collection
	// mu serializes Apply within this process.
	mu sync.Mutex
}

func (c *mongoCollection[T]) Get(ctx context.Context, id string) (T, error) {
	var v T
	err := c.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&v)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return v, apperror.NotFound(c.name, id)
	}
	if err != nil {
		return v, fmt.Errorf("store: getting %s %s: %w", c.name, id, err)
	}
	return v, nil
}

func (c *mongoCollection[T]) List(ctx context.Context, limit int) ([]T, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := c.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("store: listing %s: %w", c.name, err)
	}
	defer cursor.Close(ctx)

	out := []T{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("store: decoding %s list: %w", c.name, err)
	}
	return out, nil
}

func (c *mongoCollection[T]) Upsert(ctx context.Context, v T) error {
	_, err := c.coll.ReplaceOne(ctx, bson.M{"_id": v.EntityID()}, v, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("store: upserting %s %s: %w", c.name, v.EntityID(), err)
	}
	return nil
}

func (c *mongoCollection[T]) Apply(ctx context.Context, id string, fn func(cur T, found bool) (T, error)) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	cur, err := c.Get(ctx, id)
	found := true
	if errors.Is(err, apperror.ErrNotFound) {
		found = false
	} else if err != nil {
		return zero, err
	}

	next, err := fn(cur, found)
	if err != nil {
		return zero, err
	}
	if err := c.Upsert(ctx, next); err != nil {
		return zero, err
	}
	return next, nil
}

func (c *mongoCollection[T]) Remove(ctx context.Context, id string) error {
	res, err := c.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("store: removing %s %s: %w", c.name, id, err)
	}
	if res.DeletedCount == 0 {
		return apperror.NotFound(c.name, id)
	}
	return nil
}

type logDoc[T any] struct {
	ID   primitive.ObjectID `bson:"_id"`
	Key  string             `bson:"key"`
	Item T                  `bson:"item"`
}

type mongoLog[T any] struct {
	coll *mongo.Collection
}

func (l *mongoLog[T]) Append(ctx context.Context, key string, item T) error {
	doc := logDoc[T]{ID: primitive.NewObjectID(), Key: key, Item: item}
	if _, err := l.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("store: appending to %s/%s: %w", l.coll.Name(), key, err)
	}
	return nil
}

func (l *mongoLog[T]) Tail(ctx context.Context, key string, n int) ([]T, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: -1}})
	if n > 0 {
		opts.SetLimit(int64(n))
	}

	cursor, err := l.coll.Find(ctx, bson.M{"key": key}, opts)
	if err != nil {
		return nil, fmt.Errorf("store: reading %s/%s: %w", l.coll.Name(), key, err)
	}
	defer cursor.Close(ctx)

	var docs []logDoc[T]
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("store: decoding %s/%s: %w", l.coll.Name(), key, err)
	}

	// newest first from the cursor; callers want append order
	out := make([]T, len(docs))
	for i, d := range docs {
		out[len(docs)-1-i] = d.Item
	}
	return out, nil
}

type mongoDMs struct {
	*mongoLog[models.DirectMessage]
}

func (d *mongoDMs) MarkRead(ctx context.Context, key, readerID string) (int, error) {
	res, err := d.coll.UpdateMany(ctx,
		bson.M{"key": key, "item.toId": readerID, "item.read": false},
		bson.M{"$set": bson.M{"item.read": true}},
	)
	if err != nil {
		return 0, fmt.Errorf("store: marking %s read: %w", key, err)
	}
	return int(res.ModifiedCount), nil
}

type mongoVotes struct {
	coll *mongo.Collection
}

type voteDoc struct {
	ID     string `bson:"_id"`
	Target string `bson:"target"`
	Voter  string `bson:"voter"`
}

func voteID(target, voter string) string {
	return target + "|" + voter
}

func (v *mongoVotes) Add(ctx context.Context, target, voter string) (bool, error) {
	_, err := v.coll.InsertOne(ctx, voteDoc{ID: voteID(target, voter), Target: target, Voter: voter})
	if mongo.IsDuplicateKeyError(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: adding vote on %s: %w", target, err)
	}
	return true, nil
}

func (v *mongoVotes) Remove(ctx context.Context, target, voter string) error {
	if _, err := v.coll.DeleteOne(ctx, bson.M{"_id": voteID(target, voter)}); err != nil {
		return fmt.Errorf("store: removing vote on %s: %w", target, err)
	}
	return nil
}

func (v *mongoVotes) Count(ctx context.Context, target string) (int, error) {
	n, err := v.coll.CountDocuments(ctx, bson.M{"target": target})
	if err != nil {
		return 0, fmt.Errorf("store: counting votes on %s: %w", target, err)
	}
	return int(n), nil
}

func (v *mongoVotes) Clear(ctx context.Context, target string) error {
	if _, err := v.coll.DeleteMany(ctx, bson.M{"target": target}); err != nil {
		return fmt.Errorf("store: clearing votes on %s: %w", target, err)
	}
	return nil
}
