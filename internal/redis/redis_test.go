package redis

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promohub/internal/models"
	"promohub/internal/vote"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return newClient(rdb, slog.New(slog.NewTextHandler(io.Discard, nil))), mr
}

func TestNewClientBadURL(t *testing.T) {
	_, err := NewClient(context.Background(), "not a url", slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}

func TestVoteGuardScenario(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t)
	g := NewVoteGuard(c)

	res, err := g.TryVote(ctx, "p1", "u1", nil)
	require.NoError(t, err)
	assert.Equal(t, vote.Result{Accepted: true, Count: 1}, res)

	res, err = g.TryVote(ctx, "p1", "u1", nil)
	require.NoError(t, err)
	assert.Equal(t, vote.Result{Accepted: false, Count: 1, Reason: vote.ReasonAlreadyVoted}, res)

	res, err = g.TryVote(ctx, "p1", "u2", nil)
	require.NoError(t, err)
	assert.Equal(t, vote.Result{Accepted: true, Count: 2}, res)
}

func TestVoteGuardClear(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestClient(t)
	g := NewVoteGuard(c)

	_, err := g.TryVote(ctx, "p1", "u1", nil)
	require.NoError(t, err)
	_, err = g.TryVote(ctx, "p2", "u1", nil)
	require.NoError(t, err)

	require.NoError(t, g.Clear(ctx, "p1"))
	assert.False(t, mr.Exists(votersKey("p1")))
	assert.True(t, mr.Exists(votersKey("p2")))

	res, err := g.TryVote(ctx, "p1", "u1", nil)
	require.NoError(t, err)
	assert.Equal(t, vote.Result{Accepted: true, Count: 1}, res)
}

func TestVoteGuardRollback(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestClient(t)
	g := NewVoteGuard(c)

	boom := errors.New("persist failed")
	_, err := g.TryVote(ctx, "p1", "u1", func(context.Context, int) error { return boom })
	assert.ErrorIs(t, err, boom)

	members, _ := mr.Members(votersKey("p1"))
	assert.Empty(t, members)
}

func TestVoteGuardConcurrent(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t)
	g := NewVoteGuard(c)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := g.TryVote(ctx, "p1", "u1", nil)
			if err == nil && res.Accepted {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, accepted)
}

func TestPublishSubscribe(t *testing.T) {
	c, _ := newTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := c.Subscribe(ctx)
	require.NoError(t, err)
	got := make(chan models.Envelope, 16)
	go sub.Forward(ctx, func(env models.Envelope) { got <- env })

	payload, err := models.Encode(models.NewVoteUpdate("p1", 3))
	require.NoError(t, err)
	require.NoError(t, c.Publish(ctx, models.Envelope{Recipient: "u1", Payload: payload}))

	select {
	case env := <-got:
		assert.Equal(t, "u1", env.Recipient)
		assert.JSONEq(t, string(payload), string(env.Payload))
	case <-time.After(2 * time.Second):
		t.Fatal("envelope never arrived")
	}
}

func TestPublishWithoutSubscribersFails(t *testing.T) {
	c, _ := newTestClient(t)
	payload, err := models.Encode(models.NewVoteUpdate("p1", 1))
	require.NoError(t, err)

	err = c.Publish(context.Background(), models.Envelope{Payload: payload})
	assert.ErrorIs(t, err, ErrNoSubscribers)
}

func TestSubscribeFailsWhenServerGone(t *testing.T) {
	c, mr := newTestClient(t)
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := c.Subscribe(ctx)
	assert.Error(t, err)
}
