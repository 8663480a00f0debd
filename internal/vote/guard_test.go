package vote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promohub/internal/store"
)

func newGuard(t *testing.T) (*StoreGuard, store.Store) {
	t.Helper()
	m, err := store.NewMemory("", slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return NewStoreGuard(m.Votes()), m
}

func TestTryVoteDuplicateThenOther(t *testing.T) {
	ctx := context.Background()
	g, _ := newGuard(t)

	var published []int
	apply := func(_ context.Context, count int) error {
		published = append(published, count)
		return nil
	}

	res, err := g.TryVote(ctx, "p1", "u1", apply)
	require.NoError(t, err)
	assert.Equal(t, Result{Accepted: true, Count: 1}, res)

	res, err = g.TryVote(ctx, "p1", "u1", apply)
	require.NoError(t, err)
	assert.Equal(t, Result{Accepted: false, Count: 1, Reason: ReasonAlreadyVoted}, res)

	res, err = g.TryVote(ctx, "p1", "u2", apply)
	require.NoError(t, err)
	assert.Equal(t, Result{Accepted: true, Count: 2}, res)

	assert.Equal(t, []int{1, 2}, published)
}

func TestTryVoteRollsBackOnApplyError(t *testing.T) {
	ctx := context.Background()
	g, s := newGuard(t)

	boom := errors.New("store down")
	_, err := g.TryVote(ctx, "p1", "u1", func(context.Context, int) error { return boom })
	assert.ErrorIs(t, err, boom)

	n, err := s.Votes().Count(ctx, "p1")
	require.NoError(t, err)
	assert.Zero(t, n)

	res, err := g.TryVote(ctx, "p1", "u1", nil)
	require.NoError(t, err)
	assert.True(t, res.Accepted)
}

func TestTryVoteConcurrentSameVoter(t *testing.T) {
	ctx := context.Background()
	g, _ := newGuard(t)

	const attempts = 50
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < attempts; i++ {
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

func TestTryVoteCountsAreMonotonic(t *testing.T) {
	ctx := context.Background()
	g, _ := newGuard(t)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen []int
	)
	apply := func(_ context.Context, count int) error {
		mu.Lock()
		seen = append(seen, count)
		mu.Unlock()
		return nil
	}

	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = g.TryVote(ctx, "p1", fmt.Sprintf("u%d", i), apply)
		}(i)
	}
	wg.Wait()

	require.Len(t, seen, 30)
	for i := range seen {
		assert.Equal(t, i+1, seen[i])
	}
}

func TestClearForgetsVoters(t *testing.T) {
	ctx := context.Background()
	g, s := newGuard(t)

	_, err := g.TryVote(ctx, "p1", "u1", nil)
	require.NoError(t, err)
	require.NoError(t, g.Clear(ctx, "p1"))

	n, err := s.Votes().Count(ctx, "p1")
	require.NoError(t, err)
	assert.Zero(t, n)

	res, err := g.TryVote(ctx, "p1", "u1", nil)
	require.NoError(t, err)
	assert.Equal(t, Result{Accepted: true, Count: 1}, res)
}
