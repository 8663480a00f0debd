// Package vote enforces "at most one vote per voter per target". The same
// guard backs project votes, post likes and group memberships.
package vote

import (
	"context"
	"fmt"

	"promohub/internal/keylock"
	"promohub/internal/metrics"
	"promohub/internal/store"
)

// ReasonAlreadyVoted is the Result.Reason of a duplicate vote.
const ReasonAlreadyVoted = "already_voted"

type Result struct {
	Accepted bool   `json:"accepted"`
	Count    int    `json:"votes"`
	Reason   string `json:"reason,omitempty"`
}

// ApplyFunc persists and publishes the new count of an accepted vote. It runs
// while the target is still locked, so successive calls for one target see
// strictly increasing counts.
type ApplyFunc func(ctx context.Context, count int) error

type Guard interface {
	TryVote(ctx context.Context, targetID, voterID string, apply ApplyFunc) (Result, error)
	// Clear forgets every voter of a deleted target.
	Clear(ctx context.Context, targetID string) error
}

// StoreGuard keeps voter sets in a store.VoteSets and serializes each target
// with an in-process lock.
type StoreGuard struct {
	votes store.VoteSets
	locks *keylock.Map
}

var _ Guard = (*StoreGuard)(nil)

func NewStoreGuard(votes store.VoteSets) *StoreGuard {
	return &StoreGuard{votes: votes, locks: keylock.New()}
}

// TryVote records voterID against targetID. A duplicate is not an error: it
// returns Accepted=false with the unchanged count. When apply fails the vote
// is withdrawn and the error returned.
func (g *StoreGuard) TryVote(ctx context.Context, targetID, voterID string, apply ApplyFunc) (Result, error) {
	unlock := g.locks.Lock(targetID)
	defer unlock()

	added, err := g.votes.Add(ctx, targetID, voterID)
	if err != nil {
		metrics.Votes.WithLabelValues("error").Inc()
		return Result{}, fmt.Errorf("vote: recording %s on %s: %w", voterID, targetID, err)
	}

	count, err := g.votes.Count(ctx, targetID)
	if err != nil {
		if added {
			_ = g.votes.Remove(ctx, targetID, voterID)
		}
		metrics.Votes.WithLabelValues("error").Inc()
		return Result{}, fmt.Errorf("vote: counting %s: %w", targetID, err)
	}

	if !added {
		metrics.Votes.WithLabelValues("duplicate").Inc()
		return Result{Accepted: false, Count: count, Reason: ReasonAlreadyVoted}, nil
	}

	if apply != nil {
		if err := apply(ctx, count); err != nil {
			if rerr := g.votes.Remove(ctx, targetID, voterID); rerr != nil {
				err = fmt.Errorf("%w (rollback failed: %v)", err, rerr)
			}
			metrics.Votes.WithLabelValues("error").Inc()
			return Result{}, err
		}
	}

	metrics.Votes.WithLabelValues("accepted").Inc()
	return Result{Accepted: true, Count: count}, nil
}

func (g *StoreGuard) Clear(ctx context.Context, targetID string) error {
	unlock := g.locks.Lock(targetID)
	defer unlock()

	if err := g.votes.Clear(ctx, targetID); err != nil {
		return fmt.Errorf("vote: clearing %s: %w", targetID, err)
	}
	return nil
}
