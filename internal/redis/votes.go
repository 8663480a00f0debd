package redis

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"

	"promohub/internal/keylock"
	"promohub/internal/metrics"
	"promohub/internal/vote"
)

// addVoter inserts ARGV[1] into the voter set and returns {added, count}
// atomically.
var addVoter = redis.NewScript(`
local added = redis.call('SADD', KEYS[1], ARGV[1])
return {added, redis.call('SCARD', KEYS[1])}
`)

// VoteGuard keeps voter sets in Redis. Membership and count come from one
// script call; the in-process lock keeps apply calls for a target in count
// order.
type VoteGuard struct {
	client *Client
	locks  *keylock.Map
}

var _ vote.Guard = (*VoteGuard)(nil)

func NewVoteGuard(client *Client) *VoteGuard {
	return &VoteGuard{client: client, locks: keylock.New()}
}

func votersKey(target string) string {
	return "votes:" + target + ":voters"
}

func (g *VoteGuard) TryVote(ctx context.Context, targetID, voterID string, apply vote.ApplyFunc) (vote.Result, error) {
	unlock := g.locks.Lock(targetID)
	defer unlock()

	key := votersKey(targetID)
	res, err := addVoter.Run(ctx, g.client.rdb, []string{key}, voterID).Slice()
	if err != nil {
		metrics.Votes.WithLabelValues("error").Inc()
		return vote.Result{}, fmt.Errorf("redis: recording vote on %s: %w", targetID, err)
	}
	if len(res) != 2 {
		metrics.Votes.WithLabelValues("error").Inc()
		return vote.Result{}, fmt.Errorf("redis: unexpected vote script reply %v", res)
	}
	added, _ := res[0].(int64)
	count, _ := res[1].(int64)

	if added == 0 {
		metrics.Votes.WithLabelValues("duplicate").Inc()
		return vote.Result{Accepted: false, Count: int(count), Reason: vote.ReasonAlreadyVoted}, nil
	}

	if apply != nil {
		if err := apply(ctx, int(count)); err != nil {
			if rerr := g.client.rdb.SRem(ctx, key, voterID).Err(); rerr != nil {
				g.client.logger.Error("[REDIS] Vote rollback failed", "target", targetID, "voter", voterID, "error", rerr)
			}
			metrics.Votes.WithLabelValues("error").Inc()
			return vote.Result{}, err
		}
	}

	metrics.Votes.WithLabelValues("accepted").Inc()
	return vote.Result{Accepted: true, Count: int(count)}, nil
}

func (g *VoteGuard) Clear(ctx context.Context, targetID string) error {
	unlock := g.locks.Lock(targetID)
	defer unlock()

	if err := g.client.rdb.Del(ctx, votersKey(targetID)).Err(); err != nil {
		return fmt.Errorf("redis: clearing votes on %s: %w", targetID, err)
	}
	return nil
}
