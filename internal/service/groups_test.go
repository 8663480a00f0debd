package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promohub/internal/apperror"
	"promohub/internal/models"
)

func TestGroupCreateAndJoin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "owner@example.com", "Owner")
	f.register(t, "fan@example.com", "Fan")

	g, err := f.groups.Create(ctx, GroupInput{Name: "Indie SaaS", OwnerEmail: "owner@example.com"})
	require.NoError(t, err)
	assert.Equal(t, 1, g.Members, "owner is the first member")

	res, err := f.groups.Join(ctx, g.ID, "fan@example.com")
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	assert.Equal(t, 2, res.Count)

	res, err = f.groups.Join(ctx, g.ID, "owner@example.com")
	require.NoError(t, err)
	assert.False(t, res.Accepted)
	assert.Equal(t, 2, res.Count)

	stored, err := f.store.Groups().Get(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Members)

	assert.Equal(t, []models.EventType{models.EvtNewGroup, models.EvtGroupMembers}, f.pub.kinds())
}

func TestGroupJoinUnknown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "fan@example.com", "Fan")

	_, err := f.groups.Join(ctx, "nope", "fan@example.com")
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = f.groups.Create(ctx, GroupInput{Name: "x", OwnerEmail: "ghost@example.com"})
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestGroupMessagesKeepOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "owner@example.com", "Owner")
	g, err := f.groups.Create(ctx, GroupInput{Name: "Indie SaaS", OwnerEmail: "owner@example.com"})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := f.groups.PostMessage(ctx, g.ID, GroupMessageInput{SenderEmail: "owner@example.com", Text: fmt.Sprintf("m%d", i)})
		require.NoError(t, err)
	}

	msgs, err := f.groups.Messages(ctx, g.ID, 3)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "m2", msgs[0].Text)
	assert.Equal(t, "m4", msgs[2].Text)
	assert.Equal(t, "Owner", msgs[2].SenderName)

	ev := f.pub.last().event.(models.GroupMessageEvent)
	assert.Equal(t, g.ID, ev.GroupID)
	assert.Equal(t, "m4", ev.Message.Text)
}

func TestGroupMessageValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "owner@example.com", "Owner")
	g, err := f.groups.Create(ctx, GroupInput{Name: "Indie SaaS", OwnerEmail: "owner@example.com"})
	require.NoError(t, err)

	_, err = f.groups.PostMessage(ctx, g.ID, GroupMessageInput{SenderEmail: "owner@example.com", Text: "   "})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	long := make([]rune, models.MaxMessageLength+20)
	for i := range long {
		long[i] = 'x'
	}
	m, err := f.groups.PostMessage(ctx, g.ID, GroupMessageInput{SenderEmail: "owner@example.com", Text: string(long)})
	require.NoError(t, err)
	assert.Len(t, m.Text, models.MaxMessageLength)

	msgs, err := f.groups.Messages(ctx, "missing", 0)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	assert.Nil(t, msgs)
}
