package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"promohub/internal/models"
	"promohub/internal/store"
	"promohub/internal/vote"
)

type published struct {
	recipient  string
	event      models.Event
	disconnect bool
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *recordingPublisher) Publish(_ context.Context, e models.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{event: e})
}

func (p *recordingPublisher) SendTo(_ context.Context, userID string, e models.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{recipient: userID, event: e})
}

func (p *recordingPublisher) Disconnect(_ context.Context, userID string, e models.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{recipient: userID, event: e, disconnect: true})
}

func (p *recordingPublisher) kinds() []models.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.event.Kind())
	}
	return out
}

func (p *recordingPublisher) last() published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.events[len(p.events)-1]
}

type staticIssuer struct{}

func (staticIssuer) Generate(userID string) (string, error) { return "token-" + userID, nil }

type fixture struct {
	store      *store.Memory
	pub        *recordingPublisher
	users      *UserService
	content    *ContentService
	groups     *GroupService
	moderation *ModerationService
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.NewMemory("", discardLogger())
	require.NoError(t, err)

	pub := &recordingPublisher{}
	guard := vote.NewStoreGuard(st.Votes())
	users := NewUserService(st, nil, pub, discardLogger())
	return &fixture{
		store:      st,
		pub:        pub,
		users:      users,
		content:    NewContentService(st, users, guard, pub, discardLogger()),
		groups:     NewGroupService(st, users, guard, pub, discardLogger()),
		moderation: NewModerationService(st, users, discardLogger()),
	}
}

func (f *fixture) register(t *testing.T, email, name string) models.User {
	t.Helper()
	u, _, err := f.users.Register(context.Background(), RegisterInput{Email: email, Name: name})
	require.NoError(t, err)
	return u
}
