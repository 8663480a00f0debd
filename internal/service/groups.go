package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"promohub/internal/apperror"
	"promohub/internal/keylock"
	"promohub/internal/models"
	"promohub/internal/store"
	"promohub/internal/vote"
)

const maxGroupNameLength = 60

type GroupInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	OwnerEmail  string `json:"ownerEmail"`
}

type GroupMessageInput struct {
	SenderEmail string `json:"senderEmail"`
	Text        string `json:"text"`
}

// GroupService manages groups, their membership counters and group chat.
// Messages of one group are appended and published under the group's lock so
// subscribers see them in log order.
type GroupService struct {
	store  store.Store
	users  *UserService
	guard  vote.Guard
	pub    Publisher
	locks  *keylock.Map
	logger *slog.Logger
}

func NewGroupService(st store.Store, users *UserService, guard vote.Guard, pub Publisher, logger *slog.Logger) *GroupService {
	return &GroupService{
		store:  st,
		users:  users,
		guard:  guard,
		pub:    pub,
		locks:  keylock.New(),
		logger: logger,
	}
}

func groupTarget(id string) string { return "group:" + id }

func (s *GroupService) List(ctx context.Context, limit int) ([]models.Group, error) {
	groups, err := s.store.Groups().List(ctx, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("listing groups: %w", err)
	}
	return groups, nil
}

// Create stores a new group and makes the owner its first member.
func (s *GroupService) Create(ctx context.Context, in GroupInput) (models.Group, error) {
	name, err := requireText("name", in.Name, maxGroupNameLength)
	if err != nil {
		return models.Group{}, err
	}
	desc, err := optionalText("description", in.Description, maxDescriptionLength)
	if err != nil {
		return models.Group{}, err
	}
	owner, err := s.users.Active(ctx, "ownerEmail", in.OwnerEmail)
	if err != nil {
		return models.Group{}, err
	}

	g := models.Group{
		ID:          newID(),
		Name:        name,
		Description: desc,
		OwnerEmail:  owner.Email,
		CreatedAt:   now(),
	}
	if err := s.store.Groups().Upsert(ctx, g); err != nil {
		s.logger.Error("[GROUPS] Failed to save group", "owner", owner.Email, "error", err)
		return models.Group{}, fmt.Errorf("creating group: %w", err)
	}

	res, err := s.guard.TryVote(ctx, groupTarget(g.ID), owner.Email, s.setMembers(g.ID, false))
	if err != nil {
		return models.Group{}, fmt.Errorf("adding group owner: %w", err)
	}
	g.Members = res.Count

	s.logger.Info("[GROUPS] Group created", "id", g.ID, "owner", owner.Email)
	s.pub.Publish(ctx, models.NewGroupCreated(g))
	return g, nil
}

// Join adds email to the group once; joining again is not an error.
func (s *GroupService) Join(ctx context.Context, id, email string) (vote.Result, error) {
	member, err := s.users.Active(ctx, "email", email)
	if err != nil {
		return vote.Result{}, err
	}
	if _, err := s.store.Groups().Get(ctx, id); err != nil {
		return vote.Result{}, err
	}
	return s.guard.TryVote(ctx, groupTarget(id), member.Email, s.setMembers(id, true))
}

func (s *GroupService) setMembers(id string, announce bool) vote.ApplyFunc {
	return func(ctx context.Context, count int) error {
		_, err := s.store.Groups().Apply(ctx, id, func(cur models.Group, found bool) (models.Group, error) {
			if !found {
				return cur, apperror.NotFound("group", id)
			}
			cur.Members = count
			return cur, nil
		})
		if err != nil {
			return fmt.Errorf("storing group members: %w", err)
		}
		if announce {
			s.pub.Publish(ctx, models.NewGroupMembers(id, count))
		}
		return nil
	}
}

func (s *GroupService) Messages(ctx context.Context, id string, limit int) ([]models.GroupMessage, error) {
	if _, err := s.store.Groups().Get(ctx, id); err != nil {
		return nil, err
	}
	msgs, err := s.store.GroupMessages().Tail(ctx, id, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("loading group messages: %w", err)
	}
	if msgs == nil {
		msgs = []models.GroupMessage{}
	}
	return msgs, nil
}

func (s *GroupService) PostMessage(ctx context.Context, id string, in GroupMessageInput) (models.GroupMessage, error) {
	text := models.Truncate(strings.TrimSpace(in.Text), models.MaxMessageLength)
	if text == "" {
		return models.GroupMessage{}, apperror.ValidationFailed("text", "text is required")
	}
	sender, err := s.users.Active(ctx, "senderEmail", in.SenderEmail)
	if err != nil {
		return models.GroupMessage{}, err
	}
	if _, err := s.store.Groups().Get(ctx, id); err != nil {
		return models.GroupMessage{}, err
	}

	m := models.GroupMessage{
		ID:          newID(),
		GroupID:     id,
		SenderEmail: sender.Email,
		SenderName:  sender.Name,
		Text:        text,
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	m.Timestamp = now()
	if err := s.store.GroupMessages().Append(ctx, id, m); err != nil {
		s.logger.Error("[GROUPS] Failed to save group message", "group", id, "error", err)
		return models.GroupMessage{}, fmt.Errorf("posting group message: %w", err)
	}
	s.pub.Publish(ctx, models.NewGroupMessage(m))
	return m, nil
}
