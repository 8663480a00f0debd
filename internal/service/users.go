package service

import (
	"context"
	"fmt"
	"log/slog"

	"promohub/internal/apperror"
	"promohub/internal/models"
	"promohub/internal/store"
)

const (
	maxNameLength   = 80
	maxHandleLength = 40
	maxURLLength    = 500
)

// TokenIssuer signs session tokens for registered users.
type TokenIssuer interface {
	Generate(userID string) (string, error)
}

type RegisterInput struct {
	Email  string `json:"email"`
	Name   string `json:"name"`
	Handle string `json:"handle"`
	Avatar string `json:"avatar"`
}

type UserService struct {
	store  store.Store
	tokens TokenIssuer
	pub    Publisher
	logger *slog.Logger
}

// NewUserService creates the service; tokens may be nil, in which case
// Register returns no token.
func NewUserService(st store.Store, tokens TokenIssuer, pub Publisher, logger *slog.Logger) *UserService {
	return &UserService{store: st, tokens: tokens, pub: pub, logger: logger}
}

// Register upserts a user by email. Repeating it never creates a second
// record: profile fields take the latest values while createdAt, plan, ban
// state and counters are kept.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (models.User, string, error) {
	email, err := normalizeEmail("email", in.Email)
	if err != nil {
		return models.User{}, "", err
	}
	name, err := optionalText("name", in.Name, maxNameLength)
	if err != nil {
		return models.User{}, "", err
	}
	handle, err := optionalText("handle", in.Handle, maxHandleLength)
	if err != nil {
		return models.User{}, "", err
	}
	avatar, err := optionalText("avatar", in.Avatar, maxURLLength)
	if err != nil {
		return models.User{}, "", err
	}

	user, err := s.store.Users().Apply(ctx, email, func(cur models.User, found bool) (models.User, error) {
		ts := now()
		if !found {
			cur = models.User{Email: email, Plan: models.PlanFree, CreatedAt: ts}
		}
		if name != "" {
			cur.Name = name
		} else if cur.Name == "" {
			cur.Name = email
		}
		if handle != "" {
			cur.Handle = handle
		}
		if avatar != "" {
			cur.Avatar = avatar
		}
		cur.UpdatedAt = ts
		return cur, nil
	})
	if err != nil {
		s.logger.Error("[USERS] Registration failed", "email", email, "error", err)
		return models.User{}, "", fmt.Errorf("registering user: %w", err)
	}

	token := ""
	if s.tokens != nil {
		if token, err = s.tokens.Generate(email); err != nil {
			return models.User{}, "", fmt.Errorf("issuing token: %w", err)
		}
	}

	s.logger.Info("[USERS] User registered", "email", email)
	return user, token, nil
}

func (s *UserService) Get(ctx context.Context, email string) (models.User, error) {
	email, err := normalizeEmail("email", email)
	if err != nil {
		return models.User{}, err
	}
	return s.store.Users().Get(ctx, email)
}

// Active returns the user behind email, refusing banned accounts.
func (s *UserService) Active(ctx context.Context, field, email string) (models.User, error) {
	email, err := normalizeEmail(field, email)
	if err != nil {
		return models.User{}, err
	}
	u, err := s.store.Users().Get(ctx, email)
	if err != nil {
		return models.User{}, err
	}
	if u.Banned {
		return models.User{}, apperror.Denied()
	}
	return u, nil
}

func (s *UserService) List(ctx context.Context) ([]models.User, error) {
	users, err := s.store.Users().List(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return users, nil
}

// SetBanned bans or unbans a user. A ban is pushed to the user's open
// connections, which are then closed.
func (s *UserService) SetBanned(ctx context.Context, email string, banned bool) (models.User, error) {
	email, err := normalizeEmail("email", email)
	if err != nil {
		return models.User{}, err
	}

	user, err := s.store.Users().Apply(ctx, email, func(cur models.User, found bool) (models.User, error) {
		if !found {
			return cur, apperror.NotFound("user", email)
		}
		ts := now()
		cur.Banned = banned
		if banned {
			cur.BannedAt = &ts
		} else {
			cur.BannedAt = nil
		}
		cur.UpdatedAt = ts
		return cur, nil
	})
	if err != nil {
		return models.User{}, err
	}

	s.logger.Info("[USERS] Ban state changed", "email", email, "banned", banned)
	if banned {
		s.pub.Disconnect(ctx, email, models.NewBanned("Your account has been suspended."))
	}
	return user, nil
}

// SetPlan records a paid plan upgrade.
func (s *UserService) SetPlan(ctx context.Context, email string, plan models.Plan) (models.User, error) {
	if !plan.Valid() {
		return models.User{}, apperror.ValidationFailed("plan", fmt.Sprintf("unknown plan %q", plan))
	}
	email, err := normalizeEmail("email", email)
	if err != nil {
		return models.User{}, err
	}

	user, err := s.store.Users().Apply(ctx, email, func(cur models.User, found bool) (models.User, error) {
		if !found {
			return cur, apperror.NotFound("user", email)
		}
		cur.Plan = plan
		cur.UpdatedAt = now()
		return cur, nil
	})
	if err != nil {
		return models.User{}, err
	}

	s.logger.Info("[USERS] Plan changed", "email", email, "plan", plan)
	return user, nil
}

func (s *UserService) bumpProjectCount(ctx context.Context, email string, delta int) error {
	_, err := s.store.Users().Apply(ctx, email, func(cur models.User, found bool) (models.User, error) {
		if !found {
			return cur, apperror.NotFound("user", email)
		}
		cur.ProjectCount += delta
		if cur.ProjectCount < 0 {
			cur.ProjectCount = 0
		}
		return cur, nil
	})
	return err
}
