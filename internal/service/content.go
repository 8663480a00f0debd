package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"promohub/internal/apperror"
	"promohub/internal/models"
	"promohub/internal/store"
	"promohub/internal/vote"
)

const (
	maxTitleLength       = 120
	maxDescriptionLength = 2000
	maxPostLength        = 2000
)

type ProjectInput struct {
	OwnerEmail  string `json:"ownerEmail"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	ImageURL    string `json:"imageUrl"`
}

type PostInput struct {
	AuthorEmail string `json:"authorEmail"`
	Text        string `json:"text"`
	ImageURL    string `json:"imageUrl"`
}

// Requester identifies who asks for a destructive change. Admin requests skip
// the ownership check.
type Requester struct {
	Email string
	Admin bool
}

func (r Requester) owns(email string) bool {
	return r.Admin || (r.Email != "" && strings.EqualFold(r.Email, email))
}

// ContentService manages projects and posts with their votes and likes.
type ContentService struct {
	store  store.Store
	users  *UserService
	guard  vote.Guard
	pub    Publisher
	logger *slog.Logger
}

func NewContentService(st store.Store, users *UserService, guard vote.Guard, pub Publisher, logger *slog.Logger) *ContentService {
	return &ContentService{store: st, users: users, guard: guard, pub: pub, logger: logger}
}

func projectTarget(id string) string { return "project:" + id }
func postTarget(id string) string    { return "post:" + id }

func (s *ContentService) ListProjects(ctx context.Context, limit int) ([]models.Project, error) {
	projects, err := s.store.Projects().List(ctx, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	return projects, nil
}

func (s *ContentService) CreateProject(ctx context.Context, in ProjectInput) (models.Project, error) {
	title, err := requireText("title", in.Title, maxTitleLength)
	if err != nil {
		return models.Project{}, err
	}
	desc, err := optionalText("description", in.Description, maxDescriptionLength)
	if err != nil {
		return models.Project{}, err
	}
	link, err := optionalText("url", in.URL, maxURLLength)
	if err != nil {
		return models.Project{}, err
	}
	image, err := optionalText("imageUrl", in.ImageURL, maxURLLength)
	if err != nil {
		return models.Project{}, err
	}
	owner, err := s.users.Active(ctx, "ownerEmail", in.OwnerEmail)
	if err != nil {
		return models.Project{}, err
	}

	p := models.Project{
		ID:          newID(),
		OwnerEmail:  owner.Email,
		OwnerName:   owner.Name,
		Title:       title,
		Description: desc,
		URL:         link,
		ImageURL:    image,
		CreatedAt:   now(),
	}
	if err := s.store.Projects().Upsert(ctx, p); err != nil {
		s.logger.Error("[CONTENT] Failed to save project", "owner", owner.Email, "error", err)
		return models.Project{}, fmt.Errorf("creating project: %w", err)
	}
	if err := s.users.bumpProjectCount(ctx, owner.Email, 1); err != nil {
		s.logger.Warn("[CONTENT] Failed to update project count", "owner", owner.Email, "error", err)
	}

	s.logger.Info("[CONTENT] Project created", "id", p.ID, "owner", owner.Email)
	s.pub.Publish(ctx, models.NewProjectCreated(p))
	return p, nil
}

// VoteProject counts voterID's vote once. The stored counter and the
// vote_update broadcast both happen while the project's vote target is
// locked.
func (s *ContentService) VoteProject(ctx context.Context, id, voterID string) (vote.Result, error) {
	voterID = strings.TrimSpace(voterID)
	if voterID == "" {
		return vote.Result{}, apperror.ValidationFailed("voterId", "voterId is required")
	}
	if _, err := s.store.Projects().Get(ctx, id); err != nil {
		return vote.Result{}, err
	}

	return s.guard.TryVote(ctx, projectTarget(id), voterID, func(ctx context.Context, count int) error {
		_, err := s.store.Projects().Apply(ctx, id, func(cur models.Project, found bool) (models.Project, error) {
			if !found {
				return cur, apperror.NotFound("project", id)
			}
			cur.Votes = count
			return cur, nil
		})
		if err != nil {
			return fmt.Errorf("storing project votes: %w", err)
		}
		s.pub.Publish(ctx, models.NewVoteUpdate(id, count))
		return nil
	})
}

func (s *ContentService) DeleteProject(ctx context.Context, id string, who Requester) error {
	p, err := s.store.Projects().Get(ctx, id)
	if err != nil {
		return err
	}
	if !who.owns(p.OwnerEmail) {
		return apperror.Denied()
	}
	if err := s.store.Projects().Remove(ctx, id); err != nil {
		return fmt.Errorf("deleting project: %w", err)
	}
	if err := s.users.bumpProjectCount(ctx, p.OwnerEmail, -1); err != nil && !errors.Is(err, apperror.ErrNotFound) {
		s.logger.Warn("[CONTENT] Failed to update project count", "owner", p.OwnerEmail, "error", err)
	}
	if err := s.guard.Clear(ctx, projectTarget(id)); err != nil {
		s.logger.Warn("[CONTENT] Failed to clear project votes", "id", id, "error", err)
	}

	s.logger.Info("[CONTENT] Project deleted", "id", id, "admin", who.Admin)
	s.pub.Publish(ctx, models.NewProjectDeleted(id))
	return nil
}

func (s *ContentService) ListPosts(ctx context.Context, limit int) ([]models.Post, error) {
	posts, err := s.store.Posts().List(ctx, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("listing posts: %w", err)
	}
	return posts, nil
}

func (s *ContentService) CreatePost(ctx context.Context, in PostInput) (models.Post, error) {
	text, err := requireText("text", in.Text, maxPostLength)
	if err != nil {
		return models.Post{}, err
	}
	image, err := optionalText("imageUrl", in.ImageURL, maxURLLength)
	if err != nil {
		return models.Post{}, err
	}
	author, err := s.users.Active(ctx, "authorEmail", in.AuthorEmail)
	if err != nil {
		return models.Post{}, err
	}

	p := models.Post{
		ID:          newID(),
		AuthorEmail: author.Email,
		AuthorName:  author.Name,
		AuthorPlan:  author.Plan,
		Text:        text,
		ImageURL:    image,
		CreatedAt:   now(),
	}
	if err := s.store.Posts().Upsert(ctx, p); err != nil {
		s.logger.Error("[CONTENT] Failed to save post", "author", author.Email, "error", err)
		return models.Post{}, fmt.Errorf("creating post: %w", err)
	}

	s.logger.Info("[CONTENT] Post created", "id", p.ID, "author", author.Email)
	s.pub.Publish(ctx, models.NewPostCreated(p))
	return p, nil
}

// LikePost counts one like per user per post.
func (s *ContentService) LikePost(ctx context.Context, id, userID string) (vote.Result, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return vote.Result{}, apperror.ValidationFailed("userId", "userId is required")
	}
	if _, err := s.store.Posts().Get(ctx, id); err != nil {
		return vote.Result{}, err
	}

	return s.guard.TryVote(ctx, postTarget(id), userID, func(ctx context.Context, count int) error {
		_, err := s.store.Posts().Apply(ctx, id, func(cur models.Post, found bool) (models.Post, error) {
			if !found {
				return cur, apperror.NotFound("post", id)
			}
			cur.Likes = count
			return cur, nil
		})
		if err != nil {
			return fmt.Errorf("storing post likes: %w", err)
		}
		s.pub.Publish(ctx, models.NewLikeUpdate(id, count))
		return nil
	})
}

func (s *ContentService) DeletePost(ctx context.Context, id string, who Requester) error {
	p, err := s.store.Posts().Get(ctx, id)
	if err != nil {
		return err
	}
	if !who.owns(p.AuthorEmail) {
		return apperror.Denied()
	}
	if err := s.store.Posts().Remove(ctx, id); err != nil {
		return fmt.Errorf("deleting post: %w", err)
	}
	if err := s.guard.Clear(ctx, postTarget(id)); err != nil {
		s.logger.Warn("[CONTENT] Failed to clear post likes", "id", id, "error", err)
	}

	s.logger.Info("[CONTENT] Post deleted", "id", id, "admin", who.Admin)
	s.pub.Publish(ctx, models.NewPostDeleted(id))
	return nil
}
