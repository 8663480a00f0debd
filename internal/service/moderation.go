package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"promohub/internal/apperror"
	"promohub/internal/models"
	"promohub/internal/store"
)

const maxReasonLength = 1000

var reportTargets = map[string]bool{
	"project": true,
	"post":    true,
	"user":    true,
	"group":   true,
	"message": true,
}

type ReportInput struct {
	ReporterEmail string `json:"reporterEmail"`
	TargetType    string `json:"targetType"`
	TargetID      string `json:"targetId"`
	Reason        string `json:"reason"`
}

type AdminDMInput struct {
	FromEmail string `json:"fromEmail"`
	Text      string `json:"text"`
}

// ModerationService records reports and messages to the moderators. Reading
// them back is an admin operation; callers check the admin key first.
type ModerationService struct {
	store  store.Store
	users  *UserService
	logger *slog.Logger
}

func NewModerationService(st store.Store, users *UserService, logger *slog.Logger) *ModerationService {
	return &ModerationService{store: st, users: users, logger: logger}
}

func (s *ModerationService) Report(ctx context.Context, in ReportInput) (models.Report, error) {
	reporter, err := normalizeEmail("reporterEmail", in.ReporterEmail)
	if err != nil {
		return models.Report{}, err
	}
	kind := strings.ToLower(strings.TrimSpace(in.TargetType))
	if !reportTargets[kind] {
		return models.Report{}, apperror.ValidationFailed("targetType", fmt.Sprintf("cannot report a %q", in.TargetType))
	}
	target, err := requireText("targetId", in.TargetID, maxURLLength)
	if err != nil {
		return models.Report{}, err
	}
	reason, err := requireText("reason", in.Reason, maxReasonLength)
	if err != nil {
		return models.Report{}, err
	}

	r := models.Report{
		ID:            newID(),
		ReporterEmail: reporter,
		TargetType:    kind,
		TargetID:      target,
		Reason:        reason,
		Status:        models.ReportOpen,
		CreatedAt:     now(),
	}
	if err := s.store.Reports().Upsert(ctx, r); err != nil {
		s.logger.Error("[MODERATION] Failed to save report", "reporter", reporter, "error", err)
		return models.Report{}, fmt.Errorf("creating report: %w", err)
	}

	s.logger.Info("[MODERATION] Report filed", "id", r.ID, "target_type", kind, "target", target)
	return r, nil
}

func (s *ModerationService) Reports(ctx context.Context) ([]models.Report, error) {
	reports, err := s.store.Reports().List(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}
	return reports, nil
}

// MessageAdmins stores a message for the moderators. Banned users may still
// write, it is how they appeal.
func (s *ModerationService) MessageAdmins(ctx context.Context, in AdminDMInput) (models.AdminDM, error) {
	from, err := normalizeEmail("fromEmail", in.FromEmail)
	if err != nil {
		return models.AdminDM{}, err
	}
	text, err := requireText("text", in.Text, maxDescriptionLength)
	if err != nil {
		return models.AdminDM{}, err
	}

	name := from
	if u, err := s.users.Get(ctx, from); err == nil && u.Name != "" {
		name = u.Name
	}

	dm := models.AdminDM{
		ID:        newID(),
		FromEmail: from,
		FromName:  name,
		Text:      text,
		CreatedAt: now(),
	}
	if err := s.store.AdminDMs().Upsert(ctx, dm); err != nil {
		s.logger.Error("[MODERATION] Failed to save admin message", "from", from, "error", err)
		return models.AdminDM{}, fmt.Errorf("creating admin message: %w", err)
	}
	return dm, nil
}

func (s *ModerationService) AdminDMs(ctx context.Context) ([]models.AdminDM, error) {
	dms, err := s.store.AdminDMs().List(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("listing admin messages: %w", err)
	}
	return dms, nil
}
