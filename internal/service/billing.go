package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"promohub/internal/apperror"
	"promohub/internal/models"
	"promohub/internal/payment"
)

// BillingService turns plan purchases into payment intents and applies the
// upgrades reported by the payment webhook.
type BillingService struct {
	payments payment.Provider
	users    *UserService
	timeout  time.Duration
	logger   *slog.Logger
}

// NewBillingService creates the service. A nil provider makes every call
// return apperror.ErrUnavailable.
func NewBillingService(payments payment.Provider, users *UserService, timeout time.Duration, logger *slog.Logger) *BillingService {
	return &BillingService{payments: payments, users: users, timeout: timeout, logger: logger}
}

func (s *BillingService) CreateIntent(ctx context.Context, email string, plan models.Plan) (payment.Intent, error) {
	if s.payments == nil {
		return payment.Intent{}, apperror.Unavailable("payments are not configured")
	}
	if _, ok := payment.Price(plan); !ok {
		return payment.Intent{}, apperror.ValidationFailed("plan", fmt.Sprintf("plan %q cannot be purchased", plan))
	}
	user, err := s.users.Get(ctx, email)
	if err != nil {
		return payment.Intent{}, err
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	intent, err := s.payments.CreateIntent(ctx, user.Email, plan)
	if err != nil {
		s.logger.Warn("[BILLING] Payment intent failed", "email", user.Email, "plan", plan, "error", err)
		return payment.Intent{}, err
	}
	return intent, nil
}

// HandleWebhook verifies a provider callback and upgrades the paying user.
// Events without an upgrade are accepted and ignored. An upgrade for an
// unknown user is an error so the provider retries and the failure shows.
func (s *BillingService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if s.payments == nil {
		return apperror.Unavailable("payments are not configured")
	}
	up, err := s.payments.ParseWebhook(payload, signature)
	if errors.Is(err, payment.ErrIgnoredEvent) {
		return nil
	}
	if err != nil {
		return err
	}

	if _, err := s.users.SetPlan(ctx, up.Email, up.Plan); err != nil {
		s.logger.Error("[BILLING] Failed to apply plan upgrade", "intent", up.IntentID, "email", up.Email, "plan", up.Plan, "error", err)
		return fmt.Errorf("applying upgrade %s: %w", up.IntentID, err)
	}
	s.logger.Info("[BILLING] Plan upgraded", "intent", up.IntentID, "email", up.Email, "plan", up.Plan)
	return nil
}
