// Package payment creates plan upgrade payment intents and verifies the
// provider's webhook callbacks.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/goccy/go-json"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"promohub/internal/apperror"
	"promohub/internal/models"
)

// Monthly plan prices in US cents.
var prices = map[models.Plan]int64{
	models.PlanStarter: 900,
	models.PlanPro:     1900,
	models.PlanElite:   4900,
}

// Price returns the price of a paid plan; ok is false for free or unknown
// plans.
func Price(plan models.Plan) (cents int64, ok bool) {
	cents, ok = prices[plan]
	return cents, ok
}

type Intent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"clientSecret"`
}

// Upgrade is the outcome of a successful payment: email paid for plan.
type Upgrade struct {
	IntentID string
	Email    string
	Plan     models.Plan
}

// ErrIgnoredEvent is returned for verified webhook events that carry no plan
// upgrade.
var ErrIgnoredEvent = errors.New("payment: event ignored")

type Provider interface {
	CreateIntent(ctx context.Context, email string, plan models.Plan) (Intent, error)
	// ParseWebhook verifies the signature and extracts the upgrade of a
	// succeeded payment. Other event types return ErrIgnoredEvent.
	ParseWebhook(payload []byte, signature string) (Upgrade, error)
}

type Stripe struct {
	api           *client.API
	webhookSecret string
	logger        *slog.Logger
}

var _ Provider = (*Stripe)(nil)

func NewStripe(secretKey, webhookSecret string, logger *slog.Logger) *Stripe {
	return &Stripe{
		api:           client.New(secretKey, nil),
		webhookSecret: webhookSecret,
		logger:        logger,
	}
}

func (s *Stripe) CreateIntent(ctx context.Context, email string, plan models.Plan) (Intent, error) {
	amount, ok := Price(plan)
	if !ok {
		return Intent{}, apperror.ValidationFailed("plan", fmt.Sprintf("plan %q cannot be purchased", plan))
	}

	params := &stripe.PaymentIntentParams{
		Amount:       stripe.Int64(amount),
		Currency:     stripe.String(string(stripe.CurrencyUSD)),
		ReceiptEmail: stripe.String(email),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata("email", email)
	params.AddMetadata("plan", string(plan))

	pi, err := s.api.PaymentIntents.New(params)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Intent{}, apperror.Timeout("stripe")
		}
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Msg != "" {
			return Intent{}, apperror.Upstream("stripe", errors.New(stripeErr.Msg))
		}
		return Intent{}, apperror.Upstream("stripe", err)
	}

	s.logger.Info("[PAYMENT] Payment intent created", "intent", pi.ID, "email", email, "plan", plan)
	return Intent{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

func (s *Stripe) ParseWebhook(payload []byte, signature string) (Upgrade, error) {
	if s.webhookSecret == "" {
		return Upgrade{}, apperror.Unavailable("payment webhooks are not configured")
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return Upgrade{}, apperror.ValidationFailed("signature", "invalid webhook signature")
	}

	if event.Type != stripe.EventTypePaymentIntentSucceeded {
		s.logger.Debug("[PAYMENT] Ignoring webhook event", "type", event.Type)
		return Upgrade{}, ErrIgnoredEvent
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return Upgrade{}, apperror.ValidationFailed("payload", "malformed payment intent")
	}

	up := Upgrade{
		IntentID: pi.ID,
		Email:    pi.Metadata["email"],
		Plan:     models.Plan(pi.Metadata["plan"]),
	}
	if up.Email == "" || !up.Plan.Valid() {
		return Upgrade{}, apperror.ValidationFailed("metadata", "payment intent lacks email or plan metadata")
	}
	return up, nil
}
