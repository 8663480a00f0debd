package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promohub/internal/apperror"
	"promohub/internal/models"
	"promohub/internal/payment"
)

type fakeProvider struct {
	upgrade  payment.Upgrade
	parseErr error
	intentOf []string
}

func (p *fakeProvider) CreateIntent(ctx context.Context, email string, plan models.Plan) (payment.Intent, error) {
	if _, ok := ctx.Deadline(); !ok {
		return payment.Intent{}, assert.AnError
	}
	p.intentOf = append(p.intentOf, email+":"+string(plan))
	return payment.Intent{ID: "pi_1", ClientSecret: "pi_1_secret"}, nil
}

func (p *fakeProvider) ParseWebhook([]byte, string) (payment.Upgrade, error) {
	return p.upgrade, p.parseErr
}

func TestBillingCreateIntent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "buyer@example.com", "Buyer")
	provider := &fakeProvider{}
	billing := NewBillingService(provider, f.users, time.Second, discardLogger())

	intent, err := billing.CreateIntent(ctx, "buyer@example.com", models.PlanPro)
	require.NoError(t, err)
	assert.Equal(t, "pi_1_secret", intent.ClientSecret)
	assert.Equal(t, []string{"buyer@example.com:pro"}, provider.intentOf)

	_, err = billing.CreateIntent(ctx, "buyer@example.com", models.PlanFree)
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = billing.CreateIntent(ctx, "ghost@example.com", models.PlanPro)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestBillingWebhookUpgradesPlan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "buyer@example.com", "Buyer")
	provider := &fakeProvider{upgrade: payment.Upgrade{IntentID: "pi_1", Email: "buyer@example.com", Plan: models.PlanElite}}
	billing := NewBillingService(provider, f.users, time.Second, discardLogger())

	require.NoError(t, billing.HandleWebhook(ctx, []byte(`{}`), "sig"))
	u, err := f.users.Get(ctx, "buyer@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.PlanElite, u.Plan)
}

func TestBillingWebhookFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	provider := &fakeProvider{upgrade: payment.Upgrade{IntentID: "pi_2", Email: "ghost@example.com", Plan: models.PlanPro}}
	billing := NewBillingService(provider, f.users, time.Second, discardLogger())
	assert.ErrorIs(t, billing.HandleWebhook(ctx, nil, ""), apperror.ErrNotFound)

	provider.parseErr = payment.ErrIgnoredEvent
	assert.NoError(t, billing.HandleWebhook(ctx, nil, ""))

	provider.parseErr = apperror.ValidationFailed("signature", "invalid webhook signature")
	assert.ErrorIs(t, billing.HandleWebhook(ctx, nil, ""), apperror.ErrValidation)
}

func TestBillingUnconfigured(t *testing.T) {
	f := newFixture(t)
	billing := NewBillingService(nil, f.users, time.Second, discardLogger())

	_, err := billing.CreateIntent(context.Background(), "a@b.co", models.PlanPro)
	assert.ErrorIs(t, err, apperror.ErrUnavailable)
	assert.ErrorIs(t, billing.HandleWebhook(context.Background(), nil, ""), apperror.ErrUnavailable)
}
