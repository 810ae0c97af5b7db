package payment

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"homeglow/models"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/paymentintent"
	"go.uber.org/zap"
)

// StripeGateway creates and inspects Stripe PaymentIntents.
type StripeGateway struct {
	intents *paymentintent.Client
	logger  *zap.Logger
}

func NewStripeGateway(key string, logger *zap.Logger) *StripeGateway {
	return &StripeGateway{
		intents: &paymentintent.Client{B: stripe.GetBackend(stripe.APIBackend), Key: key},
		logger:  logger,
	}
}

func (g *StripeGateway) CreateIntent(ctx context.Context, req models.PaymentIntentRequest) (*models.PaymentIntent, error) {
	if req.Amount <= 0 {
		return nil, errors.New("invalid payment amount")
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.Amount),
		Currency: stripe.String(req.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	if req.ReceiptEmail != "" {
		params.ReceiptEmail = stripe.String(req.ReceiptEmail)
	}
	if req.Idempotency != "" {
		params.SetIdempotencyKey(req.Idempotency)
	}
	params.AddMetadata("session_id", req.SessionID)
	params.AddMetadata("service_amount", strconv.FormatInt(req.ServiceAmount, 10))
	params.AddMetadata("promo_discount", strconv.FormatInt(req.PromoDiscount, 10))
	params.AddMetadata("gift_card_amount", strconv.FormatInt(req.GiftCardAmount, 10))

	pi, err := g.intents.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}
	g.logger.Info("payment intent created",
		zap.String("intent", pi.ID),
		zap.String("session", req.SessionID),
		zap.Int64("amount", pi.Amount),
	)
	return toIntent(pi), nil
}

func (g *StripeGateway) GetIntent(ctx context.Context, intentID string) (*models.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := g.intents.Get(intentID, params)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch payment intent %s: %w", intentID, err)
	}
	return toIntent(pi), nil
}

func (g *StripeGateway) CancelIntent(ctx context.Context, intentID string) error {
	params := &stripe.PaymentIntentCancelParams{}
	params.Context = ctx
	if _, err := g.intents.Cancel(intentID, params); err != nil {
		return fmt.Errorf("failed to cancel payment intent %s: %w", intentID, err)
	}
	return nil
}

func toIntent(pi *stripe.PaymentIntent) *models.PaymentIntent {
	return &models.PaymentIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
		Status:       string(pi.Status),
	}
}
