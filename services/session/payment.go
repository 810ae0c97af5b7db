package session

import (
	"context"
	"fmt"

	"homeglow/models"
	"homeglow/services/payment"

	"go.uber.org/zap"
)

// PreparePayment quotes a complete session and makes sure exactly one live payment
// intent exists for the amount due. A fully discounted session skips payment.
func (s *DefaultSessionService) PreparePayment(ctx context.Context, sessionID string) (*models.PaymentPreparation, error) {
	const op = "prepare payment"

	session, err := s.loadMutable(ctx, op, sessionID, nil)
	if err != nil {
		return nil, err
	}
	if !session.Satisfies(models.StepConfirm) {
		return nil, fail(op, sessionID, ErrInvalidState, "service, address and timeslot are required before payment")
	}
	quote, err := s.quote(ctx, op, session)
	if err != nil {
		return nil, err
	}

	if quote.SkipPayment {
		if stale := session.PaymentIntentID; stale != nil {
			if _, err := s.update(ctx, op, session, models.SessionPatch{ClearPaymentIntent: true}); err != nil {
				return nil, err
			}
			s.cancelIntentQuietly(ctx, sessionID, *stale)
		}
		s.log().Info("amount fully covered by discounts, skipping payment", zap.String("session", sessionID))
		return &models.PaymentPreparation{Quote: *quote}, nil
	}

	if session.PaymentIntentID != nil && session.PaymentAmount == quote.AmountDue {
		intent, err := s.Payments.GetIntent(ctx, *session.PaymentIntentID)
		if err == nil && intent.Status != payment.StatusCanceled && intent.Amount == quote.AmountDue {
			return &models.PaymentPreparation{Quote: *quote, Intent: intent}, nil
		}
		if err != nil {
			s.log().Warn("stored payment intent unavailable, creating a new one",
				zap.String("session", sessionID), zap.String("intent", *session.PaymentIntentID), zap.Error(err))
		}
	}
	stale := session.PaymentIntentID

	intent, err := s.Payments.CreateIntent(ctx, models.PaymentIntentRequest{
		SessionID:      sessionID,
		Amount:         quote.AmountDue,
		Currency:       quote.Currency,
		ServiceAmount:  quote.ServicePrice,
		PromoDiscount:  quote.PromoDiscount,
		GiftCardAmount: quote.GiftCardAmount,
		ReceiptEmail:   deref(session.GuestEmail),
		// One intent per session version and amount; retries of the same request reuse it.
		Idempotency: fmt.Sprintf("%s:%d:%d", sessionID, session.Version, quote.AmountDue),
	})
	if err != nil {
		return nil, wrap(op, sessionID, err)
	}
	if _, err := s.update(ctx, op, session, models.SessionPatch{
		PaymentIntentID: models.StringPtr(intent.ID),
		PaymentAmount:   models.Int64Ptr(intent.Amount),
	}); err != nil {
		// Leave the unstored intent alive: a retry at the same version gets it back
		// through the idempotency key.
		return nil, err
	}
	if stale != nil && *stale != intent.ID {
		s.cancelIntentQuietly(ctx, sessionID, *stale)
	}
	return &models.PaymentPreparation{Quote: *quote, Intent: intent}, nil
}

// cancelIntentQuietly cancels an intent the session no longer references. Callers
// run it only after the write that dropped the reference succeeded. Authorized
// intents are left alone for refund handling; failures are logged only, since an
// orphaned intent expires on the processor side.
func (s *DefaultSessionService) cancelIntentQuietly(ctx context.Context, sessionID, intentID string) {
	if s.Payments == nil || intentID == "" {
		return
	}
	logger := s.log().With(zap.String("session", sessionID), zap.String("intent", intentID))

	if current, err := s.Payments.GetIntent(ctx, intentID); err == nil {
		switch {
		case current.Status == payment.StatusCanceled:
			return
		case payment.IsAuthorized(current.Status):
			logger.Warn("replaced payment intent is already authorized, leaving it for refund", zap.String("status", current.Status))
			return
		}
	}
	if err := s.Payments.CancelIntent(ctx, intentID); err != nil {
		logger.Warn("failed to cancel payment intent", zap.Error(err))
	}
}
