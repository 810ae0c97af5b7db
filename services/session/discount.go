package session

import (
	"context"
	"errors"
	"strings"

	catalogRepo "homeglow/database/repository/catalog"
	"homeglow/models"
	"homeglow/services/usage"

	"go.uber.org/zap"
)

// DiscountInput is an already-priced discount. ApplyPromoCode and ApplyGiftCard
// record it as given, so only trusted callers use them directly; HTTP clients go
// through RedeemPromoCode and RedeemGiftCard, which price the code from the catalog.
type DiscountInput struct {
	ID     string `json:"id" binding:"required"`
	Code   string `json:"code" binding:"required"`
	Amount int64  `json:"amount"`
}

func (s *DefaultSessionService) ApplyPromoCode(ctx context.Context, sessionID string, in DiscountInput, expectedVersion *int64) (*models.BookingSession, error) {
	const op = "apply promo code"

	session, err := s.loadDiscountable(ctx, op, sessionID, in, expectedVersion)
	if err != nil {
		return nil, err
	}
	// The new promo replaces the old one, so only the gift card counts against the price.
	if err := s.checkDiscountFits(ctx, op, session, in.Amount, session.GiftCardAmount); err != nil {
		return nil, err
	}

	updated, err := s.update(ctx, op, session, models.SessionPatch{
		PromoCodeID:         models.StringPtr(in.ID),
		PromoCode:           models.StringPtr(in.Code),
		PromoDiscountAmount: models.Int64Ptr(in.Amount),
	})
	if err != nil {
		return nil, err
	}
	s.recordUsage(ctx, usage.KindPromoCode, sessionID, in.Code)
	return updated, nil
}

func (s *DefaultSessionService) RemovePromoCode(ctx context.Context, sessionID string, expectedVersion *int64) (*models.BookingSession, error) {
	const op = "remove promo code"

	session, err := s.loadMutable(ctx, op, sessionID, expectedVersion)
	if err != nil {
		return nil, err
	}
	return s.update(ctx, op, session, models.SessionPatch{ClearPromoCode: true})
}

func (s *DefaultSessionService) ApplyGiftCard(ctx context.Context, sessionID string, in DiscountInput, expectedVersion *int64) (*models.BookingSession, error) {
	const op = "apply gift card"

	session, err := s.loadDiscountable(ctx, op, sessionID, in, expectedVersion)
	if err != nil {
		return nil, err
	}
	if err := s.checkDiscountFits(ctx, op, session, session.PromoDiscountAmount, in.Amount); err != nil {
		return nil, err
	}

	updated, err := s.update(ctx, op, session, models.SessionPatch{
		GiftCardID:     models.StringPtr(in.ID),
		GiftCardCode:   models.StringPtr(in.Code),
		GiftCardAmount: models.Int64Ptr(in.Amount),
	})
	if err != nil {
		return nil, err
	}
	s.recordUsage(ctx, usage.KindGiftCard, sessionID, in.Code)
	return updated, nil
}

func (s *DefaultSessionService) RemoveGiftCard(ctx context.Context, sessionID string, expectedVersion *int64) (*models.BookingSession, error) {
	const op = "remove gift card"

	session, err := s.loadMutable(ctx, op, sessionID, expectedVersion)
	if err != nil {
		return nil, err
	}
	return s.update(ctx, op, session, models.SessionPatch{ClearGiftCard: true})
}

// Quote prices the session against the current catalog.
func (s *DefaultSessionService) Quote(ctx context.Context, sessionID string) (*models.Quote, error) {
	const op = "quote"

	session, err := s.load(ctx, op, sessionID)
	if err != nil {
		return nil, err
	}
	if session.ServiceID == nil {
		return nil, fail(op, sessionID, ErrInvalidState, "no service selected")
	}
	return s.quote(ctx, op, session)
}

func (s *DefaultSessionService) quote(ctx context.Context, op string, session *models.BookingSession) (*models.Quote, error) {
	svc, err := s.activeService(ctx, op, session.SessionID, *session.ServiceID)
	if err != nil {
		return nil, err
	}
	currency := svc.Currency
	if currency == "" {
		currency = s.currency()
	}
	q := models.NewQuote(svc.Price, session.PromoDiscountAmount, session.GiftCardAmount, strings.ToLower(currency))
	return &q, nil
}

func (s *DefaultSessionService) loadDiscountable(ctx context.Context, op, sessionID string, in DiscountInput, expectedVersion *int64) (*models.BookingSession, error) {
	if strings.TrimSpace(in.ID) == "" || strings.TrimSpace(in.Code) == "" {
		return nil, fail(op, sessionID, ErrInvalidInput, "discount id and code are required")
	}
	if in.Amount < 0 {
		return nil, fail(op, sessionID, ErrInvalidInput, "discount amount %d is negative", in.Amount)
	}
	session, err := s.loadMutable(ctx, op, sessionID, expectedVersion)
	if err != nil {
		return nil, err
	}
	if session.ServiceID == nil {
		return nil, fail(op, sessionID, ErrInvalidState, "select a service before applying discounts")
	}
	return session, nil
}

// checkDiscountFits enforces promo + gift <= service price without forming the sum,
// so huge amounts cannot wrap. Both amounts are non-negative here. Nothing is
// written on failure.
func (s *DefaultSessionService) checkDiscountFits(ctx context.Context, op string, session *models.BookingSession, promo, gift int64) error {
	svc, err := s.activeService(ctx, op, session.SessionID, *session.ServiceID)
	if err != nil {
		return err
	}
	if promo > svc.Price || gift > svc.Price || promo > svc.Price-gift {
		return fail(op, session.SessionID, ErrDiscountExceedsAmount,
			"discounts %d + %d exceed price %d", promo, gift, svc.Price)
	}
	return nil
}

// RedeemPromoCode looks the code up in the catalog, prices it against the selected
// service and applies the result.
func (s *DefaultSessionService) RedeemPromoCode(ctx context.Context, sessionID, code string, expectedVersion *int64) (*models.BookingSession, error) {
	const op = "redeem promo code"

	session, svc, err := s.loadPriced(ctx, op, sessionID, code, expectedVersion)
	if err != nil {
		return nil, err
	}
	promo, err := s.Catalog.GetPromoCode(ctx, code)
	if err != nil {
		if errors.Is(err, catalogRepo.ErrPromoCodeNotFound) {
			return nil, fail(op, sessionID, ErrInvalidInput, "unknown promo code %q", code)
		}
		return nil, wrap(op, sessionID, err)
	}
	if !promo.Usable(svc.ID, s.now()) {
		return nil, fail(op, sessionID, ErrInvalidInput, "promo code %q is not valid for this booking", code)
	}

	// Pin the version the price was computed against.
	return s.ApplyPromoCode(ctx, sessionID, DiscountInput{
		ID:     promo.ID,
		Code:   promo.Code,
		Amount: promo.DiscountFor(svc.Price),
	}, &session.Version)
}

// RedeemGiftCard applies as much of the card's balance as the price left after the
// promo allows.
func (s *DefaultSessionService) RedeemGiftCard(ctx context.Context, sessionID, code string, expectedVersion *int64) (*models.BookingSession, error) {
	const op = "redeem gift card"

	session, svc, err := s.loadPriced(ctx, op, sessionID, code, expectedVersion)
	if err != nil {
		return nil, err
	}
	card, err := s.Catalog.GetGiftCard(ctx, code)
	if err != nil {
		if errors.Is(err, catalogRepo.ErrGiftCardNotFound) {
			return nil, fail(op, sessionID, ErrInvalidInput, "unknown gift card %q", code)
		}
		return nil, wrap(op, sessionID, err)
	}
	if !card.Usable(s.now()) {
		return nil, fail(op, sessionID, ErrInvalidInput, "gift card %q cannot be redeemed", code)
	}
	currency := svc.Currency
	if currency == "" {
		currency = s.currency()
	}
	if card.Currency != "" && !strings.EqualFold(card.Currency, currency) {
		return nil, fail(op, sessionID, ErrInvalidInput, "gift card currency %s does not match %s", card.Currency, currency)
	}

	amount := card.AmountFor(svc.Price - session.PromoDiscountAmount)
	if amount == 0 {
		return nil, fail(op, sessionID, ErrDiscountExceedsAmount, "nothing left for a gift card to cover")
	}
	return s.ApplyGiftCard(ctx, sessionID, DiscountInput{
		ID:     card.ID,
		Code:   card.Code,
		Amount: amount,
	}, &session.Version)
}

func (s *DefaultSessionService) loadPriced(ctx context.Context, op, sessionID, code string, expectedVersion *int64) (*models.BookingSession, *models.ServiceSnapshot, error) {
	if strings.TrimSpace(code) == "" {
		return nil, nil, fail(op, sessionID, ErrInvalidInput, "code is required")
	}
	session, err := s.loadMutable(ctx, op, sessionID, expectedVersion)
	if err != nil {
		return nil, nil, err
	}
	if session.ServiceID == nil {
		return nil, nil, fail(op, sessionID, ErrInvalidState, "select a service before applying discounts")
	}
	svc, err := s.activeService(ctx, op, sessionID, *session.ServiceID)
	if err != nil {
		return nil, nil, err
	}
	return session, svc, nil
}

func (s *DefaultSessionService) recordUsage(ctx context.Context, kind usage.Kind, sessionID, code string) {
	if s.Usage == nil {
		return
	}
	if err := s.Usage.Record(ctx, kind, code); err != nil {
		s.log().Warn("failed to record discount usage",
			zap.String("session", sessionID),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
	}
}
