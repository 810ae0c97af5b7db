package session

import (
	"context"
	"errors"
	"strings"

	bookingRepo "homeglow/database/repository/booking"
	"homeglow/models"
	"homeglow/services/payment"

	"go.uber.org/zap"
)

// MaterializeBooking turns a complete, paid session into a permanent booking. The
// session is marked consumed in the same transaction as the insert, so it yields at
// most one booking. On a repeated call the existing booking is returned together
// with ErrConsumed.
func (s *DefaultSessionService) MaterializeBooking(ctx context.Context, sessionID, paymentReference string) (*models.Booking, error) {
	const op = "materialize booking"

	session, err := s.load(ctx, op, sessionID)
	if err != nil {
		return nil, err
	}
	if session.IsConsumed() {
		return s.existingBooking(ctx, op, session)
	}
	if !session.Satisfies(models.StepConfirm) {
		return nil, fail(op, sessionID, ErrInvalidState, "service, address and timeslot are required to book")
	}

	quote, err := s.quote(ctx, op, session)
	if err != nil {
		return nil, err
	}
	paymentReference = strings.TrimSpace(paymentReference)
	if !quote.SkipPayment {
		if err := s.verifyPayment(ctx, op, session, quote, paymentReference); err != nil {
			return nil, err
		}
	}

	now := s.now()
	booking := &models.Booking{
		ID:               s.newID(),
		SessionID:        session.SessionID,
		ClientID:         session.ClientID,
		GuestEmail:       session.GuestEmail,
		GuestAddress:     session.GuestAddress,
		AddressID:        session.AddressID,
		ServiceID:        *session.ServiceID,
		ContractorID:     session.ContractorID,
		Timeslot:         *session.Timeslot,
		ServiceAmount:    quote.ServicePrice,
		PromoCodeID:      session.PromoCodeID,
		PromoDiscount:    quote.PromoDiscount,
		GiftCardID:       session.GiftCardID,
		GiftCardAmount:   quote.GiftCardAmount,
		AmountPaid:       quote.AmountDue,
		Currency:         quote.Currency,
		PaymentReference: paymentReference,
		Status:           models.BookingPending,
		CreatedAt:        now,
	}

	err = s.inTransaction(ctx, func(ctx context.Context) error {
		if err := s.Sessions.MarkConsumed(ctx, sessionID, session.Version, booking.ID, now); err != nil {
			return wrap(op, sessionID, err)
		}
		if err := s.Bookings.Create(ctx, booking); err != nil {
			return wrap(op, sessionID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log().Info("booking materialized",
		zap.String("session", sessionID),
		zap.String("booking", booking.ID),
		zap.Int64("amountPaid", booking.AmountPaid),
	)
	s.publishHandoff(ctx, booking)
	return booking, nil
}

func (s *DefaultSessionService) verifyPayment(ctx context.Context, op string, session *models.BookingSession, quote *models.Quote, reference string) error {
	if reference == "" {
		return fail(op, session.SessionID, ErrPaymentMismatch, "payment reference is required for amount %d", quote.AmountDue)
	}
	if session.PaymentIntentID == nil || *session.PaymentIntentID != reference {
		return fail(op, session.SessionID, ErrPaymentMismatch, "reference %s was not prepared for this session", reference)
	}
	intent, err := s.Payments.GetIntent(ctx, reference)
	if err != nil {
		return wrap(op, session.SessionID, err)
	}
	if !payment.IsAuthorized(intent.Status) {
		return fail(op, session.SessionID, ErrPaymentMismatch, "payment %s is %s", reference, intent.Status)
	}
	if intent.Amount != quote.AmountDue {
		return fail(op, session.SessionID, ErrPaymentMismatch, "paid %d, due %d", intent.Amount, quote.AmountDue)
	}
	return nil
}

func (s *DefaultSessionService) existingBooking(ctx context.Context, op string, session *models.BookingSession) (*models.Booking, error) {
	consumed := fail(op, session.SessionID, ErrConsumed, "booking %s already created", deref(session.BookingID))
	booking, err := s.Bookings.GetBySessionID(ctx, session.SessionID)
	if errors.Is(err, bookingRepo.ErrBookingNotFound) {
		return nil, consumed
	}
	if err != nil {
		return nil, wrap(op, session.SessionID, err)
	}
	return booking, consumed
}

func (s *DefaultSessionService) publishHandoff(ctx context.Context, booking *models.Booking) {
	if s.Handoff == nil {
		return
	}
	payload := models.BookingHandoffPayload{
		BookingID:    booking.ID,
		SessionID:    booking.SessionID,
		ClientID:     booking.ClientID,
		GuestEmail:   booking.GuestEmail,
		ContractorID: booking.ContractorID,
	}
	if err := s.Handoff.PublishMaterialized(ctx, payload); err != nil {
		s.log().Error("failed to enqueue booking hand-off",
			zap.String("booking", booking.ID),
			zap.Error(err),
		)
	}
}
