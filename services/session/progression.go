package session

import (
	"context"
	"errors"
	"strings"

	addressRepo "homeglow/database/repository/address"
	catalogRepo "homeglow/database/repository/catalog"
	"homeglow/models"

	"go.uber.org/zap"
)

// Step numbers are a progress indicator. Each select* call forces the step it
// completes, which may move the session backwards; that is intentional.

func (s *DefaultSessionService) SelectService(ctx context.Context, sessionID, serviceID string, expectedVersion *int64) (*models.BookingSession, error) {
	const op = "select service"

	serviceID = strings.TrimSpace(serviceID)
	if serviceID == "" {
		return nil, fail(op, sessionID, ErrInvalidInput, "service id is required")
	}
	session, err := s.loadMutable(ctx, op, sessionID, expectedVersion)
	if err != nil {
		return nil, err
	}
	if _, err := s.activeService(ctx, op, sessionID, serviceID); err != nil {
		return nil, err
	}

	patch := models.SessionPatch{
		ServiceID:   models.StringPtr(serviceID),
		CurrentStep: models.StepPtr(models.StepService.Next()),
	}
	// Discounts and intents were priced against the previous service.
	if session.ServiceID != nil && *session.ServiceID != serviceID {
		if session.PromoCodeID != nil || session.GiftCardID != nil {
			s.log().Info("service changed, dropping applied discounts",
				zap.String("session", sessionID),
				zap.String("from", *session.ServiceID),
				zap.String("to", serviceID),
			)
		}
		patch.ClearPromoCode = true
		patch.ClearGiftCard = true
		patch.ClearPaymentIntent = session.PaymentIntentID != nil
	}
	stale := session.PaymentIntentID

	updated, err := s.update(ctx, op, session, patch)
	if err != nil {
		return nil, err
	}
	if patch.ClearPaymentIntent && stale != nil {
		s.cancelIntentQuietly(ctx, sessionID, *stale)
	}
	return updated, nil
}

func (s *DefaultSessionService) SelectAddress(ctx context.Context, sessionID, addressID string, expectedVersion *int64) (*models.BookingSession, error) {
	const op = "select address"

	addressID = strings.TrimSpace(addressID)
	if addressID == "" {
		return nil, fail(op, sessionID, ErrInvalidInput, "address id is required")
	}
	session, err := s.loadMutable(ctx, op, sessionID, expectedVersion)
	if err != nil {
		return nil, err
	}
	if session.ServiceID == nil {
		return nil, fail(op, sessionID, ErrInvalidState, "select a service before an address")
	}
	if session.ClientID == nil {
		return nil, fail(op, sessionID, ErrInvalidState, "guest sessions must provide a guest address")
	}

	addr, err := s.Addresses.GetByID(ctx, addressID)
	if errors.Is(err, addressRepo.ErrAddressNotFound) {
		return nil, fail(op, sessionID, ErrInvalidInput, "unknown address %s", addressID)
	}
	if err != nil {
		return nil, wrap(op, sessionID, err)
	}
	if addr.ClientID != *session.ClientID {
		return nil, fail(op, sessionID, ErrInvalidInput, "unknown address %s", addressID)
	}

	return s.update(ctx, op, session, models.SessionPatch{
		AddressID:         models.StringPtr(addressID),
		ClearGuestAddress: true,
		CurrentStep:       models.StepPtr(models.StepAddress.Next()),
	})
}

func (s *DefaultSessionService) SelectGuestAddress(ctx context.Context, sessionID string, address models.GuestAddress, expectedVersion *int64) (*models.BookingSession, error) {
	const op = "select guest address"

	if err := validateGuestAddress(op, sessionID, &address); err != nil {
		return nil, err
	}
	session, err := s.loadMutable(ctx, op, sessionID, expectedVersion)
	if err != nil {
		return nil, err
	}
	if session.ServiceID == nil {
		return nil, fail(op, sessionID, ErrInvalidState, "select a service before an address")
	}
	if !session.IsGuest {
		return nil, fail(op, sessionID, ErrInvalidState, "authenticated sessions must select a saved address")
	}

	return s.update(ctx, op, session, models.SessionPatch{
		GuestAddress: &address,
		ClearAddress: true,
		CurrentStep:  models.StepPtr(models.StepAddress.Next()),
	})
}

func (s *DefaultSessionService) SelectTimeslotAndContractor(ctx context.Context, sessionID string, slot models.Timeslot, contractorID *string, expectedVersion *int64) (*models.BookingSession, error) {
	const op = "select timeslot"

	if err := validateTimeslot(op, sessionID, slot); err != nil {
		return nil, err
	}
	session, err := s.loadMutable(ctx, op, sessionID, expectedVersion)
	if err != nil {
		return nil, err
	}
	if !session.HasAddress() {
		return nil, fail(op, sessionID, ErrInvalidState, "select an address before a timeslot")
	}

	patch := models.SessionPatch{
		Timeslot:    &slot,
		CurrentStep: models.StepPtr(models.StepSchedule.Next()),
	}
	if contractorID != nil && strings.TrimSpace(*contractorID) != "" {
		id := strings.TrimSpace(*contractorID)
		if err := s.checkContractorChange(ctx, op, session, id); err != nil {
			return nil, err
		}
		patch.ContractorID = models.StringPtr(id)
	}
	return s.update(ctx, op, session, patch)
}

// SelectContractor sets the contractor after the timeslot without touching the step.
func (s *DefaultSessionService) SelectContractor(ctx context.Context, sessionID, contractorID string, expectedVersion *int64) (*models.BookingSession, error) {
	const op = "select contractor"

	contractorID = strings.TrimSpace(contractorID)
	if contractorID == "" {
		return nil, fail(op, sessionID, ErrInvalidInput, "contractor id is required")
	}
	session, err := s.loadMutable(ctx, op, sessionID, expectedVersion)
	if err != nil {
		return nil, err
	}
	if session.Timeslot == nil {
		return nil, fail(op, sessionID, ErrInvalidState, "select a timeslot before a contractor")
	}
	if err := s.checkContractorChange(ctx, op, session, contractorID); err != nil {
		return nil, err
	}
	return s.update(ctx, op, session, models.SessionPatch{ContractorID: models.StringPtr(contractorID)})
}

// RewindToStep moves the wizard back for back-navigation. Selections made at later
// steps are kept so the user can move forward again without retyping them.
func (s *DefaultSessionService) RewindToStep(ctx context.Context, sessionID string, step models.Step, expectedVersion *int64) (*models.BookingSession, error) {
	const op = "rewind step"

	if !step.Valid() {
		return nil, fail(op, sessionID, ErrInvalidInput, "step %d out of range", step)
	}
	session, err := s.loadMutable(ctx, op, sessionID, expectedVersion)
	if err != nil {
		return nil, err
	}
	if step > session.CurrentStep {
		return nil, fail(op, sessionID, ErrInvalidState, "cannot rewind forward from step %d to %d", session.CurrentStep, step)
	}
	if !session.Satisfies(step) {
		return nil, fail(op, sessionID, ErrInvalidState, "step %s is missing earlier selections", step)
	}
	return s.update(ctx, op, session, models.SessionPatch{CurrentStep: models.StepPtr(step)})
}

func (s *DefaultSessionService) activeService(ctx context.Context, op, sessionID, serviceID string) (*models.ServiceSnapshot, error) {
	svc, err := s.Catalog.GetService(ctx, serviceID)
	if errors.Is(err, catalogRepo.ErrServiceNotFound) {
		return nil, fail(op, sessionID, ErrInvalidInput, "unknown service %s", serviceID)
	}
	if err != nil {
		return nil, wrap(op, sessionID, err)
	}
	if !svc.Active {
		return nil, fail(op, sessionID, ErrInvalidInput, "service %s is not bookable", serviceID)
	}
	return svc, nil
}

func (s *DefaultSessionService) checkContractor(ctx context.Context, op, sessionID, contractorID string) error {
	contractor, err := s.Catalog.GetContractor(ctx, contractorID)
	if errors.Is(err, catalogRepo.ErrContractorNotFound) {
		return fail(op, sessionID, ErrInvalidInput, "unknown contractor %s", contractorID)
	}
	if err != nil {
		return wrap(op, sessionID, err)
	}
	if !contractor.Active {
		return fail(op, sessionID, ErrInvalidInput, "contractor %s is not available", contractorID)
	}
	return nil
}

func (s *DefaultSessionService) checkContractorChange(ctx context.Context, op string, session *models.BookingSession, contractorID string) error {
	if session.ContractorLocked && session.ContractorID != nil && *session.ContractorID != contractorID {
		return fail(op, session.SessionID, ErrInvalidState, "contractor is locked to %s", *session.ContractorID)
	}
	return s.checkContractor(ctx, op, session.SessionID, contractorID)
}
