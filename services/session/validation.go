package session

import (
	"strings"

	"homeglow/models"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

func validateGuestAddress(op, sessionID string, addr *models.GuestAddress) error {
	addr.Street = strings.TrimSpace(addr.Street)
	addr.City = strings.TrimSpace(addr.City)
	addr.PostalCode = strings.TrimSpace(addr.PostalCode)
	addr.Country = strings.TrimSpace(addr.Country)
	addr.Details = strings.TrimSpace(addr.Details)
	if err := validate.Struct(addr); err != nil {
		return fail(op, sessionID, ErrInvalidInput, "guest address: %v", err)
	}
	return nil
}

func validateTimeslot(op, sessionID string, slot models.Timeslot) error {
	if err := validate.Struct(slot); err != nil {
		return fail(op, sessionID, ErrInvalidInput, "timeslot: %v", err)
	}
	if _, _, err := slot.Bounds(); err != nil {
		return fail(op, sessionID, ErrInvalidInput, "%v", err)
	}
	return nil
}
