package bookingRepo

import (
	"context"
	"errors"

	"homeglow/models"
)

var (
	ErrBookingNotFound = errors.New("booking not found")
	// ErrDuplicateBooking is returned when a booking already exists for the session.
	ErrDuplicateBooking = errors.New("booking already exists for session")
)

// BookingRepository stores permanent bookings materialized from sessions.
type BookingRepository interface {
	Create(ctx context.Context, booking *models.Booking) error
	GetBySessionID(ctx context.Context, sessionID string) (*models.Booking, error)
}
