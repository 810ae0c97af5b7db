package session

import (
	"errors"
	"fmt"

	bookingRepo "homeglow/database/repository/booking"
	"homeglow/models"
)

var (
	ErrNotFound              = errors.New("booking session not found")
	ErrExpired               = errors.New("booking session expired")
	ErrConsumed              = errors.New("booking session already used for a booking")
	ErrInvalidState          = errors.New("booking session is not ready for this step")
	ErrConflict              = errors.New("booking session conflict")
	ErrDiscountExceedsAmount = errors.New("discounts exceed the service amount")
	ErrNotAGuestSession      = errors.New("booking session is not a guest session")
	ErrInvalidInput          = errors.New("invalid input")
	ErrPaymentMismatch       = errors.New("payment does not match the amount due")
)

// SessionError carries the failing operation and session alongside a sentinel error.
type SessionError struct {
	Op        string
	SessionID string
	Err       error
}

func (e *SessionError) Error() string {
	if e.SessionID == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.SessionID, e.Err)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

// wrap translates store errors into the session taxonomy and attaches context.
func wrap(op, sessionID string, err error) error {
	if err == nil {
		return nil
	}
	var se *SessionError
	if errors.As(err, &se) {
		return err
	}
	switch {
	case errors.Is(err, models.ErrSessionNotFound):
		err = fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, models.ErrStaleSession), errors.Is(err, models.ErrSessionInvariant):
		err = fmt.Errorf("%w: %w", ErrConflict, err)
	case errors.Is(err, bookingRepo.ErrDuplicateBooking):
		err = fmt.Errorf("%w: %w", ErrConsumed, err)
	}
	return &SessionError{Op: op, SessionID: sessionID, Err: err}
}

func fail(op, sessionID string, kind error, format string, args ...any) error {
	return &SessionError{Op: op, SessionID: sessionID, Err: fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))}
}
