package handlers

import (
	"errors"
	"net/http"

	"homeglow/models"
	"homeglow/services/session"
	"homeglow/utils"
)

// ErrorStatus maps a session error to its HTTP status and response body. Missing
// and expired sessions tell the client to restart the wizard from the first step.
func ErrorStatus(err error) (int, utils.ErrorResponse) {
	resp := utils.ErrorResponse{Details: err.Error()}

	switch {
	case errors.Is(err, session.ErrNotFound):
		resp.Message, resp.Code = "Booking session not found", "session_not_found"
		resp.Restart, resp.Step = true, int(models.StepService)
		return http.StatusNotFound, resp
	case errors.Is(err, session.ErrExpired):
		resp.Message, resp.Code = "Booking session expired", "session_expired"
		resp.Restart, resp.Step = true, int(models.StepService)
		return http.StatusGone, resp
	case errors.Is(err, session.ErrConsumed):
		resp.Message, resp.Code = "Booking already created for this session", "session_consumed"
		return http.StatusConflict, resp
	case errors.Is(err, session.ErrConflict):
		resp.Message, resp.Code = "Booking session was modified, reload and retry", "session_conflict"
		return http.StatusConflict, resp
	case errors.Is(err, session.ErrDiscountExceedsAmount):
		resp.Message, resp.Code = "Discounts exceed the service price", "discount_exceeds_amount"
		return http.StatusUnprocessableEntity, resp
	case errors.Is(err, session.ErrNotAGuestSession):
		resp.Message, resp.Code = "Session is not a guest session", "not_a_guest_session"
		return http.StatusUnprocessableEntity, resp
	case errors.Is(err, session.ErrInvalidState):
		resp.Message, resp.Code = "Booking session is not ready for this step", "invalid_state"
		return http.StatusUnprocessableEntity, resp
	case errors.Is(err, session.ErrInvalidInput):
		resp.Message, resp.Code = "Invalid request", "invalid_input"
		return http.StatusBadRequest, resp
	case errors.Is(err, session.ErrPaymentMismatch):
		resp.Message, resp.Code = "Payment does not cover the amount due", "payment_mismatch"
		return http.StatusPaymentRequired, resp
	default:
		return http.StatusInternalServerError, utils.ErrorResponse{
			Message: "Internal Server Error",
			Details: "An unexpected error occurred. Please try again later.",
		}
	}
}
