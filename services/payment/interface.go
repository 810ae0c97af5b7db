package payment

import (
	"context"

	"homeglow/models"
)

// Gateway is the payment processor as seen by the booking core. The core only
// supplies amounts and receives references; capture and refunds live elsewhere.
type Gateway interface {
	CreateIntent(ctx context.Context, req models.PaymentIntentRequest) (*models.PaymentIntent, error)
	GetIntent(ctx context.Context, intentID string) (*models.PaymentIntent, error)
	CancelIntent(ctx context.Context, intentID string) error
}

// Intent statuses the booking core acts on. Succeeded and requires_capture mean
// funds are secured for the booking.
const (
	StatusSucceeded       = "succeeded"
	StatusRequiresCapture = "requires_capture"
	StatusCanceled        = "canceled"
)

// IsAuthorized reports whether an intent in status guarantees payment.
func IsAuthorized(status string) bool {
	return status == StatusSucceeded || status == StatusRequiresCapture
}
