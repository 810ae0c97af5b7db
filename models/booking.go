package models

import "time"

// BookingStatus is the lifecycle state of a permanent booking.
type BookingStatus string

const (
	BookingPending    BookingStatus = "pending"
	BookingConfirmed  BookingStatus = "confirmed"
	BookingInProgress BookingStatus = "in_progress"
	BookingCompleted  BookingStatus = "completed"
	BookingCancelled  BookingStatus = "cancelled"
)

// Booking is the permanent record materialized from a completed session.
type Booking struct {
	ID        string  `bson:"id" json:"id"`
	SessionID string  `bson:"session_id" json:"sessionId"`
	ClientID  *string `bson:"client_id" json:"clientId,omitempty"`

	GuestEmail   *string       `bson:"guest_email,omitempty" json:"guestEmail,omitempty"`
	GuestAddress *GuestAddress `bson:"guest_address,omitempty" json:"guestAddress,omitempty"`
	AddressID    *string       `bson:"address_id,omitempty" json:"addressId,omitempty"`

	ServiceID    string   `bson:"service_id" json:"serviceId"`
	ContractorID *string  `bson:"contractor_id,omitempty" json:"contractorId,omitempty"`
	Timeslot     Timeslot `bson:"timeslot" json:"timeslot"`

	ServiceAmount  int64   `bson:"service_amount" json:"serviceAmount"`
	PromoCodeID    *string `bson:"promo_code_id,omitempty" json:"promoCodeId,omitempty"`
	PromoDiscount  int64   `bson:"promo_discount" json:"promoDiscount"`
	GiftCardID     *string `bson:"gift_card_id,omitempty" json:"giftCardId,omitempty"`
	GiftCardAmount int64   `bson:"gift_card_amount" json:"giftCardAmount"`
	AmountPaid     int64   `bson:"amount_paid" json:"amountPaid"`
	Currency       string  `bson:"currency" json:"currency"`

	PaymentReference string        `bson:"payment_reference,omitempty" json:"paymentReference,omitempty"`
	Status           BookingStatus `bson:"status" json:"status"`
	CreatedAt        time.Time     `bson:"created_at" json:"createdAt"`
}

// BookingHandoffPayload is queued for downstream consumers (notifications, assignment).
type BookingHandoffPayload struct {
	BookingID    string  `json:"bookingId"`
	SessionID    string  `json:"sessionId"`
	ClientID     *string `json:"clientId,omitempty"`
	GuestEmail   *string `json:"guestEmail,omitempty"`
	ContractorID *string `json:"contractorId,omitempty"`
}
