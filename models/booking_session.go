package models

import (
	"errors"
	"fmt"
	"time"
)

// SessionTTL is the lifetime of a booking session from creation.
const SessionTTL = 30 * time.Minute

var (
	// ErrSessionNotFound is returned by session stores when no row matches the id.
	ErrSessionNotFound = errors.New("booking session not found")
	// ErrStaleSession is returned when a write was made against an outdated version.
	ErrStaleSession = errors.New("booking session was modified concurrently")
	// ErrSessionInvariant is wrapped by Validate when a structural invariant is broken.
	ErrSessionInvariant = errors.New("booking session invariant violated")
)

// GuestAddress is an address typed in by a guest before they have an account.
type GuestAddress struct {
	Street     string `bson:"street" json:"street" validate:"required,max=200"`
	City       string `bson:"city" json:"city" validate:"required,max=100"`
	PostalCode string `bson:"postal_code" json:"postalCode" validate:"required,max=20"`
	Country    string `bson:"country,omitempty" json:"country,omitempty" validate:"omitempty,max=100"`
	Details    string `bson:"details,omitempty" json:"details,omitempty" validate:"omitempty,max=500"` // floor, door code...
}

// Timeslot is the appointment window picked at the schedule step.
type Timeslot struct {
	Date      string `bson:"date" json:"date" validate:"required,datetime=2006-01-02"`
	StartTime string `bson:"start_time" json:"startTime" validate:"required,datetime=15:04"`
	EndTime   string `bson:"end_time" json:"endTime" validate:"required,datetime=15:04"`
}

// Bounds returns the start and end of the slot. End must be after start.
func (t Timeslot) Bounds() (time.Time, time.Time, error) {
	start, err := time.Parse("2006-01-02 15:04", t.Date+" "+t.StartTime)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid timeslot start: %w", err)
	}
	end, err := time.Parse("2006-01-02 15:04", t.Date+" "+t.EndTime)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid timeslot end: %w", err)
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("timeslot end %s is not after start %s", t.EndTime, t.StartTime)
	}
	return start, end, nil
}

// BookingSession is one user's in-progress attempt to book a service.
type BookingSession struct {
	SessionID string  `bson:"session_id" json:"sessionId"`
	ClientID  *string `bson:"client_id" json:"clientId"`
	IsGuest   bool    `bson:"is_guest" json:"isGuest"`

	GuestEmail   *string       `bson:"guest_email" json:"guestEmail"`
	GuestAddress *GuestAddress `bson:"guest_address" json:"guestAddress"`

	ServiceID    *string   `bson:"service_id" json:"serviceId"`
	AddressID    *string   `bson:"address_id" json:"addressId"`
	ContractorID *string   `bson:"contractor_id" json:"contractorId"`
	Timeslot     *Timeslot `bson:"timeslot" json:"timeslot"`
	CurrentStep  Step      `bson:"current_step" json:"currentStep"`

	PromoCodeID         *string `bson:"promo_code_id" json:"promoCodeId"`
	PromoCode           *string `bson:"promo_code" json:"promoCode"`
	PromoDiscountAmount int64   `bson:"promo_discount_amount" json:"promoDiscountAmount"` // minor units

	GiftCardID     *string `bson:"gift_card_id" json:"giftCardId"`
	GiftCardCode   *string `bson:"gift_card_code" json:"giftCardCode"`
	GiftCardAmount int64   `bson:"gift_card_amount" json:"giftCardAmount"` // minor units

	ContractorLocked bool `bson:"contractor_locked" json:"contractorLocked"`

	PaymentIntentID *string `bson:"payment_intent_id" json:"paymentIntentId,omitempty"`
	PaymentAmount   int64   `bson:"payment_amount" json:"paymentAmount,omitempty"`

	BookingID  *string    `bson:"booking_id" json:"bookingId,omitempty"`
	ConsumedAt *time.Time `bson:"consumed_at" json:"consumedAt,omitempty"`

	Version        int64     `bson:"version" json:"version"`
	ExpiresAt      time.Time `bson:"expires_at" json:"expiresAt"`
	LastActivityAt time.Time `bson:"last_activity_at" json:"lastActivityAt"`
	CreatedAt      time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt      time.Time `bson:"updated_at" json:"updatedAt"`
}

// IsExpired reports whether the session is dead at the given instant.
func (s *BookingSession) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// IsConsumed reports whether a booking has already been materialized from the session.
func (s *BookingSession) IsConsumed() bool {
	return s.ConsumedAt != nil
}

// HasAddress reports whether either address form is set.
func (s *BookingSession) HasAddress() bool {
	return s.AddressID != nil || s.GuestAddress != nil
}

// TotalDiscount is the sum of both discount attachments.
func (s *BookingSession) TotalDiscount() int64 {
	return s.PromoDiscountAmount + s.GiftCardAmount
}

// Satisfies reports whether every field required to stand at step is populated.
func (s *BookingSession) Satisfies(step Step) bool {
	if step >= StepAddress && s.ServiceID == nil {
		return false
	}
	if step >= StepSchedule && !s.HasAddress() {
		return false
	}
	if step >= StepConfirm && s.Timeslot == nil {
		return false
	}
	return true
}

// Validate checks the structural invariants that every stored session must hold.
func (s *BookingSession) Validate() error {
	hasClient := s.ClientID != nil && *s.ClientID != ""
	hasGuest := s.IsGuest && s.GuestEmail != nil && *s.GuestEmail != ""

	switch {
	case hasClient && hasGuest:
		return fmt.Errorf("%w: session is bound to both a client and a guest email", ErrSessionInvariant)
	case !hasClient && !hasGuest:
		return fmt.Errorf("%w: session has neither a client nor a guest email", ErrSessionInvariant)
	case hasClient && (s.IsGuest || s.GuestEmail != nil):
		return fmt.Errorf("%w: authenticated session carries guest identity fields", ErrSessionInvariant)
	case !s.IsGuest && s.GuestAddress != nil:
		return fmt.Errorf("%w: guest address on a non-guest session", ErrSessionInvariant)
	}
	if s.GuestAddress != nil && s.AddressID != nil {
		return fmt.Errorf("%w: both address_id and guest_address are set", ErrSessionInvariant)
	}
	if s.PromoDiscountAmount < 0 || s.GiftCardAmount < 0 {
		return fmt.Errorf("%w: negative discount amount", ErrSessionInvariant)
	}
	if s.PromoCodeID == nil && s.PromoDiscountAmount != 0 {
		return fmt.Errorf("%w: promo amount without promo code", ErrSessionInvariant)
	}
	if s.GiftCardID == nil && s.GiftCardAmount != 0 {
		return fmt.Errorf("%w: gift card amount without gift card", ErrSessionInvariant)
	}
	if !s.CurrentStep.Valid() {
		return fmt.Errorf("%w: step %d out of range", ErrSessionInvariant, s.CurrentStep)
	}
	if !s.Satisfies(s.CurrentStep) {
		return fmt.Errorf("%w: fields required by step %d are missing", ErrSessionInvariant, s.CurrentStep)
	}
	return nil
}

// Clone returns a deep copy so callers can merge into it without aliasing.
func (s *BookingSession) Clone() *BookingSession {
	c := *s
	c.ClientID = cloneString(s.ClientID)
	c.GuestEmail = cloneString(s.GuestEmail)
	c.ServiceID = cloneString(s.ServiceID)
	c.AddressID = cloneString(s.AddressID)
	c.ContractorID = cloneString(s.ContractorID)
	c.PromoCodeID = cloneString(s.PromoCodeID)
	c.PromoCode = cloneString(s.PromoCode)
	c.GiftCardID = cloneString(s.GiftCardID)
	c.GiftCardCode = cloneString(s.GiftCardCode)
	c.PaymentIntentID = cloneString(s.PaymentIntentID)
	c.BookingID = cloneString(s.BookingID)
	if s.GuestAddress != nil {
		ga := *s.GuestAddress
		c.GuestAddress = &ga
	}
	if s.Timeslot != nil {
		ts := *s.Timeslot
		c.Timeslot = &ts
	}
	if s.ConsumedAt != nil {
		t := *s.ConsumedAt
		c.ConsumedAt = &t
	}
	return &c
}

// SessionWithRelations is a session plus read-only snapshots of what it references.
type SessionWithRelations struct {
	*BookingSession
	Service    *ServiceSnapshot    `json:"service,omitempty"`
	Address    *ClientAddress      `json:"address,omitempty"`
	Contractor *ContractorSnapshot `json:"contractor,omitempty"`
}

// StringPtr is a small helper for optional string fields.
func StringPtr(v string) *string {
	return &v
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
