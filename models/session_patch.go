package models

import "time"

// SessionPatch is a partial update merged into a stored session.
// Nil pointers leave a field untouched; Clear flags null it out.
type SessionPatch struct {
	ClientID     *string
	IsGuest      *bool
	GuestAddress *GuestAddress
	ServiceID    *string
	AddressID    *string
	ContractorID *string
	Timeslot     *Timeslot
	CurrentStep  *Step

	PromoCodeID         *string
	PromoCode           *string
	PromoDiscountAmount *int64
	GiftCardID          *string
	GiftCardCode        *string
	GiftCardAmount      *int64

	PaymentIntentID *string
	PaymentAmount   *int64

	ExpiresAt *time.Time

	ClearGuestEmail    bool
	ClearGuestAddress  bool
	ClearAddress       bool
	ClearContractor    bool
	ClearPromoCode     bool
	ClearGiftCard      bool
	ClearPaymentIntent bool
}

// Apply merges the patch into a copy of s and stamps the activity timestamps.
// Clears run before sets so a patch can swap one address form for the other.
func (p SessionPatch) Apply(s *BookingSession, now time.Time) *BookingSession {
	out := s.Clone()

	if p.ClearGuestEmail {
		out.GuestEmail = nil
	}
	if p.ClearGuestAddress {
		out.GuestAddress = nil
	}
	if p.ClearAddress {
		out.AddressID = nil
	}
	if p.ClearContractor {
		out.ContractorID = nil
	}
	if p.ClearPromoCode {
		out.PromoCodeID, out.PromoCode, out.PromoDiscountAmount = nil, nil, 0
	}
	if p.ClearGiftCard {
		out.GiftCardID, out.GiftCardCode, out.GiftCardAmount = nil, nil, 0
	}
	if p.ClearPaymentIntent {
		out.PaymentIntentID, out.PaymentAmount = nil, 0
	}

	if p.ClientID != nil {
		out.ClientID = cloneString(p.ClientID)
	}
	if p.IsGuest != nil {
		out.IsGuest = *p.IsGuest
	}
	if p.GuestAddress != nil {
		ga := *p.GuestAddress
		out.GuestAddress = &ga
	}
	if p.ServiceID != nil {
		out.ServiceID = cloneString(p.ServiceID)
	}
	if p.AddressID != nil {
		out.AddressID = cloneString(p.AddressID)
	}
	if p.ContractorID != nil {
		out.ContractorID = cloneString(p.ContractorID)
	}
	if p.Timeslot != nil {
		ts := *p.Timeslot
		out.Timeslot = &ts
	}
	if p.CurrentStep != nil {
		out.CurrentStep = *p.CurrentStep
	}
	if p.PromoCodeID != nil {
		out.PromoCodeID = cloneString(p.PromoCodeID)
	}
	if p.PromoCode != nil {
		out.PromoCode = cloneString(p.PromoCode)
	}
	if p.PromoDiscountAmount != nil {
		out.PromoDiscountAmount = *p.PromoDiscountAmount
	}
	if p.GiftCardID != nil {
		out.GiftCardID = cloneString(p.GiftCardID)
	}
	if p.GiftCardCode != nil {
		out.GiftCardCode = cloneString(p.GiftCardCode)
	}
	if p.GiftCardAmount != nil {
		out.GiftCardAmount = *p.GiftCardAmount
	}
	if p.PaymentIntentID != nil {
		out.PaymentIntentID = cloneString(p.PaymentIntentID)
	}
	if p.PaymentAmount != nil {
		out.PaymentAmount = *p.PaymentAmount
	}
	if p.ExpiresAt != nil {
		out.ExpiresAt = *p.ExpiresAt
	}

	out.LastActivityAt = now
	out.UpdatedAt = now
	return out
}

// StepPtr returns a pointer to step for use in patches.
func StepPtr(step Step) *Step {
	return &step
}

// Int64Ptr returns a pointer to v for use in patches.
func Int64Ptr(v int64) *int64 {
	return &v
}

// BoolPtr returns a pointer to v for use in patches.
func BoolPtr(v bool) *bool {
	return &v
}
