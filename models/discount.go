package models

import "time"

// PromoCode is the catalog row behind a promo code. Exactly one of PercentOff and
// AmountOff is expected to be set; MaxAmount caps a percentage discount when > 0.
type PromoCode struct {
	ID         string     `json:"id"`
	Code       string     `json:"code"`
	PercentOff int        `json:"percent_off"`
	AmountOff  int64      `json:"amount_off"` // minor units
	MaxAmount  int64      `json:"max_amount"`
	ServiceIDs []string   `json:"service_ids,omitempty"`
	ValidUntil *time.Time `json:"valid_until,omitempty"`
	Active     bool       `json:"active"`
}

// Usable reports whether the code can be applied to serviceID at now.
func (p PromoCode) Usable(serviceID string, now time.Time) bool {
	if !p.Active {
		return false
	}
	if p.ValidUntil != nil && !now.Before(*p.ValidUntil) {
		return false
	}
	if len(p.ServiceIDs) == 0 {
		return true
	}
	for _, id := range p.ServiceIDs {
		if id == serviceID {
			return true
		}
	}
	return false
}

// DiscountFor prices the promo against a service price. The result is never
// negative and never above price.
func (p PromoCode) DiscountFor(price int64) int64 {
	if price <= 0 {
		return 0
	}
	var amount int64
	switch {
	case p.AmountOff > 0:
		amount = p.AmountOff
	case p.PercentOff > 0:
		pct := int64(min(p.PercentOff, 100))
		// Split to keep price*pct inside int64 for any price.
		amount = price/100*pct + price%100*pct/100
	}
	if p.MaxAmount > 0 && amount > p.MaxAmount {
		amount = p.MaxAmount
	}
	return min(amount, price)
}

// GiftCard is the catalog row behind a gift card code.
type GiftCard struct {
	ID         string     `json:"id"`
	Code       string     `json:"code"`
	Balance    int64      `json:"balance"` // minor units
	Currency   string     `json:"currency,omitempty"`
	ValidUntil *time.Time `json:"valid_until,omitempty"`
	Active     bool       `json:"active"`
}

// Usable reports whether the card can be redeemed at now.
func (g GiftCard) Usable(now time.Time) bool {
	if !g.Active || g.Balance <= 0 {
		return false
	}
	return g.ValidUntil == nil || now.Before(*g.ValidUntil)
}

// AmountFor returns how much of the card's balance covers remaining.
func (g GiftCard) AmountFor(remaining int64) int64 {
	if remaining <= 0 || g.Balance <= 0 {
		return 0
	}
	return min(g.Balance, remaining)
}
