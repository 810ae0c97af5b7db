package models

// Quote is the amount due for a session once discounts are composed.
type Quote struct {
	ServicePrice   int64  `json:"servicePrice"`
	PromoDiscount  int64  `json:"promoDiscount"`
	GiftCardAmount int64  `json:"giftCardAmount"`
	AmountDue      int64  `json:"amountDue"`
	Currency       string `json:"currency"`
	SkipPayment    bool   `json:"skipPayment"`
}

// NewQuote composes the discounts against price, flooring the amount due at zero.
func NewQuote(price, promo, gift int64, currency string) Quote {
	due := price - promo - gift
	if due < 0 {
		due = 0
	}
	return Quote{
		ServicePrice:   price,
		PromoDiscount:  promo,
		GiftCardAmount: gift,
		AmountDue:      due,
		Currency:       currency,
		SkipPayment:    due == 0,
	}
}

// PaymentIntentRequest is what the session core hands to the payment gateway.
type PaymentIntentRequest struct {
	SessionID      string
	Amount         int64
	Currency       string
	ServiceAmount  int64
	PromoDiscount  int64
	GiftCardAmount int64
	ReceiptEmail   string
	Idempotency    string
}

// PaymentIntent is the gateway's view of a prepared payment.
type PaymentIntent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"clientSecret,omitempty"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	Status       string `json:"status"`
}

// PaymentPreparation is returned to the caller of the payment step.
type PaymentPreparation struct {
	Quote  Quote          `json:"quote"`
	Intent *PaymentIntent `json:"intent,omitempty"`
}
