package models

import "time"

// ClientAddress is a permanent address owned by an authenticated client.
type ClientAddress struct {
	ID         string    `bson:"id" json:"id"`
	ClientID   string    `bson:"client_id" json:"clientId"`
	Street     string    `bson:"street" json:"street"`
	City       string    `bson:"city" json:"city"`
	PostalCode string    `bson:"postal_code" json:"postalCode"`
	Country    string    `bson:"country,omitempty" json:"country,omitempty"`
	Details    string    `bson:"details,omitempty" json:"details,omitempty"`
	IsDefault  bool      `bson:"is_default" json:"isDefault"`
	CreatedAt  time.Time `bson:"created_at" json:"createdAt"`
}

// NewClientAddressFromGuest copies a guest-typed address into a permanent record for clientID.
func NewClientAddressFromGuest(id, clientID string, ga GuestAddress, now time.Time) ClientAddress {
	return ClientAddress{
		ID:         id,
		ClientID:   clientID,
		Street:     ga.Street,
		City:       ga.City,
		PostalCode: ga.PostalCode,
		Country:    ga.Country,
		Details:    ga.Details,
		CreatedAt:  now,
	}
}
