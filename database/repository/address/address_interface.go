package addressRepo

import (
	"context"
	"errors"

	"homeglow/models"
)

var ErrAddressNotFound = errors.New("client address not found")

// AddressRepository stores clients' permanent addresses (client_addresses).
type AddressRepository interface {
	Create(ctx context.Context, address *models.ClientAddress) error
	GetByID(ctx context.Context, id string) (*models.ClientAddress, error)
}
