package catalogRepo

import (
	"context"
	"errors"

	"homeglow/models"
)

var (
	ErrServiceNotFound    = errors.New("service not found")
	ErrContractorNotFound = errors.New("contractor not found")
	ErrPromoCodeNotFound  = errors.New("promo code not found")
	ErrGiftCardNotFound   = errors.New("gift card not found")
)

// CatalogRepository reads service, contractor and discount projections from the
// hosted database.
type CatalogRepository interface {
	GetService(ctx context.Context, serviceID string) (*models.ServiceSnapshot, error)
	GetContractor(ctx context.Context, contractorID string) (*models.ContractorSnapshot, error)
	GetPromoCode(ctx context.Context, code string) (*models.PromoCode, error)
	GetGiftCard(ctx context.Context, code string) (*models.GiftCard, error)
}
