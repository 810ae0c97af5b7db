package catalogRepo

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"homeglow/models"

	"github.com/supabase-community/supabase-go"
)

const (
	ServicesTable    = "services"
	ContractorsTable = "contractors"
	PromoCodesTable  = "promo_codes"
	GiftCardsTable   = "gift_cards"

	serviceColumns    = "id,name,category,duration_minutes,price,currency,active"
	contractorColumns = "id,first_name,last_name,avatar_url,rating,active"
	promoCodeColumns  = "id,code,percent_off,amount_off,max_amount,service_ids,valid_until,active"
	giftCardColumns   = "id,code,balance,currency,valid_until,active"
)

// SupabaseCatalogRepo implements CatalogRepository over the postgrest API.
type SupabaseCatalogRepo struct {
	client *supabase.Client
}

func NewSupabaseCatalogRepo(client *supabase.Client) CatalogRepository {
	return &SupabaseCatalogRepo{client: client}
}

func (r *SupabaseCatalogRepo) GetService(ctx context.Context, serviceID string) (*models.ServiceSnapshot, error) {
	raw, status, err := r.client.From(ServicesTable).
		Select(serviceColumns, "", false).
		Eq("id", serviceID).
		Execute()
	if err != nil {
		if status != 0 {
			return nil, fmt.Errorf("postgrest error: status=%d body=%s err=%v", status, string(raw), err)
		}
		return nil, fmt.Errorf("failed to get service %s: %w", serviceID, err)
	}

	// postgrest returns an array even for single results
	var rows []models.ServiceSnapshot
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal service rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrServiceNotFound, serviceID)
	}
	return &rows[0], nil
}

func (r *SupabaseCatalogRepo) GetContractor(ctx context.Context, contractorID string) (*models.ContractorSnapshot, error) {
	raw, status, err := r.client.From(ContractorsTable).
		Select(contractorColumns, "", false).
		Eq("id", contractorID).
		Execute()
	if err != nil {
		if status != 0 {
			return nil, fmt.Errorf("postgrest error: status=%d body=%s err=%v", status, string(raw), err)
		}
		return nil, fmt.Errorf("failed to get contractor %s: %w", contractorID, err)
	}

	var rows []models.ContractorSnapshot
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal contractor rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrContractorNotFound, contractorID)
	}
	return &rows[0], nil
}

// Discount codes are stored upper-case.
func (r *SupabaseCatalogRepo) GetPromoCode(ctx context.Context, code string) (*models.PromoCode, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	raw, status, err := r.client.From(PromoCodesTable).
		Select(promoCodeColumns, "", false).
		Eq("code", code).
		Execute()
	if err != nil {
		if status != 0 {
			return nil, fmt.Errorf("postgrest error: status=%d body=%s err=%v", status, string(raw), err)
		}
		return nil, fmt.Errorf("failed to get promo code %s: %w", code, err)
	}

	var rows []models.PromoCode
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal promo code rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrPromoCodeNotFound, code)
	}
	return &rows[0], nil
}

func (r *SupabaseCatalogRepo) GetGiftCard(ctx context.Context, code string) (*models.GiftCard, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	raw, status, err := r.client.From(GiftCardsTable).
		Select(giftCardColumns, "", false).
		Eq("code", code).
		Execute()
	if err != nil {
		if status != 0 {
			return nil, fmt.Errorf("postgrest error: status=%d body=%s err=%v", status, string(raw), err)
		}
		return nil, fmt.Errorf("failed to get gift card %s: %w", code, err)
	}

	var rows []models.GiftCard
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal gift card rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrGiftCardNotFound, code)
	}
	return &rows[0], nil
}
