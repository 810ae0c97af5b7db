package session

import (
	"context"
	"time"

	addressRepo "homeglow/database/repository/address"
	bookingRepo "homeglow/database/repository/booking"
	catalogRepo "homeglow/database/repository/catalog"
	sessionRepo "homeglow/database/repository/session"
	"homeglow/models"
	"homeglow/services/payment"
	"homeglow/services/usage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SessionService drives the booking wizard: session lifecycle, step progression,
// discount composition, guest migration and booking materialization.
type SessionService interface {
	CreateSession(ctx context.Context, in NewSessionInput) (*models.BookingSession, error)
	GetSession(ctx context.Context, sessionID string) (*models.BookingSession, error)
	GetWithRelations(ctx context.Context, sessionID string) (*models.SessionWithRelations, error)
	GetActiveSessions(ctx context.Context, clientID string) ([]models.BookingSession, error)
	DeleteSession(ctx context.Context, sessionID string) error
	CleanupExpired(ctx context.Context) (int, error)

	SelectService(ctx context.Context, sessionID, serviceID string, expectedVersion *int64) (*models.BookingSession, error)
	SelectAddress(ctx context.Context, sessionID, addressID string, expectedVersion *int64) (*models.BookingSession, error)
	SelectGuestAddress(ctx context.Context, sessionID string, address models.GuestAddress, expectedVersion *int64) (*models.BookingSession, error)
	SelectTimeslotAndContractor(ctx context.Context, sessionID string, slot models.Timeslot, contractorID *string, expectedVersion *int64) (*models.BookingSession, error)
	SelectContractor(ctx context.Context, sessionID, contractorID string, expectedVersion *int64) (*models.BookingSession, error)
	RewindToStep(ctx context.Context, sessionID string, step models.Step, expectedVersion *int64) (*models.BookingSession, error)

	ApplyPromoCode(ctx context.Context, sessionID string, in DiscountInput, expectedVersion *int64) (*models.BookingSession, error)
	RemovePromoCode(ctx context.Context, sessionID string, expectedVersion *int64) (*models.BookingSession, error)
	ApplyGiftCard(ctx context.Context, sessionID string, in DiscountInput, expectedVersion *int64) (*models.BookingSession, error)
	RemoveGiftCard(ctx context.Context, sessionID string, expectedVersion *int64) (*models.BookingSession, error)
	RedeemPromoCode(ctx context.Context, sessionID, code string, expectedVersion *int64) (*models.BookingSession, error)
	RedeemGiftCard(ctx context.Context, sessionID, code string, expectedVersion *int64) (*models.BookingSession, error)
	Quote(ctx context.Context, sessionID string) (*models.Quote, error)

	PreparePayment(ctx context.Context, sessionID string) (*models.PaymentPreparation, error)
	MigrateGuestSession(ctx context.Context, sessionID, clientID string) (*models.BookingSession, error)
	MaterializeBooking(ctx context.Context, sessionID, paymentReference string) (*models.Booking, error)
}

// Transactor runs fn so that every store write inside it commits or aborts together.
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// HandoffPublisher notifies downstream consumers that a booking exists.
type HandoffPublisher interface {
	PublishMaterialized(ctx context.Context, payload models.BookingHandoffPayload) error
}

// Options tune session behaviour; zero values fall back to defaults.
type Options struct {
	TTL              time.Duration
	SlidingExpiry    bool // push expires_at forward on every mutation
	Currency         string
	CleanupBatchSize int
}

// DefaultSessionService implements SessionService.
type DefaultSessionService struct {
	Sessions  sessionRepo.SessionRepository
	Addresses addressRepo.AddressRepository
	Bookings  bookingRepo.BookingRepository
	Catalog   catalogRepo.CatalogRepository
	Payments  payment.Gateway
	Usage     usage.Recorder
	Handoff   HandoffPublisher
	Tx        Transactor
	Logger    *zap.Logger
	Options   Options

	Clock func() time.Time
	NewID func() string
}

func (s *DefaultSessionService) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now().UTC()
}

func (s *DefaultSessionService) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.New().String()
}

func (s *DefaultSessionService) ttl() time.Duration {
	if s.Options.TTL <= 0 {
		return models.SessionTTL
	}
	return s.Options.TTL
}

func (s *DefaultSessionService) currency() string {
	if s.Options.Currency == "" {
		return "eur"
	}
	return s.Options.Currency
}

func (s *DefaultSessionService) batchSize() int {
	if s.Options.CleanupBatchSize <= 0 {
		return 500
	}
	return s.Options.CleanupBatchSize
}

func (s *DefaultSessionService) log() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

// inTransaction runs fn inside the configured transactor, or directly when none is set.
func (s *DefaultSessionService) inTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.Tx == nil {
		return fn(ctx)
	}
	return s.Tx.WithTransaction(ctx, fn)
}
