package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	addressRepo "homeglow/database/repository/address"
	bookingRepo "homeglow/database/repository/booking"
	catalogRepo "homeglow/database/repository/catalog"
	sessionRepo "homeglow/database/repository/session"
	"homeglow/models"
	"homeglow/services/usage"
)

type fakeSessionRepo struct {
	rows       map[string]*models.BookingSession
	failDelete map[string]bool
	// beforeUpdate runs ahead of each Update, e.g. to land a concurrent write.
	beforeUpdate func(row *models.BookingSession)
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{rows: map[string]*models.BookingSession{}, failDelete: map[string]bool{}}
}

func (r *fakeSessionRepo) Get(_ context.Context, id string) (*models.BookingSession, error) {
	row, ok := r.rows[id]
	if !ok {
		return nil, models.ErrSessionNotFound
	}
	return row.Clone(), nil
}

func (r *fakeSessionRepo) Create(_ context.Context, s *models.BookingSession) error {
	if _, ok := r.rows[s.SessionID]; ok {
		return fmt.Errorf("duplicate session %s", s.SessionID)
	}
	r.rows[s.SessionID] = s.Clone()
	return nil
}

func (r *fakeSessionRepo) Update(_ context.Context, id string, patch models.SessionPatch, expectedVersion *int64, now time.Time) (*models.BookingSession, error) {
	row, ok := r.rows[id]
	if !ok {
		return nil, models.ErrSessionNotFound
	}
	if r.beforeUpdate != nil {
		r.beforeUpdate(row)
	}
	merged, err := sessionRepo.PrepareUpdate(row, patch, expectedVersion, now)
	if err != nil {
		return nil, err
	}
	r.rows[id] = merged.Clone()
	return merged, nil
}

func (r *fakeSessionRepo) MarkConsumed(_ context.Context, id string, version int64, bookingID string, now time.Time) error {
	row, ok := r.rows[id]
	if !ok || row.Version != version || row.ConsumedAt != nil {
		return models.ErrStaleSession
	}
	row.ConsumedAt = &now
	row.BookingID = models.StringPtr(bookingID)
	row.Version++
	return nil
}

func (r *fakeSessionRepo) Delete(_ context.Context, id string) error {
	if r.failDelete[id] {
		return errors.New("delete failed")
	}
	delete(r.rows, id)
	return nil
}

func (r *fakeSessionRepo) ListActive(_ context.Context, clientID string, now time.Time) ([]models.BookingSession, error) {
	var out []models.BookingSession
	for _, row := range r.rows {
		if row.IsExpired(now) || row.IsConsumed() {
			continue
		}
		if clientID != "" && (row.ClientID == nil || *row.ClientID != clientID) {
			continue
		}
		out = append(out, *row.Clone())
	}
	return out, nil
}

func (r *fakeSessionRepo) ListExpiredIDs(_ context.Context, now time.Time, limit int) ([]string, error) {
	var ids []string
	for id, row := range r.rows {
		if row.IsExpired(now) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (r *fakeSessionRepo) snapshot() map[string]*models.BookingSession {
	out := make(map[string]*models.BookingSession, len(r.rows))
	for id, row := range r.rows {
		out[id] = row.Clone()
	}
	return out
}

type fakeAddressRepo struct {
	rows    map[string]*models.ClientAddress
	failErr error
}

func (r *fakeAddressRepo) Create(_ context.Context, a *models.ClientAddress) error {
	if r.failErr != nil {
		return r.failErr
	}
	cp := *a
	r.rows[a.ID] = &cp
	return nil
}

func (r *fakeAddressRepo) GetByID(_ context.Context, id string) (*models.ClientAddress, error) {
	a, ok := r.rows[id]
	if !ok {
		return nil, addressRepo.ErrAddressNotFound
	}
	cp := *a
	return &cp, nil
}

type fakeBookingRepo struct {
	rows map[string]*models.Booking // by session id
}

func (r *fakeBookingRepo) Create(_ context.Context, b *models.Booking) error {
	if _, ok := r.rows[b.SessionID]; ok {
		return bookingRepo.ErrDuplicateBooking
	}
	cp := *b
	r.rows[b.SessionID] = &cp
	return nil
}

func (r *fakeBookingRepo) GetBySessionID(_ context.Context, sessionID string) (*models.Booking, error) {
	b, ok := r.rows[sessionID]
	if !ok {
		return nil, bookingRepo.ErrBookingNotFound
	}
	cp := *b
	return &cp, nil
}

type fakeCatalog struct {
	services    map[string]models.ServiceSnapshot
	contractors map[string]models.ContractorSnapshot
	promos      map[string]models.PromoCode
	giftCards   map[string]models.GiftCard
}

func (c *fakeCatalog) GetService(_ context.Context, id string) (*models.ServiceSnapshot, error) {
	svc, ok := c.services[id]
	if !ok {
		return nil, catalogRepo.ErrServiceNotFound
	}
	return &svc, nil
}

func (c *fakeCatalog) GetContractor(_ context.Context, id string) (*models.ContractorSnapshot, error) {
	ct, ok := c.contractors[id]
	if !ok {
		return nil, catalogRepo.ErrContractorNotFound
	}
	return &ct, nil
}

func (c *fakeCatalog) GetPromoCode(_ context.Context, code string) (*models.PromoCode, error) {
	p, ok := c.promos[strings.ToUpper(code)]
	if !ok {
		return nil, catalogRepo.ErrPromoCodeNotFound
	}
	return &p, nil
}

func (c *fakeCatalog) GetGiftCard(_ context.Context, code string) (*models.GiftCard, error) {
	g, ok := c.giftCards[strings.ToUpper(code)]
	if !ok {
		return nil, catalogRepo.ErrGiftCardNotFound
	}
	return &g, nil
}

type fakeGateway struct {
	intents   map[string]*models.PaymentIntent
	created   []models.PaymentIntentRequest
	cancelled []string
	seq       int
}

func (g *fakeGateway) CreateIntent(_ context.Context, req models.PaymentIntentRequest) (*models.PaymentIntent, error) {
	g.seq++
	pi := &models.PaymentIntent{
		ID:       fmt.Sprintf("pi_%d", g.seq),
		Amount:   req.Amount,
		Currency: req.Currency,
		Status:   "requires_payment_method",
	}
	g.intents[pi.ID] = pi
	g.created = append(g.created, req)
	cp := *pi
	return &cp, nil
}

func (g *fakeGateway) GetIntent(_ context.Context, id string) (*models.PaymentIntent, error) {
	pi, ok := g.intents[id]
	if !ok {
		return nil, fmt.Errorf("no such payment intent %s", id)
	}
	cp := *pi
	return &cp, nil
}

func (g *fakeGateway) CancelIntent(_ context.Context, id string) error {
	if pi, ok := g.intents[id]; ok {
		pi.Status = "canceled"
	}
	g.cancelled = append(g.cancelled, id)
	return nil
}

type fakeUsage struct {
	recorded []string
	err      error
}

func (u *fakeUsage) Record(_ context.Context, kind usage.Kind, code string) error {
	u.recorded = append(u.recorded, string(kind)+":"+code)
	return u.err
}

type fakePublisher struct {
	published []models.BookingHandoffPayload
	err       error
}

func (p *fakePublisher) PublishMaterialized(_ context.Context, payload models.BookingHandoffPayload) error {
	p.published = append(p.published, payload)
	return p.err
}

// fakeTx restores the in-memory stores when fn fails, like an aborted transaction.
type fakeTx struct {
	sessions  *fakeSessionRepo
	addresses *fakeAddressRepo
	bookings  *fakeBookingRepo
}

func (t *fakeTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	sessions := t.sessions.snapshot()
	addresses := make(map[string]*models.ClientAddress, len(t.addresses.rows))
	for k, v := range t.addresses.rows {
		addresses[k] = v
	}
	bookings := make(map[string]*models.Booking, len(t.bookings.rows))
	for k, v := range t.bookings.rows {
		bookings[k] = v
	}
	if err := fn(ctx); err != nil {
		t.sessions.rows = sessions
		t.addresses.rows = addresses
		t.bookings.rows = bookings
		return err
	}
	return nil
}

type fixture struct {
	svc       *DefaultSessionService
	sessions  *fakeSessionRepo
	addresses *fakeAddressRepo
	bookings  *fakeBookingRepo
	gateway   *fakeGateway
	usage     *fakeUsage
	publisher *fakePublisher
	now       time.Time
}

func newFixture() *fixture {
	f := &fixture{
		sessions:  newFakeSessionRepo(),
		addresses: &fakeAddressRepo{rows: map[string]*models.ClientAddress{}},
		bookings:  &fakeBookingRepo{rows: map[string]*models.Booking{}},
		gateway:   &fakeGateway{intents: map[string]*models.PaymentIntent{}},
		usage:     &fakeUsage{},
		publisher: &fakePublisher{},
		now:       time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	seq := 0
	f.svc = &DefaultSessionService{
		Sessions:  f.sessions,
		Addresses: f.addresses,
		Bookings:  f.bookings,
		Catalog: &fakeCatalog{
			services: map[string]models.ServiceSnapshot{
				"42":  {ID: "42", Name: "Deep clean", Price: 5000, Currency: "EUR", Active: true},
				"43":  {ID: "43", Name: "Window clean", Price: 3000, Active: true},
				"old": {ID: "old", Name: "Retired", Price: 1000, Active: false},
			},
			contractors: map[string]models.ContractorSnapshot{
				"c-1": {ID: "c-1", FirstName: "Ana", Active: true},
				"c-2": {ID: "c-2", FirstName: "Luc", Active: true},
				"c-9": {ID: "c-9", FirstName: "Off", Active: false},
			},
			promos: map[string]models.PromoCode{
				"SPRING20": {ID: "p-20", Code: "SPRING20", PercentOff: 20, Active: true},
				"TENOFF":   {ID: "p-10", Code: "TENOFF", AmountOff: 1000, ServiceIDs: []string{"43"}, Active: true},
				"OLD":      {ID: "p-old", Code: "OLD", AmountOff: 500, Active: false},
			},
			giftCards: map[string]models.GiftCard{
				"BIGCARD": {ID: "g-big", Code: "BIGCARD", Balance: 10000, Currency: "eur", Active: true},
				"USDCARD": {ID: "g-usd", Code: "USDCARD", Balance: 1000, Currency: "usd", Active: true},
			},
		},
		Payments: f.gateway,
		Usage:    f.usage,
		Handoff:  f.publisher,
		Tx:       &fakeTx{sessions: f.sessions, addresses: f.addresses, bookings: f.bookings},
		Clock:    func() time.Time { return f.now },
		NewID: func() string {
			seq++
			return fmt.Sprintf("id-%d", seq)
		},
	}
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}
