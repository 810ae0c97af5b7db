package session

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"homeglow/models"
)

var slot = models.Timeslot{Date: "2026-03-02", StartTime: "10:00", EndTime: "12:00"}

func mustCreate(t *testing.T, f *fixture, in NewSessionInput) *models.BookingSession {
	t.Helper()
	s, err := f.svc.CreateSession(context.Background(), in)
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	return s
}

// readySession walks an authenticated session to the confirm step on service 42.
func readySession(t *testing.T, f *fixture) *models.BookingSession {
	t.Helper()
	ctx := context.Background()
	f.addresses.rows["addr-1"] = &models.ClientAddress{ID: "addr-1", ClientID: "user-1", Street: "2 rue Y", City: "Lyon", PostalCode: "69001"}

	s := mustCreate(t, f, NewSessionInput{ClientID: "user-1"})
	if _, err := f.svc.SelectService(ctx, s.SessionID, "42", nil); err != nil {
		t.Fatalf("SelectService() error = %v", err)
	}
	if _, err := f.svc.SelectAddress(ctx, s.SessionID, "addr-1", nil); err != nil {
		t.Fatalf("SelectAddress() error = %v", err)
	}
	out, err := f.svc.SelectTimeslotAndContractor(ctx, s.SessionID, slot, nil, nil)
	if err != nil {
		t.Fatalf("SelectTimeslotAndContractor() error = %v", err)
	}
	return out
}

func TestCreateSession(t *testing.T) {
	tests := []struct {
		name    string
		in      NewSessionInput
		wantErr error
	}{
		{name: "guest", in: NewSessionInput{GuestEmail: " A@B.com "}},
		{name: "authenticated", in: NewSessionInput{ClientID: "user-1"}},
		{name: "preselected service and locked contractor", in: NewSessionInput{ClientID: "user-1", ServiceID: "42", ContractorID: "c-1", ContractorLocked: true}},
		{name: "both identities", in: NewSessionInput{ClientID: "user-1", GuestEmail: "a@b.com"}, wantErr: ErrConflict},
		{name: "no identity", in: NewSessionInput{}, wantErr: ErrInvalidInput},
		{name: "malformed guest email", in: NewSessionInput{GuestEmail: "not-an-email"}, wantErr: ErrInvalidInput},
		{name: "inactive service", in: NewSessionInput{ClientID: "user-1", ServiceID: "old"}, wantErr: ErrInvalidInput},
		{name: "unknown contractor", in: NewSessionInput{ClientID: "user-1", ContractorID: "nobody"}, wantErr: ErrInvalidInput},
		{name: "lock without contractor", in: NewSessionInput{ClientID: "user-1", ContractorLocked: true}, wantErr: ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			s, err := f.svc.CreateSession(context.Background(), tt.in)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("CreateSession() error = %v, want %v", err, tt.wantErr)
				}
				if len(f.sessions.rows) != 0 {
					t.Error("failed create left a row behind")
				}
				return
			}
			if err != nil {
				t.Fatalf("CreateSession() error = %v", err)
			}
			if err := s.Validate(); err != nil {
				t.Errorf("created session is invalid: %v", err)
			}
		})
	}
}

func TestCreateThenGetRoundTrip(t *testing.T) {
	f := newFixture()
	created := mustCreate(t, f, NewSessionInput{GuestEmail: "a@b.com"})

	got, err := f.svc.GetSession(context.Background(), created.SessionID)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if got.CurrentStep != models.StepService {
		t.Errorf("CurrentStep = %d, want 1", got.CurrentStep)
	}
	if !got.ExpiresAt.Equal(got.CreatedAt.Add(30 * time.Minute)) {
		t.Errorf("ExpiresAt = %v, want CreatedAt + 30m", got.ExpiresAt)
	}
	if !got.IsGuest || got.GuestEmail == nil || *got.GuestEmail != "a@b.com" || got.ClientID != nil {
		t.Errorf("identity fields not round-tripped: %+v", got)
	}
}

func TestGuestFlow(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	s := mustCreate(t, f, NewSessionInput{GuestEmail: "a@b.com"})

	if _, err := f.svc.SelectService(ctx, s.SessionID, "42", nil); err != nil {
		t.Fatalf("SelectService() error = %v", err)
	}
	out, err := f.svc.SelectGuestAddress(ctx, s.SessionID, models.GuestAddress{Street: "1 rue X", City: "Paris", PostalCode: "75001"}, nil)
	if err != nil {
		t.Fatalf("SelectGuestAddress() error = %v", err)
	}
	if out.CurrentStep != models.StepSchedule {
		t.Errorf("CurrentStep = %d, want 3", out.CurrentStep)
	}
	if out.GuestAddress == nil || out.GuestAddress.City != "Paris" {
		t.Errorf("GuestAddress = %+v", out.GuestAddress)
	}
	if out.AddressID != nil {
		t.Errorf("AddressID = %v, want nil", *out.AddressID)
	}

	if _, err := f.svc.SelectAddress(ctx, s.SessionID, "addr-1", nil); !errors.Is(err, ErrInvalidState) {
		t.Errorf("SelectAddress() on guest session error = %v, want ErrInvalidState", err)
	}
}

func TestStepPrerequisites(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	s := mustCreate(t, f, NewSessionInput{GuestEmail: "a@b.com"})

	if _, err := f.svc.SelectGuestAddress(ctx, s.SessionID, models.GuestAddress{Street: "1 rue X", City: "Paris", PostalCode: "75001"}, nil); !errors.Is(err, ErrInvalidState) {
		t.Errorf("address before service error = %v, want ErrInvalidState", err)
	}
	if _, err := f.svc.SelectTimeslotAndContractor(ctx, s.SessionID, slot, nil, nil); !errors.Is(err, ErrInvalidState) {
		t.Errorf("timeslot before address error = %v, want ErrInvalidState", err)
	}
	if _, err := f.svc.SelectContractor(ctx, s.SessionID, "c-1", nil); !errors.Is(err, ErrInvalidState) {
		t.Errorf("contractor before timeslot error = %v, want ErrInvalidState", err)
	}
	bad := models.Timeslot{Date: "2026-03-02", StartTime: "12:00", EndTime: "10:00"}
	if _, err := f.svc.SelectTimeslotAndContractor(ctx, s.SessionID, bad, nil, nil); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("inverted timeslot error = %v, want ErrInvalidInput", err)
	}
}

func TestSelectAddressRejectsForeignAddress(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.addresses.rows["addr-2"] = &models.ClientAddress{ID: "addr-2", ClientID: "someone-else"}
	s := mustCreate(t, f, NewSessionInput{ClientID: "user-1", ServiceID: "42"})

	if _, err := f.svc.SelectAddress(ctx, s.SessionID, "addr-2", nil); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("SelectAddress() error = %v, want ErrInvalidInput", err)
	}
}

func TestRewindToStep(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	s := readySession(t, f)

	out, err := f.svc.RewindToStep(ctx, s.SessionID, models.StepAddress, nil)
	if err != nil {
		t.Fatalf("RewindToStep() error = %v", err)
	}
	if out.CurrentStep != models.StepAddress {
		t.Errorf("CurrentStep = %d, want 2", out.CurrentStep)
	}
	if out.Timeslot == nil || out.AddressID == nil {
		t.Error("rewinding dropped later selections")
	}

	if _, err := f.svc.RewindToStep(ctx, s.SessionID, models.StepConfirm, nil); !errors.Is(err, ErrInvalidState) {
		t.Errorf("forward rewind error = %v, want ErrInvalidState", err)
	}
	if _, err := f.svc.RewindToStep(ctx, s.SessionID, 9, nil); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("out of range step error = %v, want ErrInvalidInput", err)
	}

	// Re-selecting a service from step 4 also moves the wizard back.
	again := readySession(t, f)
	out, err = f.svc.SelectService(ctx, again.SessionID, "42", nil)
	if err != nil {
		t.Fatalf("SelectService() error = %v", err)
	}
	if out.CurrentStep != models.StepAddress {
		t.Errorf("CurrentStep after reselect = %d, want 2", out.CurrentStep)
	}
}

func TestLockedContractor(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.addresses.rows["addr-1"] = &models.ClientAddress{ID: "addr-1", ClientID: "user-1"}
	s := mustCreate(t, f, NewSessionInput{ClientID: "user-1", ServiceID: "42", ContractorID: "c-1", ContractorLocked: true})

	if _, err := f.svc.SelectAddress(ctx, s.SessionID, "addr-1", nil); err != nil {
		t.Fatalf("SelectAddress() error = %v", err)
	}
	other := "c-2"
	if _, err := f.svc.SelectTimeslotAndContractor(ctx, s.SessionID, slot, &other, nil); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("changing locked contractor error = %v, want ErrInvalidState", err)
	}
	same := "c-1"
	out, err := f.svc.SelectTimeslotAndContractor(ctx, s.SessionID, slot, &same, nil)
	if err != nil {
		t.Fatalf("SelectTimeslotAndContractor() error = %v", err)
	}
	if out.CurrentStep != models.StepConfirm || *out.ContractorID != "c-1" {
		t.Errorf("session = step %d contractor %v", out.CurrentStep, *out.ContractorID)
	}
	if _, err := f.svc.SelectContractor(ctx, s.SessionID, "c-2", nil); !errors.Is(err, ErrInvalidState) {
		t.Errorf("SelectContractor() on locked session error = %v, want ErrInvalidState", err)
	}
}

func TestSelectContractorKeepsStep(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	s := readySession(t, f)

	out, err := f.svc.SelectContractor(ctx, s.SessionID, "c-2", nil)
	if err != nil {
		t.Fatalf("SelectContractor() error = %v", err)
	}
	if out.CurrentStep != models.StepConfirm || out.ContractorID == nil || *out.ContractorID != "c-2" {
		t.Errorf("session = step %d contractor %v", out.CurrentStep, out.ContractorID)
	}
	if _, err := f.svc.SelectContractor(ctx, s.SessionID, "c-9", nil); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("inactive contractor error = %v, want ErrInvalidInput", err)
	}
}

func TestStaleVersionIsRejected(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	s := mustCreate(t, f, NewSessionInput{ClientID: "user-1"})

	read := s.Version
	out, err := f.svc.SelectService(ctx, s.SessionID, "42", &read)
	if err != nil {
		t.Fatalf("SelectService() error = %v", err)
	}
	if out.Version != read+1 {
		t.Errorf("Version = %d, want %d", out.Version, read+1)
	}
	if _, err := f.svc.SelectService(ctx, s.SessionID, "43", &read); !errors.Is(err, ErrConflict) {
		t.Fatalf("stale write error = %v, want ErrConflict", err)
	}
	got, _ := f.svc.GetSession(ctx, s.SessionID)
	if *got.ServiceID != "42" {
		t.Errorf("stale write landed: service = %s", *got.ServiceID)
	}
}

func TestDiscountOverflowIsAllOrNothing(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	s := mustCreate(t, f, NewSessionInput{ClientID: "user-1", ServiceID: "42"})

	if _, err := f.svc.ApplyPromoCode(ctx, s.SessionID, DiscountInput{ID: "p-1", Code: "SPRING", Amount: 4000}, nil); err != nil {
		t.Fatalf("ApplyPromoCode() error = %v", err)
	}
	_, err := f.svc.ApplyGiftCard(ctx, s.SessionID, DiscountInput{ID: "g-1", Code: "GIFT15", Amount: 1500}, nil)
	if !errors.Is(err, ErrDiscountExceedsAmount) {
		t.Fatalf("ApplyGiftCard() error = %v, want ErrDiscountExceedsAmount", err)
	}

	got, _ := f.svc.GetSession(ctx, s.SessionID)
	if got.GiftCardID != nil || got.GiftCardCode != nil || got.GiftCardAmount != 0 {
		t.Errorf("gift card fields written: %+v", got)
	}
	if got.PromoDiscountAmount != 4000 || got.PromoCode == nil || *got.PromoCode != "SPRING" {
		t.Errorf("promo fields changed: %+v", got)
	}
	if len(f.usage.recorded) != 1 {
		t.Errorf("usage recorded %v, want only the promo", f.usage.recorded)
	}
}

func TestApplyPromoReplacesPrevious(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	s := mustCreate(t, f, NewSessionInput{ClientID: "user-1", ServiceID: "42"})

	if _, err := f.svc.ApplyGiftCard(ctx, s.SessionID, DiscountInput{ID: "g-1", Code: "GIFT", Amount: 1000}, nil); err != nil {
		t.Fatalf("ApplyGiftCard() error = %v", err)
	}
	if _, err := f.svc.ApplyPromoCode(ctx, s.SessionID, DiscountInput{ID: "p-1", Code: "A", Amount: 3500}, nil); err != nil {
		t.Fatalf("ApplyPromoCode() error = %v", err)
	}
	out, err := f.svc.ApplyPromoCode(ctx, s.SessionID, DiscountInput{ID: "p-2", Code: "B", Amount: 4000}, nil)
	if err != nil {
		t.Fatalf("replacing promo error = %v", err)
	}
	if *out.PromoCodeID != "p-2" || out.TotalDiscount() != 5000 {
		t.Errorf("promo = %s total = %d", *out.PromoCodeID, out.TotalDiscount())
	}

	q, err := f.svc.Quote(ctx, s.SessionID)
	if err != nil {
		t.Fatalf("Quote() error = %v", err)
	}
	if q.AmountDue != 0 || !q.SkipPayment || q.Currency != "eur" {
		t.Errorf("Quote() = %+v", q)
	}

	out, err = f.svc.RemovePromoCode(ctx, s.SessionID, nil)
	if err != nil {
		t.Fatalf("RemovePromoCode() error = %v", err)
	}
	if out.PromoCodeID != nil || out.PromoDiscountAmount != 0 || out.GiftCardAmount != 1000 {
		t.Errorf("after remove: %+v", out)
	}
	out, err = f.svc.RemoveGiftCard(ctx, s.SessionID, nil)
	if err != nil {
		t.Fatalf("RemoveGiftCard() error = %v", err)
	}
	if out.GiftCardID != nil || out.GiftCardAmount != 0 {
		t.Errorf("gift card not cleared: %+v", out)
	}
}

func TestDiscountValidation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	noService := mustCreate(t, f, NewSessionInput{ClientID: "user-1"})
	withService := mustCreate(t, f, NewSessionInput{ClientID: "user-2", ServiceID: "42"})

	if _, err := f.svc.ApplyPromoCode(ctx, noService.SessionID, DiscountInput{ID: "p", Code: "X", Amount: 100}, nil); !errors.Is(err, ErrInvalidState) {
		t.Errorf("promo without service error = %v, want ErrInvalidState", err)
	}
	if _, err := f.svc.ApplyPromoCode(ctx, withService.SessionID, DiscountInput{ID: "p", Code: "X", Amount: -1}, nil); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("negative promo error = %v, want ErrInvalidInput", err)
	}
}

func TestUsageFailureDoesNotFailApply(t *testing.T) {
	f := newFixture()
	f.usage.err = errors.New("redis down")
	s := mustCreate(t, f, NewSessionInput{ClientID: "user-1", ServiceID: "42"})

	out, err := f.svc.ApplyPromoCode(context.Background(), s.SessionID, DiscountInput{ID: "p-1", Code: "SPRING", Amount: 500}, nil)
	if err != nil {
		t.Fatalf("ApplyPromoCode() error = %v", err)
	}
	if out.PromoDiscountAmount != 500 {
		t.Errorf("PromoDiscountAmount = %d, want 500", out.PromoDiscountAmount)
	}
}

func TestChangingServiceClearsDiscountsAndIntent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	s := readySession(t, f)

	if _, err := f.svc.ApplyPromoCode(ctx, s.SessionID, DiscountInput{ID: "p-1", Code: "SPRING", Amount: 1000}, nil); err != nil {
		t.Fatalf("ApplyPromoCode() error = %v", err)
	}
	prep, err := f.svc.PreparePayment(ctx, s.SessionID)
	if err != nil {
		t.Fatalf("PreparePayment() error = %v", err)
	}
	out, err := f.svc.SelectService(ctx, s.SessionID, "43", nil)
	if err != nil {
		t.Fatalf("SelectService() error = %v", err)
	}
	if out.PromoCodeID != nil || out.PaymentIntentID != nil {
		t.Errorf("discount or intent survived service change: %+v", out)
	}
	if len(f.gateway.cancelled) != 1 || f.gateway.cancelled[0] != prep.Intent.ID {
		t.Errorf("cancelled = %v, want [%s]", f.gateway.cancelled, prep.Intent.ID)
	}
}

func TestPreparePayment(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	s := readySession(t, f)

	first, err := f.svc.PreparePayment(ctx, s.SessionID)
	if err != nil {
		t.Fatalf("PreparePayment() error = %v", err)
	}
	if first.Intent == nil || first.Intent.Amount != 5000 || first.Quote.SkipPayment {
		t.Fatalf("PreparePayment() = %+v", first)
	}

	second, err := f.svc.PreparePayment(ctx, s.SessionID)
	if err != nil {
		t.Fatalf("second PreparePayment() error = %v", err)
	}
	if second.Intent.ID != first.Intent.ID || len(f.gateway.created) != 1 {
		t.Errorf("intent not reused: %s vs %s, %d created", second.Intent.ID, first.Intent.ID, len(f.gateway.created))
	}

	if _, err := f.svc.ApplyGiftCard(ctx, s.SessionID, DiscountInput{ID: "g-1", Code: "GIFT", Amount: 1000}, nil); err != nil {
		t.Fatalf("ApplyGiftCard() error = %v", err)
	}
	third, err := f.svc.PreparePayment(ctx, s.SessionID)
	if err != nil {
		t.Fatalf("third PreparePayment() error = %v", err)
	}
	if third.Intent.ID == first.Intent.ID || third.Intent.Amount != 4000 {
		t.Errorf("intent not replaced after discount: %+v", third.Intent)
	}
	if len(f.gateway.cancelled) != 1 || f.gateway.cancelled[0] != first.Intent.ID {
		t.Errorf("cancelled = %v", f.gateway.cancelled)
	}
	req := f.gateway.created[1]
	if req.ServiceAmount != 5000 || req.GiftCardAmount != 1000 || req.Currency != "eur" {
		t.Errorf("intent request = %+v", req)
	}

	got, _ := f.svc.GetSession(ctx, s.SessionID)
	if got.PaymentIntentID == nil || *got.PaymentIntentID != third.Intent.ID || got.PaymentAmount != 4000 {
		t.Errorf("session intent = %v amount %d", got.PaymentIntentID, got.PaymentAmount)
	}
}

func TestPreparePaymentRequiresCompleteSession(t *testing.T) {
	f := newFixture()
	s := mustCreate(t, f, NewSessionInput{ClientID: "user-1", ServiceID: "42"})
	if _, err := f.svc.PreparePayment(context.Background(), s.SessionID); !errors.Is(err, ErrInvalidState) {
		t.Errorf("PreparePayment() error = %v, want ErrInvalidState", err)
	}
}

func TestZeroAmountSkipsPayment(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	s := readySession(t, f)

	if _, err := f.svc.ApplyPromoCode(ctx, s.SessionID, DiscountInput{ID: "p-1", Code: "FREE", Amount: 5000}, nil); err != nil {
		t.Fatalf("ApplyPromoCode() error = %v", err)
	}
	prep, err := f.svc.PreparePayment(ctx, s.SessionID)
	if err != nil {
		t.Fatalf("PreparePayment() error = %v", err)
	}
	if !prep.Quote.SkipPayment || prep.Intent != nil || len(f.gateway.created) != 0 {
		t.Fatalf("PreparePayment() = %+v, created %d intents", prep, len(f.gateway.created))
	}

	booking, err := f.svc.MaterializeBooking(ctx, s.SessionID, "")
	if err != nil {
		t.Fatalf("MaterializeBooking() error = %v", err)
	}
	if booking.AmountPaid != 0 || booking.PromoDiscount != 5000 {
		t.Errorf("booking amounts = %+v", booking)
	}
}

func TestMaterializeBooking(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	s := readySession(t, f)

	prep, err := f.svc.PreparePayment(ctx, s.SessionID)
	if err != nil {
		t.Fatalf("PreparePayment() error = %v", err)
	}

	if _, err := f.svc.MaterializeBooking(ctx, s.SessionID, prep.Intent.ID); !errors.Is(err, ErrPaymentMismatch) {
		t.Fatalf("unpaid intent error = %v, want ErrPaymentMismatch", err)
	}
	if _, err := f.svc.MaterializeBooking(ctx, s.SessionID, "pi_other"); !errors.Is(err, ErrPaymentMismatch) {
		t.Fatalf("foreign reference error = %v, want ErrPaymentMismatch", err)
	}

	f.gateway.intents[prep.Intent.ID].Status = "succeeded"
	booking, err := f.svc.MaterializeBooking(ctx, s.SessionID, prep.Intent.ID)
	if err != nil {
		t.Fatalf("MaterializeBooking() error = %v", err)
	}
	if booking.Status != models.BookingPending || booking.AmountPaid != 5000 || booking.PaymentReference != prep.Intent.ID {
		t.Errorf("booking = %+v", booking)
	}
	if booking.AddressID == nil || *booking.AddressID != "addr-1" || booking.Timeslot != slot {
		t.Errorf("booking selections = %+v", booking)
	}
	if len(f.publisher.published) != 1 || f.publisher.published[0].BookingID != booking.ID {
		t.Errorf("hand-off = %+v", f.publisher.published)
	}

	again, err := f.svc.MaterializeBooking(ctx, s.SessionID, prep.Intent.ID)
	if !errors.Is(err, ErrConsumed) {
		t.Fatalf("second MaterializeBooking() error = %v, want ErrConsumed", err)
	}
	if again == nil || again.ID != booking.ID {
		t.Errorf("second call returned %+v, want existing booking %s", again, booking.ID)
	}
	if len(f.bookings.rows) != 1 {
		t.Errorf("%d bookings stored, want 1", len(f.bookings.rows))
	}

	if _, err := f.svc.SelectContractor(ctx, s.SessionID, "c-1", nil); !errors.Is(err, ErrConsumed) {
		t.Errorf("mutating consumed session error = %v, want ErrConsumed", err)
	}
}

func TestMaterializeRollsBackOnBookingFailure(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	s := readySession(t, f)
	if _, err := f.svc.ApplyPromoCode(ctx, s.SessionID, DiscountInput{ID: "p-1", Code: "FREE", Amount: 5000}, nil); err != nil {
		t.Fatalf("ApplyPromoCode() error = %v", err)
	}
	f.bookings.rows[s.SessionID] = &models.Booking{ID: "stray", SessionID: s.SessionID}

	if _, err := f.svc.MaterializeBooking(ctx, s.SessionID, ""); !errors.Is(err, ErrConsumed) {
		t.Fatalf("MaterializeBooking() error = %v, want ErrConsumed", err)
	}
	got, err := f.svc.GetSession(ctx, s.SessionID)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if got.IsConsumed() {
		t.Error("session consumed although the booking insert failed")
	}
}

func TestHandoffFailureKeepsBooking(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.publisher.err = errors.New("queue unavailable")
	s := readySession(t, f)
	if _, err := f.svc.ApplyPromoCode(ctx, s.SessionID, DiscountInput{ID: "p-1", Code: "FREE", Amount: 5000}, nil); err != nil {
		t.Fatalf("ApplyPromoCode() error = %v", err)
	}
	if _, err := f.svc.MaterializeBooking(ctx, s.SessionID, ""); err != nil {
		t.Fatalf("MaterializeBooking() error = %v", err)
	}
	if len(f.bookings.rows) != 1 {
		t.Errorf("%d bookings stored, want 1", len(f.bookings.rows))
	}
}

func TestMigrateGuestSession(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	s := mustCreate(t, f, NewSessionInput{GuestEmail: "a@b.com", ServiceID: "42"})
	if _, err := f.svc.ApplyPromoCode(ctx, s.SessionID, DiscountInput{ID: "p-1", Code: "SPRING", Amount: 500}, nil); err != nil {
		t.Fatalf("ApplyPromoCode() error = %v", err)
	}
	if _, err := f.svc.SelectGuestAddress(ctx, s.SessionID, models.GuestAddress{Street: "1 rue X", City: "Paris", PostalCode: "75001"}, nil); err != nil {
		t.Fatalf("SelectGuestAddress() error = %v", err)
	}

	out, err := f.svc.MigrateGuestSession(ctx, s.SessionID, "user-123")
	if err != nil {
		t.Fatalf("MigrateGuestSession() error = %v", err)
	}
	if len(f.addresses.rows) != 1 {
		t.Fatalf("%d addresses created, want 1", len(f.addresses.rows))
	}
	var created *models.ClientAddress
	for _, a := range f.addresses.rows {
		created = a
	}
	if created.ClientID != "user-123" || created.City != "Paris" {
		t.Errorf("address = %+v", created)
	}
	if out.ClientID == nil || *out.ClientID != "user-123" || out.IsGuest || out.GuestEmail != nil || out.GuestAddress != nil {
		t.Errorf("session identity = %+v", out)
	}
	if out.AddressID == nil || *out.AddressID != created.ID {
		t.Errorf("AddressID = %v, want %s", out.AddressID, created.ID)
	}
	if out.PromoDiscountAmount != 500 || out.CurrentStep != models.StepSchedule {
		t.Errorf("migration lost progress: %+v", out)
	}

	if _, err := f.svc.MigrateGuestSession(ctx, s.SessionID, "user-123"); !errors.Is(err, ErrNotAGuestSession) {
		t.Errorf("second migration error = %v, want ErrNotAGuestSession", err)
	}
	if len(f.addresses.rows) != 1 {
		t.Errorf("second migration inserted another address")
	}
}

func TestMigrateWithoutGuestAddress(t *testing.T) {
	f := newFixture()
	s := mustCreate(t, f, NewSessionInput{GuestEmail: "a@b.com"})

	out, err := f.svc.MigrateGuestSession(context.Background(), s.SessionID, "user-123")
	if err != nil {
		t.Fatalf("MigrateGuestSession() error = %v", err)
	}
	if out.AddressID != nil || len(f.addresses.rows) != 0 {
		t.Errorf("unexpected address: %v", out.AddressID)
	}
}

func TestMigrateAddressFailureLeavesGuestSession(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	s := mustCreate(t, f, NewSessionInput{GuestEmail: "a@b.com", ServiceID: "42"})
	if _, err := f.svc.SelectGuestAddress(ctx, s.SessionID, models.GuestAddress{Street: "1 rue X", City: "Paris", PostalCode: "75001"}, nil); err != nil {
		t.Fatalf("SelectGuestAddress() error = %v", err)
	}
	f.addresses.failErr = errors.New("insert failed")

	if _, err := f.svc.MigrateGuestSession(ctx, s.SessionID, "user-123"); err == nil {
		t.Fatal("MigrateGuestSession() expected error")
	}
	got, _ := f.svc.GetSession(ctx, s.SessionID)
	if !got.IsGuest || got.GuestAddress == nil || got.ClientID != nil {
		t.Errorf("session changed by failed migration: %+v", got)
	}
}

func TestMigrateRejectsAuthenticatedSession(t *testing.T) {
	f := newFixture()
	s := mustCreate(t, f, NewSessionInput{ClientID: "user-1"})
	if _, err := f.svc.MigrateGuestSession(context.Background(), s.SessionID, "user-2"); !errors.Is(err, ErrNotAGuestSession) {
		t.Errorf("MigrateGuestSession() error = %v, want ErrNotAGuestSession", err)
	}
}

func TestExpiry(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	expired := mustCreate(t, f, NewSessionInput{ClientID: "user-1"})
	f.advance(20 * time.Minute)
	live := mustCreate(t, f, NewSessionInput{ClientID: "user-1"})
	f.advance(15 * time.Minute)

	if _, err := f.svc.GetSession(ctx, expired.SessionID); !errors.Is(err, ErrExpired) {
		t.Errorf("GetSession() on expired error = %v, want ErrExpired", err)
	}
	if _, err := f.svc.SelectService(ctx, expired.SessionID, "42", nil); !errors.Is(err, ErrExpired) {
		t.Errorf("SelectService() on expired error = %v, want ErrExpired", err)
	}

	active, err := f.svc.GetActiveSessions(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetActiveSessions() error = %v", err)
	}
	if len(active) != 1 || active[0].SessionID != live.SessionID {
		t.Errorf("GetActiveSessions() = %+v, want only %s", active, live.SessionID)
	}

	removed, err := f.svc.CleanupExpired(ctx)
	if err != nil {
		t.Fatalf("CleanupExpired() error = %v", err)
	}
	if removed != 1 {
		t.Errorf("CleanupExpired() = %d, want 1", removed)
	}
	if _, err := f.svc.GetSession(ctx, expired.SessionID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetSession() after cleanup error = %v, want ErrNotFound", err)
	}
}

func TestSlidingExpiry(t *testing.T) {
	f := newFixture()
	f.svc.Options.SlidingExpiry = true
	ctx := context.Background()
	s := mustCreate(t, f, NewSessionInput{ClientID: "user-1"})

	f.advance(25 * time.Minute)
	if _, err := f.svc.SelectService(ctx, s.SessionID, "42", nil); err != nil {
		t.Fatalf("SelectService() error = %v", err)
	}
	f.advance(25 * time.Minute)
	if _, err := f.svc.GetSession(ctx, s.SessionID); err != nil {
		t.Errorf("GetSession() error = %v, want session kept alive by activity", err)
	}
}

func TestCleanupContinuesPastFailures(t *testing.T) {
	f := newFixture()
	f.svc.Options.CleanupBatchSize = 2
	for i := 0; i < 5; i++ {
		mustCreate(t, f, NewSessionInput{ClientID: "user-1"})
	}
	f.sessions.failDelete["id-2"] = true
	f.advance(time.Hour)

	removed, err := f.svc.CleanupExpired(context.Background())
	if err != nil {
		t.Fatalf("CleanupExpired() error = %v", err)
	}
	if removed != 4 {
		t.Errorf("CleanupExpired() = %d, want 4", removed)
	}
	if len(f.sessions.rows) != 1 {
		t.Errorf("%d rows left, want only the undeletable one", len(f.sessions.rows))
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	s := mustCreate(t, f, NewSessionInput{GuestEmail: "a@b.com"})

	for i := 0; i < 2; i++ {
		if err := f.svc.DeleteSession(ctx, s.SessionID); err != nil {
			t.Fatalf("DeleteSession() #%d error = %v", i+1, err)
		}
	}
	if _, err := f.svc.GetSession(ctx, s.SessionID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetSession() after delete error = %v, want ErrNotFound", err)
	}
}

func TestGetWithRelations(t *testing.T) {
	f := newFixture()
	s := readySession(t, f)
	if _, err := f.svc.SelectContractor(context.Background(), s.SessionID, "c-1", nil); err != nil {
		t.Fatalf("SelectContractor() error = %v", err)
	}

	out, err := f.svc.GetWithRelations(context.Background(), s.SessionID)
	if err != nil {
		t.Fatalf("GetWithRelations() error = %v", err)
	}
	if out.Service == nil || out.Service.Price != 5000 {
		t.Errorf("Service = %+v", out.Service)
	}
	if out.Address == nil || out.Address.City != "Lyon" {
		t.Errorf("Address = %+v", out.Address)
	}
	if out.Contractor == nil || out.Contractor.ID != "c-1" {
		t.Errorf("Contractor = %+v", out.Contractor)
	}
}

func TestRedeemPromoCode(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	s := readySession(t, f)

	tests := []struct {
		name    string
		code    string
		wantErr error
	}{
		{name: "unknown code", code: "ANYTHING", wantErr: ErrInvalidInput},
		{name: "inactive code", code: "OLD", wantErr: ErrInvalidInput},
		{name: "code for another service", code: "TENOFF", wantErr: ErrInvalidInput},
		{name: "blank code", code: "  ", wantErr: ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.RedeemPromoCode(ctx, s.SessionID, tt.code, nil); !errors.Is(err, tt.wantErr) {
				t.Fatalf("RedeemPromoCode(%q) error = %v, want %v", tt.code, err, tt.wantErr)
			}
		})
	}

	got, _ := f.svc.GetSession(ctx, s.SessionID)
	if got.PromoCodeID != nil || got.PromoDiscountAmount != 0 {
		t.Fatalf("rejected code left promo fields: %+v", got)
	}
	if _, err := f.svc.MaterializeBooking(ctx, s.SessionID, ""); !errors.Is(err, ErrPaymentMismatch) {
		t.Fatalf("MaterializeBooking() without payment error = %v, want ErrPaymentMismatch", err)
	}

	out, err := f.svc.RedeemPromoCode(ctx, s.SessionID, "spring20", nil)
	if err != nil {
		t.Fatalf("RedeemPromoCode() error = %v", err)
	}
	if *out.PromoCodeID != "p-20" || out.PromoDiscountAmount != 1000 {
		t.Errorf("promo = %v amount %d, want p-20 / 1000", *out.PromoCodeID, out.PromoDiscountAmount)
	}
}

func TestRedeemGiftCard(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	s := readySession(t, f)

	if _, err := f.svc.RedeemGiftCard(ctx, s.SessionID, "NOPE", nil); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("unknown gift card error = %v, want ErrInvalidInput", err)
	}
	if _, err := f.svc.RedeemGiftCard(ctx, s.SessionID, "USDCARD", nil); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("currency mismatch error = %v, want ErrInvalidInput", err)
	}

	if _, err := f.svc.RedeemPromoCode(ctx, s.SessionID, "SPRING20", nil); err != nil {
		t.Fatalf("RedeemPromoCode() error = %v", err)
	}
	out, err := f.svc.RedeemGiftCard(ctx, s.SessionID, "BIGCARD", nil)
	if err != nil {
		t.Fatalf("RedeemGiftCard() error = %v", err)
	}
	if out.GiftCardAmount != 4000 || out.TotalDiscount() != 5000 {
		t.Errorf("gift card amount = %d total %d, want 4000 / 5000", out.GiftCardAmount, out.TotalDiscount())
	}
}

func TestRedeemGiftCardWithNothingLeft(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	s := mustCreate(t, f, NewSessionInput{ClientID: "user-1", ServiceID: "42"})

	if _, err := f.svc.ApplyPromoCode(ctx, s.SessionID, DiscountInput{ID: "p-1", Code: "FREE", Amount: 5000}, nil); err != nil {
		t.Fatalf("ApplyPromoCode() error = %v", err)
	}
	if _, err := f.svc.RedeemGiftCard(ctx, s.SessionID, "BIGCARD", nil); !errors.Is(err, ErrDiscountExceedsAmount) {
		t.Errorf("RedeemGiftCard() error = %v, want ErrDiscountExceedsAmount", err)
	}
}

func TestDiscountAmountsCannotWrap(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	s := mustCreate(t, f, NewSessionInput{ClientID: "user-1", ServiceID: "42"})

	if _, err := f.svc.ApplyGiftCard(ctx, s.SessionID, DiscountInput{ID: "g-1", Code: "ONE", Amount: 1}, nil); err != nil {
		t.Fatalf("ApplyGiftCard() error = %v", err)
	}
	_, err := f.svc.ApplyPromoCode(ctx, s.SessionID, DiscountInput{ID: "p-1", Code: "HUGE", Amount: math.MaxInt64}, nil)
	if !errors.Is(err, ErrDiscountExceedsAmount) {
		t.Fatalf("ApplyPromoCode(MaxInt64) error = %v, want ErrDiscountExceedsAmount", err)
	}
	if _, err := f.svc.ApplyGiftCard(ctx, s.SessionID, DiscountInput{ID: "g-2", Code: "HUGE", Amount: math.MaxInt64}, nil); !errors.Is(err, ErrDiscountExceedsAmount) {
		t.Fatalf("ApplyGiftCard(MaxInt64) error = %v, want ErrDiscountExceedsAmount", err)
	}

	got, _ := f.svc.GetSession(ctx, s.SessionID)
	if got.PromoDiscountAmount != 0 || got.GiftCardAmount != 1 {
		t.Errorf("amounts = promo %d gift %d, want 0 / 1", got.PromoDiscountAmount, got.GiftCardAmount)
	}
}

func TestStaleServiceChangeKeepsIntent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	s := readySession(t, f)

	prep, err := f.svc.PreparePayment(ctx, s.SessionID)
	if err != nil {
		t.Fatalf("PreparePayment() error = %v", err)
	}
	// Another writer lands between our read and our write.
	f.sessions.beforeUpdate = func(row *models.BookingSession) {
		row.Version++
		f.sessions.beforeUpdate = nil
	}
	if _, err := f.svc.SelectService(ctx, s.SessionID, "43", nil); !errors.Is(err, ErrConflict) {
		t.Fatalf("SelectService() error = %v, want ErrConflict", err)
	}
	if len(f.gateway.cancelled) != 0 {
		t.Errorf("cancelled = %v after a rejected write", f.gateway.cancelled)
	}
	got, _ := f.svc.GetSession(ctx, s.SessionID)
	if got.PaymentIntentID == nil || *got.PaymentIntentID != prep.Intent.ID {
		t.Errorf("stored intent = %v, want %s", got.PaymentIntentID, prep.Intent.ID)
	}
}

func TestServiceChangeLeavesAuthorizedIntent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	s := readySession(t, f)

	prep, err := f.svc.PreparePayment(ctx, s.SessionID)
	if err != nil {
		t.Fatalf("PreparePayment() error = %v", err)
	}
	f.gateway.intents[prep.Intent.ID].Status = "succeeded"

	out, err := f.svc.SelectService(ctx, s.SessionID, "43", nil)
	if err != nil {
		t.Fatalf("SelectService() error = %v", err)
	}
	if out.PaymentIntentID != nil {
		t.Errorf("intent still referenced: %v", *out.PaymentIntentID)
	}
	if len(f.gateway.cancelled) != 0 {
		t.Errorf("authorized intent was cancelled: %v", f.gateway.cancelled)
	}
}
