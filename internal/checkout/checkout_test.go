package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/tarot-booking/internal/payment"
	"github.com/hackgods/tarot-booking/internal/scheduling"
	"github.com/hackgods/tarot-booking/internal/timeutil"
)

func TestCatalogueQuote(t *testing.T) {
	c, err := NewCatalogue(0.5, "EUR")
	require.NoError(t, err)

	q, err := c.Quote("live-20", scheduling.WindowRegular)
	require.NoError(t, err)
	assert.Equal(t, int64(6600), q.AmountCents)
	assert.Equal(t, "EUR", q.Currency)

	q, err = c.Quote("live-40", scheduling.WindowEmergency)
	require.NoError(t, err)
	assert.Equal(t, int64(19350), q.AmountCents)

	_, err = c.Quote("palm-reading", scheduling.WindowRegular)
	assert.ErrorIs(t, err, ErrUnknownService)
}

func TestCatalogueRounding(t *testing.T) {
	c, err := NewCatalogue(0.15, "EUR")
	require.NoError(t, err)

	q, err := c.Quote("live-40", scheduling.WindowEmergency)
	require.NoError(t, err)
	// 12900 * 1.15 = 14835
	assert.Equal(t, int64(14835), q.AmountCents)
}

func TestCatalogueRejectsBadRate(t *testing.T) {
	_, err := NewCatalogue(-0.1, "EUR")
	assert.Error(t, err)
	_, err = NewCatalogue(1.5, "EUR")
	assert.Error(t, err)
	_, err = NewCatalogue(0.2, "")
	assert.Error(t, err)
}

func TestCatalogueList(t *testing.T) {
	c, err := NewCatalogue(0.5, "EUR")
	require.NoError(t, err)

	list := c.List()
	require.Len(t, list, 5)
	byCode := map[string]PriceListing{}
	for _, l := range list {
		byCode[l.Code] = l
	}
	assert.True(t, byCode["live-20"].Bookable)
	assert.Equal(t, int64(9900), byCode["live-20"].EmergencyCents)
	assert.False(t, byCode["aura"].Bookable)
	assert.Zero(t, byCode["aura"].EmergencyCents)
}

type fixture struct {
	sched   *scheduling.Service
	svc     *Service
	charger *payment.FakeCharger
	date    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	sched := scheduling.NewService(
		scheduling.NewMemoryRepository(),
		scheduling.NewMemoryProposalStore(time.Hour),
		scheduling.NewLocalLocker(),
	)
	date, err := timeutil.ParseDate("2026-03-02")
	require.NoError(t, err)

	p, err := sched.ProposeWindow(context.Background(), date, 9*60, 12*60, scheduling.WindowRegular)
	require.NoError(t, err)
	require.Equal(t, scheduling.ProposalAccepted, p.State)

	c, err := NewCatalogue(0.5, "EUR")
	require.NoError(t, err)
	charger := payment.NewFakeCharger()
	return &fixture{sched: sched, svc: NewService(sched, c, charger), charger: charger, date: date}
}

func (f *fixture) request(at int) Request {
	return Request{
		ServiceCode:   "live-20",
		Date:          f.date,
		Time:          at,
		Type:          scheduling.WindowRegular,
		Client:        scheduling.Client{Name: "Ada", Email: "ada@example.com"},
		PaymentMethod: "pm_card_visa",
	}
}

func TestCheckoutBooksPaidSlot(t *testing.T) {
	f := newFixture(t)

	b, err := f.svc.Checkout(context.Background(), f.request(9*60+20))
	require.NoError(t, err)
	assert.Equal(t, 20, b.Duration)
	assert.Equal(t, "live-20", b.ServiceCode)
	assert.Equal(t, int64(6600), b.AmountCents)
	assert.NotEmpty(t, b.PaymentID)
	assert.Len(t, f.charger.Charges(), 1)

	_, err = f.svc.Checkout(context.Background(), f.request(9*60+20))
	assert.ErrorIs(t, err, scheduling.ErrSlotConflict)
	assert.Len(t, f.charger.Charges(), 1, "taken slot must not be charged")
}

func TestCheckoutDeclined(t *testing.T) {
	f := newFixture(t)
	req := f.request(9 * 60)
	req.PaymentMethod = payment.DeclinedPaymentMethod

	_, err := f.svc.Checkout(context.Background(), req)
	assert.ErrorIs(t, err, payment.ErrPaymentDeclined)

	booked, err := f.sched.ListBooked(context.Background(), f.date)
	require.NoError(t, err)
	assert.Empty(t, booked)
}

func TestCheckoutValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := f.request(9 * 60)
	req.Client.Email = ""
	_, err := f.svc.Checkout(ctx, req)
	assert.ErrorIs(t, err, scheduling.ErrInvalidFormat)

	req = f.request(9 * 60)
	req.ServiceCode = "aura"
	_, err = f.svc.Checkout(ctx, req)
	assert.ErrorIs(t, err, ErrNotBookable)

	req = f.request(9 * 60)
	req.ServiceCode = "nope"
	_, err = f.svc.Checkout(ctx, req)
	assert.ErrorIs(t, err, ErrUnknownService)

	_, err = f.svc.Checkout(ctx, f.request(13*60))
	assert.ErrorIs(t, err, scheduling.ErrOutsideAvailability)
	assert.Empty(t, f.charger.Charges())
}

func TestCheckoutChargeError(t *testing.T) {
	f := newFixture(t)
	f.charger.FailWith(errors.New("network down"))

	_, err := f.svc.Checkout(context.Background(), f.request(9*60))
	require.Error(t, err)
	assert.NotErrorIs(t, err, payment.ErrPaymentDeclined)
}

// racingLedger skips the precheck so the charge happens before the conflict is found.
type racingLedger struct {
	*scheduling.Service
}

func (racingLedger) CheckBookable(context.Context, time.Time, int, int, scheduling.WindowType) error {
	return nil
}

func TestCheckoutRefundsLostRace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Checkout(ctx, f.request(9*60))
	require.NoError(t, err)

	racer := NewService(racingLedger{f.sched}, f.svc.Catalogue(), f.charger)
	_, err = racer.Checkout(ctx, f.request(9*60+10))
	require.ErrorIs(t, err, scheduling.ErrSlotConflict)

	charges := f.charger.Charges()
	require.Len(t, charges, 2)
	booked, err := f.sched.ListBooked(ctx, f.date)
	require.NoError(t, err)
	require.Len(t, booked, 1)
}

func TestCancelRefundsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.svc.Checkout(ctx, f.request(10*60))
	require.NoError(t, err)

	canceled, err := f.svc.Cancel(ctx, b.ID, "client request")
	require.NoError(t, err)
	assert.Equal(t, scheduling.BookingCanceled, canceled.Status)
	assert.Equal(t, scheduling.RefundRefunded, canceled.RefundStatus)
	assert.True(t, f.charger.Refunded(b.PaymentID))

	again, err := f.svc.Cancel(ctx, b.ID, "client request")
	require.NoError(t, err)
	assert.Equal(t, scheduling.RefundRefunded, again.RefundStatus)
}

func TestCancelRecordsRefundFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.svc.Checkout(ctx, f.request(10*60))
	require.NoError(t, err)

	f.charger.FailWith(errors.New("processor down"))
	canceled, err := f.svc.Cancel(ctx, b.ID, "")
	require.NoError(t, err)
	assert.Equal(t, scheduling.BookingCanceled, canceled.Status)
	assert.Equal(t, scheduling.RefundFailed, canceled.RefundStatus)
}

func TestCancelManualBlockHasNoRefund(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.sched.Book(ctx, scheduling.BookingRequest{
		Date:     f.date,
		Time:     11 * 60,
		Duration: 30,
		Type:     scheduling.WindowRegular,
		Source:   scheduling.SourceManualBlock,
	})
	require.NoError(t, err)

	canceled, err := f.svc.Cancel(ctx, b.ID, "")
	require.NoError(t, err)
	assert.Equal(t, scheduling.RefundNone, canceled.RefundStatus)

	_, err = f.svc.Cancel(ctx, uuid.New(), "")
	assert.ErrorIs(t, err, scheduling.ErrBookingNotFound)
}
