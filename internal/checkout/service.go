// Package checkout turns a priced service request into a paid booking, and a
// cancellation into a refund.
package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/hackgods/tarot-booking/internal/observability/metrics"
	"github.com/hackgods/tarot-booking/internal/payment"
	"github.com/hackgods/tarot-booking/internal/scheduling"
	"github.com/hackgods/tarot-booking/internal/timeutil"
	"github.com/hackgods/tarot-booking/pkg/logging"
)

var tracer = otel.Tracer("tarot.internal.checkout")

// Ledger is the part of the scheduling service checkout drives.
type Ledger interface {
	CheckBookable(ctx context.Context, date time.Time, t, duration int, wt scheduling.WindowType) error
	Book(ctx context.Context, req scheduling.BookingRequest) (*scheduling.Booking, error)
	Cancel(ctx context.Context, id uuid.UUID, reason string) (*scheduling.Booking, error)
	SetRefundStatus(ctx context.Context, id uuid.UUID, status scheduling.RefundStatus) (*scheduling.Booking, error)
}

type Request struct {
	ServiceCode    string
	Date           time.Time
	Time           int
	Type           scheduling.WindowType
	Client         scheduling.Client
	Details        json.RawMessage
	PaymentMethod  string
	IdempotencyKey string
}

type Service struct {
	ledger    Ledger
	catalogue *Catalogue
	charger   payment.Charger
	logger    *logging.Logger
	metrics   *metrics.DeliveryMetrics
}

func NewService(ledger Ledger, catalogue *Catalogue, charger payment.Charger) *Service {
	return &Service{
		ledger:    ledger,
		catalogue: catalogue,
		charger:   charger,
		logger:    logging.Default(),
	}
}

func (s *Service) WithLogger(l *logging.Logger) *Service {
	if l != nil {
		s.logger = l
	}
	return s
}

func (s *Service) WithMetrics(m *metrics.DeliveryMetrics) *Service {
	s.metrics = m
	return s
}

func (s *Service) Catalogue() *Catalogue {
	return s.catalogue
}

func (r Request) validate() error {
	if strings.TrimSpace(r.Client.Name) == "" {
		return fmt.Errorf("%w: client name is required", scheduling.ErrInvalidFormat)
	}
	if !strings.Contains(r.Client.Email, "@") {
		return fmt.Errorf("%w: client email is required", scheduling.ErrInvalidFormat)
	}
	if r.PaymentMethod == "" {
		return fmt.Errorf("%w: payment method is required", scheduling.ErrInvalidFormat)
	}
	return nil
}

// Checkout quotes the service, verifies the slot is still free, charges the
// client and records the booking. A charge whose booking then loses the slot
// is refunded before the conflict is returned.
func (s *Service) Checkout(ctx context.Context, req Request) (*scheduling.Booking, error) {
	ctx, span := tracer.Start(ctx, "checkout.Checkout")
	defer span.End()
	span.SetAttributes(
		attribute.String("service.code", req.ServiceCode),
		attribute.String("date", timeutil.FormatDate(req.Date)),
		attribute.String("time", timeutil.FormatTime(req.Time)),
	)

	if err := req.validate(); err != nil {
		return nil, err
	}
	quote, err := s.catalogue.Quote(req.ServiceCode, req.Type)
	if err != nil {
		return nil, err
	}
	if !quote.Offering.Bookable() {
		return nil, fmt.Errorf("%w: %s", ErrNotBookable, quote.Offering.Code)
	}
	duration := quote.Offering.Duration

	if err := s.ledger.CheckBookable(ctx, req.Date, req.Time, duration, req.Type); err != nil {
		return nil, err
	}

	key := req.IdempotencyKey
	if key == "" {
		key = uuid.NewString()
	}
	charge, err := s.charger.Charge(ctx, payment.ChargeRequest{
		AmountCents:    quote.AmountCents,
		Currency:       quote.Currency,
		ClientRef:      req.Client.Email,
		Description:    fmt.Sprintf("%s on %s at %s", quote.Offering.Name, timeutil.FormatDate(req.Date), timeutil.FormatTime(req.Time)),
		PaymentMethod:  req.PaymentMethod,
		IdempotencyKey: key,
		Metadata: map[string]string{
			"service_code": quote.Offering.Code,
			"slot_type":    string(req.Type),
		},
	})
	if err != nil {
		span.RecordError(err)
		s.metrics.ObservePayment("error")
		return nil, fmt.Errorf("charge: %w", err)
	}
	if !charge.Success {
		s.metrics.ObservePayment("declined")
		s.logger.Info("payment declined", "client_email", req.Client.Email, "reason", charge.DeclineReason)
		return nil, fmt.Errorf("%w: %s", payment.ErrPaymentDeclined, charge.DeclineReason)
	}
	s.metrics.ObservePayment("approved")

	b, err := s.ledger.Book(ctx, scheduling.BookingRequest{
		Date:        req.Date,
		Time:        req.Time,
		Duration:    duration,
		Type:        req.Type,
		Source:      scheduling.SourceClientBooking,
		ServiceCode: quote.Offering.Code,
		Client:      req.Client,
		Details:     req.Details,
		PaymentID:   charge.ExternalPaymentID,
		AmountCents: quote.AmountCents,
		Currency:    quote.Currency,
	})
	if err != nil {
		span.RecordError(err)
		reason := "book_failed"
		if errors.Is(err, scheduling.ErrSlotConflict) || errors.Is(err, scheduling.ErrOutsideAvailability) {
			reason = "lost_race"
		}
		s.refundCharge(ctx, charge.ExternalPaymentID, reason)
		return nil, err
	}
	return b, nil
}

// Cancel cancels a booking and refunds its payment once. A refund failure is
// recorded on the booking and does not undo the cancellation.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason string) (*scheduling.Booking, error) {
	ctx, span := tracer.Start(ctx, "checkout.Cancel")
	defer span.End()
	span.SetAttributes(attribute.String("booking.id", id.String()))

	b, err := s.ledger.Cancel(ctx, id, reason)
	if err != nil {
		return nil, err
	}
	if b.PaymentID == "" {
		return b, nil
	}
	if b.RefundStatus != scheduling.RefundNone && b.RefundStatus != scheduling.RefundFailed {
		return b, nil
	}

	if _, err := s.ledger.SetRefundStatus(ctx, b.ID, scheduling.RefundPending); err != nil {
		return nil, err
	}
	status := scheduling.RefundRefunded
	if err := s.charger.Refund(ctx, b.PaymentID); err != nil {
		span.RecordError(err)
		s.metrics.ObserveRefund("canceled", "error")
		s.logger.Error("refund failed", "error", err, "booking_id", b.ID, "payment_id", b.PaymentID)
		status = scheduling.RefundFailed
	} else {
		s.metrics.ObserveRefund("canceled", "ok")
	}
	return s.ledger.SetRefundStatus(ctx, b.ID, status)
}

func (s *Service) refundCharge(ctx context.Context, paymentID, reason string) {
	if err := s.charger.Refund(context.WithoutCancel(ctx), paymentID); err != nil {
		s.metrics.ObserveRefund(reason, "error")
		s.logger.Error("refund after failed booking failed", "error", err, "payment_id", paymentID, "reason", reason)
		return
	}
	s.metrics.ObserveRefund(reason, "ok")
	s.logger.Info("charge refunded", "payment_id", paymentID, "reason", reason)
}
