package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/hackgods/tarot-booking/internal/timeutil"
)

type BookingRequest struct {
	Date        time.Time
	Time        int
	Duration    int
	Type        WindowType
	Source      Source
	Label       string
	ServiceCode string
	Client      Client
	Details     json.RawMessage
	PaymentID   string
	AmountCents int64
	Currency    string
}

func (r BookingRequest) validate() error {
	if err := requireType(r.Type); err != nil {
		return err
	}
	if r.Duration <= 0 {
		return fmt.Errorf("%w: duration must be positive", ErrInvalidFormat)
	}
	if err := timeutil.ValidRange(r.Time, r.Time+r.Duration); err != nil {
		return err
	}
	switch r.Source {
	case SourceClientBooking, SourceManualBlock:
	default:
		return fmt.Errorf("%w: unknown booking source %q", ErrInvalidFormat, r.Source)
	}
	if r.Source == SourceClientBooking && strings.TrimSpace(r.Client.Name) == "" {
		return fmt.Errorf("%w: client name is required", ErrInvalidFormat)
	}
	return nil
}

// CheckBookable reports whether a booking for [t, t+duration) would currently
// succeed. It writes nothing; Book re-checks atomically.
func (s *Service) CheckBookable(ctx context.Context, date time.Time, t, duration int, wt WindowType) error {
	date = timeutil.DateOf(date)
	windows, err := s.repo.ListWindows(ctx, date)
	if err != nil {
		return fmt.Errorf("list windows: %w", err)
	}

	covered := false
	for _, w := range windows {
		if w.Type == wt && timeutil.Contains(w.Start, w.End, t, t+duration) {
			covered = true
			break
		}
	}
	if !covered {
		return ErrOutsideAvailability
	}

	bookings, err := s.repo.ListBookings(ctx, date, false)
	if err != nil {
		return fmt.Errorf("list bookings: %w", err)
	}
	if _, ok := firstOverlapping(bookings, t, t+duration); ok {
		return ErrSlotConflict
	}
	return nil
}

// Book records a booking. The store rejects it with ErrOutsideAvailability when
// no window of the type covers it, and ErrSlotConflict when any active booking
// on the date overlaps, whatever its duration.
func (s *Service) Book(ctx context.Context, req BookingRequest) (b *Booking, err error) {
	if req.Source == "" {
		req.Source = SourceClientBooking
	}
	ctx, span := startSpan(ctx, "scheduling.Book",
		attribute.String("date", timeutil.FormatDate(req.Date)),
		attribute.String("time", timeutil.FormatTime(req.Time)),
		attribute.String("booking.source", string(req.Source)),
	)
	defer func() { endSpan(span, err) }()

	if err := req.validate(); err != nil {
		return nil, err
	}

	id := uuid.New()
	date := timeutil.DateOf(req.Date)
	b, err = s.repo.InsertBooking(ctx, Booking{
		ID:          id,
		Reference:   NewReference(date, id),
		Date:        date,
		Time:        req.Time,
		Duration:    req.Duration,
		Type:        req.Type,
		Source:      req.Source,
		Label:       req.Label,
		ServiceCode: req.ServiceCode,
		Client:      req.Client,
		Details:     req.Details,
		PaymentID:   req.PaymentID,
		AmountCents: req.AmountCents,
		Currency:    req.Currency,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrSlotConflict):
			s.metrics.ObserveBooking(string(req.Source), "slot_conflict")
		case errors.Is(err, ErrOutsideAvailability):
			s.metrics.ObserveBooking(string(req.Source), "outside_availability")
		default:
			s.metrics.ObserveBooking(string(req.Source), "error")
			return nil, fmt.Errorf("insert booking: %w", err)
		}
		return nil, err
	}

	s.metrics.ObserveBooking(string(req.Source), "ok")
	s.logger.Info("booking created",
		"booking_id", b.ID,
		"reference", b.Reference,
		"date", timeutil.FormatDate(b.Date),
		"time", timeutil.FormatTime(b.Time),
		"duration", b.Duration,
		"type", b.Type,
		"source", b.Source,
	)
	s.emit(ctx, EventBookingConfirmed, *b)
	return b, nil
}

// Cancel marks a booking canceled. Canceling twice is a no-op success.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason string) (*Booking, error) {
	b, changed, err := s.repo.CancelBooking(ctx, id, reason, s.now())
	if err != nil {
		if errors.Is(err, ErrBookingNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("cancel booking: %w", err)
	}
	if !changed {
		return b, nil
	}

	s.metrics.ObserveCancel(string(b.Source))
	s.logger.Info("booking canceled", "booking_id", b.ID, "reference", b.Reference, "reason", reason)
	s.emit(ctx, EventBookingCanceled, *b)
	return b, nil
}

// ListBooked returns the active bookings of a date ordered by time.
func (s *Service) ListBooked(ctx context.Context, date time.Time) ([]Booking, error) {
	bookings, err := s.repo.ListBookings(ctx, timeutil.DateOf(date), false)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return bookings, nil
}

func (s *Service) GetBooking(ctx context.Context, id uuid.UUID) (*Booking, error) {
	return s.repo.GetBooking(ctx, id)
}

func (s *Service) GetBookingByReference(ctx context.Context, ref string) (*Booking, error) {
	return s.repo.GetBookingByReference(ctx, strings.ToUpper(strings.TrimSpace(ref)))
}

func (s *Service) SetRefundStatus(ctx context.Context, id uuid.UUID, status RefundStatus) (*Booking, error) {
	b, err := s.repo.SetRefundStatus(ctx, id, status)
	if err != nil {
		return nil, fmt.Errorf("set refund status: %w", err)
	}
	return b, nil
}
