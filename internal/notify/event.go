package notify

import (
	"time"

	"github.com/hackgods/tarot-booking/internal/scheduling"
	"github.com/hackgods/tarot-booking/internal/timeutil"
)

// BookingEvent is the payload stored in the outbox and published downstream.
type BookingEvent struct {
	BookingID    string            `json:"booking_id"`
	Reference    string            `json:"reference"`
	Date         string            `json:"date"`
	Time         string            `json:"time"`
	Duration     int               `json:"duration_minutes"`
	Type         string            `json:"type"`
	ServiceCode  string            `json:"service_code,omitempty"`
	Client       scheduling.Client `json:"client"`
	AmountCents  int64             `json:"amount_cents,omitempty"`
	Currency     string            `json:"currency,omitempty"`
	Status       string            `json:"status"`
	CancelReason string            `json:"cancel_reason,omitempty"`
	OccurredAt   time.Time         `json:"occurred_at"`
}

func NewBookingEvent(b scheduling.Booking, occurredAt time.Time) BookingEvent {
	return BookingEvent{
		BookingID:    b.ID.String(),
		Reference:    b.Reference,
		Date:         timeutil.FormatDate(b.Date),
		Time:         timeutil.FormatTime(b.Time),
		Duration:     b.Duration,
		Type:         string(b.Type),
		ServiceCode:  b.ServiceCode,
		Client:       b.Client,
		AmountCents:  b.AmountCents,
		Currency:     b.Currency,
		Status:       string(b.Status),
		CancelReason: b.CancelReason,
		OccurredAt:   occurredAt.UTC(),
	}
}

// Interval resolves the session start and end in loc.
func (e BookingEvent) Interval(loc *time.Location) (time.Time, time.Time, error) {
	date, err := timeutil.ParseDate(e.Date)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	minute, err := timeutil.ParseTime(e.Time)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := timeutil.At(date, minute, loc)
	return start, start.Add(time.Duration(e.Duration) * time.Minute), nil
}
