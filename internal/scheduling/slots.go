package scheduling

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/hackgods/tarot-booking/internal/timeutil"
)

type SlotQuery struct {
	Date     time.Time
	Duration int
	// Type filters windows; empty means every type.
	Type          WindowType
	AvailableOnly bool
	// IncludeHistory adds canceled bookings as canceled slots. Ignored with AvailableOnly.
	IncludeHistory bool
}

// GenerateSlots derives the bookable slots for a date. Emergency queries also
// return the next day's emergency slots, flagged NextDay.
func (s *Service) GenerateSlots(ctx context.Context, q SlotQuery) (slots []Slot, err error) {
	ctx, span := startSpan(ctx, "scheduling.GenerateSlots",
		attribute.String("date", timeutil.FormatDate(q.Date)),
		attribute.String("window.type", string(q.Type)),
		attribute.Int("duration", q.Duration),
	)
	defer func() { endSpan(span, err) }()

	if q.Duration <= 0 || q.Duration > timeutil.MinutesPerDay {
		return nil, fmt.Errorf("%w: duration must be between 1 and %d minutes", ErrInvalidFormat, timeutil.MinutesPerDay)
	}
	start := time.Now()
	q.Date = timeutil.DateOf(q.Date)

	slots, err = s.slotsForDate(ctx, q.Date, q)
	if err != nil {
		return nil, err
	}

	if q.Type == WindowEmergency {
		next, err := s.slotsForDate(ctx, timeutil.AddDays(q.Date, 1), q)
		if err != nil {
			return nil, err
		}
		for i := range next {
			next[i].NextDay = true
		}
		slots = append(slots, next...)
	}

	s.metrics.ObserveSlotQuery(string(q.Type), time.Since(start).Seconds())
	return slots, nil
}

func (s *Service) slotsForDate(ctx context.Context, date time.Time, q SlotQuery) ([]Slot, error) {
	windows, err := s.repo.ListWindows(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("list windows: %w", err)
	}
	withHistory := q.IncludeHistory && !q.AvailableOnly
	bookings, err := s.repo.ListBookings(ctx, date, withHistory)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}

	// Walk windows in declaration order; the stable sort below keeps it as the tie-break.
	sort.SliceStable(windows, func(i, j int) bool { return windows[i].Seq < windows[j].Seq })

	slots := make([]Slot, 0)
	for _, w := range windows {
		if q.Type != "" && w.Type != q.Type {
			continue
		}
		for t := w.Start; t+q.Duration <= w.End; t += q.Duration {
			slot := Slot{
				Date:     date,
				Time:     t,
				Duration: q.Duration,
				Type:     w.Type,
				Status:   SlotOpen,
			}
			if b, ok := firstOverlapping(bookings, t, t+q.Duration); ok {
				if q.AvailableOnly {
					continue
				}
				markBooked(&slot, b)
			}
			slots = append(slots, slot)
		}
	}

	if withHistory {
		for _, b := range bookings {
			if b.Active() || (q.Type != "" && b.Type != q.Type) {
				continue
			}
			id := b.ID
			slots = append(slots, Slot{
				Date:      date,
				Time:      b.Time,
				Duration:  b.Duration,
				Type:      b.Type,
				Status:    SlotCanceled,
				BookedBy:  b.BookedBy(),
				BookingID: &id,
				Source:    b.Source,
			})
		}
	}

	sort.SliceStable(slots, func(i, j int) bool { return slots[i].Time < slots[j].Time })
	return slots, nil
}

func firstOverlapping(bookings []Booking, start, end int) (Booking, bool) {
	for _, b := range bookings {
		if b.Active() && timeutil.Overlaps(b.Time, b.End(), start, end) {
			return b, true
		}
	}
	return Booking{}, false
}

func markBooked(slot *Slot, b Booking) {
	id := b.ID
	slot.Status = SlotBooked
	slot.IsBooked = true
	slot.BookedBy = b.BookedBy()
	slot.BookingID = &id
	slot.Source = b.Source
}
