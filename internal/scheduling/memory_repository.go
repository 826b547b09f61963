package scheduling

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/tarot-booking/internal/timeutil"
)

// MemoryRepository keeps everything in process. A single mutex makes every
// check-and-write atomic, matching what the Postgres constraints guarantee.
type MemoryRepository struct {
	mu       sync.Mutex
	windows  map[uuid.UUID]Window
	bookings map[uuid.UUID]Booking
	seq      int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		windows:  make(map[uuid.UUID]Window),
		bookings: make(map[uuid.UUID]Booking),
	}
}

func (r *MemoryRepository) ListWindows(ctx context.Context, date time.Time) ([]Window, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	date = timeutil.DateOf(date)
	var out []Window
	for _, w := range r.windows {
		if w.Date.Equal(date) {
			out = append(out, w)
		}
	}
	sortWindows(out)
	return out, nil
}

func (r *MemoryRepository) GetWindow(ctx context.Context, id uuid.UUID) (*Window, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.windows[id]
	if !ok {
		return nil, ErrWindowNotFound
	}
	return &w, nil
}

func (r *MemoryRepository) InsertWindows(ctx context.Context, windows []Window) ([]Window, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	pending := make([]Window, 0, len(windows))
	for _, w := range windows {
		w.Date = timeutil.DateOf(w.Date)
		if _, taken := r.windows[w.ID]; taken && w.ID != uuid.Nil {
			return nil, fmt.Errorf("%w: window id %s already exists", ErrInvalidFormat, w.ID)
		}
		if r.windowOverlapsLocked(w, uuid.Nil) {
			return nil, ErrDuplicateOverlap
		}
		for _, p := range pending {
			if p.Date.Equal(w.Date) && p.Type == w.Type && timeutil.Overlaps(p.Start, p.End, w.Start, w.End) {
				return nil, ErrDuplicateOverlap
			}
		}
		pending = append(pending, w)
	}

	now := time.Now().UTC()
	out := make([]Window, 0, len(pending))
	for _, w := range pending {
		r.seq++
		if w.ID == uuid.Nil {
			w.ID = uuid.New()
		}
		w.Seq = r.seq
		w.CreatedAt = now
		r.windows[w.ID] = w
		out = append(out, w)
	}
	return out, nil
}

func (r *MemoryRepository) UpdateWindow(ctx context.Context, id uuid.UUID, start, end int) (*Window, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.windows[id]
	if !ok {
		return nil, ErrWindowNotFound
	}

	updated := w
	updated.Start, updated.End = start, end
	if r.windowOverlapsLocked(updated, id) {
		return nil, ErrDuplicateOverlap
	}
	for _, b := range r.bookings {
		if dependsOn(b, w) && !timeutil.Contains(start, end, b.Time, b.End()) {
			return nil, ErrHasActiveBookings
		}
	}

	r.windows[id] = updated
	return &updated, nil
}

func (r *MemoryRepository) DeleteWindowIfUnbooked(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.windows[id]
	if !ok {
		return ErrWindowNotFound
	}
	for _, b := range r.bookings {
		if dependsOn(b, w) {
			return ErrHasActiveBookings
		}
	}
	delete(r.windows, id)
	return nil
}

func (r *MemoryRepository) InsertBooking(ctx context.Context, b Booking) (*Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	b.Date = timeutil.DateOf(b.Date)

	covered := false
	for _, w := range r.windows {
		if w.Date.Equal(b.Date) && w.Type == b.Type && timeutil.Contains(w.Start, w.End, b.Time, b.End()) {
			covered = true
			break
		}
	}
	if !covered {
		return nil, ErrOutsideAvailability
	}

	for _, existing := range r.bookings {
		if existing.Active() && existing.Date.Equal(b.Date) &&
			timeutil.Overlaps(existing.Time, existing.End(), b.Time, b.End()) {
			return nil, ErrSlotConflict
		}
	}

	now := time.Now().UTC()
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	b.Status = BookingBooked
	b.CreatedAt = now
	b.UpdatedAt = now
	if b.RefundStatus == "" {
		b.RefundStatus = RefundNone
	}
	r.bookings[b.ID] = b
	return &b, nil
}

func (r *MemoryRepository) GetBooking(ctx context.Context, id uuid.UUID) (*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bookings[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	return &b, nil
}

func (r *MemoryRepository) GetBookingByReference(ctx context.Context, ref string) (*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, b := range r.bookings {
		if b.Reference == ref {
			return &b, nil
		}
	}
	return nil, ErrBookingNotFound
}

func (r *MemoryRepository) ListBookings(ctx context.Context, date time.Time, includeCanceled bool) ([]Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	date = timeutil.DateOf(date)
	var out []Booking
	for _, b := range r.bookings {
		if !b.Date.Equal(date) {
			continue
		}
		if !includeCanceled && !b.Active() {
			continue
		}
		out = append(out, b)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Time != out[j].Time {
			return out[i].Time < out[j].Time
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *MemoryRepository) CancelBooking(ctx context.Context, id uuid.UUID, reason string, at time.Time) (*Booking, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bookings[id]
	if !ok {
		return nil, false, ErrBookingNotFound
	}
	if !b.Active() {
		return &b, false, nil
	}

	b.Status = BookingCanceled
	b.CancelReason = reason
	b.CanceledAt = &at
	b.UpdatedAt = at
	r.bookings[id] = b
	return &b, true, nil
}

func (r *MemoryRepository) SetRefundStatus(ctx context.Context, id uuid.UUID, status RefundStatus) (*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bookings[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	b.RefundStatus = status
	b.UpdatedAt = time.Now().UTC()
	r.bookings[id] = b
	return &b, nil
}

func (r *MemoryRepository) windowOverlapsLocked(w Window, skip uuid.UUID) bool {
	for id, existing := range r.windows {
		if id == skip {
			continue
		}
		if existing.Date.Equal(w.Date) && existing.Type == w.Type &&
			timeutil.Overlaps(existing.Start, existing.End, w.Start, w.End) {
			return true
		}
	}
	return false
}

// dependsOn reports whether an active booking starts inside the window's range for the same type.
func dependsOn(b Booking, w Window) bool {
	return b.Active() && b.Date.Equal(w.Date) && b.Type == w.Type &&
		b.Time >= w.Start && b.Time < w.End
}

func sortWindows(ws []Window) {
	sort.SliceStable(ws, func(i, j int) bool {
		if ws[i].Start != ws[j].Start {
			return ws[i].Start < ws[j].Start
		}
		return ws[i].Seq < ws[j].Seq
	})
}
