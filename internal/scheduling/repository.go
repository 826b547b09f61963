package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository contains all storage interactions needed by the service.
// Implementations enforce the overlap invariants atomically; the service
// checks them first only to produce friendlier results.
type Repository interface {
	// Windows
	ListWindows(ctx context.Context, date time.Time) ([]Window, error)
	GetWindow(ctx context.Context, id uuid.UUID) (*Window, error)
	InsertWindows(ctx context.Context, windows []Window) ([]Window, error)
	UpdateWindow(ctx context.Context, id uuid.UUID, start, end int) (*Window, error)
	DeleteWindowIfUnbooked(ctx context.Context, id uuid.UUID) error

	// Bookings
	InsertBooking(ctx context.Context, b Booking) (*Booking, error)
	GetBooking(ctx context.Context, id uuid.UUID) (*Booking, error)
	GetBookingByReference(ctx context.Context, ref string) (*Booking, error)
	ListBookings(ctx context.Context, date time.Time, includeCanceled bool) ([]Booking, error)
	CancelBooking(ctx context.Context, id uuid.UUID, reason string, at time.Time) (*Booking, bool, error)
	SetRefundStatus(ctx context.Context, id uuid.UUID, status RefundStatus) (*Booking, error)
}
