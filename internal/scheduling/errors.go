package scheduling

import (
	"errors"

	"github.com/hackgods/tarot-booking/internal/timeutil"
)

var (
	ErrInvalidFormat       = timeutil.ErrInvalidFormat
	ErrDuplicateOverlap    = errors.New("window overlaps an existing window of the same type")
	ErrSlotConflict        = errors.New("slot already booked, pick another")
	ErrOutsideAvailability = errors.New("requested time is not covered by availability")
	ErrHasActiveBookings   = errors.New("window has active bookings")
	ErrWindowNotFound      = errors.New("window not found")
	ErrBookingNotFound     = errors.New("booking not found")
	ErrProposalNotFound    = errors.New("proposal not found")
	ErrInvalidTransition   = errors.New("invalid proposal transition")
	ErrPartitionBusy       = errors.New("availability for this date is being changed, please retry")
)

// IsNotFound groups the not-found sentinels for callers that do not care which record is missing.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrWindowNotFound) ||
		errors.Is(err, ErrBookingNotFound) ||
		errors.Is(err, ErrProposalNotFound)
}
