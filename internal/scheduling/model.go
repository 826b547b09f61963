package scheduling

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/tarot-booking/internal/timeutil"
)

type WindowType string

const (
	WindowRegular   WindowType = "regular"
	WindowEmergency WindowType = "emergency"
)

// ParseWindowType accepts "regular" or "emergency"; empty input yields "" (all types).
func ParseWindowType(s string) (WindowType, error) {
	switch WindowType(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return "", nil
	case WindowRegular:
		return WindowRegular, nil
	case WindowEmergency:
		return WindowEmergency, nil
	default:
		return "", fmt.Errorf("%w: unknown window type %q", ErrInvalidFormat, s)
	}
}

type SlotStatus string

const (
	SlotOpen     SlotStatus = "open"
	SlotBooked   SlotStatus = "booked"
	SlotCanceled SlotStatus = "canceled"
)

type BookingStatus string

const (
	BookingBooked   BookingStatus = "booked"
	BookingCanceled BookingStatus = "canceled"
)

// Source tells a paid client booking apart from time the admin blocked off by hand.
type Source string

const (
	SourceClientBooking Source = "client_booking"
	SourceManualBlock   Source = "manual_block"
)

type RefundStatus string

const (
	RefundNone     RefundStatus = "none"
	RefundPending  RefundStatus = "pending"
	RefundRefunded RefundStatus = "refunded"
	RefundFailed   RefundStatus = "failed"
)

// Window is an admin-declared availability range on one calendar date.
// Start and End are minutes since midnight, End exclusive.
type Window struct {
	ID        uuid.UUID
	Date      time.Time
	Start     int
	End       int
	Type      WindowType
	Seq       int64
	CreatedAt time.Time
}

func (w Window) Range() string {
	return timeutil.FormatRange(w.Start, w.End)
}

// SlotKey identifies a generated slot before anything is persisted for it.
type SlotKey struct {
	Date     time.Time
	Time     int
	Duration int
	Type     WindowType
}

func (k SlotKey) String() string {
	return fmt.Sprintf("%s|%s|%d|%s", timeutil.FormatDate(k.Date), timeutil.FormatTime(k.Time), k.Duration, k.Type)
}

type Slot struct {
	Date      time.Time
	Time      int
	Duration  int
	Type      WindowType
	Status    SlotStatus
	IsBooked  bool
	BookedBy  string
	BookingID *uuid.UUID
	Source    Source
	NextDay   bool
}

func (s Slot) Key() SlotKey {
	return SlotKey{Date: s.Date, Time: s.Time, Duration: s.Duration, Type: s.Type}
}

func (s Slot) End() int {
	return s.Time + s.Duration
}

// Client holds the contact fields a booking carries. The ledger does not interpret them.
type Client struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

type Booking struct {
	ID           uuid.UUID
	Reference    string
	Date         time.Time
	Time         int
	Duration     int
	Type         WindowType
	Source       Source
	Label        string
	ServiceCode  string
	Client       Client
	Details      json.RawMessage
	Status       BookingStatus
	PaymentID    string
	AmountCents  int64
	Currency     string
	RefundStatus RefundStatus
	CancelReason string
	CanceledAt   *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (b Booking) End() int {
	return b.Time + b.Duration
}

func (b Booking) Active() bool {
	return b.Status == BookingBooked
}

// BookedBy is the display label for the slot this booking occupies.
func (b Booking) BookedBy() string {
	if b.Label != "" {
		return b.Label
	}
	if b.Source == SourceManualBlock {
		return "busy"
	}
	return b.Client.Name
}

func (b Booking) SlotKey() SlotKey {
	return SlotKey{Date: b.Date, Time: b.Time, Duration: b.Duration, Type: b.Type}
}

// NewReference builds the human-facing booking code, e.g. TRT-20250610-3F9A0C21.
func NewReference(date time.Time, id uuid.UUID) string {
	hex := strings.ReplaceAll(id.String(), "-", "")
	return fmt.Sprintf("TRT-%s-%s", date.Format("20060102"), strings.ToUpper(hex[:8]))
}
