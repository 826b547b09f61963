package notify

import (
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"
)

const calendarProductID = "-//tarot-booking//sessions//EN"

// BuildInvite renders the booking as a calendar object. Canceled bookings
// produce a METHOD:CANCEL with the same UID so clients drop the event.
func BuildInvite(ev BookingEvent, organizer string, loc *time.Location, stamp time.Time) ([]byte, error) {
	start, end, err := ev.Interval(loc)
	if err != nil {
		return nil, fmt.Errorf("resolve session time: %w", err)
	}

	cal := ics.NewCalendar()
	cal.SetProductId(calendarProductID)
	canceled := ev.Status == "canceled"
	if canceled {
		cal.SetMethod(ics.MethodCancel)
	} else {
		cal.SetMethod(ics.MethodRequest)
	}

	event := cal.AddEvent(ev.BookingID + "@tarot-booking")
	event.SetDtStampTime(stamp.UTC())
	event.SetStartAt(start.UTC())
	event.SetEndAt(end.UTC())
	event.SetSummary(fmt.Sprintf("Tarot reading (%d min) %s", ev.Duration, ev.Reference))
	event.SetDescription(fmt.Sprintf("Booking reference %s. %s session.", ev.Reference, ev.Type))
	if organizer != "" {
		event.SetOrganizer("mailto:" + organizer)
	}
	if ev.Client.Email != "" {
		event.AddAttendee(ev.Client.Email, ics.WithRSVP(false))
	}
	if canceled {
		event.SetStatus(ics.ObjectStatusCancelled)
	} else {
		event.SetStatus(ics.ObjectStatusConfirmed)
	}
	return []byte(cal.Serialize()), nil
}
