package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hackgods/tarot-booking/internal/scheduling"
	"github.com/hackgods/tarot-booking/pkg/logging"
)

// EmailHandler mails the client and the admin about booking events, with a
// calendar invite attached.
type EmailHandler struct {
	sender     EmailSender
	adminEmail string
	loc        *time.Location
	logger     *logging.Logger
	now        func() time.Time
}

func NewEmailHandler(sender EmailSender, adminEmail string, loc *time.Location, logger *logging.Logger) *EmailHandler {
	if logger == nil {
		logger = logging.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &EmailHandler{
		sender:     sender,
		adminEmail: adminEmail,
		loc:        loc,
		logger:     logger,
		now:        time.Now,
	}
}

func (h *EmailHandler) Handle(ctx context.Context, entry Entry) error {
	switch entry.EventType {
	case scheduling.EventBookingConfirmed, scheduling.EventBookingCanceled:
	default:
		h.logger.Debug("email handler skipping event", "type", entry.EventType)
		return nil
	}

	var ev BookingEvent
	if err := json.Unmarshal(entry.Payload, &ev); err != nil {
		return fmt.Errorf("decode booking event: %w", err)
	}
	invite, err := BuildInvite(ev, h.adminEmail, h.loc, h.now())
	if err != nil {
		return err
	}
	attachment := Attachment{Filename: "invite.ics", ContentType: "text/calendar; charset=utf-8", Content: invite}

	var errs []error
	if ev.Client.Email != "" {
		msg := h.clientMessage(entry.EventType, ev)
		msg.Attachments = []Attachment{attachment}
		if err := h.sender.Send(ctx, msg); err != nil {
			errs = append(errs, fmt.Errorf("send client email: %w", err))
		}
	}
	if h.adminEmail != "" {
		msg := h.adminMessage(entry.EventType, ev)
		msg.Attachments = []Attachment{attachment}
		if err := h.sender.Send(ctx, msg); err != nil {
			errs = append(errs, fmt.Errorf("send admin email: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (h *EmailHandler) when(ev BookingEvent) string {
	start, _, err := ev.Interval(h.loc)
	if err != nil {
		return ev.Date + " " + ev.Time
	}
	return start.Format("Monday, 2 January 2006 at 15:04 MST")
}

func (h *EmailHandler) clientMessage(eventType string, ev BookingEvent) EmailMessage {
	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s,\n\n", ev.Client.Name)
	if eventType == scheduling.EventBookingCanceled {
		fmt.Fprintf(&b, "Your tarot reading on %s has been canceled.\n", h.when(ev))
		if ev.AmountCents > 0 {
			fmt.Fprintf(&b, "The payment of %s will be refunded to your card.\n", formatAmount(ev.AmountCents, ev.Currency))
		}
	} else {
		fmt.Fprintf(&b, "Your %d minute tarot reading is confirmed for %s.\n", ev.Duration, h.when(ev))
		if ev.AmountCents > 0 {
			fmt.Fprintf(&b, "Amount paid: %s\n", formatAmount(ev.AmountCents, ev.Currency))
		}
	}
	fmt.Fprintf(&b, "\nBooking reference: %s\n", ev.Reference)

	subject := "Booking Confirmation - " + ev.Reference
	if eventType == scheduling.EventBookingCanceled {
		subject = "Booking Canceled - " + ev.Reference
	}
	return EmailMessage{To: ev.Client.Email, ToName: ev.Client.Name, Subject: subject, Body: b.String()}
}

func (h *EmailHandler) adminMessage(eventType string, ev BookingEvent) EmailMessage {
	prefix := "NEW BOOKING"
	if eventType == scheduling.EventBookingCanceled {
		prefix = "CANCELED"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Reference: %s\n", ev.Reference)
	fmt.Fprintf(&b, "When: %s (%d min, %s)\n", h.when(ev), ev.Duration, ev.Type)
	fmt.Fprintf(&b, "Client: %s <%s> %s\n", ev.Client.Name, ev.Client.Email, ev.Client.Phone)
	if ev.ServiceCode != "" {
		fmt.Fprintf(&b, "Service: %s\n", ev.ServiceCode)
	}
	if ev.CancelReason != "" {
		fmt.Fprintf(&b, "Reason: %s\n", ev.CancelReason)
	}
	return EmailMessage{
		To:      h.adminEmail,
		Subject: fmt.Sprintf("%s: %s", prefix, ev.Client.Name),
		Body:    b.String(),
	}
}

func formatAmount(cents int64, currency string) string {
	return fmt.Sprintf("%d.%02d %s", cents/100, cents%100, currency)
}
