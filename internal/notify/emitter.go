package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/hackgods/tarot-booking/internal/scheduling"
)

// OutboxEmitter records booking events in the outbox for later delivery.
type OutboxEmitter struct {
	outbox Outbox
	now    func() time.Time
}

func NewOutboxEmitter(outbox Outbox) *OutboxEmitter {
	return &OutboxEmitter{outbox: outbox, now: time.Now}
}

func (e *OutboxEmitter) Emit(ctx context.Context, eventType string, b scheduling.Booking) error {
	if _, err := e.outbox.Insert(ctx, eventType, b.ID.String(), NewBookingEvent(b, e.now())); err != nil {
		return fmt.Errorf("emit %s: %w", eventType, err)
	}
	return nil
}
