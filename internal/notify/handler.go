package notify

import (
	"context"
	"errors"
	"time"

	"github.com/hackgods/tarot-booking/pkg/logging"
)

// Handler emits an outbox entry to a downstream transport.
type Handler interface {
	Handle(ctx context.Context, entry Entry) error
}

type HandlerFunc func(ctx context.Context, entry Entry) error

func (f HandlerFunc) Handle(ctx context.Context, entry Entry) error {
	return f(ctx, entry)
}

// MultiHandler runs every handler and fails if any of them does. A retried
// entry reaches all handlers again, so handlers must tolerate duplicates.
type MultiHandler []Handler

func (m MultiHandler) Handle(ctx context.Context, entry Entry) error {
	var errs []error
	for _, h := range m {
		if h == nil {
			continue
		}
		if err := h.Handle(ctx, entry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type HandlerConfig struct {
	SendGrid     SendGridConfig
	AdminEmail   string
	Location     *time.Location
	KafkaBrokers []string
}

// NewBookingHandler wires the email handler and, when brokers are configured,
// the Kafka publisher. The returned func closes the publisher.
func NewBookingHandler(cfg HandlerConfig, logger *logging.Logger) (MultiHandler, func() error) {
	if logger == nil {
		logger = logging.Default()
	}
	var sender EmailSender = NewStubEmailSender(logger)
	if sg := NewSendGridSender(cfg.SendGrid, logger); sg != nil {
		sender = sg
	} else {
		logger.Warn("SENDGRID_API_KEY not set, emails will only be logged")
	}

	handlers := MultiHandler{NewEmailHandler(sender, cfg.AdminEmail, cfg.Location, logger)}
	closeFn := func() error { return nil }
	if len(cfg.KafkaBrokers) > 0 {
		publisher := NewKafkaPublisher(cfg.KafkaBrokers)
		handlers = append(handlers, publisher)
		closeFn = publisher.Close
	}
	return handlers, closeFn
}
