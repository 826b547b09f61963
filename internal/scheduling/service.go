package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/hackgods/tarot-booking/internal/observability/metrics"
	redisclient "github.com/hackgods/tarot-booking/internal/redis"
	"github.com/hackgods/tarot-booking/pkg/logging"
)

const (
	EventBookingConfirmed = "booking.confirmed.v1"
	EventBookingCanceled  = "booking.canceled.v1"
)

var tracer = otel.Tracer("tarot.internal.scheduling")

// Emitter hands finalized bookings to the notification side. Delivery is its concern.
type Emitter interface {
	Emit(ctx context.Context, eventType string, b Booking) error
}

type Service struct {
	repo      Repository
	proposals ProposalStore
	locker    Locker
	emitter   Emitter
	logger    *logging.Logger
	metrics   *metrics.SchedulingMetrics
	now       func() time.Time
}

func NewService(repo Repository, proposals ProposalStore, locker Locker) *Service {
	return &Service{
		repo:      repo,
		proposals: proposals,
		locker:    locker,
		logger:    logging.Default(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) WithEmitter(e Emitter) *Service {
	s.emitter = e
	return s
}

func (s *Service) WithLogger(l *logging.Logger) *Service {
	if l != nil {
		s.logger = l
	}
	return s
}

func (s *Service) WithMetrics(m *metrics.SchedulingMetrics) *Service {
	s.metrics = m
	return s
}

// withPartition runs fn while holding the (date, type) partition lock.
func (s *Service) withPartition(ctx context.Context, date time.Time, t WindowType, fn func(ctx context.Context) error) error {
	err := s.locker.WithLock(ctx, partitionKey(date, t), fn)
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		return ErrPartitionBusy
	}
	return err
}

func (s *Service) emit(ctx context.Context, eventType string, b Booking) {
	if s.emitter == nil || b.Source != SourceClientBooking {
		return
	}
	if err := s.emitter.Emit(ctx, eventType, b); err != nil {
		s.logger.Error("failed to emit booking event", "error", err, "event_type", eventType, "booking_id", b.ID)
	}
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
	}
	span.End()
}

func requireType(t WindowType) error {
	if t != WindowRegular && t != WindowEmergency {
		return fmt.Errorf("%w: window type must be regular or emergency", ErrInvalidFormat)
	}
	return nil
}
