package notify

import (
	"context"
	"time"

	"github.com/hackgods/tarot-booking/internal/observability/metrics"
	"github.com/hackgods/tarot-booking/pkg/logging"
)

// Deliverer polls the outbox and invokes the handler.
type Deliverer struct {
	store     Outbox
	handler   Handler
	logger    *logging.Logger
	metrics   *metrics.DeliveryMetrics
	batchSize int32
	interval  time.Duration
}

func NewDeliverer(store Outbox, handler Handler, logger *logging.Logger) *Deliverer {
	if logger == nil {
		logger = logging.Default()
	}
	return &Deliverer{
		store:     store,
		handler:   handler,
		logger:    logger,
		batchSize: 25,
		interval:  2 * time.Second,
	}
}

func (d *Deliverer) WithBatchSize(size int32) *Deliverer {
	if size > 0 {
		d.batchSize = size
	}
	return d
}

func (d *Deliverer) WithInterval(interval time.Duration) *Deliverer {
	if interval > 0 {
		d.interval = interval
	}
	return d
}

func (d *Deliverer) WithMetrics(m *metrics.DeliveryMetrics) *Deliverer {
	d.metrics = m
	return d
}

func (d *Deliverer) Start(ctx context.Context) {
	if d.store == nil || d.handler == nil {
		return
	}
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := d.RunOnce(ctx); err != nil {
				d.logger.Error("outbox fetch failed", "error", err)
			}
		}
	}
}

// RunOnce drains one batch and returns how many entries were delivered.
func (d *Deliverer) RunOnce(ctx context.Context) (int, error) {
	entries, err := d.store.FetchPending(ctx, d.batchSize)
	if err != nil {
		return 0, err
	}
	delivered := 0
	for _, entry := range entries {
		if err := d.handler.Handle(ctx, entry); err != nil {
			d.metrics.ObserveOutbox(entry.EventType, "error")
			d.logger.Error("outbox delivery failed", "error", err, "event_id", entry.ID, "type", entry.EventType, "attempts", entry.Attempts+1)
			if markErr := d.store.MarkFailed(ctx, entry.ID, err.Error()); markErr != nil {
				d.logger.Error("failed to record outbox failure", "error", markErr, "event_id", entry.ID)
			}
			continue
		}
		ok, err := d.store.MarkDelivered(ctx, entry.ID)
		if err != nil {
			d.logger.Error("failed to mark outbox delivered", "error", err, "event_id", entry.ID)
			continue
		}
		if ok {
			delivered++
			d.metrics.ObserveOutbox(entry.EventType, "delivered")
			d.logger.Debug("outbox delivered", "event_id", entry.ID, "type", entry.EventType)
		}
	}
	return delivered, nil
}
