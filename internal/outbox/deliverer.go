package outbox

import (
	"context"
	"time"

	"github.com/slotleaf/booking-platform/internal/notify"
	"github.com/slotleaf/booking-platform/internal/observability/metrics"
	"github.com/slotleaf/booking-platform/pkg/logging"
)

// Deliverer polls the outbox and pushes unsent messages through the sender.
// A failed send leaves the row unsent so the next drain retries it.
type Deliverer struct {
	store     *Store
	sender    notify.EmailSender
	logger    *logging.Logger
	metrics   *metrics.BookingMetrics
	batchSize int32
	interval  time.Duration
}

// NewDeliverer constructs a deliverer with default batch size and interval.
func NewDeliverer(store *Store, sender notify.EmailSender, logger *logging.Logger) *Deliverer {
	if logger == nil {
		logger = logging.Default()
	}
	return &Deliverer{
		store:     store,
		sender:    sender,
		logger:    logger,
		batchSize: 25,
		interval:  5 * time.Second,
	}
}

// WithBatchSize overrides the drain batch size.
func (d *Deliverer) WithBatchSize(size int32) *Deliverer {
	if size > 0 {
		d.batchSize = size
	}
	return d
}

// WithInterval overrides the poll interval.
func (d *Deliverer) WithInterval(interval time.Duration) *Deliverer {
	if interval > 0 {
		d.interval = interval
	}
	return d
}

// WithMetrics attaches delivery counters.
func (d *Deliverer) WithMetrics(m *metrics.BookingMetrics) *Deliverer {
	d.metrics = m
	return d
}

// Start blocks draining the outbox until the context is canceled.
func (d *Deliverer) Start(ctx context.Context) {
	if d.store == nil || d.sender == nil {
		return
	}
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Drain(ctx)
		}
	}
}

// Drain performs one delivery pass.
func (d *Deliverer) Drain(ctx context.Context) {
	msgs, err := d.store.FetchUnsent(ctx, d.batchSize)
	if err != nil {
		d.logger.Error("outbox fetch failed", "error", err)
		return
	}
	for _, msg := range msgs {
		if err := d.sender.Send(ctx, notify.Message{
			To:      msg.Recipient,
			ToName:  msg.RecipientName,
			Subject: msg.Subject,
			Body:    msg.Body,
		}); err != nil {
			d.logger.Error("outbox delivery failed", "error", err, "message_id", msg.ID, "recipient", msg.Recipient)
			d.metrics.ObserveOutboxDelivery("failed")
			continue
		}
		if ok, err := d.store.MarkSent(ctx, msg.ID); err != nil {
			d.logger.Error("failed to mark outbox message sent", "error", err, "message_id", msg.ID)
		} else if ok {
			d.metrics.ObserveOutboxDelivery("sent")
			d.logger.Debug("outbox message delivered", "message_id", msg.ID)
		}
	}
}
