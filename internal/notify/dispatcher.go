package notify

import (
	"context"

	"go.uber.org/zap"
)

// Dispatcher drains the outbox. At-least-once: a crash between Send and
// MarkSent re-delivers on the next sweep, which is the accepted trade-off
// for never losing a notification.
type Dispatcher struct {
	queue  Queue
	mailer Mailer
	log    *zap.Logger

	// BatchSize bounds one sweep so a large campaign cannot starve the
	// scheduler tick.
	BatchSize int
}

func NewDispatcher(queue Queue, mailer Mailer, log *zap.Logger) *Dispatcher {
	return &Dispatcher{queue: queue, mailer: mailer, log: log, BatchSize: 50}
}

// Dispatch sends every pending email, oldest first, and reports how many
// went out. Delivery failures mark the row failed and are logged; they never
// abort the sweep.
func (d *Dispatcher) Dispatch(ctx context.Context) (int, error) {
	pending, err := d.queue.ListPending(ctx, d.BatchSize)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, e := range pending {
		if ctx.Err() != nil {
			return sent, ctx.Err()
		}
		if err := d.mailer.Send(ctx, e.Recipient, e.Subject, e.Body); err != nil {
			d.log.Warn("mail delivery failed",
				zap.String("email_id", e.ID),
				zap.String("recipient", e.Recipient),
				zap.Error(err))
			if err := d.queue.MarkFailed(ctx, e.ID, err.Error()); err != nil {
				d.log.Error("mark failed", zap.String("email_id", e.ID), zap.Error(err))
			}
			continue
		}
		if err := d.queue.MarkSent(ctx, e.ID); err != nil {
			d.log.Error("mark sent", zap.String("email_id", e.ID), zap.Error(err))
			continue
		}
		sent++
	}
	return sent, nil
}
