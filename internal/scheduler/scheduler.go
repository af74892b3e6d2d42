// Package scheduler drives the time-based transitions that no request
// triggers: opening administrations whose window has arrived, closing
// ones whose window has passed, and draining the outbound email queue.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/perfcycle/perfcycle/internal/campaign"
	"github.com/perfcycle/perfcycle/internal/notify"
)

type Runner struct {
	Admins     *campaign.Administrations
	Dispatcher *notify.Dispatcher
	Log        *zap.Logger

	AdvanceEvery  time.Duration
	DispatchEvery time.Duration
}

// Run blocks until ctx is cancelled. Both loops fire once immediately
// so a restart does not wait a full interval to catch up.
func (r *Runner) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		r.loop(ctx, r.AdvanceEvery, r.advance)
	}()
	go func() {
		defer wg.Done()
		r.loop(ctx, r.DispatchEvery, r.dispatch)
	}()
	wg.Wait()
}

func (r *Runner) loop(ctx context.Context, every time.Duration, fn func(context.Context)) {
	fn(ctx)
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			fn(ctx)
		}
	}
}

func (r *Runner) advance(ctx context.Context) {
	if err := r.Admins.Advance(ctx); err != nil {
		r.Log.Warn("advance administrations", zap.Error(err))
	}
}

func (r *Runner) dispatch(ctx context.Context) {
	n, err := r.Dispatcher.Dispatch(ctx)
	if err != nil {
		r.Log.Warn("dispatch notifications", zap.Error(err))
		return
	}
	if n > 0 {
		r.Log.Info("dispatched notifications", zap.Int("count", n))
	}
}
