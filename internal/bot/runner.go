package bot

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/bot/middleware"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/clients/telegram"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/modules/funnel"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/platform/logger"
)

// UpdateSource is the long-polling side of the Bot API.
type UpdateSource interface {
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]telegram.Update, error)
}

// Runner feeds updates through the middleware chain on a bounded worker pool.
type Runner struct {
	handle  middleware.Handler
	log     *logger.Logger
	timeout time.Duration
	group   *errgroup.Group
}

func NewRunner(handle middleware.Handler, workers int, timeout time.Duration, log *logger.Logger) *Runner {
	if workers <= 0 {
		workers = 1
	}
	g := new(errgroup.Group)
	g.SetLimit(workers)
	return &Runner{handle: handle, log: log.With("component", "UpdateRunner"), timeout: timeout, group: g}
}

// Dispatch queues u for processing and blocks while every worker is busy. Processing
// is detached from ctx cancellation so a closed webhook request does not abort it.
func (r *Runner) Dispatch(ctx context.Context, u telegram.Update) {
	ev, ok := funnel.NewEvent(u)
	if !ok {
		r.log.Debug("Ignoring update", "update_id", u.UpdateID)
		return
	}
	ctx = context.WithoutCancel(ctx)
	r.group.Go(func() error {
		r.process(ctx, ev)
		return nil
	})
}

func (r *Runner) process(ctx context.Context, ev *funnel.Event) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("Update handler panicked",
				"update_id", ev.UpdateID,
				"chat_id", ev.ChatID,
				"panic", fmt.Sprint(rec),
				"stack", string(debug.Stack()),
			)
		}
	}()
	// The chain logs and counts failures.
	_ = r.handle(ctx, ev)
}

// Wait blocks until every dispatched update is processed.
func (r *Runner) Wait() {
	_ = r.group.Wait()
}

// Poll long-polls src until ctx is cancelled, dispatching updates in arrival order.
func (r *Runner) Poll(ctx context.Context, src UpdateSource, pollTimeout time.Duration) error {
	var offset int64
	r.log.Info("Long polling started", "poll_timeout", pollTimeout.String())
	for {
		if ctx.Err() != nil {
			return nil
		}
		updates, err := src.GetUpdates(ctx, offset, pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.log.Warn("getUpdates failed", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}
		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			r.Dispatch(ctx, u)
		}
	}
}
