package middleware

import (
	"context"

	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/modules/funnel"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/observability"
)

// Handler processes one update.
type Handler func(ctx context.Context, ev *funnel.Event) error

// Middleware wraps a Handler.
type Middleware func(next Handler) Handler

// Chain composes mws around h. The first middleware is the outermost.
func Chain(h Handler, mws ...Middleware) Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] != nil {
			h = mws[i](h)
		}
	}
	return h
}

// FailureReplier answers the user when a layer aborts the update.
type FailureReplier interface {
	ReplyFailure(ctx context.Context, ev *funnel.Event, err error)
}

// Gate configures the channel subscription check.
type Gate struct {
	Members     MembershipChecker
	ChannelID   string
	ChannelLink string
}

// New builds the update pipeline: trace, metrics, log, subscription gate, state
// loading, message counting, CRM mirroring and finally the controller.
func New(f *funnel.Funnel, gate Gate, m *observability.Metrics) Handler {
	deps := f.Deps()
	log := deps.Log.With("component", "MiddlewareChain")
	mws := []Middleware{
		Trace(),
		Metrics(m),
		Log(log),
	}
	if gate.Members != nil {
		mws = append(mws, Subscription(gate.Members, deps.Transport, f.Controller, gate.ChannelID, gate.ChannelLink, log))
	}
	mws = append(mws,
		LoadState(deps.States, deps.CRM, deps.Settings.Pipelines.Main, f.Controller, log),
		CountMessages(deps.States, f.Engagement, f.Controller, log),
		MirrorToCRM(deps.CRM, log),
	)
	return Chain(f.Controller.Handle, mws...)
}
