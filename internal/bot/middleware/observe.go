package middleware

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/modules/funnel"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/observability"
	apperr "github.com/mmdev2003/real-estate-ai-tg-bot/internal/pkg/errors"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/platform/ctxutil"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/platform/logger"
)

// Trace opens a span per update and stores trace and update identifiers on the context.
// An inbound span (webhook request) becomes the parent.
func Trace() Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, ev *funnel.Event) error {
			ctx, span := observability.Tracer().Start(ctx, "telegram.update",
				trace.WithSpanKind(trace.SpanKindConsumer),
				trace.WithAttributes(
					attribute.Int64("telegram.update_id", ev.UpdateID),
					attribute.Int64("telegram.chat_id", ev.ChatID),
					attribute.String("telegram.update_kind", string(ev.Kind)),
				),
			)
			defer span.End()

			td := ctxutil.GetTraceData(ctx)
			if td == nil {
				td = &ctxutil.TraceData{RequestID: uuid.New().String()}
			}
			if sc := span.SpanContext(); sc.HasTraceID() {
				td.TraceID = sc.TraceID().String()
			} else if td.TraceID == "" {
				td.TraceID = uuid.New().String()
			}
			ctx = ctxutil.WithTraceData(ctx, td)
			ctx = ctxutil.WithUpdateData(ctx, &ctxutil.UpdateData{
				UpdateID: ev.UpdateID,
				ChatID:   ev.ChatID,
				Kind:     string(ev.Kind),
			})

			err := next(ctx, ev)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, apperr.Classify(err).String())
			}
			return err
		}
	}
}

// Metrics counts updates by kind and outcome.
func Metrics(m *observability.Metrics) Middleware {
	if m == nil {
		return nil
	}
	return func(next Handler) Handler {
		return func(ctx context.Context, ev *funnel.Event) error {
			done := m.TrackUpdate(string(ev.Kind))
			err := next(ctx, ev)
			done(Outcome(err))
			return err
		}
	}
}

// Outcome is the metric label for an update result.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return apperr.Classify(err).String()
}

// Log writes one line per update. Bad input and missing records are expected and
// logged at info; transient failures at warn; the rest at error.
func Log(log *logger.Logger) Middleware {
	if log == nil {
		return nil
	}
	return func(next Handler) Handler {
		return func(ctx context.Context, ev *funnel.Event) error {
			start := time.Now()
			err := next(ctx, ev)

			fields := append(ctxutil.LogFields(ctx),
				"update_id", ev.UpdateID,
				"duration_ms", time.Since(start).Milliseconds(),
				"outcome", Outcome(err),
			)
			if ev.State != nil {
				fields = append(fields, "persona", ev.State.Persona)
			}
			if err == nil {
				log.Debug("Telegram update", fields...)
				return nil
			}
			fields = append(fields, "error", err)
			switch apperr.Classify(err) {
			case apperr.KindBadInput, apperr.KindMalformed:
				log.Info("Telegram update", fields...)
			case apperr.KindTransient, apperr.KindNotFound:
				log.Warn("Telegram update", fields...)
			default:
				log.Error("Telegram update", fields...)
			}
			return err
		}
	}
}
