package funnel

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/clients/finance"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/clients/telegram"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/domain/dialog"
	apperr "github.com/mmdev2003/real-estate-ai-tg-bot/internal/pkg/errors"
)

// Calculate runs one returns-calculator variant and sends the spreadsheet and the PDF report.
func (d *Dispatcher) Calculate(ctx context.Context, st *dialog.UserState, v finance.Variant, params finance.Params) error {
	if !v.Valid() {
		return apperr.Wrap(apperr.ErrInvariant, "calculate", fmt.Errorf("unknown variant %q", v))
	}

	var (
		result finance.Result
		xlsx   []byte
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		result, err = d.deps.Calculator.Calculate(gctx, v, params)
		return err
	})
	g.Go(func() error {
		var err error
		xlsx, err = d.deps.Calculator.Spreadsheet(gctx, v, params)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}
	pdf, err := d.deps.Reports.PDF(ctx, v, result)
	if err != nil {
		return err
	}

	if err := d.deps.Transport.SendDocument(ctx, st.ChatID, telegram.File{Name: "wewall_" + string(v) + ".xlsx", Data: xlsx}); err != nil {
		return err
	}
	if err := d.deps.Transport.SendDocument(ctx, st.ChatID, telegram.File{Name: "wewall_" + string(v) + ".pdf", Data: pdf}); err != nil {
		return err
	}

	snap, err := d.deps.States.Increment(dbc(ctx), st.ID, dialog.CounterCalculator)
	if err != nil {
		return err
	}
	st.CalculatorInvocations = snap.Value
	d.observe(ctx, st.ChatID, snap)
	d.log.Info("Calculation sent", "chat_id", st.ChatID, "variant", v, "calculator_invocations", snap.Value)

	d.importMessage(ctx, st.ChatID, markerCalcSubmitted, true)
	return nil
}
