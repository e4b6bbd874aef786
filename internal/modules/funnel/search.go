package funnel

import (
	"context"
	"fmt"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/clients/finance"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/clients/telegram"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/domain/dialog"
	apperr "github.com/mmdev2003/real-estate-ai-tg-bot/internal/pkg/errors"
)

// StartSearch runs a listing lookup and shows the first match.
func (d *Dispatcher) StartSearch(ctx context.Context, st *dialog.UserState, params dialog.SearchParams) error {
	snap, err := d.deps.States.Increment(dbc(ctx), st.ID, dialog.CounterSearch)
	if err != nil {
		return err
	}
	st.SearchInvocations = snap.Value
	d.observe(ctx, st.ChatID, snap)

	var offers []dialog.Offer
	if params.Motivation == dialog.MotivationRent {
		offers, err = d.deps.Listings.FindRent(ctx, params)
	} else {
		offers, err = d.deps.Listings.FindSale(ctx, params)
	}
	if err != nil {
		return err
	}
	d.log.Info("Listing search finished", "chat_id", st.ChatID, "motivation", params.Motivation, "type", params.Type, "offers", len(offers))

	if len(offers) == 0 {
		if err := d.deps.Transport.SendMessage(ctx, st.ChatID, textNoOffers, nil); err != nil {
			return err
		}
		return d.speak(ctx, st.ChatID, dialog.PersonaListingSearch, promptCompromise, nil)
	}

	sess, err := d.deps.States.ReplaceSearchSession(dbc(ctx), st.ID, params, offers)
	if err != nil {
		return err
	}
	return d.renderOffer(ctx, st, sess)
}

// Advance moves the search cursor to the next offer, or to the first offer of the next
// estate, and shows it. Presses that arrive after the user left the search are ignored.
func (d *Dispatcher) Advance(ctx context.Context, st *dialog.UserState, estate bool) error {
	if d.stale(st) {
		d.log.Debug("Ignoring stale paging", "chat_id", st.ChatID, "persona", st.Persona)
		return nil
	}
	sess, err := d.deps.States.GetSearchSession(dbc(ctx), st.ID)
	if err != nil {
		return err
	}
	if sess == nil {
		return d.deps.Transport.SendMessage(ctx, st.ChatID, textNoSearch, nil)
	}

	var (
		to dialog.Cursor
		ok bool
	)
	if estate {
		to, ok = sess.NextEstate()
	} else {
		to, ok = sess.NextOffer()
	}
	if !ok {
		text := textNoMoreOffers
		if estate {
			text = textNoMoreEstates
		}
		return d.deps.Transport.SendMessage(ctx, st.ChatID, text, nil)
	}

	moved, err := d.deps.States.AdvanceSearchCursor(dbc(ctx), sess.ID, sess.Cursor(), to)
	if err != nil {
		return err
	}
	if !moved {
		d.log.Debug("Cursor moved concurrently", "chat_id", st.ChatID, "from", sess.CurrentOfferIndex)
		return nil
	}
	sess.CurrentOfferIndex, sess.CurrentEstateIndex = to.Offer, to.Estate
	return d.renderOffer(ctx, st, sess)
}

// stale reports whether a search button no longer applies to the chat.
func (d *Dispatcher) stale(st *dialog.UserState) bool {
	return st.TransferredToHuman || st.Persona != dialog.PersonaListingSearch
}

// renderOffer sends the offer under the cursor: finance documents when applicable, the
// photos, then the description with paging buttons.
func (d *Dispatcher) renderOffer(ctx context.Context, st *dialog.UserState, sess *dialog.SearchSession) error {
	offer, ok := sess.Current()
	if !ok {
		return apperr.Wrap(apperr.ErrInvariant, "render offer", fmt.Errorf("cursor %d past %d offers", sess.CurrentOfferIndex, len(sess.Offers)))
	}

	var (
		pdf, xlsx   []byte
		description string
	)
	g, gctx := errgroup.WithContext(ctx)
	if offer.NeedsFinanceModel() {
		params := offerFinanceParams(offer)
		g.Go(func() error {
			result, err := d.deps.Calculator.Calculate(gctx, finance.FinishedOffice, params)
			if err != nil {
				return err
			}
			pdf, err = d.deps.Reports.PDF(gctx, finance.FinishedOffice, result)
			return err
		})
		g.Go(func() error {
			var err error
			xlsx, err = d.deps.Calculator.Spreadsheet(gctx, finance.FinishedOffice, params)
			return err
		})
	}
	g.Go(func() error {
		var err error
		description, err = d.describe(gctx, offer)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if pdf != nil || xlsx != nil {
		docs := []telegram.File{
			{Name: fmt.Sprintf("wewall_offer_%d.pdf", offer.ID), Data: pdf},
			{Name: fmt.Sprintf("wewall_offer_%d.xlsx", offer.ID), Data: xlsx},
		}
		if err := d.deps.Transport.SendDocumentGroup(ctx, st.ChatID, docs); err != nil {
			return err
		}
	}
	if images := offer.Images(); len(images) > 0 {
		if err := d.deps.Transport.SendPhotoGroup(ctx, st.ChatID, images); err != nil {
			return err
		}
	}
	if err := d.deps.Transport.SendMessage(ctx, st.ChatID, description, OfferKeyboard(sess.Position())); err != nil {
		return err
	}

	logged := description
	if link := d.offerLink(offer); link != "" {
		logged += "\n" + link
	}
	d.importMessage(ctx, st.ChatID, logged, true)
	return d.deps.History.Append(ctx, st.ChatID, dialog.RoleAssistant, logged)
}

// offerLink is the internal listing page managers open from the CRM chat.
func (d *Dispatcher) offerLink(o dialog.Offer) string {
	if base := d.deps.Settings.ListingLinkBase; base != "" {
		return base + strconv.FormatInt(o.EstateID, 10)
	}
	return o.Link
}

func offerFinanceParams(o dialog.Offer) finance.Params {
	return finance.Params{
		"square":          o.Square,
		"price":           o.Price,
		"price_per_meter": o.PricePerMeter,
		"floor":           o.Floor,
		"design":          o.Design,
		"location":        o.Location,
		"readiness":       o.OfferReadiness,
		"metro_stations":  o.MetroStations,
	}
}
