package testutil

import (
	"context"
	"testing"

	"gorm.io/gorm"

	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/domain/dialog"
)

func SeedState(tb testing.TB, ctx context.Context, tx *gorm.DB, chatID int64, persona dialog.Persona) *dialog.UserState {
	tb.Helper()
	st := dialog.NewUserState(chatID)
	st.Persona = persona
	if err := tx.WithContext(ctx).Create(st).Error; err != nil {
		tb.Fatalf("seed state: %v", err)
	}
	return st
}

// Offers builds offers for the given estate ids, one per entry, in order.
func Offers(estateIDs ...int64) []dialog.Offer {
	out := make([]dialog.Offer, 0, len(estateIDs))
	for i, id := range estateIDs {
		out = append(out, dialog.Offer{
			ID:             int64(i + 1),
			EstateID:       id,
			EstateCategory: dialog.CategoryOffice,
			Deal:           dialog.DealSale,
			Square:         100 + float64(i),
			Price:          80_000_000,
			OfferReadiness: dialog.ReadinessFinished,
		})
	}
	return out
}
