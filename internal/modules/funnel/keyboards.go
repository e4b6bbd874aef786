package funnel

import (
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/clients/telegram"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/domain/dialog"
)

// Callback data carried by inline buttons.
const (
	CallbackToSearch       = "to_estate_search"
	CallbackToCalculator   = "to_finance_model"
	CallbackToIntro        = "to_wewall_expert"
	CallbackToMarket       = "to_market_expert"
	CallbackToManager      = "to_manager"
	CallbackCheckSubscribe = "check_subscribe"
	CallbackNextOffer      = "next_offer"
	CallbackNextEstate     = "next_estate"
	CallbackLikeOffer      = "like_offer"
)

// callbackTargets maps persona buttons to their transition target.
var callbackTargets = map[string]dialog.Persona{
	CallbackToSearch:     dialog.PersonaListingSearch,
	CallbackToCalculator: dialog.PersonaReturnsCalculator,
	CallbackToIntro:      dialog.PersonaIntro,
	CallbackToMarket:     dialog.PersonaMarketExpert,
	CallbackToManager:    dialog.PersonaManagerHandoff,
}

func button(text, data string) telegram.InlineKeyboardButton {
	return telegram.InlineKeyboardButton{Text: text, CallbackData: data}
}

func StartKeyboard() *telegram.InlineKeyboardMarkup {
	return &telegram.InlineKeyboardMarkup{InlineKeyboard: [][]telegram.InlineKeyboardButton{
		{button("Подобрать помещение", CallbackToSearch)},
		{button("Рассчитать доходность", CallbackToCalculator)},
		{button("Аналитика рынка", CallbackToMarket)},
		{button("Связаться с менеджером", CallbackToManager)},
	}}
}

// SubscribeKeyboard links to the gate channel and offers a re-check button.
func SubscribeKeyboard(channelLink string) *telegram.InlineKeyboardMarkup {
	rows := [][]telegram.InlineKeyboardButton{}
	if channelLink != "" {
		rows = append(rows, []telegram.InlineKeyboardButton{{Text: "Подписаться на канал", URL: channelLink}})
	}
	rows = append(rows, []telegram.InlineKeyboardButton{button("Я подписался", CallbackCheckSubscribe)})
	return &telegram.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// OfferKeyboard lays out paging buttons for the cursor position.
func OfferKeyboard(pos dialog.Position) *telegram.InlineKeyboardMarkup {
	like := button("Нравится, хочу посмотреть", CallbackLikeOffer)
	var rows [][]telegram.InlineKeyboardButton
	switch pos {
	case dialog.PositionLastOffer:
		rows = [][]telegram.InlineKeyboardButton{
			{like},
			{button("Новый поиск", CallbackToSearch)},
			{button("Связаться с менеджером", CallbackToManager)},
		}
	case dialog.PositionLastEstate:
		rows = [][]telegram.InlineKeyboardButton{
			{button("Следующий вариант", CallbackNextOffer)},
			{like},
		}
	default:
		rows = [][]telegram.InlineKeyboardButton{
			{button("Следующий вариант", CallbackNextOffer), button("Следующее здание", CallbackNextEstate)},
			{like},
		}
	}
	return &telegram.InlineKeyboardMarkup{InlineKeyboard: rows}
}
