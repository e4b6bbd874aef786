package funnel

import (
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/domain/dialog"
)

// User-facing canned texts.
const (
	textServerError    = "Произошла ошибка на сервере. Попробуйте ещё раз чуть позже."
	textBadInput       = "Ссылка некорректна. Воспользуйтесь кнопками или командами из меню."
	textSubscribe      = "Чтобы пользоваться ботом WEWALL, подпишитесь на наш канал и нажмите «Я подписался»."
	textHandoff        = "Передал ваш диалог менеджеру WEWALL. Он ответит здесь же в ближайшее время."
	textManagerWaiting = "Менеджер уже подключён к диалогу и скоро ответит."
	textNoOffers       = "По вашим параметрам сейчас нет подходящих предложений."
	textNoMoreOffers   = "Больше предложений по этому запросу нет."
	textNoMoreEstates  = "Больше зданий по этому запросу нет."
	textNoSearch       = "Активного поиска нет. Нажмите «Подобрать помещение», чтобы начать."
)

// SubscribeText is sent by the subscription gate.
func SubscribeText() string { return textSubscribe }

// Model-facing canned prompts.
const (
	promptCompromise = "По моим параметрам ничего не нашлось. Предложи, какие параметры можно ослабить."
	promptLikedOffer = "Мне понравился этот объект, хочу договориться о просмотре:\n"
	// markerCalcSubmitted is imported to the CRM after a calculation.
	markerCalcSubmitted = "Клиент отправил параметры для расчёта доходности"
)

// bootstrapPrompts open the dialog with a freshly selected persona.
var bootstrapPrompts = map[dialog.Persona]string{
	dialog.PersonaIntro:             "Расскажи мне про WEWALL",
	dialog.PersonaMarketExpert:      "Расскажи последние новости рынка коммерческой недвижимости",
	dialog.PersonaListingSearch:     "Помоги подобрать коммерческое помещение",
	dialog.PersonaReturnsCalculator: "Помоги рассчитать доходность",
	dialog.PersonaContactCollector:  "Хочу оставить контакты для связи с менеджером",
}
