package funnel

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/domain/dialog"
	apperr "github.com/mmdev2003/real-estate-ai-tg-bot/internal/pkg/errors"
)

const searchFinish = `FINISH:start_estate_search[{"motivation":1,"type":1,"budget":80,"square":100,"location":0,"estate_class":0,"distance_to_metro":0,"design":0,"readiness":1,"irr":0}]`

func handle(t *testing.T, h *harness, ev *Event) {
	t.Helper()
	if err := h.f.Controller.Handle(context.Background(), ev); err != nil {
		t.Fatalf("Handle(%s %q%q): %v", ev.Kind, ev.Text, ev.CallbackData, err)
	}
}

func TestFreshUserStartThenSearchButton(t *testing.T) {
	h := newHarness(t)

	st, created, err := h.states.GetOrCreate(h.dbc(), 42)
	if err != nil || !created {
		t.Fatalf("GetOrCreate: created=%v err=%v", created, err)
	}
	handle(t, h, &Event{Kind: EventCommand, ChatID: 42, Text: CommandStart, State: st, Created: true})

	if got := h.crm.ops("delete"); len(got) != 0 {
		t.Fatalf("fresh state must not be reset in the CRM: %+v", got)
	}
	msgs := h.transport.messages()
	if len(msgs) != 1 || msgs[0].text != "reply from intro" {
		t.Fatalf("intro reply: %+v", msgs)
	}
	if msgs[0].kb == nil || msgs[0].kb.InlineKeyboard[0][0].CallbackData != CallbackToSearch {
		t.Fatalf("intro keyboard: %+v", msgs[0].kb)
	}
	if st := h.load(t, 42); st.Persona != dialog.PersonaIntro {
		t.Fatalf("persona=%s", st.Persona)
	}

	handle(t, h, h.callback(t, 42, CallbackToSearch))

	st = h.load(t, 42)
	if st.Persona != dialog.PersonaListingSearch {
		t.Fatalf("persona=%s", st.Persona)
	}
	turns := h.turns(t, 42)
	if len(turns) != 2 || turns[0].Text != bootstrapPrompts[dialog.PersonaListingSearch] || turns[1].Text != "reply from search" {
		t.Fatalf("log not cleared before bootstrap: %+v", turns)
	}
	if got := h.crm.ops("edit"); len(got) != 0 {
		t.Fatalf("unexpected escalation: %+v", got)
	}
	if len(h.transport.answered) != 1 {
		t.Fatalf("callback not answered: %v", h.transport.answered)
	}
}

func TestSearchWithResults(t *testing.T) {
	h := newHarness(t)
	h.seed(t, 7, dialog.PersonaListingSearch)
	h.llm.replies["search"] = searchFinish
	h.listings.offers = saleOffices(10, 20, 30)

	handle(t, h, h.text(t, 7, "офис, до 100м кв, бюджет 80млн"))

	if h.listings.sale != 1 || h.listings.rent != 0 {
		t.Fatalf("listing calls sale=%d rent=%d", h.listings.sale, h.listings.rent)
	}
	st := h.load(t, 7)
	sess, err := h.states.GetSearchSession(h.dbc(), st.ID)
	if err != nil || sess == nil {
		t.Fatalf("session: %v %v", sess, err)
	}
	if len(sess.Offers) != 3 || sess.CurrentOfferIndex != 0 || sess.CurrentEstateIndex != 0 {
		t.Fatalf("session=%+v", sess)
	}

	out := h.transport.all()
	if len(out) != 3 {
		t.Fatalf("sent=%+v", out)
	}
	if out[0].kind != "documents" || len(out[0].files) != 2 ||
		!strings.HasSuffix(out[0].files[0], ".pdf") || !strings.HasSuffix(out[0].files[1], ".xlsx") {
		t.Fatalf("finance documents: %+v", out[0])
	}
	if out[1].kind != "photos" || len(out[1].urls) != 2 {
		t.Fatalf("photos: %+v", out[1])
	}
	if out[2].kind != "message" || out[2].text != offerDescriptor {
		t.Fatalf("description: %+v", out[2])
	}
	if out[2].kb.InlineKeyboard[0][1].CallbackData != CallbackNextEstate {
		t.Fatalf("want middle_offer keyboard, got %+v", out[2].kb)
	}
	if st.SearchInvocations != 1 {
		t.Fatalf("search_invocations=%d", st.SearchInvocations)
	}
	if got := h.crm.ops("edit"); len(got) != 0 {
		t.Fatalf("unexpected escalation: %+v", got)
	}

	turns := h.turns(t, 7)
	last := turns[len(turns)-1]
	if last.Role != dialog.RoleAssistant || !strings.HasSuffix(last.Text, "https://wewall.ru/estate/10") {
		t.Fatalf("assistant turn: %+v", last)
	}
	for _, turn := range turns {
		if strings.Contains(turn.Text, "FINISH") {
			t.Fatalf("control reply logged: %+v", turns)
		}
	}
}

func TestSearchWithoutResultsAsksForCompromise(t *testing.T) {
	h := newHarness(t)
	h.seed(t, 8, dialog.PersonaListingSearch)
	h.llm.replies["search"] = strings.Replace(searchFinish, `"motivation":1`, `"motivation":0`, 1)

	err := h.f.Router.Handle(context.Background(), h.load(t, 8), "хочу арендовать")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if h.listings.rent != 1 {
		t.Fatalf("rent lookups=%d", h.listings.rent)
	}
	msgs := h.transport.messages()
	if len(msgs) != 2 || msgs[0].text != textNoOffers {
		t.Fatalf("messages=%+v", msgs)
	}
	// The second search completion answers the compromise prompt.
	if got := len(h.llm.callsFor("search")); got != 2 {
		t.Fatalf("search completions=%d", got)
	}
	if st, _ := h.states.GetSearchSession(h.dbc(), h.load(t, 8).ID); st != nil {
		t.Fatalf("no session expected, got %+v", st)
	}
}

func TestMessageEscalationIsExact(t *testing.T) {
	for _, transferred := range []bool{false, true} {
		h := newHarness(t)
		st := h.seed(t, 9, dialog.PersonaIntro)
		if transferred {
			if err := h.states.MarkTransferred(h.dbc(), st.ID); err != nil {
				t.Fatal(err)
			}
		}
		for i := 0; i < 21; i++ {
			snap, err := h.states.Increment(h.dbc(), st.ID, dialog.CounterMessages)
			if err != nil {
				t.Fatal(err)
			}
			if err := h.f.Engagement.Observe(context.Background(), st.ChatID, snap); err != nil {
				t.Fatal(err)
			}
			edits := h.crm.ops("edit")
			want := 0
			if !transferred && snap.Value >= 20 {
				want = 1
			}
			if len(edits) != want {
				t.Fatalf("transferred=%v value=%d edits=%+v", transferred, snap.Value, edits)
			}
			if want == 1 && (edits[0].pipeline != pipelineMain || edits[0].status != statusHigh) {
				t.Fatalf("edit=%+v", edits[0])
			}
		}
	}
}

func TestEngagementLevels(t *testing.T) {
	h := newHarness(t)
	e := h.f.Engagement
	cases := []struct {
		snap dialog.CounterSnapshot
		want string
	}{
		{dialog.CounterSnapshot{Counter: dialog.CounterMessages, Value: 19}, ""},
		{dialog.CounterSnapshot{Counter: dialog.CounterMessages, Value: 60}, levelActiveUser},
		{dialog.CounterSnapshot{Counter: dialog.CounterSearch, Value: 2}, levelHighEngagement},
		{dialog.CounterSnapshot{Counter: dialog.CounterSearch, Value: 3}, ""},
		{dialog.CounterSnapshot{Counter: dialog.CounterCalculator, Value: 7}, levelActiveUser},
		{dialog.CounterSnapshot{Counter: dialog.CounterCalculator, Value: 7, Transferred: true}, ""},
		{dialog.CounterSnapshot{Counter: "bogus", Value: 2}, ""},
	}
	for _, tc := range cases {
		if got := e.Level(tc.snap); got != tc.want {
			t.Fatalf("%+v: level=%q want %q", tc.snap, got, tc.want)
		}
	}
}

func TestManagerHandoffFromSearch(t *testing.T) {
	h := newHarness(t)
	h.seed(t, 11, dialog.PersonaListingSearch)
	h.llm.replies["search"] = "SWITCH:to_manager"

	handle(t, h, h.text(t, 11, "позовите человека"))

	if got := h.turns(t, 11); len(got) != 0 {
		t.Fatalf("log not cleared: %+v", got)
	}
	if got := len(h.llm.callsFor(promptChatSummary)); got != 1 {
		t.Fatalf("summary calls=%d", got)
	}
	msgs := h.transport.messages()
	if len(msgs) != 1 || msgs[0].text != textHandoff {
		t.Fatalf("messages=%+v", msgs)
	}
	edits := h.crm.ops("edit")
	if len(edits) != 1 || edits[0].pipeline != pipelineAppeal || edits[0].status != statusManager {
		t.Fatalf("edits=%+v", edits)
	}
	imports := h.crm.ops("import")
	if len(imports) != 1 || imports[0].text != chatSummary {
		t.Fatalf("imports=%+v", imports)
	}
	st := h.load(t, 11)
	if !st.TransferredToHuman || st.Persona != dialog.PersonaListingSearch {
		t.Fatalf("state=%+v", st)
	}

	// Free text after the handoff is left to the manager.
	handle(t, h, h.text(t, 11, "алло?"))
	if got := len(h.transport.messages()); got != 1 {
		t.Fatalf("bot replied after handoff: %d messages", got)
	}
	if got := len(h.llm.callsFor("search")); got != 1 {
		t.Fatalf("model called after handoff: %d", got)
	}
}

func TestHandoffIsTerminalUntilStart(t *testing.T) {
	h := newHarness(t)
	h.seed(t, 31, dialog.PersonaListingSearch)
	h.llm.replies["search"] = "SWITCH:to_manager"
	handle(t, h, h.text(t, 31, "позовите человека"))

	handle(t, h, h.command(t, 31, CommandFinanceModel))
	handle(t, h, h.callback(t, 31, CallbackToSearch))
	handle(t, h, h.callback(t, 31, CallbackNextOffer))
	handle(t, h, h.text(t, 31, "100 метров"))

	msgs := h.transport.messages()
	if len(msgs) != 4 {
		t.Fatalf("messages=%+v", msgs)
	}
	for _, m := range msgs[1:] {
		if m.text != textManagerWaiting {
			t.Fatalf("bot answered a manager-owned chat: %+v", msgs)
		}
	}
	if got := len(h.llm.callsFor("calc")) + len(h.llm.callsFor("search")); got != 1 {
		t.Fatalf("persona calls after handoff=%d", got)
	}
	st := h.load(t, 31)
	if st.Persona != dialog.PersonaListingSearch || !st.TransferredToHuman {
		t.Fatalf("state=%+v", st)
	}

	handle(t, h, h.command(t, 31, CommandStart))
	st = h.load(t, 31)
	if st.TransferredToHuman || st.Persona != dialog.PersonaIntro {
		t.Fatalf("after start: %+v", st)
	}
}

func TestHandoffCRMNotFoundRepliesServerError(t *testing.T) {
	h := newHarness(t)
	h.seed(t, 32, dialog.PersonaIntro)
	h.crm.editErr = apperr.Wrap(apperr.ErrNotFound, "crm edit lead", errors.New("404"))

	err := h.f.Controller.Handle(context.Background(), h.command(t, 32, CommandManager))
	if apperr.Classify(err) != apperr.KindNotFound {
		t.Fatalf("err=%v", err)
	}
	msgs := h.transport.messages()
	if len(msgs) != 1 || msgs[0].text != textServerError {
		t.Fatalf("messages=%+v", msgs)
	}
	if st := h.load(t, 32); st.TransferredToHuman {
		t.Fatalf("transferred despite CRM failure")
	}
}

func TestHandoffSurvivesSummaryFailure(t *testing.T) {
	h := newHarness(t)
	h.seed(t, 33, dialog.PersonaMarketExpert)
	if err := h.history.Append(context.Background(), 33, dialog.RoleUser, "что с рынком?"); err != nil {
		t.Fatal(err)
	}
	h.llm.err = apperr.Wrap(apperr.ErrTransient, "openai", errors.New("timeout"))

	handle(t, h, h.command(t, 33, CommandManager))

	msgs := h.transport.messages()
	if len(msgs) != 1 || msgs[0].text != textHandoff {
		t.Fatalf("messages=%+v", msgs)
	}
	if got := h.crm.ops("import"); len(got) != 0 {
		t.Fatalf("imports=%+v", got)
	}
	if st := h.load(t, 33); !st.TransferredToHuman {
		t.Fatal("handoff not recorded")
	}
}

func TestMalformedFinishIsPlainText(t *testing.T) {
	h := newHarness(t)
	h.seed(t, 12, dialog.PersonaReturnsCalculator)
	raw := `FINISH:calc_finished_office[{not json`
	h.llm.replies["calc"] = raw

	handle(t, h, h.text(t, 12, "120 м², 80 млн"))

	msgs := h.transport.messages()
	if len(msgs) != 1 || msgs[0].text != raw {
		t.Fatalf("messages=%+v", msgs)
	}
	if h.calculator.total() != 0 {
		t.Fatal("calculator called for a malformed payload")
	}
	if st := h.load(t, 12); st.CalculatorInvocations != 0 {
		t.Fatalf("calculator_invocations=%d", st.CalculatorInvocations)
	}
}

func TestWrongTypedPayloadIsDemoted(t *testing.T) {
	h := newHarness(t)
	h.seed(t, 13, dialog.PersonaListingSearch)
	raw := `start_estate_search[{"motivation":"купить"}]`
	h.llm.replies["search"] = raw

	handle(t, h, h.text(t, 13, "купить офис"))

	if h.listings.sale+h.listings.rent != 0 {
		t.Fatal("listing called for a bad payload")
	}
	if msgs := h.transport.messages(); len(msgs) != 1 || msgs[0].text != raw {
		t.Fatalf("messages=%+v", msgs)
	}
}

func TestSwitchBeatsFinish(t *testing.T) {
	h := newHarness(t)
	h.seed(t, 14, dialog.PersonaListingSearch)
	h.llm.replies["search"] = searchFinish + " SWITCH:to_market_expert"
	h.listings.offers = saleOffices(1)

	handle(t, h, h.text(t, 14, "а что на рынке?"))

	if h.listings.sale+h.listings.rent != 0 {
		t.Fatal("finish payload was acted on")
	}
	if st := h.load(t, 14); st.Persona != dialog.PersonaMarketExpert || st.SearchInvocations != 0 {
		t.Fatalf("state=%+v", st)
	}
}

func TestControlRepliesAreNotLogged(t *testing.T) {
	h := newHarness(t)
	h.seed(t, 15, dialog.PersonaReturnsCalculator)
	if err := h.history.Append(context.Background(), 15, dialog.RoleAssistant, "Какая площадь?"); err != nil {
		t.Fatal(err)
	}
	h.llm.replies["calc"] = `FINISH:calc_building_retail[{"square":50,"price":30000000}]`

	handle(t, h, h.text(t, 15, "50 м², 30 млн"))

	turns := h.turns(t, 15)
	if len(turns) != 2 || turns[1].Role != dialog.RoleUser || turns[1].Text != "50 м², 30 млн" {
		t.Fatalf("turns=%+v", turns)
	}
}

func TestPlainTextRoundTrip(t *testing.T) {
	h := newHarness(t)
	h.seed(t, 16, dialog.PersonaMarketExpert)
	h.llm.replies["market"] = "Вакансия офисов класса A снизилась до 8%."

	handle(t, h, h.text(t, 16, "что с вакансией?"))

	msgs := h.transport.messages()
	imports := h.crm.ops("import")
	if len(msgs) != 1 || len(imports) != 1 || msgs[0].text != imports[0].text || !imports[0].fromBot {
		t.Fatalf("messages=%+v imports=%+v", msgs, imports)
	}
	turns := h.turns(t, 16)
	if len(turns) != 2 || turns[1].Role != dialog.RoleAssistant || turns[1].Text != msgs[0].text {
		t.Fatalf("turns=%+v", turns)
	}
	req := h.llm.callsFor("market")[0]
	if req.Temperature != 0.1 || req.Tier != dialog.TierHigh || len(req.History) != 1 {
		t.Fatalf("request=%+v", req)
	}
}

func TestStartIsIdempotent(t *testing.T) {
	once := newHarness(t)
	twice := newHarness(t)
	for _, h := range []*harness{once, twice} {
		st := h.seed(t, 17, dialog.PersonaReturnsCalculator)
		if _, err := h.states.Increment(h.dbc(), st.ID, dialog.CounterMessages); err != nil {
			t.Fatal(err)
		}
		if err := h.states.MarkTransferred(h.dbc(), st.ID); err != nil {
			t.Fatal(err)
		}
	}
	handle(t, once, once.command(t, 17, CommandStart))
	handle(t, twice, twice.command(t, 17, CommandStart))
	handle(t, twice, twice.command(t, 17, CommandStart))

	a, b := once.load(t, 17), twice.load(t, 17)
	if a.Persona != dialog.PersonaIntro || a.Persona != b.Persona ||
		a.MessagesSeen != b.MessagesSeen || a.SearchInvocations != b.SearchInvocations ||
		a.CalculatorInvocations != b.CalculatorInvocations || a.TransferredToHuman != b.TransferredToHuman {
		t.Fatalf("once=%+v twice=%+v", a, b)
	}
	if a.MessagesSeen != 0 || a.TransferredToHuman {
		t.Fatalf("not reset: %+v", a)
	}
	if got := len(twice.crm.ops("create")); got != 2 {
		t.Fatalf("crm creates=%d", got)
	}
}

func TestStartToleratesMissingCRMRecords(t *testing.T) {
	h := newHarness(t)
	h.seed(t, 18, dialog.PersonaIntro)
	h.crm.deleteErr = apperr.Wrap(apperr.ErrNotFound, "crm delete", nil)

	handle(t, h, h.command(t, 18, CommandStart))

	if got := len(h.crm.ops("create")); got != 1 {
		t.Fatalf("crm creates=%d", got)
	}
}

func TestCountersAndTransferAreMonotonic(t *testing.T) {
	h := newHarness(t)
	h.seed(t, 19, dialog.PersonaListingSearch)
	h.listings.offers = saleOffices(1, 1, 2)

	steps := []struct {
		reply string
		ev    func() *Event
	}{
		{searchFinish, func() *Event { return h.text(t, 19, "ищу офис") }},
		{"", func() *Event { return h.callback(t, 19, CallbackNextOffer) }},
		{searchFinish, func() *Event { return h.text(t, 19, "ещё раз") }},
		{"", func() *Event { return h.callback(t, 19, CallbackToCalculator) }},
		{`calc_finished_retail[{"square":40}]`, func() *Event { return h.text(t, 19, "40 м²") }},
		{"", func() *Event { return h.command(t, 19, CommandManager) }},
		{"", func() *Event { return h.callback(t, 19, CallbackNextOffer) }},
		{"", func() *Event { return h.command(t, 19, CommandNews) }},
	}
	prev := h.load(t, 19)
	for i, s := range steps {
		h.llm.mu.Lock()
		h.llm.replies["search"], h.llm.replies["calc"] = s.reply, s.reply
		h.llm.mu.Unlock()
		handle(t, h, s.ev())
		cur := h.load(t, 19)
		if cur.SearchInvocations < prev.SearchInvocations ||
			cur.CalculatorInvocations < prev.CalculatorInvocations ||
			cur.MessagesSeen < prev.MessagesSeen ||
			(prev.TransferredToHuman && !cur.TransferredToHuman) {
			t.Fatalf("step %d went backwards: %+v -> %+v", i, prev, cur)
		}
		prev = cur
	}
	if prev.SearchInvocations != 2 || prev.CalculatorInvocations != 1 || !prev.TransferredToHuman {
		t.Fatalf("final=%+v", prev)
	}
	// The second search reached the threshold of two.
	edits := h.crm.ops("edit")
	if len(edits) != 2 || edits[0].status != statusHigh || edits[1].status != statusManager {
		t.Fatalf("edits=%+v", edits)
	}
}

func TestOfferPaging(t *testing.T) {
	h := newHarness(t)
	h.seed(t, 20, dialog.PersonaListingSearch)
	h.llm.replies["search"] = searchFinish
	offers := saleOffices(1, 1, 2)
	offers[2].Deal = dialog.DealRent
	h.listings.offers = offers

	handle(t, h, h.text(t, 20, "ищу офис"))
	handle(t, h, h.callback(t, 20, CallbackNextOffer))

	last := h.transport.messages()
	kb := last[len(last)-1].kb
	if kb.InlineKeyboard[0][1].CallbackData != CallbackNextEstate {
		t.Fatalf("offer 1 of estate 1 should page both ways: %+v", kb)
	}

	before := len(h.transport.all())
	handle(t, h, h.callback(t, 20, CallbackNextEstate))
	out := h.transport.all()[before:]
	// A rent offer carries no finance documents.
	if len(out) != 2 || out[0].kind != "photos" || out[1].kind != "message" {
		t.Fatalf("sent=%+v", out)
	}
	if out[1].kb.InlineKeyboard[0][0].CallbackData != CallbackLikeOffer {
		t.Fatalf("want last_offer keyboard, got %+v", out[1].kb)
	}
	sess, _ := h.states.GetSearchSession(h.dbc(), h.load(t, 20).ID)
	if sess.CurrentOfferIndex != 2 || sess.CurrentEstateIndex != 1 {
		t.Fatalf("cursor=%+v", sess.Cursor())
	}

	handle(t, h, h.callback(t, 20, CallbackNextOffer))
	if msgs := h.transport.messages(); msgs[len(msgs)-1].text != textNoMoreOffers {
		t.Fatalf("past the end: %+v", msgs[len(msgs)-1])
	}
}

func TestStalePagingIsIgnored(t *testing.T) {
	h := newHarness(t)
	h.seed(t, 21, dialog.PersonaListingSearch)
	h.llm.replies["search"] = searchFinish
	h.listings.offers = saleOffices(1, 2)

	handle(t, h, h.text(t, 21, "ищу офис"))
	handle(t, h, h.command(t, 21, CommandNews))

	before := len(h.transport.all())
	for _, data := range []string{CallbackNextOffer, CallbackNextEstate, CallbackLikeOffer} {
		handle(t, h, h.callback(t, 21, data))
	}
	if got := len(h.transport.all()); got != before {
		t.Fatalf("buttons pressed after leaving search rendered %d items", got-before)
	}
	sess, _ := h.states.GetSearchSession(h.dbc(), h.load(t, 21).ID)
	if sess == nil || sess.CurrentOfferIndex != 0 {
		t.Fatalf("cursor moved: %+v", sess)
	}
}

func TestLikeOfferMovesToContactCollector(t *testing.T) {
	h := newHarness(t)
	h.seed(t, 22, dialog.PersonaListingSearch)
	h.llm.replies["search"] = searchFinish
	h.listings.offers = saleOffices(1)

	handle(t, h, h.text(t, 22, "ищу офис"))
	handle(t, h, h.callback(t, 22, CallbackLikeOffer))

	if st := h.load(t, 22); st.Persona != dialog.PersonaContactCollector {
		t.Fatalf("persona=%s", st.Persona)
	}
	turns := h.turns(t, 22)
	if len(turns) != 2 || !strings.HasPrefix(turns[0].Text, promptLikedOffer) || !strings.Contains(turns[0].Text, offerDescriptor) {
		t.Fatalf("turns=%+v", turns)
	}
}

func TestCalculatorFlow(t *testing.T) {
	h := newHarness(t)
	h.seed(t, 23, dialog.PersonaReturnsCalculator)
	h.llm.replies["calc"] = `FINISH:calc_building_office[{"square":120,"price":80000000,"nds_rate":20}]`

	for i := 0; i < 2; i++ {
		handle(t, h, h.text(t, 23, "считаем"))
	}

	docs := h.transport.all()
	if len(docs) != 4 || docs[0].files[0] != "wewall_building_office.xlsx" || docs[1].files[0] != "wewall_building_office.pdf" {
		t.Fatalf("documents=%+v", docs)
	}
	if len(h.reports.kinds) != 2 || h.reports.kinds[0] != "building_office" {
		t.Fatalf("reports=%v", h.reports.kinds)
	}
	if st := h.load(t, 23); st.CalculatorInvocations != 2 {
		t.Fatalf("calculator_invocations=%d", st.CalculatorInvocations)
	}
	edits := h.crm.ops("edit")
	if len(edits) != 1 || edits[0].status != statusHigh {
		t.Fatalf("edits=%+v", edits)
	}
	imports := h.crm.ops("import")
	if len(imports) != 2 || imports[0].text != markerCalcSubmitted {
		t.Fatalf("imports=%+v", imports)
	}
}

func TestForbiddenTokenAbortsWithoutReply(t *testing.T) {
	h := newHarness(t)
	h.seed(t, 24, dialog.PersonaIntro)
	h.llm.replies["intro"] = searchFinish

	err := h.f.Controller.Handle(context.Background(), h.text(t, 24, "привет"))
	if apperr.Classify(err) != apperr.KindInvariant {
		t.Fatalf("err=%v", err)
	}
	if got := len(h.transport.all()); got != 0 {
		t.Fatalf("sent %d items", got)
	}
	if h.listings.sale+h.listings.rent != 0 {
		t.Fatal("listing called")
	}
}

func TestFailuresReplyWithoutMutatingState(t *testing.T) {
	h := newHarness(t)
	h.seed(t, 25, dialog.PersonaMarketExpert)
	h.llm.err = apperr.Wrap(apperr.ErrTransient, "openai", errors.New("timeout"))

	err := h.f.Controller.Handle(context.Background(), h.callback(t, 25, CallbackToSearch))
	if apperr.Classify(err) != apperr.KindTransient {
		t.Fatalf("err=%v", err)
	}
	msgs := h.transport.messages()
	if len(msgs) != 1 || msgs[0].text != textServerError {
		t.Fatalf("messages=%+v", msgs)
	}
	if st := h.load(t, 25); st.Persona != dialog.PersonaMarketExpert {
		t.Fatalf("persona=%s", st.Persona)
	}

	h.llm.err = nil
	err = h.f.Controller.Handle(context.Background(), h.callback(t, 25, "definitely_not_a_button"))
	if apperr.Classify(err) != apperr.KindBadInput {
		t.Fatalf("err=%v", err)
	}
	if msgs := h.transport.messages(); msgs[len(msgs)-1].text != textBadInput {
		t.Fatalf("messages=%+v", msgs)
	}

	handle(t, h, &Event{Kind: EventMessage, ChatID: 25, NonText: true, State: h.load(t, 25)})
	if msgs := h.transport.messages(); msgs[len(msgs)-1].text != textServerError {
		t.Fatalf("messages=%+v", msgs)
	}
}
