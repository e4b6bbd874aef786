package funnel

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/clients/crm"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/clients/finance"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/clients/history"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/clients/openai"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/clients/telegram"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/config"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/data/repos/state"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/domain/dialog"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/pkg/dbctx"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/platform/logger"
)

const (
	pipelineMain    = 101
	pipelineAppeal  = 202
	statusManager   = 1
	statusHigh      = 2
	statusActive    = 3
	offerDescriptor = "Офис 100 м² у метро"
	chatSummary     = "Клиент ищет офис до 80 млн"
)

// fakePrompts returns "PROMPT:<key>" so tests can tell personas apart by system prompt.
type fakePrompts struct{}

func (fakePrompts) Get(_ context.Context, key string) (string, error) { return "PROMPT:" + key, nil }

type fakeLLM struct {
	mu      sync.Mutex
	replies map[string]string
	err     error
	calls   []openai.Request
}

func (f *fakeLLM) Generate(_ context.Context, req openai.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if f.err != nil {
		return "", f.err
	}
	key := strings.TrimPrefix(req.System, "PROMPT:")
	if r, ok := f.replies[key]; ok {
		return r, nil
	}
	switch key {
	case promptOfferDescription:
		return offerDescriptor, nil
	case promptChatSummary:
		return chatSummary, nil
	default:
		return "reply from " + key, nil
	}
}

func (f *fakeLLM) callsFor(key string) []openai.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []openai.Request
	for _, c := range f.calls {
		if c.System == "PROMPT:"+key {
			out = append(out, c)
		}
	}
	return out
}

type crmCall struct {
	op       string
	chatID   int64
	pipeline int64
	status   int64
	text     string
	fromBot  bool
}

type fakeCRM struct {
	mu        sync.Mutex
	calls     []crmCall
	deleteErr error
	editErr   error
}

func (f *fakeCRM) record(c crmCall) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
}

func (f *fakeCRM) CreateContactLeadChat(_ context.Context, chatID, pipelineID int64, _ crm.Contact) error {
	f.record(crmCall{op: "create", chatID: chatID, pipeline: pipelineID})
	return nil
}

func (f *fakeCRM) DeleteContactLeadChat(_ context.Context, chatID int64) error {
	f.record(crmCall{op: "delete", chatID: chatID})
	return f.deleteErr
}

func (f *fakeCRM) EditLead(_ context.Context, chatID, pipelineID, statusID int64) error {
	f.record(crmCall{op: "edit", chatID: chatID, pipeline: pipelineID, status: statusID})
	return f.editErr
}

func (f *fakeCRM) ImportMessage(_ context.Context, chatID int64, text string, fromBot bool) error {
	f.record(crmCall{op: "import", chatID: chatID, text: text, fromBot: fromBot})
	return nil
}

func (f *fakeCRM) ops(op string) []crmCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []crmCall
	for _, c := range f.calls {
		if c.op == op {
			out = append(out, c)
		}
	}
	return out
}

type fakeListings struct {
	mu     sync.Mutex
	offers []dialog.Offer
	rent   int
	sale   int
}

func (f *fakeListings) FindRent(_ context.Context, _ dialog.SearchParams) ([]dialog.Offer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rent++
	return f.offers, nil
}

func (f *fakeListings) FindSale(_ context.Context, _ dialog.SearchParams) ([]dialog.Offer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sale++
	return f.offers, nil
}

type fakeCalculator struct {
	mu          sync.Mutex
	numeric     []finance.Variant
	spreadsheet []finance.Variant
}

func (f *fakeCalculator) Calculate(_ context.Context, v finance.Variant, _ finance.Params) (finance.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.numeric = append(f.numeric, v)
	return finance.Result{"irr": 0.12}, nil
}

func (f *fakeCalculator) Spreadsheet(_ context.Context, v finance.Variant, _ finance.Params) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spreadsheet = append(f.spreadsheet, v)
	return []byte("xlsx"), nil
}

func (f *fakeCalculator) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.numeric) + len(f.spreadsheet)
}

type fakeReports struct {
	mu    sync.Mutex
	kinds []finance.Variant
}

func (f *fakeReports) PDF(_ context.Context, kind finance.Variant, _ finance.Result) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kinds = append(f.kinds, kind)
	return []byte("pdf"), nil
}

type sent struct {
	kind   string
	chatID int64
	text   string
	kb     *telegram.InlineKeyboardMarkup
	files  []string
	urls   []string
}

type fakeTransport struct {
	mu       sync.Mutex
	sent     []sent
	answered []string
}

func (f *fakeTransport) add(s sent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, s)
}

func (f *fakeTransport) SendMessage(_ context.Context, chatID int64, text string, kb *telegram.InlineKeyboardMarkup) error {
	f.add(sent{kind: "message", chatID: chatID, text: text, kb: kb})
	return nil
}

func (f *fakeTransport) SendPhotoGroup(_ context.Context, chatID int64, urls []string) error {
	f.add(sent{kind: "photos", chatID: chatID, urls: urls})
	return nil
}

func (f *fakeTransport) SendDocument(_ context.Context, chatID int64, doc telegram.File) error {
	f.add(sent{kind: "document", chatID: chatID, files: []string{doc.Name}})
	return nil
}

func (f *fakeTransport) SendDocumentGroup(_ context.Context, chatID int64, docs []telegram.File) error {
	names := make([]string, 0, len(docs))
	for _, d := range docs {
		names = append(names, d.Name)
	}
	f.add(sent{kind: "documents", chatID: chatID, files: names})
	return nil
}

func (f *fakeTransport) AnswerCallbackQuery(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answered = append(f.answered, id)
	return nil
}

func (f *fakeTransport) all() []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sent(nil), f.sent...)
}

func (f *fakeTransport) messages() []sent {
	var out []sent
	for _, s := range f.all() {
		if s.kind == "message" {
			out = append(out, s)
		}
	}
	return out
}

type harness struct {
	f          *Funnel
	states     state.UserStateRepo
	llm        *fakeLLM
	history    *history.Memory
	crm        *fakeCRM
	listings   *fakeListings
	calculator *fakeCalculator
	reports    *fakeReports
	transport  *fakeTransport
}

func mustTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("nop")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func testSettings() Settings {
	return Settings{
		Pipelines: config.CRMPipelines{Main: pipelineMain, Appeal: pipelineAppeal},
		Statuses:  config.CRMStatuses{ChatWithManager: statusManager, HighEngagement: statusHigh, ActiveUser: statusActive},
		Thresholds: config.EngagementConfig{
			MessagesHighEngagement:   20,
			MessagesActiveUser:       60,
			SearchHighEngagement:     2,
			SearchActiveUser:         7,
			CalculatorHighEngagement: 2,
			CalculatorActiveUser:     7,
		},
		ListingLinkBase: "https://wewall.ru/estate/",
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		states:     state.NewMemoryRepo(),
		llm:        &fakeLLM{replies: map[string]string{}},
		history:    history.NewMemory(0),
		crm:        &fakeCRM{},
		listings:   &fakeListings{},
		calculator: &fakeCalculator{},
		reports:    &fakeReports{},
		transport:  &fakeTransport{},
	}
	f, err := New(Deps{
		Log:        mustTestLogger(t),
		States:     h.states,
		LLM:        h.llm,
		History:    h.history,
		CRM:        h.crm,
		Listings:   h.listings,
		Calculator: h.calculator,
		Reports:    h.reports,
		Prompts:    fakePrompts{},
		Transport:  h.transport,
		Settings:   testSettings(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.f = f
	return h
}

func (h *harness) dbc() dbctx.Context { return dbctx.Context{Ctx: context.Background()} }

// seed returns the chat's state at persona p, creating it when needed.
func (h *harness) seed(t *testing.T, chatID int64, p dialog.Persona) *dialog.UserState {
	t.Helper()
	st, _, err := h.states.GetOrCreate(h.dbc(), chatID)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if err := h.states.SetPersona(h.dbc(), st.ID, p); err != nil {
		t.Fatalf("SetPersona: %v", err)
	}
	return h.load(t, chatID)
}

func (h *harness) load(t *testing.T, chatID int64) *dialog.UserState {
	t.Helper()
	st, err := h.states.GetByChatID(h.dbc(), chatID)
	if err != nil || st == nil {
		t.Fatalf("GetByChatID: %v %v", st, err)
	}
	return st
}

// text builds a free-text event over the chat's stored state.
func (h *harness) text(t *testing.T, chatID int64, text string) *Event {
	t.Helper()
	return &Event{Kind: EventMessage, ChatID: chatID, UserID: chatID, Text: text, State: h.load(t, chatID)}
}

func (h *harness) command(t *testing.T, chatID int64, name string) *Event {
	t.Helper()
	return &Event{Kind: EventCommand, ChatID: chatID, UserID: chatID, Text: name, State: h.load(t, chatID)}
}

func (h *harness) callback(t *testing.T, chatID int64, data string) *Event {
	t.Helper()
	return &Event{Kind: EventCallback, ChatID: chatID, UserID: chatID, CallbackID: "cb-" + data, CallbackData: data, State: h.load(t, chatID)}
}

func (h *harness) turns(t *testing.T, chatID int64) []dialog.Turn {
	t.Helper()
	turns, err := h.history.History(context.Background(), chatID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	return turns
}

func saleOffices(estateIDs ...int64) []dialog.Offer {
	out := make([]dialog.Offer, 0, len(estateIDs))
	for i, id := range estateIDs {
		out = append(out, dialog.Offer{
			ID:             int64(i + 1),
			EstateID:       id,
			EstateCategory: dialog.CategoryOffice,
			Deal:           dialog.DealSale,
			Square:         100,
			Price:          80_000_000,
			OfferReadiness: dialog.ReadinessFinished,
			ImageURLs:      []string{"https://img/1.jpg", "https://img/2.jpg"},
		})
	}
	return out
}
