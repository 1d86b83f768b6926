package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/yungbote/helpdesk-backend/internal/escalations"
	"github.com/yungbote/helpdesk-backend/internal/knowledge"
	apperr "github.com/yungbote/helpdesk-backend/internal/pkg/errors"
	"github.com/yungbote/helpdesk-backend/internal/ragcache"
	"github.com/yungbote/helpdesk-backend/internal/sessions"
	"github.com/yungbote/helpdesk-backend/internal/types"
)

type convFixture struct {
	svc     ConversationService
	ai      *fakeAI
	tickets *fakeTickets
	store   escalations.Store
	cache   ragcache.Cache
	sess    *sessions.Store
}

func newConvFixture(t *testing.T, ai *fakeAI) *convFixture {
	t.Helper()
	log := testLogger()
	store := escalations.NewStore(log, nil)
	cache := ragcache.New(log, nil)
	sess := sessions.NewStore(log)
	tickets := newFakeTickets()
	svc := NewConversationService(
		log,
		knowledge.NewRetriever(log, knowledge.DefaultBase()),
		cache,
		store,
		sess,
		ai,
		tickets,
		NewClassifier(log),
	)
	return &convFixture{svc: svc, ai: ai, tickets: tickets, store: store, cache: cache, sess: sess}
}

func TestHandleEmptyMessage(t *testing.T) {
	f := newConvFixture(t, &fakeAI{})
	_, err := f.svc.Handle(context.Background(), ConversationRequest{Message: "   "})
	if err == nil {
		t.Fatal("expected error on blank message")
	}
}

func TestHandleFallbackWithoutModel(t *testing.T) {
	f := newConvFixture(t, &fakeAI{enabled: false})

	res, err := f.svc.Handle(context.Background(), ConversationRequest{
		Message: "Как подключиться к VPN?",
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if res.Cached {
		t.Fatal("first query must not be cached")
	}
	if res.Reply == "" {
		t.Fatal("expected knowledge base answer")
	}
	if res.Escalated {
		t.Fatal("plain question must not escalate")
	}
}

func TestHandleCacheRoundTrip(t *testing.T) {
	f := newConvFixture(t, &fakeAI{enabled: true, results: []*CompletionResult{{Content: "Ответ про VPN"}}})
	ctx := context.Background()

	first, err := f.svc.Handle(ctx, ConversationRequest{Message: "Как подключиться к VPN?", Language: "ru"})
	if err != nil {
		t.Fatalf("first handle: %v", err)
	}
	if first.Cached {
		t.Fatal("first answer must be fresh")
	}

	// Same question, different case and spacing, must be served from cache
	// without another completion.
	second, err := f.svc.Handle(ctx, ConversationRequest{Message: "  КАК ПОДКЛЮЧИТЬСЯ К VPN?  ", Language: "ru"})
	if err != nil {
		t.Fatalf("second handle: %v", err)
	}
	if !second.Cached {
		t.Fatal("repeat question must hit the cache")
	}
	if second.Reply != first.Reply {
		t.Fatalf("cached reply differs: %q vs %q", second.Reply, first.Reply)
	}
	if n := len(f.ai.calls); n != 1 {
		t.Fatalf("expected one completion call, got %d", n)
	}
}

func TestHandleKnowledgeDerivations(t *testing.T) {
	f := newConvFixture(t, &fakeAI{enabled: true, results: []*CompletionResult{{Content: "Ответ про VPN"}}})
	ctx := context.Background()

	first, err := f.svc.Handle(ctx, ConversationRequest{Message: "Как подключиться к VPN?", Language: "ru"})
	if err != nil {
		t.Fatalf("first handle: %v", err)
	}
	if len(first.Sources) == 0 {
		t.Fatal("expected knowledge base sources")
	}
	if first.Sources[0].Question != "Как подключиться к VPN?" {
		t.Fatalf("unexpected top source: %+v", first.Sources[0])
	}
	if first.Sources[0].Category == "" || first.Sources[0].Subcategory == "" {
		t.Fatalf("source missing category path: %+v", first.Sources[0])
	}
	// The VPN article is auto-resolvable with medium priority.
	if !first.CanAutoResolve {
		t.Fatal("expected auto-resolvable answer")
	}
	if first.SuggestedPriority != types.TicketPriorityMedium {
		t.Fatalf("expected medium priority, got %q", first.SuggestedPriority)
	}

	// The cache stores the full answer; a hit restores the derivations too.
	second, err := f.svc.Handle(ctx, ConversationRequest{Message: "Как подключиться к VPN?", Language: "ru"})
	if err != nil {
		t.Fatalf("second handle: %v", err)
	}
	if !second.Cached {
		t.Fatal("expected cache hit")
	}
	if len(second.Sources) != len(first.Sources) || second.Sources[0] != first.Sources[0] {
		t.Fatalf("cached sources differ: %+v vs %+v", second.Sources, first.Sources)
	}
	if second.CanAutoResolve != first.CanAutoResolve || second.SuggestedPriority != first.SuggestedPriority {
		t.Fatalf("cached derivations differ: %+v vs %+v", second, first)
	}
}

func TestHandleUnmatchedQueryDefaultsPriority(t *testing.T) {
	f := newConvFixture(t, &fakeAI{enabled: true, results: []*CompletionResult{{Content: "Уточните, пожалуйста, вопрос."}}})

	res, err := f.svc.Handle(context.Background(), ConversationRequest{Message: "Чем кормить офисного кота?"})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(res.Sources) != 0 {
		t.Fatalf("expected no sources, got %+v", res.Sources)
	}
	if res.CanAutoResolve {
		t.Fatal("no matches must not auto resolve")
	}
	if res.SuggestedPriority != types.TicketPriorityMedium {
		t.Fatalf("expected medium default, got %q", res.SuggestedPriority)
	}
}

func escalateCall(t *testing.T) ToolCall {
	t.Helper()
	args, err := json.Marshal(map[string]string{
		"reason":     "клиент просит человека",
		"department": "it_support",
		"priority":   "high",
		"summary":    "Не работает VPN после смены пароля",
	})
	if err != nil {
		t.Fatalf("marshal args: %v", err)
	}
	return ToolCall{Name: "escalate_to_operator", Arguments: args}
}

func TestHandleEscalation(t *testing.T) {
	f := newConvFixture(t, &fakeAI{enabled: true, results: []*CompletionResult{
		{ToolCalls: []ToolCall{}},
	}})
	f.ai.results = []*CompletionResult{{ToolCalls: []ToolCall{escalateCall(t)}}}
	ctx := context.Background()

	res, err := f.svc.Handle(ctx, ConversationRequest{
		Message:  "Соедините меня с оператором, VPN не работает",
		Source:   types.TicketSourceWhatsApp,
		Identity: "+77010001122",
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !res.Escalated || res.EscalationNumber == "" {
		t.Fatalf("expected escalation, got %+v", res)
	}

	esc, err := f.store.Get(ctx, res.EscalationNumber)
	if err != nil {
		t.Fatalf("escalation not stored: %v", err)
	}
	if esc.ChannelIdentity != "+77010001122" || esc.Source != types.TicketSourceWhatsApp {
		t.Fatalf("escalation channel wrong: %+v", esc)
	}
	if esc.TicketID == "" {
		t.Fatal("escalation must link its ticket")
	}
	ticket, err := f.tickets.Get(ctx, esc.TicketID)
	if err != nil {
		t.Fatalf("linked ticket missing: %v", err)
	}
	if ticket.Status != types.TicketStatusEscalated {
		t.Fatalf("expected escalated ticket, got %q", ticket.Status)
	}

	// Escalation replies are personal and must not be cached.
	if _, ok := f.cache.Get(ctx, "Соедините меня с оператором, VPN не работает", res.Language); ok {
		t.Fatal("escalation reply leaked into the cache")
	}
}

func TestHandleRoutedFollowUp(t *testing.T) {
	f := newConvFixture(t, &fakeAI{enabled: true, results: []*CompletionResult{
		{ToolCalls: []ToolCall{escalateCall(t)}},
	}})
	ctx := context.Background()
	req := ConversationRequest{
		Message:  "Нужен оператор",
		Source:   types.TicketSourceWhatsApp,
		Identity: "+77010001122",
	}
	res, err := f.svc.Handle(ctx, req)
	if err != nil {
		t.Fatalf("escalating handle: %v", err)
	}

	// Follow-up goes to the operator, not the model.
	req.Message = "Ещё детали: ошибка 691"
	followUp, err := f.svc.Handle(ctx, req)
	if err != nil {
		t.Fatalf("follow-up handle: %v", err)
	}
	if !followUp.Escalated || followUp.EscalationNumber != res.EscalationNumber {
		t.Fatalf("follow-up not routed to escalation: %+v", followUp)
	}
	if n := len(f.ai.calls); n != 1 {
		t.Fatalf("model must not see routed messages, got %d calls", n)
	}
	esc, err := f.store.Get(ctx, res.EscalationNumber)
	if err != nil {
		t.Fatalf("get escalation: %v", err)
	}
	if len(esc.ClientMessages) != 1 || esc.ClientMessages[0].Content != "Ещё детали: ошибка 691" {
		t.Fatalf("client message not appended: %+v", esc.ClientMessages)
	}
}

func TestHandleResolvedRouteFallsThrough(t *testing.T) {
	f := newConvFixture(t, &fakeAI{enabled: true, results: []*CompletionResult{
		{ToolCalls: []ToolCall{escalateCall(t)}},
		{Content: "Снова на связи ассистент"},
	}})
	ctx := context.Background()
	req := ConversationRequest{
		Message:  "Нужен оператор",
		Source:   types.TicketSourceWhatsApp,
		Identity: "+77010001122",
	}
	res, err := f.svc.Handle(ctx, req)
	if err != nil {
		t.Fatalf("escalating handle: %v", err)
	}

	resolved := types.EscalationStatusResolved
	if _, err := f.store.Update(ctx, res.EscalationNumber, types.EscalationPatch{Status: &resolved}); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	req.Message = "Новый вопрос: как оформить отпуск?"
	after, err := f.svc.Handle(ctx, req)
	if err != nil {
		t.Fatalf("post-resolve handle: %v", err)
	}
	if after.Escalated {
		t.Fatal("resolved escalation must not capture new messages")
	}
	if after.Reply != "Снова на связи ассистент" {
		t.Fatalf("expected assistant reply, got %q", after.Reply)
	}
}

func TestHandleCreateTicketAndAutoResolve(t *testing.T) {
	createArgs, _ := json.Marshal(map[string]string{
		"subject":     "Заменить картридж",
		"description": "Принтер на 3 этаже печатает бледно",
		"department":  "it_support",
		"priority":    "low",
	})
	f := newConvFixture(t, &fakeAI{enabled: true, results: []*CompletionResult{{
		Content: "Создал тикет, картридж заменят.",
		ToolCalls: []ToolCall{
			{Name: "create_ticket", Arguments: createArgs},
			{Name: "mark_resolved_by_ai", Arguments: json.RawMessage(`{}`)},
		},
	}}})
	ctx := context.Background()

	res, err := f.svc.Handle(ctx, ConversationRequest{Message: "Принтер печатает бледно, замените картридж"})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if res.TicketNumber == "" {
		t.Fatal("expected ticket number")
	}
	if !res.AutoResolved {
		t.Fatal("expected auto resolution")
	}
	ticket, err := f.tickets.Get(ctx, res.TicketNumber)
	if err != nil {
		t.Fatalf("ticket: %v", err)
	}
	if !ticket.AIAutoResolved || ticket.Status != types.TicketStatusResolved {
		t.Fatalf("ticket not auto resolved: %+v", ticket)
	}
}

func TestHandleModelFailureFallsBack(t *testing.T) {
	f := newConvFixture(t, &fakeAI{enabled: true, err: context.DeadlineExceeded})

	res, err := f.svc.Handle(context.Background(), ConversationRequest{Message: "Как подключиться к VPN?"})
	if err != nil {
		t.Fatalf("handle must not fail on model errors: %v", err)
	}
	if res.Reply == "" {
		t.Fatal("expected knowledge fallback reply")
	}
}

func TestHandleNotFoundIsInvalid(t *testing.T) {
	f := newConvFixture(t, &fakeAI{})
	_, err := f.svc.Handle(context.Background(), ConversationRequest{Message: ""})
	if !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}
