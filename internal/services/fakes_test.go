package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/yungbote/helpdesk-backend/internal/logger"
	apperr "github.com/yungbote/helpdesk-backend/internal/pkg/errors"
	"github.com/yungbote/helpdesk-backend/internal/repos"
	"github.com/yungbote/helpdesk-backend/internal/types"
)

func testLogger() *logger.Logger {
	return logger.NewNop()
}

type fakeAI struct {
	mu      sync.Mutex
	enabled bool
	results []*CompletionResult
	err     error
	calls   []CompletionRequest
}

func (f *fakeAI) Enabled() bool { return f.enabled }

func (f *fakeAI) Complete(ctx context.Context, req CompletionRequest) (*CompletionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.results) == 0 {
		return &CompletionResult{Content: "ok"}, nil
	}
	out := f.results[0]
	if len(f.results) > 1 {
		f.results = f.results[1:]
	}
	return out, nil
}

type fakeTickets struct {
	mu           sync.Mutex
	seq          int
	tickets      map[string]*types.Ticket
	created      []CreateTicketRequest
	updates      map[string][]types.TicketPatch
	messages     map[string][]AddTicketMessageRequest
	autoResolved []string
}

func newFakeTickets() *fakeTickets {
	return &fakeTickets{
		tickets:  make(map[string]*types.Ticket),
		updates:  make(map[string][]types.TicketPatch),
		messages: make(map[string][]AddTicketMessageRequest),
	}
}

func (f *fakeTickets) Create(ctx context.Context, req CreateTicketRequest) (*types.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	number := fmt.Sprintf("TKT-TEST-%04d", f.seq)
	ticket := &types.Ticket{
		TicketNumber: number,
		Subject:      req.Subject,
		Description:  req.Description,
		Status:       types.TicketStatusNew,
		Priority:     req.Priority,
		Source:       req.Source,
	}
	f.tickets[number] = ticket
	f.created = append(f.created, req)
	return ticket, nil
}

func (f *fakeTickets) Get(ctx context.Context, key string) (*types.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.tickets[key]; ok {
		return t, nil
	}
	return nil, apperr.ErrNotFound
}

func (f *fakeTickets) List(ctx context.Context, filter repos.TicketFilter) ([]*types.Ticket, int64, error) {
	return nil, 0, nil
}

func (f *fakeTickets) Update(ctx context.Context, key string, patch types.TicketPatch) (*types.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tickets[key]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	if patch.Status != nil {
		t.Status = *patch.Status
	}
	if patch.Priority != nil {
		t.Priority = *patch.Priority
	}
	f.updates[key] = append(f.updates[key], patch)
	return t, nil
}

func (f *fakeTickets) AddMessage(ctx context.Context, key string, req AddTicketMessageRequest) (*types.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tickets[key]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	f.messages[key] = append(f.messages[key], req)
	return t, nil
}

func (f *fakeTickets) MarkAutoResolved(ctx context.Context, key, response string) (*types.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tickets[key]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	t.Status = types.TicketStatusResolved
	t.AIAutoResolved = true
	f.autoResolved = append(f.autoResolved, key)
	return t, nil
}

func (f *fakeTickets) Stats(ctx context.Context) (*repos.TicketStats, error) {
	return &repos.TicketStats{ByStatus: map[string]int64{}, ByPriority: map[string]int64{}}, nil
}

type notification struct {
	source   types.TicketSource
	identity string
	text     string
}

type fakeNotifier struct {
	mu    sync.Mutex
	sent  []notification
	signal chan struct{}
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{signal: make(chan struct{}, 16)}
}

func (f *fakeNotifier) Notify(ctx context.Context, source types.TicketSource, identity, text string) error {
	f.mu.Lock()
	f.sent = append(f.sent, notification{source: source, identity: identity, text: text})
	f.mu.Unlock()
	f.signal <- struct{}{}
	return nil
}

func (f *fakeNotifier) all() []notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notification(nil), f.sent...)
}
