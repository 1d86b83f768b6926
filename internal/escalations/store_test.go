package escalations

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/yungbote/helpdesk-backend/internal/clients/redis"
	"github.com/yungbote/helpdesk-backend/internal/logger"
	apperr "github.com/yungbote/helpdesk-backend/internal/pkg/errors"
	"github.com/yungbote/helpdesk-backend/internal/types"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	// nil Redis client forces the memory backend, the same degradation path
	// taken in production when Redis is unreachable.
	return NewStore(logger.NewNop(), nil)
}

var escSeq int

func newEscalation(overrides ...func(*types.Escalation)) *types.Escalation {
	escSeq++
	esc := &types.Escalation{
		ID:               fmt.Sprintf("id-%04d", escSeq),
		EscalationNumber: fmt.Sprintf("TKT-260831-%04d", escSeq),
	}
	for _, o := range overrides {
		o(esc)
	}
	return esc
}

func mustCreate(t *testing.T, s Store, esc *types.Escalation) *types.Escalation {
	t.Helper()
	created, err := s.Create(context.Background(), esc)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return created
}

func TestCreateRequiresIdentity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	cases := []struct {
		name string
		esc  *types.Escalation
	}{
		{"missing id", &types.Escalation{EscalationNumber: "TKT-260831-9001"}},
		{"missing number", &types.Escalation{ID: "id-9001"}},
		{"missing both", &types.Escalation{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := s.Create(ctx, tc.esc); !errors.Is(err, apperr.ErrInvalidArgument) {
				t.Fatalf("expected ErrInvalidArgument, got %v", err)
			}
		})
	}
}

func TestCreateDefaults(t *testing.T) {
	s := newTestStore(t)
	esc := mustCreate(t, s, newEscalation(func(e *types.Escalation) {
		e.ClientMessage = "Не работает принтер"
		e.Department = "it_support"
	}))

	if esc.Status != types.EscalationStatusPending {
		t.Fatalf("expected pending status, got %q", esc.Status)
	}
	if esc.Priority != types.TicketPriorityMedium {
		t.Fatalf("expected medium priority default, got %q", esc.Priority)
	}
	if esc.CreatedAt.IsZero() {
		t.Fatal("expected creation timestamp")
	}
}

func TestGetByIDAndNumber(t *testing.T) {
	s := newTestStore(t)
	esc := mustCreate(t, s, newEscalation(func(e *types.Escalation) {
		e.ClientMessage = "Аккаунт заблокирован"
	}))
	ctx := context.Background()

	byNumber, err := s.Get(ctx, esc.EscalationNumber)
	if err != nil {
		t.Fatalf("get by number: %v", err)
	}
	byID, err := s.Get(ctx, esc.ID)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if byNumber.ID != byID.ID {
		t.Fatal("lookups by id and number must resolve the same record")
	}

	if _, err := s.Get(ctx, "TKT-000000-9999"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEscalationNumberStable(t *testing.T) {
	s := newTestStore(t)
	esc := mustCreate(t, s, newEscalation())
	number := esc.EscalationNumber
	ctx := context.Background()

	status := types.EscalationStatusInProgress
	updated, err := s.Update(ctx, esc.ID, types.EscalationPatch{Status: &status})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.EscalationNumber != number {
		t.Fatalf("escalation number changed to %q", updated.EscalationNumber)
	}
	if _, err := s.AddOperatorMessage(ctx, esc.ID, "Смотрю."); err != nil {
		t.Fatalf("operator message: %v", err)
	}
	again, err := s.Get(ctx, number)
	if err != nil {
		t.Fatalf("get after updates: %v", err)
	}
	if again.EscalationNumber != number {
		t.Fatalf("escalation number changed to %q", again.EscalationNumber)
	}
}

func TestResolvedTimestampInvariant(t *testing.T) {
	s := newTestStore(t)
	esc := mustCreate(t, s, newEscalation())
	ctx := context.Background()

	if esc.ResolvedAt != nil {
		t.Fatal("new escalation must not carry ResolvedAt")
	}

	resolved := types.EscalationStatusResolved
	updated, err := s.Update(ctx, esc.ID, types.EscalationPatch{Status: &resolved})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if updated.ResolvedAt == nil {
		t.Fatal("resolved escalation must carry ResolvedAt")
	}

	reopened := types.EscalationStatusInProgress
	updated, err = s.Update(ctx, esc.ID, types.EscalationPatch{Status: &reopened})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if updated.ResolvedAt != nil {
		t.Fatal("reopened escalation must not carry ResolvedAt")
	}
}

func TestOperatorMessageSemantics(t *testing.T) {
	base := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	now := base
	s := NewStore(logger.NewNop(), nil, WithNow(func() time.Time { return now }))
	ctx := context.Background()
	esc := mustCreate(t, s, newEscalation())

	updated, err := s.AddOperatorMessage(ctx, esc.ID, "Первый ответ")
	if err != nil {
		t.Fatalf("first operator message: %v", err)
	}
	if updated.RespondedAt == nil || !updated.RespondedAt.Equal(base) {
		t.Fatalf("expected RespondedAt %v, got %v", base, updated.RespondedAt)
	}
	if updated.Status != types.EscalationStatusPending {
		t.Fatalf("operator message must not change status, got %q", updated.Status)
	}
	if updated.OperatorResponse != "Первый ответ" {
		t.Fatalf("expected mirror of latest reply, got %q", updated.OperatorResponse)
	}

	now = base.Add(10 * time.Minute)
	updated, err = s.AddOperatorMessage(ctx, esc.ID, "Второй ответ")
	if err != nil {
		t.Fatalf("second operator message: %v", err)
	}
	if !updated.RespondedAt.Equal(base) {
		t.Fatalf("RespondedAt must keep the first reply time, got %v", updated.RespondedAt)
	}
	if updated.OperatorResponse != "Второй ответ" {
		t.Fatalf("expected mirror updated, got %q", updated.OperatorResponse)
	}
	if len(updated.OperatorMessages) != 2 {
		t.Fatalf("expected 2 operator messages, got %d", len(updated.OperatorMessages))
	}
}

func TestClientMessages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	esc := mustCreate(t, s, newEscalation())

	for _, msg := range []string{"ещё вопрос", "и ещё один"} {
		if _, err := s.AddClientMessage(ctx, esc.ID, msg); err != nil {
			t.Fatalf("client message: %v", err)
		}
	}
	got, err := s.Get(ctx, esc.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.ClientMessages) != 2 {
		t.Fatalf("expected 2 client messages, got %d", len(got.ClientMessages))
	}
	if got.RespondedAt != nil {
		t.Fatal("client messages must not stamp RespondedAt")
	}
}

// Message appends land in the conversation history too, with the speaker
// role, so the full dialogue stays readable from one field.
func TestMessagesAppendToConversationHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	esc := mustCreate(t, s, newEscalation())

	if _, err := s.AddClientMessage(ctx, esc.ID, "VPN опять отвалился"); err != nil {
		t.Fatalf("client message: %v", err)
	}
	if _, err := s.AddOperatorMessage(ctx, esc.ID, "Проверяю ваш профиль"); err != nil {
		t.Fatalf("operator message: %v", err)
	}
	if _, err := s.AddClientMessage(ctx, esc.ID, "Спасибо"); err != nil {
		t.Fatalf("client message: %v", err)
	}

	got, err := s.Get(ctx, esc.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	want := []types.ChatTurn{
		{Role: types.SpeakerClient, Content: "VPN опять отвалился"},
		{Role: types.SpeakerOperator, Content: "Проверяю ваш профиль"},
		{Role: types.SpeakerClient, Content: "Спасибо"},
	}
	if len(got.ConversationHistory) != len(want) {
		t.Fatalf("expected %d history turns, got %d", len(want), len(got.ConversationHistory))
	}
	for i, turn := range want {
		if got.ConversationHistory[i] != turn {
			t.Fatalf("turn %d = %+v, want %+v", i, got.ConversationHistory[i], turn)
		}
	}
}

func TestFindActiveByChannel(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustCreate(t, s, newEscalation(func(e *types.Escalation) {
		e.Source = types.TicketSourceWhatsApp
		e.ChannelIdentity = "+77010000001"
	}))
	resolvedEsc := mustCreate(t, s, newEscalation(func(e *types.Escalation) {
		e.Source = types.TicketSourceWhatsApp
		e.ChannelIdentity = "+77010000002"
	}))
	resolved := types.EscalationStatusResolved
	if _, err := s.Update(ctx, resolvedEsc.ID, types.EscalationPatch{Status: &resolved}); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if _, err := s.FindActiveByChannel(ctx, types.TicketSourceWhatsApp, "+77010000001"); err != nil {
		t.Fatalf("expected active escalation for first number: %v", err)
	}
	if _, err := s.FindActiveByChannel(ctx, types.TicketSourceWhatsApp, "+77010000002"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("resolved escalation must not route, got %v", err)
	}
	if _, err := s.FindActiveByChannel(ctx, types.TicketSourceVoice, "+77010000001"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("source must partition routing, got %v", err)
	}
}

func TestListStatusFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	pending := mustCreate(t, s, newEscalation())
	resolvedEsc := mustCreate(t, s, newEscalation())
	resolved := types.EscalationStatusResolved
	if _, err := s.Update(ctx, resolvedEsc.ID, types.EscalationPatch{Status: &resolved}); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	all, err := s.List(ctx, "")
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 escalations unfiltered, got %d", len(all))
	}

	onlyPending, err := s.List(ctx, types.EscalationStatusPending)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(onlyPending) != 1 || onlyPending[0].EscalationNumber != pending.EscalationNumber {
		t.Fatalf("pending filter returned %+v", onlyPending)
	}

	onlyClosed, err := s.List(ctx, types.EscalationStatusClosed)
	if err != nil {
		t.Fatalf("list closed: %v", err)
	}
	if len(onlyClosed) != 0 {
		t.Fatalf("expected no closed escalations, got %d", len(onlyClosed))
	}
}

// Stats over the memory backend report backend=="memory" and count one
// record per escalation regardless of how it was mutated.
func TestStatsMemoryBackend(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	esc := mustCreate(t, s, newEscalation(func(e *types.Escalation) {
		e.Department = "it_support"
	}))
	if _, err := s.AddOperatorMessage(ctx, esc.ID, "ok"); err != nil {
		t.Fatalf("operator message: %v", err)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Backend != "memory" {
		t.Fatalf("expected memory backend, got %q", stats.Backend)
	}
	if stats.Total != 1 {
		t.Fatalf("expected total 1, got %d", stats.Total)
	}
	if stats.Pending != 1 {
		t.Fatalf("expected 1 pending, got %d", stats.Pending)
	}
	if stats.ByDepartment["it_support"] != 1 {
		t.Fatalf("unexpected department counts: %v", stats.ByDepartment)
	}
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	esc := mustCreate(t, s, newEscalation())

	if err := s.Delete(ctx, esc.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(ctx, esc.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := s.Delete(ctx, esc.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on double delete, got %v", err)
	}
}

// fakeRedis flips between unreachable and reachable. While reachable it
// holds no records and rejects every write, standing in for a Redis that
// came back empty after an outage.
type fakeRedis struct {
	connected bool
}

func (f *fakeRedis) IsConnected(context.Context) bool { return f.connected }
func (f *fakeRedis) SaveEscalation(context.Context, *types.Escalation) error {
	return errors.New("write refused")
}
func (f *fakeRedis) GetEscalation(context.Context, string) (*types.Escalation, error) {
	return nil, apperr.ErrNotFound
}
func (f *fakeRedis) AllEscalations(context.Context) ([]*types.Escalation, error) {
	return nil, nil
}
func (f *fakeRedis) DeleteEscalation(context.Context, string) error { return nil }
func (f *fakeRedis) CacheGet(context.Context, string) (string, bool, error) {
	return "", false, nil
}
func (f *fakeRedis) CacheSet(context.Context, string, string, time.Duration) error { return nil }
func (f *fakeRedis) CacheInvalidate(context.Context) (int, error)                  { return 0, nil }
func (f *fakeRedis) Close() error                                                  { return nil }

var _ redis.Client = (*fakeRedis)(nil)

// Each call routes to exactly one backend. Records written to memory while
// Redis was down stay invisible once Redis answers again, and a failed Redis
// write surfaces as an error instead of quietly landing in memory.
func TestBackendIsolation(t *testing.T) {
	ctx := context.Background()
	rc := &fakeRedis{}
	s := NewStore(logger.NewNop(), rc)

	hidden := mustCreate(t, s, newEscalation())
	if s.Backend(ctx) != "memory" {
		t.Fatalf("expected memory backend while down, got %q", s.Backend(ctx))
	}

	rc.connected = true
	if s.Backend(ctx) != "redis" {
		t.Fatalf("expected redis backend, got %q", s.Backend(ctx))
	}
	if _, err := s.Get(ctx, hidden.EscalationNumber); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("redis-routed Get must not see memory records, got %v", err)
	}
	all, err := s.List(ctx, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("redis-routed List must not merge memory records, got %d", len(all))
	}
	if _, err := s.Create(ctx, newEscalation()); err == nil {
		t.Fatal("expected create to surface the Redis write failure")
	}

	rc.connected = false
	if _, err := s.Get(ctx, hidden.EscalationNumber); err != nil {
		t.Fatalf("memory record must still be there once Redis drops again: %v", err)
	}
}

// Same-key read-modify-write is not serialized: two racing updates each read
// the original record, so the slower write wins and the faster one is lost.
// Last-write-wins is the documented behavior, not a defect to fix here.
func TestSameKeyLastWriteWins(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	esc := mustCreate(t, s, newEscalation())

	first, err := s.Get(ctx, esc.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	second, err := s.Get(ctx, esc.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	first.ClientMessages = append(first.ClientMessages, types.TimedMessage{Content: "из первого чтения"})
	second.Summary = "из второго чтения"

	// Interleaved read-modify-write, replayed deterministically.
	if _, err := s.Create(ctx, first); err != nil {
		t.Fatalf("write first: %v", err)
	}
	if _, err := s.Create(ctx, second); err != nil {
		t.Fatalf("write second: %v", err)
	}

	got, err := s.Get(ctx, esc.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Summary != "из второго чтения" {
		t.Fatalf("expected the later write to win, got summary %q", got.Summary)
	}
	if len(got.ClientMessages) != 0 {
		t.Fatal("the earlier write's message should be lost to the later full-record write")
	}
}

// Concurrent writes to distinct escalations must not corrupt the store. This
// exercises map safety only; concurrent updates to one record remain
// last-write-wins (see TestSameKeyLastWriteWins).
func TestConcurrentDistinctWrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		n := i
		go func() {
			defer wg.Done()
			esc, err := s.Create(ctx, &types.Escalation{
				ID:               fmt.Sprintf("conc-id-%02d", n),
				EscalationNumber: fmt.Sprintf("TKT-CONC-%04d", n),
			})
			if err != nil {
				t.Errorf("create: %v", err)
				return
			}
			if _, err := s.AddClientMessage(ctx, esc.ID, "msg"); err != nil {
				t.Errorf("message: %v", err)
			}
		}()
	}
	wg.Wait()

	all, err := s.List(ctx, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 20 {
		t.Fatalf("expected 20 escalations, got %d", len(all))
	}
}
