package sessions

import (
	"fmt"
	"testing"

	"github.com/yungbote/helpdesk-backend/internal/logger"
	"github.com/yungbote/helpdesk-backend/internal/types"
)

func TestHistoryCap(t *testing.T) {
	s := NewStore(logger.NewNop())
	for i := 0; i < maxHistoryTurns+5; i++ {
		s.AppendTurn(types.TicketSourceChat, "sess-1", types.ChatTurn{
			Role:    types.SpeakerClient,
			Content: fmt.Sprintf("message %d", i),
		})
	}
	history := s.Get(types.TicketSourceChat, "sess-1").History
	if len(history) != maxHistoryTurns {
		t.Fatalf("history length = %d, want %d", len(history), maxHistoryTurns)
	}
	if got, want := history[len(history)-1].Content, fmt.Sprintf("message %d", maxHistoryTurns+4); got != want {
		t.Fatalf("newest turn = %q, want %q", got, want)
	}
	if got, want := history[0].Content, "message 5"; got != want {
		t.Fatalf("oldest kept turn = %q, want %q", got, want)
	}
}

func TestSourcePartitioning(t *testing.T) {
	s := NewStore(logger.NewNop())
	s.AppendTurn(types.TicketSourceChat, "id-1", types.ChatTurn{Role: types.SpeakerClient, Content: "chat"})
	s.AppendTurn(types.TicketSourceWhatsApp, "id-1", types.ChatTurn{Role: types.SpeakerClient, Content: "whatsapp"})

	if got := s.Get(types.TicketSourceChat, "id-1").History; len(got) != 1 || got[0].Content != "chat" {
		t.Fatalf("chat session history = %+v", got)
	}
	if got := s.Get(types.TicketSourceWhatsApp, "id-1").History; len(got) != 1 || got[0].Content != "whatsapp" {
		t.Fatalf("whatsapp session history = %+v", got)
	}
}

func TestRouting(t *testing.T) {
	s := NewStore(logger.NewNop())
	s.Route(types.TicketSourceWhatsApp, "+7700", "TKT-1")
	s.Route(types.TicketSourceChat, "web-1", "TKT-1")
	s.Route(types.TicketSourceChat, "web-2", "TKT-2")

	if got := s.Get(types.TicketSourceWhatsApp, "+7700").EscalationNumber; got != "TKT-1" {
		t.Fatalf("escalation number = %q, want TKT-1", got)
	}
	if n := len(s.FindByEscalation("TKT-1")); n != 2 {
		t.Fatalf("FindByEscalation(TKT-1) = %d sessions, want 2", n)
	}

	s.ClearRouteByEscalation("TKT-1")
	if got := s.Get(types.TicketSourceWhatsApp, "+7700").EscalationNumber; got != "" {
		t.Fatalf("route not cleared: %q", got)
	}
	if got := s.Get(types.TicketSourceChat, "web-2").EscalationNumber; got != "TKT-2" {
		t.Fatalf("unrelated route cleared: %q", got)
	}
}

func TestMarkSeen(t *testing.T) {
	s := NewStore(logger.NewNop())
	if s.MarkSeen("SM123") {
		t.Fatal("first sighting reported as duplicate")
	}
	if !s.MarkSeen("SM123") {
		t.Fatal("second sighting not reported as duplicate")
	}
	if s.MarkSeen("") {
		t.Fatal("empty sid treated as duplicate")
	}
}

func TestGetReturnsCopy(t *testing.T) {
	s := NewStore(logger.NewNop())
	s.AppendTurn(types.TicketSourceChat, "c", types.ChatTurn{Role: types.SpeakerClient, Content: "original"})
	cp := s.Get(types.TicketSourceChat, "c")
	cp.History[0].Content = "mutated"
	if got := s.Get(types.TicketSourceChat, "c").History[0].Content; got != "original" {
		t.Fatalf("stored history mutated through copy: %q", got)
	}
}
