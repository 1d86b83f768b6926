package sessions

import (
	"sync"
	"time"

	"github.com/yungbote/helpdesk-backend/internal/logger"
	"github.com/yungbote/helpdesk-backend/internal/types"
)

// Session is the per-identity conversation state of one channel: recent
// history for prompt context, the client's display name when the channel
// supplies one, and the escalation the identity is currently routed to.
type Session struct {
	Identity         string
	Source           types.TicketSource
	ClientName       string
	Language         string
	History          []types.ChatTurn
	EscalationNumber string
	LastSeen         time.Time
}

const maxHistoryTurns = 20

// Store keeps sessions in process memory. Sessions are conversational
// convenience, not durable state; restarting the service forgets them and
// clients simply start a fresh dialogue.
type Store struct {
	log *logger.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	seenSIDs map[string]bool
}

func sessionKey(source types.TicketSource, identity string) string {
	return string(source) + ":" + identity
}

func NewStore(log *logger.Logger) *Store {
	return &Store{
		log:      log.With("service", "SessionStore"),
		sessions: make(map[string]*Session),
		seenSIDs: make(map[string]bool),
	}
}

// Get returns a copy of the session, creating it on first contact.
func (s *Store) Get(source types.TicketSource, identity string) Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.getLocked(source, identity)
	cp := *sess
	cp.History = append([]types.ChatTurn(nil), sess.History...)
	return cp
}

func (s *Store) getLocked(source types.TicketSource, identity string) *Session {
	key := sessionKey(source, identity)
	sess, ok := s.sessions[key]
	if !ok {
		sess = &Session{Identity: identity, Source: source}
		s.sessions[key] = sess
	}
	sess.LastSeen = time.Now()
	return sess
}

func (s *Store) SetClientName(source types.TicketSource, identity, name string) {
	if name == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getLocked(source, identity).ClientName = name
}

func (s *Store) SetLanguage(source types.TicketSource, identity, lang string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getLocked(source, identity).Language = lang
}

// AppendTurn records a dialogue turn, keeping only the newest turns.
func (s *Store) AppendTurn(source types.TicketSource, identity string, turn types.ChatTurn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.getLocked(source, identity)
	sess.History = append(sess.History, turn)
	if len(sess.History) > maxHistoryTurns {
		sess.History = sess.History[len(sess.History)-maxHistoryTurns:]
	}
}

// Route binds the identity to an escalation so following inbound messages go
// to the operator instead of the assistant.
func (s *Store) Route(source types.TicketSource, identity, escalationNumber string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getLocked(source, identity).EscalationNumber = escalationNumber
	s.log.Info("channel routed to escalation",
		"source", source, "identity", identity, "escalation_number", escalationNumber)
}

// ClearRoute detaches the identity from its escalation, returning the
// conversation to the assistant.
func (s *Store) ClearRoute(source types.TicketSource, identity string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getLocked(source, identity).EscalationNumber = ""
}

// ClearRouteByEscalation detaches every identity routed to the escalation.
func (s *Store) ClearRouteByEscalation(escalationNumber string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		if sess.EscalationNumber == escalationNumber {
			sess.EscalationNumber = ""
		}
	}
}

// FindByEscalation returns identities currently routed to the escalation.
func (s *Store) FindByEscalation(escalationNumber string) []Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Session
	for _, sess := range s.sessions {
		if sess.EscalationNumber == escalationNumber {
			cp := *sess
			cp.History = append([]types.ChatTurn(nil), sess.History...)
			out = append(out, cp)
		}
	}
	return out
}

// MarkSeen records a provider message ID and reports whether it was already
// processed. Twilio redelivers webhooks, so handlers drop duplicates.
func (s *Store) MarkSeen(messageSID string) bool {
	if messageSID == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seenSIDs[messageSID] {
		return true
	}
	s.seenSIDs[messageSID] = true
	return false
}
