package types

import "time"

type EscalationStatus string

const (
	EscalationStatusPending    EscalationStatus = "pending"
	EscalationStatusInProgress EscalationStatus = "in_progress"
	EscalationStatusResolved   EscalationStatus = "resolved"
	EscalationStatusClosed     EscalationStatus = "closed"
)

// Active reports whether an escalation in this status still belongs to the
// operator queue and to the channel routing table.
func (s EscalationStatus) Active() bool {
	return s != EscalationStatusResolved && s != EscalationStatusClosed
}

type SpeakerRole string

const (
	SpeakerClient    SpeakerRole = "client"
	SpeakerOperator  SpeakerRole = "operator"
	SpeakerAssistant SpeakerRole = "assistant"
)

type ChatTurn struct {
	Content string      `json:"content"`
	Role    SpeakerRole `json:"role"`
}

type TimedMessage struct {
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Escalation is a conversation handed off from automation to a human
// operator. ID is internal; EscalationNumber is the externally visible
// identifier and never changes once assigned (it usually equals the linked
// ticket's number).
type Escalation struct {
	ID               string           `json:"id"`
	EscalationNumber string           `json:"escalation_number"`
	ClientMessage    string           `json:"client_message"`
	Summary          string           `json:"summary"`
	Reason           string           `json:"reason"`
	Department       string           `json:"department"`
	DepartmentName   string           `json:"department_name"`
	Priority         TicketPriority   `json:"priority"`
	Status           EscalationStatus `json:"status"`

	ConversationHistory []ChatTurn     `json:"conversation_history"`
	ClientMessages      []TimedMessage `json:"client_messages"`
	OperatorMessages    []TimedMessage `json:"operator_messages"`
	OperatorResponse    string         `json:"operator_response,omitempty"`

	TicketID        string       `json:"ticket_id,omitempty"`
	Source          TicketSource `json:"source"`
	ChannelIdentity string       `json:"channel_identity,omitempty"`
	ClientName      string       `json:"client_name,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	RespondedAt *time.Time `json:"responded_at,omitempty"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}

// EscalationPatch carries optional field updates merged onto a stored
// escalation. Nil means "leave unchanged".
type EscalationPatch struct {
	Status           *EscalationStatus `json:"status,omitempty"`
	Priority         *TicketPriority   `json:"priority,omitempty"`
	Department       *string           `json:"department,omitempty"`
	Summary          *string           `json:"summary,omitempty"`
	Reason           *string           `json:"reason,omitempty"`
	OperatorResponse *string           `json:"operator_response,omitempty"`
	ResolvedAt       *time.Time        `json:"resolved_at,omitempty"`
}

type EscalationStats struct {
	Total        int            `json:"total"`
	Pending      int            `json:"pending"`
	InProgress   int            `json:"in_progress"`
	Resolved     int            `json:"resolved"`
	ByDepartment map[string]int `json:"by_department"`
	ByPriority   map[string]int `json:"by_priority"`
	Backend      string         `json:"backend"`
}
