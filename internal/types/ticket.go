package types

import (
	"time"

	"github.com/google/uuid"
)

type TicketStatus string

const (
	TicketStatusNew             TicketStatus = "new"
	TicketStatusProcessing      TicketStatus = "processing"
	TicketStatusWaitingResponse TicketStatus = "waiting_response"
	TicketStatusResolved        TicketStatus = "resolved"
	TicketStatusClosed          TicketStatus = "closed"
	TicketStatusEscalated       TicketStatus = "escalated"
)

type TicketPriority string

const (
	TicketPriorityLow      TicketPriority = "low"
	TicketPriorityMedium   TicketPriority = "medium"
	TicketPriorityHigh     TicketPriority = "high"
	TicketPriorityCritical TicketPriority = "critical"
)

type TicketSource string

const (
	TicketSourceChat     TicketSource = "chat"
	TicketSourceWhatsApp TicketSource = "whatsapp"
	TicketSourceVoice    TicketSource = "voice"
	TicketSourceEmail    TicketSource = "email"
	TicketSourcePortal   TicketSource = "portal"
)

type Department struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	NameKZ    string    `gorm:"size:100" json:"name_kz"`
	Keywords  string    `gorm:"type:text" json:"keywords"`
	IsActive  bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`

	Tickets []Ticket `gorm:"foreignKey:DepartmentID" json:"-"`
}

func (Department) TableName() string {
	return "departments"
}

type Ticket struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TicketNumber string    `gorm:"size:20;uniqueIndex;not null" json:"ticket_number"`

	ClientName  string `gorm:"size:200" json:"client_name"`
	ClientEmail string `gorm:"size:320" json:"client_email"`
	ClientPhone string `gorm:"size:50" json:"client_phone"`

	Subject     string `gorm:"size:500;not null" json:"subject"`
	Description string `gorm:"type:text;not null" json:"description"`
	Language    string `gorm:"size:10;not null;default:ru" json:"language"`

	Status       TicketStatus   `gorm:"size:20;not null;default:new;index" json:"status"`
	Priority     TicketPriority `gorm:"size:20;not null;default:medium;index" json:"priority"`
	Source       TicketSource   `gorm:"size:20;not null;default:chat" json:"source"`
	DepartmentID *uuid.UUID     `gorm:"type:uuid;index" json:"department_id"`

	AIClassified        bool    `gorm:"not null;default:false" json:"ai_classified"`
	AIConfidence        float64 `json:"ai_confidence"`
	AISummary           string  `gorm:"type:text" json:"ai_summary"`
	AISuggestedResponse string  `gorm:"type:text" json:"ai_suggested_response"`
	AIAutoResolved      bool    `gorm:"not null;default:false" json:"ai_auto_resolved"`

	FirstResponseAt *time.Time `json:"first_response_at"`
	ResolvedAt      *time.Time `json:"resolved_at"`
	ClosedAt        *time.Time `json:"closed_at"`
	CreatedAt       time.Time  `gorm:"not null;index" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"not null" json:"updated_at"`

	Department *Department     `gorm:"foreignKey:DepartmentID" json:"department,omitempty"`
	Messages   []TicketMessage `gorm:"foreignKey:TicketID" json:"messages,omitempty"`
}

func (Ticket) TableName() string {
	return "tickets"
}

type TicketMessage struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	TicketID       uuid.UUID  `gorm:"type:uuid;not null;index" json:"ticket_id"`
	SenderID       *uuid.UUID `gorm:"type:uuid" json:"sender_id"`
	Content        string     `gorm:"type:text;not null" json:"content"`
	IsFromClient   bool       `gorm:"not null;default:false" json:"is_from_client"`
	IsAIGenerated  bool       `gorm:"not null;default:false" json:"is_ai_generated"`
	IsInternalNote bool       `gorm:"not null;default:false" json:"is_internal_note"`
	CreatedAt      time.Time  `gorm:"not null" json:"created_at"`
}

func (TicketMessage) TableName() string {
	return "ticket_messages"
}

// TicketPatch carries optional field updates. Nil means "leave unchanged".
type TicketPatch struct {
	Subject      *string         `json:"subject,omitempty"`
	Status       *TicketStatus   `json:"status,omitempty"`
	Priority     *TicketPriority `json:"priority,omitempty"`
	DepartmentID *uuid.UUID      `json:"department_id,omitempty"`
}
