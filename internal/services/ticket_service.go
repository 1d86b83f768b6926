package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/helpdesk-backend/internal/logger"
	apperr "github.com/yungbote/helpdesk-backend/internal/pkg/errors"
	"github.com/yungbote/helpdesk-backend/internal/repos"
	"github.com/yungbote/helpdesk-backend/internal/types"
)

type CreateTicketRequest struct {
	ClientName  string               `json:"client_name"`
	ClientEmail string               `json:"client_email"`
	ClientPhone string               `json:"client_phone"`
	Subject     string               `json:"subject" binding:"required"`
	Description string               `json:"description" binding:"required"`
	Language    string               `json:"language"`
	Priority    types.TicketPriority `json:"priority"`
	Department  string               `json:"department"`
	Source      types.TicketSource   `json:"source"`

	AIClassified        bool    `json:"-"`
	AIConfidence        float64 `json:"-"`
	AISummary           string  `json:"-"`
	AISuggestedResponse string  `json:"-"`
}

type AddTicketMessageRequest struct {
	Content        string `json:"content" binding:"required"`
	IsFromClient   bool   `json:"is_from_client"`
	IsAIGenerated  bool   `json:"is_ai_generated"`
	IsInternalNote bool   `json:"is_internal_note"`
}

type TicketService interface {
	Create(ctx context.Context, req CreateTicketRequest) (*types.Ticket, error)
	Get(ctx context.Context, key string) (*types.Ticket, error)
	List(ctx context.Context, filter repos.TicketFilter) ([]*types.Ticket, int64, error)
	Update(ctx context.Context, key string, patch types.TicketPatch) (*types.Ticket, error)
	AddMessage(ctx context.Context, key string, req AddTicketMessageRequest) (*types.Ticket, error)
	MarkAutoResolved(ctx context.Context, key, response string) (*types.Ticket, error)
	Stats(ctx context.Context) (*repos.TicketStats, error)
}

type ticketService struct {
	log        *logger.Logger
	db         *gorm.DB
	tickets    repos.TicketRepo
	depts      repos.DepartmentRepo
	classifier Classifier
	now        func() time.Time
}

func NewTicketService(log *logger.Logger, db *gorm.DB, tickets repos.TicketRepo, depts repos.DepartmentRepo, classifier Classifier) TicketService {
	return &ticketService{
		log:        log.With("service", "TicketService"),
		db:         db,
		tickets:    tickets,
		depts:      depts,
		classifier: classifier,
		now:        time.Now,
	}
}

// Create classifies the request where fields are missing, assigns the next
// ticket number for today and stores the ticket with its opening message.
func (s *ticketService) Create(ctx context.Context, req CreateTicketRequest) (*types.Ticket, error) {
	if req.Subject == "" || req.Description == "" {
		return nil, fmt.Errorf("%w: subject and description required", apperr.ErrInvalidArgument)
	}

	cls := s.classifier.Classify(req.Subject + " " + req.Description)
	if req.Language == "" {
		req.Language = cls.Language
	}
	if req.Priority == "" {
		req.Priority = cls.Priority
		req.AIClassified = true
		req.AIConfidence = cls.Confidence
	}
	if req.Department == "" {
		req.Department = cls.Department
	}
	if req.Source == "" {
		req.Source = types.TicketSourcePortal
	}

	var deptID *uuid.UUID
	if req.Department != "" {
		dept, err := s.depts.GetByName(ctx, nil, req.Department)
		if err == nil {
			deptID = &dept.ID
		} else if !errors.Is(err, apperr.ErrNotFound) {
			return nil, err
		}
	}

	number, err := s.nextTicketNumber(ctx)
	if err != nil {
		return nil, err
	}

	ticket := &types.Ticket{
		TicketNumber:        number,
		ClientName:          req.ClientName,
		ClientEmail:         req.ClientEmail,
		ClientPhone:         req.ClientPhone,
		Subject:             req.Subject,
		Description:         req.Description,
		Language:            req.Language,
		Status:              types.TicketStatusNew,
		Priority:            req.Priority,
		Source:              req.Source,
		DepartmentID:        deptID,
		AIClassified:        req.AIClassified,
		AIConfidence:        req.AIConfidence,
		AISummary:           req.AISummary,
		AISuggestedResponse: req.AISuggestedResponse,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.tickets.Create(ctx, tx, ticket); err != nil {
			return err
		}
		return s.tickets.AddMessage(ctx, tx, &types.TicketMessage{
			TicketID:     ticket.ID,
			Content:      req.Description,
			IsFromClient: true,
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("ticket created",
		"ticket_number", ticket.TicketNumber,
		"priority", ticket.Priority,
		"source", ticket.Source,
		"department", req.Department)
	return s.tickets.GetByID(ctx, nil, ticket.ID)
}

// nextTicketNumber yields TKT-YYMMDD-NNNN where NNNN counts tickets created
// since local midnight.
func (s *ticketService) nextTicketNumber(ctx context.Context) (string, error) {
	now := s.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	n, err := s.tickets.CountCreatedSince(ctx, nil, midnight)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("TKT-%s-%04d", now.Format("060102"), n+1), nil
}

// Get resolves key as a ticket UUID or a ticket number.
func (s *ticketService) Get(ctx context.Context, key string) (*types.Ticket, error) {
	if id, err := uuid.Parse(key); err == nil {
		return s.tickets.GetByID(ctx, nil, id)
	}
	return s.tickets.GetByNumber(ctx, nil, key)
}

func (s *ticketService) List(ctx context.Context, filter repos.TicketFilter) ([]*types.Ticket, int64, error) {
	return s.tickets.List(ctx, nil, filter)
}

// Update applies the patch and stamps the lifecycle timestamps that follow
// from status changes.
func (s *ticketService) Update(ctx context.Context, key string, patch types.TicketPatch) (*types.Ticket, error) {
	ticket, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	updated, err := s.tickets.Update(ctx, nil, ticket.ID, patch)
	if err != nil {
		return nil, err
	}
	if patch.Status != nil {
		now := s.now().UTC()
		stamp := map[string]any{}
		switch *patch.Status {
		case types.TicketStatusResolved:
			if updated.ResolvedAt == nil {
				stamp["resolved_at"] = now
			}
		case types.TicketStatusClosed:
			if updated.ClosedAt == nil {
				stamp["closed_at"] = now
			}
		}
		if len(stamp) > 0 {
			if err := s.db.WithContext(ctx).Model(&types.Ticket{}).
				Where("id = ?", updated.ID).Updates(stamp).Error; err != nil {
				return nil, fmt.Errorf("stamp ticket %s: %w", updated.TicketNumber, err)
			}
			updated, err = s.tickets.GetByID(ctx, nil, updated.ID)
			if err != nil {
				return nil, err
			}
		}
	}
	return updated, nil
}

// AddMessage appends a message. The first non-internal staff reply stamps
// FirstResponseAt and moves a new ticket to processing.
func (s *ticketService) AddMessage(ctx context.Context, key string, req AddTicketMessageRequest) (*types.Ticket, error) {
	if req.Content == "" {
		return nil, fmt.Errorf("%w: content required", apperr.ErrInvalidArgument)
	}
	ticket, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.tickets.AddMessage(ctx, tx, &types.TicketMessage{
			TicketID:       ticket.ID,
			Content:        req.Content,
			IsFromClient:   req.IsFromClient,
			IsAIGenerated:  req.IsAIGenerated,
			IsInternalNote: req.IsInternalNote,
		}); err != nil {
			return err
		}
		if !req.IsFromClient && !req.IsInternalNote {
			updates := map[string]any{"updated_at": s.now().UTC()}
			if ticket.FirstResponseAt == nil {
				updates["first_response_at"] = s.now().UTC()
			}
			if ticket.Status == types.TicketStatusNew {
				updates["status"] = types.TicketStatusProcessing
			}
			return tx.Model(&types.Ticket{}).Where("id = ?", ticket.ID).Updates(updates).Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.tickets.GetByID(ctx, nil, ticket.ID)
}

// MarkAutoResolved resolves a ticket the assistant answered on its own and
// records the answer as an AI message.
func (s *ticketService) MarkAutoResolved(ctx context.Context, key, response string) (*types.Ticket, error) {
	ticket, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if response != "" {
			if err := s.tickets.AddMessage(ctx, tx, &types.TicketMessage{
				TicketID:      ticket.ID,
				Content:       response,
				IsAIGenerated: true,
			}); err != nil {
				return err
			}
		}
		updates := map[string]any{
			"status":           types.TicketStatusResolved,
			"ai_auto_resolved": true,
			"resolved_at":      now,
			"updated_at":       now,
		}
		if ticket.FirstResponseAt == nil {
			updates["first_response_at"] = now
		}
		return tx.Model(&types.Ticket{}).Where("id = ?", ticket.ID).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("ticket auto resolved", "ticket_number", ticket.TicketNumber)
	return s.tickets.GetByID(ctx, nil, ticket.ID)
}

func (s *ticketService) Stats(ctx context.Context) (*repos.TicketStats, error) {
	return s.tickets.Stats(ctx, nil)
}
