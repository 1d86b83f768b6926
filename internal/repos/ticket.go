package repos

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	apperr "github.com/yungbote/helpdesk-backend/internal/pkg/errors"
	"github.com/yungbote/helpdesk-backend/internal/types"
)

type TicketFilter struct {
	Status       *types.TicketStatus
	Priority     *types.TicketPriority
	Source       *types.TicketSource
	DepartmentID *uuid.UUID
	Search       string
	Limit        int
	Offset       int
}

type TicketStats struct {
	Total      int64            `json:"total"`
	ByStatus   map[string]int64 `json:"by_status"`
	ByPriority map[string]int64 `json:"by_priority"`
	AIResolved int64            `json:"ai_resolved"`
}

type TicketRepo interface {
	Create(ctx context.Context, tx *gorm.DB, ticket *types.Ticket) error
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Ticket, error)
	GetByNumber(ctx context.Context, tx *gorm.DB, number string) (*types.Ticket, error)
	List(ctx context.Context, tx *gorm.DB, filter TicketFilter) ([]*types.Ticket, int64, error)
	Update(ctx context.Context, tx *gorm.DB, id uuid.UUID, patch types.TicketPatch) (*types.Ticket, error)
	AddMessage(ctx context.Context, tx *gorm.DB, msg *types.TicketMessage) error
	CountCreatedSince(ctx context.Context, tx *gorm.DB, since time.Time) (int64, error)
	Stats(ctx context.Context, tx *gorm.DB) (*TicketStats, error)
}

type ticketRepo struct {
	db *gorm.DB
}

func NewTicketRepo(db *gorm.DB) TicketRepo {
	return &ticketRepo{db: db}
}

func (r *ticketRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *ticketRepo) Create(ctx context.Context, tx *gorm.DB, ticket *types.Ticket) error {
	if ticket.ID == uuid.Nil {
		ticket.ID = uuid.New()
	}
	if err := r.conn(tx).WithContext(ctx).Create(ticket).Error; err != nil {
		return fmt.Errorf("create ticket: %w", err)
	}
	return nil
}

func (r *ticketRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Ticket, error) {
	var ticket types.Ticket
	err := r.conn(tx).WithContext(ctx).
		Preload("Department").
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		First(&ticket, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get ticket %s: %w", id, err)
	}
	return &ticket, nil
}

func (r *ticketRepo) GetByNumber(ctx context.Context, tx *gorm.DB, number string) (*types.Ticket, error) {
	var ticket types.Ticket
	err := r.conn(tx).WithContext(ctx).
		Preload("Department").
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		First(&ticket, "ticket_number = ?", number).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get ticket %s: %w", number, err)
	}
	return &ticket, nil
}

func (r *ticketRepo) List(ctx context.Context, tx *gorm.DB, filter TicketFilter) ([]*types.Ticket, int64, error) {
	q := r.conn(tx).WithContext(ctx).Model(&types.Ticket{})
	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}
	if filter.Priority != nil {
		q = q.Where("priority = ?", *filter.Priority)
	}
	if filter.Source != nil {
		q = q.Where("source = ?", *filter.Source)
	}
	if filter.DepartmentID != nil {
		q = q.Where("department_id = ?", *filter.DepartmentID)
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		q = q.Where("subject LIKE ? OR description LIKE ? OR ticket_number LIKE ?", pattern, pattern, pattern)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count tickets: %w", err)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}
	var tickets []*types.Ticket
	if err := q.Preload("Department").Order("created_at DESC").Find(&tickets).Error; err != nil {
		return nil, 0, fmt.Errorf("list tickets: %w", err)
	}
	return tickets, total, nil
}

func (r *ticketRepo) Update(ctx context.Context, tx *gorm.DB, id uuid.UUID, patch types.TicketPatch) (*types.Ticket, error) {
	updates := map[string]any{}
	if patch.Subject != nil {
		updates["subject"] = *patch.Subject
	}
	if patch.Status != nil {
		updates["status"] = *patch.Status
	}
	if patch.Priority != nil {
		updates["priority"] = *patch.Priority
	}
	if patch.DepartmentID != nil {
		updates["department_id"] = *patch.DepartmentID
	}
	if len(updates) > 0 {
		updates["updated_at"] = time.Now().UTC()
		res := r.conn(tx).WithContext(ctx).Model(&types.Ticket{}).Where("id = ?", id).Updates(updates)
		if res.Error != nil {
			return nil, fmt.Errorf("update ticket %s: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return nil, apperr.ErrNotFound
		}
	}
	return r.GetByID(ctx, tx, id)
}

func (r *ticketRepo) AddMessage(ctx context.Context, tx *gorm.DB, msg *types.TicketMessage) error {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if err := r.conn(tx).WithContext(ctx).Create(msg).Error; err != nil {
		return fmt.Errorf("add ticket message: %w", err)
	}
	return nil
}

func (r *ticketRepo) CountCreatedSince(ctx context.Context, tx *gorm.DB, since time.Time) (int64, error) {
	var n int64
	err := r.conn(tx).WithContext(ctx).Model(&types.Ticket{}).
		Where("created_at >= ?", since).Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count tickets since %s: %w", since, err)
	}
	return n, nil
}

func (r *ticketRepo) Stats(ctx context.Context, tx *gorm.DB) (*TicketStats, error) {
	stats := &TicketStats{
		ByStatus:   make(map[string]int64),
		ByPriority: make(map[string]int64),
	}
	db := r.conn(tx).WithContext(ctx).Model(&types.Ticket{})
	if err := db.Count(&stats.Total).Error; err != nil {
		return nil, fmt.Errorf("ticket stats: %w", err)
	}
	type bucket struct {
		Key string
		N   int64
	}
	var byStatus []bucket
	if err := r.conn(tx).WithContext(ctx).Model(&types.Ticket{}).
		Select("status AS key, COUNT(*) AS n").Group("status").Scan(&byStatus).Error; err != nil {
		return nil, fmt.Errorf("ticket stats by status: %w", err)
	}
	for _, b := range byStatus {
		stats.ByStatus[b.Key] = b.N
	}
	var byPriority []bucket
	if err := r.conn(tx).WithContext(ctx).Model(&types.Ticket{}).
		Select("priority AS key, COUNT(*) AS n").Group("priority").Scan(&byPriority).Error; err != nil {
		return nil, fmt.Errorf("ticket stats by priority: %w", err)
	}
	for _, b := range byPriority {
		stats.ByPriority[b.Key] = b.N
	}
	if err := r.conn(tx).WithContext(ctx).Model(&types.Ticket{}).
		Where("ai_auto_resolved = ?", true).Count(&stats.AIResolved).Error; err != nil {
		return nil, fmt.Errorf("ticket stats ai resolved: %w", err)
	}
	return stats, nil
}
