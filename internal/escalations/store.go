package escalations

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/yungbote/helpdesk-backend/internal/clients/redis"
	"github.com/yungbote/helpdesk-backend/internal/logger"
	"github.com/yungbote/helpdesk-backend/internal/pkg/ctxutil"
	apperr "github.com/yungbote/helpdesk-backend/internal/pkg/errors"
	"github.com/yungbote/helpdesk-backend/internal/types"
)

// Store keeps operator escalations. Every call routes to exactly one
// backend, Redis when it is reachable and process memory otherwise. The two
// are never synchronized or merged: a record written during a Redis outage
// is invisible once Redis is back, and the other way around. That gap is a
// property of the store, not something callers should compensate for.
type Store interface {
	Create(ctx context.Context, esc *types.Escalation) (*types.Escalation, error)
	Get(ctx context.Context, key string) (*types.Escalation, error)
	List(ctx context.Context, status types.EscalationStatus) ([]*types.Escalation, error)
	Update(ctx context.Context, key string, patch types.EscalationPatch) (*types.Escalation, error)
	AddClientMessage(ctx context.Context, key, content string) (*types.Escalation, error)
	AddOperatorMessage(ctx context.Context, key, content string) (*types.Escalation, error)
	Delete(ctx context.Context, key string) error
	FindActiveByChannel(ctx context.Context, source types.TicketSource, identity string) (*types.Escalation, error)
	Stats(ctx context.Context) (*types.EscalationStats, error)
	Backend(ctx context.Context) string
}

type store struct {
	log   *logger.Logger
	redis redis.Client
	mem   *memoryBackend
	now   func() time.Time
}

type Option func(*store)

// WithNow overrides the clock, used by tests.
func WithNow(now func() time.Time) Option {
	return func(s *store) { s.now = now }
}

func NewStore(log *logger.Logger, rc redis.Client, opts ...Option) Store {
	s := &store{
		log:   log.With("service", "EscalationStore"),
		redis: rc,
		mem:   newMemoryBackend(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *store) Backend(ctx context.Context) string {
	if s.redis != nil && s.redis.IsConnected(ctxutil.Default(ctx)) {
		return "redis"
	}
	return "memory"
}

// Create stores the escalation. The caller supplies both ID and
// EscalationNumber; the store assigns no identity of its own. The escalation
// number is fixed at creation and never changes afterwards.
func (s *store) Create(ctx context.Context, esc *types.Escalation) (*types.Escalation, error) {
	ctx = ctxutil.Default(ctx)
	if esc.ID == "" || esc.EscalationNumber == "" {
		return nil, fmt.Errorf("%w: id and escalation_number required", apperr.ErrInvalidArgument)
	}
	if esc.Status == "" {
		esc.Status = types.EscalationStatusPending
	}
	if esc.Priority == "" {
		esc.Priority = types.TicketPriorityMedium
	}
	if esc.CreatedAt.IsZero() {
		esc.CreatedAt = s.now().UTC()
	}
	backend := s.Backend(ctx)
	if err := s.save(ctx, esc, backend); err != nil {
		return nil, err
	}
	s.log.Info("escalation created",
		"escalation_number", esc.EscalationNumber,
		"department", esc.Department,
		"priority", esc.Priority,
		"backend", backend)
	return esc, nil
}

// Get resolves key as either the escalation ID or the escalation number,
// against whichever backend is active for this call only. Direct key match
// first, then a full scan matching either field.
func (s *store) Get(ctx context.Context, key string) (*types.Escalation, error) {
	ctx = ctxutil.Default(ctx)
	if s.Backend(ctx) == "redis" {
		esc, err := s.redis.GetEscalation(ctx, key)
		if err == nil {
			return esc, nil
		}
		if !errors.Is(err, apperr.ErrNotFound) {
			return nil, err
		}
		all, err := s.redis.AllEscalations(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range all {
			if e.ID == key {
				return e, nil
			}
		}
		return nil, apperr.ErrNotFound
	}
	if esc, ok := s.mem.get(key); ok {
		return esc, nil
	}
	return nil, apperr.ErrNotFound
}

// List returns escalations from the active backend only, newest first,
// optionally filtered by status.
func (s *store) List(ctx context.Context, status types.EscalationStatus) ([]*types.Escalation, error) {
	ctx = ctxutil.Default(ctx)
	var out []*types.Escalation
	if s.Backend(ctx) == "redis" {
		all, err := s.redis.AllEscalations(ctx)
		if err != nil {
			return nil, err
		}
		out = all
	} else {
		out = s.mem.all()
	}
	if status != "" {
		filtered := out[:0]
		for _, esc := range out {
			if esc.Status == status {
				filtered = append(filtered, esc)
			}
		}
		out = filtered
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Update applies the patch. Setting status to resolved stamps ResolvedAt;
// moving away from resolved clears it again.
func (s *store) Update(ctx context.Context, key string, patch types.EscalationPatch) (*types.Escalation, error) {
	ctx = ctxutil.Default(ctx)
	esc, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if patch.Status != nil {
		esc.Status = *patch.Status
	}
	if patch.Priority != nil {
		esc.Priority = *patch.Priority
	}
	if patch.Department != nil {
		esc.Department = *patch.Department
	}
	if patch.Summary != nil {
		esc.Summary = *patch.Summary
	}
	if patch.Reason != nil {
		esc.Reason = *patch.Reason
	}
	if patch.OperatorResponse != nil {
		esc.OperatorResponse = *patch.OperatorResponse
	}
	if patch.ResolvedAt != nil {
		esc.ResolvedAt = patch.ResolvedAt
	}
	if esc.Status == types.EscalationStatusResolved {
		if esc.ResolvedAt == nil {
			ts := s.now().UTC()
			esc.ResolvedAt = &ts
		}
	} else {
		esc.ResolvedAt = nil
	}
	if err := s.save(ctx, esc, s.Backend(ctx)); err != nil {
		return nil, err
	}
	return esc, nil
}

func (s *store) AddClientMessage(ctx context.Context, key, content string) (*types.Escalation, error) {
	ctx = ctxutil.Default(ctx)
	esc, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	esc.ClientMessages = append(esc.ClientMessages, types.TimedMessage{
		Content:   content,
		Timestamp: s.now().UTC(),
	})
	esc.ConversationHistory = append(esc.ConversationHistory, types.ChatTurn{
		Role:    types.SpeakerClient,
		Content: content,
	})
	if err := s.save(ctx, esc, s.Backend(ctx)); err != nil {
		return nil, err
	}
	return esc, nil
}

// AddOperatorMessage appends an operator reply. The first reply stamps
// RespondedAt; every reply refreshes the OperatorResponse mirror with the
// latest text. Status is untouched; transitions go through Update.
func (s *store) AddOperatorMessage(ctx context.Context, key, content string) (*types.Escalation, error) {
	ctx = ctxutil.Default(ctx)
	esc, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	esc.OperatorMessages = append(esc.OperatorMessages, types.TimedMessage{
		Content:   content,
		Timestamp: now,
	})
	esc.ConversationHistory = append(esc.ConversationHistory, types.ChatTurn{
		Role:    types.SpeakerOperator,
		Content: content,
	})
	esc.OperatorResponse = content
	if esc.RespondedAt == nil {
		esc.RespondedAt = &now
	}
	if err := s.save(ctx, esc, s.Backend(ctx)); err != nil {
		return nil, err
	}
	return esc, nil
}

func (s *store) Delete(ctx context.Context, key string) error {
	ctx = ctxutil.Default(ctx)
	esc, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if s.Backend(ctx) == "redis" {
		return s.redis.DeleteEscalation(ctx, esc.EscalationNumber)
	}
	if !s.mem.delete(esc.EscalationNumber) {
		return apperr.ErrNotFound
	}
	return nil
}

// FindActiveByChannel returns the newest unresolved escalation bound to a
// channel identity, used to route inbound messages to a live operator
// conversation.
func (s *store) FindActiveByChannel(ctx context.Context, source types.TicketSource, identity string) (*types.Escalation, error) {
	all, err := s.List(ctx, "")
	if err != nil {
		return nil, err
	}
	for _, esc := range all {
		if esc.Source == source && esc.ChannelIdentity == identity && esc.Status.Active() {
			return esc, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (s *store) Stats(ctx context.Context) (*types.EscalationStats, error) {
	ctx = ctxutil.Default(ctx)
	all, err := s.List(ctx, "")
	if err != nil {
		return nil, err
	}
	stats := &types.EscalationStats{
		ByDepartment: make(map[string]int),
		ByPriority:   make(map[string]int),
		Backend:      s.Backend(ctx),
	}
	for _, esc := range all {
		stats.Total++
		switch esc.Status {
		case types.EscalationStatusPending:
			stats.Pending++
		case types.EscalationStatusInProgress:
			stats.InProgress++
		case types.EscalationStatusResolved:
			stats.Resolved++
		}
		if esc.Department != "" {
			stats.ByDepartment[esc.Department]++
		}
		stats.ByPriority[string(esc.Priority)]++
	}
	return stats, nil
}

// save writes to the backend chosen for this call. A failed Redis write is
// an error, not a cue to fall back; mid-operation fallback would smuggle
// records between backends.
func (s *store) save(ctx context.Context, esc *types.Escalation, backend string) error {
	if backend == "redis" {
		return s.redis.SaveEscalation(ctx, esc)
	}
	s.mem.save(esc)
	return nil
}
