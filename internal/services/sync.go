package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yungbote/helpdesk-backend/internal/escalations"
	"github.com/yungbote/helpdesk-backend/internal/logger"
	apperr "github.com/yungbote/helpdesk-backend/internal/pkg/errors"
	"github.com/yungbote/helpdesk-backend/internal/sessions"
	"github.com/yungbote/helpdesk-backend/internal/types"
)

// SyncService keeps escalations, their linked tickets and the client's
// channel in step. Operator actions land here; the service fans the change
// out to the ticket store and pushes notifications to the client channel in
// the background, so a slow or failing channel never blocks the operator.
type SyncService interface {
	OperatorReply(ctx context.Context, key, message string) (*types.Escalation, error)
	UpdateEscalation(ctx context.Context, key string, patch types.EscalationPatch) (*types.Escalation, error)
	SyncFromTicket(ctx context.Context, ticket *types.Ticket) error
}

type syncService struct {
	log      *logger.Logger
	store    escalations.Store
	tickets  TicketService
	sess     *sessions.Store
	notifier ChannelNotifier

	notifyTimeout time.Duration
}

func NewSyncService(log *logger.Logger, store escalations.Store, tickets TicketService, sess *sessions.Store, notifier ChannelNotifier) SyncService {
	return &syncService{
		log:           log.With("service", "SyncService"),
		store:         store,
		tickets:       tickets,
		sess:          sess,
		notifier:      notifier,
		notifyTimeout: 30 * time.Second,
	}
}

// OperatorReply records the reply on the escalation, mirrors it into the
// linked ticket and forwards the text to the client's channel.
func (s *syncService) OperatorReply(ctx context.Context, key, message string) (*types.Escalation, error) {
	if message == "" {
		return nil, fmt.Errorf("%w: message required", apperr.ErrInvalidArgument)
	}
	esc, err := s.store.AddOperatorMessage(ctx, key, message)
	if err != nil {
		return nil, err
	}

	if esc.TicketID != "" {
		if _, err := s.tickets.AddMessage(ctx, esc.TicketID, AddTicketMessageRequest{Content: message}); err != nil && !errors.Is(err, apperr.ErrNotFound) {
			s.log.Warn("failed to mirror operator reply into ticket",
				"ticket_number", esc.TicketID, "error", err)
		}
		waiting := types.TicketStatusWaitingResponse
		if _, err := s.tickets.Update(ctx, esc.TicketID, types.TicketPatch{Status: &waiting}); err != nil && !errors.Is(err, apperr.ErrNotFound) {
			s.log.Warn("failed to update ticket status",
				"ticket_number", esc.TicketID, "error", err)
		}
	}

	s.notifyAsync(esc.Source, esc.ChannelIdentity, message)
	return esc, nil
}

// UpdateEscalation applies the patch, syncs the linked ticket and, when the
// escalation is being closed out, tells the client and releases the channel
// back to the assistant.
func (s *syncService) UpdateEscalation(ctx context.Context, key string, patch types.EscalationPatch) (*types.Escalation, error) {
	before, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	esc, err := s.store.Update(ctx, key, patch)
	if err != nil {
		return nil, err
	}

	if esc.TicketID != "" && patch.Status != nil {
		if ticketStatus, ok := escalationToTicketStatus(esc.Status); ok {
			if _, err := s.tickets.Update(ctx, esc.TicketID, types.TicketPatch{Status: &ticketStatus}); err != nil && !errors.Is(err, apperr.ErrNotFound) {
				s.log.Warn("failed to sync ticket status",
					"ticket_number", esc.TicketID, "error", err)
			}
		}
	}

	if before.Status.Active() && !esc.Status.Active() {
		s.closeOut(esc)
	}
	return esc, nil
}

// SyncFromTicket propagates a ticket status change into its escalation, if
// one exists for the ticket number.
func (s *syncService) SyncFromTicket(ctx context.Context, ticket *types.Ticket) error {
	esc, err := s.store.Get(ctx, ticket.TicketNumber)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	status := ticketToEscalationStatus(ticket.Status)
	if status == esc.Status {
		return nil
	}
	updated, err := s.store.Update(ctx, esc.EscalationNumber, types.EscalationPatch{Status: &status})
	if err != nil {
		return err
	}
	if esc.Status.Active() && !updated.Status.Active() {
		s.closeOut(updated)
	}
	return nil
}

// closeOut notifies the client that the conversation is finished and clears
// channel routing so new messages reach the assistant again.
func (s *syncService) closeOut(esc *types.Escalation) {
	s.sess.ClearRouteByEscalation(esc.EscalationNumber)
	text := fmt.Sprintf("Ваше обращение %s решено. Если вопрос остался, просто напишите нам снова.", esc.EscalationNumber)
	s.notifyAsync(esc.Source, esc.ChannelIdentity, text)
	s.log.Info("escalation closed out",
		"escalation_number", esc.EscalationNumber, "status", esc.Status)
}

func (s *syncService) notifyAsync(source types.TicketSource, identity, text string) {
	if identity == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.notifyTimeout)
		defer cancel()
		if err := s.notifier.Notify(ctx, source, identity, text); err != nil {
			s.log.Error("channel notification failed",
				"source", source, "identity", identity, "error", err)
		}
	}()
}

func escalationToTicketStatus(status types.EscalationStatus) (types.TicketStatus, bool) {
	switch status {
	case types.EscalationStatusPending:
		return types.TicketStatusEscalated, true
	case types.EscalationStatusInProgress:
		return types.TicketStatusProcessing, true
	case types.EscalationStatusResolved:
		return types.TicketStatusResolved, true
	case types.EscalationStatusClosed:
		return types.TicketStatusClosed, true
	}
	return "", false
}

func ticketToEscalationStatus(status types.TicketStatus) types.EscalationStatus {
	switch status {
	case types.TicketStatusResolved, types.TicketStatusClosed:
		return types.EscalationStatusResolved
	case types.TicketStatusProcessing, types.TicketStatusWaitingResponse:
		return types.EscalationStatusInProgress
	default:
		return types.EscalationStatusPending
	}
}
