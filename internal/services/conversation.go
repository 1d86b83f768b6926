package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/helpdesk-backend/internal/escalations"
	"github.com/yungbote/helpdesk-backend/internal/knowledge"
	"github.com/yungbote/helpdesk-backend/internal/logger"
	apperr "github.com/yungbote/helpdesk-backend/internal/pkg/errors"
	"github.com/yungbote/helpdesk-backend/internal/ragcache"
	"github.com/yungbote/helpdesk-backend/internal/sessions"
	"github.com/yungbote/helpdesk-backend/internal/types"
)

type ConversationRequest struct {
	Message     string
	Language    string
	Source      types.TicketSource
	Identity    string
	ClientName  string
	ClientEmail string
}

// Source names a knowledge base article that informed the reply.
type Source struct {
	Category    string `json:"category"`
	Subcategory string `json:"subcategory"`
	Question    string `json:"question"`
}

type ConversationResult struct {
	Reply             string               `json:"reply"`
	Language          string               `json:"language"`
	Sources           []Source             `json:"sources"`
	CanAutoResolve    bool                 `json:"can_auto_resolve"`
	SuggestedPriority types.TicketPriority `json:"suggested_priority"`
	Cached            bool                 `json:"cached"`
	Escalated         bool                 `json:"escalated"`
	EscalationNumber  string               `json:"escalation_number,omitempty"`
	TicketNumber      string               `json:"ticket_number,omitempty"`
	AutoResolved      bool                 `json:"auto_resolved"`
}

// ConversationService runs one client message through the assistant
// pipeline: escalation routing, cache, knowledge retrieval, model
// completion with tools, and finally the response cache.
type ConversationService interface {
	Handle(ctx context.Context, req ConversationRequest) (*ConversationResult, error)
}

type conversationService struct {
	log        *logger.Logger
	retriever  knowledge.Retriever
	cache      ragcache.Cache
	store      escalations.Store
	sess       *sessions.Store
	ai         CompletionClient
	tickets    TicketService
	classifier Classifier
}

func NewConversationService(
	log *logger.Logger,
	retriever knowledge.Retriever,
	cache ragcache.Cache,
	store escalations.Store,
	sess *sessions.Store,
	ai CompletionClient,
	tickets TicketService,
	classifier Classifier,
) ConversationService {
	return &conversationService{
		log:        log.With("service", "ConversationService"),
		retriever:  retriever,
		cache:      cache,
		store:      store,
		sess:       sess,
		ai:         ai,
		tickets:    tickets,
		classifier: classifier,
	}
}

const (
	searchTopK     = 3
	maxPromptTurns = 10
)

var assistantTools = []ToolDef{
	{
		Name:        "escalate_to_operator",
		Description: "Передать разговор живому оператору, когда клиент просит человека или вопрос не решается по базе знаний.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"reason":     map[string]any{"type": "string", "description": "Почему нужен оператор"},
				"department": map[string]any{"type": "string", "enum": []string{"it_support", "hr", "finance", "admin"}},
				"priority":   map[string]any{"type": "string", "enum": []string{"low", "medium", "high", "critical"}},
				"summary":    map[string]any{"type": "string", "description": "Краткое описание проблемы"},
			},
			"required": []string{"reason", "summary"},
		},
	},
	{
		Name:        "create_ticket",
		Description: "Создать тикет для задачи, которую нельзя решить в чате, но оператор не нужен немедленно.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"subject":     map[string]any{"type": "string"},
				"description": map[string]any{"type": "string"},
				"department":  map[string]any{"type": "string", "enum": []string{"it_support", "hr", "finance", "admin"}},
				"priority":    map[string]any{"type": "string", "enum": []string{"low", "medium", "high", "critical"}},
			},
			"required": []string{"subject", "description"},
		},
	},
	{
		Name:        "mark_resolved_by_ai",
		Description: "Отметить, что вопрос клиента полностью решён ответом ассистента.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"ticket_number": map[string]any{"type": "string"},
			},
		},
	},
}

func (s *conversationService) Handle(ctx context.Context, req ConversationRequest) (*ConversationResult, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, fmt.Errorf("%w: message required", apperr.ErrInvalidArgument)
	}
	lang := req.Language
	if lang == "" {
		lang = s.classifier.Classify(message).Language
	}
	req.Language = lang
	if req.Source == "" {
		req.Source = types.TicketSourceChat
	}
	if req.ClientName != "" && req.Identity != "" {
		s.sess.SetClientName(req.Source, req.Identity, req.ClientName)
	}

	// A routed identity talks to the operator, not the assistant.
	if req.Identity != "" {
		if result, handled := s.forwardToEscalation(ctx, req, message); handled {
			return result, nil
		}
	}

	if cached, ok := s.cache.Get(ctx, message, lang); ok {
		result := decodeCached(cached)
		result.Language = lang
		result.Cached = true
		s.remember(req, message, result.Reply)
		return result, nil
	}

	matches := s.retriever.Search(message, searchTopK)
	kbContext := s.retriever.BuildContext(matches)

	result := &ConversationResult{
		Language:          lang,
		Sources:           sourcesFrom(matches),
		CanAutoResolve:    knowledge.CanAutoResolve(matches),
		SuggestedPriority: knowledge.SuggestedPriority(matches),
	}
	if s.ai.Enabled() {
		if err := s.completeWithModel(ctx, req, message, lang, kbContext, result); err != nil {
			s.log.Error("model completion failed, using knowledge fallback", "error", err)
			result.Reply = s.fallbackReply(matches, lang)
		}
	} else {
		result.Reply = s.fallbackReply(matches, lang)
	}

	// Escalations and tickets carry per-client context; only plain answers
	// are shareable across clients.
	if !result.Escalated && result.TicketNumber == "" {
		s.cache.Set(ctx, message, lang, encodeCached(result))
	}
	s.remember(req, message, result.Reply)
	return result, nil
}

// forwardToEscalation routes the message to a live escalation when the
// identity is bound to one. Stale routes to resolved or deleted escalations
// are cleared and the message falls through to the assistant.
func (s *conversationService) forwardToEscalation(ctx context.Context, req ConversationRequest, message string) (*ConversationResult, bool) {
	sess := s.sess.Get(req.Source, req.Identity)
	number := sess.EscalationNumber
	if number == "" {
		esc, err := s.store.FindActiveByChannel(ctx, req.Source, req.Identity)
		if err != nil {
			return nil, false
		}
		number = esc.EscalationNumber
		s.sess.Route(req.Source, req.Identity, number)
	}

	esc, err := s.store.Get(ctx, number)
	if err != nil || !esc.Status.Active() {
		s.sess.ClearRoute(req.Source, req.Identity)
		return nil, false
	}

	if _, err := s.store.AddClientMessage(ctx, number, message); err != nil {
		s.log.Error("failed to append client message to escalation",
			"escalation_number", number, "error", err)
	}
	s.sess.AppendTurn(req.Source, req.Identity, types.ChatTurn{Role: types.SpeakerClient, Content: message})
	reply := "Ваше сообщение передано оператору. Ожидайте ответа."
	s.sess.AppendTurn(req.Source, req.Identity, types.ChatTurn{Role: types.SpeakerAssistant, Content: reply})
	return &ConversationResult{
		Reply:            reply,
		Language:         req.Language,
		Escalated:        true,
		EscalationNumber: number,
	}, true
}

func (s *conversationService) completeWithModel(ctx context.Context, req ConversationRequest, message, lang, kbContext string, result *ConversationResult) error {
	messages := []ChatMessage{{Role: "system", Content: s.systemPrompt(req, lang, kbContext)}}
	if req.Identity != "" {
		history := s.sess.Get(req.Source, req.Identity).History
		if len(history) > maxPromptTurns {
			history = history[len(history)-maxPromptTurns:]
		}
		for _, turn := range history {
			role := "user"
			if turn.Role != types.SpeakerClient {
				role = "assistant"
			}
			messages = append(messages, ChatMessage{Role: role, Content: turn.Content})
		}
	}
	messages = append(messages, ChatMessage{Role: "user", Content: message})

	completion, err := s.ai.Complete(ctx, CompletionRequest{
		Messages:    messages,
		Tools:       assistantTools,
		Temperature: 0.3,
	})
	if err != nil {
		return err
	}

	result.Reply = completion.Content
	for _, call := range completion.ToolCalls {
		s.applyToolCall(ctx, req, message, call, result)
	}
	if result.Reply == "" {
		result.Reply = s.toolFallbackReply(result)
	}
	return nil
}

func (s *conversationService) applyToolCall(ctx context.Context, req ConversationRequest, message string, call ToolCall, result *ConversationResult) {
	switch call.Name {
	case "escalate_to_operator":
		var args struct {
			Reason     string `json:"reason"`
			Department string `json:"department"`
			Priority   string `json:"priority"`
			Summary    string `json:"summary"`
		}
		if err := json.Unmarshal(call.Arguments, &args); err != nil {
			s.log.Warn("bad escalate_to_operator arguments", "error", err)
			return
		}
		esc, err := s.escalate(ctx, req, message, args.Reason, args.Department, args.Priority, args.Summary)
		if err != nil {
			s.log.Error("escalation failed", "error", err)
			return
		}
		result.Escalated = true
		result.EscalationNumber = esc.EscalationNumber
		result.TicketNumber = esc.TicketID

	case "create_ticket":
		var args struct {
			Subject     string `json:"subject"`
			Description string `json:"description"`
			Department  string `json:"department"`
			Priority    string `json:"priority"`
		}
		if err := json.Unmarshal(call.Arguments, &args); err != nil {
			s.log.Warn("bad create_ticket arguments", "error", err)
			return
		}
		ticket, err := s.tickets.Create(ctx, CreateTicketRequest{
			ClientName:   req.ClientName,
			ClientEmail:  req.ClientEmail,
			ClientPhone:  phoneIdentity(req),
			Subject:      args.Subject,
			Description:  args.Description,
			Priority:     types.TicketPriority(args.Priority),
			Department:   args.Department,
			Source:       req.Source,
			AIClassified: true,
		})
		if err != nil {
			s.log.Error("ticket creation failed", "error", err)
			return
		}
		result.TicketNumber = ticket.TicketNumber

	case "mark_resolved_by_ai":
		var args struct {
			TicketNumber string `json:"ticket_number"`
		}
		_ = json.Unmarshal(call.Arguments, &args)
		number := args.TicketNumber
		if number == "" {
			number = result.TicketNumber
		}
		if number != "" {
			if _, err := s.tickets.MarkAutoResolved(ctx, number, result.Reply); err != nil {
				s.log.Warn("auto resolve failed", "ticket_number", number, "error", err)
				return
			}
		}
		result.AutoResolved = true

	default:
		s.log.Warn("unknown tool call", "tool", call.Name)
	}
}

// escalate opens a ticket for tracking, then an escalation carrying the
// ticket number as its escalation number, and routes the channel to it.
func (s *conversationService) escalate(ctx context.Context, req ConversationRequest, message, reason, department, priority, summary string) (*types.Escalation, error) {
	if summary == "" {
		summary = message
	}
	ticket, err := s.tickets.Create(ctx, CreateTicketRequest{
		ClientName:   req.ClientName,
		ClientEmail:  req.ClientEmail,
		ClientPhone:  phoneIdentity(req),
		Subject:      summary,
		Description:  message,
		Priority:     types.TicketPriority(priority),
		Department:   department,
		Source:       req.Source,
		AIClassified: true,
		AISummary:    summary,
	})
	if err != nil {
		return nil, err
	}
	escStatus := types.TicketStatusEscalated
	if _, err := s.tickets.Update(ctx, ticket.TicketNumber, types.TicketPatch{Status: &escStatus}); err != nil {
		s.log.Warn("failed to mark ticket escalated", "ticket_number", ticket.TicketNumber, "error", err)
	}

	var history []types.ChatTurn
	if req.Identity != "" {
		history = s.sess.Get(req.Source, req.Identity).History
	}
	esc, err := s.store.Create(ctx, &types.Escalation{
		ID:                  uuid.New().String(),
		EscalationNumber:    ticket.TicketNumber,
		ClientMessage:       message,
		Summary:             summary,
		Reason:              reason,
		Department:          department,
		Priority:            types.TicketPriority(priority),
		ConversationHistory: history,
		TicketID:            ticket.TicketNumber,
		Source:              req.Source,
		ChannelIdentity:     req.Identity,
		ClientName:          req.ClientName,
	})
	if err != nil {
		return nil, err
	}
	if req.Identity != "" {
		s.sess.Route(req.Source, req.Identity, esc.EscalationNumber)
	}
	return esc, nil
}

func phoneIdentity(req ConversationRequest) string {
	if req.Source == types.TicketSourceWhatsApp || req.Source == types.TicketSourceVoice {
		return req.Identity
	}
	return ""
}

func (s *conversationService) systemPrompt(req ConversationRequest, lang, kbContext string) string {
	var b strings.Builder
	b.WriteString("Ты — ассистент корпоративной службы поддержки. Отвечай кратко и по делу")
	if lang == "kz" {
		b.WriteString(", на казахском языке")
	} else {
		b.WriteString(", на русском языке")
	}
	b.WriteString(".\n")
	if req.ClientName != "" {
		b.WriteString("Имя клиента: " + req.ClientName + ".\n")
	}
	b.WriteString("Используй только информацию из базы знаний ниже. ")
	b.WriteString("Если ответа там нет или клиент просит человека, вызови escalate_to_operator.\n\n")
	b.WriteString("База знаний:\n")
	b.WriteString(kbContext)
	return b.String()
}

// fallbackReply serves the best knowledge base answer verbatim when no model
// is configured or the completion failed.
func (s *conversationService) fallbackReply(matches []knowledge.Match, lang string) string {
	if len(matches) > 0 {
		return matches[0].Answer
	}
	if lang == "kz" {
		return "Кешіріңіз, сұрағыңызға жауап таба алмадым. Оператормен байланысу үшін нөміріңізді қалдырыңыз."
	}
	return "К сожалению, я не нашёл ответа на ваш вопрос. Могу передать его оператору — напишите, пожалуйста, подробнее."
}

func (s *conversationService) toolFallbackReply(result *ConversationResult) string {
	switch {
	case result.Escalated:
		return fmt.Sprintf("Передаю ваш вопрос оператору. Номер обращения: %s. Мы свяжемся с вами в ближайшее время.", result.EscalationNumber)
	case result.TicketNumber != "":
		return fmt.Sprintf("Создан тикет %s. Мы сообщим вам о ходе решения.", result.TicketNumber)
	default:
		return "Принято."
	}
}

func sourcesFrom(matches []knowledge.Match) []Source {
	out := make([]Source, 0, len(matches))
	for _, m := range matches {
		out = append(out, Source{
			Category:    m.Category,
			Subcategory: m.Subcategory,
			Question:    m.Question,
		})
	}
	return out
}

// cachedReply is the JSON payload stored in the response cache, so a cache
// hit restores the full answer including its knowledge base derivations.
type cachedReply struct {
	Reply             string               `json:"reply"`
	Sources           []Source             `json:"sources"`
	CanAutoResolve    bool                 `json:"can_auto_resolve"`
	SuggestedPriority types.TicketPriority `json:"suggested_priority"`
}

func encodeCached(result *ConversationResult) string {
	raw, err := json.Marshal(cachedReply{
		Reply:             result.Reply,
		Sources:           result.Sources,
		CanAutoResolve:    result.CanAutoResolve,
		SuggestedPriority: result.SuggestedPriority,
	})
	if err != nil {
		return result.Reply
	}
	return string(raw)
}

func decodeCached(payload string) *ConversationResult {
	var entry cachedReply
	if err := json.Unmarshal([]byte(payload), &entry); err != nil || entry.Reply == "" {
		// Older entries held the bare reply text.
		return &ConversationResult{Reply: payload, SuggestedPriority: types.TicketPriorityMedium}
	}
	return &ConversationResult{
		Reply:             entry.Reply,
		Sources:           entry.Sources,
		CanAutoResolve:    entry.CanAutoResolve,
		SuggestedPriority: entry.SuggestedPriority,
	}
}

func (s *conversationService) remember(req ConversationRequest, message, reply string) {
	if req.Identity == "" {
		return
	}
	s.sess.AppendTurn(req.Source, req.Identity, types.ChatTurn{Role: types.SpeakerClient, Content: message})
	s.sess.AppendTurn(req.Source, req.Identity, types.ChatTurn{Role: types.SpeakerAssistant, Content: reply})
	s.sess.SetLanguage(req.Source, req.Identity, req.Language)
}
