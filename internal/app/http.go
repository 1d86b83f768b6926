package app

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/helpdesk-backend/internal/handlers"
	"github.com/yungbote/helpdesk-backend/internal/logger"
	"github.com/yungbote/helpdesk-backend/internal/middleware"
	"github.com/yungbote/helpdesk-backend/internal/server"
)

type Handlers struct {
	Status     *handlers.StatusHandler
	Chat       *handlers.ChatHandler
	Ticket     *handlers.TicketHandler
	Escalation *handlers.EscalationHandler
	WhatsApp   *handlers.WhatsAppHandler
	Voice      *handlers.VoiceHandler
	Email      *handlers.EmailHandler
}

func wireHandlers(log *logger.Logger, clients Clients, svcs Services) Handlers {
	return Handlers{
		Status:     handlers.NewStatusHandler(svcs.Escalations, svcs.Cache),
		Chat:       handlers.NewChatHandler(svcs.Conversation, svcs.Retriever, svcs.Cache),
		Ticket:     handlers.NewTicketHandler(svcs.Tickets, svcs.Sync),
		Escalation: handlers.NewEscalationHandler(svcs.Escalations, svcs.Sync),
		WhatsApp:   handlers.NewWhatsAppHandler(log, svcs.Conversation, svcs.Sessions),
		Voice:      handlers.NewVoiceHandler(log, svcs.VoiceConversation),
		Email:      handlers.NewEmailHandler(log, svcs.Tickets, clients.SendGrid),
	}
}

func wireRouter(log *logger.Logger, cfg Config, h Handlers) *gin.Engine {
	return server.NewRouter(server.RouterConfig{
		AllowOrigins:      cfg.AllowOrigins,
		RequestLogger:     middleware.NewRequestLogger(log),
		StatusHandler:     h.Status,
		ChatHandler:       h.Chat,
		TicketHandler:     h.Ticket,
		EscalationHandler: h.Escalation,
		WhatsAppHandler:   h.WhatsApp,
		VoiceHandler:      h.Voice,
		EmailHandler:      h.Email,
	})
}
