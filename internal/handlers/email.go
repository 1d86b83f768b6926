package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/helpdesk-backend/internal/clients/sendgrid"
	"github.com/yungbote/helpdesk-backend/internal/logger"
	"github.com/yungbote/helpdesk-backend/internal/services"
	"github.com/yungbote/helpdesk-backend/internal/types"
)

type EmailHandler struct {
	log      *logger.Logger
	tickets  services.TicketService
	sendgrid sendgrid.Client
}

func NewEmailHandler(log *logger.Logger, tickets services.TicketService, sg sendgrid.Client) *EmailHandler {
	return &EmailHandler{
		log:      log.With("handler", "EmailHandler"),
		tickets:  tickets,
		sendgrid: sg,
	}
}

type inboundEmailRequest struct {
	From    string `json:"from" binding:"required,email"`
	Name    string `json:"name"`
	Subject string `json:"subject" binding:"required"`
	Text    string `json:"text" binding:"required"`
}

// Inbound turns an email into a ticket and mails back the ticket number.
// The confirmation goes out in the background; ticket creation is the part
// that must not be lost.
func (h *EmailHandler) Inbound(c *gin.Context) {
	var req inboundEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	ticket, err := h.tickets.Create(c.Request.Context(), services.CreateTicketRequest{
		ClientName:  req.Name,
		ClientEmail: req.From,
		Subject:     req.Subject,
		Description: req.Text,
		Source:      types.TicketSourceEmail,
	})
	if err != nil {
		RespondServiceError(c, err)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_, err := h.sendgrid.Send(ctx, sendgrid.SendEmailRequest{
			To:      []sendgrid.EmailAddress{{Email: req.From, Name: req.Name}},
			Subject: fmt.Sprintf("Обращение %s зарегистрировано", ticket.TicketNumber),
			Text: fmt.Sprintf(
				"Здравствуйте!\n\nВаше обращение зарегистрировано под номером %s.\n"+
					"Мы ответим вам в этом письме или по указанным контактам.\n\nСлужба поддержки",
				ticket.TicketNumber),
		})
		if err != nil {
			h.log.Error("confirmation email failed",
				"ticket_number", ticket.TicketNumber, "error", err)
		}
	}()

	c.JSON(http.StatusCreated, ticket)
}
