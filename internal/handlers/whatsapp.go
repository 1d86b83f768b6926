package handlers

import (
	"encoding/xml"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/helpdesk-backend/internal/clients/twilio"
	"github.com/yungbote/helpdesk-backend/internal/logger"
	"github.com/yungbote/helpdesk-backend/internal/services"
	"github.com/yungbote/helpdesk-backend/internal/sessions"
	"github.com/yungbote/helpdesk-backend/internal/types"
)

type WhatsAppHandler struct {
	log          *logger.Logger
	conversation services.ConversationService
	sess         *sessions.Store
}

func NewWhatsAppHandler(log *logger.Logger, conversation services.ConversationService, sess *sessions.Store) *WhatsAppHandler {
	return &WhatsAppHandler{
		log:          log.With("handler", "WhatsAppHandler"),
		conversation: conversation,
		sess:         sess,
	}
}

type messagingResponse struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message,omitempty"`
}

// Webhook handles an inbound WhatsApp message and answers inline with TwiML.
// Twilio redelivers on slow responses, so duplicates by MessageSid are
// acknowledged without reprocessing.
func (h *WhatsAppHandler) Webhook(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_form", err)
		return
	}
	msg := twilio.ParseInbound(c.Request.PostForm)
	if msg.Body == "" || msg.From == "" {
		c.XML(http.StatusOK, messagingResponse{})
		return
	}
	if h.sess.MarkSeen(msg.MessageSID) {
		h.log.Debug("duplicate webhook dropped", "message_sid", msg.MessageSID)
		c.XML(http.StatusOK, messagingResponse{})
		return
	}

	result, err := h.conversation.Handle(c.Request.Context(), services.ConversationRequest{
		Message:    msg.Body,
		Source:     types.TicketSourceWhatsApp,
		Identity:   msg.Phone(),
		ClientName: msg.ProfileName,
	})
	if err != nil {
		h.log.Error("whatsapp message failed", "from", msg.Phone(), "error", err)
		c.XML(http.StatusOK, messagingResponse{
			Message: "Произошла ошибка, попробуйте написать ещё раз чуть позже.",
		})
		return
	}
	c.XML(http.StatusOK, messagingResponse{Message: result.Reply})
}
